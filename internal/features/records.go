package features

import "time"

// AttendanceRecord is a single marked attendance session for a student,
// supplied already validated and deduplicated by the import layer.
type AttendanceRecord struct {
	Date    time.Time `json:"date"`
	Present bool      `json:"present"`
}

// ExamRecord is a single graded assessment.
type ExamRecord struct {
	Date          time.Time `json:"date"`
	MarksObtained float64   `json:"marksObtained"`
	TotalMarks    float64   `json:"totalMarks"`
	Retake        bool      `json:"retake"`
}

// Percentage returns the exam score scaled to 0-100.
// Exams with a zero total carry no usable score.
func (e ExamRecord) Percentage() (float64, bool) {
	if e.TotalMarks <= 0 {
		return 0, false
	}
	return e.MarksObtained / e.TotalMarks * 100, true
}

// FeeRecord is a single fee obligation with the portion currently overdue.
type FeeRecord struct {
	DueDate    time.Time `json:"dueDate"`
	AmountDue  float64   `json:"amountDue"`
	AmountPaid float64   `json:"amountPaid"`
	Overdue    bool      `json:"overdue"`
}

// OverdueAmount returns the unpaid portion of an overdue fee.
func (f FeeRecord) OverdueAmount() float64 {
	if !f.Overdue {
		return 0
	}
	rem := f.AmountDue - f.AmountPaid
	if rem < 0 {
		return 0
	}
	return rem
}

// StudentRecords bundles the raw per-student inputs for one assessment.
type StudentRecords struct {
	StudentID  string             `json:"studentId"`
	Attendance []AttendanceRecord `json:"attendance"`
	Exams      []ExamRecord       `json:"exams"`
	Fees       []FeeRecord        `json:"fees"`
}

// Window bounds record selection in time. A zero bound is open-ended.
type Window struct {
	From time.Time
	To   time.Time
}

func (w Window) contains(t time.Time) bool {
	if !w.From.IsZero() && t.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && t.After(w.To) {
		return false
	}
	return true
}
