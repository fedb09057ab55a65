// Package features converts raw per-student records into the fixed-schema
// numeric feature vectors the rule engine and the ML predictor consume.
//
// Absent data is tracked per field instead of being zero-filled: a student
// with no marked sessions has an unknown attendance rate, not a 0% one.
// Extraction fails only when every risk domain is empty.
package features

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrInsufficientData is returned when a student has no usable records in
// any risk domain, so there is nothing to assess.
var ErrInsufficientData = errors.New("insufficient data: no usable records in any domain")

// MetricsTracker is the narrow metrics surface the extractor reports to.
type MetricsTracker interface {
	FeatureExtractionsInc()
	FeatureErrorsInc()
}

// Options tunes extraction.
type Options struct {
	// RecentExams caps how many of the latest exams feed average_score and
	// score_std. Zero means all exams in the window.
	RecentExams int
	// AttemptCap bounds attempt_count for numeric stability.
	AttemptCap int
	// FailThreshold is the percentage below which an exam counts as failed.
	FailThreshold float64
	// Window bounds which records are considered.
	Window Window
}

// DefaultOptions mirror the production schedule: last six exams, attempts
// capped at 10, fail line at 40%.
func DefaultOptions() Options {
	return Options{RecentExams: 6, AttemptCap: 10, FailThreshold: 40}
}

// Extractor builds feature vectors from raw student records.
type Extractor struct {
	opts    Options
	metrics MetricsTracker
}

// NewExtractor returns an extractor with the given options.
func NewExtractor(opts Options) *Extractor {
	if opts.AttemptCap <= 0 {
		opts.AttemptCap = DefaultOptions().AttemptCap
	}
	if opts.FailThreshold <= 0 {
		opts.FailThreshold = DefaultOptions().FailThreshold
	}
	return &Extractor{opts: opts}
}

// NewExtractorWithMetrics returns an extractor that reports to the given tracker.
func NewExtractorWithMetrics(opts Options, m MetricsTracker) *Extractor {
	e := NewExtractor(opts)
	e.metrics = m
	return e
}

// Extract converts one student's records into a schema-versioned vector.
// Missing domains are marked, not zeroed. It returns ErrInsufficientData
// when attendance, exams, and fees are all empty within the window.
func (e *Extractor) Extract(rec StudentRecords) (Vector, error) {
	v := Vector{SchemaVersion: SchemaVersion}

	e.extractAttendance(rec.Attendance, &v)
	e.extractAcademic(rec.Exams, &v)
	e.extractFinancial(rec.Fees, &v)

	if v.AttendanceMissing() && v.AcademicMissing() && v.FinancialMissing() {
		if e.metrics != nil {
			e.metrics.FeatureErrorsInc()
		}
		return Vector{}, fmt.Errorf("student %s: %w", rec.StudentID, ErrInsufficientData)
	}

	if e.metrics != nil {
		e.metrics.FeatureExtractionsInc()
	}
	return v, nil
}

func (e *Extractor) extractAttendance(records []AttendanceRecord, v *Vector) {
	var total, present int
	for _, r := range records {
		if !e.opts.Window.contains(r.Date) {
			continue
		}
		total++
		if r.Present {
			present++
		}
	}
	v.TotalSessions = total
	if total == 0 {
		v.Missing[FieldAttendancePercentage] = true
		return
	}
	v.Values[FieldAttendancePercentage] = float64(present) / float64(total) * 100
}

func (e *Extractor) extractAcademic(records []ExamRecord, v *Vector) {
	scored := make([]ExamRecord, 0, len(records))
	attempts := 0
	for _, r := range records {
		if !e.opts.Window.contains(r.Date) {
			continue
		}
		p, ok := r.Percentage()
		if r.Retake || (ok && p < e.opts.FailThreshold) {
			attempts++
		}
		if ok {
			scored = append(scored, r)
		}
	}
	v.TotalExams = len(scored)
	if len(scored) == 0 {
		v.Missing[FieldAverageScore] = true
		v.Missing[FieldScoreStd] = true
		v.Missing[FieldAttemptCount] = true
		return
	}

	// Newest first, then trim to the recent-exam budget.
	sort.Slice(scored, func(i, j int) bool { return scored[i].Date.After(scored[j].Date) })
	if e.opts.RecentExams > 0 && len(scored) > e.opts.RecentExams {
		scored = scored[:e.opts.RecentExams]
	}

	var sum, sumSq float64
	for _, r := range scored {
		p, _ := r.Percentage()
		sum += p
		sumSq += p * p
	}
	n := float64(len(scored))
	mean := sum / n
	variance := sumSq/n - mean*mean
	std := 0.0
	if variance > 0 {
		std = math.Sqrt(variance)
	}

	if attempts > e.opts.AttemptCap {
		attempts = e.opts.AttemptCap
	}

	v.Values[FieldAverageScore] = mean
	v.Values[FieldScoreStd] = std
	v.Values[FieldAttemptCount] = float64(attempts)
}

func (e *Extractor) extractFinancial(records []FeeRecord, v *Vector) {
	var due, overdue float64
	seen := false
	for _, r := range records {
		if !e.opts.Window.contains(r.DueDate) {
			continue
		}
		seen = true
		due += r.AmountDue
		overdue += r.OverdueAmount()
	}
	if !seen {
		v.Missing[FieldOverdueFeesRatio] = true
		return
	}
	if due <= 0 {
		// Nothing owed, nothing overdue.
		v.Values[FieldOverdueFeesRatio] = 0
		return
	}
	v.Values[FieldOverdueFeesRatio] = overdue / due
}
