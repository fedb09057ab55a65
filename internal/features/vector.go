package features

// SchemaVersion identifies the fixed field set and ordering below. A model
// artifact trained against one schema version cannot score vectors from
// another.
const SchemaVersion = 1

// Field indices into Vector.Values. Order is part of the schema and must not
// be rearranged without bumping SchemaVersion.
const (
	FieldAttendancePercentage = iota
	FieldAverageScore
	FieldScoreStd
	FieldOverdueFeesRatio
	FieldAttemptCount

	NumFields
)

// FieldNames gives the canonical name for each vector position.
var FieldNames = [NumFields]string{
	"attendance_percentage",
	"average_score",
	"score_std",
	"overdue_fees_ratio",
	"attempt_count",
}

// Vector is the fixed-schema numeric feature vector for one student.
// A true entry in Missing marks the corresponding value as absent rather
// than zero; downstream consumers must never read a missing field's value
// as a real observation.
type Vector struct {
	SchemaVersion int                `json:"schemaVersion"`
	Values        [NumFields]float64 `json:"values"`
	Missing       [NumFields]bool    `json:"missing"`

	// Support counts ride along for diagnostics and are not model inputs.
	TotalSessions int `json:"totalSessions"`
	TotalExams    int `json:"totalExams"`
}

// AttendanceMissing reports whether the attendance domain had no data.
func (v Vector) AttendanceMissing() bool { return v.Missing[FieldAttendancePercentage] }

// AcademicMissing reports whether the academic domain had no data.
func (v Vector) AcademicMissing() bool { return v.Missing[FieldAverageScore] }

// FinancialMissing reports whether the financial domain had no data.
func (v Vector) FinancialMissing() bool { return v.Missing[FieldOverdueFeesRatio] }
