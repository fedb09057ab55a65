package assess

import "edutrack/internal/rules"

// RiskChange is emitted when a student's final tier changes severity
// relative to their previous assessment. The notification layer consumes
// these with its own retry logic; the engine only derives them.
type RiskChange struct {
	StudentID  string     `json:"studentId"`
	Previous   rules.Tier `json:"previousFinalTier"`
	New        rules.Tier `json:"newFinalTier"`
	Assessment Assessment `json:"assessment"`
}

// Escalation reports whether the change moved to a more severe tier.
func (c RiskChange) Escalation() bool { return c.New > c.Previous }

// DetectChange compares a new assessment with the student's previous one.
// A nil previous assessment means the first run for this student; that is
// not a change. The boolean is true only when the final tier differs.
func DetectChange(previous *Assessment, current Assessment) (RiskChange, bool) {
	if previous == nil || previous.FinalOverallTier == current.FinalOverallTier {
		return RiskChange{}, false
	}
	return RiskChange{
		StudentID:  current.StudentID,
		Previous:   previous.FinalOverallTier,
		New:        current.FinalOverallTier,
		Assessment: current,
	}, true
}
