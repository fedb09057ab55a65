package assess

import (
	"testing"

	"edutrack/internal/rules"
)

func assessmentWithTier(studentID string, tier rules.Tier) Assessment {
	return Assessment{
		ID:               "a-" + studentID,
		StudentID:        studentID,
		FinalOverallTier: tier,
	}
}

func TestDetectChange(t *testing.T) {
	t.Parallel()

	t.Run("first assessment is not a change", func(t *testing.T) {
		_, ok := DetectChange(nil, assessmentWithTier("E001", rules.TierRed))
		if ok {
			t.Error("nil previous must not produce a change event")
		}
	})

	t.Run("same tier is not a change", func(t *testing.T) {
		prev := assessmentWithTier("E002", rules.TierYellow)
		_, ok := DetectChange(&prev, assessmentWithTier("E002", rules.TierYellow))
		if ok {
			t.Error("unchanged tier must not produce a change event")
		}
	})

	t.Run("escalation", func(t *testing.T) {
		prev := assessmentWithTier("E003", rules.TierGreen)
		ch, ok := DetectChange(&prev, assessmentWithTier("E003", rules.TierRed))
		if !ok {
			t.Fatal("expected a change event")
		}
		if !ch.Escalation() {
			t.Error("green to red should report as an escalation")
		}
		if ch.StudentID != "E003" || ch.Previous != rules.TierGreen || ch.New != rules.TierRed {
			t.Errorf("change = %+v", ch)
		}
	})

	t.Run("improvement", func(t *testing.T) {
		prev := assessmentWithTier("E004", rules.TierRed)
		ch, ok := DetectChange(&prev, assessmentWithTier("E004", rules.TierYellow))
		if !ok {
			t.Fatal("expected a change event")
		}
		if ch.Escalation() {
			t.Error("red to yellow is an improvement, not an escalation")
		}
	})
}
