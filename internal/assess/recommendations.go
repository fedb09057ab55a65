package assess

import (
	"edutrack/internal/features"
	"edutrack/internal/rules"
)

// recommendations derives advisory actions from the tiered verdict. These
// are attached to the assessment for counselors; they carry no engine
// semantics.
func recommendations(v features.Vector, tiers rules.DomainTiers, probability float64) []string {
	var recs []string

	if tiers.Attendance >= rules.TierYellow {
		if tiers.Attendance == rules.TierRed {
			recs = append(recs, "Immediate intervention required for attendance")
		} else {
			recs = append(recs, "Schedule meeting with student and parents about attendance")
		}
	}

	if tiers.Academic >= rules.TierYellow {
		if tiers.Academic == rules.TierRed {
			recs = append(recs, "Urgent academic support needed")
		} else {
			recs = append(recs, "Schedule extra classes and academic counseling")
		}
		if !v.Missing[features.FieldAttemptCount] && v.Values[features.FieldAttemptCount] > 0 {
			recs = append(recs, "Assign peer mentor for academic support")
		}
	}

	if tiers.Financial >= rules.TierYellow {
		if tiers.Financial == rules.TierRed {
			recs = append(recs, "Immediate financial counseling required")
		} else {
			recs = append(recs, "Schedule fee payment discussion")
		}
		recs = append(recs, "Explore financial aid and payment plan options")
	}

	if probability >= 0.7 {
		recs = append(recs, "High dropout risk - implement comprehensive intervention plan")
	} else if probability >= 0.5 {
		recs = append(recs, "Moderate dropout risk - monitor closely and provide support")
	}

	if tiers.Overall == rules.TierRed {
		recs = append(recs, "Schedule comprehensive counseling session")
		recs = append(recs, "Involve parents/guardians in intervention plan")
	}

	return recs
}
