// Package assess orchestrates one risk assessment per student per run:
// feature extraction, rule tiering, ML prediction, and the escalate-only
// reconciliation that merges the two judgments. The assessor performs no
// I/O and triggers no notifications; it hands back immutable records and
// leaves side effects to the caller so each one can be retried on its own.
package assess

import (
	"time"

	"github.com/google/uuid"

	"edutrack/internal/features"
	"edutrack/internal/ml"
	"edutrack/internal/rules"
)

// assessmentNamespace scopes the deterministic assessment IDs.
var assessmentNamespace = uuid.MustParse("7f9d2c7e-4b1a-4e0e-9f34-d2a4b8c61e05")

// Assessment is the engine's verdict for one student at one point in time.
// Records are append-only: a correction is a new assessment, never an edit.
type Assessment struct {
	ID                 string          `json:"id"`
	StudentID          string          `json:"studentId"`
	Timestamp          time.Time       `json:"timestamp"`
	Features           features.Vector `json:"features"`
	AttendanceTier     rules.Tier      `json:"attendanceTier"`
	AcademicTier       rules.Tier      `json:"academicTier"`
	FinancialTier      rules.Tier      `json:"financialTier"`
	RuleOverallTier    rules.Tier      `json:"ruleOverallTier"`
	DropoutProbability float64         `json:"dropoutProbability"`
	Confidence         float64         `json:"confidence"`
	MLTier             rules.Tier      `json:"mlTier"`
	FinalOverallTier   rules.Tier      `json:"finalOverallTier"`
	ModelVersion       string          `json:"modelVersion"`
	ThresholdVersion   string          `json:"thresholdVersion"`
	Recommendations    []string        `json:"recommendations"`
}

// MLCutoffs maps a dropout probability to a tier: red at or above Red,
// yellow at or above Yellow, green below.
type MLCutoffs struct {
	Red    float64 `yaml:"red"`
	Yellow float64 `yaml:"yellow"`
}

// DefaultMLCutoffs are the documented bands: red >= 0.7, yellow >= 0.4.
func DefaultMLCutoffs() MLCutoffs { return MLCutoffs{Red: 0.7, Yellow: 0.4} }

// Tier maps a probability through the cutoffs.
func (c MLCutoffs) Tier(probability float64) rules.Tier {
	switch {
	case probability >= c.Red:
		return rules.TierRed
	case probability >= c.Yellow:
		return rules.TierYellow
	default:
		return rules.TierGreen
	}
}

// Metrics is the counter surface the assessor reports to.
type Metrics interface {
	AssessmentsInc(tier string)
	AssessmentFailuresInc()
}

// Assessor runs assessments against immutable ThresholdConfig and model
// snapshots. It is pure given identical inputs and snapshot versions: the
// caller supplies the timestamp, and the record ID derives from the inputs,
// so identical runs produce identical records.
type Assessor struct {
	extractor *features.Extractor
	engine    *rules.Engine
	predictor *ml.Predictor
	cutoffs   MLCutoffs
	metrics   Metrics
}

// New builds an assessor over the given snapshots.
func New(extractor *features.Extractor, engine *rules.Engine, predictor *ml.Predictor, cutoffs MLCutoffs, metrics Metrics) *Assessor {
	if cutoffs.Red == 0 && cutoffs.Yellow == 0 {
		cutoffs = DefaultMLCutoffs()
	}
	return &Assessor{
		extractor: extractor,
		engine:    engine,
		predictor: predictor,
		cutoffs:   cutoffs,
		metrics:   metrics,
	}
}

// Assess produces one fully populated assessment for a student.
//
// Reconciliation is escalate-only: the final tier is the most severe of
// the rule verdict and the ML-derived tier, so a favorable statistical
// score can never hide a visible rule-based deficiency.
func (a *Assessor) Assess(rec features.StudentRecords, now time.Time) (Assessment, error) {
	vector, err := a.extractor.Extract(rec)
	if err != nil {
		if a.metrics != nil {
			a.metrics.AssessmentFailuresInc()
		}
		return Assessment{}, err
	}

	tiers := a.engine.Evaluate(vector)

	pred, err := a.predictor.Predict(vector)
	if err != nil {
		if a.metrics != nil {
			a.metrics.AssessmentFailuresInc()
		}
		return Assessment{}, err
	}

	mlTier := a.cutoffs.Tier(pred.Probability)
	final := rules.Worst(tiers.Overall, mlTier)

	out := Assessment{
		StudentID:          rec.StudentID,
		Timestamp:          now.UTC(),
		Features:           vector,
		AttendanceTier:     tiers.Attendance,
		AcademicTier:       tiers.Academic,
		FinancialTier:      tiers.Financial,
		RuleOverallTier:    tiers.Overall,
		DropoutProbability: pred.Probability,
		Confidence:         pred.Confidence,
		MLTier:             mlTier,
		FinalOverallTier:   final,
		ModelVersion:       pred.ModelVersion,
		ThresholdVersion:   a.engine.Config().Version,
	}
	out.Recommendations = recommendations(vector, tiers, pred.Probability)
	out.ID = assessmentID(out)

	if a.metrics != nil {
		a.metrics.AssessmentsInc(final.String())
	}
	return out, nil
}

// assessmentID derives a stable identifier from the assessment's inputs,
// so identical runs yield byte-identical records.
func assessmentID(a Assessment) string {
	key := a.StudentID + "|" + a.Timestamp.Format(time.RFC3339Nano) + "|" + a.ModelVersion + "|" + a.ThresholdVersion
	return uuid.NewSHA1(assessmentNamespace, []byte(key)).String()
}
