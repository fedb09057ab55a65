// Package rules applies versioned threshold bands to feature vectors,
// producing a deterministic green/yellow/red tier per risk domain and an
// aggregated worst-of tier. Evaluation is side-effect-free; a given vector
// and config version always yield the same tiers.
package rules

import (
	"fmt"

	"edutrack/internal/features"
)

// Tier is a risk band ordered by severity: red > yellow > green.
type Tier int

const (
	TierGreen Tier = iota
	TierYellow
	TierRed
)

var tierNames = [...]string{"green", "yellow", "red"}

func (t Tier) String() string {
	if t < TierGreen || t > TierRed {
		return "unknown"
	}
	return tierNames[t]
}

// MarshalText lets tiers serialize as their names in JSON records.
func (t Tier) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText parses a tier name.
func (t *Tier) UnmarshalText(b []byte) error {
	for i, n := range tierNames {
		if n == string(b) {
			*t = Tier(i)
			return nil
		}
	}
	return fmt.Errorf("unknown tier %q", string(b))
}

// Worst returns the most severe of the given tiers.
func Worst(tiers ...Tier) Tier {
	w := TierGreen
	for _, t := range tiers {
		if t > w {
			w = t
		}
	}
	return w
}

// DomainTiers is the rule engine's verdict for one vector.
type DomainTiers struct {
	Attendance Tier `json:"attendance"`
	Academic   Tier `json:"academic"`
	Financial  Tier `json:"financial"`
	Overall    Tier `json:"overall"`
}

// Engine evaluates feature vectors against one immutable ThresholdConfig.
type Engine struct {
	cfg ThresholdConfig
}

// NewEngine validates the config and builds an engine. An invalid config is
// rejected here with a *ConfigError; callers keep their previous engine.
func NewEngine(cfg ThresholdConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// Config returns the config snapshot this engine evaluates against.
func (e *Engine) Config() ThresholdConfig { return e.cfg }

// Evaluate tiers each domain and aggregates the worst. Missing attendance or
// academic data tiers red (absent data is treated as the worst case, never as
// reassurance); missing financial data tiers yellow since no fee records
// carry no evidence of debt either way.
func (e *Engine) Evaluate(v features.Vector) DomainTiers {
	d := DomainTiers{
		Attendance: e.attendanceTier(v),
		Academic:   e.academicTier(v),
		Financial:  e.financialTier(v),
	}
	d.Overall = Worst(d.Attendance, d.Academic, d.Financial)
	return d
}

func (e *Engine) attendanceTier(v features.Vector) Tier {
	if v.AttendanceMissing() {
		return TierRed
	}
	return bandTier(v.Values[features.FieldAttendancePercentage], e.cfg.AttendanceSafe, e.cfg.AttendanceWarning)
}

func (e *Engine) academicTier(v features.Vector) Tier {
	if v.AcademicMissing() {
		return TierRed
	}
	t := bandTier(v.Values[features.FieldAverageScore], e.cfg.ScoreSafe, e.cfg.ScoreWarning)
	// Exceeding the retake budget rules out a green academic tier.
	if !v.Missing[features.FieldAttemptCount] && int(v.Values[features.FieldAttemptCount]) > e.cfg.MaxAttempts {
		t = Worst(t, TierYellow)
	}
	return t
}

// Financial banding is inverted: lower overdue ratio is safer, and only a
// fully settled balance is green.
func (e *Engine) financialTier(v features.Vector) Tier {
	if v.FinancialMissing() {
		return TierYellow
	}
	ratio := v.Values[features.FieldOverdueFeesRatio]
	switch {
	case ratio == 0:
		return TierGreen
	case ratio <= e.cfg.FinancialWarningRatio:
		return TierYellow
	default:
		return TierRed
	}
}

func bandTier(value, safe, warning float64) Tier {
	switch {
	case value >= safe:
		return TierGreen
	case value >= warning:
		return TierYellow
	default:
		return TierRed
	}
}
