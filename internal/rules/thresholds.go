package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ThresholdConfig is one immutable, versioned set of rule-band boundaries.
// Each change in the configuration store produces a new version; a loaded
// config is never mutated in place.
type ThresholdConfig struct {
	Version               string  `yaml:"version" json:"version"`
	AttendanceSafe        float64 `yaml:"attendanceSafe" json:"attendanceSafe"`
	AttendanceWarning     float64 `yaml:"attendanceWarning" json:"attendanceWarning"`
	ScoreSafe             float64 `yaml:"scoreSafe" json:"scoreSafe"`
	ScoreWarning          float64 `yaml:"scoreWarning" json:"scoreWarning"`
	FinancialWarningRatio float64 `yaml:"financialWarningRatio" json:"financialWarningRatio"`
	MaxAttempts           int     `yaml:"maxAttempts" json:"maxAttempts"`
}

// ConfigError reports an invalid ThresholdConfig. Invalid configs are
// rejected at load time; values are never clamped into validity.
type ConfigError struct {
	Version string
	Field   string
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("threshold config %q: %s: %s", e.Version, e.Field, e.Reason)
}

// DefaultThresholds returns the documented production bands:
// attendance 75/60, score 60/40, financial ratio 0.3, max attempts 2.
func DefaultThresholds() ThresholdConfig {
	return ThresholdConfig{
		Version:               "default-v1",
		AttendanceSafe:        75,
		AttendanceWarning:     60,
		ScoreSafe:             60,
		ScoreWarning:          40,
		FinancialWarningRatio: 0.3,
		MaxAttempts:           2,
	}
}

// Validate checks the safe > warning invariant for every domain pair plus
// basic range sanity. Checked once per config load, not per assessment.
func (c ThresholdConfig) Validate() error {
	if c.AttendanceSafe <= c.AttendanceWarning {
		return &ConfigError{c.Version, "attendanceSafe", fmt.Sprintf("safe (%.2f) must exceed warning (%.2f)", c.AttendanceSafe, c.AttendanceWarning)}
	}
	if c.ScoreSafe <= c.ScoreWarning {
		return &ConfigError{c.Version, "scoreSafe", fmt.Sprintf("safe (%.2f) must exceed warning (%.2f)", c.ScoreSafe, c.ScoreWarning)}
	}
	if c.AttendanceWarning < 0 || c.AttendanceSafe > 100 {
		return &ConfigError{c.Version, "attendance", "bands must lie within 0-100"}
	}
	if c.ScoreWarning < 0 || c.ScoreSafe > 100 {
		return &ConfigError{c.Version, "score", "bands must lie within 0-100"}
	}
	if c.FinancialWarningRatio <= 0 || c.FinancialWarningRatio >= 1 {
		return &ConfigError{c.Version, "financialWarningRatio", fmt.Sprintf("must be in (0,1), got %.2f", c.FinancialWarningRatio)}
	}
	if c.MaxAttempts < 0 {
		return &ConfigError{c.Version, "maxAttempts", "must not be negative"}
	}
	return nil
}

// LoadThresholds reads and validates a ThresholdConfig from a YAML file.
func LoadThresholds(path string) (ThresholdConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ThresholdConfig{}, fmt.Errorf("read thresholds file %s: %w", path, err)
	}
	var c ThresholdConfig
	if err := yaml.Unmarshal(data, &c); err != nil {
		return ThresholdConfig{}, fmt.Errorf("parse thresholds file %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return ThresholdConfig{}, err
	}
	return c, nil
}
