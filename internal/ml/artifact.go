package ml

import (
	"fmt"
	"time"
)

// LifecycleState tracks a model artifact through Staged, Validated, Active
// and Retired. Exactly one artifact is Active at any instant; transitions
// are atomic swaps performed by the registry.
type LifecycleState int

const (
	StateStaged LifecycleState = iota
	StateValidated
	StateActive
	StateRetired
)

var stateNames = [...]string{"staged", "validated", "active", "retired"}

func (s LifecycleState) String() string {
	if s < StateStaged || s > StateRetired {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText serializes the state by name.
func (s LifecycleState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText parses a state name.
func (s *LifecycleState) UnmarshalText(b []byte) error {
	for i, n := range stateNames {
		if n == string(b) {
			*s = LifecycleState(i)
			return nil
		}
	}
	return fmt.Errorf("unknown lifecycle state %q", string(b))
}

// ScalerParams holds the zero-mean/unit-variance transform fit at training
// time. The same means double as imputation values for missing fields, so an
// imputed field standardizes to exactly zero.
type ScalerParams struct {
	Means []float64 `json:"means"`
	Stds  []float64 `json:"stds"`
}

// Transform standardizes a raw value for one feature position.
func (s ScalerParams) Transform(idx int, value float64) float64 {
	if idx >= len(s.Stds) || s.Stds[idx] == 0 {
		return 0
	}
	return (value - s.Means[idx]) / s.Stds[idx]
}

// TrainingMetadata records how an artifact was produced and how it scored
// on the held-out split.
type TrainingMetadata struct {
	TrainedAt       time.Time `json:"trainedAt"`
	TrainingSamples int       `json:"trainingSamples"`
	HoldoutSamples  int       `json:"holdoutSamples"`
	HoldoutAUC      float64   `json:"holdoutAuc"`
	Seed            int64     `json:"seed"`
}

// ModelArtifact is a versioned, immutable bundle of scaler parameters, the
// ensemble member parameter sets, and training metadata. Artifacts are
// published whole and never mutated; activating or retiring one is a state
// change through the registry, not an in-place edit of parameters.
type ModelArtifact struct {
	Version       string           `json:"version"`
	SchemaVersion int              `json:"schemaVersion"`
	Scaler        ScalerParams     `json:"scaler"`
	Logistic      LogisticParams   `json:"logistic"`
	Forest        ForestParams     `json:"forest"`
	Trained       TrainingMetadata `json:"trained"`
	State         LifecycleState   `json:"state"`
}

// Members returns the ensemble members in a fixed order. The predictor
// iterates these through the Classifier interface without knowing the
// concrete types.
func (a *ModelArtifact) Members() []Classifier {
	return []Classifier{logisticClassifier{a.Logistic}, forestClassifier{a.Forest}}
}

// LifecycleEvent is emitted on every artifact state transition for
// observability and audit.
type LifecycleEvent struct {
	Version string         `json:"version"`
	From    LifecycleState `json:"from"`
	To      LifecycleState `json:"to"`
	At      time.Time      `json:"at"`
}
