// Package ml holds the trained side of the risk engine: versioned model
// artifacts (scaler plus a logistic and a tree-ensemble member), the
// lock-free predictor serving the Active artifact, and the offline trainer
// with its promotion quality gate.
package ml

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"edutrack/internal/features"
)

// ErrNoActiveModel is returned when prediction is requested before any
// artifact has been promoted to Active.
var ErrNoActiveModel = errors.New("no active model artifact")

// VersionMismatchError reports schema drift between a feature vector and
// the active artifact. The request fails; the artifact stays serving.
type VersionMismatchError struct {
	VectorSchema   int
	ArtifactSchema int
	ModelVersion   string
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("model %s trained on feature schema v%d, vector has v%d",
		e.ModelVersion, e.ArtifactSchema, e.VectorSchema)
}

// MetricsInterface defines the metrics methods the predictor reports to.
type MetricsInterface interface {
	MLPredictionsInc()
	MLFailuresInc()
	MLLatencyObserve(float64)
	MLProbabilityObserve(float64)
	MLModelAgeSet(float64)
}

// Prediction is the predictor's verdict for one vector.
type Prediction struct {
	Probability  float64 `json:"probability"`
	Confidence   float64 `json:"confidence"`
	ModelVersion string  `json:"modelVersion"`
}

// Predictor serves dropout probabilities from the single Active model
// artifact. The artifact sits behind an atomic pointer: many concurrent
// predictions read the same immutable snapshot without locking, and a
// promotion swaps the whole artifact in one step so no reader ever sees a
// mixture of old and new parameters.
type Predictor struct {
	active  atomic.Pointer[ModelArtifact]
	metrics MetricsInterface
}

// NewPredictor returns a predictor with no active artifact.
func NewPredictor(metrics MetricsInterface) *Predictor {
	return &Predictor{metrics: metrics}
}

// Swap atomically publishes a new active artifact and returns the previous
// one, or nil if this is the first activation.
func (p *Predictor) Swap(a *ModelArtifact) *ModelArtifact {
	prev := p.active.Swap(a)
	if p.metrics != nil {
		p.metrics.MLModelAgeSet(time.Since(a.Trained.TrainedAt).Seconds())
	}
	prevVersion := ""
	if prev != nil {
		prevVersion = prev.Version
	}
	log.Info().
		Str("model_version", a.Version).
		Str("previous_version", prevVersion).
		Float64("holdout_auc", a.Trained.HoldoutAUC).
		Msg("active model artifact swapped")
	return prev
}

// Active returns the current artifact snapshot, or nil.
func (p *Predictor) Active() *ModelArtifact {
	return p.active.Load()
}

// Predict scores one feature vector against the active artifact.
//
// Missing fields are imputed with the artifact's training-time means, the
// vector is standardized with the stored scaler (never refit here), each
// ensemble member produces its own class-1 probability, and the ensemble
// probability is their arithmetic mean.
func (p *Predictor) Predict(v features.Vector) (Prediction, error) {
	start := time.Now()
	artifact := p.active.Load()
	if artifact == nil {
		return Prediction{}, ErrNoActiveModel
	}
	if v.SchemaVersion != artifact.SchemaVersion {
		if p.metrics != nil {
			p.metrics.MLFailuresInc()
		}
		return Prediction{}, &VersionMismatchError{
			VectorSchema:   v.SchemaVersion,
			ArtifactSchema: artifact.SchemaVersion,
			ModelVersion:   artifact.Version,
		}
	}

	scaled := make([]float64, features.NumFields)
	for i := 0; i < features.NumFields; i++ {
		raw := v.Values[i]
		if v.Missing[i] {
			raw = artifact.Scaler.Means[i]
		}
		scaled[i] = artifact.Scaler.Transform(i, raw)
	}

	members := artifact.Members()
	probs := make([]float64, len(members))
	var sum float64
	for i, m := range members {
		probs[i] = clamp01(m.PredictProba(scaled))
		sum += probs[i]
	}
	prob := sum / float64(len(members))

	pred := Prediction{
		Probability:  prob,
		Confidence:   confidence(prob, probs),
		ModelVersion: artifact.Version,
	}

	if p.metrics != nil {
		p.metrics.MLPredictionsInc()
		p.metrics.MLProbabilityObserve(pred.Probability)
		p.metrics.MLLatencyObserve(time.Since(start).Seconds())
	}
	return pred, nil
}

// confidence is monotone in distance from the 0.5 boundary and in member
// agreement: (2*|p-0.5|) * (1 - spread), where spread is the widest gap
// between member probabilities. Both factors lie in [0,1], so the product
// does too.
func confidence(ensemble float64, members []float64) float64 {
	distance := 2 * math.Abs(ensemble-0.5)
	var lo, hi float64
	for i, m := range members {
		if i == 0 || m < lo {
			lo = m
		}
		if i == 0 || m > hi {
			hi = m
		}
	}
	return clamp01(distance * (1 - (hi - lo)))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
