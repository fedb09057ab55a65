package ml

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// QualityRegressionError reports a staged artifact failing the promotion
// gate. The attempt fails; the previously Active artifact keeps serving.
type QualityRegressionError struct {
	StagedVersion string
	StagedMetric  float64
	ActiveVersion string
	ActiveMetric  float64
	Tolerance     float64
}

func (e *QualityRegressionError) Error() string {
	return fmt.Sprintf("model %s holdout AUC %.4f regresses beyond tolerance %.4f from active %s (%.4f)",
		e.StagedVersion, e.StagedMetric, e.Tolerance, e.ActiveVersion, e.ActiveMetric)
}

// Registry is the persistence surface the promoter drives. The store
// implementation must make ActivateVersion an all-or-nothing transition:
// the old Active becomes Retired and the new artifact becomes Active in a
// single transaction.
type Registry interface {
	SaveArtifact(a *ModelArtifact) error
	ActivateVersion(version string) error
	ActiveArtifact() (*ModelArtifact, error)
	AppendLifecycleEvent(ev LifecycleEvent) error
}

// Promoter runs the quality gate and, on success, publishes a staged
// artifact as the single Active one: first durably in the registry, then
// in-memory via the predictor's atomic swap.
type Promoter struct {
	registry  Registry
	predictor *Predictor
	tolerance float64
	events    func(LifecycleEvent)
}

// NewPromoter builds a promoter. tolerance is how far below the active
// artifact's holdout metric a candidate may fall and still be promoted.
// events, when non-nil, receives every lifecycle transition.
func NewPromoter(registry Registry, predictor *Predictor, tolerance float64, events func(LifecycleEvent)) *Promoter {
	return &Promoter{registry: registry, predictor: predictor, tolerance: tolerance, events: events}
}

// checkGate compares the staged artifact against the currently Active one.
// A nil active artifact (first ever promotion) always passes.
func checkGate(staged, active *ModelArtifact, tolerance float64) error {
	if active == nil {
		return nil
	}
	if staged.Trained.HoldoutAUC < active.Trained.HoldoutAUC-tolerance {
		return &QualityRegressionError{
			StagedVersion: staged.Version,
			StagedMetric:  staged.Trained.HoldoutAUC,
			ActiveVersion: active.Version,
			ActiveMetric:  active.Trained.HoldoutAUC,
			Tolerance:     tolerance,
		}
	}
	return nil
}

// Promote stages, gates and activates an artifact.
//
// On a gate failure the staged artifact is persisted in the Staged state
// for inspection and a *QualityRegressionError is returned; the previous
// Active artifact is untouched and keeps serving throughout.
func (p *Promoter) Promote(staged *ModelArtifact) error {
	if err := p.registry.SaveArtifact(staged); err != nil {
		return fmt.Errorf("persist staged artifact %s: %w", staged.Version, err)
	}

	active, err := p.registry.ActiveArtifact()
	if err != nil {
		return fmt.Errorf("load active artifact: %w", err)
	}

	if err := checkGate(staged, active, p.tolerance); err != nil {
		log.Warn().
			Err(err).
			Str("staged_version", staged.Version).
			Msg("promotion rejected by quality gate")
		return err
	}
	p.emit(staged.Version, StateStaged, StateValidated)

	if err := p.registry.ActivateVersion(staged.Version); err != nil {
		return fmt.Errorf("activate artifact %s: %w", staged.Version, err)
	}
	p.emit(staged.Version, StateValidated, StateActive)
	if active != nil {
		p.emit(active.Version, StateActive, StateRetired)
	}

	// Publish to in-flight readers last, once the registry state is durable.
	published := *staged
	published.State = StateActive
	p.predictor.Swap(&published)
	return nil
}

func (p *Promoter) emit(version string, from, to LifecycleState) {
	ev := LifecycleEvent{Version: version, From: from, To: to, At: time.Now().UTC()}
	if err := p.registry.AppendLifecycleEvent(ev); err != nil {
		log.Warn().Err(err).Str("model_version", version).Msg("failed to record lifecycle event")
	}
	if p.events != nil {
		p.events(ev)
	}
}
