package ml

import (
	"errors"
	"testing"
)

// fakeRegistry is an in-memory Registry for promotion tests.
type fakeRegistry struct {
	artifacts map[string]*ModelArtifact
	active    string
	events    []LifecycleEvent
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{artifacts: make(map[string]*ModelArtifact)}
}

func (r *fakeRegistry) SaveArtifact(a *ModelArtifact) error {
	stored := *a
	r.artifacts[a.Version] = &stored
	return nil
}

func (r *fakeRegistry) ActivateVersion(version string) error {
	if _, ok := r.artifacts[version]; !ok {
		return errors.New("unknown version")
	}
	if r.active != "" {
		r.artifacts[r.active].State = StateRetired
	}
	r.artifacts[version].State = StateActive
	r.active = version
	return nil
}

func (r *fakeRegistry) ActiveArtifact() (*ModelArtifact, error) {
	if r.active == "" {
		return nil, nil
	}
	return r.artifacts[r.active], nil
}

func (r *fakeRegistry) AppendLifecycleEvent(ev LifecycleEvent) error {
	r.events = append(r.events, ev)
	return nil
}

func stagedArtifact(version string, auc float64) *ModelArtifact {
	a := testArtifact(version, 0, 0.5)
	a.State = StateStaged
	a.Trained.HoldoutAUC = auc
	return a
}

func TestPromote_FirstModelAlwaysPasses(t *testing.T) {
	t.Parallel()

	registry := newFakeRegistry()
	predictor := NewPredictor(nil)
	var seen []LifecycleEvent
	promoter := NewPromoter(registry, predictor, 0.01, func(ev LifecycleEvent) {
		seen = append(seen, ev)
	})

	if err := promoter.Promote(stagedArtifact("v1", 0.55)); err != nil {
		t.Fatalf("Promote failed: %v", err)
	}

	if registry.active != "v1" {
		t.Errorf("registry active = %q, want v1", registry.active)
	}
	active := predictor.Active()
	if active == nil || active.Version != "v1" {
		t.Fatal("predictor not serving the promoted artifact")
	}
	if active.State != StateActive {
		t.Errorf("served artifact state = %v, want active", active.State)
	}

	wantTransitions := []struct{ from, to LifecycleState }{
		{StateStaged, StateValidated},
		{StateValidated, StateActive},
	}
	if len(seen) != len(wantTransitions) {
		t.Fatalf("saw %d lifecycle events, want %d", len(seen), len(wantTransitions))
	}
	for i, want := range wantTransitions {
		if seen[i].From != want.from || seen[i].To != want.to {
			t.Errorf("event %d = %v->%v, want %v->%v", i, seen[i].From, seen[i].To, want.from, want.to)
		}
	}
}

func TestPromote_GateRejectsRegression(t *testing.T) {
	t.Parallel()

	registry := newFakeRegistry()
	predictor := NewPredictor(nil)
	promoter := NewPromoter(registry, predictor, 0.01, nil)

	if err := promoter.Promote(stagedArtifact("v1", 0.9)); err != nil {
		t.Fatalf("first promotion failed: %v", err)
	}

	err := promoter.Promote(stagedArtifact("v2", 0.7))
	var regression *QualityRegressionError
	if !errors.As(err, &regression) {
		t.Fatalf("expected *QualityRegressionError, got %v", err)
	}
	if regression.StagedVersion != "v2" || regression.ActiveVersion != "v1" {
		t.Errorf("regression versions = %s/%s, want v2/v1", regression.StagedVersion, regression.ActiveVersion)
	}

	// The serving state is untouched by the rejection.
	if registry.active != "v1" {
		t.Errorf("registry active = %q, want v1 unchanged", registry.active)
	}
	if predictor.Active().Version != "v1" {
		t.Errorf("predictor active = %q, want v1 unchanged", predictor.Active().Version)
	}

	// The rejected candidate stays persisted in the Staged state for inspection.
	stored := registry.artifacts["v2"]
	if stored == nil || stored.State != StateStaged {
		t.Error("rejected artifact should remain stored as staged")
	}
}

func TestPromote_WithinTolerancePasses(t *testing.T) {
	t.Parallel()

	registry := newFakeRegistry()
	predictor := NewPredictor(nil)
	promoter := NewPromoter(registry, predictor, 0.05, nil)

	if err := promoter.Promote(stagedArtifact("v1", 0.80)); err != nil {
		t.Fatalf("first promotion failed: %v", err)
	}
	if err := promoter.Promote(stagedArtifact("v2", 0.78)); err != nil {
		t.Fatalf("promotion within tolerance failed: %v", err)
	}

	if registry.active != "v2" {
		t.Errorf("registry active = %q, want v2", registry.active)
	}
	if got := registry.artifacts["v1"].State; got != StateRetired {
		t.Errorf("previous artifact state = %v, want retired", got)
	}
}

func TestPromote_RetiresPreviousActive(t *testing.T) {
	t.Parallel()

	registry := newFakeRegistry()
	predictor := NewPredictor(nil)
	var seen []LifecycleEvent
	promoter := NewPromoter(registry, predictor, 0.01, func(ev LifecycleEvent) {
		seen = append(seen, ev)
	})

	if err := promoter.Promote(stagedArtifact("v1", 0.8)); err != nil {
		t.Fatalf("first promotion failed: %v", err)
	}
	seen = seen[:0]
	if err := promoter.Promote(stagedArtifact("v2", 0.85)); err != nil {
		t.Fatalf("second promotion failed: %v", err)
	}

	var retired bool
	for _, ev := range seen {
		if ev.Version == "v1" && ev.From == StateActive && ev.To == StateRetired {
			retired = true
		}
	}
	if !retired {
		t.Error("expected an active->retired event for the replaced artifact")
	}
}

func TestCheckGate(t *testing.T) {
	t.Parallel()

	if err := checkGate(stagedArtifact("s", 0.1), nil, 0); err != nil {
		t.Errorf("nil active should always pass, got %v", err)
	}
	if err := checkGate(stagedArtifact("s", 0.795), stagedArtifact("a", 0.80), 0.01); err != nil {
		t.Errorf("within tolerance should pass, got %v", err)
	}
	if err := checkGate(stagedArtifact("s", 0.78), stagedArtifact("a", 0.80), 0.01); err == nil {
		t.Error("regression beyond tolerance should fail")
	}
}
