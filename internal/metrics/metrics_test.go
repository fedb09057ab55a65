package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"edutrack/internal/assess"
	"edutrack/internal/features"
	"edutrack/internal/ml"
)

// The wrapper must satisfy every consumer-side metrics interface.
var (
	_ features.MetricsTracker = (*Wrapper)(nil)
	_ ml.MetricsInterface     = (*Wrapper)(nil)
	_ assess.Metrics          = (*Wrapper)(nil)
)

func TestNewWithRegistry(t *testing.T) {
	t.Parallel()

	// Two isolated registries must not collide on registration.
	m1 := NewWithRegistry(prometheus.NewRegistry())
	m2 := NewWithRegistry(prometheus.NewRegistry())
	if m1 == nil || m2 == nil {
		t.Fatal("NewWithRegistry returned nil")
	}
}

func TestWrapper_Counters(t *testing.T) {
	t.Parallel()

	m := NewWithRegistry(prometheus.NewRegistry())
	w := NewWrapper(m)

	w.FeatureExtractionsInc()
	w.FeatureExtractionsInc()
	w.FeatureErrorsInc()
	w.MLPredictionsInc()
	w.MLFailuresInc()
	w.MLLatencyObserve(0.002)
	w.MLProbabilityObserve(0.7)
	w.MLModelAgeSet(123)
	w.AssessmentsInc("red")
	w.AssessmentsInc("red")
	w.AssessmentsInc("green")
	w.AssessmentFailuresInc()

	if got := testutil.ToFloat64(m.FeatureExtractions); got != 2 {
		t.Errorf("feature extractions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.FeatureErrors); got != 1 {
		t.Errorf("feature errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.MLPredictions); got != 1 {
		t.Errorf("ml predictions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.MLModelAge); got != 123 {
		t.Errorf("model age = %v, want 123", got)
	}
	if got := testutil.ToFloat64(m.AssessmentsTotal.WithLabelValues("red")); got != 2 {
		t.Errorf("red assessments = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.AssessmentsTotal.WithLabelValues("green")); got != 1 {
		t.Errorf("green assessments = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.AssessmentFailures); got != 1 {
		t.Errorf("assessment failures = %v, want 1", got)
	}
}
