package metrics

// Wrapper adapts Metrics to the narrow interfaces consumed by the
// features, ml, and assess packages, so those packages do not depend
// on Prometheus types directly.
type Wrapper struct {
	m *Metrics
}

// NewWrapper wraps a Metrics instance.
func NewWrapper(m *Metrics) *Wrapper {
	return &Wrapper{m: m}
}

func (w *Wrapper) FeatureExtractionsInc() { w.m.FeatureExtractions.Inc() }

func (w *Wrapper) FeatureErrorsInc() { w.m.FeatureErrors.Inc() }

func (w *Wrapper) MLPredictionsInc() { w.m.MLPredictions.Inc() }

func (w *Wrapper) MLFailuresInc() { w.m.MLFailures.Inc() }

func (w *Wrapper) MLLatencyObserve(sec float64) { w.m.MLLatency.Observe(sec) }

func (w *Wrapper) MLProbabilityObserve(p float64) { w.m.MLProbability.Observe(p) }

func (w *Wrapper) MLModelAgeSet(sec float64) { w.m.MLModelAge.Set(sec) }

func (w *Wrapper) AssessmentsInc(tier string) { w.m.AssessmentsTotal.WithLabelValues(tier).Inc() }

func (w *Wrapper) AssessmentFailuresInc() { w.m.AssessmentFailures.Inc() }
