// Package metrics provides Prometheus metrics collection for the risk
// assessment engine: assessment throughput and tier distribution, ML
// prediction latency and score distribution, and model promotion outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Assessment metrics
	AssessmentsTotal   *prometheus.CounterVec // Completed assessments, labeled by final tier
	AssessmentFailures prometheus.Counter     // Per-student assessment failures
	BatchDuration      prometheus.Histogram   // Duration of batch assessment runs
	RiskChangesTotal   prometheus.Counter     // Emitted risk-change events
	FeatureExtractions prometheus.Counter     // Successful feature extractions
	FeatureErrors      prometheus.Counter     // Extraction failures (insufficient data)

	// ML metrics
	MLPredictions prometheus.Counter   // Total predictions served
	MLFailures    prometheus.Counter   // Prediction failures (schema drift, no model)
	MLLatency     prometheus.Histogram // Prediction latency in seconds
	MLProbability prometheus.Histogram // Distribution of dropout probabilities
	MLModelAge    prometheus.Gauge     // Age of the active model in seconds

	// Training and promotion metrics
	PromotionsTotal    prometheus.Counter // Successful model promotions
	PromotionsRejected prometheus.Counter // Promotions rejected by the quality gate
}

// New creates and registers all metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics against a custom registry, keeping test
// collection isolated from the global one.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		AssessmentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "assessments_total",
			Help: "Total number of completed risk assessments by final tier",
		}, []string{"tier"}),
		AssessmentFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "assessment_failures_total",
			Help: "Total number of per-student assessment failures",
		}),
		BatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "assessment_batch_duration_seconds",
			Help:    "Duration of batch assessment runs in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}),
		RiskChangesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "risk_changes_total",
			Help: "Total number of risk-change events emitted",
		}),
		FeatureExtractions: factory.NewCounter(prometheus.CounterOpts{
			Name: "feature_extractions_total",
			Help: "Total number of successful feature extractions",
		}),
		FeatureErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "feature_errors_total",
			Help: "Total number of feature extraction failures",
		}),
		MLPredictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_predictions_total",
			Help: "Total number of ML predictions served",
		}),
		MLFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_failures_total",
			Help: "Total number of ML prediction failures",
		}),
		MLLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_latency_seconds",
			Help:    "ML prediction latency in seconds",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		MLProbability: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_dropout_probability",
			Help:    "Distribution of predicted dropout probabilities",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		MLModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ml_model_age_seconds",
			Help: "Age of the active model artifact in seconds",
		}),
		PromotionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "model_promotions_total",
			Help: "Total number of successful model promotions",
		}),
		PromotionsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "model_promotions_rejected_total",
			Help: "Total number of promotions rejected by the quality gate",
		}),
	}
}
