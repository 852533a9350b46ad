// Package metrics provides Prometheus metrics collection for the forest
// prediction service. It defines the prediction, cache, model lifecycle, and
// batch counters exposed via the Prometheus metrics endpoint.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the prediction service.
type Metrics struct {
	// Prediction metrics
	Predictions       prometheus.Counter     // Total number of predictions served
	PredictionErrors  prometheus.Counter     // Predictions rejected with an error
	PredictionLatency prometheus.Histogram   // End-to-end prediction latency
	PredictedLabels   *prometheus.CounterVec // Predictions by returned label

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// Model lifecycle metrics
	ModelReloads       prometheus.Counter // Successful model reloads
	ModelReloadFailure prometheus.Counter // Reloads that kept the previous model
	ModelTrees         prometheus.Gauge   // Trees in the loaded forest
	ModelFeatures      prometheus.Gauge   // Feature count expected by the loaded forest

	// Batch metrics
	BatchSamples  prometheus.Counter   // Samples scored by batch runs
	BatchDuration prometheus.Histogram // Wall time of a batch run

	// Streaming metrics
	StreamConnections prometheus.Gauge // Open websocket prediction streams
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		Predictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "forest_predictions_total",
			Help: "Total number of predictions served",
		}),
		PredictionErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "forest_prediction_errors_total",
			Help: "Total number of predictions rejected with an error",
		}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "forest_prediction_latency_seconds",
			Help:    "Prediction latency in seconds (end-to-end)",
			Buckets: prometheus.ExponentialBuckets(0.000001, 4, 12),
		}),
		PredictedLabels: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "forest_predicted_labels_total",
			Help: "Predictions by returned class label",
		}, []string{"label"}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "forest_cache_hits_total",
			Help: "Predictions answered from the cache",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "forest_cache_misses_total",
			Help: "Predictions that had to walk the forest",
		}),
		ModelReloads: factory.NewCounter(prometheus.CounterOpts{
			Name: "forest_model_reloads_total",
			Help: "Total number of successful model reloads",
		}),
		ModelReloadFailure: factory.NewCounter(prometheus.CounterOpts{
			Name: "forest_model_reload_failures_total",
			Help: "Total number of failed model reloads",
		}),
		ModelTrees: factory.NewGauge(prometheus.GaugeOpts{
			Name: "forest_model_trees",
			Help: "Number of trees in the loaded model",
		}),
		ModelFeatures: factory.NewGauge(prometheus.GaugeOpts{
			Name: "forest_model_features",
			Help: "Number of features expected by the loaded model",
		}),
		BatchSamples: factory.NewCounter(prometheus.CounterOpts{
			Name: "forest_batch_samples_total",
			Help: "Total number of samples scored by batch runs",
		}),
		BatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "forest_batch_duration_seconds",
			Help:    "Duration of batch runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		StreamConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "forest_stream_connections",
			Help: "Number of open websocket prediction streams",
		}),
	}
}

// ObservePrediction records one successful prediction.
func (m *Metrics) ObservePrediction(label int, seconds float64) {
	m.Predictions.Inc()
	m.PredictionLatency.Observe(seconds)
	m.PredictedLabels.WithLabelValues(strconv.Itoa(label)).Inc()
}

// SetModel records the shape of a freshly loaded model.
func (m *Metrics) SetModel(trees, features int) {
	m.ModelTrees.Set(float64(trees))
	m.ModelFeatures.Set(float64(features))
}
