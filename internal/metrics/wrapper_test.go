package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestMetrics() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

func TestNewWithRegistry_RegistersAll(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	// Vec metrics only appear after a label value is touched.
	m.PredictedLabels.WithLabelValues("1")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	if len(families) != 13 {
		t.Errorf("expected 13 metric families, got %d", len(families))
	}
}

func TestNewWithRegistry_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewWithRegistry(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	NewWithRegistry(reg)
}

func TestMetricsWrapper_PredictionObserve(t *testing.T) {
	m := newTestMetrics()
	wrapper := NewWrapper(m)

	wrapper.PredictionObserve(1, 0.002)
	wrapper.PredictionObserve(1, 0.004)
	wrapper.PredictionObserve(0, 0.001)

	if got := testutil.ToFloat64(m.Predictions); got != 3 {
		t.Errorf("expected 3 predictions, got %f", got)
	}
	if got := testutil.ToFloat64(m.PredictedLabels.WithLabelValues("1")); got != 2 {
		t.Errorf("expected 2 predictions of label 1, got %f", got)
	}
	if got := testutil.ToFloat64(m.PredictedLabels.WithLabelValues("0")); got != 1 {
		t.Errorf("expected 1 prediction of label 0, got %f", got)
	}
	if got := testutil.CollectAndCount(m.PredictionLatency); got != 1 {
		t.Errorf("expected latency histogram to be collected once, got %d", got)
	}
}

func TestMetricsWrapper_Counters(t *testing.T) {
	m := newTestMetrics()
	wrapper := NewWrapper(m)

	tests := []struct {
		name    string
		inc     func()
		counter prometheus.Counter
	}{
		{"prediction errors", wrapper.PredictionErrorsInc, m.PredictionErrors},
		{"cache hits", wrapper.CacheHitsInc, m.CacheHits},
		{"cache misses", wrapper.CacheMissesInc, m.CacheMisses},
		{"model reloads", wrapper.ModelReloadsInc, m.ModelReloads},
		{"model reload failures", wrapper.ModelReloadFailuresInc, m.ModelReloadFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			numIncrements := 5
			for i := 0; i < numIncrements; i++ {
				tt.inc()
			}
			if got := testutil.ToFloat64(tt.counter); got != float64(numIncrements) {
				t.Errorf("expected %d, got %f", numIncrements, got)
			}
		})
	}
}

func TestMetricsWrapper_ModelLoaded(t *testing.T) {
	m := newTestMetrics()
	wrapper := NewWrapper(m)

	wrapper.ModelLoaded(100, 13)
	if got := testutil.ToFloat64(m.ModelTrees); got != 100 {
		t.Errorf("expected 100 trees, got %f", got)
	}
	if got := testutil.ToFloat64(m.ModelFeatures); got != 13 {
		t.Errorf("expected 13 features, got %f", got)
	}

	wrapper.ModelLoaded(50, 13)
	if got := testutil.ToFloat64(m.ModelTrees); got != 50 {
		t.Errorf("expected gauge to be replaced with 50, got %f", got)
	}
}

func TestMetricsWrapper_StreamConnections(t *testing.T) {
	m := newTestMetrics()
	wrapper := NewWrapper(m)

	wrapper.StreamConnectionsAdd(1)
	wrapper.StreamConnectionsAdd(1)
	wrapper.StreamConnectionsAdd(-1)

	if got := testutil.ToFloat64(m.StreamConnections); got != 1 {
		t.Errorf("expected 1 open stream, got %f", got)
	}
}

func TestMetricsWrapper_Batch(t *testing.T) {
	m := newTestMetrics()
	wrapper := NewWrapper(m)

	wrapper.BatchSamplesAdd(250)
	wrapper.BatchSamplesAdd(50)
	wrapper.BatchDurationObserve(1.5)

	if got := testutil.ToFloat64(m.BatchSamples); got != 300 {
		t.Errorf("expected 300 batch samples, got %f", got)
	}
	if got := testutil.CollectAndCount(m.BatchDuration); got != 1 {
		t.Errorf("expected batch duration histogram to be collected once, got %d", got)
	}
}
