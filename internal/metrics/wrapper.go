package metrics

// MetricsWrapper adapts Metrics to the narrow interfaces consumed by the
// model service and the batch runner.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) PredictionObserve(label int, seconds float64) {
	w.m.ObservePrediction(label, seconds)
}

func (w *MetricsWrapper) PredictionErrorsInc() {
	w.m.PredictionErrors.Inc()
}

func (w *MetricsWrapper) CacheHitsInc() {
	w.m.CacheHits.Inc()
}

func (w *MetricsWrapper) CacheMissesInc() {
	w.m.CacheMisses.Inc()
}

func (w *MetricsWrapper) ModelReloadsInc() {
	w.m.ModelReloads.Inc()
}

func (w *MetricsWrapper) ModelReloadFailuresInc() {
	w.m.ModelReloadFailure.Inc()
}

func (w *MetricsWrapper) ModelLoaded(trees, features int) {
	w.m.SetModel(trees, features)
}

func (w *MetricsWrapper) StreamConnectionsAdd(delta float64) {
	w.m.StreamConnections.Add(delta)
}

func (w *MetricsWrapper) BatchSamplesAdd(n int) {
	w.m.BatchSamples.Add(float64(n))
}

func (w *MetricsWrapper) BatchDurationObserve(seconds float64) {
	w.m.BatchDuration.Observe(seconds)
}
