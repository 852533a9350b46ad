package ml

import "sync"

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu sync.Mutex
	c  mockCounts
}

type mockCounts struct {
	predictions    int
	labels         map[int]int
	errors         int
	cacheHits      int
	cacheMisses    int
	reloads        int
	reloadFailures int
	trees          int
	features       int
	streams        float64
}

func (m *MockMetrics) PredictionObserve(label int, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.c.predictions++
	if m.c.labels == nil {
		m.c.labels = make(map[int]int)
	}
	m.c.labels[label]++
}

func (m *MockMetrics) PredictionErrorsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.c.errors++
}

func (m *MockMetrics) CacheHitsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.c.cacheHits++
}

func (m *MockMetrics) CacheMissesInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.c.cacheMisses++
}

func (m *MockMetrics) ModelReloadsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.c.reloads++
}

func (m *MockMetrics) ModelReloadFailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.c.reloadFailures++
}

func (m *MockMetrics) ModelLoaded(trees, features int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.c.trees = trees
	m.c.features = features
}

func (m *MockMetrics) StreamConnectionsAdd(delta float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.c.streams += delta
}

func (m *MockMetrics) snapshot() mockCounts {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.c
	out.labels = make(map[int]int, len(m.c.labels))
	for k, v := range m.c.labels {
		out.labels[k] = v
	}
	return out
}
