package ml

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"forest-predictor/internal/forest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewService(t *testing.T) {
	s, m := newTestService(t, ServiceConfig{CacheSize: 16})

	info := s.Info()
	assert.Equal(t, 1, info.NEstimators)
	assert.Equal(t, testFeatures, info.NFeatures)
	assert.Equal(t, 2, info.NClasses)
	assert.Equal(t, []int{0, 1}, info.Classes)
	assert.False(t, info.LoadedAt.IsZero())
	assert.Zero(t, info.Reloads)
	assert.Equal(t, testFeatures, s.NFeatures())

	counts := m.snapshot()
	assert.Equal(t, 1, counts.trees)
	assert.Equal(t, testFeatures, counts.features)
}

func TestNewService_Errors(t *testing.T) {
	t.Run("missing path", func(t *testing.T) {
		_, err := NewService(ServiceConfig{}, nil)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewService(ServiceConfig{ModelPath: filepath.Join(t.TempDir(), "absent.json")}, nil)
		assert.Error(t, err)
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "model.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"model": {"n_classes": 3}}`), 0o600))
		_, err := NewService(ServiceConfig{ModelPath: path}, nil)
		assert.Error(t, err)
	})

	t.Run("nil predictor", func(t *testing.T) {
		_, err := NewServiceWithPredictor(nil, ServiceConfig{}, nil)
		assert.Error(t, err)
	})
}

func TestService_Predict(t *testing.T) {
	s, m := newTestService(t, ServiceConfig{})

	label, cached, err := s.Predict(features(0.4))
	require.NoError(t, err)
	assert.Equal(t, 0, label)
	assert.False(t, cached)

	label, _, err = s.Predict(features(0.6))
	require.NoError(t, err)
	assert.Equal(t, 1, label)

	counts := m.snapshot()
	assert.Equal(t, 2, counts.predictions)
	assert.Equal(t, map[int]int{0: 1, 1: 1}, counts.labels)
	assert.Zero(t, counts.cacheHits+counts.cacheMisses, "cache disabled")
}

func TestService_PredictDoesNotModifyInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	writeArtifact(t, path, stumpArtifact([2]int{0, 1}, 0.5, 100))
	s, _ := newTestService(t, ServiceConfig{ModelPath: path})

	in := features(100.6)
	label, _, err := s.Predict(in)
	require.NoError(t, err)

	assert.Equal(t, 1, label)
	assert.Equal(t, features(100.6), in)
}

func TestService_Cache(t *testing.T) {
	s, m := newTestService(t, ServiceConfig{CacheSize: 2})

	_, cached, err := s.Predict(features(1))
	require.NoError(t, err)
	assert.False(t, cached)

	label, cached, err := s.Predict(features(1))
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, 1, label)

	// Two new vectors evict the first from a two-entry cache.
	_, _, err = s.Predict(features(2))
	require.NoError(t, err)
	_, _, err = s.Predict(features(3))
	require.NoError(t, err)
	_, cached, err = s.Predict(features(1))
	require.NoError(t, err)
	assert.False(t, cached)

	counts := m.snapshot()
	assert.Equal(t, 1, counts.cacheHits)
	assert.Equal(t, 4, counts.cacheMisses)
	assert.Equal(t, 5, counts.predictions)

	health := s.GetHealthStatus()
	assert.InDelta(t, 0.2, health.CacheHitRate, 1e-9)
}

func TestService_InvalidLength(t *testing.T) {
	s, m := newTestService(t, ServiceConfig{CacheSize: 8})

	for i := 0; i < 2; i++ {
		_, cached, err := s.Predict([]float64{1, 2, 3})
		require.Error(t, err)
		assert.ErrorIs(t, err, forest.ErrInvalidArgument)
		assert.False(t, cached, "errors are never cached")
	}

	counts := m.snapshot()
	assert.Equal(t, 2, counts.errors)
	assert.Zero(t, counts.predictions)

	health := s.GetHealthStatus()
	assert.True(t, health.Healthy, "rejected requests do not make the service unhealthy")
	assert.InDelta(t, 1.0, health.ErrorRate, 1e-9)
	assert.NotEmpty(t, health.LastError)
}

func TestService_TreeWorkers(t *testing.T) {
	seq, _ := newTestService(t, ServiceConfig{})
	par, _ := newTestService(t, ServiceConfig{TreeWorkers: 4})

	for _, x := range []float64{-1, 0.5, 0.6, 3} {
		want, _, err := seq.Predict(features(x))
		require.NoError(t, err)
		got, _, err := par.Predict(features(x))
		require.NoError(t, err)
		assert.Equal(t, want, got, "x=%v", x)
	}
}

func TestService_Reload(t *testing.T) {
	path := modelFile(t)
	s, m := newTestService(t, ServiceConfig{ModelPath: path, CacheSize: 8})

	label, _, err := s.Predict(features(1))
	require.NoError(t, err)
	require.Equal(t, 1, label)
	_, cached, _ := s.Predict(features(1))
	require.True(t, cached)

	writeArtifact(t, path, stumpArtifact([2]int{7, 9}, 0.5, 0))
	require.NoError(t, s.Reload())

	label, cached, err = s.Predict(features(1))
	require.NoError(t, err)
	assert.Equal(t, 9, label)
	assert.False(t, cached, "a reload starts with an empty cache")

	assert.Equal(t, []int{7, 9}, s.Info().Classes)
	assert.EqualValues(t, 1, s.Info().Reloads)
	assert.Equal(t, 1, m.snapshot().reloads)
}

func TestService_ReloadFailureKeepsModel(t *testing.T) {
	path := modelFile(t)
	s, m := newTestService(t, ServiceConfig{ModelPath: path})

	writeAtomically(t, path, []byte(`{"scaler": {`))
	require.Error(t, s.Reload())

	label, _, err := s.Predict(features(1))
	require.NoError(t, err)
	assert.Equal(t, 1, label)

	counts := m.snapshot()
	assert.Equal(t, 1, counts.reloadFailures)
	assert.Zero(t, counts.reloads)
	assert.NotEmpty(t, s.GetHealthStatus().LastError)
}

func TestService_ReloadWithoutPath(t *testing.T) {
	p, err := forest.LoadFile(modelFile(t))
	require.NoError(t, err)

	s, err := NewServiceWithPredictor(p, ServiceConfig{}, nil)
	require.NoError(t, err)
	assert.Error(t, s.Reload())
}

func TestService_ConcurrentPredictAndReload(t *testing.T) {
	path := modelFile(t)
	s, _ := newTestService(t, ServiceConfig{ModelPath: path, CacheSize: 64, TreeWorkers: 2})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				label, _, err := s.Predict(features(float64(i % 3)))
				if err != nil {
					t.Errorf("predict failed: %v", err)
					return
				}
				if label != 0 && label != 1 {
					t.Errorf("unexpected label %d", label)
					return
				}
			}
		}(g)
	}

	for i := 0; i < 5; i++ {
		if err := s.Reload(); err != nil {
			t.Errorf("reload failed: %v", err)
		}
	}
	wg.Wait()
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, cacheKey([]float64{1, 2}), cacheKey([]float64{1, 2}))
	assert.NotEqual(t, cacheKey([]float64{1, 2}), cacheKey([]float64{2, 1}))
	assert.NotEqual(t, cacheKey([]float64{0}), cacheKey([]float64{0, 0}))
	assert.Len(t, cacheKey(make([]float64, testFeatures)), 8*testFeatures)
}
