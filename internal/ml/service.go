// Package ml serves random-forest predictions. A Service owns the loaded
// model, swaps it atomically on reload, and caches recent answers; the
// ModelServer exposes it over HTTP and websocket.
package ml

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"forest-predictor/internal/forest"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
)

// MetricsInterface defines metrics methods needed by the service.
type MetricsInterface interface {
	PredictionObserve(label int, seconds float64)
	PredictionErrorsInc()
	CacheHitsInc()
	CacheMissesInc()
	ModelReloadsInc()
	ModelReloadFailuresInc()
	ModelLoaded(trees, features int)
	StreamConnectionsAdd(delta float64)
}

// ServiceConfig contains configuration for the service.
type ServiceConfig struct {
	ModelPath     string
	CacheSize     int           // 0 disables the cache
	TreeWorkers   int           // >1 evaluates trees in parallel
	WatchDebounce time.Duration // delay between a file event and the reload
}

// loadedModel is one generation of the model. The cache belongs to the
// generation so answers never outlive the model that produced them.
type loadedModel struct {
	predictor *forest.Predictor
	cache     *lru.Cache[string, int]
	loadedAt  time.Time
}

// ModelInfo describes the model currently being served.
type ModelInfo struct {
	NEstimators int       `json:"n_estimators"`
	NFeatures   int       `json:"n_features"`
	NClasses    int       `json:"n_classes"`
	Classes     []int     `json:"classes"`
	Path        string    `json:"path,omitempty"`
	LoadedAt    time.Time `json:"loaded_at"`
	Reloads     int64     `json:"reloads"`
}

type HealthStatus struct {
	Healthy         bool      `json:"healthy"`
	LastCheck       time.Time `json:"last_check"`
	ModelLoaded     bool      `json:"model_loaded"`
	AverageLatency  float64   `json:"average_latency_ms"`
	PredictionCount int64     `json:"prediction_count"`
	ErrorRate       float64   `json:"error_rate"`
	CacheHitRate    float64   `json:"cache_hit_rate"`
	LastError       string    `json:"last_error,omitempty"`
	UptimeSeconds   float64   `json:"uptime_seconds"`
}

type PerformanceStats struct {
	mu           sync.RWMutex
	predictions  int64
	errors       int64
	cacheHits    int64
	cacheMisses  int64
	totalLatency time.Duration
	startTime    time.Time
	lastError    string
}

// Service answers predictions from the current model generation.
type Service struct {
	config    ServiceConfig
	model     atomic.Pointer[loadedModel]
	metrics   MetricsInterface
	perfStats *PerformanceStats
	reloads   atomic.Int64
	reloadMu  sync.Mutex
}

// NewService loads the model at config.ModelPath.
func NewService(config ServiceConfig, metrics MetricsInterface) (*Service, error) {
	if config.ModelPath == "" {
		return nil, errors.New("model path is required")
	}

	predictor, err := forest.LoadFile(config.ModelPath)
	if err != nil {
		return nil, err
	}
	return NewServiceWithPredictor(predictor, config, metrics)
}

// NewServiceWithPredictor serves an already built predictor. Reload and
// Watch still read config.ModelPath when it is set.
func NewServiceWithPredictor(predictor *forest.Predictor, config ServiceConfig, metrics MetricsInterface) (*Service, error) {
	if predictor == nil {
		return nil, errors.New("predictor is required")
	}

	s := &Service{
		config:  config,
		metrics: metrics,
		perfStats: &PerformanceStats{
			startTime: time.Now(),
		},
	}
	if err := s.install(predictor); err != nil {
		return nil, err
	}

	f := predictor.Forest()
	log.Info().
		Str("model_path", config.ModelPath).
		Int("trees", f.NEstimators()).
		Int("features", f.NFeatures()).
		Int("cache_size", config.CacheSize).
		Msg("model service ready")

	return s, nil
}

func (s *Service) install(predictor *forest.Predictor) error {
	m := &loadedModel{
		predictor: predictor,
		loadedAt:  time.Now(),
	}
	if s.config.CacheSize > 0 {
		cache, err := lru.New[string, int](s.config.CacheSize)
		if err != nil {
			return fmt.Errorf("create prediction cache: %w", err)
		}
		m.cache = cache
	}
	s.model.Store(m)

	if s.metrics != nil {
		f := predictor.Forest()
		s.metrics.ModelLoaded(f.NEstimators(), f.NFeatures())
	}
	return nil
}

// Predict classifies a copy of features, so the caller's slice is never
// modified. cached reports whether the answer came from the cache.
func (s *Service) Predict(features []float64) (label int, cached bool, err error) {
	start := time.Now()
	m := s.model.Load()

	var key string
	if m.cache != nil {
		key = cacheKey(features)
		if label, ok := m.cache.Get(key); ok {
			s.recordCacheHit()
			s.recordPrediction(label, time.Since(start))
			return label, true, nil
		}
		s.recordCacheMiss()
	}

	buf := make([]float64, len(features))
	copy(buf, features)

	if s.config.TreeWorkers > 1 {
		label, err = m.predictor.PredictParallel(buf, s.config.TreeWorkers)
	} else {
		label, err = m.predictor.Predict(buf)
	}
	if err != nil {
		s.recordError(err)
		return 0, false, err
	}

	if m.cache != nil {
		m.cache.Add(key, label)
	}
	s.recordPrediction(label, time.Since(start))
	return label, false, nil
}

// Reload reads the model file again and swaps it in. On failure the current
// model keeps serving.
func (s *Service) Reload() error {
	if s.config.ModelPath == "" {
		return errors.New("no model path to reload from")
	}

	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	predictor, err := forest.LoadFile(s.config.ModelPath)
	if err == nil {
		err = s.install(predictor)
	}
	if err != nil {
		s.setLastError(err)
		if s.metrics != nil {
			s.metrics.ModelReloadFailuresInc()
		}
		log.Warn().Err(err).Str("model_path", s.config.ModelPath).Msg("model reload failed, keeping previous model")
		return fmt.Errorf("reload model: %w", err)
	}

	s.reloads.Add(1)
	if s.metrics != nil {
		s.metrics.ModelReloadsInc()
	}
	log.Info().
		Str("model_path", s.config.ModelPath).
		Int("trees", predictor.Forest().NEstimators()).
		Msg("model reloaded")
	return nil
}

// Info describes the model currently being served.
func (s *Service) Info() ModelInfo {
	m := s.model.Load()
	f := m.predictor.Forest()
	classes := f.Classes()
	return ModelInfo{
		NEstimators: f.NEstimators(),
		NFeatures:   f.NFeatures(),
		NClasses:    f.NClasses(),
		Classes:     classes[:],
		Path:        s.config.ModelPath,
		LoadedAt:    m.loadedAt,
		Reloads:     s.reloads.Load(),
	}
}

// NFeatures is the vector length the current model expects.
func (s *Service) NFeatures() int {
	return s.model.Load().predictor.Forest().NFeatures()
}

// GetHealthStatus reports the service's health. A service is healthy as
// long as a model is loaded; rejected requests do not make it unhealthy.
func (s *Service) GetHealthStatus() *HealthStatus {
	s.perfStats.mu.RLock()
	predictions := s.perfStats.predictions
	errCount := s.perfStats.errors
	cacheHits := s.perfStats.cacheHits
	cacheMisses := s.perfStats.cacheMisses
	totalLatency := s.perfStats.totalLatency
	lastError := s.perfStats.lastError
	uptime := time.Since(s.perfStats.startTime)
	s.perfStats.mu.RUnlock()

	var avgLatency float64
	if predictions > 0 {
		avgLatency = float64(totalLatency.Microseconds()) / 1000 / float64(predictions)
	}

	var errorRate float64
	if attempts := predictions + errCount; attempts > 0 {
		errorRate = float64(errCount) / float64(attempts)
	}

	var cacheHitRate float64
	if total := cacheHits + cacheMisses; total > 0 {
		cacheHitRate = float64(cacheHits) / float64(total)
	}

	modelLoaded := s.model.Load() != nil
	return &HealthStatus{
		Healthy:         modelLoaded,
		LastCheck:       time.Now(),
		ModelLoaded:     modelLoaded,
		AverageLatency:  avgLatency,
		PredictionCount: predictions,
		ErrorRate:       errorRate,
		CacheHitRate:    cacheHitRate,
		LastError:       lastError,
		UptimeSeconds:   uptime.Seconds(),
	}
}

// Performance tracking methods
func (s *Service) recordPrediction(label int, d time.Duration) {
	s.perfStats.mu.Lock()
	s.perfStats.predictions++
	s.perfStats.totalLatency += d
	s.perfStats.mu.Unlock()

	if s.metrics != nil {
		s.metrics.PredictionObserve(label, d.Seconds())
	}
}

func (s *Service) recordError(err error) {
	s.perfStats.mu.Lock()
	s.perfStats.errors++
	s.perfStats.lastError = err.Error()
	s.perfStats.mu.Unlock()

	if s.metrics != nil {
		s.metrics.PredictionErrorsInc()
	}
}

func (s *Service) setLastError(err error) {
	s.perfStats.mu.Lock()
	s.perfStats.lastError = err.Error()
	s.perfStats.mu.Unlock()
}

func (s *Service) recordCacheHit() {
	s.perfStats.mu.Lock()
	s.perfStats.cacheHits++
	s.perfStats.mu.Unlock()

	if s.metrics != nil {
		s.metrics.CacheHitsInc()
	}
}

func (s *Service) recordCacheMiss() {
	s.perfStats.mu.Lock()
	s.perfStats.cacheMisses++
	s.perfStats.mu.Unlock()

	if s.metrics != nil {
		s.metrics.CacheMissesInc()
	}
}

// cacheKey is the exact bit pattern of the raw vector.
func cacheKey(features []float64) string {
	buf := make([]byte, 8*len(features))
	for i, v := range features {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return string(buf)
}
