// Command forestd serves random-forest predictions over HTTP and websocket.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"forest-predictor/internal/cfg"
	"forest-predictor/internal/logging"
	"forest-predictor/internal/metrics"
	"forest-predictor/internal/ml"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	closer, err := logging.Setup(logging.Options{Level: c.LogLevel, File: c.LogFile})
	if err != nil {
		log.Fatal().Err(err).Msg("logging setup failed")
	}
	defer closer.Close()

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	mw := metrics.NewWrapper(m)

	service, err := ml.NewService(ml.ServiceConfig{
		ModelPath:   c.ModelPath,
		CacheSize:   c.CacheSize,
		TreeWorkers: c.TreeWorkers,
	}, mw)
	if err != nil {
		log.Fatal().Err(err).Str("model", c.ModelPath).Msg("model load failed")
	}
	info := service.Info()
	log.Info().
		Str("model", c.ModelPath).
		Int("trees", info.NEstimators).
		Int("features", info.NFeatures).
		Ints("classes", info.Classes).
		Msg("model loaded")

	server := ml.NewModelServer(service, ml.ServerConfig{
		Port:           c.ServerPort,
		ReadTimeout:    c.ReadTimeout,
		WriteTimeout:   c.WriteTimeout,
		MetricsHandler: promhttp.Handler(),
	})

	var wg sync.WaitGroup
	startModelServer(ctx, &wg, server, cancel)
	startMetricsServer(ctx, &wg, c, cancel)
	if c.WatchModel {
		startWatcher(ctx, &wg, service)
	}

	waitForShutdown(ctx, cancel, &wg)
}

// startModelServer runs the prediction API until ctx is cancelled. A failure
// to listen cancels ctx.
func startModelServer(ctx context.Context, wg *sync.WaitGroup, server *ml.ModelServer, cancel context.CancelFunc) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("model server failed")
			cancel()
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown model server")
		}
	}()
}

// startMetricsServer serves /metrics and a liveness probe on the metrics port.
func startMetricsServer(ctx context.Context, wg *sync.WaitGroup, c cfg.Settings, cancel context.CancelFunc) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", c.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Str("addr", server.Addr).Msg("starting metrics server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
			cancel()
		}
	}()

	go func() {
		<-ctx.Done()
		if err := server.Shutdown(context.Background()); err != nil {
			log.Error().Err(err).Msg("failed to shutdown metrics server")
		}
	}()
}

func startWatcher(ctx context.Context, wg *sync.WaitGroup, service *ml.Service) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := service.Watch(ctx); err != nil {
			log.Error().Err(err).Msg("model watcher stopped")
		}
	}()
}

// waitForShutdown waits for shutdown signals and handles graceful shutdown
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, wg *sync.WaitGroup) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}

	log.Info().Msg("shutting down gracefully...")
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all goroutines stopped")
	case <-time.After(10 * time.Second):
		log.Warn().Msg("shutdown timeout, forcing exit")
	}
}
