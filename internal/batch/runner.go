// Package batch scores sample files against a shared forest predictor with a
// bounded worker pool and reports the aggregated outcome.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"forest-predictor/internal/sample"

	"github.com/rs/zerolog/log"
)

// Predictor classifies a feature vector. The vector may be modified.
type Predictor interface {
	Predict(features []float64) (int, error)
}

// parallelPredictor is implemented by predictors that can spread one
// prediction over several goroutines.
type parallelPredictor interface {
	PredictParallel(features []float64, workers int) (int, error)
}

// Recorder receives every scored sample. Implementations must be safe for
// concurrent use.
type Recorder interface {
	Record(index int, s sample.Sample, label int) error
}

// MetricsInterface is the subset of metrics a run reports.
type MetricsInterface interface {
	BatchSamplesAdd(n int)
	BatchDurationObserve(seconds float64)
}

// Config tunes a Runner. Zero values select sequential scoring with no
// recorder and no metrics.
type Config struct {
	Workers     int
	TreeWorkers int
	Recorder    Recorder
	Metrics     MetricsInterface
}

// Result holds the outcome of a run.
type Result struct {
	Total     int         // Sum of every predicted label
	Count     int         // Samples scored
	Counts    map[int]int // Samples per label
	Labels    []int       // Label of each sample, in input order
	StartTime time.Time
	EndTime   time.Time
	Elapsed   time.Duration
}

// Runner scores samples against one predictor.
type Runner struct {
	predictor   Predictor
	workers     int
	treeWorkers int
	recorder    Recorder
	metrics     MetricsInterface
}

// NewRunner creates a Runner around p.
func NewRunner(p Predictor, config Config) *Runner {
	workers := config.Workers
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		predictor:   p,
		workers:     workers,
		treeWorkers: config.TreeWorkers,
		recorder:    config.Recorder,
		metrics:     config.Metrics,
	}
}

// Run scores every sample. The first prediction or recorder error stops the
// run and is returned; so does cancellation of ctx.
func (r *Runner) Run(ctx context.Context, samples []sample.Sample) (Result, error) {
	start := time.Now()

	log.Info().
		Int("samples", len(samples)).
		Int("workers", r.workers).
		Msg("Starting batch run")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	labels := make([]int, len(samples))
	jobs := make(chan int)

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	workers := min(r.workers, max(len(samples), 1))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			buf := make([]float64, 0, sample.NumFeatures)
			for i := range jobs {
				buf = samples[i].AppendVector(buf[:0])
				label, err := r.predict(buf)
				if err != nil {
					fail(fmt.Errorf("sample %d: %w", i, err))
					continue
				}
				labels[i] = label
				if r.recorder != nil {
					if err := r.recorder.Record(i, samples[i], label); err != nil {
						fail(fmt.Errorf("record sample %d: %w", i, err))
					}
				}
			}
		}()
	}

	sent := 0
dispatch:
	for i := range samples {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- i:
			sent++
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return Result{}, firstErr
	}
	if sent < len(samples) {
		return Result{}, fmt.Errorf("batch run interrupted after %d of %d samples: %w", sent, len(samples), ctx.Err())
	}

	end := time.Now()
	result := Result{
		Count:     len(samples),
		Counts:    make(map[int]int),
		Labels:    labels,
		StartTime: start,
		EndTime:   end,
		Elapsed:   end.Sub(start),
	}
	for _, label := range labels {
		result.Total += label
		result.Counts[label]++
	}

	if r.metrics != nil {
		r.metrics.BatchSamplesAdd(result.Count)
		r.metrics.BatchDurationObserve(result.Elapsed.Seconds())
	}

	log.Info().
		Int("samples", result.Count).
		Int("total", result.Total).
		Dur("elapsed", result.Elapsed).
		Msg("Batch run complete")

	return result, nil
}

func (r *Runner) predict(features []float64) (int, error) {
	if r.treeWorkers > 1 {
		if pp, ok := r.predictor.(parallelPredictor); ok {
			return pp.PredictParallel(features, r.treeWorkers)
		}
	}
	return r.predictor.Predict(features)
}
