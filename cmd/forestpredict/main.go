// Command forestpredict scores a file of samples with a random-forest model
// and prints the sum of the predicted labels.
//
//	forestpredict <model_json> <sample_csv>
//	forestpredict -model model.json -samples samples.csv [-workers n] [-data dir] [-report dir]
//	forestpredict -remote http://localhost:8090 [-stream] -samples samples.csv
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"forest-predictor/internal/batch"
	"forest-predictor/internal/cfg"
	"forest-predictor/internal/client"
	"forest-predictor/internal/forest"
	"forest-predictor/internal/logging"
	"forest-predictor/internal/metrics"
	"forest-predictor/internal/storage"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var errUsage = errors.New("usage: forestpredict [flags] <model_json> <sample_csv>")

type options struct {
	modelPath   string
	samplesPath string
	workers     int
	treeWorkers int
	dataPath    string
	remote      string
	stream      bool
	reportDir   string
	metricsFile string
	logLevel    string
	logFile     string
}

type remoteScorer interface {
	Predict(ctx context.Context, features []float64) (int, error)
}

// remotePredictor scores samples through a running forestd.
type remotePredictor struct {
	ctx    context.Context
	remote remoteScorer
}

func (r remotePredictor) Predict(features []float64) (int, error) {
	return r.remote.Predict(r.ctx, features)
}

func main() {
	// A missing .env is not an error
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatal().Err(err).Msg("forestpredict failed")
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	settings, err := cfg.Load()
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	opts, err := parseFlags(args, settings, stderr)
	if err != nil {
		return err
	}

	closer, err := logging.Setup(logging.Options{Level: opts.logLevel, File: opts.logFile, Console: stderr})
	if err != nil {
		return err
	}
	defer closer.Close()

	samples, err := batch.LoadSamples(opts.samplesPath)
	if err != nil {
		return err
	}

	predictor, cleanup, err := buildPredictor(ctx, opts)
	if err != nil {
		return err
	}
	defer cleanup()

	runID := fmt.Sprintf("run-%s", time.Now().UTC().Format("20060102T150405.000000000"))
	reg := prometheus.NewRegistry()
	config := batch.Config{
		Workers:     opts.workers,
		TreeWorkers: opts.treeWorkers,
		Metrics:     metrics.NewWrapper(metrics.NewWithRegistry(reg)),
	}

	var store *storage.Store
	if opts.dataPath != "" {
		if err := os.MkdirAll(opts.dataPath, 0o755); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
		store, err = storage.New(opts.dataPath)
		if err != nil {
			return err
		}
		defer store.Close()
		config.Recorder = store.Recorder(runID)
	}

	result, err := batch.NewRunner(predictor, config).Run(ctx, samples)
	if err != nil {
		return err
	}

	if store != nil {
		summary := storage.RunSummary{
			RunID:     runID,
			ModelPath: opts.modelPath,
			Count:     result.Count,
			Total:     result.Total,
			Labels:    result.Counts,
			StartedAt: result.StartTime,
			Elapsed:   result.Elapsed,
		}
		if opts.remote != "" {
			summary.ModelPath = opts.remote
		}
		if err := store.StoreRun(summary); err != nil {
			return err
		}
		log.Info().Str("run_id", runID).Str("data", opts.dataPath).Msg("run stored")
	}

	if opts.reportDir != "" {
		reporter := batch.NewReporter(result, samples, opts.reportDir)
		if err := reporter.GenerateReport(); err != nil {
			return err
		}
		reporter.PrintSummary(stderr)
	}

	if opts.metricsFile != "" {
		// Textfile collector format, picked up by node_exporter.
		if err := prometheus.WriteToTextfile(opts.metricsFile, reg); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	fmt.Fprintln(stdout, result.Total)
	return nil
}

func parseFlags(args []string, settings cfg.Settings, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("forestpredict", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.StringVar(&opts.modelPath, "model", "", "Path to the model JSON (default from config)")
	fs.StringVar(&opts.samplesPath, "samples", "", "Path to the samples CSV, JSON or NDJSON file")
	fs.IntVar(&opts.workers, "workers", settings.Workers, "Concurrent sample workers")
	fs.IntVar(&opts.treeWorkers, "tree-workers", settings.TreeWorkers, "Goroutines per prediction")
	fs.StringVar(&opts.dataPath, "data", settings.DataPath, "Directory for the prediction store (disabled when empty)")
	fs.StringVar(&opts.remote, "remote", "", "Score through a forestd server at this URL instead of loading the model")
	fs.BoolVar(&opts.stream, "stream", false, "With -remote, score over one websocket stream instead of HTTP requests")
	fs.StringVar(&opts.reportDir, "report", "", "Directory for batch reports")
	fs.StringVar(&opts.metricsFile, "metrics-file", "", "Write run metrics in Prometheus text format to this file")
	fs.StringVar(&opts.logLevel, "log-level", settings.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&opts.logFile, "log-file", settings.LogFile, "Rotated log file")

	// flag stops at the first positional argument; keep parsing after it so
	// flags may follow the model and samples paths.
	var positional []string
	rest := args
	for {
		if err := fs.Parse(rest); err != nil {
			return options{}, err
		}
		rest = fs.Args()
		if len(rest) == 0 {
			break
		}
		positional = append(positional, rest[0])
		rest = rest[1:]
	}

	switch len(positional) {
	case 0:
	case 2:
		opts.modelPath = positional[0]
		opts.samplesPath = positional[1]
	default:
		fmt.Fprintln(stderr, errUsage)
		return options{}, errUsage
	}

	if opts.modelPath == "" {
		opts.modelPath = settings.ModelPath
	}
	if opts.samplesPath == "" {
		opts.samplesPath = settings.SamplesPath
	}
	if opts.samplesPath == "" {
		fmt.Fprintln(stderr, errUsage)
		return options{}, errUsage
	}

	return opts, nil
}

func buildPredictor(ctx context.Context, opts options) (batch.Predictor, func(), error) {
	nop := func() {}

	if opts.remote == "" {
		p, err := forest.LoadFile(opts.modelPath)
		if err != nil {
			return nil, nop, err
		}
		log.Info().
			Str("model", opts.modelPath).
			Int("trees", p.Forest().NEstimators()).
			Int("features", p.Forest().NFeatures()).
			Msg("model loaded")
		return p, nop, nil
	}

	c, err := client.New(opts.remote, client.Options{RetryCount: 2})
	if err != nil {
		return nil, nop, err
	}
	info, err := c.ModelInfo(ctx)
	if err != nil {
		return nil, nop, fmt.Errorf("remote model unavailable: %w", err)
	}
	log.Info().
		Str("remote", opts.remote).
		Bool("stream", opts.stream).
		Int("trees", info.NEstimators).
		Int("features", info.NFeatures).
		Msg("using remote model")

	if opts.stream {
		s, err := client.DialStream(ctx, opts.remote)
		if err != nil {
			return nil, nop, err
		}
		return remotePredictor{ctx: ctx, remote: s}, func() { s.Close() }, nil
	}
	return remotePredictor{ctx: ctx, remote: c}, nop, nil
}
