// Command forestinspect prints the batch runs recorded by forestpredict -data.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"forest-predictor/internal/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatal().Err(err).Msg("inspect failed")
	}
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("forestinspect", flag.ContinueOnError)
	dataPath := fs.String("data", "./data", "Data directory path")
	runID := fs.String("run", "", "Show the predictions of one run")
	limit := fs.Int("limit", 20, "Maximum predictions to print with -run (0 prints all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := os.Stat(*dataPath); err != nil {
		return fmt.Errorf("data directory: %w", err)
	}

	store, err := storage.New(*dataPath)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	if *runID != "" {
		return printRun(stdout, store, *runID, *limit)
	}
	return printRuns(stdout, store)
}

func printRuns(w io.Writer, store *storage.Store) error {
	ids, err := store.ListRuns()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tSAMPLES\tTOTAL\tELAPSED\tMODEL")
	for _, id := range ids {
		run, err := store.GetRun(id)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
			run.RunID, run.StartedAt.Format(time.RFC3339), run.Count, run.Total,
			run.Elapsed.Round(time.Millisecond), run.ModelPath)
	}
	return tw.Flush()
}

func printRun(w io.Writer, store *storage.Store, runID string, limit int) error {
	run, err := store.GetRun(runID)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Run:      %s\n", run.RunID)
	fmt.Fprintf(w, "Model:    %s\n", run.ModelPath)
	fmt.Fprintf(w, "Started:  %s\n", run.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Samples:  %d\n", run.Count)
	fmt.Fprintf(w, "Total:    %d\n", run.Total)

	labels := make([]int, 0, len(run.Labels))
	for label := range run.Labels {
		labels = append(labels, label)
	}
	sort.Ints(labels)
	for _, label := range labels {
		fmt.Fprintf(w, "  label %d: %d\n", label, run.Labels[label])
	}

	records, err := store.GetPredictions(runID)
	if err != nil {
		return err
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tLABEL\tFEATURES")
	for _, r := range records {
		fmt.Fprintf(tw, "%d\t%d\t%v\n", r.Index, r.Label, r.Features)
	}
	return tw.Flush()
}
