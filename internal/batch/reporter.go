package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"forest-predictor/internal/sample"

	"github.com/rs/zerolog/log"
)

// Reporter writes the outcome of a batch run to disk.
type Reporter struct {
	result     Result
	samples    []sample.Sample
	outputPath string
}

// NewReporter creates a reporter for result. samples must be the slice the
// run scored.
func NewReporter(result Result, samples []sample.Sample, outputPath string) *Reporter {
	return &Reporter{
		result:     result,
		samples:    samples,
		outputPath: outputPath,
	}
}

// GenerateReport writes the summary, prediction log and JSON report.
func (r *Reporter) GenerateReport() error {
	if len(r.samples) != len(r.result.Labels) {
		return fmt.Errorf("report has %d samples but %d labels", len(r.samples), len(r.result.Labels))
	}

	if err := os.MkdirAll(r.outputPath, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := r.generateSummary(); err != nil {
		return err
	}
	if err := r.generatePredictionLog(); err != nil {
		return err
	}
	return r.generateJSONReport()
}

func (r *Reporter) generateSummary() error {
	summaryPath := filepath.Join(r.outputPath, "batch_summary.txt")
	file, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	r.writeSummary(file)

	log.Info().Str("file", summaryPath).Msg("Summary report generated")
	return nil
}

func (r *Reporter) writeSummary(w io.Writer) {
	fmt.Fprintf(w, "BATCH RESULTS SUMMARY\n")
	fmt.Fprintf(w, "=====================\n\n")

	fmt.Fprintf(w, "Started: %s\n", r.result.StartTime.Format(time.RFC3339))
	fmt.Fprintf(w, "Elapsed: %s\n\n", r.result.Elapsed)

	fmt.Fprintf(w, "Samples: %d\n", r.result.Count)
	fmt.Fprintf(w, "Label Sum: %d\n", r.result.Total)

	labels := r.sortedLabels()
	if len(labels) > 0 {
		fmt.Fprintf(w, "\nLABEL DISTRIBUTION\n")
		fmt.Fprintf(w, "------------------\n")
		for _, label := range labels {
			count := r.result.Counts[label]
			fmt.Fprintf(w, "%d: %d (%.2f%%)\n", label, count, 100*float64(count)/float64(r.result.Count))
		}
	}
}

// generatePredictionLog writes every sample with its label as CSV.
func (r *Reporter) generatePredictionLog() error {
	csvPath := filepath.Join(r.outputPath, "predictions.csv")
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create prediction log: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := append(append([]string{}, sample.Columns...), "label")
	if err := writer.Write(header); err != nil {
		return err
	}

	record := make([]string, 0, len(header))
	for i, s := range r.samples {
		record = record[:0]
		for _, v := range s.Values() {
			record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
		}
		record = append(record, strconv.Itoa(r.result.Labels[i]))
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to write prediction log: %w", err)
	}

	log.Info().Str("file", csvPath).Msg("Prediction log generated")
	return nil
}

func (r *Reporter) generateJSONReport() error {
	jsonPath := filepath.Join(r.outputPath, "batch_results.json")

	counts := make(map[string]int, len(r.result.Counts))
	for label, n := range r.result.Counts {
		counts[strconv.Itoa(label)] = n
	}

	report := map[string]interface{}{
		"summary": map[string]interface{}{
			"start_time": r.result.StartTime,
			"end_time":   r.result.EndTime,
			"elapsed_ms": r.result.Elapsed.Milliseconds(),
			"samples":    r.result.Count,
			"total":      r.result.Total,
			"counts":     counts,
		},
		"labels":       r.result.Labels,
		"generated_at": time.Now(),
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write JSON report: %w", err)
	}

	log.Info().Str("file", jsonPath).Msg("JSON report generated")
	return nil
}

func (r *Reporter) sortedLabels() []int {
	labels := make([]int, 0, len(r.result.Counts))
	for label := range r.result.Counts {
		labels = append(labels, label)
	}
	sort.Ints(labels)
	return labels
}

// PrintSummary writes a human-readable summary to w.
func (r *Reporter) PrintSummary(w io.Writer) {
	fmt.Fprintln(w)
	r.writeSummary(w)
}
