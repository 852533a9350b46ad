// Package sample parses the measurement records scored by the forest and
// converts them into model feature vectors.
package sample

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// NumColumns is the number of fields in a sample CSV row.
const NumColumns = 15

// NumFeatures is the length of the vector returned by Vector.
const NumFeatures = 13

// Columns lists the CSV header in field order.
var Columns = []string{
	"Nep_index", "YE", "Nep_Tb", "Nep_TOF", "NepSumArray", "NepPeakArray", "NepDArray",
	"YE_TOF", "YE_Size", "YE_Mean", "YE_Median", "YE_V", "YE_Te", "YE_Tc", "AF",
}

// Sample is one measurement record.
type Sample struct {
	NepIndex     float64 `json:"Nep_index"`
	YE           float64 `json:"YE"`
	NepTb        float64 `json:"Nep_Tb"`
	NepTOF       float64 `json:"Nep_TOF"`
	NepSumArray  float64 `json:"NepSumArray"`
	NepPeakArray float64 `json:"NepPeakArray"`
	NepDArray    float64 `json:"NepDArray"`
	YETOF        float64 `json:"YE_TOF"`
	YESize       float64 `json:"YE_Size"`
	YEMean       float64 `json:"YE_Mean"`
	YEMedian     float64 `json:"YE_Median"`
	YEV          float64 `json:"YE_V"`
	YETe         float64 `json:"YE_Te"`
	YETc         float64 `json:"YE_Tc"`
	AF           float64 `json:"AF"`
}

func (s *Sample) fields() []*float64 {
	return []*float64{
		&s.NepIndex, &s.YE, &s.NepTb, &s.NepTOF, &s.NepSumArray, &s.NepPeakArray, &s.NepDArray,
		&s.YETOF, &s.YESize, &s.YEMean, &s.YEMedian, &s.YEV, &s.YETe, &s.YETc, &s.AF,
	}
}

// FromLine parses a single comma-separated row.
func FromLine(line string) (Sample, error) {
	return FromRecord(strings.Split(strings.TrimSpace(line), ","))
}

// FromRecord parses an already split row. Extra trailing fields are ignored.
func FromRecord(record []string) (Sample, error) {
	var s Sample
	if len(record) < NumColumns {
		return s, fmt.Errorf("sample has %d fields, expected %d", len(record), NumColumns)
	}

	for i, dst := range s.fields() {
		v, err := strconv.ParseFloat(strings.TrimSpace(record[i]), 64)
		if err != nil {
			return Sample{}, fmt.Errorf("field %s: %w", Columns[i], err)
		}
		*dst = v
	}
	return s, nil
}

// Vector returns the model features in training order. Nep_index and YE are
// identifiers, not features, and are left out.
func (s Sample) Vector() []float64 {
	return s.AppendVector(make([]float64, 0, NumFeatures))
}

// AppendVector appends the model features to dst, letting callers reuse a
// buffer across samples.
func (s Sample) AppendVector(dst []float64) []float64 {
	return append(dst,
		s.NepTb,
		s.NepTOF,
		s.NepSumArray,
		s.NepPeakArray,
		s.NepDArray,
		s.YETOF,
		s.YESize,
		s.YEMean,
		s.YEMedian,
		s.YEV,
		s.YETe,
		s.YETc,
		s.AF,
	)
}

// Values returns all columns in CSV order.
func (s Sample) Values() []float64 {
	out := make([]float64, 0, NumColumns)
	for _, v := range s.fields() {
		out = append(out, *v)
	}
	return out
}

// String formats the sample as a CSV row with round-trip precision.
func (s Sample) String() string {
	parts := make([]string, 0, NumColumns)
	for _, v := range s.Values() {
		parts = append(parts, strconv.FormatFloat(v, 'g', -1, 64))
	}
	return strings.Join(parts, ",")
}

// ReadCSV reads every sample from r. The first row is a header and is skipped.
func ReadCSV(r io.Reader) ([]Sample, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	var samples []Sample
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(samples)+1, err)
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}

		s, err := FromRecord(record)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", len(samples)+1, err)
		}
		samples = append(samples, s)
	}
	return samples, nil
}
