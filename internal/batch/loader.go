package batch

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"forest-predictor/internal/sample"

	"github.com/rs/zerolog/log"
)

// LoadSamples reads samples from a CSV file with a header row or, for
// ".json" and ".ndjson" files, from a stream of sample objects.
func LoadSamples(filePath string) ([]sample.Sample, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open samples file: %w", err)
	}
	defer file.Close()

	var samples []sample.Sample
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".json", ".ndjson":
		samples, err = decodeJSONSamples(file)
	default:
		samples, err = sample.ReadCSV(file)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load samples from %s: %w", filePath, err)
	}

	log.Info().
		Str("file", filePath).
		Int("samples", len(samples)).
		Msg("Samples loaded successfully")

	return samples, nil
}

// decodeJSONSamples accepts either one JSON array or a sequence of objects.
func decodeJSONSamples(r io.Reader) ([]sample.Sample, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	decoder := json.NewDecoder(br)
	var samples []sample.Sample
	if first == '[' {
		if err := decoder.Decode(&samples); err != nil {
			return nil, err
		}
		return samples, nil
	}

	for decoder.More() {
		var s sample.Sample
		if err := decoder.Decode(&s); err != nil {
			return nil, fmt.Errorf("sample %d: %w", len(samples), err)
		}
		samples = append(samples, s)
	}
	return samples, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}
