// Package storage provides persistent storage for forest prediction runs.
// It uses BoltDB as the underlying storage engine to keep a per-sample
// prediction log and one summary record per batch run.
//
// Prediction keys are "run_index" with a zero-padded index, so a cursor scan
// over a run's prefix yields its predictions in sample order.
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"forest-predictor/internal/sample"

	"go.etcd.io/bbolt"
)

const (
	predictionsBucket = "predictions" // Bucket name for per-sample predictions
	runsBucket        = "runs"        // Bucket name for run summaries

	dbFileName = "forest-data.db"
)

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("not found")

// PredictionRecord is one scored sample.
type PredictionRecord struct {
	RunID     string    `json:"run_id"`
	Index     int       `json:"index"`
	Features  []float64 `json:"features"`
	Label     int       `json:"label"`
	Timestamp time.Time `json:"timestamp"`
}

// Store provides persistent storage for predictions using BoltDB.
type Store struct {
	db *bbolt.DB // BoltDB database instance
}

// New opens (creating if needed) the database under dataPath and makes sure
// every bucket exists.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, dbFileName)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(predictionsBucket)); err != nil {
			return fmt.Errorf("create predictions bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(runsBucket)); err != nil {
			return fmt.Errorf("create runs bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database. Closing twice is harmless.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// StorePrediction writes one prediction. Concurrent callers are coalesced
// into shared transactions.
func (s *Store) StorePrediction(record PredictionRecord) error {
	if record.RunID == "" {
		return errors.New("prediction record has no run id")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal prediction: %w", err)
	}

	return s.db.Batch(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(predictionsBucket))
		return b.Put(predictionKey(record.RunID, record.Index), data)
	})
}

// GetPredictions returns every prediction of a run ordered by sample index.
func (s *Store) GetPredictions(runID string) ([]PredictionRecord, error) {
	var records []PredictionRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(predictionsBucket)).Cursor()
		prefix := []byte(runID + "_")

		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var record PredictionRecord
			if err := json.Unmarshal(v, &record); err != nil {
				continue // Skip malformed records
			}
			records = append(records, record)
		}
		return nil
	})

	return records, err
}

// Recorder returns a sink that logs a batch run's predictions under runID.
func (s *Store) Recorder(runID string) *RunRecorder {
	return &RunRecorder{store: s, runID: runID}
}

// RunRecorder writes scored samples of a single run.
type RunRecorder struct {
	store *Store
	runID string
}

func (r *RunRecorder) Record(index int, smp sample.Sample, label int) error {
	return r.store.StorePrediction(PredictionRecord{
		RunID:     r.runID,
		Index:     index,
		Features:  smp.Vector(),
		Label:     label,
		Timestamp: time.Now().UTC(),
	})
}

func predictionKey(runID string, index int) []byte {
	return []byte(fmt.Sprintf("%s_%010d", runID, index))
}
