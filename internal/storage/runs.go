package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// RunSummary describes a finished batch run.
type RunSummary struct {
	RunID     string        `json:"run_id"`
	ModelPath string        `json:"model_path"`
	Count     int           `json:"count"`
	Total     int           `json:"total"`
	Labels    map[int]int   `json:"labels"`
	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed"`
}

// StoreRun saves a run summary, replacing any previous summary for the run.
func (s *Store) StoreRun(run RunSummary) error {
	if run.RunID == "" {
		return errors.New("run summary has no run id")
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(runsBucket))

		data, err := json.Marshal(run)
		if err != nil {
			return fmt.Errorf("marshal run summary: %w", err)
		}

		return b.Put([]byte(run.RunID), data)
	})
}

// GetRun loads a run summary. It returns ErrNotFound for unknown runs.
func (s *Store) GetRun(runID string) (RunSummary, error) {
	var run RunSummary

	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(runsBucket)).Get([]byte(runID))
		if data == nil {
			return fmt.Errorf("run %q: %w", runID, ErrNotFound)
		}
		if err := json.Unmarshal(data, &run); err != nil {
			return fmt.Errorf("unmarshal run summary: %w", err)
		}
		return nil
	})

	return run, err
}

// ListRuns returns the ids of every stored run in key order.
func (s *Store) ListRuns() ([]string, error) {
	var ids []string

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(runsBucket)).ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})

	return ids, err
}
