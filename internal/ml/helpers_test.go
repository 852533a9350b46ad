package ml

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"forest-predictor/internal/forest"

	"github.com/stretchr/testify/require"
)

const testFeatures = 13

// stumpArtifact is a one-tree model that answers classes[1] when the first
// raw feature is above threshold+mean and classes[0] otherwise.
func stumpArtifact(classes [2]int, threshold, mean float64) forest.Artifact {
	tree := forest.Tree{
		Feature:       []int{0, -2, -2},
		Threshold:     []float64{threshold, -2, -2},
		ChildrenLeft:  []int{1, -1, -1},
		ChildrenRight: []int{2, -1, -1},
		Value:         []forest.Vote{{}, {No: 10}, {Yes: 10}},
		NodeSamples:   []int{20, 10, 10},
	}

	means := make([]float64, testFeatures)
	scales := make([]float64, testFeatures)
	for i := range means {
		means[i] = mean
		scales[i] = 1
	}

	return forest.Artifact{
		Scaler: forest.ScalerSpec{Scale: scales, Mean: means},
		Model: forest.ForestSpec{
			NEstimators: 1,
			NFeatures:   testFeatures,
			NClasses:    2,
			Classes:     []int{classes[0], classes[1]},
			Trees:       []forest.TreeSpec{tree.Spec()},
		},
	}
}

func writeArtifact(t *testing.T, path string, a forest.Artifact) {
	t.Helper()
	data, err := json.Marshal(a)
	require.NoError(t, err)
	writeAtomically(t, path, data)
}

// writeAtomically replaces path in one rename so a watcher never observes a
// half-written model.
func writeAtomically(t *testing.T, path string, data []byte) {
	t.Helper()
	tmp := filepath.Join(filepath.Dir(path), ".tmp-"+filepath.Base(path))
	require.NoError(t, os.WriteFile(tmp, data, 0o600))
	require.NoError(t, os.Rename(tmp, path))
}

// modelFile writes the default 0/1 stump to a fresh directory.
func modelFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.json")
	writeArtifact(t, path, stumpArtifact([2]int{0, 1}, 0.5, 0))
	return path
}

func features(first float64) []float64 {
	v := make([]float64, testFeatures)
	v[0] = first
	return v
}

func newTestService(t *testing.T, config ServiceConfig) (*Service, *MockMetrics) {
	t.Helper()
	if config.ModelPath == "" {
		config.ModelPath = modelFile(t)
	}
	m := &MockMetrics{}
	s, err := NewService(config, m)
	require.NoError(t, err)
	return s, m
}
