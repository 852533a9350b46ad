package forest

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

const testFeatures = 13

// stump splits on feature at threshold and returns left or right.
func stump(feature int, threshold float64, left, right Vote) Tree {
	return Tree{
		Feature:       []int{feature, -2, -2},
		Threshold:     []float64{threshold, 0, 0},
		ChildrenLeft:  []int{1, -1, -1},
		ChildrenRight: []int{2, -1, -1},
		Value:         []Vote{{}, left, right},
		NodeSamples:   []int{100, 60, 40},
	}
}

// multilevelTree: root splits feature 2 at 10; its left child splits
// feature 0 at 50 into (25,5) and (15,20); its right child is leaf (5,30).
func multilevelTree() Tree {
	return Tree{
		Feature:       []int{2, 0, -2, -2, -2},
		Threshold:     []float64{10, 50, 0, 0, 0},
		ChildrenLeft:  []int{1, 3, -1, -1, -1},
		ChildrenRight: []int{2, 4, -1, -1, -1},
		Value:         []Vote{{}, {}, {5, 30}, {25, 5}, {15, 20}},
		NodeSamples:   []int{100, 60, 40, 30, 30},
	}
}

func fill(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func vector(first float64) []float64 {
	v := make([]float64, testFeatures)
	v[0] = first
	return v
}

func artifactJSON(t *testing.T, a Artifact) []byte {
	t.Helper()
	data, err := json.Marshal(a)
	require.NoError(t, err)
	return data
}

func identityArtifact(trees ...Tree) Artifact {
	specs := make([]TreeSpec, len(trees))
	for i := range trees {
		specs[i] = trees[i].Spec()
	}
	return Artifact{
		Scaler: ScalerSpec{Scale: fill(testFeatures, 1), Mean: fill(testFeatures, 0)},
		Model: ForestSpec{
			NEstimators: len(trees),
			NFeatures:   testFeatures,
			NClasses:    2,
			Classes:     []int{0, 1},
			Trees:       specs,
		},
	}
}
