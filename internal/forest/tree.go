package forest

import (
	"fmt"
	"math"
)

const (
	// leafNode marks a missing child in ChildrenLeft/ChildrenRight.
	leafNode = -1

	// thresholdEpsilon absorbs float round-trip error from serialization.
	// Values within it of a split threshold route left.
	thresholdEpsilon = 1e-5
)

// Vote is the weighted class tally a leaf contributes to the ensemble.
type Vote struct {
	No  float64
	Yes float64
}

// Add returns the element-wise sum of v and o.
func (v Vote) Add(o Vote) Vote {
	return Vote{No: v.No + o.No, Yes: v.Yes + o.Yes}
}

// Tree is a binary decision tree stored as parallel arrays indexed by node id.
// Node 0 is the root and a node is a leaf iff ChildrenLeft[node] == -1.
type Tree struct {
	Feature       []int
	Threshold     []float64
	ChildrenLeft  []int
	ChildrenRight []int
	Value         []Vote
	NodeSamples   []int
}

// Predict walks from the root to a leaf and returns that leaf's vote.
// The tree is trusted to be well formed; see Validate.
func (t *Tree) Predict(features []float64) Vote {
	node := 0
	for t.ChildrenLeft[node] != leafNode {
		x := features[t.Feature[node]]
		threshold := t.Threshold[node]

		if x <= threshold || math.Abs(x-threshold) < thresholdEpsilon {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return t.Value[node]
}

// NodeCount returns the number of nodes in the tree.
func (t *Tree) NodeCount() int {
	return len(t.ChildrenLeft)
}

// Validate checks that the arrays agree in length and describe a tree rooted
// at node 0: every split has two in-range children, no node is reachable
// twice, and split features index into a vector of nFeatures.
func (t *Tree) Validate(nFeatures int) error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return fmt.Errorf("tree has no nodes")
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return fmt.Errorf("tree arrays differ in length: children_left=%d children_right=%d feature=%d threshold=%d value=%d",
			n, len(t.ChildrenRight), len(t.Feature), len(t.Threshold), len(t.Value))
	}
	if len(t.NodeSamples) != 0 && len(t.NodeSamples) != n {
		return fmt.Errorf("n_node_samples has %d entries, expected %d", len(t.NodeSamples), n)
	}

	seen := make([]bool, n)
	stack := []int{0}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if seen[node] {
			return fmt.Errorf("node %d is reachable more than once", node)
		}
		seen[node] = true

		left, right := t.ChildrenLeft[node], t.ChildrenRight[node]
		if left == leafNode {
			continue
		}
		if left < 0 || left >= n || right < 0 || right >= n {
			return fmt.Errorf("node %d has children (%d, %d) outside [0, %d)", node, left, right, n)
		}
		if f := t.Feature[node]; f < 0 || f >= nFeatures {
			return fmt.Errorf("node %d splits on feature %d outside [0, %d)", node, f, nFeatures)
		}
		stack = append(stack, left, right)
	}
	return nil
}
