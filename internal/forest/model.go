package forest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Artifact is the serialized model produced by the training pipeline.
type Artifact struct {
	Scaler ScalerSpec `json:"scaler"`
	Model  ForestSpec `json:"model"`
}

type ScalerSpec struct {
	Scale []float64 `json:"scale"`
	Mean  []float64 `json:"mean"`
}

type ForestSpec struct {
	NEstimators int        `json:"n_estimators"`
	NFeatures   int        `json:"n_features"`
	NClasses    int        `json:"n_classes"`
	Classes     []int      `json:"classes"`
	Trees       []TreeSpec `json:"trees"`
}

// TreeSpec mirrors Tree on the wire. Each Value entry is a one-element list
// holding the [no_weight, yes_weight] pair.
type TreeSpec struct {
	Feature       []int         `json:"feature"`
	Threshold     []float64     `json:"threshold"`
	ChildrenLeft  []int         `json:"children_left"`
	ChildrenRight []int         `json:"children_right"`
	Value         [][][]float64 `json:"value"`
	NodeSamples   []int         `json:"n_node_samples"`
}

// LoadFile reads a model artifact from path.
func LoadFile(path string) (*Predictor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model %s: %w", path, err)
	}
	defer f.Close()

	p, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", path, err)
	}
	return p, nil
}

// LoadBytes builds a Predictor from an in-memory artifact, such as one
// compiled into the binary with go:embed.
func LoadBytes(blob []byte) (*Predictor, error) {
	return Load(bytes.NewReader(blob))
}

// Load decodes an artifact from r and builds a Predictor from it.
func Load(r io.Reader) (*Predictor, error) {
	var a Artifact
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	return a.Build()
}

// Build validates the artifact and constructs the Predictor it describes.
func (a Artifact) Build() (*Predictor, error) {
	m := a.Model
	if m.NFeatures <= 0 {
		return nil, fmt.Errorf("n_features must be positive, got %d", m.NFeatures)
	}
	if m.NClasses != 2 {
		return nil, fmt.Errorf("n_classes must be 2, got %d", m.NClasses)
	}
	if len(m.Classes) != 2 {
		return nil, fmt.Errorf("classes must have 2 entries, got %d", len(m.Classes))
	}
	if m.NEstimators != len(m.Trees) {
		return nil, fmt.Errorf("n_estimators is %d but %d trees were supplied", m.NEstimators, len(m.Trees))
	}
	if len(a.Scaler.Mean) != m.NFeatures || len(a.Scaler.Scale) != m.NFeatures {
		return nil, fmt.Errorf("scaler has %d means and %d scales, model expects %d features",
			len(a.Scaler.Mean), len(a.Scaler.Scale), m.NFeatures)
	}

	trees := make([]Tree, len(m.Trees))
	for i, spec := range m.Trees {
		tree, err := spec.build()
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		if err := tree.Validate(m.NFeatures); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		trees[i] = tree
	}

	scaler := NewScaler(a.Scaler.Mean, a.Scaler.Scale)
	forest := NewForest(trees, m.NFeatures, [2]int{m.Classes[0], m.Classes[1]})
	return NewPredictor(scaler, forest), nil
}

func (s TreeSpec) build() (Tree, error) {
	value := make([]Vote, len(s.Value))
	for node, v := range s.Value {
		if len(v) == 0 || len(v[0]) != 2 {
			return Tree{}, fmt.Errorf("node %d: value must be [[no_weight, yes_weight]]", node)
		}
		value[node] = Vote{No: v[0][0], Yes: v[0][1]}
	}

	return Tree{
		Feature:       s.Feature,
		Threshold:     s.Threshold,
		ChildrenLeft:  s.ChildrenLeft,
		ChildrenRight: s.ChildrenRight,
		Value:         value,
		NodeSamples:   s.NodeSamples,
	}, nil
}

// Spec converts t back to its wire form.
func (t *Tree) Spec() TreeSpec {
	value := make([][][]float64, len(t.Value))
	for i, v := range t.Value {
		value[i] = [][]float64{{v.No, v.Yes}}
	}
	return TreeSpec{
		Feature:       t.Feature,
		Threshold:     t.Threshold,
		ChildrenLeft:  t.ChildrenLeft,
		ChildrenRight: t.ChildrenRight,
		Value:         value,
		NodeSamples:   t.NodeSamples,
	}
}
