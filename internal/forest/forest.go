package forest

import "sync"

// Forest is an ensemble of decision trees voting between two classes.
type Forest struct {
	trees       []Tree
	nEstimators int
	nFeatures   int
	nClasses    int
	classes     [2]int
}

// NewForest builds a Forest. classes maps the winning vote index (0 or 1)
// to the label returned by Predict.
func NewForest(trees []Tree, nFeatures int, classes [2]int) *Forest {
	return &Forest{
		trees:       trees,
		nEstimators: len(trees),
		nFeatures:   nFeatures,
		nClasses:    2,
		classes:     classes,
	}
}

func (f *Forest) NFeatures() int   { return f.nFeatures }
func (f *Forest) NClasses() int    { return f.nClasses }
func (f *Forest) NEstimators() int { return f.nEstimators }
func (f *Forest) Classes() [2]int  { return f.classes }
func (f *Forest) Trees() []Tree    { return f.trees }

// Votes returns the element-wise sum of every tree's vote.
func (f *Forest) Votes(features []float64) (Vote, error) {
	if len(features) != f.nFeatures {
		return Vote{}, &LengthError{Op: "forest predict", Got: len(features), Expected: f.nFeatures}
	}

	var total Vote
	for i := range f.trees {
		total = total.Add(f.trees[i].Predict(features))
	}
	return total, nil
}

// Predict returns the label of the winning class. Ties go to classes[1].
func (f *Forest) Predict(features []float64) (int, error) {
	total, err := f.Votes(features)
	if err != nil {
		return 0, err
	}
	return f.decide(total), nil
}

// PredictParallel is Predict with the trees split across up to workers
// goroutines. The result is identical to Predict.
func (f *Forest) PredictParallel(features []float64, workers int) (int, error) {
	if len(features) != f.nFeatures {
		return 0, &LengthError{Op: "forest predict", Got: len(features), Expected: f.nFeatures}
	}
	if workers > len(f.trees) {
		workers = len(f.trees)
	}
	if workers <= 1 {
		return f.Predict(features)
	}

	partial := make([]Vote, workers)
	chunk := (len(f.trees) + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := min(start+chunk, len(f.trees))
		if start >= end {
			break
		}
		wg.Add(1)
		go func(w, start, end int) {
			defer wg.Done()
			var sum Vote
			for i := start; i < end; i++ {
				sum = sum.Add(f.trees[i].Predict(features))
			}
			partial[w] = sum
		}(w, start, end)
	}
	wg.Wait()

	var total Vote
	for _, v := range partial {
		total = total.Add(v)
	}
	return f.decide(total), nil
}

func (f *Forest) decide(total Vote) int {
	if total.Yes >= total.No {
		return f.classes[1]
	}
	return f.classes[0]
}
