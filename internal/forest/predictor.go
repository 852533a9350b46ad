package forest

// Predictor scales a raw feature vector and classifies it with a Forest.
// The Scaler and Forest must come from the same training run.
type Predictor struct {
	scaler *Scaler
	forest *Forest
}

// NewPredictor pairs a scaler with a forest.
func NewPredictor(scaler *Scaler, forest *Forest) *Predictor {
	return &Predictor{scaler: scaler, forest: forest}
}

func (p *Predictor) Scaler() *Scaler { return p.scaler }
func (p *Predictor) Forest() *Forest { return p.forest }

// Predict standardizes features in place and returns the forest's label.
// Callers that need the raw values afterwards must pass a copy.
func (p *Predictor) Predict(features []float64) (int, error) {
	if err := p.scaler.Transform(features, p.forest.NFeatures()); err != nil {
		return 0, err
	}
	return p.forest.Predict(features)
}

// PredictParallel is Predict with per-tree evaluation spread over workers
// goroutines.
func (p *Predictor) PredictParallel(features []float64, workers int) (int, error) {
	if err := p.scaler.Transform(features, p.forest.NFeatures()); err != nil {
		return 0, err
	}
	return p.forest.PredictParallel(features, workers)
}
