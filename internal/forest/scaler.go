package forest

// Scaler standardizes feature vectors with per-feature mean and scale.
type Scaler struct {
	mean  []float64
	scale []float64
}

// NewScaler returns a Scaler over copies of mean and scale.
func NewScaler(mean, scale []float64) *Scaler {
	return &Scaler{
		mean:  append([]float64(nil), mean...),
		scale: append([]float64(nil), scale...),
	}
}

// Len returns the number of features the scaler was fitted on.
func (s *Scaler) Len() int {
	return len(s.mean)
}

// Transform standardizes data in place: data[i] = (data[i]-mean[i])/scale[i].
// The vector is left untouched when its length is not nFeatures. A zero scale
// yields Inf or NaN rather than an error.
func (s *Scaler) Transform(data []float64, nFeatures int) error {
	if len(data) != nFeatures {
		return &LengthError{Op: "scaler transform", Got: len(data), Expected: nFeatures}
	}

	for i := 0; i < nFeatures; i++ {
		data[i] = (data[i] - s.mean[i]) / s.scale[i]
	}
	return nil
}
