// Package forest evaluates a pre-trained binary random-forest classifier.
//
// A Predictor pairs a standardizing Scaler with a Forest of decision trees
// encoded as flat parallel arrays. Everything in this package is immutable
// after Load and may be shared by any number of goroutines; the only mutable
// state touched by a prediction is the caller's own feature vector.
package forest

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is returned when a feature vector does not match the
// model's declared feature count.
var ErrInvalidArgument = errors.New("invalid argument")

// LengthError reports a feature vector of the wrong length. It matches
// ErrInvalidArgument under errors.Is.
type LengthError struct {
	Op       string
	Got      int
	Expected int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("%s: %v: got %d features, expected %d", e.Op, ErrInvalidArgument, e.Got, e.Expected)
}

func (e *LengthError) Is(target error) bool {
	return target == ErrInvalidArgument
}
