package inference

import (
	"context"
	"errors"
)

// positiveThreshold maps the model's scalar output to a verdict.
const positiveThreshold = 0.5

var (
	// ErrDecode is returned when the uploaded file is not a readable image.
	ErrDecode = errors.New("cannot decode image")
	// ErrModelUnavailable is returned when the model server or the served
	// model cannot be reached.
	ErrModelUnavailable = errors.New("model unavailable")
)

// Prediction is the model's output for one image.
type Prediction struct {
	Probability float32
}

// Positive reports the binary verdict for the prediction.
func (p Prediction) Positive() bool {
	return p.Probability >= positiveThreshold
}

// Classifier maps a preprocessed image tensor to a prediction. The model
// behind it is treated as an opaque function from tensor to probability.
type Classifier interface {
	Classify(ctx context.Context, t *Tensor) (*Prediction, error)
}
