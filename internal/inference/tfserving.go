package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// TFServingClassifier calls a TensorFlow Serving instance over its REST
// predict API. The served model is loaded once by the serving process;
// this client only verifies availability at startup and runs forward
// passes afterwards.
//
// In-flight predict calls are capped by a semaphore so a burst of uploads
// cannot overwhelm the serving process, and every call carries a bounded
// timeout so a stuck model never hangs a request worker.
type TFServingClassifier struct {
	client  *resty.Client
	model   string
	timeout time.Duration
	slots   chan struct{}
	logger  *zap.Logger
}

type predictRequest struct {
	Instances [][][][]float32 `json:"instances"`
}

type predictResponse struct {
	Predictions [][]float32 `json:"predictions"`
	Error       string      `json:"error"`
}

// NewTFServingClassifier constructs the client. maxInFlight bounds
// concurrent predict calls.
func NewTFServingClassifier(baseURL, model string, timeout time.Duration, maxInFlight int, logger *zap.Logger) *TFServingClassifier {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	return &TFServingClassifier{
		client:  resty.New().SetBaseURL(baseURL),
		model:   model,
		timeout: timeout,
		slots:   make(chan struct{}, maxInFlight),
		logger:  logger.Named("tfserving"),
	}
}

// Ping checks that the serving process is up and the model version is
// loaded. Called once at startup so a missing model fails the process
// instead of the first request.
func (c *TFServingClassifier) Ping(ctx context.Context) error {
	resp, err := c.client.R().
		SetContext(ctx).
		Get("/v1/models/" + c.model)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: model %q returned status %d", ErrModelUnavailable, c.model, resp.StatusCode())
	}
	return nil
}

// Classify runs one forward pass and returns the model's probability.
func (c *TFServingClassifier) Classify(ctx context.Context, t *Tensor) (*Prediction, error) {
	select {
	case c.slots <- struct{}{}:
		defer func() { <-c.slots }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.R().
		SetContext(callCtx).
		SetHeader("Content-Type", "application/json").
		SetBody(predictRequest{Instances: [][][][]float32{t.Data}}).
		Post("/v1/models/" + c.model + ":predict")
	if err != nil {
		c.logger.Error("predict call failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	if resp.IsError() {
		c.logger.Error("predict call rejected",
			zap.Int("status", resp.StatusCode()),
			zap.String("body", string(resp.Body())))
		return nil, fmt.Errorf("%w: status %d", ErrModelUnavailable, resp.StatusCode())
	}

	var out predictResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("%w: malformed predict response: %v", ErrModelUnavailable, err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrModelUnavailable, out.Error)
	}
	if len(out.Predictions) == 0 || len(out.Predictions[0]) == 0 {
		return nil, fmt.Errorf("%w: empty predictions", ErrModelUnavailable)
	}

	return &Prediction{Probability: out.Predictions[0][0]}, nil
}
