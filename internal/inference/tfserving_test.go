package inference

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func tinyTensor() *Tensor {
	return &Tensor{Data: [][][]float32{{{1, 2, 3}}}}
}

func newPredictServer(t *testing.T, probability float32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/models/covid:predict":
			fmt.Fprintf(w, `{"predictions": [[%f]]}`, probability)
		case r.Method == http.MethodGet && r.URL.Path == "/v1/models/covid":
			fmt.Fprint(w, `{"model_version_status": [{"state": "AVAILABLE"}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestClassifyReturnsModelProbability(t *testing.T) {
	server := newPredictServer(t, 0.92)
	defer server.Close()

	classifier := NewTFServingClassifier(server.URL, "covid", time.Second, 2, zap.NewNop())
	prediction, err := classifier.Classify(context.Background(), tinyTensor())
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if prediction.Probability < 0.91 || prediction.Probability > 0.93 {
		t.Fatalf("unexpected probability %f", prediction.Probability)
	}
	if !prediction.Positive() {
		t.Fatal("expected positive verdict at probability 0.92")
	}
}

func TestClassifyThresholdsAtHalf(t *testing.T) {
	cases := []struct {
		probability float32
		positive    bool
	}{
		{0.1, false},
		{0.49, false},
		{0.5, true},
		{0.9, true},
	}
	for _, tc := range cases {
		server := newPredictServer(t, tc.probability)
		classifier := NewTFServingClassifier(server.URL, "covid", time.Second, 1, zap.NewNop())
		prediction, err := classifier.Classify(context.Background(), tinyTensor())
		server.Close()
		if err != nil {
			t.Fatalf("expected success at %f, got %v", tc.probability, err)
		}
		if prediction.Positive() != tc.positive {
			t.Errorf("probability %f: expected positive=%t", tc.probability, tc.positive)
		}
	}
}

func TestClassifyIsDeterministicForFixedInput(t *testing.T) {
	server := newPredictServer(t, 0.73)
	defer server.Close()

	classifier := NewTFServingClassifier(server.URL, "covid", time.Second, 2, zap.NewNop())
	first, err := classifier.Classify(context.Background(), tinyTensor())
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	second, err := classifier.Classify(context.Background(), tinyTensor())
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if first.Probability != second.Probability || first.Positive() != second.Positive() {
		t.Fatal("repeated classification of the same input diverged")
	}
}

func TestClassifyReportsModelUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	classifier := NewTFServingClassifier(server.URL, "covid", time.Second, 1, zap.NewNop())
	_, err := classifier.Classify(context.Background(), tinyTensor())
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
}

func TestClassifyTimesOutOnStuckModel(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	classifier := NewTFServingClassifier(server.URL, "covid", 20*time.Millisecond, 1, zap.NewNop())
	start := time.Now()
	_, err := classifier.Classify(context.Background(), tinyTensor())
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("timeout took too long: %v", elapsed)
	}
}

func TestPingFailsWhenModelMissing(t *testing.T) {
	server := newPredictServer(t, 0.5)
	defer server.Close()

	ok := NewTFServingClassifier(server.URL, "covid", time.Second, 1, zap.NewNop())
	if err := ok.Ping(context.Background()); err != nil {
		t.Fatalf("expected healthy ping, got %v", err)
	}

	missing := NewTFServingClassifier(server.URL, "other-model", time.Second, 1, zap.NewNop())
	if err := missing.Ping(context.Background()); !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
}
