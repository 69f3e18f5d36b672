package inference

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func encodeUniformPNG(t *testing.T, c color.RGBA, size int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestPreprocessProducesModelInputShape(t *testing.T) {
	data := encodeUniformPNG(t, color.RGBA{R: 200, G: 150, B: 100, A: 255}, 64)

	tensor, err := Preprocess(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(tensor.Data) != inputSize {
		t.Fatalf("expected %d rows, got %d", inputSize, len(tensor.Data))
	}
	if len(tensor.Data[0]) != inputSize {
		t.Fatalf("expected %d columns, got %d", inputSize, len(tensor.Data[0]))
	}
	if len(tensor.Data[0][0]) != 3 {
		t.Fatalf("expected 3 channels, got %d", len(tensor.Data[0][0]))
	}
}

func TestPreprocessAppliesChannelMeans(t *testing.T) {
	// A uniform image stays uniform through resizing, so every pixel must
	// carry the mean-subtracted BGR values.
	data := encodeUniformPNG(t, color.RGBA{R: 200, G: 150, B: 100, A: 255}, 64)

	tensor, err := Preprocess(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	want := []float64{
		100 - float64(channelMeans[0]),
		150 - float64(channelMeans[1]),
		200 - float64(channelMeans[2]),
	}
	px := tensor.Data[112][112]
	for i, expected := range want {
		if math.Abs(float64(px[i])-expected) > 1.0 {
			t.Errorf("channel %d: got %f, want %f", i, px[i], expected)
		}
	}
}

func TestPreprocessIsDeterministic(t *testing.T) {
	data := encodeUniformPNG(t, color.RGBA{R: 10, G: 20, B: 30, A: 255}, 48)

	first, err := Preprocess(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	second, err := Preprocess(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	for y := range first.Data {
		for x := range first.Data[y] {
			for c := range first.Data[y][x] {
				if first.Data[y][x][c] != second.Data[y][x][c] {
					t.Fatalf("tensor differs at (%d,%d,%d)", y, x, c)
				}
			}
		}
	}
}

func TestPreprocessRejectsUnreadableImages(t *testing.T) {
	_, err := Preprocess(strings.NewReader("this is not an image"))
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestPreprocessFileReadsStoredImages(t *testing.T) {
	data := encodeUniformPNG(t, color.RGBA{R: 1, G: 2, B: 3, A: 255}, 16)
	path := filepath.Join(t.TempDir(), "xray.png")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	tensor, err := PreprocessFile(path)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(tensor.Data) != inputSize {
		t.Fatalf("expected %d rows, got %d", inputSize, len(tensor.Data))
	}

	if _, err := PreprocessFile(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
