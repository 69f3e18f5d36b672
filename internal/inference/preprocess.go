package inference

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"golang.org/x/image/draw"
)

// inputSize is the model's fixed input edge length.
const inputSize = 224

// channelMeans are the ImageNet channel means subtracted by the VGG
// preprocessing, in BGR order.
var channelMeans = [3]float32{103.939, 116.779, 123.68}

// Tensor is one preprocessed image in HxWxC layout, BGR channel order,
// mean-subtracted, ready for the model's forward pass.
type Tensor struct {
	Data [][][]float32
}

// Preprocess decodes a PNG or JPEG image, resizes it to the model's input
// shape, and applies VGG channel preprocessing.
func Preprocess(r io.Reader) (*Tensor, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	resized := image.NewRGBA(image.Rect(0, 0, inputSize, inputSize))
	draw.BiLinear.Scale(resized, resized.Bounds(), img, img.Bounds(), draw.Src, nil)

	data := make([][][]float32, inputSize)
	for y := 0; y < inputSize; y++ {
		row := make([][]float32, inputSize)
		for x := 0; x < inputSize; x++ {
			px := resized.RGBAAt(x, y)
			row[x] = []float32{
				float32(px.B) - channelMeans[0],
				float32(px.G) - channelMeans[1],
				float32(px.R) - channelMeans[2],
			}
		}
		data[y] = row
	}
	return &Tensor{Data: data}, nil
}

// PreprocessFile preprocesses a stored image by path.
func PreprocessFile(path string) (*Tensor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	return Preprocess(f)
}
