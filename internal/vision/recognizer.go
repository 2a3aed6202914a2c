package vision

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/your-org/facewatch/internal/config"
)

var (
	ErrNoFace        = errors.New("no face found in image")
	ErrMultipleFaces = errors.New("multiple faces found in image")
	ErrInvalidImage  = errors.New("invalid image")
)

// Recognizer finds faces in a frame and turns them into comparable vectors.
// Implementations are safe for concurrent use.
type Recognizer interface {
	DetectFaces(img image.Image) ([]image.Rectangle, error)
	Embed(img image.Image, boxes []image.Rectangle) ([][]float32, error)
	Distance(known [][]float32, v []float32) []float64
	Close()
}

// New builds the recognizer selected by cfg.Backend.
func New(cfg config.RecognitionConfig) (Recognizer, error) {
	switch cfg.Backend {
	case "", "onnx":
		return NewONNXRecognizer(cfg)
	case "dlib":
		return newDlibRecognizer(cfg)
	default:
		return nil, fmt.Errorf("unknown recognition backend %q", cfg.Backend)
	}
}

// EuclideanDistances returns the distance from v to every known vector.
// Vectors of a different dimension are infinitely far away.
func EuclideanDistances(known [][]float32, v []float32) []float64 {
	out := make([]float64, len(known))
	for i, k := range known {
		if len(k) != len(v) {
			out[i] = math.Inf(1)
			continue
		}
		var sum float64
		for j := range k {
			d := float64(k[j]) - float64(v[j])
			sum += d * d
		}
		out[i] = math.Sqrt(sum)
	}
	return out
}

// EmbedSingle decodes an uploaded image and embeds its face. With bestFace
// set, the largest of several faces is used instead of failing.
func EmbedSingle(rec Recognizer, data []byte, bestFace bool) ([]float32, error) {
	img, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}

	boxes, err := rec.DetectFaces(img)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	switch {
	case len(boxes) == 0:
		return nil, ErrNoFace
	case len(boxes) > 1 && !bestFace:
		return nil, ErrMultipleFaces
	}

	best := boxes[0]
	for _, b := range boxes[1:] {
		if area(b) > area(best) {
			best = b
		}
	}

	embs, err := rec.Embed(img, []image.Rectangle{best})
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(embs) == 0 {
		return nil, ErrNoFace
	}
	return embs[0], nil
}

func area(r image.Rectangle) int {
	return r.Dx() * r.Dy()
}
