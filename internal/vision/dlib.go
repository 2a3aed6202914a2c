//go:build dlib

package vision

import (
	"fmt"
	"image"
	"log/slog"
	"reflect"
	"sync"
	"time"

	face "github.com/Kagami/go-face"

	"github.com/your-org/facewatch/internal/config"
	"github.com/your-org/facewatch/internal/observability"
)

// DlibRecognizer wraps go-face. Recognize returns boxes and descriptors in
// one pass, so the descriptors of the last detected frame are kept for Embed.
type DlibRecognizer struct {
	mu        sync.Mutex
	rec       *face.Recognizer
	lastImg   image.Image
	lastFaces []face.Face
}

func newDlibRecognizer(cfg config.RecognitionConfig) (Recognizer, error) {
	slog.Info("loading dlib models", "dir", cfg.ModelsDir)
	rec, err := face.NewRecognizer(cfg.ModelsDir)
	if err != nil {
		return nil, fmt.Errorf("load dlib models: %w", err)
	}
	return &DlibRecognizer{rec: rec}, nil
}

func (r *DlibRecognizer) DetectFaces(img image.Image) ([]image.Rectangle, error) {
	data, err := EncodeJPEG(img, 95)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	faces, err := r.rec.Recognize(data)
	if err != nil {
		return nil, fmt.Errorf("recognize: %w", err)
	}
	observability.InferenceDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())

	r.lastImg, r.lastFaces = img, faces

	origin := img.Bounds().Min
	boxes := make([]image.Rectangle, len(faces))
	for i, f := range faces {
		boxes[i] = f.Rectangle.Add(origin)
	}
	return boxes, nil
}

func (r *DlibRecognizer) Embed(img image.Image, boxes []image.Rectangle) ([][]float32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cached := sameImage(img, r.lastImg)
	origin := img.Bounds().Min
	out := make([][]float32, len(boxes))

	for i, box := range boxes {
		if cached {
			if d, ok := r.cachedDescriptor(box.Sub(origin)); ok {
				out[i] = d
				continue
			}
		}

		crop := CropFace(img, box)
		if crop == nil {
			return nil, fmt.Errorf("face %d lies outside the frame", i)
		}
		data, err := EncodeJPEG(crop, 95)
		if err != nil {
			return nil, err
		}
		f, err := r.rec.RecognizeSingle(data)
		if err != nil {
			return nil, fmt.Errorf("recognize crop: %w", err)
		}
		if f == nil {
			return nil, fmt.Errorf("face %d: %w", i, ErrNoFace)
		}
		out[i] = descriptorSlice(f.Descriptor)
	}
	return out, nil
}

func (r *DlibRecognizer) cachedDescriptor(rect image.Rectangle) ([]float32, bool) {
	for _, f := range r.lastFaces {
		if f.Rectangle == rect {
			return descriptorSlice(f.Descriptor), true
		}
	}
	return nil, false
}

func (r *DlibRecognizer) Distance(known [][]float32, v []float32) []float64 {
	return EuclideanDistances(known, v)
}

func (r *DlibRecognizer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rec != nil {
		r.rec.Close()
		r.rec = nil
	}
	r.lastImg, r.lastFaces = nil, nil
}

func descriptorSlice(d face.Descriptor) []float32 {
	out := make([]float32, len(d))
	copy(out, d[:])
	return out
}

func sameImage(a, b image.Image) bool {
	if a == nil || b == nil || !reflect.TypeOf(a).Comparable() {
		return false
	}
	return a == b
}
