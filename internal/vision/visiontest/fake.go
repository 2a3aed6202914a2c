// Package visiontest provides a scripted recognizer for tests.
package visiontest

import (
	"fmt"
	"image"
	"sync"

	"github.com/your-org/facewatch/internal/vision"
)

type Face struct {
	Box       image.Rectangle
	Embedding []float32
}

// Recognizer reports the same faces for every image it is given.
type Recognizer struct {
	mu        sync.Mutex
	faces     []Face
	detectErr error
	calls     int
	closed    bool
}

var _ vision.Recognizer = (*Recognizer)(nil)

func New(faces ...Face) *Recognizer {
	return &Recognizer{faces: faces}
}

func (r *Recognizer) SetFaces(faces ...Face) {
	r.mu.Lock()
	r.faces = faces
	r.mu.Unlock()
}

func (r *Recognizer) SetDetectError(err error) {
	r.mu.Lock()
	r.detectErr = err
	r.mu.Unlock()
}

// Calls returns how many times DetectFaces ran.
func (r *Recognizer) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *Recognizer) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Recognizer) DetectFaces(image.Image) ([]image.Rectangle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.detectErr != nil {
		return nil, r.detectErr
	}
	boxes := make([]image.Rectangle, len(r.faces))
	for i, f := range r.faces {
		boxes[i] = f.Box
	}
	return boxes, nil
}

func (r *Recognizer) Embed(_ image.Image, boxes []image.Rectangle) ([][]float32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]float32, len(boxes))
	for i, b := range boxes {
		found := false
		for _, f := range r.faces {
			if f.Box == b {
				out[i] = append([]float32(nil), f.Embedding...)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("no scripted face at %v", b)
		}
	}
	return out, nil
}

func (r *Recognizer) Distance(known [][]float32, v []float32) []float64 {
	return vision.EuclideanDistances(known, v)
}

func (r *Recognizer) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}
