package vision

import (
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/facewatch/internal/config"
	"github.com/your-org/facewatch/internal/observability"
)

// ONNXRecognizer pairs the RetinaFace detector with the ArcFace embedder.
// Both sessions reuse fixed tensors, so calls are serialized.
type ONNXRecognizer struct {
	mu       sync.Mutex
	detector *Detector
	embedder *Embedder
	ownsEnv  bool
}

func NewONNXRecognizer(cfg config.RecognitionConfig) (*ONNXRecognizer, error) {
	r := &ONNXRecognizer{}

	if !ort.IsInitialized() {
		libPath := cfg.ONNXLibPath
		if libPath == "" {
			libPath = onnxLibPath()
		}
		ort.SetSharedLibraryPath(libPath)
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("init onnx runtime (%s): %w", libPath, err)
		}
		r.ownsEnv = true
	}

	detPath := filepath.Join(cfg.ModelsDir, "det_10g.onnx")
	embPath := filepath.Join(cfg.ModelsDir, "w600k_r50.onnx")

	slog.Info("loading detection model", "path", detPath)
	det, err := NewDetector(detPath, float32(cfg.DetectionThreshold), nil)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("load detector: %w", err)
	}
	r.detector = det

	slog.Info("loading embedding model", "path", embPath)
	emb, err := NewEmbedder(embPath, nil)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("load embedder: %w", err)
	}
	r.embedder = emb

	return r, nil
}

func (r *ONNXRecognizer) DetectFaces(img image.Image) ([]image.Rectangle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	dets, err := r.detector.Detect(img)
	if err != nil {
		return nil, err
	}
	observability.InferenceDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())

	boxes := make([]image.Rectangle, 0, len(dets))
	for _, d := range dets {
		if rect := d.Rect(); !rect.Empty() {
			boxes = append(boxes, rect)
		}
	}
	return boxes, nil
}

func (r *ONNXRecognizer) Embed(img image.Image, boxes []image.Rectangle) ([][]float32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	out := make([][]float32, len(boxes))
	for i, box := range boxes {
		crop := CropFace(img, box)
		if crop == nil {
			return nil, fmt.Errorf("face %d lies outside the frame", i)
		}
		emb, err := r.embedder.Extract(crop)
		if err != nil {
			return nil, err
		}
		out[i] = emb
	}
	observability.InferenceDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())
	return out, nil
}

func (r *ONNXRecognizer) Distance(known [][]float32, v []float32) []float64 {
	return EuclideanDistances(known, v)
}

func (r *ONNXRecognizer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.detector != nil {
		r.detector.Close()
		r.detector = nil
	}
	if r.embedder != nil {
		r.embedder.Close()
		r.embedder = nil
	}
	if r.ownsEnv {
		_ = ort.DestroyEnvironment()
		r.ownsEnv = false
	}
}

func onnxLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "libonnxruntime.so"
	}
}
