//go:build !dlib

package vision

import (
	"errors"

	"github.com/your-org/facewatch/internal/config"
)

func newDlibRecognizer(config.RecognitionConfig) (Recognizer, error) {
	return nil, errors.New("dlib support not compiled in; rebuild with -tags dlib or set recognition.backend=onnx")
}
