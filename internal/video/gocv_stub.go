//go:build !gocv

package video

import (
	"context"
	"fmt"
)

func openGoCV(context.Context, string) (Capture, error) {
	return nil, fmt.Errorf("%w: gocv support not compiled in; rebuild with -tags gocv or set video.backend=ffmpeg", ErrUnsupportedBackend)
}
