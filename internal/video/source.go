package video

import (
	"context"
	"errors"
	"image"
)

var (
	// ErrNoFrame means no frame could be read even after reconnecting.
	ErrNoFrame = errors.New("no frame available from video source")
	// ErrClosed is returned once the source has been released.
	ErrClosed = errors.New("video source released")
	// ErrUnsupportedBackend means the configured capture backend is not part
	// of this build. Reconnecting cannot fix it.
	ErrUnsupportedBackend = errors.New("unsupported video backend")
)

// Source yields decoded frames from a camera.
type Source interface {
	Connect(ctx context.Context) error
	GetFrame(ctx context.Context) (image.Image, error)
	IsConnected() bool
	Release() error
}

type Info struct {
	Width  int
	Height int
	FPS    float64
}

// Capture is a single opened stream. A failed Read leaves the capture
// unusable; callers close it and open a new one.
type Capture interface {
	Read() (image.Image, error)
	Info() Info
	Close() error
}

// Opener opens a capture on url.
type Opener func(ctx context.Context, url string) (Capture, error)
