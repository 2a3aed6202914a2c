package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/your-org/facewatch/internal/config"
	"github.com/your-org/facewatch/internal/observability"
)

// Reconnecting reopens its capture whenever a read fails. It is driven by a
// single reader; Release may be called from any goroutine.
type Reconnecting struct {
	url      string
	open     Opener
	attempts int
	delay    time.Duration

	mu       sync.Mutex
	capture  Capture
	info     Info
	released bool
}

// New builds a reconnecting source for the configured camera and backend.
func New(cfg config.VideoConfig) (*Reconnecting, error) {
	var open Opener
	switch cfg.Backend {
	case "gocv":
		open = openGoCV
	case "", "ffmpeg":
		open = OpenFFmpeg
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, cfg.Backend)
	}
	return NewReconnecting(BuildRTSPURL(cfg), resolving(open), cfg.MaxReconnectAttempts, cfg.ReconnectDelay()), nil
}

func NewReconnecting(url string, open Opener, attempts int, delay time.Duration) *Reconnecting {
	if attempts < 1 {
		attempts = 1
	}
	return &Reconnecting{url: url, open: open, attempts: attempts, delay: delay}
}

// Connect opens the stream and reads one test frame, retrying with a fixed
// delay between attempts.
func (r *Reconnecting) Connect(ctx context.Context) error {
	r.closeCapture()

	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		if r.isReleased() {
			return ErrClosed
		}

		c, err := r.tryOpen(ctx)
		if err == nil {
			r.mu.Lock()
			if r.released {
				r.mu.Unlock()
				_ = c.Close()
				return ErrClosed
			}
			r.capture = c
			r.info = c.Info()
			r.mu.Unlock()

			observability.SourceConnected.Set(1)
			slog.Info("video source connected",
				"url", MaskURL(r.url),
				"width", r.info.Width,
				"height", r.info.Height,
				"fps", r.info.FPS,
			)
			return nil
		}

		if errors.Is(err, ErrUnsupportedBackend) {
			return err
		}
		lastErr = err
		slog.Warn("video connect attempt failed",
			"url", MaskURL(r.url),
			"attempt", attempt,
			"max_attempts", r.attempts,
			"error", err,
		)
		if attempt == r.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.delay):
		}
	}
	return fmt.Errorf("connect %s: giving up after %d attempts: %w", MaskURL(r.url), r.attempts, lastErr)
}

func (r *Reconnecting) tryOpen(ctx context.Context) (Capture, error) {
	c, err := r.open(ctx, r.url)
	if err != nil {
		return nil, err
	}
	if _, err := c.Read(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("test frame: %w", err)
	}
	return c, nil
}

// GetFrame returns the next frame. A failed read triggers one reconnect and
// one more read before giving up with ErrNoFrame.
func (r *Reconnecting) GetFrame(ctx context.Context) (image.Image, error) {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	c := r.capture
	r.mu.Unlock()

	if c != nil {
		img, err := c.Read()
		if err == nil {
			observability.FramesRead.Inc()
			return img, nil
		}
		slog.Warn("video read failed, reconnecting", "url", MaskURL(r.url), "error", err)
	}

	observability.SourceReconnects.Inc()
	if err := r.Connect(ctx); err != nil {
		if errors.Is(err, ErrClosed) || errors.Is(err, ErrUnsupportedBackend) || ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrNoFrame, err)
	}

	r.mu.Lock()
	c = r.capture
	r.mu.Unlock()
	if c == nil {
		return nil, ErrClosed
	}

	img, err := c.Read()
	if err != nil {
		r.closeCapture()
		return nil, fmt.Errorf("%w: %v", ErrNoFrame, err)
	}
	observability.FramesRead.Inc()
	return img, nil
}

func (r *Reconnecting) IsConnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.capture != nil
}

func (r *Reconnecting) Info() Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.info
}

// Release closes the capture. Later calls to Connect and GetFrame return
// ErrClosed. It is safe to call more than once.
func (r *Reconnecting) Release() error {
	r.mu.Lock()
	r.released = true
	c := r.capture
	r.capture = nil
	r.mu.Unlock()

	observability.SourceConnected.Set(0)
	if c == nil {
		return nil
	}
	slog.Info("video source released", "url", MaskURL(r.url))
	return c.Close()
}

func (r *Reconnecting) isReleased() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.released
}

func (r *Reconnecting) closeCapture() {
	r.mu.Lock()
	c := r.capture
	r.capture = nil
	r.mu.Unlock()

	if c != nil {
		observability.SourceConnected.Set(0)
		_ = c.Close()
	}
}
