package video

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
)

const maxJPEGFrame = 10 * 1024 * 1024

// ffmpegCapture reads an MJPEG stream written by an ffmpeg subprocess.
type ffmpegCapture struct {
	reader *bufio.Reader
	stop   func() error

	mu   sync.Mutex
	info Info
}

// OpenFFmpeg starts ffmpeg against url. The process outlives ctx and is
// stopped by Close.
func OpenFFmpeg(_ context.Context, url string) (Capture, error) {
	procCtx, cancel := context.WithCancel(context.Background())

	args := []string{"-hide_banner", "-loglevel", "warning"}
	if strings.HasPrefix(url, "rtsp://") || strings.HasPrefix(url, "rtsps://") {
		args = append(args,
			"-rtsp_transport", "tcp",
			"-timeout", "5000000", // microseconds
		)
	}
	args = append(args,
		"-i", url,
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "3",
		"pipe:1",
	)

	cmd := exec.CommandContext(procCtx, "ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpeg stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			slog.Warn("ffmpeg stderr", "url", MaskURL(url), "output", scanner.Text())
		}
	}()

	return newPipeCapture(stdout, func() error {
		cancel()
		err := cmd.Wait()
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// killed by us
			return nil
		}
		return err
	}), nil
}

func newPipeCapture(r io.Reader, stop func() error) *ffmpegCapture {
	return &ffmpegCapture{
		reader: bufio.NewReaderSize(r, 512*1024),
		stop:   stop,
	}
}

func (c *ffmpegCapture) Read() (image.Image, error) {
	if err := findJPEGStart(c.reader); err != nil {
		return nil, fmt.Errorf("find frame start: %w", err)
	}
	data, err := readUntilJPEGEnd(c.reader)
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	c.mu.Lock()
	if c.info.Width == 0 {
		b := img.Bounds()
		c.info = Info{Width: b.Dx(), Height: b.Dy()}
	}
	c.mu.Unlock()
	return img, nil
}

func (c *ffmpegCapture) Info() Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.info
}

func (c *ffmpegCapture) Close() error {
	if c.stop == nil {
		return nil
	}
	return c.stop()
}

func findJPEGStart(r *bufio.Reader) error {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		if b != 0xFF {
			continue
		}
		b, err = r.ReadByte()
		if err != nil {
			return err
		}
		if b == 0xD8 {
			return nil
		}
		if b == 0xFF {
			_ = r.UnreadByte()
		}
	}
}

func readUntilJPEGEnd(r *bufio.Reader) ([]byte, error) {
	data := []byte{0xFF, 0xD8}
	prev := byte(0)

	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		data = append(data, b)
		if prev == 0xFF && b == 0xD9 {
			return data, nil
		}
		prev = b

		if len(data) > maxJPEGFrame {
			return nil, fmt.Errorf("jpeg frame larger than %d bytes", maxJPEGFrame)
		}
	}
}
