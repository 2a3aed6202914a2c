//go:build gocv

package video

import (
	"context"
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

type gocvCapture struct {
	vc   *gocv.VideoCapture
	mat  gocv.Mat
	info Info
}

func openGoCV(_ context.Context, url string) (Capture, error) {
	vc, err := gocv.OpenVideoCapture(url)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return nil, errors.New("capture did not open")
	}
	// keep latency low: always read the newest frame
	vc.Set(gocv.VideoCaptureBufferSize, 1)

	return &gocvCapture{
		vc:  vc,
		mat: gocv.NewMat(),
		info: Info{
			Width:  int(vc.Get(gocv.VideoCaptureFrameWidth)),
			Height: int(vc.Get(gocv.VideoCaptureFrameHeight)),
			FPS:    vc.Get(gocv.VideoCaptureFPS),
		},
	}, nil
}

func (c *gocvCapture) Read() (image.Image, error) {
	if ok := c.vc.Read(&c.mat); !ok || c.mat.Empty() {
		return nil, errors.New("capture read returned no frame")
	}
	img, err := c.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	return img, nil
}

func (c *gocvCapture) Info() Info { return c.info }

func (c *gocvCapture) Close() error {
	_ = c.mat.Close()
	return c.vc.Close()
}
