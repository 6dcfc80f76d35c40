// Package opencv provides a capture.Device backed by an OpenCV VideoCapture.
// Frames are JPEG-encoded before delivery so downstream code never holds
// native Mat memory.
package opencv

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"gocv.io/x/gocv"

	"fieldcam/internal/capture"
	"fieldcam/internal/preflight"
)

// Device reads from a V4L2 node (e.g. /dev/video0), a numeric camera index, or
// a stream URL.
type Device struct {
	vc   *gocv.VideoCapture
	mat  gocv.Mat
	mode capture.Mode
}

func init() {
	capture.RegisterBackend("opencv", func(capture.BackendOptions) (capture.Device, error) {
		return New(), nil
	})
}

// New returns an unopened device.
func New() *Device {
	return &Device{}
}

func (d *Device) Open(_ context.Context, cfg capture.Config) error {
	target := strings.TrimSpace(cfg.Device)
	if strings.HasPrefix(target, "/dev/") {
		if err := preflight.CheckDevice(target, true); err != nil {
			if errors.Is(err, fs.ErrPermission) {
				return fmt.Errorf("%w: %w", capture.ErrPermissionDenied, err)
			}
			return fmt.Errorf("%w: %w", capture.ErrUnavailable, err)
		}
	}

	var source any = target
	if idx, err := strconv.Atoi(target); err == nil {
		source = idx
	}
	vc, err := gocv.OpenVideoCapture(source)
	if err != nil {
		return fmt.Errorf("%w: %w", capture.ErrUnavailable, err)
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return fmt.Errorf("%w: %s did not open", capture.ErrUnavailable, target)
	}
	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Mode.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Mode.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(cfg.Mode.FPS))

	d.vc = vc
	d.mat = gocv.NewMat()
	d.mode = cfg.Mode
	return nil
}

// ReadFrame blocks in the driver for at most one frame period, so ctx is only
// checked between reads.
func (d *Device) ReadFrame(ctx context.Context) (capture.RawFrame, error) {
	if d.vc == nil {
		return capture.RawFrame{}, capture.ErrUnavailable
	}
	if err := ctx.Err(); err != nil {
		return capture.RawFrame{}, err
	}
	if ok := d.vc.Read(&d.mat); !ok {
		return capture.RawFrame{}, fmt.Errorf("%w: device read failed", capture.ErrCaptureInterrupted)
	}
	ts := time.Now()
	if d.mat.Empty() {
		return capture.RawFrame{}, fmt.Errorf("%w: empty frame", capture.ErrCorruptFrame)
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, d.mat)
	if err != nil {
		return capture.RawFrame{}, fmt.Errorf("%w: encode: %w", capture.ErrCorruptFrame, err)
	}
	defer buf.Close()
	data := append([]byte(nil), buf.GetBytes()...)

	return capture.RawFrame{
		Timestamp: ts,
		Width:     d.mat.Cols(),
		Height:    d.mat.Rows(),
		Format:    "jpeg",
		Data:      data,
	}, nil
}

func (d *Device) Close() error {
	if d.vc == nil {
		return nil
	}
	_ = d.mat.Close()
	err := d.vc.Close()
	d.vc = nil
	return err
}
