package capture

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrPermissionDenied reports that the device refused access.
	ErrPermissionDenied = errors.New("capture permission denied")
	// ErrUnavailable reports that the device could not be opened.
	ErrUnavailable = errors.New("capture device unavailable")
	// ErrCaptureInterrupted reports that frame production stopped unexpectedly.
	ErrCaptureInterrupted = errors.New("capture interrupted")
	// ErrCorruptFrame is returned by a Device for a frame it could not decode.
	ErrCorruptFrame = errors.New("corrupt frame")
	// ErrFrameDropped accompanies drop notifications.
	ErrFrameDropped = errors.New("frame dropped")
)

// Frame is a captured image plus its capture metadata. Ownership passes to the
// handler; the source never touches Data again after delivery.
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	Width     int
	Height    int
	Format    string
	Data      []byte
}

// RawFrame is what a Device produces before the source assigns a sequence number.
type RawFrame struct {
	Timestamp time.Time
	Width     int
	Height    int
	Format    string
	Data      []byte
}

// Config is the device handle and mode a source opens with.
type Config struct {
	Device string
	Mode   Mode
}

// Handler consumes delivered frames. It runs on the source's delivery goroutine.
type Handler func(ctx context.Context, frame Frame)

// Device is an opaque capture handle.
//
// ReadFrame blocks until the next frame is available or ctx ends. It returns
// ErrCorruptFrame for a single unusable frame; any other error means the device
// is gone. Returned buffers must not be reused by the device.
type Device interface {
	Open(ctx context.Context, cfg Config) error
	ReadFrame(ctx context.Context) (RawFrame, error)
	Close() error
}

// Listener receives out-of-band notifications from a Source. Both callbacks run
// on the delivery goroutine and must not block or call Stop.
type Listener struct {
	Interrupted  func(err error)
	FrameDropped func(err error)
}
