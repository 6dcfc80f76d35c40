package testsupport

import (
	"context"
	"errors"
	"sync"
	"time"

	"fieldcam/internal/capture"
	"fieldcam/internal/location"
)

// ScriptedDevice is a capture.Device fed step by step from tests.
type ScriptedDevice struct {
	OpenErr error

	steps chan deviceStep

	mu      sync.Mutex
	opens   int
	closes  int
	cfg     capture.Config
	readCtx context.Context
}

type deviceStep struct {
	frame capture.RawFrame
	err   error
}

// NewScriptedDevice returns a device whose ReadFrame yields pushed steps in order.
func NewScriptedDevice() *ScriptedDevice {
	return &ScriptedDevice{steps: make(chan deviceStep, 256)}
}

// PushFrame queues a good frame captured at ts.
func (d *ScriptedDevice) PushFrame(ts time.Time) {
	d.steps <- deviceStep{frame: capture.RawFrame{Timestamp: ts, Width: 2, Height: 2, Format: "gray8", Data: []byte{1, 2, 3, 4}}}
}

// PushEmpty queues a frame with no pixel data.
func (d *ScriptedDevice) PushEmpty(ts time.Time) {
	d.steps <- deviceStep{frame: capture.RawFrame{Timestamp: ts}}
}

// PushError queues a read error (use capture.ErrCorruptFrame for a drop).
func (d *ScriptedDevice) PushError(err error) {
	d.steps <- deviceStep{err: err}
}

func (d *ScriptedDevice) Open(_ context.Context, cfg capture.Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.OpenErr != nil {
		return d.OpenErr
	}
	d.opens++
	d.cfg = cfg
	return nil
}

func (d *ScriptedDevice) ReadFrame(ctx context.Context) (capture.RawFrame, error) {
	d.mu.Lock()
	d.readCtx = ctx
	d.mu.Unlock()
	select {
	case <-ctx.Done():
		return capture.RawFrame{}, ctx.Err()
	case step := <-d.steps:
		return step.frame, step.err
	}
}

func (d *ScriptedDevice) Close() error {
	d.mu.Lock()
	d.closes++
	d.mu.Unlock()
	return nil
}

// Opens reports how many times Open succeeded.
func (d *ScriptedDevice) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

// Closes reports how many times Close ran.
func (d *ScriptedDevice) Closes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

// LastReadContext returns the context passed to the most recent ReadFrame.
func (d *ScriptedDevice) LastReadContext() context.Context {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readCtx
}

// LastConfig returns the config passed to the most recent Open.
func (d *ScriptedDevice) LastConfig() capture.Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// ManualProvider is a location.Provider whose fixes are pushed by tests.
type ManualProvider struct {
	OpenErr error

	fixes chan location.Fix
	acks  chan struct{}
	fail  chan error
}

// NewManualProvider returns a provider driven by Emit and Fail.
func NewManualProvider() *ManualProvider {
	return &ManualProvider{fixes: make(chan location.Fix), acks: make(chan struct{}), fail: make(chan error, 1)}
}

// Emit hands fix to the running tracker and returns once the tracker has
// stored it.
func (p *ManualProvider) Emit(fix location.Fix) {
	p.fixes <- fix
	<-p.acks
}

// Fail ends the stream with err.
func (p *ManualProvider) Fail(err error) {
	p.fail <- err
}

func (p *ManualProvider) Name() string { return "manual" }

func (p *ManualProvider) Open(context.Context) error { return p.OpenErr }

func (p *ManualProvider) Run(ctx context.Context, emit func(location.Fix)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-p.fail:
			if err == nil {
				err = errors.New("provider failed")
			}
			return err
		case fix := <-p.fixes:
			emit(fix)
			p.acks <- struct{}{}
		}
	}
}

func (p *ManualProvider) Close() error { return nil }
