package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"fieldcam/internal/logging"
	"fieldcam/internal/services"
)

// Source turns a Device into an ordered frame stream. Sequence numbers keep
// increasing across Start calls on the same Source, so a restart after an
// interruption never reissues a number.
type Source struct {
	device   Device
	logger   *slog.Logger
	listener Listener
	sampler  *logging.RateSampler
	now      func() time.Time

	captured atomic.Uint64
	dropped  atomic.Uint64
	lastSeq  uint64 // only touched by the delivery goroutine or under mu while stopped

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	opened  bool
}

// NewSource wraps device. listener callbacks are optional.
func NewSource(device Device, logger *slog.Logger, listener Listener) *Source {
	return &Source{
		device:   device,
		logger:   logging.NewComponentLogger(logger, "capture"),
		listener: listener,
		sampler:  logging.NewRateSampler(5 * time.Second),
		now:      time.Now,
	}
}

// Start opens the device with cfg and begins delivering frames to handler on
// a dedicated goroutine. It returns ErrPermissionDenied or ErrUnavailable when
// the device cannot be opened. Starting a running source is a no-op.
func (s *Source) Start(ctx context.Context, cfg Config, handler Handler) error {
	if handler == nil {
		return errors.New("start capture: nil handler")
	}
	if err := cfg.Mode.Validate(); err != nil {
		return services.Wrap(services.ErrValidation, "capture", "start", "invalid mode", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		select {
		case <-s.done:
			// Delivery halted after an interruption; reopen below.
			s.cancel()
			s.closeDeviceLocked()
			s.running = false
		default:
			return nil
		}
	}

	if err := s.device.Open(ctx, cfg); err != nil {
		if !errors.Is(err, ErrPermissionDenied) && !errors.Is(err, ErrUnavailable) {
			err = fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return fmt.Errorf("open capture device %s: %w", cfg.Device, err)
	}
	s.opened = true

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	s.sampler.Reset()
	go s.deliver(runCtx, handler, s.done)

	s.logger.Info("capture started",
		logging.String("device", cfg.Device),
		logging.String("mode", cfg.Mode.Name),
		logging.Int("width", cfg.Mode.Width),
		logging.Int("height", cfg.Mode.Height),
		logging.Int("fps", cfg.Mode.FPS),
	)
	return nil
}

func (s *Source) deliver(ctx context.Context, handler Handler, done chan struct{}) {
	defer close(done)
	for {
		if ctx.Err() != nil {
			return
		}
		raw, err := s.device.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, ErrCorruptFrame) {
				s.drop(err)
				continue
			}
			s.interrupt(err)
			return
		}
		if len(raw.Data) == 0 {
			s.drop(ErrCorruptFrame)
			continue
		}

		s.lastSeq++
		ts := raw.Timestamp
		if ts.IsZero() {
			ts = s.now()
		}
		frame := Frame{
			Seq:       s.lastSeq,
			Timestamp: ts,
			Width:     raw.Width,
			Height:    raw.Height,
			Format:    raw.Format,
			Data:      raw.Data,
		}
		s.captured.Add(1)
		handler(services.WithFrameSeq(ctx, frame.Seq), frame)
	}
}

func (s *Source) drop(cause error) {
	total := s.dropped.Add(1)
	err := fmt.Errorf("%w: %w", ErrFrameDropped, cause)
	if ok, suppressed := s.sampler.Allow("frame_dropped", s.now()); ok {
		logging.WarnWithContext(s.logger, "frame dropped", "capture_frame_dropped",
			logging.Error(cause),
			logging.Uint64("dropped_total", total),
			logging.Int("suppressed", suppressed),
			logging.String(logging.FieldImpact, "frame skipped; sequence continues with next good frame"),
			logging.String(logging.FieldErrorHint, "check device bandwidth or lower the capture mode"),
		)
	}
	if s.listener.FrameDropped != nil {
		s.listener.FrameDropped(err)
	}
}

func (s *Source) interrupt(cause error) {
	err := fmt.Errorf("%w: %w", ErrCaptureInterrupted, cause)
	if errors.Is(cause, ErrCaptureInterrupted) {
		err = cause
	}
	logging.ErrorWithContext(s.logger, "capture interrupted", "capture_interrupted",
		logging.Error(cause),
		logging.Uint64("last_seq", s.lastSeq),
		logging.String(logging.FieldErrorHint, "reconnect the camera; capture resumes on next start"),
	)
	if s.listener.Interrupted != nil {
		s.listener.Interrupted(err)
	}
}

// Stop ceases production. When Stop returns the handler is not running and
// will not be called again. Stop must not be called from inside the handler.
func (s *Source) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.cancel()
	<-s.done
	s.closeDeviceLocked()
	s.running = false
	s.cancel = nil
	s.logger.Info("capture stopped",
		logging.Uint64("frames_captured", s.captured.Load()),
		logging.Uint64("frames_dropped", s.dropped.Load()),
	)
}

func (s *Source) closeDeviceLocked() {
	if !s.opened {
		return
	}
	s.opened = false
	if err := s.device.Close(); err != nil {
		s.logger.Debug("capture device close failed", logging.Error(err))
	}
}

// Delivering reports whether the delivery goroutine is active.
func (s *Source) Delivering() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// FramesCaptured reports frames delivered to the handler.
func (s *Source) FramesCaptured() uint64 { return s.captured.Load() }

// FramesDropped reports corrupt or empty frames that were skipped.
func (s *Source) FramesDropped() uint64 { return s.dropped.Load() }
