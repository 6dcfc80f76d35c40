package tagging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"fieldcam/internal/capture"
	"fieldcam/internal/location"
	"fieldcam/internal/logging"
	"fieldcam/internal/services"
)

// DefaultStalenessThreshold applies when no threshold is configured.
const DefaultStalenessThreshold = 2 * time.Second

// FixSource exposes the latest known fix. Latest must not block.
type FixSource interface {
	Latest() (location.Fix, bool)
}

// Sink accepts tagged frames without blocking. A full queue is reported with
// an error marked services.ErrBackpressure.
type Sink interface {
	Submit(TaggedFrame) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(TaggedFrame) error

// Submit calls f.
func (f SinkFunc) Submit(tf TaggedFrame) error { return f(tf) }

// Counters is a snapshot of coordinator activity.
type Counters struct {
	FramesTagged   uint64 `json:"frames_tagged"`
	StaleTags      uint64 `json:"stale_tags"`
	NoFixTags      uint64 `json:"no_fix_tags"`
	QueueFullDrops uint64 `json:"queue_full_drops"`
	SubmitErrors   uint64 `json:"submit_errors"`
	InternalDrops  uint64 `json:"internal_drops"`
}

// Coordinator tags frames as they are delivered and forwards them to a Sink.
type Coordinator struct {
	fixes     FixSource
	sink      Sink
	sessionID string
	logger    *slog.Logger
	sampler   *logging.RateSampler
	now       func() time.Time

	threshold atomic.Int64

	tagged        atomic.Uint64
	stale         atomic.Uint64
	noFix         atomic.Uint64
	queueFull     atomic.Uint64
	submitErrors  atomic.Uint64
	internalDrops atomic.Uint64
}

// NewCoordinator builds a coordinator reading fixes from fixes and submitting
// to sink. A nil sink tags frames without forwarding them.
func NewCoordinator(fixes FixSource, sink Sink, sessionID string, logger *slog.Logger) *Coordinator {
	c := &Coordinator{
		fixes:     fixes,
		sink:      sink,
		sessionID: sessionID,
		logger:    logging.NewComponentLogger(logger, "tagging"),
		sampler:   logging.NewRateSampler(0),
		now:       time.Now,
	}
	c.threshold.Store(int64(DefaultStalenessThreshold))
	return c
}

// SetStalenessThreshold changes the threshold used for subsequent frames.
// Non-positive values restore the default.
func (c *Coordinator) SetStalenessThreshold(d time.Duration) {
	if d <= 0 {
		d = DefaultStalenessThreshold
	}
	c.threshold.Store(int64(d))
}

// StalenessThreshold returns the active threshold.
func (c *Coordinator) StalenessThreshold() time.Duration {
	return time.Duration(c.threshold.Load())
}

// Tag pairs frame with the current fix. It never blocks and never fails.
//
// Age is measured from the fix timestamp to the frame's capture time, so a fix
// newer than the frame yields a negative age, which is treated as fresh.
func (c *Coordinator) Tag(frame capture.Frame) TaggedFrame {
	tf := TaggedFrame{
		Frame:     frame,
		SessionID: c.sessionID,
		TaggedAt:  c.now(),
		Stale:     true,
	}
	if c.fixes == nil {
		return tf
	}
	fix, ok := c.fixes.Latest()
	if !ok {
		return tf
	}
	age := frame.Timestamp.Sub(fix.Timestamp)
	tf.Fix = &fix
	tf.FixAge = age
	tf.Stale = age > c.StalenessThreshold()
	return tf
}

// HandleFrame tags frame and submits it. It matches capture.Handler and is
// safe to install directly on a capture.Source.
func (c *Coordinator) HandleFrame(ctx context.Context, frame capture.Frame) {
	defer func() {
		if r := recover(); r != nil {
			c.internalDrops.Add(1)
			logging.ErrorWithContext(c.logger, "frame tagging failed", "tagging_panic",
				logging.Uint64(logging.FieldFrameSeq, frame.Seq),
				logging.String("panic", fmt.Sprint(r)),
				logging.String(logging.FieldErrorHint, "frame skipped; capture continues"),
			)
		}
	}()

	tf := c.Tag(frame)
	var err error
	if c.sink != nil {
		err = c.sink.Submit(tf)
	}
	// Tag counters move only once the hand-off returned, so a frame lost to a
	// panic is counted in InternalDrops alone.
	c.tagged.Add(1)
	if !tf.HasFix() {
		c.noFix.Add(1)
	}
	if tf.Stale {
		c.stale.Add(1)
	}
	if err == nil {
		return
	}
	logger := logging.WithContext(ctx, c.logger)
	if errors.Is(err, services.ErrBackpressure) {
		c.queueFull.Add(1)
		if ok, suppressed := c.sampler.Allow("queue_full", c.now()); ok {
			logging.WarnWithContext(logger, "upload queue full; frame not queued", "upload_queue_full",
				logging.Int("suppressed", suppressed),
				logging.String(logging.FieldErrorHint, "raise upload.queue_capacity or check uplink throughput"),
				logging.String(logging.FieldImpact, "frame captured and tagged but will not be uploaded"),
			)
		}
		return
	}
	c.submitErrors.Add(1)
	if ok, suppressed := c.sampler.Allow("submit_error", c.now()); ok {
		logging.WarnWithContext(logger, "upload submit rejected", "upload_submit_rejected",
			logging.Error(err),
			logging.Int("suppressed", suppressed),
		)
	}
}

// Counters returns a snapshot of coordinator counters.
func (c *Coordinator) Counters() Counters {
	return Counters{
		FramesTagged:   c.tagged.Load(),
		StaleTags:      c.stale.Load(),
		NoFixTags:      c.noFix.Load(),
		QueueFullDrops: c.queueFull.Load(),
		SubmitErrors:   c.submitErrors.Load(),
		InternalDrops:  c.internalDrops.Load(),
	}
}
