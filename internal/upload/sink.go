package upload

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
	"fieldcam/internal/tagging"
)

const (
	DefaultCapacity       = 16
	DefaultMaxRetries     = 3
	DefaultBackoffInitial = 500 * time.Millisecond
	DefaultBackoffMax     = 10 * time.Second
)

// Options configures a Sink.
type Options struct {
	// Capacity bounds the number of accepted tickets that have not resolved,
	// including the one being sent.
	Capacity       int
	MaxRetries     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	// RequestTimeout bounds a single Send; zero leaves it unbounded.
	RequestTimeout time.Duration
	// OnResolved observes every accepted ticket once it resolves. It runs on
	// the worker goroutine, or on the Stop caller for discarded tickets, and
	// must not block for long. Queue-full rejections are not reported here.
	OnResolved func(*Ticket)
	Logger     *slog.Logger
}

// Counters is a snapshot of sink activity.
type Counters struct {
	Submitted uint64 `json:"submitted"`
	QueueFull uint64 `json:"queue_full"`
	Sent      uint64 `json:"sent"`
	Failed    uint64 `json:"failed"`
	Discarded uint64 `json:"discarded"`
	Abandoned uint64 `json:"abandoned"`
	Retries   uint64 `json:"retries"`
	Depth     int    `json:"depth"`
}

// Sink is a bounded FIFO upload queue drained by a single worker.
type Sink struct {
	transport Transport
	opts      Options
	logger    *slog.Logger
	now       func() time.Time
	sleep     func(ctx context.Context, halt <-chan struct{}, d time.Duration) error

	queue chan *Ticket

	mu      sync.Mutex
	closed  bool
	pending int

	haltOnce   sync.Once
	halt       chan struct{}
	discarding atomic.Bool

	workerCtx    context.Context
	cancelWorker context.CancelFunc
	done         chan struct{}

	closeOnce sync.Once
	closeErr  error

	submitted atomic.Uint64
	queueFull atomic.Uint64
	sent      atomic.Uint64
	failed    atomic.Uint64
	discarded atomic.Uint64
	abandoned atomic.Uint64
	retries   atomic.Uint64
}

// NewSink starts a sink delivering through transport.
func NewSink(transport Transport, opts Options) *Sink {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.BackoffInitial <= 0 {
		opts.BackoffInitial = DefaultBackoffInitial
	}
	if opts.BackoffMax < opts.BackoffInitial {
		opts.BackoffMax = opts.BackoffInitial
	}
	if transport == nil {
		transport = &DiscardTransport{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Sink{
		transport:    transport,
		opts:         opts,
		logger:       logging.NewComponentLogger(opts.Logger, "upload"),
		now:          time.Now,
		sleep:        sleepOrHalt,
		queue:        make(chan *Ticket, opts.Capacity),
		halt:         make(chan struct{}),
		workerCtx:    ctx,
		cancelWorker: cancel,
		done:         make(chan struct{}),
	}
	go s.run()
	return s
}

// Submit enqueues tf without blocking. When the sink is at capacity it returns
// ErrQueueFull together with a ticket that is already failed; the frame is not
// retained.
func (s *Sink) Submit(tf tagging.TaggedFrame) (*Ticket, error) {
	t := newTicket(tf, s.now())

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		t.resolve(StatusFailed, ErrSinkClosed, s.now())
		return t, ErrSinkClosed
	}
	if s.pending >= s.opts.Capacity {
		s.mu.Unlock()
		s.queueFull.Add(1)
		t.resolve(StatusFailed, ErrQueueFull, s.now())
		return t, ErrQueueFull
	}
	s.pending++
	// pending <= capacity == cap(queue), so this send never blocks.
	s.queue <- t
	s.mu.Unlock()

	s.submitted.Add(1)
	return t, nil
}

// Stop stops accepting submissions. With drain set, the worker finishes every
// queued ticket; otherwise queued tickets resolve with ErrDiscarded and the
// in-flight ticket gets no further retries. If ctx ends first, the in-flight
// send is cancelled, remaining tickets resolve with ErrAbandoned, and Stop
// returns an error wrapping ErrAbandoned if any ticket was abandoned. The
// transport is closed before Stop returns.
func (s *Sink) Stop(ctx context.Context, drain bool) error {
	abandonedBefore := s.abandoned.Load()

	s.mu.Lock()
	if !drain {
		s.haltOnce.Do(func() {
			s.discarding.Store(true)
			close(s.halt)
		})
	}
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	if s.discarding.Load() {
		s.discardQueued()
	}

	var stopErr error
	select {
	case <-s.done:
	case <-ctx.Done():
		s.cancelWorker()
		<-s.done
		// An expired ctx can win the select against an idle worker.
		if s.abandoned.Load() > abandonedBefore {
			stopErr = fmt.Errorf("stop upload sink: %w: %w", ErrAbandoned, context.Cause(ctx))
		}
	}
	s.cancelWorker()

	s.closeOnce.Do(func() {
		if err := s.transport.Close(); err != nil {
			s.closeErr = fmt.Errorf("close upload transport: %w", err)
		}
	})
	if stopErr != nil {
		return stopErr
	}
	return s.closeErr
}

// discardQueued resolves whatever is still buffered. The worker may race for
// the same tickets; each ticket is received by exactly one of them.
func (s *Sink) discardQueued() {
	for t := range s.queue {
		s.finish(t, StatusFailed, ErrDiscarded)
	}
}

// Done is closed once the worker has exited.
func (s *Sink) Done() <-chan struct{} {
	return s.done
}

// Counters returns a snapshot of sink counters.
func (s *Sink) Counters() Counters {
	s.mu.Lock()
	depth := s.pending
	s.mu.Unlock()
	return Counters{
		Submitted: s.submitted.Load(),
		QueueFull: s.queueFull.Load(),
		Sent:      s.sent.Load(),
		Failed:    s.failed.Load(),
		Discarded: s.discarded.Load(),
		Abandoned: s.abandoned.Load(),
		Retries:   s.retries.Load(),
		Depth:     depth,
	}
}

func (s *Sink) run() {
	defer close(s.done)
	for t := range s.queue {
		switch {
		case s.workerCtx.Err() != nil:
			s.finish(t, StatusFailed, fmt.Errorf("%w: %w", ErrAbandoned, s.workerCtx.Err()))
		case s.discarding.Load():
			s.finish(t, StatusFailed, ErrDiscarded)
		default:
			s.deliver(s.workerCtx, t)
		}
	}
}

func (s *Sink) deliver(ctx context.Context, t *Ticket) {
	payload, err := Encode(t.ID, t.frame)
	if err != nil {
		s.finish(t, StatusFailed, fmt.Errorf("%w: %w", ErrUploadFailed, err))
		return
	}

	for attempt := 1; ; attempt++ {
		t.setAttempts(attempt)
		err := s.send(ctx, payload, Meta{
			TicketID:    t.ID,
			SessionID:   t.SessionID,
			Seq:         t.Seq,
			Attempt:     attempt,
			ContentType: ContentType,
		})
		if err == nil {
			s.finish(t, StatusSent, nil)
			return
		}
		if ctx.Err() != nil {
			s.finish(t, StatusFailed, fmt.Errorf("%w: %w", ErrAbandoned, err))
			return
		}
		if attempt > s.opts.MaxRetries || !services.Retryable(err) || s.discarding.Load() {
			s.finish(t, StatusFailed, fmt.Errorf("%w after %d attempt(s): %w", ErrUploadFailed, attempt, err))
			return
		}

		delay := backoffDelay(attempt, s.opts.BackoffInitial, s.opts.BackoffMax)
		s.retries.Add(1)
		s.logger.Debug("upload attempt failed; retrying",
			logging.String(logging.FieldTicketID, t.ID),
			logging.Uint64(logging.FieldFrameSeq, t.Seq),
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err),
		)
		if err := s.sleep(ctx, s.halt, delay); err != nil {
			if errors.Is(err, errHalted) {
				s.finish(t, StatusFailed, ErrDiscarded)
			} else {
				s.finish(t, StatusFailed, fmt.Errorf("%w: %w", ErrAbandoned, err))
			}
			return
		}
	}
}

func (s *Sink) send(ctx context.Context, payload []byte, meta Meta) error {
	if s.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RequestTimeout)
		defer cancel()
	}
	return s.transport.Send(ctx, payload, meta)
}

func (s *Sink) finish(t *Ticket, status Status, err error) {
	if !t.resolve(status, err, s.now()) {
		return
	}
	s.mu.Lock()
	s.pending--
	s.mu.Unlock()

	switch {
	case status == StatusSent:
		s.sent.Add(1)
		s.logger.Debug("upload sent",
			logging.String(logging.FieldTicketID, t.ID),
			logging.Uint64(logging.FieldFrameSeq, t.Seq),
			logging.Int("attempts", t.Attempts()),
		)
	case errors.Is(err, ErrDiscarded):
		s.discarded.Add(1)
	case errors.Is(err, ErrAbandoned):
		s.abandoned.Add(1)
	default:
		s.failed.Add(1)
		logging.WarnWithContext(s.logger, "upload failed", "upload_failed",
			logging.String(logging.FieldTicketID, t.ID),
			logging.Uint64(logging.FieldFrameSeq, t.Seq),
			logging.Int("attempts", t.Attempts()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check upload.endpoint reachability and credentials"),
			logging.String(logging.FieldImpact, "frame will not reach the receiver"),
		)
	}
	if s.opts.OnResolved != nil {
		s.opts.OnResolved(t)
	}
}
