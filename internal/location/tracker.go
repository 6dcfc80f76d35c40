package location

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"fieldcam/internal/logging"
)

// Provider produces fixes from some underlying source.
//
// Open acquires the source and reports ErrPermissionDenied or ErrUnavailable
// when it cannot. Run streams fixes into emit until ctx ends or the source
// fails. Close releases whatever Open acquired.
type Provider interface {
	Name() string
	Open(ctx context.Context) error
	Run(ctx context.Context, emit func(Fix)) error
	Close() error
}

// Tracker wraps a Provider and retains only the latest fix.
type Tracker struct {
	provider Provider
	logger   *slog.Logger
	onFault  func(error)

	latest atomic.Pointer[Fix]
	fixes  atomic.Uint64

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewTracker constructs a tracker for provider. onFault, when non-nil, is
// called from the provider goroutine if the stream ends with an error.
func NewTracker(provider Provider, logger *slog.Logger, onFault func(error)) *Tracker {
	return &Tracker{
		provider: provider,
		logger:   logging.NewComponentLogger(logger, "location"),
		onFault:  onFault,
	}
}

// Start opens the provider and begins receiving fixes. Calling Start on a
// running tracker is a no-op.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return nil
	}
	if t.provider == nil {
		return fmt.Errorf("start location tracker: %w: no provider configured", ErrUnavailable)
	}
	if err := t.provider.Open(ctx); err != nil {
		if !errors.Is(err, ErrPermissionDenied) && !errors.Is(err, ErrUnavailable) {
			err = fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		logging.WarnWithContext(t.logger, "location provider failed to open", "location_open_failed",
			logging.String("provider", t.provider.Name()),
			logging.Error(err),
			logging.String(logging.FieldImpact, "frames will be tagged without a fix"),
			logging.String(logging.FieldErrorHint, "check GPS device permissions or gpsd availability"),
		)
		return fmt.Errorf("start location tracker: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t.cancel = cancel
	t.done = make(chan struct{})
	t.running = true
	go t.run(runCtx, t.done)

	t.logger.Info("location tracker started", logging.String("provider", t.provider.Name()))
	return nil
}

func (t *Tracker) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	err := t.provider.Run(ctx, t.update)
	if err == nil || ctx.Err() != nil {
		return
	}
	logging.WarnWithContext(t.logger, "location stream ended", "location_stream_failed",
		logging.String("provider", t.provider.Name()),
		logging.Error(err),
		logging.String(logging.FieldImpact, "fix will age and frames will be tagged stale"),
	)
	if t.onFault != nil {
		t.onFault(err)
	}
}

func (t *Tracker) update(fix Fix) {
	snapshot := fix
	t.latest.Store(&snapshot)
	t.fixes.Add(1)
}

// Stop ceases receiving fixes and releases provider resources. It is safe to
// call more than once and on a tracker that never started.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.cancel()
	<-t.done
	if err := t.provider.Close(); err != nil {
		t.logger.Debug("location provider close failed", logging.Error(err))
	}
	t.running = false
	t.cancel = nil
	t.done = nil
	t.logger.Info("location tracker stopped", logging.Uint64("fixes_received", t.fixes.Load()))
}

// Latest returns the most recent fix, or false if none has arrived.
func (t *Tracker) Latest() (Fix, bool) {
	p := t.latest.Load()
	if p == nil {
		return Fix{}, false
	}
	return *p, true
}

// FixesReceived reports how many fixes the tracker has accepted.
func (t *Tracker) FixesReceived() uint64 {
	return t.fixes.Load()
}

// Running reports whether the provider goroutine is active.
func (t *Tracker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}
