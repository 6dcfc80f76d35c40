package ledger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"fieldcam/internal/logging"
	"fieldcam/internal/upload"
)

const recorderBuffer = 256

// Recorder persists resolved tickets off the upload worker's goroutine.
// Observe never blocks; when the buffer is full the record is skipped and
// counted.
type Recorder struct {
	store  *Store
	logger *slog.Logger
	ch     chan Record
	done   chan struct{}

	mu      sync.Mutex
	closed  bool
	skipped uint64
}

// NewRecorder starts a recorder writing into store.
func NewRecorder(store *Store, logger *slog.Logger) *Recorder {
	r := &Recorder{
		store:  store,
		logger: logging.NewComponentLogger(logger, "ledger"),
		ch:     make(chan Record, recorderBuffer),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

// Observe matches upload.Options.OnResolved.
func (r *Recorder) Observe(t *upload.Ticket) {
	rec := RecordFromTicket(t)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.ch <- rec:
	default:
		r.skipped++
	}
}

// Skipped returns how many records were dropped because the buffer was full.
func (r *Recorder) Skipped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.skipped
}

// Close flushes buffered records and stops the writer.
func (r *Recorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.ch)
	}
	r.mu.Unlock()
	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)
	for rec := range r.ch {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.store.Put(ctx, rec); err != nil {
			r.logger.Warn("failed to record upload outcome",
				logging.String(logging.FieldTicketID, rec.TicketID),
				logging.Error(err),
			)
		}
		cancel()
	}
}
