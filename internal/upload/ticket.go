package upload

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"fieldcam/internal/tagging"
)

// Status is the lifecycle state of a ticket.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Ticket tracks one tagged frame through the sink. The exported fields are
// fixed at submission; status fields change exactly once, from pending to a
// terminal state.
type Ticket struct {
	ID          string
	SessionID   string
	Seq         uint64
	CapturedAt  time.Time
	SubmittedAt time.Time
	Stale       bool
	HasFix      bool

	frame tagging.TaggedFrame
	done  chan struct{}

	mu         sync.Mutex
	status     Status
	err        error
	attempts   int
	resolvedAt time.Time
}

func newTicket(tf tagging.TaggedFrame, now time.Time) *Ticket {
	return &Ticket{
		ID:          uuid.NewString(),
		SessionID:   tf.SessionID,
		Seq:         tf.Frame.Seq,
		CapturedAt:  tf.Frame.Timestamp,
		SubmittedAt: now,
		Stale:       tf.Stale,
		HasFix:      tf.HasFix(),
		frame:       tf,
		done:        make(chan struct{}),
		status:      StatusPending,
	}
}

// Done is closed once the ticket reaches a terminal status.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Status returns the current status.
func (t *Ticket) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Err returns the failure cause for failed tickets.
func (t *Ticket) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Attempts returns how many sends were tried.
func (t *Ticket) Attempts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempts
}

// ResolvedAt returns when the ticket reached its terminal status.
func (t *Ticket) ResolvedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resolvedAt
}

// Wait blocks until the ticket resolves or ctx ends.
func (t *Ticket) Wait(ctx context.Context) (Status, error) {
	select {
	case <-t.done:
		return t.Status(), t.Err()
	case <-ctx.Done():
		return StatusPending, ctx.Err()
	}
}

func (t *Ticket) setAttempts(n int) {
	t.mu.Lock()
	t.attempts = n
	t.mu.Unlock()
}

// resolve moves the ticket to a terminal status and releases the frame
// buffer. It reports false when the ticket was already resolved.
func (t *Ticket) resolve(status Status, err error, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != StatusPending {
		return false
	}
	t.status = status
	t.err = err
	t.resolvedAt = now
	t.frame = tagging.TaggedFrame{}
	close(t.done)
	return true
}
