package upload

import (
	"context"
	"sync/atomic"
)

// Meta describes one send attempt.
type Meta struct {
	TicketID    string
	SessionID   string
	Seq         uint64
	Attempt     int
	ContentType string
}

// Transport moves encoded envelopes to a receiver.
//
// Send reports failures with services markers so the sink can tell retryable
// errors from permanent ones. Close is called once after the worker exits.
type Transport interface {
	Send(ctx context.Context, payload []byte, meta Meta) error
	Close() error
}

// DiscardTransport accepts every payload without sending it anywhere.
type DiscardTransport struct {
	sent  atomic.Uint64
	bytes atomic.Uint64
}

// Send counts the payload.
func (d *DiscardTransport) Send(ctx context.Context, payload []byte, _ Meta) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.sent.Add(1)
	d.bytes.Add(uint64(len(payload)))
	return nil
}

// Close is a no-op.
func (d *DiscardTransport) Close() error { return nil }

// Sent returns the number of payloads accepted.
func (d *DiscardTransport) Sent() uint64 { return d.sent.Load() }
