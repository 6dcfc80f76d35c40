// Package zmqpush delivers upload envelopes over a ZeroMQ PUSH socket.
//
// Each ticket becomes a two-part message: a small JSON header with the ticket
// metadata followed by the CBOR envelope. PUSH sockets carry no
// acknowledgement, so a send that reaches the socket's queue counts as sent.
package zmqpush

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pebbe/zmq4"

	"fieldcam/internal/services"
	"fieldcam/internal/upload"
)

const (
	defaultSendHWM     = 64
	defaultSendTimeout = 15 * time.Second
)

// Header is the first frame of every message.
type Header struct {
	Ticket      string `json:"ticket"`
	Session     string `json:"session,omitempty"`
	Seq         uint64 `json:"seq"`
	Attempt     int    `json:"attempt"`
	ContentType string `json:"content_type"`
}

// Transport is an upload.Transport backed by a connected PUSH socket.
type Transport struct {
	endpoint string

	mu     sync.Mutex
	socket *zmq4.Socket
}

// New connects a PUSH socket to endpoint (for example tcp://ingest:5557).
func New(endpoint string) (*Transport, error) {
	socket, err := zmq4.NewSocket(zmq4.PUSH)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "upload", "zmq", "create socket", err)
	}
	if err := socket.SetSndhwm(defaultSendHWM); err != nil {
		_ = socket.Close()
		return nil, services.Wrap(services.ErrConfiguration, "upload", "zmq", "set send hwm", err)
	}
	if err := socket.SetLinger(0); err != nil {
		_ = socket.Close()
		return nil, services.Wrap(services.ErrConfiguration, "upload", "zmq", "set linger", err)
	}
	if err := socket.Connect(endpoint); err != nil {
		_ = socket.Close()
		return nil, services.Wrap(services.ErrConfiguration, "upload", "zmq", "connect "+endpoint, err)
	}
	return &Transport{endpoint: endpoint, socket: socket}, nil
}

// Send hands the message to the socket, waiting for room until ctx's deadline
// (or a default bound when ctx has none).
func (t *Transport) Send(ctx context.Context, payload []byte, meta upload.Meta) error {
	header, err := json.Marshal(Header{
		Ticket:      meta.TicketID,
		Session:     meta.SessionID,
		Seq:         meta.Seq,
		Attempt:     meta.Attempt,
		ContentType: meta.ContentType,
	})
	if err != nil {
		return services.Wrap(services.ErrValidation, "upload", "zmq", "encode header", err)
	}

	timeout := defaultSendTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if err := ctx.Err(); err != nil || timeout <= 0 {
		return services.Wrap(services.ErrTimeout, "upload", "zmq", "send", context.Cause(ctx))
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.socket == nil {
		return services.Wrap(services.ErrConfiguration, "upload", "zmq", "socket closed", nil)
	}
	if err := t.socket.SetSndtimeo(timeout); err != nil {
		return services.Wrap(services.ErrTransient, "upload", "zmq", "set send timeout", err)
	}
	// A send timeout surfaces as EAGAIN when no peer drains the queue.
	if _, err := t.socket.SendMessage(header, payload); err != nil {
		return services.Wrap(services.ErrTransient, "upload", "zmq",
			fmt.Sprintf("send to %s", t.endpoint), err)
	}
	return nil
}

// Close closes the socket.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.socket == nil {
		return nil
	}
	err := t.socket.Close()
	t.socket = nil
	return err
}
