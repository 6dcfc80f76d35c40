package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"fieldcam/internal/services"
)

const defaultAckTimeout = 10 * time.Second

// Ack is the receiver's reply to one binary envelope message.
type Ack struct {
	Ticket string `json:"ticket"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// WebSocketTransport streams envelopes over a single persistent websocket
// connection, one binary message per ticket, each answered by a JSON Ack.
// The connection is dialled lazily and re-dialled after any failure.
type WebSocketTransport struct {
	endpoint   string
	token      string
	dialer     *websocket.Dialer
	ackTimeout time.Duration

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWebSocketTransport builds a websocket transport for endpoint (ws:// or wss://).
func NewWebSocketTransport(endpoint, token string) *WebSocketTransport {
	return &WebSocketTransport{
		endpoint:   strings.TrimSpace(endpoint),
		token:      strings.TrimSpace(token),
		dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		ackTimeout: defaultAckTimeout,
	}
}

// Send writes payload and waits for the matching ack.
func (w *WebSocketTransport) Send(ctx context.Context, payload []byte, meta Meta) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	conn, err := w.connectLocked(ctx)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(w.ackTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetWriteDeadline(deadline)
	_ = conn.SetReadDeadline(deadline)

	// Closing the connection is the only way to interrupt a blocked read.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		w.dropLocked()
		return w.classify(ctx, "write message", err)
	}

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			w.dropLocked()
			return w.classify(ctx, "read ack", err)
		}
		if messageType != websocket.TextMessage {
			continue
		}
		var ack Ack
		if err := json.Unmarshal(data, &ack); err != nil {
			w.dropLocked()
			return services.Wrap(services.ErrTransient, "upload", "websocket", "malformed ack", err)
		}
		if ack.Ticket != "" && ack.Ticket != meta.TicketID {
			// Late ack for an earlier, already-abandoned attempt.
			continue
		}
		switch strings.ToLower(ack.Status) {
		case "ok", "sent", "accepted":
			return nil
		case "retry":
			return services.Wrap(services.ErrTransient, "upload", "websocket", "receiver asked to retry: "+ack.Error, nil)
		default:
			return services.Wrap(services.ErrRejected, "upload", "websocket", "receiver rejected frame: "+ack.Error, nil)
		}
	}
}

func (w *WebSocketTransport) connectLocked(ctx context.Context) (*websocket.Conn, error) {
	if w.conn != nil {
		return w.conn, nil
	}
	header := http.Header{}
	if w.token != "" {
		header.Set("Authorization", "Bearer "+w.token)
	}
	conn, resp, err := w.dialer.DialContext(ctx, w.endpoint, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, services.Wrap(services.ErrRejected, "upload", "websocket",
				fmt.Sprintf("handshake refused with %d", resp.StatusCode), err)
		}
		return nil, w.classify(ctx, "dial", err)
	}
	w.conn = conn
	return conn, nil
}

func (w *WebSocketTransport) dropLocked() {
	if w.conn != nil {
		_ = w.conn.Close()
		w.conn = nil
	}
}

func (w *WebSocketTransport) classify(ctx context.Context, operation string, err error) error {
	if ctx.Err() != nil {
		return services.Wrap(services.ErrTimeout, "upload", "websocket", operation, errors.Join(ctx.Err(), err))
	}
	return services.Wrap(services.ErrTransient, "upload", "websocket", operation, err)
}

// Close sends a close frame and tears down the connection.
func (w *WebSocketTransport) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		return nil
	}
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session stopped"),
		time.Now().Add(time.Second))
	err := w.conn.Close()
	w.conn = nil
	return err
}
