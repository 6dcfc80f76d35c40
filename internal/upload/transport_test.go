package upload_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"fieldcam/internal/services"
	"fieldcam/internal/tagging"
	"fieldcam/internal/upload"
)

func TestEnvelopeRoundTripCarriesTagging(t *testing.T) {
	tf := tagged(42)
	tf.Stale = true
	payload, err := upload.Encode("ticket-42", tf)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	env, err := upload.Decode(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.TicketID != "ticket-42" || env.Seq != 42 || env.SessionID != "session-test" {
		t.Fatalf("unexpected identity fields: %+v", env)
	}
	if !env.HasFix || !env.Stale || env.Latitude != 51.5 || env.FixAgeMS != 1000 {
		t.Fatalf("unexpected fix fields: %+v", env)
	}
	if env.FixTime == nil || !env.FixTime.Equal(tf.Fix.Timestamp) {
		t.Fatalf("fix time not preserved: %v", env.FixTime)
	}
	if !env.CapturedAt.Equal(tf.Frame.Timestamp) {
		t.Fatalf("capture time not preserved: %v", env.CapturedAt)
	}
	if string(env.Data) != string(tf.Frame.Data) {
		t.Fatal("frame data not preserved")
	}

	noFix := tagging.TaggedFrame{Frame: tf.Frame, Stale: true}
	payload, err = upload.Encode("ticket-43", noFix)
	if err != nil {
		t.Fatalf("encode without fix: %v", err)
	}
	env, err = upload.Decode(payload)
	if err != nil {
		t.Fatalf("decode without fix: %v", err)
	}
	if env.HasFix || env.FixTime != nil {
		t.Fatalf("expected no-fix marker, got %+v", env)
	}
}

func TestHTTPTransportPostsEnvelope(t *testing.T) {
	var gotHeaders http.Header
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	transport := upload.NewHTTPTransport(server.URL, "secret", server.Client())
	defer transport.Close()

	payload, err := upload.Encode("ticket-7", tagged(7))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	meta := upload.Meta{TicketID: "ticket-7", SessionID: "session-test", Seq: 7, Attempt: 2, ContentType: upload.ContentType}
	if err := transport.Send(context.Background(), payload, meta); err != nil {
		t.Fatalf("send: %v", err)
	}

	if gotHeaders.Get("Authorization") != "Bearer secret" {
		t.Fatalf("missing bearer token: %q", gotHeaders.Get("Authorization"))
	}
	if gotHeaders.Get("Content-Type") != "application/cbor" {
		t.Fatalf("unexpected content type %q", gotHeaders.Get("Content-Type"))
	}
	if gotHeaders.Get("X-Fieldcam-Seq") != "7" || gotHeaders.Get("X-Fieldcam-Attempt") != "2" {
		t.Fatalf("unexpected metadata headers: %v", gotHeaders)
	}
	env, err := upload.Decode(gotBody)
	if err != nil {
		t.Fatalf("decode posted body: %v", err)
	}
	if env.Seq != 7 {
		t.Fatalf("unexpected posted seq %d", env.Seq)
	}
}

func TestHTTPTransportClassifiesStatus(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusServiceUnavailable, true},
		{http.StatusTooManyRequests, true},
		{http.StatusRequestTimeout, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
	}
	for _, tc := range tests {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", tc.status)
			}))
			defer server.Close()

			transport := upload.NewHTTPTransport(server.URL, "", server.Client())
			err := transport.Send(context.Background(), []byte{0xa0}, upload.Meta{TicketID: "t"})
			if err == nil {
				t.Fatal("expected error")
			}
			if services.Retryable(err) != tc.retryable {
				t.Fatalf("retryable=%v for %d: %v", services.Retryable(err), tc.status, err)
			}
			if !strings.Contains(err.Error(), "nope") {
				t.Fatalf("expected response body in error, got %v", err)
			}
		})
	}
}

func TestHTTPTransportUnreachableIsTransient(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	transport := upload.NewHTTPTransport(url, "", nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := transport.Send(ctx, []byte{0xa0}, upload.Meta{})
	if err == nil || !services.Retryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
}

func newAckServer(t *testing.T, status string) (*httptest.Server, chan upload.Envelope) {
	t.Helper()
	received := make(chan upload.Envelope, 8)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer ws-token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			messageType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if messageType != websocket.BinaryMessage {
				continue
			}
			env, err := upload.Decode(data)
			if err != nil {
				return
			}
			received <- env
			ack, _ := json.Marshal(upload.Ack{Ticket: env.TicketID, Status: status})
			if err := conn.WriteMessage(websocket.TextMessage, ack); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)
	return server, received
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWebSocketTransportWaitsForAck(t *testing.T) {
	server, received := newAckServer(t, "ok")
	transport := upload.NewWebSocketTransport(wsURL(server), "ws-token")
	defer transport.Close()

	for seq := uint64(1); seq <= 2; seq++ {
		ticketID := "ticket-" + strconv.FormatUint(seq, 10)
		payload, err := upload.Encode(ticketID, tagged(seq))
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = transport.Send(ctx, payload, upload.Meta{TicketID: ticketID, Seq: seq})
		cancel()
		if err != nil {
			t.Fatalf("send %d: %v", seq, err)
		}
		env := <-received
		if env.Seq != seq {
			t.Fatalf("receiver got seq %d, want %d", env.Seq, seq)
		}
	}
}

func TestWebSocketTransportRejectedAckIsPermanent(t *testing.T) {
	server, _ := newAckServer(t, "rejected")
	transport := upload.NewWebSocketTransport(wsURL(server), "ws-token")
	defer transport.Close()

	payload, _ := upload.Encode("ticket-r", tagged(1))
	err := transport.Send(context.Background(), payload, upload.Meta{TicketID: "ticket-r", Seq: 1})
	if err == nil || services.Retryable(err) {
		t.Fatalf("expected permanent rejection, got %v", err)
	}
}

func TestWebSocketTransportHandshakeRefused(t *testing.T) {
	server, _ := newAckServer(t, "ok")
	transport := upload.NewWebSocketTransport(wsURL(server), "wrong")
	defer transport.Close()

	err := transport.Send(context.Background(), []byte{0xa0}, upload.Meta{TicketID: "x"})
	if err == nil || services.Retryable(err) {
		t.Fatalf("expected permanent handshake failure, got %v", err)
	}
}
