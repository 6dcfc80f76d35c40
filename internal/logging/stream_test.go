package logging

import (
	"context"
	"log/slog"
	"testing"
	"time"
)

func TestStreamHandlerWithAttrs(t *testing.T) {
	hub := NewStreamHub(100)
	handler := newStreamHandler(slog.NewTextHandler(discardWriter{}, nil), hub)

	logger := slog.New(handler).
		With(slog.String(FieldComponent, "tagging")).
		With(slog.String(FieldSessionID, "sess-1"))
	logger.Info("frame tagged", slog.Uint64(FieldFrameSeq, 12), slog.String("extra", "value"))

	events, _ := hub.Tail(10)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	evt := events[0]
	if evt.Component != "tagging" || evt.SessionID != "sess-1" || evt.FrameSeq != 12 {
		t.Fatalf("unexpected event: %+v", evt)
	}
	if evt.Fields["extra"] != "value" {
		t.Fatalf("expected extra field, got %v", evt.Fields)
	}
}

func TestStreamHandlerNilHub(t *testing.T) {
	base := slog.NewTextHandler(discardWriter{}, nil)
	if handler := newStreamHandler(base, nil); handler != base {
		t.Fatal("expected base handler when hub is nil")
	}
}

func TestStreamHubEvictsOldest(t *testing.T) {
	hub := NewStreamHub(2)
	hub.Publish(LogEvent{Message: "a"})
	hub.Publish(LogEvent{Message: "b"})
	hub.Publish(LogEvent{Message: "c"})

	events, next := hub.Tail(10)
	if len(events) != 2 || events[0].Message != "b" || events[1].Message != "c" {
		t.Fatalf("unexpected tail: %+v", events)
	}
	if next != 3 {
		t.Fatalf("next = %d, want 3", next)
	}

	since, _, err := hub.Fetch(context.Background(), 2, 10, false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(since) != 1 || since[0].Message != "c" {
		t.Fatalf("unexpected fetch result: %+v", since)
	}
}

func TestStreamHubFetchLimitAdvancesCursorToLastReturned(t *testing.T) {
	hub := NewStreamHub(10)
	for _, msg := range []string{"a", "b", "c", "d"} {
		hub.Publish(LogEvent{Message: msg})
	}

	events, next, err := hub.Fetch(context.Background(), 0, 2, false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(events) != 2 || next != 2 {
		t.Fatalf("got %d events, next %d; want 2 events, next 2", len(events), next)
	}
	rest, next, _ := hub.Fetch(context.Background(), next, 10, false)
	if len(rest) != 2 || rest[0].Message != "c" || next != 4 {
		t.Fatalf("unexpected remainder %+v next %d", rest, next)
	}
}

func TestStreamHubFetchWaitsForPublish(t *testing.T) {
	hub := NewStreamHub(4)
	done := make(chan []LogEvent, 1)
	go func() {
		events, _, _ := hub.Fetch(context.Background(), 0, 10, true)
		done <- events
	}()

	time.Sleep(20 * time.Millisecond)
	hub.Publish(LogEvent{Message: "late"})

	select {
	case events := <-done:
		if len(events) != 1 || events[0].Message != "late" {
			t.Fatalf("unexpected events: %+v", events)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Fetch did not wake on publish")
	}
}

func TestStreamHubFetchHonoursCancel(t *testing.T) {
	hub := NewStreamHub(4)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, _, err := hub.Fetch(ctx, 0, 10, true)
		errCh <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected context error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Fetch did not return after cancel")
	}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
