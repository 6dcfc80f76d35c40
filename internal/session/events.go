package session

import (
	"sync/atomic"
	"time"
)

// EventType classifies session events.
type EventType string

const (
	EventStateChanged        EventType = "state_changed"
	EventModeChanged         EventType = "mode_changed"
	EventCaptureInterrupted  EventType = "capture_interrupted"
	EventCaptureRestarted    EventType = "capture_restarted"
	EventFrameDropped        EventType = "frame_dropped"
	EventLocationDenied      EventType = "location_denied"
	EventLocationUnavailable EventType = "location_unavailable"
	EventLocationLost        EventType = "location_lost"
	EventUploadFailed        EventType = "upload_failed"
)

// Event is a status notification for whoever renders session state.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	State     State     `json:"state,omitempty"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
	FrameSeq  uint64    `json:"frame_seq,omitempty"`
	TicketID  string    `json:"ticket_id,omitempty"`
	Time      time.Time `json:"time"`
}

const eventBuffer = 64

// eventBus is a single-subscriber channel that never blocks publishers.
type eventBus struct {
	ch      chan Event
	dropped atomic.Uint64
}

func newEventBus() *eventBus {
	return &eventBus{ch: make(chan Event, eventBuffer)}
}

func (b *eventBus) publish(evt Event) {
	if evt.Time.IsZero() {
		evt.Time = time.Now()
	}
	select {
	case b.ch <- evt:
	default:
		b.dropped.Add(1)
	}
}
