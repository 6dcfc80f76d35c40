package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fieldcam/internal/config"
)

const userAgent = "fieldcam/0.1.0"

// Event identifies a notification type.
type Event string

const (
	EventSessionStarted      Event = "session_started"
	EventSessionStopped      Event = "session_stopped"
	EventCaptureInterrupted  Event = "capture_interrupted"
	EventCaptureRestarted    Event = "capture_restarted"
	EventLocationDenied      Event = "location_denied"
	EventLocationUnavailable Event = "location_unavailable"
	EventLocationLost        Event = "location_lost"
	EventUploadFailed        Event = "upload_failed"
	EventTest                Event = "test"
)

// Payload carries event fields such as "device", "error", or "seq".
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed service, or a no-op one when no topic is
// configured.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		toggles:  cfg.Notifications,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	toggles  config.Notifications
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled(event) {
		return nil
	}
	msg, ok := render(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) enabled(event Event) bool {
	switch event {
	case EventCaptureInterrupted, EventCaptureRestarted:
		return n.toggles.CaptureFaults
	case EventLocationDenied, EventLocationUnavailable, EventLocationLost:
		return n.toggles.LocationFaults
	case EventUploadFailed:
		return n.toggles.UploadFailures
	default:
		return true
	}
}

func render(event Event, payload Payload) (message, bool) {
	switch event {
	case EventSessionStarted:
		return message{
			title: "fieldcam - Session Started",
			body:  fmt.Sprintf("Capturing from %s in %s mode", payload.text("device", "camera"), payload.text("mode", "default")),
			tags:  []string{"fieldcam", "session", "started"},
		}, true
	case EventSessionStopped:
		return message{
			title: "fieldcam - Session Stopped",
			body:  fmt.Sprintf("Session %s stopped: %s frames captured, %s uploaded", payload.text("session", "?"), payload.text("captured", "0"), payload.text("sent", "0")),
			tags:  []string{"fieldcam", "session", "stopped"},
		}, true
	case EventCaptureInterrupted:
		return message{
			title:    "fieldcam - Capture Interrupted",
			body:     withError(fmt.Sprintf("Camera %s stopped producing frames", payload.text("device", "")), payload),
			tags:     []string{"fieldcam", "capture", "alert"},
			priority: "high",
		}, true
	case EventCaptureRestarted:
		return message{
			title: "fieldcam - Capture Resumed",
			body:  fmt.Sprintf("Camera %s is producing frames again", payload.text("device", "")),
			tags:  []string{"fieldcam", "capture", "resumed"},
		}, true
	case EventLocationDenied:
		return message{
			title:    "fieldcam - Location Denied",
			body:     withError("Location access was refused; frames are tagged without a fix", payload),
			tags:     []string{"fieldcam", "location", "alert"},
			priority: "high",
		}, true
	case EventLocationUnavailable:
		return message{
			title: "fieldcam - Location Unavailable",
			body:  withError("No location source; frames are tagged without a fix", payload),
			tags:  []string{"fieldcam", "location", "warning"},
		}, true
	case EventLocationLost:
		return message{
			title: "fieldcam - Location Lost",
			body:  withError("Location stream ended; tags will go stale", payload),
			tags:  []string{"fieldcam", "location", "warning"},
		}, true
	case EventUploadFailed:
		return message{
			title: "fieldcam - Upload Failed",
			body:  withError(fmt.Sprintf("Frame %s was not uploaded", payload.text("seq", "?")), payload),
			tags:  []string{"fieldcam", "upload", "failed"},
		}, true
	case EventTest:
		return message{
			title:    "fieldcam - Test",
			body:     "Notification system test",
			tags:     []string{"fieldcam", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func withError(body string, payload Payload) string {
	if reason := payload.text("error", ""); reason != "" {
		return body + "\n" + reason
	}
	return body
}

func (p Payload) text(key, fallback string) string {
	if p == nil {
		return fallback
	}
	value, ok := p[key]
	if !ok || value == nil {
		return fallback
	}
	s := strings.TrimSpace(fmt.Sprint(value))
	if s == "" {
		return fallback
	}
	return s
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
