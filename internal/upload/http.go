package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fieldcam/internal/services"
)

const userAgent = "fieldcam/0.1.0"

// HTTPTransport POSTs envelopes to an ingest endpoint.
type HTTPTransport struct {
	endpoint string
	token    string
	client   *http.Client
}

// NewHTTPTransport builds an HTTP transport. A nil client uses a dedicated
// client without an overall timeout; per-attempt deadlines come from the
// sink's request context.
func NewHTTPTransport(endpoint, token string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{Transport: &http.Transport{
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     90 * time.Second,
		}}
	}
	return &HTTPTransport{
		endpoint: strings.TrimSpace(endpoint),
		token:    strings.TrimSpace(token),
		client:   client,
	}
}

// Send posts payload. 408, 429, and 5xx responses are transient; any other
// non-2xx response is a permanent rejection.
func (h *HTTPTransport) Send(ctx context.Context, payload []byte, meta Meta) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(payload))
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "upload", "http", "build request", err)
	}
	contentType := meta.ContentType
	if contentType == "" {
		contentType = ContentType
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Fieldcam-Ticket", meta.TicketID)
	req.Header.Set("X-Fieldcam-Seq", strconv.FormatUint(meta.Seq, 10))
	req.Header.Set("X-Fieldcam-Attempt", strconv.Itoa(meta.Attempt))
	if meta.SessionID != "" {
		req.Header.Set("X-Fieldcam-Session", meta.SessionID)
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, "upload", "http", "request timed out", err)
		}
		return services.Wrap(services.ErrTransient, "upload", "http", "send request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	detail := fmt.Sprintf("receiver returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	switch {
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		return services.Wrap(services.ErrTransient, "upload", "http", detail, nil)
	default:
		return services.Wrap(services.ErrRejected, "upload", "http", detail, nil)
	}
}

// Close releases idle connections.
func (h *HTTPTransport) Close() error {
	h.client.CloseIdleConnections()
	return nil
}
