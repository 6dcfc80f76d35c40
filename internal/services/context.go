package services

import "context"

type contextKey string

const (
	sessionIDKey contextKey = "session_id"
	frameSeqKey  contextKey = "frame_seq"
	ticketIDKey  contextKey = "ticket_id"
	requestIDKey contextKey = "request_id"
)

// WithSessionID annotates context with the capture session identifier.
func WithSessionID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionIDFromContext returns the session identifier if present.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(sessionIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithFrameSeq annotates context with a frame sequence number.
func WithFrameSeq(ctx context.Context, seq uint64) context.Context {
	return context.WithValue(ctx, frameSeqKey, seq)
}

// FrameSeqFromContext extracts the frame sequence number if present.
func FrameSeqFromContext(ctx context.Context) (uint64, bool) {
	v := ctx.Value(frameSeqKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case uint64:
		return val, true
	case int:
		if val < 0 {
			return 0, false
		}
		return uint64(val), true
	default:
		return 0, false
	}
}

// WithTicketID annotates context with an upload ticket identifier.
func WithTicketID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, ticketIDKey, id)
}

// TicketIDFromContext returns the upload ticket identifier if present.
func TicketIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(ticketIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
