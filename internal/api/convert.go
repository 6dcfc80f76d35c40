package api

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"fieldcam/internal/capture"
	"fieldcam/internal/ledger"
	"fieldcam/internal/logging"
	"fieldcam/internal/session"
	"fieldcam/internal/tagging"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// FromCounters flattens session counters.
func FromCounters(c session.Counters) Counters {
	return Counters{
		FramesCaptured:   c.FramesCaptured,
		FramesDropped:    c.FramesDropped,
		FixesReceived:    c.FixesReceived,
		FramesTagged:     c.Tagging.FramesTagged,
		StaleTags:        c.Tagging.StaleTags,
		NoFixTags:        c.Tagging.NoFixTags,
		QueueFullDrops:   c.Tagging.QueueFullDrops,
		SubmitErrors:     c.Tagging.SubmitErrors,
		InternalDrops:    c.Tagging.InternalDrops,
		UploadsSubmitted: c.Uploads.Submitted,
		UploadsSent:      c.Uploads.Sent,
		UploadsFailed:    c.Uploads.Failed,
		UploadsDiscarded: c.Uploads.Discarded,
		UploadsAbandoned: c.Uploads.Abandoned,
		UploadRetries:    c.Uploads.Retries,
		QueueDepth:       c.Uploads.Depth,
		EventsDropped:    c.EventsDropped,
	}
}

// FromSessionStatus converts a session snapshot.
func FromSessionStatus(st session.Status, threshold time.Duration) SessionStatus {
	return SessionStatus{
		SessionID:            st.SessionID,
		State:                string(st.State),
		Device:               st.Device,
		Mode:                 st.Mode,
		StalenessThresholdMS: threshold.Milliseconds(),
		QueueCapacity:        st.QueueCapacity,
		CaptureDelivering:    st.CaptureDelivering,
		LocationRunning:      st.LocationRunning,
		StartedAt:            formatTime(st.StartedAt),
		StoppedAt:            formatTime(st.StoppedAt),
		Counters:             FromCounters(st.Counters),
	}
}

// FromRecord converts a ledger row.
func FromRecord(rec ledger.Record) UploadRecord {
	return UploadRecord{
		TicketID:    rec.TicketID,
		SessionID:   rec.SessionID,
		Seq:         rec.Seq,
		Status:      rec.Status,
		Attempts:    rec.Attempts,
		Error:       rec.Error,
		Stale:       rec.Stale,
		HasFix:      rec.HasFix,
		CapturedAt:  formatTime(rec.CapturedAt),
		SubmittedAt: formatTime(rec.SubmittedAt),
		ResolvedAt:  formatTime(rec.ResolvedAt),
	}
}

// FromRecords converts a slice of ledger rows.
func FromRecords(records []ledger.Record) []UploadRecord {
	out := make([]UploadRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, FromRecord(rec))
	}
	return out
}

// FromEvent converts a session event.
func FromEvent(evt session.Event) Event {
	return Event{
		Type:      string(evt.Type),
		SessionID: evt.SessionID,
		State:     string(evt.State),
		Message:   evt.Message,
		Error:     evt.Error,
		FrameSeq:  evt.FrameSeq,
		TicketID:  evt.TicketID,
		Time:      formatTime(evt.Time),
	}
}

// FromTaggedFrame summarizes a tagged frame for the live event stream. The
// message is "fresh", "stale" or "no-fix".
func FromTaggedFrame(tf tagging.TaggedFrame) Event {
	tag := "fresh"
	switch {
	case !tf.HasFix():
		tag = "no-fix"
	case tf.Stale:
		tag = "stale"
	}
	return Event{
		Type:      EventFrameTagged,
		SessionID: tf.SessionID,
		Message:   tag,
		FrameSeq:  tf.Frame.Seq,
		Time:      formatTime(tf.TaggedAt),
	}
}

// FromModes lists catalog modes with display labels, marking active by name.
func FromModes(modes []capture.Mode, active string) []Mode {
	title := cases.Title(language.English)
	out := make([]Mode, 0, len(modes))
	for _, mode := range modes {
		out = append(out, Mode{
			Name:        mode.Name,
			Label:       title.String(strings.ReplaceAll(mode.Name, "-", " ")),
			Description: mode.Description,
			Width:       mode.Width,
			Height:      mode.Height,
			FPS:         mode.FPS,
			Format:      mode.Format,
			Active:      strings.EqualFold(mode.Name, active),
		})
	}
	return out
}

// FromLogEvents converts hub events.
func FromLogEvents(events []logging.LogEvent) []LogEvent {
	if len(events) == 0 {
		return nil
	}
	out := make([]LogEvent, 0, len(events))
	for _, evt := range events {
		out = append(out, LogEvent{
			Sequence:  evt.Sequence,
			Timestamp: formatTime(evt.Timestamp),
			Level:     evt.Level,
			Message:   evt.Message,
			Component: evt.Component,
			SessionID: evt.SessionID,
			FrameSeq:  evt.FrameSeq,
			TicketID:  evt.TicketID,
			Fields:    evt.Fields,
		})
	}
	return out
}
