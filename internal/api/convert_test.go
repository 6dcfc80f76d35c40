package api_test

import (
	"testing"
	"time"

	"fieldcam/internal/api"
	"fieldcam/internal/capture"
	"fieldcam/internal/ledger"
	"fieldcam/internal/location"
	"fieldcam/internal/session"
	"fieldcam/internal/tagging"
	"fieldcam/internal/upload"
)

func TestFromSessionStatusFlattensCounters(t *testing.T) {
	started := time.Date(2026, 4, 2, 10, 30, 0, 0, time.FixedZone("PDT", -7*3600))
	st := session.Status{
		SessionID:     "abc",
		State:         session.StateRunning,
		Device:        "/dev/video0",
		Mode:          "survey",
		QueueCapacity: 16,
		StartedAt:     started,
		Counters: session.Counters{
			FramesCaptured: 10,
			Tagging:        tagging.Counters{FramesTagged: 10, StaleTags: 3, NoFixTags: 1},
			Uploads:        upload.Counters{Submitted: 9, Sent: 8, QueueFull: 1, Depth: 1},
		},
	}

	dto := api.FromSessionStatus(st, 2*time.Second)
	if dto.State != "running" || dto.StalenessThresholdMS != 2000 {
		t.Fatalf("unexpected dto %+v", dto)
	}
	if dto.StartedAt != "2026-04-02T17:30:00.000Z" || dto.StoppedAt != "" {
		t.Fatalf("unexpected timestamps %q %q", dto.StartedAt, dto.StoppedAt)
	}
	c := dto.Counters
	if c.FramesTagged != 10 || c.StaleTags != 3 || c.NoFixTags != 1 || c.UploadsSent != 8 || c.QueueDepth != 1 {
		t.Fatalf("unexpected counters %+v", c)
	}
}

func TestFromModesBuildsLabels(t *testing.T) {
	modes := append(capture.DefaultCatalog().Modes(), capture.Mode{Name: "night-survey", Width: 1, Height: 1, FPS: 1})
	out := api.FromModes(modes, "STANDARD")
	if len(out) != 4 {
		t.Fatalf("expected 4 modes, got %d", len(out))
	}
	if out[0].Label != "Preview" || out[0].Active {
		t.Fatalf("unexpected first mode %+v", out[0])
	}
	if !out[1].Active {
		t.Fatalf("expected standard to be active: %+v", out[1])
	}
	if out[3].Label != "Night Survey" {
		t.Fatalf("unexpected label %q", out[3].Label)
	}
}

func TestFromRecordOmitsZeroTimes(t *testing.T) {
	rec := ledger.Record{TicketID: "t1", Seq: 4, Status: "failed", Error: "boom", ResolvedAt: time.Unix(0, 0)}
	dto := api.FromRecord(rec)
	if dto.CapturedAt != "" || dto.ResolvedAt == "" || dto.Error != "boom" || dto.Seq != 4 {
		t.Fatalf("unexpected record %+v", dto)
	}
}

func TestFromTaggedFrameClassifiesFix(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	fix := &location.Fix{Latitude: 51.5, Longitude: -0.12, Timestamp: at}
	cases := []struct {
		name string
		tf   tagging.TaggedFrame
		want string
	}{
		{"fresh", tagging.TaggedFrame{Frame: capture.Frame{Seq: 3}, Fix: fix, SessionID: "s1", TaggedAt: at}, "fresh"},
		{"stale", tagging.TaggedFrame{Frame: capture.Frame{Seq: 4}, Fix: fix, Stale: true, SessionID: "s1", TaggedAt: at}, "stale"},
		{"no fix", tagging.TaggedFrame{Frame: capture.Frame{Seq: 5}, Stale: true, SessionID: "s1", TaggedAt: at}, "no-fix"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			evt := api.FromTaggedFrame(tc.tf)
			if evt.Type != api.EventFrameTagged || evt.Message != tc.want {
				t.Fatalf("got %+v, want message %q", evt, tc.want)
			}
			if evt.FrameSeq != tc.tf.Frame.Seq || evt.SessionID != "s1" || evt.Time == "" {
				t.Fatalf("unexpected event fields %+v", evt)
			}
		})
	}
}
