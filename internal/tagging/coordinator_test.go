package tagging_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"fieldcam/internal/capture"
	"fieldcam/internal/location"
	"fieldcam/internal/logging"
	"fieldcam/internal/services"
	"fieldcam/internal/tagging"
)

type fixCell struct {
	mu  sync.Mutex
	fix *location.Fix
}

func (c *fixCell) Set(fix location.Fix) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fix = &fix
}

func (c *fixCell) Latest() (location.Fix, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fix == nil {
		return location.Fix{}, false
	}
	return *c.fix, true
}

type panickingFixes struct{}

func (panickingFixes) Latest() (location.Fix, bool) { panic("fix cell corrupted") }

type recordingSink struct {
	mu     sync.Mutex
	frames []tagging.TaggedFrame
	err    error
}

func (s *recordingSink) Submit(tf tagging.TaggedFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.frames = append(s.frames, tf)
	return nil
}

func (s *recordingSink) Frames() []tagging.TaggedFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]tagging.TaggedFrame(nil), s.frames...)
}

var epoch = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func frameAt(seq uint64, offset time.Duration) capture.Frame {
	return capture.Frame{Seq: seq, Timestamp: epoch.Add(offset), Width: 4, Height: 4, Format: "gray8", Data: []byte{1}}
}

func TestFreshFixIsAttachedAndNotStale(t *testing.T) {
	fixes := &fixCell{}
	fix := location.Fix{Latitude: 46.2, Longitude: 6.1, AccuracyM: 4, Timestamp: epoch}
	fixes.Set(fix)
	sink := &recordingSink{}
	coord := tagging.NewCoordinator(fixes, sink, "session-1", logging.NewNop())

	for i, offset := range []time.Duration{0, 300 * time.Millisecond, 2 * time.Second} {
		coord.HandleFrame(context.Background(), frameAt(uint64(i+1), offset))
	}

	frames := sink.Frames()
	if len(frames) != 3 {
		t.Fatalf("expected 3 tagged frames, got %d", len(frames))
	}
	for _, tf := range frames {
		if !tf.HasFix() || *tf.Fix != fix {
			t.Fatalf("frame %d: expected fix attached, got %+v", tf.Frame.Seq, tf.Fix)
		}
		if tf.Stale {
			t.Fatalf("frame %d: expected not stale at age %s", tf.Frame.Seq, tf.FixAge)
		}
		if tf.SessionID != "session-1" {
			t.Fatalf("unexpected session id %q", tf.SessionID)
		}
	}
	counters := coord.Counters()
	if counters.FramesTagged != 3 || counters.StaleTags != 0 || counters.NoFixTags != 0 {
		t.Fatalf("unexpected counters: %+v", counters)
	}
}

func TestNoFixYieldsMarkerAndStale(t *testing.T) {
	sink := &recordingSink{}
	coord := tagging.NewCoordinator(&fixCell{}, sink, "", logging.NewNop())

	coord.HandleFrame(context.Background(), frameAt(1, 0))
	coord.HandleFrame(context.Background(), frameAt(2, time.Second))

	for _, tf := range sink.Frames() {
		if tf.HasFix() {
			t.Fatalf("frame %d: expected no-fix marker, got %+v", tf.Frame.Seq, tf.Fix)
		}
		if !tf.Stale {
			t.Fatalf("frame %d: expected stale without a fix", tf.Frame.Seq)
		}
	}
	counters := coord.Counters()
	if counters.NoFixTags != 2 || counters.StaleTags != 2 || counters.FramesTagged != 2 {
		t.Fatalf("unexpected counters: %+v", counters)
	}
}

func TestThresholdScenario(t *testing.T) {
	fixes := &fixCell{}
	fixes.Set(location.Fix{Latitude: 1, Longitude: 2, Timestamp: epoch})
	sink := &recordingSink{}
	coord := tagging.NewCoordinator(fixes, sink, "", logging.NewNop())
	coord.SetStalenessThreshold(2000 * time.Millisecond)

	coord.HandleFrame(context.Background(), frameAt(1, 1000*time.Millisecond))
	coord.HandleFrame(context.Background(), frameAt(2, 5000*time.Millisecond))

	frames := sink.Frames()
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if !frames[0].HasFix() || frames[0].Stale {
		t.Fatalf("frame at t=1000 should carry a fresh fix: %+v", frames[0])
	}
	if !frames[1].HasFix() || !frames[1].Stale {
		t.Fatalf("frame at t=5000 should carry a stale fix: %+v", frames[1])
	}
	if !frames[0].Fix.Timestamp.Equal(frames[1].Fix.Timestamp) {
		t.Fatal("expected both frames to carry the same fix")
	}
	if frames[1].FixAge != 5*time.Second {
		t.Fatalf("unexpected fix age %s", frames[1].FixAge)
	}
}

func TestThresholdBoundaryIsInclusive(t *testing.T) {
	fixes := &fixCell{}
	fixes.Set(location.Fix{Timestamp: epoch})
	coord := tagging.NewCoordinator(fixes, nil, "", logging.NewNop())
	coord.SetStalenessThreshold(time.Second)

	if tf := coord.Tag(frameAt(1, time.Second)); tf.Stale {
		t.Fatal("age equal to threshold should not be stale")
	}
	if tf := coord.Tag(frameAt(2, time.Second+time.Millisecond)); !tf.Stale {
		t.Fatal("age beyond threshold should be stale")
	}
}

func TestClockSkewIsTaggedNormally(t *testing.T) {
	fixes := &fixCell{}
	fixes.Set(location.Fix{Latitude: 3, Timestamp: epoch.Add(10 * time.Second)})
	sink := &recordingSink{}
	coord := tagging.NewCoordinator(fixes, sink, "", logging.NewNop())

	coord.HandleFrame(context.Background(), frameAt(1, 0))

	frames := sink.Frames()
	if len(frames) != 1 {
		t.Fatalf("expected frame to be forwarded, got %d", len(frames))
	}
	if !frames[0].HasFix() || frames[0].Stale {
		t.Fatalf("expected skewed frame tagged with fresh fix, got %+v", frames[0])
	}
	if frames[0].FixAge >= 0 {
		t.Fatalf("expected negative age, got %s", frames[0].FixAge)
	}
}

func TestLateFixNeverRetagsEarlierFrames(t *testing.T) {
	fixes := &fixCell{}
	first := location.Fix{Latitude: 10, Longitude: 10, Timestamp: epoch}
	fixes.Set(first)
	sink := &recordingSink{}
	coord := tagging.NewCoordinator(fixes, sink, "", logging.NewNop())

	coord.HandleFrame(context.Background(), frameAt(1, 100*time.Millisecond))
	second := location.Fix{Latitude: 20, Longitude: 20, Timestamp: epoch.Add(150 * time.Millisecond)}
	fixes.Set(second)
	coord.HandleFrame(context.Background(), frameAt(2, 200*time.Millisecond))

	frames := sink.Frames()
	if *frames[0].Fix != first {
		t.Fatalf("frame 1 fix changed after later update: %+v", frames[0].Fix)
	}
	if *frames[1].Fix != second {
		t.Fatalf("frame 2 should carry the newer fix: %+v", frames[1].Fix)
	}
}

func TestSequenceOrderIsPreserved(t *testing.T) {
	sink := &recordingSink{}
	coord := tagging.NewCoordinator(&fixCell{}, sink, "", logging.NewNop())
	for seq := uint64(1); seq <= 50; seq++ {
		coord.HandleFrame(context.Background(), frameAt(seq, time.Duration(seq)*time.Millisecond))
	}
	frames := sink.Frames()
	for i, tf := range frames {
		if tf.Frame.Seq != uint64(i+1) {
			t.Fatalf("position %d carries seq %d", i, tf.Frame.Seq)
		}
	}
}

func TestQueueFullIsCountedDrop(t *testing.T) {
	full := fmt.Errorf("upload queue full: %w", services.ErrBackpressure)
	sink := &recordingSink{err: full}
	coord := tagging.NewCoordinator(&fixCell{}, sink, "", logging.NewNop())

	for seq := uint64(1); seq <= 3; seq++ {
		coord.HandleFrame(context.Background(), frameAt(seq, 0))
	}

	counters := coord.Counters()
	if counters.QueueFullDrops != 3 {
		t.Fatalf("expected 3 queue-full drops, got %+v", counters)
	}
	if counters.FramesTagged != 3 {
		t.Fatalf("queue-full frames still count as tagged, got %+v", counters)
	}
	if counters.SubmitErrors != 0 {
		t.Fatalf("queue full must not count as submit error: %+v", counters)
	}
}

func TestOtherSubmitErrorsAreCountedSeparately(t *testing.T) {
	sink := &recordingSink{err: errors.New("sink closed")}
	coord := tagging.NewCoordinator(&fixCell{}, sink, "", logging.NewNop())
	coord.HandleFrame(context.Background(), frameAt(1, 0))

	counters := coord.Counters()
	if counters.SubmitErrors != 1 || counters.QueueFullDrops != 0 {
		t.Fatalf("unexpected counters: %+v", counters)
	}
}

func TestPanicIsRecoveredAsInternalDrop(t *testing.T) {
	sink := &recordingSink{}
	coord := tagging.NewCoordinator(panickingFixes{}, sink, "", logging.NewNop())

	coord.HandleFrame(context.Background(), frameAt(1, 0))

	if len(sink.Frames()) != 0 {
		t.Fatal("expected no submission after internal failure")
	}
	counters := coord.Counters()
	if counters.InternalDrops != 1 || counters.FramesTagged != 0 {
		t.Fatalf("unexpected counters: %+v", counters)
	}
}

func TestSubmitPanicCountsOnlyAsInternalDrop(t *testing.T) {
	cell := &fixCell{}
	cell.Set(location.Fix{Latitude: 1, Longitude: 2, Timestamp: time.Unix(100, 0)})
	sink := tagging.SinkFunc(func(tagging.TaggedFrame) error { panic("queue corrupted") })
	coord := tagging.NewCoordinator(cell, sink, "", logging.NewNop())

	coord.HandleFrame(context.Background(), frameAt(1, 0))

	counters := coord.Counters()
	if counters.InternalDrops != 1 {
		t.Fatalf("expected one internal drop, got %+v", counters)
	}
	if counters.FramesTagged != 0 || counters.StaleTags != 0 || counters.NoFixTags != 0 {
		t.Fatalf("panicked frame must not count as tagged: %+v", counters)
	}
}

func TestSinkFuncAdapter(t *testing.T) {
	var got []uint64
	sink := tagging.SinkFunc(func(tf tagging.TaggedFrame) error {
		got = append(got, tf.Frame.Seq)
		return nil
	})
	coord := tagging.NewCoordinator(nil, sink, "", logging.NewNop())
	coord.HandleFrame(context.Background(), frameAt(7, 0))
	if len(got) != 1 || got[0] != 7 {
		t.Fatalf("unexpected submissions %v", got)
	}
}

func TestSetStalenessThresholdDefaults(t *testing.T) {
	coord := tagging.NewCoordinator(nil, nil, "", logging.NewNop())
	if coord.StalenessThreshold() != tagging.DefaultStalenessThreshold {
		t.Fatalf("unexpected default %s", coord.StalenessThreshold())
	}
	coord.SetStalenessThreshold(750 * time.Millisecond)
	if coord.StalenessThreshold() != 750*time.Millisecond {
		t.Fatalf("threshold not applied: %s", coord.StalenessThreshold())
	}
	coord.SetStalenessThreshold(0)
	if coord.StalenessThreshold() != tagging.DefaultStalenessThreshold {
		t.Fatalf("zero threshold should restore default, got %s", coord.StalenessThreshold())
	}
}
