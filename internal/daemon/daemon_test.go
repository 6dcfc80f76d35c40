package daemon_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"fieldcam/internal/config"
	"fieldcam/internal/daemon"
	"fieldcam/internal/ledger"
	"fieldcam/internal/logging"
	"fieldcam/internal/session"
	"fieldcam/internal/testsupport"
)

func newDaemon(t *testing.T, cfg *config.Config) *daemon.Daemon {
	t.Helper()
	store := testsupport.MustOpenLedger(t, cfg)
	d, err := daemon.New(cfg, store, logging.NewNop(), logging.NewStreamHub(64))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Stop()
	})
	return d
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.Session.State != string(session.StateRunning) {
		t.Fatalf("expected running session, got %q", status.Session.State)
	}
	if status.Session.Mode != "standard" {
		t.Fatalf("expected default mode, got %q", status.Session.Mode)
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	status = d.Status(ctx)
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
	if status.Session.State != string(session.StateIdle) {
		t.Fatalf("expected idle session after stop, got %q", status.Session.State)
	}
}

func TestSecondDaemonCannotAcquireLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := newDaemon(t, cfg)
	second := newDaemon(t, cfg)
	ctx := context.Background()

	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := second.Start(ctx); err == nil {
		t.Fatal("expected second daemon to fail on the instance lock")
	}
	if second.Running() {
		t.Fatal("second daemon should not report running")
	}
}

func TestUploadsAreRecordedInLedger(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "sent uploads in ledger", func() bool {
		records, err := d.ListUploads(ctx, ledger.Filter{Status: "sent", Limit: 5})
		return err == nil && len(records) > 0
	})

	records, err := d.ListUploads(ctx, ledger.Filter{Limit: 1})
	if err != nil {
		t.Fatalf("ListUploads: %v", err)
	}
	if records[0].SessionID != d.SessionStatus().SessionID {
		t.Fatalf("record session %q does not match running session %q", records[0].SessionID, d.SessionStatus().SessionID)
	}
	if !records[0].HasFix {
		t.Fatal("static provider should tag frames with a fix")
	}

	d.Stop()
	removed, err := d.ClearUploads(ctx, "")
	if err != nil {
		t.Fatalf("ClearUploads: %v", err)
	}
	if removed == 0 {
		t.Fatal("expected ledger rows to be cleared")
	}
}

func TestStopSessionKeepsDaemonRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	first := d.SessionStatus().SessionID

	if err := d.StopSession(ctx, true); err != nil {
		t.Fatalf("StopSession: %v", err)
	}
	if !d.Running() {
		t.Fatal("daemon should stay up after the session stops")
	}
	if got := d.SessionStatus().State; got != string(session.StateIdle) {
		t.Fatalf("expected idle session, got %q", got)
	}

	if err := d.StartSession(ctx); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if second := d.SessionStatus().SessionID; second == "" || second == first {
		t.Fatalf("expected a fresh session id, got %q (previous %q)", second, first)
	}
}

func TestSelectModeAndConfigure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := d.SelectMode(ctx, "thermal"); !errors.Is(err, session.ErrUnknownMode) {
		t.Fatalf("expected ErrUnknownMode, got %v", err)
	}
	mode, err := d.SelectMode(ctx, "preview")
	if err != nil {
		t.Fatalf("SelectMode: %v", err)
	}
	if mode.Name != "preview" {
		t.Fatalf("unexpected mode %q", mode.Name)
	}

	active := ""
	for _, m := range d.Modes() {
		if m.Active {
			active = m.Name
		}
	}
	if active != "preview" {
		t.Fatalf("expected preview to be the active mode, got %q", active)
	}

	updated, err := d.Configure(500*time.Millisecond, 0)
	if err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if updated.StalenessThreshold != 500*time.Millisecond {
		t.Fatalf("threshold not applied: %v", updated.StalenessThreshold)
	}
	if updated.QueueCapacity != cfg.Upload.QueueCapacity {
		t.Fatalf("zero capacity should keep the current value, got %d", updated.QueueCapacity)
	}
	if got := d.SessionStatus().StalenessThresholdMS; got != 500 {
		t.Fatalf("status threshold = %d, want 500", got)
	}
}

func TestTestNotificationWithoutTopic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)

	sent, message, err := d.TestNotification(context.Background())
	if err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if sent {
		t.Fatal("nothing should be sent without a topic")
	}
	if message == "" {
		t.Fatal("expected an explanatory message")
	}
}
