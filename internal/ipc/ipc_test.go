package ipc_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fieldcam/internal/daemon"
	"fieldcam/internal/ipc"
	"fieldcam/internal/logging"
	"fieldcam/internal/testsupport"
)

type ipcEnv struct {
	hub    *logging.StreamHub
	daemon *daemon.Daemon
	server *ipc.Server
	client *ipc.Client
}

func setupIPC(t *testing.T) *ipcEnv {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	hub := logging.NewStreamHub(128)
	logger := logging.NewNop()

	d, err := daemon.New(cfg, store, logger, hub)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	// Unix socket paths are length limited; keep it short.
	dir, err := os.MkdirTemp("", "fcipc")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	socket := filepath.Join(dir, "fieldcam.sock")

	srv, err := ipc.NewServer(ctx, socket, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return &ipcEnv{hub: hub, daemon: d, server: srv, client: client}
}

func TestIPCSessionLifecycle(t *testing.T) {
	env := setupIPC(t)
	client := env.client

	startResp, err := client.Start()
	if err != nil {
		t.Fatalf("Start RPC failed: %v", err)
	}
	if !startResp.Started || startResp.SessionID == "" {
		t.Fatalf("expected started session, got %+v", startResp)
	}

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Running || status.Session.State != "running" {
		t.Fatalf("unexpected status: running=%v state=%q", status.Running, status.Session.State)
	}

	again, err := client.Start()
	if err != nil {
		t.Fatalf("second Start RPC failed: %v", err)
	}
	if !again.Started || again.SessionID != startResp.SessionID {
		t.Fatalf("second start should report the running session, got %+v", again)
	}

	modes, err := client.Modes()
	if err != nil {
		t.Fatalf("Modes RPC failed: %v", err)
	}
	if len(modes.Modes) != 3 {
		t.Fatalf("expected 3 modes, got %d", len(modes.Modes))
	}

	selected, err := client.SelectMode("survey")
	if err != nil {
		t.Fatalf("SelectMode RPC failed: %v", err)
	}
	if selected.Mode.Name != "survey" || !selected.Mode.Active || selected.Mode.FPS != 5 {
		t.Fatalf("unexpected mode: %+v", selected.Mode)
	}
	if _, err := client.SelectMode("thermal"); err == nil {
		t.Fatal("expected unknown mode to fail")
	}

	configured, err := client.Configure(ipc.ConfigureRequest{StalenessThresholdMS: 1500})
	if err != nil {
		t.Fatalf("Configure RPC failed: %v", err)
	}
	if configured.StalenessThresholdMS != 1500 {
		t.Fatalf("threshold = %d, want 1500", configured.StalenessThresholdMS)
	}
	if _, err := client.Configure(ipc.ConfigureRequest{QueueCapacity: -1}); err == nil {
		t.Fatal("expected negative capacity to be rejected")
	}

	deadline := time.Now().Add(5 * time.Second)
	var uploads *ipc.UploadsResponse
	for time.Now().Before(deadline) {
		uploads, err = client.Uploads(ipc.UploadsRequest{Status: "sent", Limit: 2})
		if err != nil {
			t.Fatalf("Uploads RPC failed: %v", err)
		}
		if len(uploads.Uploads) > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if len(uploads.Uploads) == 0 || len(uploads.Uploads) > 2 {
		t.Fatalf("unexpected uploads: %d", len(uploads.Uploads))
	}

	stopResp, err := client.Stop(false)
	if err != nil {
		t.Fatalf("Stop RPC failed: %v", err)
	}
	if !stopResp.Stopped || stopResp.Session.State != "idle" {
		t.Fatalf("unexpected stop response: %+v", stopResp)
	}
	if stopResp.Session.Counters.FramesCaptured == 0 {
		t.Fatal("expected captured frames in the final counters")
	}

	status, err = client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Running {
		t.Fatal("daemon should keep running after the session stops")
	}

	cleared, err := client.UploadsClear("")
	if err != nil {
		t.Fatalf("UploadsClear RPC failed: %v", err)
	}
	if cleared.Removed == 0 {
		t.Fatal("expected ledger rows to be removed")
	}

	notifyResp, err := client.TestNotification()
	if err != nil {
		t.Fatalf("TestNotification failed: %v", err)
	}
	if notifyResp.Sent || notifyResp.Message == "" {
		t.Fatalf("expected unsent notification with message, got %+v", notifyResp)
	}
}

func TestIPCLogTail(t *testing.T) {
	env := setupIPC(t)
	env.hub.Publish(logging.LogEvent{Message: "queued", Component: "upload"})
	env.hub.Publish(logging.LogEvent{Message: "fix acquired", Component: "location"})

	resp, err := env.client.LogTail(ipc.LogTailRequest{Limit: 10, Component: "location"})
	if err != nil {
		t.Fatalf("LogTail failed: %v", err)
	}
	if len(resp.Events) != 1 || resp.Events[0].Message != "fix acquired" {
		t.Fatalf("unexpected events: %+v", resp.Events)
	}

	done := make(chan *ipc.LogTailResponse, 1)
	go func(since uint64) {
		follow, err := env.client.LogTail(ipc.LogTailRequest{Since: since, Follow: true, WaitMillis: 3000})
		if err != nil {
			t.Errorf("LogTail follow error: %v", err)
			done <- nil
			return
		}
		done <- follow
	}(resp.Next)

	time.Sleep(100 * time.Millisecond)
	env.hub.Publish(logging.LogEvent{Message: "sent", Component: "upload"})

	select {
	case follow := <-done:
		if follow == nil {
			return
		}
		if len(follow.Events) != 1 || follow.Events[0].Message != "sent" {
			t.Fatalf("unexpected follow events: %+v", follow.Events)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("log tail follow timed out")
	}
}

func TestIPCShutdown(t *testing.T) {
	env := setupIPC(t)

	called := make(chan struct{})
	env.server.OnShutdown(func() { close(called) })

	resp, err := env.client.Shutdown()
	if err != nil {
		t.Fatalf("Shutdown RPC failed: %v", err)
	}
	if !resp.Acknowledged || resp.PID != os.Getpid() {
		t.Fatalf("unexpected shutdown response: %+v", resp)
	}
	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown callback not invoked")
	}
}
