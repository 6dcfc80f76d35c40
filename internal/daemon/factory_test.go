package daemon

import (
	"testing"

	"fieldcam/internal/capture"
	"fieldcam/internal/config"
	"fieldcam/internal/upload"
)

func TestNewTransportFactory(t *testing.T) {
	tests := []struct {
		name      string
		transport string
		check     func(upload.Transport) bool
	}{
		{"discard", "discard", func(tr upload.Transport) bool { _, ok := tr.(*upload.DiscardTransport); return ok }},
		{"empty defaults to discard", "", func(tr upload.Transport) bool { _, ok := tr.(*upload.DiscardTransport); return ok }},
		{"http", "HTTP", func(tr upload.Transport) bool { _, ok := tr.(*upload.HTTPTransport); return ok }},
		{"websocket", "websocket", func(tr upload.Transport) bool { _, ok := tr.(*upload.WebSocketTransport); return ok }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			factory := newTransportFactory(config.Upload{Transport: tc.transport, Endpoint: "http://127.0.0.1:1/frames"})
			tr, err := factory()
			if err != nil {
				t.Fatalf("factory: %v", err)
			}
			defer tr.Close()
			if !tc.check(tr) {
				t.Fatalf("unexpected transport type %T", tr)
			}
		})
	}

	if _, err := newTransportFactory(config.Upload{Transport: "carrier-pigeon"})(); err == nil {
		t.Fatal("expected error for unsupported transport")
	}
}

func TestNewDeviceUsesBackendRegistry(t *testing.T) {
	dev, err := newDevice(config.Capture{Backend: "replay", ReplayDir: t.TempDir()})
	if err != nil {
		t.Fatalf("newDevice: %v", err)
	}
	if _, ok := dev.(*capture.ReplayDevice); !ok {
		t.Fatalf("expected replay device, got %T", dev)
	}
	if _, err := newDevice(config.Capture{Backend: "opencv"}); err == nil {
		t.Fatal("expected opencv to be unavailable when its package is not linked")
	}
}
