package daemon

import (
	"fmt"
	"strings"

	"fieldcam/internal/capture"
	"fieldcam/internal/config"
	"fieldcam/internal/upload"
	"fieldcam/internal/upload/zmqpush"
)

// newDevice builds the configured capture backend.
func newDevice(cfg config.Capture) (capture.Device, error) {
	device, err := capture.NewDevice(cfg.Backend, capture.BackendOptions{ReplayDir: cfg.ReplayDir})
	if err != nil {
		return nil, fmt.Errorf("capture.backend: %w", err)
	}
	return device, nil
}

// newTransportFactory returns a constructor for the configured upload
// transport. A fresh transport is built for every session start because the
// upload sink closes its transport on stop.
func newTransportFactory(cfg config.Upload) func() (upload.Transport, error) {
	kind := strings.ToLower(strings.TrimSpace(cfg.Transport))
	return func() (upload.Transport, error) {
		switch kind {
		case "http":
			return upload.NewHTTPTransport(cfg.Endpoint, cfg.Token, nil), nil
		case "websocket":
			return upload.NewWebSocketTransport(cfg.Endpoint, cfg.Token), nil
		case "zmq":
			transport, err := zmqpush.New(cfg.Endpoint)
			if err != nil {
				return nil, fmt.Errorf("zmq transport: %w", err)
			}
			return transport, nil
		case "discard", "":
			return &upload.DiscardTransport{}, nil
		default:
			return nil, fmt.Errorf("upload.transport: unsupported value %q", cfg.Transport)
		}
	}
}
