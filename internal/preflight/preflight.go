package preflight

import (
	"context"

	"fieldcam/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the checks that apply to the configured backends.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{CheckDirectoryAccess("State directory", cfg.Paths.StateDir)}

	switch cfg.Capture.Backend {
	case "opencv":
		results = append(results, CheckDeviceResult("Capture device", cfg.Capture.Device, true))
	case "replay":
		results = append(results, CheckDirectoryReadable("Replay directory", cfg.Capture.ReplayDir))
	}

	switch cfg.Location.Provider {
	case "nmea":
		results = append(results, CheckDeviceResult("GPS device", cfg.Location.Device, false))
	case "gpsd":
		results = append(results, CheckTCP(ctx, "gpsd", cfg.Location.GPSDAddr))
	}

	if cfg.Upload.Transport == "http" {
		results = append(results, CheckEndpoint(ctx, "Upload endpoint", cfg.Upload.Endpoint, cfg.Upload.Token))
	}
	return results
}
