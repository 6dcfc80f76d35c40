package daemonctl

import (
	"fmt"
	"os"
	"strings"

	"fieldcam/internal/api"
	"fieldcam/internal/config"
	"fieldcam/internal/preflight"
)

// Severity grades a status line.
type Severity string

const (
	SeverityOK    Severity = "ok"
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// StatusLine is one row of the system section in `fieldcam status`.
type StatusLine struct {
	Label    string
	Severity Severity
	Detail   string
}

// BuildSystemChecks derives the system section from configuration and the
// daemon status.
func BuildSystemChecks(cfg *config.Config, daemonRunning bool, status api.DaemonStatus) []StatusLine {
	lines := make([]StatusLine, 0, 7)

	if daemonRunning {
		lines = append(lines, StatusLine{"Daemon", SeverityOK, fmt.Sprintf("Running (pid %d)", status.PID)})
	} else {
		lines = append(lines, StatusLine{"Daemon", SeverityInfo, "Not running"})
	}

	lines = append(lines, captureLine(cfg, daemonRunning, status.Session))
	lines = append(lines, locationLine(cfg, daemonRunning, status.Session))
	lines = append(lines, uploadLine(cfg))

	switch {
	case !daemonRunning:
		lines = append(lines, StatusLine{"Hotplug", SeverityInfo, "Inactive (daemon not running)"})
	case status.Hotplug:
		lines = append(lines, StatusLine{"Hotplug", SeverityOK, "Netlink monitoring active"})
	default:
		lines = append(lines, StatusLine{"Hotplug", SeverityInfo, "Not monitoring (restart relies on the retry timer)"})
	}

	if bind := strings.TrimSpace(cfg.Paths.APIBind); bind != "" {
		detail := "Listening on " + bind
		if strings.TrimSpace(cfg.Paths.APIToken) == "" {
			lines = append(lines, StatusLine{"HTTP API", SeverityWarn, detail + " without a token"})
		} else {
			lines = append(lines, StatusLine{"HTTP API", SeverityOK, detail})
		}
	} else {
		lines = append(lines, StatusLine{"HTTP API", SeverityInfo, "Disabled"})
	}

	if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		lines = append(lines, StatusLine{"Notifications", SeverityInfo, "Disabled"})
	} else {
		lines = append(lines, StatusLine{"Notifications", SeverityOK, "ntfy topic configured"})
	}
	return lines
}

func captureLine(cfg *config.Config, daemonRunning bool, session api.SessionStatus) StatusLine {
	backend := strings.TrimSpace(cfg.Capture.Backend)
	if backend == "opencv" && strings.HasPrefix(cfg.Capture.Device, "/dev/") {
		if _, err := os.Stat(cfg.Capture.Device); err != nil {
			return StatusLine{"Capture", SeverityError, fmt.Sprintf("%s not present", cfg.Capture.Device)}
		}
	}
	label := fmt.Sprintf("%s %s (%s)", backend, cfg.Capture.Device, session.Mode)
	if !daemonRunning {
		return StatusLine{"Capture", SeverityInfo, strings.TrimSpace(label)}
	}
	switch {
	case session.State != "running":
		return StatusLine{"Capture", SeverityInfo, "Session " + session.State}
	case session.CaptureDelivering:
		return StatusLine{"Capture", SeverityOK, "Delivering " + label}
	default:
		return StatusLine{"Capture", SeverityWarn, "Interrupted; waiting for the device"}
	}
}

func locationLine(cfg *config.Config, daemonRunning bool, session api.SessionStatus) StatusLine {
	provider := strings.TrimSpace(cfg.Location.Provider)
	if !daemonRunning || session.State != "running" {
		return StatusLine{"Location", SeverityInfo, provider}
	}
	if session.LocationRunning {
		return StatusLine{"Location", SeverityOK, fmt.Sprintf("%s (%d fixes)", provider, session.Counters.FixesReceived)}
	}
	return StatusLine{"Location", SeverityWarn, provider + " unavailable; frames are tagged without a fix"}
}

func uploadLine(cfg *config.Config) StatusLine {
	transport := strings.TrimSpace(cfg.Upload.Transport)
	switch transport {
	case "", "discard":
		return StatusLine{"Upload", SeverityWarn, "Discard transport (frames are not sent anywhere)"}
	}
	if strings.TrimSpace(cfg.Upload.Endpoint) == "" {
		return StatusLine{"Upload", SeverityError, transport + " transport without an endpoint"}
	}
	return StatusLine{"Upload", SeverityOK, fmt.Sprintf("%s -> %s", transport, cfg.Upload.Endpoint)}
}

// PreflightLines converts readiness check results into status rows.
func PreflightLines(results []preflight.Result) []StatusLine {
	lines := make([]StatusLine, 0, len(results))
	for _, r := range results {
		severity := SeverityOK
		if !r.Passed {
			severity = SeverityError
		}
		lines = append(lines, StatusLine{r.Name, severity, r.Detail})
	}
	return lines
}
