package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validateLocation(); err != nil {
		return err
	}
	if err := c.validateTagging(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCapture() error {
	switch c.Capture.Backend {
	case "synthetic":
	case "replay":
		if strings.TrimSpace(c.Capture.ReplayDir) == "" {
			return errors.New("capture.replay_dir must be set when capture.backend is \"replay\"")
		}
	case "opencv":
		if strings.TrimSpace(c.Capture.Device) == "" {
			return errors.New("capture.device must be set when capture.backend is \"opencv\"")
		}
	default:
		return fmt.Errorf("capture.backend: unsupported value %q (expected synthetic, replay, or opencv)", c.Capture.Backend)
	}
	if strings.TrimSpace(c.Capture.Mode) == "" {
		return errors.New("capture.mode must be set")
	}
	if c.Capture.ReconnectDelaySeconds < 0 {
		return errors.New("capture.reconnect_delay_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateLocation() error {
	switch c.Location.Provider {
	case "nmea":
		if c.Location.Device == "" {
			return errors.New("location.device must be set when location.provider is \"nmea\"")
		}
	case "gpsd":
		if c.Location.GPSDAddr == "" {
			return errors.New("location.gpsd_addr must be set when location.provider is \"gpsd\"")
		}
	case "static":
		if c.Location.StaticLatitude < -90 || c.Location.StaticLatitude > 90 {
			return errors.New("location.static_latitude must be between -90 and 90")
		}
		if c.Location.StaticLongitude < -180 || c.Location.StaticLongitude > 180 {
			return errors.New("location.static_longitude must be between -180 and 180")
		}
		if c.Location.StaticAccuracyM < 0 {
			return errors.New("location.static_accuracy_m must be >= 0")
		}
	default:
		return fmt.Errorf("location.provider: unsupported value %q (expected nmea, gpsd, or static)", c.Location.Provider)
	}
	return nil
}

func (c *Config) validateTagging() error {
	if c.Tagging.StalenessThresholdMS <= 0 {
		return errors.New("tagging.staleness_threshold_ms must be positive")
	}
	return nil
}

func (c *Config) validateUpload() error {
	switch c.Upload.Transport {
	case "discard":
	case "http", "websocket", "zmq":
		if c.Upload.Endpoint == "" {
			return fmt.Errorf("upload.endpoint must be set when upload.transport is %q", c.Upload.Transport)
		}
	default:
		return fmt.Errorf("upload.transport: unsupported value %q (expected http, websocket, zmq, or discard)", c.Upload.Transport)
	}
	if err := ensurePositiveMap(map[string]int{
		"upload.queue_capacity":          c.Upload.QueueCapacity,
		"upload.backoff_initial_ms":      c.Upload.BackoffInitialMS,
		"upload.backoff_max_ms":          c.Upload.BackoffMaxMS,
		"upload.request_timeout_seconds": c.Upload.RequestTimeoutSeconds,
		"upload.stop_timeout_seconds":    c.Upload.StopTimeoutSeconds,
	}); err != nil {
		return err
	}
	if c.Upload.MaxRetries < 0 {
		return errors.New("upload.max_retries must be >= 0")
	}
	if c.Upload.BackoffMaxMS < c.Upload.BackoffInitialMS {
		return errors.New("upload.backoff_max_ms must be >= upload.backoff_initial_ms")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
		return nil
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
