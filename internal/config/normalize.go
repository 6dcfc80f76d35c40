package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeCapture(); err != nil {
		return err
	}
	c.normalizeLocation()
	c.normalizeUpload()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv(apiTokenEnv); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeCapture() error {
	c.Capture.Backend = strings.ToLower(strings.TrimSpace(c.Capture.Backend))
	c.Capture.Device = strings.TrimSpace(c.Capture.Device)
	c.Capture.Mode = strings.ToLower(strings.TrimSpace(c.Capture.Mode))
	var err error
	if c.Capture.PresetsFile, err = expandPath(strings.TrimSpace(c.Capture.PresetsFile)); err != nil {
		return fmt.Errorf("capture.presets_file: %w", err)
	}
	if c.Capture.ReplayDir, err = expandPath(strings.TrimSpace(c.Capture.ReplayDir)); err != nil {
		return fmt.Errorf("capture.replay_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLocation() {
	c.Location.Provider = strings.ToLower(strings.TrimSpace(c.Location.Provider))
	c.Location.Device = strings.TrimSpace(c.Location.Device)
	c.Location.GPSDAddr = strings.TrimSpace(c.Location.GPSDAddr)
}

func (c *Config) normalizeUpload() {
	c.Upload.Transport = strings.ToLower(strings.TrimSpace(c.Upload.Transport))
	c.Upload.Endpoint = strings.TrimSpace(c.Upload.Endpoint)
	c.Upload.Token = strings.TrimSpace(c.Upload.Token)
	if c.Upload.Token == "" {
		if value, ok := os.LookupEnv(uploadTokenEnv); ok {
			c.Upload.Token = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv(ntfyTopicEnv); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "console", "text":
		c.Logging.Format = "console"
	default:
		c.Logging.Format = format
	}
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}
