package testsupport

import (
	"path/filepath"
	"testing"

	"fieldcam/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults to the synthetic backend, a static location, and the discard
// transport so nothing touches real hardware or the network.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Capture.Backend = "synthetic"
	cfg.Location.Provider = "static"
	cfg.Upload.Transport = "discard"
	cfg.Upload.BackoffInitialMS = 1
	cfg.Upload.BackoffMaxMS = 5

	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithQueueCapacity overrides the upload queue capacity.
func WithQueueCapacity(n int) ConfigOption {
	return func(c *config.Config) { c.Upload.QueueCapacity = n }
}

// WithStalenessThresholdMS overrides the tagging threshold.
func WithStalenessThresholdMS(ms int) ConfigOption {
	return func(c *config.Config) { c.Tagging.StalenessThresholdMS = ms }
}

// WithMaxRetries overrides the upload retry budget.
func WithMaxRetries(n int) ConfigOption {
	return func(c *config.Config) { c.Upload.MaxRetries = n }
}
