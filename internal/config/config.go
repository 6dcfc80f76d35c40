package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Capture selects the frame source backend and its initial mode.
type Capture struct {
	Backend               string `toml:"backend"`
	Device                string `toml:"device"`
	Mode                  string `toml:"mode"`
	PresetsFile           string `toml:"presets_file"`
	ReplayDir             string `toml:"replay_dir"`
	ReconnectDelaySeconds int    `toml:"reconnect_delay_seconds"`
	AutoRestart           bool   `toml:"auto_restart"`
}

// Location selects the fix provider feeding the location tracker.
type Location struct {
	Provider        string  `toml:"provider"`
	Device          string  `toml:"device"`
	GPSDAddr        string  `toml:"gpsd_addr"`
	StaticLatitude  float64 `toml:"static_latitude"`
	StaticLongitude float64 `toml:"static_longitude"`
	StaticAccuracyM float64 `toml:"static_accuracy_m"`
}

// Tagging configures the frame/fix coordinator.
type Tagging struct {
	StalenessThresholdMS int `toml:"staleness_threshold_ms"`
}

// Upload configures the bounded upload queue and its transport.
type Upload struct {
	Transport             string `toml:"transport"`
	Endpoint              string `toml:"endpoint"`
	Token                 string `toml:"token"`
	QueueCapacity         int    `toml:"queue_capacity"`
	MaxRetries            int    `toml:"max_retries"`
	BackoffInitialMS      int    `toml:"backoff_initial_ms"`
	BackoffMaxMS          int    `toml:"backoff_max_ms"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	DrainOnStop           bool   `toml:"drain_on_stop"`
	StopTimeoutSeconds    int    `toml:"stop_timeout_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	CaptureFaults  bool   `toml:"capture_faults"`
	LocationFaults bool   `toml:"location_faults"`
	UploadFailures bool   `toml:"upload_failures"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for fieldcam.
//
// Configuration sections by subsystem:
//   - Paths: state/log directories and API bind address
//   - Capture: frame source backend, device handle, and capture mode
//   - Location: fix provider (NMEA serial, gpsd, or static)
//   - Tagging: staleness threshold applied when stamping frames
//   - Upload: queue capacity, retry/backoff, and transport endpoint
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Capture       Capture       `toml:"capture"`
	Location      Location      `toml:"location"`
	Tagging       Tagging       `toml:"tagging"`
	Upload        Upload        `toml:"upload"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadDotEnv(resolvedPath); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("fieldcam.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// loadDotEnv sources a .env file sitting next to the config file (or in the
// working directory). Variables already present in the environment win.
func loadDotEnv(configPath string) error {
	candidates := []string{".env"}
	if configPath != "" {
		candidates = append([]string{filepath.Join(filepath.Dir(configPath), ".env")}, candidates...)
	}
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		if err := godotenv.Load(candidate); err != nil {
			return fmt.Errorf("load env file %s: %w", candidate, err)
		}
		return nil
	}
	return nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// StalenessThreshold returns the tagging threshold as a duration.
func (c *Config) StalenessThreshold() time.Duration {
	return time.Duration(c.Tagging.StalenessThresholdMS) * time.Millisecond
}

// BackoffInitial returns the first upload retry delay.
func (c *Config) BackoffInitial() time.Duration {
	return time.Duration(c.Upload.BackoffInitialMS) * time.Millisecond
}

// BackoffMax returns the upload retry delay cap.
func (c *Config) BackoffMax() time.Duration {
	return time.Duration(c.Upload.BackoffMaxMS) * time.Millisecond
}

// RequestTimeout returns the per-attempt upload timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Upload.RequestTimeoutSeconds) * time.Second
}

// StopTimeout bounds how long a session stop waits for queued uploads to drain.
func (c *Config) StopTimeout() time.Duration {
	return time.Duration(c.Upload.StopTimeoutSeconds) * time.Second
}

// ReconnectDelay is the pause before the daemon restarts an interrupted capture.
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.Capture.ReconnectDelaySeconds) * time.Second
}

// LedgerPath returns the SQLite upload ledger location.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, "uploads.db")
}

// SocketPath returns the daemon control socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "fieldcam.sock")
}

// PIDPath returns where the running daemon records its process id.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "fieldcam.pid")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "fieldcamd.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
