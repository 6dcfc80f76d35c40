package config

const (
	defaultConfigPath            = "~/.config/fieldcam/config.toml"
	defaultStateDir              = "~/.local/share/fieldcam"
	defaultLogDir                = "~/.local/share/fieldcam/logs"
	defaultAPIBind               = "127.0.0.1:7490"
	defaultCaptureBackend        = "synthetic"
	defaultCaptureDevice         = "/dev/video0"
	defaultCaptureMode           = "standard"
	defaultReconnectDelaySeconds = 5
	defaultLocationProvider      = "static"
	defaultLocationDevice        = "/dev/ttyACM0"
	defaultGPSDAddr              = "127.0.0.1:2947"
	defaultStaticAccuracyM       = 25.0
	defaultStalenessThresholdMS  = 2000
	defaultUploadTransport       = "discard"
	defaultQueueCapacity         = 16
	defaultMaxRetries            = 3
	defaultBackoffInitialMS      = 500
	defaultBackoffMaxMS          = 10000
	defaultRequestTimeoutSeconds = 15
	defaultStopTimeoutSeconds    = 30
	defaultNotifyRequestTimeout  = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	uploadTokenEnv               = "FIELDCAM_UPLOAD_TOKEN"
	ntfyTopicEnv                 = "FIELDCAM_NTFY_TOPIC"
	apiTokenEnv                  = "FIELDCAM_API_TOKEN"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Capture: Capture{
			Backend:               defaultCaptureBackend,
			Device:                defaultCaptureDevice,
			Mode:                  defaultCaptureMode,
			ReconnectDelaySeconds: defaultReconnectDelaySeconds,
			AutoRestart:           true,
		},
		Location: Location{
			Provider:        defaultLocationProvider,
			Device:          defaultLocationDevice,
			GPSDAddr:        defaultGPSDAddr,
			StaticAccuracyM: defaultStaticAccuracyM,
		},
		Tagging: Tagging{
			StalenessThresholdMS: defaultStalenessThresholdMS,
		},
		Upload: Upload{
			Transport:             defaultUploadTransport,
			QueueCapacity:         defaultQueueCapacity,
			MaxRetries:            defaultMaxRetries,
			BackoffInitialMS:      defaultBackoffInitialMS,
			BackoffMaxMS:          defaultBackoffMaxMS,
			RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
			DrainOnStop:           true,
			StopTimeoutSeconds:    defaultStopTimeoutSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			CaptureFaults:  true,
			LocationFaults: true,
			UploadFailures: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
