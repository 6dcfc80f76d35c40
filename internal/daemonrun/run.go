package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"fieldcam/internal/capture"
	"fieldcam/internal/config"
	"fieldcam/internal/daemon"
	"fieldcam/internal/ipc"
	"fieldcam/internal/ledger"
	"fieldcam/internal/logging"
	"fieldcam/internal/preflight"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the fieldcam daemon and blocks until a signal or an IPC
// shutdown request.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("fieldcam-%s.log", runID))
	logHub := logging.NewStreamHub(4096)

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
		Hub:         logHub,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update fieldcam.log link: %v\n", err)
	}
	logStartupSnapshot(logger, cfg)
	for _, result := range preflight.RunAll(signalCtx, cfg) {
		if !result.Passed {
			logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
				logging.String("check", result.Name),
				logging.String(logging.FieldErrorHint, result.Detail),
				logging.String(logging.FieldImpact, "the session may not start until this is resolved"),
			)
		}
	}

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := ledger.Open(cfg)
	if err != nil {
		logger.Error("open upload ledger", logging.Error(err))
		return err
	}

	d, err := daemon.New(cfg, store, logger, logHub)
	if err != nil {
		store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.OnShutdown(cancel)
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check for another running instance and the state directory permissions"),
			logging.String(logging.FieldImpact, "no frames are captured"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("fieldcam daemon shutting down")
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "fieldcam.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logStartupSnapshot(logger *slog.Logger, cfg *config.Config) {
	logger.Info("startup snapshot",
		logging.String(logging.FieldEventType, "startup_snapshot"),
		logging.String("capture_backend", cfg.Capture.Backend),
		logging.String("capture_device", cfg.Capture.Device),
		logging.String("capture_mode", cfg.Capture.Mode),
		logging.Any("available_backends", capture.Backends()),
		logging.String("location_provider", cfg.Location.Provider),
		logging.String("upload_transport", cfg.Upload.Transport),
		logging.Bool("upload_endpoint_set", cfg.Upload.Endpoint != ""),
		logging.Int("queue_capacity", cfg.Upload.QueueCapacity),
		logging.Int("staleness_threshold_ms", cfg.Tagging.StalenessThresholdMS),
		logging.Bool("api_enabled", cfg.Paths.APIBind != ""),
		logging.Bool("notifications_enabled", cfg.Notifications.NtfyTopic != ""),
	)
}
