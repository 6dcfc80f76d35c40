package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"fieldcam/internal/api"
	"fieldcam/internal/capture"
	"fieldcam/internal/config"
	"fieldcam/internal/ledger"
	"fieldcam/internal/location"
	"fieldcam/internal/logging"
	"fieldcam/internal/notifications"
	"fieldcam/internal/session"
	"fieldcam/internal/tagging"
	"fieldcam/internal/upload"
)

// Daemon owns the capture session and everything that observes it.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	hub      *logging.StreamHub
	store    *ledger.Store
	recorder *ledger.Recorder
	notifier notifications.Service
	session  *session.Session
	events   *eventFanout
	monitor  *netlinkMonitor
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	restartMu    sync.Mutex
	restartTimer *time.Timer
}

// New constructs a daemon with initialized dependencies. store may be nil, in
// which case upload outcomes are not recorded.
func New(cfg *config.Config, store *ledger.Store, logger *slog.Logger, hub *logging.StreamHub) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	catalog, err := capture.LoadCatalog(cfg.Capture.PresetsFile)
	if err != nil {
		return nil, fmt.Errorf("capture.presets_file: %w", err)
	}
	mode, ok := catalog.Lookup(cfg.Capture.Mode)
	if !ok {
		return nil, fmt.Errorf("capture.mode: unknown mode %q", cfg.Capture.Mode)
	}
	device, err := newDevice(cfg.Capture)
	if err != nil {
		return nil, err
	}
	provider, err := location.NewProvider(cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("location.provider: %w", err)
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		hub:      hub,
		store:    store,
		notifier: notifications.NewService(cfg),
		events:   newEventFanout(),
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}

	var onResolved func(*upload.Ticket)
	if store != nil {
		d.recorder = ledger.NewRecorder(store, logger)
		onResolved = d.recorder.Observe
	}

	sess, err := session.New(session.Dependencies{
		Device:    device,
		Provider:  provider,
		Transport: newTransportFactory(cfg.Upload),
		Catalog:   catalog,
		Upload: upload.Options{
			MaxRetries:     cfg.Upload.MaxRetries,
			BackoffInitial: cfg.BackoffInitial(),
			BackoffMax:     cfg.BackoffMax(),
			RequestTimeout: cfg.RequestTimeout(),
		},
		OnResolved: onResolved,
		OnTagged: func(tf tagging.TaggedFrame) {
			d.events.publish(api.FromTaggedFrame(tf))
		},
		Logger: logger,
	}, session.Config{
		Device:             capture.Config{Device: cfg.Capture.Device, Mode: mode},
		StalenessThreshold: cfg.StalenessThreshold(),
		QueueCapacity:      cfg.Upload.QueueCapacity,
	})
	if err != nil {
		if d.recorder != nil {
			d.recorder.Close()
		}
		return nil, fmt.Errorf("build session: %w", err)
	}
	d.session = sess
	d.monitor = newNetlinkMonitor(cfg, logger, d.handleHotplug)
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the instance lock, brings up the API and hotplug monitor,
// and starts a capture session. A session that fails to start is logged and
// left idle so the operator can fix the device and start it over IPC.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another fieldcam daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.api.start(d.ctx); err != nil {
		d.cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api server: %w", err)
	}
	if err := d.monitor.Start(d.ctx); err != nil {
		d.logger.Warn("hotplug monitor unavailable", logging.Error(err))
	}

	d.wg.Add(1)
	go d.consumeEvents(d.ctx)

	d.running.Store(true)
	d.logger.Info("fieldcam daemon started", logging.String("lock", d.lockPath))

	if err := d.StartSession(d.ctx); err != nil {
		logging.ErrorWithContext(d.logger, "capture session did not start", "session_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check capture.device and permissions, then run fieldcam start"),
		)
	}
	return nil
}

// Stop ends the session, stops background services, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), d.cfg.StopTimeout())
	if err := d.session.Stop(stopCtx, d.cfg.Upload.DrainOnStop); err != nil {
		d.logger.Warn("session stop incomplete", logging.Error(err))
	}
	cancel()

	d.cancelRestart()
	d.monitor.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.wg.Wait()

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("fieldcam daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.recorder != nil {
		d.recorder.Close()
	}
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether Start has succeeded and Stop has not run.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// StartSession starts a capture session.
func (d *Daemon) StartSession(ctx context.Context) error {
	return d.session.Start(ctx)
}

// StopSession stops the capture session. Uploads are drained unless discard is set.
func (d *Daemon) StopSession(ctx context.Context, discard bool) error {
	d.cancelRestart()
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.StopTimeout())
		defer cancel()
	}
	return d.session.Stop(ctx, !discard)
}

// SelectMode applies a catalog mode, restarting capture if running.
func (d *Daemon) SelectMode(ctx context.Context, name string) (capture.Mode, error) {
	return d.session.SelectMode(ctx, name)
}

// Configure updates the tagging threshold and queue capacity. Zero values
// keep the current setting.
func (d *Daemon) Configure(threshold time.Duration, capacity int) (session.Config, error) {
	cfg := d.session.Config()
	if threshold > 0 {
		cfg.StalenessThreshold = threshold
	}
	if capacity > 0 {
		cfg.QueueCapacity = capacity
	}
	if err := d.session.Configure(cfg); err != nil {
		return session.Config{}, err
	}
	return d.session.Config(), nil
}

// Modes lists the capture modes available to the picker.
func (d *Daemon) Modes() []api.Mode {
	return api.FromModes(d.session.Catalog().Modes(), d.session.Config().Device.Mode.Name)
}

// ListUploads returns ledger records.
func (d *Daemon) ListUploads(ctx context.Context, filter ledger.Filter) ([]ledger.Record, error) {
	if d.store == nil {
		return nil, errors.New("upload ledger unavailable")
	}
	return d.store.List(ctx, filter)
}

// ClearUploads removes ledger records, optionally only those with status.
func (d *Daemon) ClearUploads(ctx context.Context, status string) (int64, error) {
	if d.store == nil {
		return 0, errors.New("upload ledger unavailable")
	}
	return d.store.Clear(ctx, strings.TrimSpace(status))
}

// TestNotification sends a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogStream exposes the in-memory log hub.
func (d *Daemon) LogStream() *logging.StreamHub {
	return d.hub
}

// SessionStatus returns the session snapshot in API form.
func (d *Daemon) SessionStatus() api.SessionStatus {
	return api.FromSessionStatus(d.session.Status(), d.session.Config().StalenessThreshold)
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:          d.running.Load(),
		PID:              os.Getpid(),
		LockFilePath:     d.lockPath,
		SocketPath:       d.cfg.SocketPath(),
		Backend:          d.cfg.Capture.Backend,
		LocationProvider: d.cfg.Location.Provider,
		Transport:        d.cfg.Upload.Transport,
		Hotplug:          d.monitor.Running(),
		Session:          d.SessionStatus(),
	}
	if d.store != nil {
		status.LedgerPath = d.store.Path()
		if stats, err := d.store.Stats(ctx); err == nil {
			status.Uploads = stats
		} else {
			d.logger.Debug("ledger stats unavailable", logging.Error(err))
		}
	}
	return status
}
