package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"fieldcam/internal/api"
	"fieldcam/internal/config"
	"fieldcam/internal/ipc"
	"fieldcam/internal/ledger"
	"fieldcam/internal/preflight"
)

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
	StartStateRequested      StartState = "start_requested"
)

// StartResult captures session start orchestration state.
type StartResult struct {
	State     StartState
	Launched  bool
	SessionID string
	Message   string
}

// ErrDaemonNotRunning indicates daemon IPC is unavailable.
var ErrDaemonNotRunning = errors.New("daemon not running")

// Launch starts a detached fieldcam daemon process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"daemon"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForClient waits for IPC socket availability and returns a connected client.
func WaitForClient(socketPath string, timeout time.Duration) (*ipc.Client, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err == nil {
			return client, nil
		}
		lastErr = err
		time.Sleep(200 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return nil, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted launches the daemon when its socket is absent and then makes
// sure a capture session is running.
func EnsureStarted(socketPath, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	client, err := ipc.Dial(socketPath)
	launched := false
	if err != nil {
		if launchErr := Launch(executablePath, opts); launchErr != nil {
			return StartResult{}, launchErr
		}
		client, err = WaitForClient(socketPath, waitTimeout)
		if err != nil {
			return StartResult{}, err
		}
		launched = true
	}
	defer client.Close()

	statusResp, statusErr := client.Status()
	if statusErr == nil && statusResp.Session.State == "running" {
		state := StartStateAlreadyRunning
		if launched {
			state = StartStateStarted
		}
		return StartResult{State: state, Launched: launched, SessionID: statusResp.Session.SessionID}, nil
	}

	resp, err := client.Start()
	if err != nil {
		return StartResult{}, err
	}
	result := StartResult{Launched: launched, SessionID: resp.SessionID, Message: strings.TrimSpace(resp.Message)}
	if resp.Started {
		result.State = StartStateStarted
		return result, nil
	}
	result.State = StartStateRequested
	if result.Message == "" {
		result.Message = "Start request sent"
	}
	return result, nil
}

// WaitForShutdown waits for the daemon socket to stop answering.
func WaitForShutdown(socketPath string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err != nil {
			return nil
		}
		_, statusErr := client.Status()
		_ = client.Close()
		if statusErr != nil {
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("daemon did not stop within %s", timeout)
}

// ProcessInfo returns whether daemon IPC is reachable and the daemon PID when available.
func ProcessInfo(socketPath string) (bool, int, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return false, 0, nil
		}
		return false, 0, err
	}
	defer client.Close()
	status, statusErr := client.Status()
	if statusErr != nil {
		return true, 0, statusErr
	}
	return true, status.PID, nil
}

// ForceKillProcess sends SIGKILL to the daemon and removes its pid file.
func ForceKillProcess(pidPath string, fallbackPID int) (int, error) {
	pid := fallbackPID
	data, err := os.ReadFile(pidPath)
	if err == nil {
		if parsed, parseErr := strconv.Atoi(strings.TrimSpace(string(data))); parseErr == nil && parsed > 0 {
			pid = parsed
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("read daemon pid file %q: %w", pidPath, err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("unable to determine daemon pid (pid file: %s)", pidPath)
	}
	if pid == os.Getpid() {
		return 0, fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Kill(); err != nil {
		return 0, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	return pid, nil
}

// ShutdownResult captures daemon shutdown outcome.
type ShutdownResult struct {
	Acknowledged bool
	ForcedKill   bool
	PID          int
}

// Shutdown asks the daemon to exit and force-kills it if it is still alive
// after gracePeriod.
func Shutdown(socketPath string, cfg *config.Config, gracePeriod time.Duration) (ShutdownResult, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return ShutdownResult{}, ErrDaemonNotRunning
		}
		return ShutdownResult{}, err
	}
	resp, err := client.Shutdown()
	_ = client.Close()
	if err != nil {
		return ShutdownResult{}, err
	}
	result := ShutdownResult{Acknowledged: resp.Acknowledged, PID: resp.PID}

	if err := WaitForShutdown(socketPath, gracePeriod); err == nil {
		return result, nil
	}
	if cfg == nil {
		return result, errors.New("daemon still running and configuration unavailable for pid lookup")
	}
	killed, err := ForceKillProcess(cfg.PIDPath(), resp.PID)
	if err != nil {
		return result, fmt.Errorf("failed to stop daemon process: %w", err)
	}
	_ = os.Remove(socketPath)
	result.ForcedKill = true
	result.PID = killed
	return result, nil
}

// Snapshot is the status view assembled for the CLI, with offline fallbacks
// when the daemon is not reachable.
type Snapshot struct {
	DaemonReachable bool
	Status          api.DaemonStatus
	Checks          []StatusLine
}

// BuildStatusSnapshot collects daemon status, falling back to the ledger on
// disk when the daemon is offline.
func BuildStatusSnapshot(ctx context.Context, socketPath string, cfg *config.Config) (*Snapshot, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	snap := &Snapshot{}

	client, err := ipc.Dial(socketPath)
	if err == nil {
		defer client.Close()
		if resp, statusErr := client.Status(); statusErr == nil {
			snap.DaemonReachable = true
			snap.Status = resp.DaemonStatus
		} else {
			err = statusErr
		}
	}
	if err != nil && !isDaemonUnavailable(err) {
		return nil, err
	}

	if !snap.DaemonReachable {
		snap.Status = api.DaemonStatus{
			Backend:          cfg.Capture.Backend,
			LocationProvider: cfg.Location.Provider,
			Transport:        cfg.Upload.Transport,
			LedgerPath:       cfg.LedgerPath(),
			LockFilePath:     cfg.LockPath(),
			SocketPath:       socketPath,
			Session:          api.SessionStatus{State: "idle", Mode: cfg.Capture.Mode, Device: cfg.Capture.Device},
		}
		if _, statErr := os.Stat(cfg.LedgerPath()); statErr == nil {
			if store, openErr := ledger.Open(cfg); openErr == nil {
				if stats, statsErr := store.Stats(ctx); statsErr == nil {
					snap.Status.Uploads = stats
				}
				store.Close()
			}
		}
	}

	snap.Checks = BuildSystemChecks(cfg, snap.DaemonReachable, snap.Status)
	snap.Checks = append(snap.Checks, PreflightLines(preflight.RunAll(ctx, cfg))...)
	return snap, nil
}

func isDaemonUnavailable(err error) bool {
	return errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ENOENT) || errors.Is(err, syscall.ECONNREFUSED)
}
