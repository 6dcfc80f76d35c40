package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"
	"time"

	"fieldcam/internal/api"
	"fieldcam/internal/capture"
	"fieldcam/internal/daemon"
	"fieldcam/internal/ledger"
	"fieldcam/internal/logging"
)

const serviceName = "Fieldcam"

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server
	svc       *service

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	svc := &service{daemon: d, logger: logging.NewComponentLogger(logger, "ipc"), ctx: serverCtx}
	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName(serviceName, svc); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		daemon:    d,
		logger:    svc.logger,
		listener:  listener,
		rpcServer: rpcServer,
		svc:       svc,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// OnShutdown registers the function invoked when a client asks the daemon
// process to exit.
func (s *Server) OnShutdown(fn func()) {
	s.svc.mu.Lock()
	s.svc.shutdown = fn
	s.svc.mu.Unlock()
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context

	mu       sync.Mutex
	shutdown func()
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	s.logger.Debug("session start requested")
	var err error
	if !s.daemon.Running() {
		err = s.daemon.Start(s.ctx)
	} else {
		err = s.daemon.StartSession(s.ctx)
	}
	status := s.daemon.SessionStatus()
	resp.SessionID = status.SessionID
	if err != nil {
		resp.Started = status.State == "running"
		resp.Message = err.Error()
		return nil
	}
	resp.Started = status.State == "running"
	if resp.Started {
		resp.Message = "session started"
		s.logger.Info("session started via IPC",
			logging.String(logging.FieldEventType, "session_start"),
			logging.String(logging.FieldSessionID, status.SessionID))
	} else {
		resp.Message = "daemon started; capture session did not start (see logs)"
	}
	return nil
}

func (s *service) Stop(req StopRequest, resp *StopResponse) error {
	s.logger.Debug("session stop requested", logging.Bool("discard", req.Discard))
	err := s.daemon.StopSession(s.ctx, req.Discard)
	resp.Session = s.daemon.SessionStatus()
	resp.Stopped = resp.Session.State == "idle"
	if err != nil {
		resp.Message = err.Error()
	}
	s.logger.Info("session stopped via IPC",
		logging.String(logging.FieldEventType, "session_stop"),
		logging.Bool("discard", req.Discard))
	return nil
}

func (s *service) Shutdown(_ ShutdownRequest, resp *ShutdownResponse) error {
	s.mu.Lock()
	fn := s.shutdown
	s.mu.Unlock()
	resp.PID = os.Getpid()
	if fn == nil {
		return errors.New("shutdown not supported by this daemon")
	}
	s.logger.Info("daemon shutdown requested via IPC",
		logging.String(logging.FieldEventType, "daemon_shutdown"))
	// The reply must reach the client before the process starts tearing down.
	time.AfterFunc(50*time.Millisecond, fn)
	resp.Acknowledged = true
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	resp.DaemonStatus = s.daemon.Status(s.ctx)
	return nil
}

func (s *service) Modes(_ ModesRequest, resp *ModesResponse) error {
	resp.Modes = s.daemon.Modes()
	return nil
}

func (s *service) SelectMode(req SelectModeRequest, resp *SelectModeResponse) error {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return errors.New("mode name is required")
	}
	mode, err := s.daemon.SelectMode(s.ctx, name)
	if err != nil {
		return err
	}
	resp.Mode = api.FromModes([]capture.Mode{mode}, mode.Name)[0]
	s.logger.Info("capture mode selected via IPC",
		logging.String(logging.FieldEventType, "mode_select"),
		logging.String("mode", mode.Name))
	return nil
}

func (s *service) Configure(req ConfigureRequest, resp *ConfigureResponse) error {
	if req.StalenessThresholdMS < 0 || req.QueueCapacity < 0 {
		return errors.New("configure values must not be negative")
	}
	cfg, err := s.daemon.Configure(time.Duration(req.StalenessThresholdMS)*time.Millisecond, req.QueueCapacity)
	if err != nil {
		return err
	}
	resp.StalenessThresholdMS = cfg.StalenessThreshold.Milliseconds()
	resp.QueueCapacity = cfg.QueueCapacity
	return nil
}

func (s *service) Uploads(req UploadsRequest, resp *UploadsResponse) error {
	records, err := s.daemon.ListUploads(s.ctx, ledger.Filter{
		Status:    strings.TrimSpace(req.Status),
		SessionID: strings.TrimSpace(req.SessionID),
		Limit:     req.Limit,
	})
	if err != nil {
		return err
	}
	resp.Uploads = api.FromRecords(records)
	return nil
}

func (s *service) UploadsClear(req UploadsClearRequest, resp *UploadsClearResponse) error {
	removed, err := s.daemon.ClearUploads(s.ctx, req.Status)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.logger.Info("upload ledger cleared",
		logging.String(logging.FieldEventType, "uploads_clear"),
		logging.String("status", req.Status),
		logging.Int64("removed_count", removed))
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	hub := s.daemon.LogStream()
	if hub == nil {
		resp.Next = req.Since
		return nil
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 200
	}

	var events []logging.LogEvent
	if req.Since == 0 && !req.Follow {
		events, resp.Next = hub.Tail(limit)
	} else {
		ctx := s.ctx
		if req.Follow {
			wait := time.Duration(req.WaitMillis) * time.Millisecond
			if wait <= 0 {
				wait = time.Second
			}
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(s.ctx, wait)
			defer cancel()
		}
		var err error
		events, resp.Next, err = hub.Fetch(ctx, req.Since, limit, req.Follow)
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			return err
		}
		if resp.Next < req.Since {
			resp.Next = req.Since
		}
	}

	component := strings.TrimSpace(req.Component)
	filtered := events[:0]
	for _, evt := range events {
		if component != "" && !strings.EqualFold(evt.Component, component) {
			continue
		}
		filtered = append(filtered, evt)
	}
	resp.Events = api.FromLogEvents(filtered)
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}
