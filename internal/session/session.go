package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"fieldcam/internal/capture"
	"fieldcam/internal/location"
	"fieldcam/internal/logging"
	"fieldcam/internal/services"
	"fieldcam/internal/tagging"
	"fieldcam/internal/upload"
)

var (
	// ErrRunning is returned by Start on a running session.
	ErrRunning = errors.New("session already running")
	// ErrNotRunning is returned by operations that need a running session.
	ErrNotRunning = errors.New("session not running")
	// ErrStopping is returned while a stop is in progress.
	ErrStopping = errors.New("session is stopping")
	// ErrUnknownMode is returned by SelectMode for a name missing from the catalog.
	ErrUnknownMode = errors.New("unknown capture mode")
)

// State is the lifecycle state of a session.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// Config is what the controlling screen configures before a run.
type Config struct {
	Device             capture.Config
	StalenessThreshold time.Duration
	QueueCapacity      int
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	if err := c.Device.Mode.Validate(); err != nil {
		return services.Wrap(services.ErrValidation, "session", "configure", "capture mode", err)
	}
	if c.StalenessThreshold < 0 {
		return services.Wrap(services.ErrValidation, "session", "configure", "staleness threshold must not be negative", nil)
	}
	if c.QueueCapacity < 0 {
		return services.Wrap(services.ErrValidation, "session", "configure", "queue capacity must not be negative", nil)
	}
	return nil
}

// Dependencies are the long-lived collaborators a session builds its
// components from. Transport is called once per Start because a sink closes
// its transport when it stops.
type Dependencies struct {
	Device     capture.Device
	Provider   location.Provider
	Transport  func() (upload.Transport, error)
	Catalog    *capture.Catalog
	Upload     upload.Options
	OnResolved func(*upload.Ticket)
	// OnTagged sees every tagged frame right after its hand-off to the upload
	// sink. It runs on the capture delivery goroutine and must not block.
	OnTagged func(tagging.TaggedFrame)
	Logger   *slog.Logger
}

// Counters aggregates component counters for status display.
type Counters struct {
	FramesCaptured uint64           `json:"frames_captured"`
	FramesDropped  uint64           `json:"frames_dropped"`
	FixesReceived  uint64           `json:"fixes_received"`
	Tagging        tagging.Counters `json:"tagging"`
	Uploads        upload.Counters  `json:"uploads"`
	EventsDropped  uint64           `json:"events_dropped"`
}

// Status is a point-in-time view of the session.
type Status struct {
	SessionID          string    `json:"session_id,omitempty"`
	State              State     `json:"state"`
	Device             string    `json:"device"`
	Mode               string    `json:"mode"`
	StalenessThreshold string    `json:"staleness_threshold"`
	QueueCapacity      int       `json:"queue_capacity"`
	CaptureDelivering  bool      `json:"capture_delivering"`
	LocationRunning    bool      `json:"location_running"`
	StartedAt          time.Time `json:"started_at,omitzero"`
	StoppedAt          time.Time `json:"stopped_at,omitzero"`
	Counters           Counters  `json:"counters"`
}

// Session coordinates one pipeline at a time. Components from the most recent
// run are retained after Stop so counters stay readable until the next Start.
type Session struct {
	deps   Dependencies
	logger *slog.Logger
	events *eventBus

	mu        sync.Mutex
	cfg       Config
	state     State
	id        string
	startedAt time.Time
	stoppedAt time.Time
	tracker   *location.Tracker
	source    *capture.Source
	coord     *tagging.Coordinator
	sink      *upload.Sink
}

// New validates cfg and returns an idle session.
func New(deps Dependencies, cfg Config) (*Session, error) {
	if deps.Device == nil {
		return nil, services.Wrap(services.ErrConfiguration, "session", "new", "no capture device", nil)
	}
	if deps.Catalog == nil {
		deps.Catalog = capture.DefaultCatalog()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Session{
		deps:   deps,
		logger: logging.NewComponentLogger(deps.Logger, "session"),
		events: newEventBus(),
		cfg:    normalizeConfig(cfg),
		state:  StateIdle,
	}, nil
}

func normalizeConfig(cfg Config) Config {
	if cfg.StalenessThreshold <= 0 {
		cfg.StalenessThreshold = tagging.DefaultStalenessThreshold
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = upload.DefaultCapacity
	}
	return cfg
}

// Configure replaces the session configuration. On a running session the
// staleness threshold applies immediately; device and capacity changes apply
// at the next Start.
func (s *Session) Configure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg = normalizeConfig(cfg)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	if s.state == StateRunning && s.coord != nil {
		s.coord.SetStalenessThreshold(cfg.StalenessThreshold)
	}
	return nil
}

// Config returns the active configuration.
func (s *Session) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Events returns the session's event stream. Events are dropped, and counted,
// when the reader falls behind.
func (s *Session) Events() <-chan Event {
	return s.events.ch
}

// ID returns the identifier of the current or most recent run.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start brings up location, uploads, tagging, and capture for a new run.
//
// A location failure does not stop the run: frames are tagged with the no-fix
// marker and an event reports the cause. A capture failure tears down what was
// started and is returned.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateRunning:
		return ErrRunning
	case StateStopping:
		return ErrStopping
	}

	cfg := s.cfg
	id := uuid.NewString()
	runLogger := s.deps.Logger
	if runLogger == nil {
		runLogger = logging.NewNop()
	}
	runLogger = runLogger.With(logging.String(logging.FieldSessionID, id))
	logger := logging.NewComponentLogger(runLogger, "session")
	runCtx := services.WithSessionID(ctx, id)

	tracker := location.NewTracker(s.deps.Provider, runLogger, func(err error) {
		s.events.publish(Event{Type: EventLocationLost, SessionID: id, Error: err.Error(),
			Message: "location stream ended; frames will carry the last known fix"})
	})
	if err := tracker.Start(runCtx); err != nil {
		evtType := EventLocationUnavailable
		if errors.Is(err, location.ErrPermissionDenied) {
			evtType = EventLocationDenied
		}
		s.events.publish(Event{Type: evtType, SessionID: id, Error: err.Error(),
			Message: "continuing without location; frames are tagged with the no-fix marker"})
	}

	transport, err := s.newTransport()
	if err != nil {
		tracker.Stop()
		return fmt.Errorf("start session: %w", err)
	}
	opts := s.deps.Upload
	opts.Capacity = cfg.QueueCapacity
	opts.Logger = runLogger
	opts.OnResolved = s.ticketResolved(id)
	sink := upload.NewSink(transport, opts)

	coord := tagging.NewCoordinator(tracker, sinkSubmitter{sink: sink, onTagged: s.deps.OnTagged}, id, runLogger)
	coord.SetStalenessThreshold(cfg.StalenessThreshold)

	source := capture.NewSource(s.deps.Device, runLogger, capture.Listener{
		Interrupted: func(err error) {
			s.events.publish(Event{Type: EventCaptureInterrupted, SessionID: id, Error: err.Error(),
				Message: "capture halted; restart required"})
		},
		FrameDropped: func(err error) {
			s.events.publish(Event{Type: EventFrameDropped, SessionID: id, Error: err.Error()})
		},
	})
	if err := source.Start(runCtx, cfg.Device, coord.HandleFrame); err != nil {
		_ = sink.Stop(context.WithoutCancel(ctx), false)
		tracker.Stop()
		return fmt.Errorf("start session: %w", err)
	}

	s.id = id
	s.tracker = tracker
	s.sink = sink
	s.coord = coord
	s.source = source
	s.state = StateRunning
	s.startedAt = time.Now()
	s.stoppedAt = time.Time{}

	logger.Info("session started",
		logging.String("device", cfg.Device.Device),
		logging.String("mode", cfg.Device.Mode.Name),
		logging.Duration("staleness_threshold", cfg.StalenessThreshold),
		logging.Int("queue_capacity", cfg.QueueCapacity),
		logging.Bool("location", tracker.Running()),
	)
	s.events.publish(Event{Type: EventStateChanged, SessionID: id, State: StateRunning})
	return nil
}

// Stop ends the run: capture stops first and in-flight tagging finishes, then
// the upload queue is drained (drainUploads) or discarded, then location
// stops. ctx bounds only the upload phase; when it expires, remaining uploads
// are abandoned and the error wraps upload.ErrAbandoned. Stopping an idle
// session is a no-op.
//
// Stop must not be called from an event consumer that the capture path waits
// on; it waits for the delivery goroutine.
func (s *Session) Stop(ctx context.Context, drainUploads bool) error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStopping
	id := s.id
	source, sink, tracker := s.source, s.sink, s.tracker
	s.mu.Unlock()

	s.events.publish(Event{Type: EventStateChanged, SessionID: id, State: StateStopping})
	logger := s.logger.With(logging.String(logging.FieldSessionID, id))

	source.Stop()
	sinkErr := sink.Stop(ctx, drainUploads)
	tracker.Stop()

	s.mu.Lock()
	s.state = StateIdle
	s.stoppedAt = time.Now()
	s.mu.Unlock()

	counters := s.Counters()
	logger.Info("session stopped",
		logging.Bool("drained", drainUploads),
		logging.Uint64("frames_captured", counters.FramesCaptured),
		logging.Uint64("frames_tagged", counters.Tagging.FramesTagged),
		logging.Uint64("uploads_sent", counters.Uploads.Sent),
		logging.Uint64("uploads_failed", counters.Uploads.Failed),
		logging.Uint64("uploads_discarded", counters.Uploads.Discarded),
		logging.Uint64("uploads_abandoned", counters.Uploads.Abandoned),
	)
	s.events.publish(Event{Type: EventStateChanged, SessionID: id, State: StateIdle})
	if sinkErr != nil {
		return fmt.Errorf("stop session: %w", sinkErr)
	}
	return nil
}

// RestartCapture resumes delivery after a capture interruption. It is a no-op
// when frames are still flowing.
func (s *Session) RestartCapture(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning {
		return ErrNotRunning
	}
	if s.source.Delivering() {
		return nil
	}
	if err := s.source.Start(services.WithSessionID(ctx, s.id), s.cfg.Device, s.coord.HandleFrame); err != nil {
		return fmt.Errorf("restart capture: %w", err)
	}
	s.events.publish(Event{Type: EventCaptureRestarted, SessionID: s.id})
	return nil
}

// SelectMode applies a catalog mode to the device configuration. A running
// session restarts capture with the new mode; sequence numbers continue.
func (s *Session) SelectMode(ctx context.Context, name string) (capture.Mode, error) {
	mode, ok := s.deps.Catalog.Lookup(name)
	if !ok {
		return capture.Mode{}, fmt.Errorf("%w: %q", ErrUnknownMode, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateStopping {
		return capture.Mode{}, ErrStopping
	}
	s.cfg.Device.Mode = mode
	if s.state == StateRunning {
		s.source.Stop()
		if err := s.source.Start(services.WithSessionID(ctx, s.id), s.cfg.Device, s.coord.HandleFrame); err != nil {
			s.events.publish(Event{Type: EventCaptureInterrupted, SessionID: s.id, Error: err.Error(),
				Message: "capture did not restart after mode change"})
			return mode, fmt.Errorf("apply mode %s: %w", mode.Name, err)
		}
	}
	s.events.publish(Event{Type: EventModeChanged, SessionID: s.id, Message: mode.Name})
	return mode, nil
}

// Counters returns counters for the current or most recent run.
func (s *Session) Counters() Counters {
	s.mu.Lock()
	source, tracker, coord, sink := s.source, s.tracker, s.coord, s.sink
	s.mu.Unlock()

	counters := Counters{EventsDropped: s.events.dropped.Load()}
	if source != nil {
		counters.FramesCaptured = source.FramesCaptured()
		counters.FramesDropped = source.FramesDropped()
	}
	if tracker != nil {
		counters.FixesReceived = tracker.FixesReceived()
	}
	if coord != nil {
		counters.Tagging = coord.Counters()
	}
	if sink != nil {
		counters.Uploads = sink.Counters()
	}
	return counters
}

// Status returns a snapshot for display.
func (s *Session) Status() Status {
	s.mu.Lock()
	st := Status{
		SessionID:          s.id,
		State:              s.state,
		Device:             s.cfg.Device.Device,
		Mode:               s.cfg.Device.Mode.Name,
		StalenessThreshold: s.cfg.StalenessThreshold.String(),
		QueueCapacity:      s.cfg.QueueCapacity,
		StartedAt:          s.startedAt,
		StoppedAt:          s.stoppedAt,
	}
	if s.state == StateRunning {
		st.CaptureDelivering = s.source.Delivering()
		st.LocationRunning = s.tracker.Running()
	}
	s.mu.Unlock()
	st.Counters = s.Counters()
	return st
}

// Catalog exposes the mode catalog used by SelectMode.
func (s *Session) Catalog() *capture.Catalog {
	return s.deps.Catalog
}

func (s *Session) newTransport() (upload.Transport, error) {
	if s.deps.Transport == nil {
		return &upload.DiscardTransport{}, nil
	}
	transport, err := s.deps.Transport()
	if err != nil {
		return nil, fmt.Errorf("build upload transport: %w", err)
	}
	return transport, nil
}

func (s *Session) ticketResolved(id string) func(*upload.Ticket) {
	return func(t *upload.Ticket) {
		if s.deps.OnResolved != nil {
			s.deps.OnResolved(t)
		}
		if t.Status() == upload.StatusFailed && errors.Is(t.Err(), upload.ErrUploadFailed) {
			s.events.publish(Event{
				Type:      EventUploadFailed,
				SessionID: id,
				FrameSeq:  t.Seq,
				TicketID:  t.ID,
				Error:     t.Err().Error(),
			})
		}
	}
}

// sinkSubmitter adapts an upload sink to the coordinator's Sink.
type sinkSubmitter struct {
	sink     *upload.Sink
	onTagged func(tagging.TaggedFrame)
}

func (a sinkSubmitter) Submit(tf tagging.TaggedFrame) error {
	_, err := a.sink.Submit(tf)
	if a.onTagged != nil {
		a.onTagged(tf)
	}
	return err
}
