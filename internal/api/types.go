package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Counters flattens session component counters.
type Counters struct {
	FramesCaptured   uint64 `json:"framesCaptured"`
	FramesDropped    uint64 `json:"framesDropped"`
	FixesReceived    uint64 `json:"fixesReceived"`
	FramesTagged     uint64 `json:"framesTagged"`
	StaleTags        uint64 `json:"staleTags"`
	NoFixTags        uint64 `json:"noFixTags"`
	QueueFullDrops   uint64 `json:"queueFullDrops"`
	SubmitErrors     uint64 `json:"submitErrors"`
	InternalDrops    uint64 `json:"internalDrops"`
	UploadsSubmitted uint64 `json:"uploadsSubmitted"`
	UploadsSent      uint64 `json:"uploadsSent"`
	UploadsFailed    uint64 `json:"uploadsFailed"`
	UploadsDiscarded uint64 `json:"uploadsDiscarded"`
	UploadsAbandoned uint64 `json:"uploadsAbandoned"`
	UploadRetries    uint64 `json:"uploadRetries"`
	QueueDepth       int    `json:"queueDepth"`
	EventsDropped    uint64 `json:"eventsDropped"`
}

// SessionStatus describes the capture session.
type SessionStatus struct {
	SessionID            string   `json:"sessionId,omitempty"`
	State                string   `json:"state"`
	Device               string   `json:"device"`
	Mode                 string   `json:"mode"`
	StalenessThresholdMS int64    `json:"stalenessThresholdMs"`
	QueueCapacity        int      `json:"queueCapacity"`
	CaptureDelivering    bool     `json:"captureDelivering"`
	LocationRunning      bool     `json:"locationRunning"`
	StartedAt            string   `json:"startedAt,omitempty"`
	StoppedAt            string   `json:"stoppedAt,omitempty"`
	Counters             Counters `json:"counters"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running          bool           `json:"running"`
	PID              int            `json:"pid"`
	LedgerPath       string         `json:"ledgerPath"`
	LockFilePath     string         `json:"lockFilePath"`
	SocketPath       string         `json:"socketPath,omitempty"`
	Backend          string         `json:"backend"`
	LocationProvider string         `json:"locationProvider"`
	Transport        string         `json:"transport"`
	Hotplug          bool           `json:"hotplug"`
	Session          SessionStatus  `json:"session"`
	Uploads          map[string]int `json:"uploads,omitempty"`
}

// UploadRecord is one resolved upload from the ledger.
type UploadRecord struct {
	TicketID    string `json:"ticketId"`
	SessionID   string `json:"sessionId,omitempty"`
	Seq         uint64 `json:"frameSeq"`
	Status      string `json:"status"`
	Attempts    int    `json:"attempts"`
	Error       string `json:"error,omitempty"`
	Stale       bool   `json:"stale"`
	HasFix      bool   `json:"hasFix"`
	CapturedAt  string `json:"capturedAt,omitempty"`
	SubmittedAt string `json:"submittedAt,omitempty"`
	ResolvedAt  string `json:"resolvedAt,omitempty"`
}

// UploadListResponse wraps ledger records.
type UploadListResponse struct {
	Uploads []UploadRecord `json:"uploads"`
}

// Mode is a capture mode as offered by the picker.
type Mode struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	FPS         int    `json:"fps"`
	Format      string `json:"format"`
	Active      bool   `json:"active"`
}

// Event is a session status event.
type Event struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	State     string `json:"state,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	FrameSeq  uint64 `json:"frameSeq,omitempty"`
	TicketID  string `json:"ticketId,omitempty"`
	Time      string `json:"time"`
}

// EventFrameTagged marks a per-frame event emitted after tagging.
const EventFrameTagged = "frame_tagged"

// LogEvent is a structured log line.
type LogEvent struct {
	Sequence  uint64            `json:"seq"`
	Timestamp string            `json:"ts"`
	Level     string            `json:"level"`
	Message   string            `json:"msg"`
	Component string            `json:"component,omitempty"`
	SessionID string            `json:"sessionId,omitempty"`
	FrameSeq  uint64            `json:"frameSeq,omitempty"`
	TicketID  string            `json:"ticketId,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// LogStreamResponse wraps log events with the cursor for the next fetch.
type LogStreamResponse struct {
	Events []LogEvent `json:"events"`
	Next   uint64     `json:"next"`
}

// StreamMessage is one frame on the /api/events websocket: either a session
// event or a periodic session snapshot.
type StreamMessage struct {
	Kind    string         `json:"kind"`
	Event   *Event         `json:"event,omitempty"`
	Session *SessionStatus `json:"session,omitempty"`
}

const (
	StreamKindEvent  = "event"
	StreamKindStatus = "status"
)
