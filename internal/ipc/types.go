package ipc

import "fieldcam/internal/api"

// StartRequest starts a capture session, bringing the daemon up first if
// needed.
type StartRequest struct{}

// StartResponse indicates whether a session is running.
type StartResponse struct {
	Started   bool   `json:"started"`
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

// StopRequest ends the capture session. Queued uploads are drained unless
// Discard is set.
type StopRequest struct {
	Discard bool `json:"discard"`
}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool              `json:"stopped"`
	Message string            `json:"message,omitempty"`
	Session api.SessionStatus `json:"session"`
}

// ShutdownRequest asks the daemon process to exit.
type ShutdownRequest struct{}

// ShutdownResponse acknowledges a shutdown request.
type ShutdownResponse struct {
	Acknowledged bool `json:"acknowledged"`
	PID          int  `json:"pid"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse carries daemon and session status.
type StatusResponse struct {
	api.DaemonStatus
}

// ModesRequest lists capture modes.
type ModesRequest struct{}

// ModesResponse contains the mode catalog with the active mode flagged.
type ModesResponse struct {
	Modes []api.Mode `json:"modes"`
}

// SelectModeRequest picks a capture mode by name.
type SelectModeRequest struct {
	Name string `json:"name"`
}

// SelectModeResponse reports the applied mode.
type SelectModeResponse struct {
	Mode api.Mode `json:"mode"`
}

// ConfigureRequest updates tagging and upload settings. Zero values keep the
// current setting.
type ConfigureRequest struct {
	StalenessThresholdMS int `json:"staleness_threshold_ms"`
	QueueCapacity        int `json:"queue_capacity"`
}

// ConfigureResponse reports the settings now in effect.
type ConfigureResponse struct {
	StalenessThresholdMS int64 `json:"staleness_threshold_ms"`
	QueueCapacity        int   `json:"queue_capacity"`
}

// UploadsRequest filters ledger listing.
type UploadsRequest struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
	Limit     int    `json:"limit"`
}

// UploadsResponse contains ledger records, newest first.
type UploadsResponse struct {
	Uploads []api.UploadRecord `json:"uploads"`
}

// UploadsClearRequest removes ledger records. An empty status clears all.
type UploadsClearRequest struct {
	Status string `json:"status"`
}

// UploadsClearResponse reports the number of removed records.
type UploadsClearResponse struct {
	Removed int64 `json:"removed"`
}

// LogTailRequest fetches log events after Since.
type LogTailRequest struct {
	Since      uint64 `json:"since"`
	Limit      int    `json:"limit"`
	Follow     bool   `json:"follow"`
	WaitMillis int    `json:"wait_millis"`
	Component  string `json:"component"`
}

// LogTailResponse contains log events and the cursor for the next call.
type LogTailResponse struct {
	Events []api.LogEvent `json:"events"`
	Next   uint64         `json:"next"`
}

// TestNotificationRequest triggers a test notification.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification result.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
