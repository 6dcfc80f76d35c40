// Package api defines wire-format types and converters shared by the HTTP API,
// the IPC server, and the CLI. It translates session, ledger, and log models
// into transport-friendly DTOs so consumers never import internal types.
//
// # Key Types
//
// DaemonStatus: lock and socket paths, configured backends, the session
// snapshot, and ledger counts.
//
// SessionStatus/Counters: the session state and a flattened view of capture,
// tagging, and upload counters.
//
// UploadRecord: one resolved upload ticket from the ledger.
//
// Event: a session status event as streamed on /api/events.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds and
// are omitted when unset.
package api
