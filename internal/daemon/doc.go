// Package daemon coordinates the long-running fieldcam process.
//
// It wires configuration, the capture session, the upload ledger, ntfy
// notifications, camera hotplug monitoring, and the HTTP API into a single
// lifecycle with flock-based locking to prevent multiple instances. Session
// events are fanned out to API subscribers and notifications, and drive the
// automatic capture restart after an interruption.
//
// Keep orchestration logic here: capture, tagging, and upload behaviour live
// in their own packages while the daemon focuses on startup, shutdown, and
// high level coordination.
package daemon
