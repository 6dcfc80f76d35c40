// Package main hosts the fieldcam CLI and daemon entrypoint.
//
// The Cobra command tree translates terminal invocations into IPC calls
// against the daemon: starting and stopping capture sessions, picking capture
// modes, inspecting the upload ledger, and tailing logs. The hidden `daemon`
// command runs the daemon itself. Build with `-tags opencv` to include the
// V4L2/OpenCV camera backend.
package main
