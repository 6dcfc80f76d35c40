// Package ipc exposes the daemon over JSON-RPC on a Unix domain socket and
// ships the matching client used by the CLI.
//
// Request and response types live in types.go and reuse the api DTOs so the
// socket and the HTTP surface describe sessions and uploads the same way.
package ipc
