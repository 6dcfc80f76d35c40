// Package services holds the cross-cutting error markers and context helpers
// shared by the capture, tagging, and upload pipeline.
//
// Errors produced by pipeline components are wrapped with one of the exported
// markers so callers can decide whether a failure is worth retrying without
// string matching. The context helpers carry session, frame, and ticket
// identifiers so loggers pick them up automatically.
package services
