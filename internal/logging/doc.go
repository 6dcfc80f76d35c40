// Package logging assembles structured slog loggers and formatting helpers used
// across fieldcam components.
//
// It owns the console/JSON handlers, centralizes level and output plumbing, and
// exposes context-aware helpers so pipeline code can tag log lines with session
// IDs, frame sequence numbers, and upload ticket IDs. A bounded StreamHub keeps
// recent log events in memory for the daemon API, and RateSampler keeps
// per-frame warnings from flooding the output at capture rate.
package logging
