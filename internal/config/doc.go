// Package config loads, normalizes, and validates fieldcam configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// FIELDCAM_UPLOAD_TOKEN, optionally sourced from a .env file. The Config type
// centralizes every knob the daemon and CLI need: capture device and mode,
// location provider, tagging staleness, upload queue and retry policy.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
