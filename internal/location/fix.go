package location

import (
	"errors"
	"time"
)

var (
	// ErrPermissionDenied reports that the location source refused access.
	ErrPermissionDenied = errors.New("location permission denied")
	// ErrUnavailable reports that the location source could not be opened.
	ErrUnavailable = errors.New("location unavailable")
)

// Fix is an immutable position sample.
type Fix struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	AccuracyM float64   `json:"accuracy_m"`
	Timestamp time.Time `json:"timestamp"`
}

// Age returns how old the fix is relative to now. It is negative when the fix
// timestamp is ahead of now.
func (f Fix) Age(now time.Time) time.Duration {
	return now.Sub(f.Timestamp)
}
