package tagging

import (
	"time"

	"fieldcam/internal/capture"
	"fieldcam/internal/location"
)

// TaggedFrame is a frame paired with the fix that was current when it was
// tagged. Fix is nil when no fix had ever been received.
type TaggedFrame struct {
	Frame     capture.Frame
	Fix       *location.Fix
	FixAge    time.Duration
	Stale     bool
	SessionID string
	TaggedAt  time.Time
}

// HasFix reports whether a fix was attached.
func (t TaggedFrame) HasFix() bool {
	return t.Fix != nil
}
