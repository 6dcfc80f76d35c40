package upload

import (
	"errors"
	"fmt"

	"fieldcam/internal/services"
)

var (
	// ErrQueueFull is returned by Submit when the sink holds capacity unresolved
	// tickets. It carries services.ErrBackpressure.
	ErrQueueFull = fmt.Errorf("upload queue full: %w", services.ErrBackpressure)
	// ErrUploadFailed marks a ticket whose retries were exhausted or whose
	// failure was permanent.
	ErrUploadFailed = errors.New("upload failed")
	// ErrDiscarded marks a queued ticket dropped by Stop without draining.
	ErrDiscarded = errors.New("upload discarded")
	// ErrAbandoned marks tickets cut off when a stop deadline expired.
	ErrAbandoned = errors.New("upload abandoned")
	// ErrSinkClosed is returned by Submit after Stop.
	ErrSinkClosed = errors.New("upload sink closed")
)
