package upload

import (
	"context"
	"errors"
	"time"
)

var errHalted = errors.New("sink halted")

// backoffDelay returns the wait before retry number attempt (1-based):
// initial * 2^(attempt-1), capped at ceiling.
func backoffDelay(attempt int, initial, ceiling time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= ceiling || delay <= 0 {
			return ceiling
		}
	}
	if delay > ceiling {
		return ceiling
	}
	return delay
}

func sleepOrHalt(ctx context.Context, halt <-chan struct{}, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-halt:
		return errHalted
	case <-ctx.Done():
		return ctx.Err()
	}
}
