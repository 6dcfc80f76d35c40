package upload

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackoffDelayDoublesAndCaps(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 500 * time.Millisecond},
		{1, 500 * time.Millisecond},
		{2, time.Second},
		{3, 2 * time.Second},
		{5, 8 * time.Second},
		{6, 10 * time.Second},
		{60, 10 * time.Second},
	}
	for _, tc := range tests {
		if got := backoffDelay(tc.attempt, 500*time.Millisecond, 10*time.Second); got != tc.want {
			t.Fatalf("attempt %d: got %s want %s", tc.attempt, got, tc.want)
		}
	}
}

func TestSleepOrHaltWakesOnHalt(t *testing.T) {
	halt := make(chan struct{})
	close(halt)
	if err := sleepOrHalt(context.Background(), halt, time.Hour); !errors.Is(err, errHalted) {
		t.Fatalf("expected errHalted, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepOrHalt(ctx, make(chan struct{}), time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
