package location

import (
	"context"
	"time"
)

// StaticProvider reports a fixed position, restamped on every tick. It stands
// in for a receiver on bench rigs and fixed installations.
type StaticProvider struct {
	Latitude  float64
	Longitude float64
	AccuracyM float64
	Interval  time.Duration

	now func() time.Time
}

func (p *StaticProvider) Name() string { return "static" }

func (p *StaticProvider) Open(context.Context) error { return nil }

func (p *StaticProvider) Run(ctx context.Context, emit func(Fix)) error {
	interval := p.Interval
	if interval <= 0 {
		interval = time.Second
	}
	now := p.now
	if now == nil {
		now = time.Now
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		emit(Fix{Latitude: p.Latitude, Longitude: p.Longitude, AccuracyM: p.AccuracyM, Timestamp: now()})
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (p *StaticProvider) Close() error { return nil }
