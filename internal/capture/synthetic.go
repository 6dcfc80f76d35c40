package capture

import (
	"context"
	"time"
)

// SyntheticDevice generates a moving gray test pattern at the mode's rate. It
// exercises the full pipeline on machines without a camera.
type SyntheticDevice struct {
	now    func() time.Time
	mode   Mode
	ticker *time.Ticker
	frame  int
}

func (d *SyntheticDevice) Open(_ context.Context, cfg Config) error {
	d.mode = cfg.Mode
	d.frame = 0
	if d.now == nil {
		d.now = time.Now
	}
	d.ticker = time.NewTicker(time.Second / time.Duration(cfg.Mode.FPS))
	return nil
}

func (d *SyntheticDevice) ReadFrame(ctx context.Context) (RawFrame, error) {
	if d.ticker == nil {
		return RawFrame{}, ErrUnavailable
	}
	if err := ctx.Err(); err != nil {
		return RawFrame{}, err
	}
	select {
	case <-ctx.Done():
		return RawFrame{}, ctx.Err()
	case <-d.ticker.C:
	}
	w, h := d.mode.Width, d.mode.Height
	data := make([]byte, w*h)
	bar := d.frame % w
	for y := 0; y < h; y++ {
		row := data[y*w : (y+1)*w]
		for x := range row {
			row[x] = byte((x + y) & 0xff)
		}
		row[bar] = 0xff
	}
	d.frame++
	return RawFrame{Timestamp: d.now(), Width: w, Height: h, Format: "gray8", Data: data}, nil
}

func (d *SyntheticDevice) Close() error {
	if d.ticker != nil {
		d.ticker.Stop()
		d.ticker = nil
	}
	return nil
}
