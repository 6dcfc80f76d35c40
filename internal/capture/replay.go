package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// ReplayDevice plays back a directory of JPEG/PNG files in name order at the
// mode's rate. Files that fail to decode are reported as corrupt frames. When
// the directory is exhausted the device reports an interruption unless Loop
// is set.
type ReplayDevice struct {
	Dir  string
	Loop bool

	now    func() time.Time
	files  []string
	next   int
	ticker *time.Ticker
}

var replayExtensions = []string{".jpg", ".jpeg", ".png"}

func (d *ReplayDevice) Open(_ context.Context, cfg Config) error {
	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
		}
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	d.files = d.files[:0]
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if slices.Contains(replayExtensions, strings.ToLower(filepath.Ext(entry.Name()))) {
			d.files = append(d.files, filepath.Join(d.Dir, entry.Name()))
		}
	}
	if len(d.files) == 0 {
		return fmt.Errorf("%w: no images in %s", ErrUnavailable, d.Dir)
	}
	slices.Sort(d.files)
	d.next = 0
	if d.now == nil {
		d.now = time.Now
	}
	d.ticker = time.NewTicker(time.Second / time.Duration(cfg.Mode.FPS))
	return nil
}

func (d *ReplayDevice) ReadFrame(ctx context.Context) (RawFrame, error) {
	if d.ticker == nil {
		return RawFrame{}, ErrUnavailable
	}
	if err := ctx.Err(); err != nil {
		return RawFrame{}, err
	}
	if d.next >= len(d.files) {
		if !d.Loop {
			return RawFrame{}, fmt.Errorf("%w: replay exhausted: %w", ErrCaptureInterrupted, io.EOF)
		}
		d.next = 0
	}
	select {
	case <-ctx.Done():
		return RawFrame{}, ctx.Err()
	case <-d.ticker.C:
	}
	path := d.files[d.next]
	d.next++

	data, err := os.ReadFile(path)
	if err != nil {
		return RawFrame{}, fmt.Errorf("read %s: %w", path, err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return RawFrame{}, fmt.Errorf("%w: %s: %w", ErrCorruptFrame, filepath.Base(path), err)
	}
	return RawFrame{Timestamp: d.now(), Width: cfg.Width, Height: cfg.Height, Format: format, Data: data}, nil
}

func (d *ReplayDevice) Close() error {
	if d.ticker != nil {
		d.ticker.Stop()
		d.ticker = nil
	}
	return nil
}
