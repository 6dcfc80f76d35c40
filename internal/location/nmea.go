package location

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	nmea "github.com/adrianmo/go-nmea"

	"fieldcam/internal/preflight"
)

// nominalUERE approximates user equivalent range error (metres) used to turn
// HDOP into an accuracy radius.
const nominalUERE = 5.0

// NMEAProvider reads NMEA 0183 sentences from a serial device node. GGA and RMC
// sentences with a valid fix produce Fix values stamped with the local receive
// time so they compare directly against frame capture timestamps.
type NMEAProvider struct {
	Device string

	// open is swapped in tests to feed sentences from memory.
	open func(path string) (io.ReadCloser, error)
	now  func() time.Time

	mu     sync.Mutex
	reader io.ReadCloser
}

func (p *NMEAProvider) Name() string { return "nmea" }

func (p *NMEAProvider) Open(context.Context) error {
	opener := p.open
	if opener == nil {
		if err := preflight.CheckDevice(p.Device, false); err != nil {
			return classifyOpenError(err)
		}
		opener = func(path string) (io.ReadCloser, error) { return os.Open(path) }
	}
	r, err := opener(p.Device)
	if err != nil {
		return classifyOpenError(err)
	}
	p.mu.Lock()
	p.reader = r
	p.mu.Unlock()
	return nil
}

func (p *NMEAProvider) Run(ctx context.Context, emit func(Fix)) error {
	p.mu.Lock()
	r := p.reader
	p.mu.Unlock()
	if r == nil {
		return fmt.Errorf("nmea run: %w: device not open", ErrUnavailable)
	}
	now := p.now
	if now == nil {
		now = time.Now
	}

	// Closing the reader is the only way to interrupt a blocked serial read.
	stop := context.AfterFunc(ctx, func() { _ = r.Close() })
	defer stop()

	var parser nmeaParser
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fix, ok, err := parser.parse(scanner.Text(), now())
		if err != nil || !ok {
			continue
		}
		emit(fix)
	}
	if ctx.Err() != nil {
		return nil
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read nmea stream: %w", err)
	}
	return fmt.Errorf("read nmea stream: %w", io.ErrUnexpectedEOF)
}

func (p *NMEAProvider) Close() error {
	p.mu.Lock()
	r := p.reader
	p.reader = nil
	p.mu.Unlock()
	if r == nil {
		return nil
	}
	if err := r.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}

func classifyOpenError(err error) error {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	default:
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
}

// nmeaParser carries the most recent HDOP-derived accuracy forward so RMC
// sentences, which lack precision data, still report a radius.
type nmeaParser struct {
	accuracyM float64
}

// parse decodes one sentence. Only GGA with a fix and valid RMC produce a Fix;
// other well-formed sentences are skipped without error.
func (p *nmeaParser) parse(line string, received time.Time) (Fix, bool, error) {
	sentence, err := nmea.Parse(strings.TrimSpace(line))
	if err != nil {
		return Fix{}, false, err
	}
	switch m := sentence.(type) {
	case nmea.GGA:
		if m.FixQuality == nmea.Invalid {
			return Fix{}, false, nil
		}
		if m.HDOP > 0 {
			p.accuracyM = m.HDOP * nominalUERE
		}
		return Fix{Latitude: m.Latitude, Longitude: m.Longitude, AccuracyM: p.accuracyM, Timestamp: received}, true, nil
	case nmea.RMC:
		if m.Validity != nmea.ValidRMC {
			return Fix{}, false, nil
		}
		return Fix{Latitude: m.Latitude, Longitude: m.Longitude, AccuracyM: p.accuracyM, Timestamp: received}, true, nil
	default:
		return Fix{}, false, nil
	}
}
