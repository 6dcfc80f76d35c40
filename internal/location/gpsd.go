package location

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/stratoberry/go-gpsd"
)

// watchExitTimeout bounds how long Run waits for the gpsd reader goroutine
// after the session socket is closed.
const watchExitTimeout = 2 * time.Second

// GPSDProvider subscribes to a gpsd daemon and converts TPV reports into fixes.
type GPSDProvider struct {
	Addr string

	now func() time.Time

	mu      sync.Mutex
	session *gpsd.Session
}

func (p *GPSDProvider) Name() string { return "gpsd" }

func (p *GPSDProvider) Open(context.Context) error {
	addr := p.Addr
	if addr == "" {
		addr = gpsd.DefaultAddress
	}
	session, err := gpsd.Dial(addr)
	if err != nil {
		if errors.Is(err, syscall.EACCES) {
			return fmt.Errorf("%w: dial gpsd %s: %w", ErrPermissionDenied, addr, err)
		}
		return fmt.Errorf("%w: dial gpsd %s: %w", ErrUnavailable, addr, err)
	}
	p.mu.Lock()
	p.session = session
	p.mu.Unlock()
	return nil
}

// Run watches the session until ctx ends or gpsd drops the connection. The
// gpsd client has no context support, so cancellation closes the socket to
// unblock its reader.
func (p *GPSDProvider) Run(ctx context.Context, emit func(Fix)) error {
	p.mu.Lock()
	session := p.session
	p.mu.Unlock()
	if session == nil {
		return fmt.Errorf("gpsd run: %w: not connected", ErrUnavailable)
	}
	now := p.now
	if now == nil {
		now = time.Now
	}

	session.AddFilter("TPV", func(r interface{}) {
		report, ok := r.(*gpsd.TPVReport)
		if !ok || report == nil {
			return
		}
		if fix, ok := tpvFix(report, now()); ok {
			emit(fix)
		}
	})
	done := session.Watch()

	select {
	case <-done:
		if ctx.Err() != nil {
			return nil
		}
		return errors.New("read gpsd stream: connection closed")
	case <-ctx.Done():
		_ = session.Close()
		select {
		case <-done:
		case <-time.After(watchExitTimeout):
		}
		return nil
	}
}

func (p *GPSDProvider) Close() error {
	p.mu.Lock()
	session := p.session
	p.session = nil
	p.mu.Unlock()
	if session == nil {
		return nil
	}
	if err := session.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// tpvFix converts a TPV report with at least a 2D fix.
func tpvFix(r *gpsd.TPVReport, received time.Time) (Fix, bool) {
	if r.Mode < gpsd.Mode2D {
		return Fix{}, false
	}
	return Fix{
		Latitude:  r.Lat,
		Longitude: r.Lon,
		AccuracyM: max(r.Epx, r.Epy),
		Timestamp: received,
	}, true
}
