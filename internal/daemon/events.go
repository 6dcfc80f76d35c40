package daemon

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pilebones/go-udev/netlink"

	"fieldcam/internal/api"
	"fieldcam/internal/logging"
	"fieldcam/internal/notifications"
	"fieldcam/internal/session"
)

const subscriberBuffer = 32

// eventFanout copies session events to API subscribers. Slow subscribers miss
// events rather than stalling the daemon.
type eventFanout struct {
	mu   sync.Mutex
	subs map[chan api.Event]struct{}
}

func newEventFanout() *eventFanout {
	return &eventFanout{subs: make(map[chan api.Event]struct{})}
}

func (f *eventFanout) subscribe() (<-chan api.Event, func()) {
	ch := make(chan api.Event, subscriberBuffer)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, ch)
			f.mu.Unlock()
		})
	}
}

func (f *eventFanout) publish(evt api.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// consumeEvents is the only reader of the session event stream.
func (d *Daemon) consumeEvents(ctx context.Context) {
	defer d.wg.Done()
	events := d.session.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-events:
			d.handleSessionEvent(ctx, evt)
		}
	}
}

func (d *Daemon) handleSessionEvent(ctx context.Context, evt session.Event) {
	d.events.publish(api.FromEvent(evt))

	if kind, payload, ok := d.notificationFor(evt); ok {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
			defer cancel()
			if err := d.notifier.Publish(notifyCtx, kind, payload); err != nil {
				d.logger.Debug("notification failed", logging.String("event", string(kind)), logging.Error(err))
			}
		}()
	}

	if evt.Type == session.EventCaptureInterrupted && d.cfg.Capture.AutoRestart {
		d.scheduleRestart(ctx, d.cfg.ReconnectDelay())
	}
}

func (d *Daemon) notificationFor(evt session.Event) (notifications.Event, notifications.Payload, bool) {
	payload := notifications.Payload{"session": evt.SessionID}
	if evt.Error != "" {
		payload["error"] = evt.Error
	}
	switch evt.Type {
	case session.EventStateChanged:
		switch evt.State {
		case session.StateRunning:
			cfg := d.session.Config()
			payload["device"] = cfg.Device.Device
			payload["mode"] = cfg.Device.Mode.Name
			return notifications.EventSessionStarted, payload, true
		case session.StateIdle:
			counters := d.session.Counters()
			payload["captured"] = counters.FramesCaptured
			payload["sent"] = counters.Uploads.Sent
			return notifications.EventSessionStopped, payload, true
		}
	case session.EventCaptureInterrupted:
		payload["device"] = d.cfg.Capture.Device
		return notifications.EventCaptureInterrupted, payload, true
	case session.EventCaptureRestarted:
		payload["device"] = d.cfg.Capture.Device
		return notifications.EventCaptureRestarted, payload, true
	case session.EventLocationDenied:
		return notifications.EventLocationDenied, payload, true
	case session.EventLocationUnavailable:
		return notifications.EventLocationUnavailable, payload, true
	case session.EventLocationLost:
		return notifications.EventLocationLost, payload, true
	case session.EventUploadFailed:
		payload["seq"] = evt.FrameSeq
		return notifications.EventUploadFailed, payload, true
	}
	return "", nil, false
}

// scheduleRestart retries capture after delay until it succeeds or the
// session stops. Only one timer is pending at a time.
func (d *Daemon) scheduleRestart(ctx context.Context, delay time.Duration) {
	d.restartMu.Lock()
	defer d.restartMu.Unlock()
	if d.restartTimer != nil || ctx.Err() != nil {
		return
	}
	d.restartTimer = time.AfterFunc(delay, func() { d.attemptRestart(ctx) })
}

func (d *Daemon) attemptRestart(ctx context.Context) {
	d.restartMu.Lock()
	d.restartTimer = nil
	d.restartMu.Unlock()

	if ctx.Err() != nil {
		return
	}
	err := d.session.RestartCapture(ctx)
	switch {
	case err == nil:
		return
	case errors.Is(err, session.ErrNotRunning), errors.Is(err, session.ErrStopping):
		return
	}
	logging.WarnWithContext(d.logger, "capture restart failed", "capture_restart_failed",
		logging.Error(err),
		logging.Duration("retry_in", d.cfg.ReconnectDelay()),
		logging.String(logging.FieldErrorHint, "reconnect the camera or check capture.device"),
		logging.String(logging.FieldImpact, "no frames are captured until the device returns"),
	)
	d.scheduleRestart(ctx, d.cfg.ReconnectDelay())
}

func (d *Daemon) cancelRestart() {
	d.restartMu.Lock()
	defer d.restartMu.Unlock()
	if d.restartTimer != nil {
		d.restartTimer.Stop()
		d.restartTimer = nil
	}
}

// handleHotplug restarts capture as soon as the camera node reappears rather
// than waiting for the retry timer.
func (d *Daemon) handleHotplug(ctx context.Context, action netlink.KObjAction, device string) {
	if action != netlink.ADD || !d.cfg.Capture.AutoRestart {
		return
	}
	if d.session.State() != session.StateRunning || d.session.Status().CaptureDelivering {
		return
	}
	d.cancelRestart()
	if err := d.session.RestartCapture(ctx); err != nil {
		d.logger.Info("capture restart after hotplug failed; retrying on timer",
			logging.String("device", device),
			logging.Error(err),
		)
		d.scheduleRestart(ctx, d.cfg.ReconnectDelay())
	}
}
