// Package radio implements session.Radio on top of remote sensors. A sensor
// captures beacons on its own Wi-Fi adapter and publishes them, together with
// periodic heartbeats, over NATS. Each sensor is exposed as one radio
// interface.
package radio

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/saviobatista/rid-tracker/internal/session"
	"github.com/saviobatista/rid-tracker/internal/types"
)

var (
	ErrUnknownSensor  = errors.New("unknown sensor")
	ErrSensorDisabled = errors.New("sensor radio is switched off")
	ErrScanInProgress = errors.New("scan already in progress")
	ErrSensorLost     = errors.New("sensor went away during scan")
)

// Source is the transport delivering sensor traffic; *nats.Client satisfies it.
type Source interface {
	SubscribeAdvertisements(handler func(*types.Advertisement)) error
	SubscribeSensorStatus(handler func(*types.SensorStatus)) error
}

type sensor struct {
	status   types.SensorStatus
	lastSeen time.Time

	scanning bool
	pending  map[string][]byte
	visible  []session.Advertisement
}

func (s *sensor) radioState() session.RadioState {
	return session.RadioState{Software: s.status.SoftwareOn, Hardware: s.status.HardwareOn}
}

// Remote is a session.Radio backed by remote sensors. It is safe for
// concurrent use; notifications are delivered through the notify callback
// outside of any lock.
type Remote struct {
	mu      sync.Mutex
	sensors map[string]*sensor

	window  time.Duration
	timeout time.Duration
	notify  func(session.Notification)
	now     func() time.Time
	logger  *log.Logger
}

// New creates a Remote. A scan collects advertisements for window; a sensor
// without heartbeat for timeout is dropped by Reap.
func New(window, timeout time.Duration, notify func(session.Notification)) *Remote {
	return &Remote{
		sensors: make(map[string]*sensor),
		window:  window,
		timeout: timeout,
		notify:  notify,
		now:     time.Now,
		logger:  log.Default().WithPrefix("radio"),
	}
}

// Subscribe wires the Remote to src.
func (r *Remote) Subscribe(src Source) error {
	if err := src.SubscribeSensorStatus(r.HandleStatus); err != nil {
		return fmt.Errorf("failed to subscribe to sensor status: %w", err)
	}
	if err := src.SubscribeAdvertisements(r.HandleAdvertisement); err != nil {
		return fmt.Errorf("failed to subscribe to advertisements: %w", err)
	}
	return nil
}

// HandleStatus applies a sensor heartbeat.
func (r *Remote) HandleStatus(status *types.SensorStatus) {
	var notes []session.Notification

	r.mu.Lock()
	s, known := r.sensors[status.SensorID]
	switch {
	case !status.Online:
		if known {
			delete(r.sensors, status.SensorID)
			notes = append(notes, session.Notification{Type: session.InterfaceRemoved, InterfaceID: status.SensorID})
		}
	case !known:
		r.sensors[status.SensorID] = &sensor{status: *status, lastSeen: r.now()}
		notes = append(notes, session.Notification{Type: session.InterfaceArrived, InterfaceID: status.SensorID})
	default:
		changed := s.status.Enabled() != status.Enabled()
		s.status = *status
		s.lastSeen = r.now()
		if changed {
			notes = append(notes, session.Notification{
				Type:        session.RadioStateChanged,
				InterfaceID: status.SensorID,
				State:       s.radioState(),
			})
		}
	}
	r.mu.Unlock()

	r.emit(notes...)
}

// HandleAdvertisement buffers a beacon for the sensor's running scan. Beacons
// outside a scan window are dropped.
func (r *Remote) HandleAdvertisement(adv *types.Advertisement) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sensors[adv.SensorID]
	if !ok || !s.scanning {
		return
	}
	s.pending[adv.SSID] = adv.IE
}

// EnumerateInterfaces lists the known sensors ordered by id.
func (r *Remote) EnumerateInterfaces() ([]session.Interface, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]session.Interface, 0, len(r.sensors))
	for id, s := range r.sensors {
		out = append(out, session.Interface{ID: id, Radios: []session.RadioState{s.radioState()}})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// RequestScan opens a scan window on the sensor. ScanComplete is emitted
// when the window closes.
func (r *Remote) RequestScan(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sensors[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSensor, id)
	}
	if !s.status.Enabled() {
		return fmt.Errorf("%w: %s", ErrSensorDisabled, id)
	}
	if s.scanning {
		return fmt.Errorf("%w: %s", ErrScanInProgress, id)
	}

	s.scanning = true
	s.pending = make(map[string][]byte)
	time.AfterFunc(r.window, func() { r.finish(id, s) })
	return nil
}

// EnumerateVisibleAdvertisements returns the result of the last completed
// scan, one advertisement per broadcaster.
func (r *Remote) EnumerateVisibleAdvertisements(id string) ([]session.Advertisement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sensors[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSensor, id)
	}
	out := make([]session.Advertisement, len(s.visible))
	copy(out, s.visible)
	return out, nil
}

// Reap drops sensors whose last heartbeat is older than the timeout.
func (r *Remote) Reap() {
	var notes []session.Notification

	r.mu.Lock()
	cutoff := r.now().Add(-r.timeout)
	for id, s := range r.sensors {
		if s.lastSeen.Before(cutoff) {
			delete(r.sensors, id)
			r.logger.Warn("sensor timed out", "sensor", id, "last_seen", s.lastSeen)
			notes = append(notes, session.Notification{Type: session.InterfaceRemoved, InterfaceID: id})
		}
	}
	r.mu.Unlock()

	r.emit(notes...)
}

// Run reaps stale sensors until ctx is done.
func (r *Remote) Run(ctx context.Context) {
	interval := r.timeout / 2
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Reap()
		}
	}
}

func (r *Remote) finish(id string, s *sensor) {
	var note session.Notification

	r.mu.Lock()
	if current, ok := r.sensors[id]; !ok || current != s {
		note = session.Notification{Type: session.ScanFailed, InterfaceID: id, Reason: ErrSensorLost}
	} else {
		s.visible = s.visible[:0]
		for ssid, ie := range s.pending {
			s.visible = append(s.visible, session.Advertisement{BroadcasterID: ssid, IE: ie})
		}
		sort.Slice(s.visible, func(i, j int) bool {
			return s.visible[i].BroadcasterID < s.visible[j].BroadcasterID
		})
		s.pending = nil
		note = session.Notification{Type: session.ScanComplete, InterfaceID: id}
	}
	s.scanning = false
	r.mu.Unlock()

	r.emit(note)
}

func (r *Remote) emit(notes ...session.Notification) {
	for _, n := range notes {
		r.notify(n)
	}
}
