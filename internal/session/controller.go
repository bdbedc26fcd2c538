// Package session drives continuous Remote-ID scanning against an external
// radio. The Controller is a two state machine (Idle, Scanning) fed one
// Notification at a time; it never blocks on I/O itself and never returns a
// fatal error. Every failure is reported through the status callback and
// degrades the controller to Idle.
package session

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// State of the controller.
type State int

const (
	Idle State = iota
	Scanning
)

func (s State) String() string {
	if s == Scanning {
		return "scanning"
	}
	return "idle"
}

// Level grades a status report.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Event tags what a status report is about.
type Event int

const (
	EventInterfaceBound Event = iota
	EventInterfaceUnavailable
	EventInterfaceLost
	EventScanStarted
	EventScanStopped
	EventScanCompleted
	EventScanFailed
	EventScanRequestFailed
	EventEnumerateFailed
	EventDecodeAnomaly
)

// Report is one human readable status line.
type Report struct {
	Event     Event
	Level     Level
	Message   string
	SessionID string
	Err       error
}

// String renders the report the way it is shown to the user.
func (r Report) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %v", r.Message, r.Err)
	}
	return r.Message
}

// StatusFunc receives status reports.
type StatusFunc func(Report)

// Option configures a Controller.
type Option func(*Controller)

// WithStatus sets the status callback.
func WithStatus(fn StatusFunc) Option {
	return func(c *Controller) { c.status = fn }
}

// WithSessionIDs replaces the session id generator.
func WithSessionIDs(fn func() string) Option {
	return func(c *Controller) { c.newSessionID = fn }
}

// Controller coordinates scan start, stop and restart against a Radio and
// feeds each scan's results into a Sink.
type Controller struct {
	radio   Radio
	decoder Decoder
	sink    Sink
	status  StatusFunc

	newSessionID func() string

	state     State
	iface     string
	sessionID string
}

// New creates an idle Controller with no interface bound. Call Discover to
// bind one.
func New(radio Radio, decoder Decoder, sink Sink, opts ...Option) *Controller {
	c := &Controller{
		radio:        radio,
		decoder:      decoder,
		sink:         sink,
		status:       func(Report) {},
		newSessionID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state.
func (c *Controller) State() State { return c.state }

// Interface returns the bound interface id, empty when none is bound.
func (c *Controller) Interface() string { return c.iface }

// SessionID returns the id of the active scan session, empty when idle.
func (c *Controller) SessionID() string { return c.sessionID }

// Discover enumerates interfaces and binds the first usable one.
func (c *Controller) Discover() error {
	ifaces, err := c.radio.EnumerateInterfaces()
	if err != nil {
		c.report(EventEnumerateFailed, LevelError, "Enum interfaces failed", err)
		return fmt.Errorf("failed to enumerate interfaces: %w", err)
	}
	if len(ifaces) == 0 {
		c.report(EventInterfaceUnavailable, LevelWarn, "No WiFi interface found", nil)
		return ErrInterfaceUnavailable
	}

	for _, iface := range ifaces {
		if iface.Usable() {
			c.iface = iface.ID
			c.report(EventInterfaceBound, LevelInfo, "Use WiFi interface "+iface.ID, nil)
			return nil
		}
	}

	c.report(EventInterfaceUnavailable, LevelWarn, "No enabled WiFi interface found", nil)
	return ErrInterfaceUnavailable
}

// Start begins a scan session. It only succeeds from Idle with an interface
// bound and the first scan request accepted; the catalog is emptied.
func (c *Controller) Start() error {
	if c.state != Idle {
		return ErrNotIdle
	}
	if c.iface == "" {
		c.report(EventInterfaceUnavailable, LevelWarn, "Start scan failed", ErrInterfaceUnavailable)
		return ErrInterfaceUnavailable
	}

	if err := c.radio.RequestScan(c.iface); err != nil {
		c.report(EventScanRequestFailed, LevelError, "Start scan failed", err)
		return fmt.Errorf("%w: %v", ErrScanRequestFailed, err)
	}

	c.state = Scanning
	c.sessionID = c.newSessionID()
	c.sink.Clear()
	c.report(EventScanStarted, LevelInfo, "Scan started", nil)
	return nil
}

// Stop ends the scan session and empties the catalog. In-flight scan
// requests are not cancelled; their notifications are ignored.
func (c *Controller) Stop() error {
	if c.state != Scanning {
		return ErrNotScanning
	}

	c.state = Idle
	c.sink.Clear()
	c.report(EventScanStopped, LevelInfo, "Scan stopped", nil)
	c.sessionID = ""
	return nil
}

// Handle processes one radio notification to completion.
func (c *Controller) Handle(n Notification) {
	switch n.Type {
	case InterfaceArrived:
		if c.iface == "" {
			_ = c.Discover()
		}

	case InterfaceRemoved:
		if c.iface != "" && n.InterfaceID == c.iface {
			c.report(EventInterfaceLost, LevelWarn, "Adapter removed", nil)
			c.disable()
		}

	case RadioStateChanged:
		if c.iface == "" {
			_ = c.Discover()
			return
		}
		if n.InterfaceID == c.iface && !n.State.On() {
			c.report(EventInterfaceLost, LevelWarn, "Adapter disabled", nil)
			c.disable()
		}

	case ScanComplete:
		if c.state == Scanning && n.InterfaceID == c.iface {
			c.collect()
			c.report(EventScanCompleted, LevelInfo, "Scan completed", nil)
			c.restart()
		}

	case ScanFailed:
		if c.state == Scanning && n.InterfaceID == c.iface {
			reason := n.Reason
			if reason == nil {
				reason = errors.New("unspecified reason")
			}
			c.report(EventScanFailed, LevelWarn, "Scan failed", &ScanFailedError{InterfaceID: n.InterfaceID, Reason: reason})
			c.restart()
		}
	}
}

// collect pulls the visible advertisements and ingests every decoded
// message per broadcaster.
func (c *Controller) collect() {
	advs, err := c.radio.EnumerateVisibleAdvertisements(c.iface)
	if err != nil {
		c.report(EventEnumerateFailed, LevelError, "Enum BSS failed", err)
		return
	}

	for _, adv := range advs {
		if len(adv.IE) == 0 {
			continue
		}
		msgs, err := c.decoder.DecodeInformationElements(adv.IE)
		if err != nil {
			c.report(EventDecodeAnomaly, LevelWarn, "Decode anomaly from "+adv.BroadcasterID, err)
		}
		if len(msgs) > 0 {
			c.sink.Ingest(adv.BroadcasterID, msgs)
		}
	}
}

// restart re-issues the scan request, stopping when the radio refuses it.
func (c *Controller) restart() {
	if c.state != Scanning {
		return
	}
	if err := c.radio.RequestScan(c.iface); err != nil {
		c.report(EventScanRequestFailed, LevelError, "Restart scan failed", err)
		_ = c.Stop()
	}
}

// disable stops scanning and forgets the bound interface.
func (c *Controller) disable() {
	if c.state == Scanning {
		_ = c.Stop()
	}
	c.iface = ""
}

func (c *Controller) report(event Event, level Level, msg string, err error) {
	c.status(Report{
		Event:     event,
		Level:     level,
		Message:   msg,
		SessionID: c.sessionID,
		Err:       err,
	})
}
