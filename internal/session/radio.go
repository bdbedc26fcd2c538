package session

import (
	"errors"
	"fmt"

	"github.com/saviobatista/rid-tracker/internal/remoteid"
)

var (
	// ErrInterfaceUnavailable means no enabled radio interface is bound.
	ErrInterfaceUnavailable = errors.New("no usable radio interface")
	// ErrScanRequestFailed means the radio rejected a scan request.
	ErrScanRequestFailed = errors.New("scan request failed")
	// ErrNotIdle is returned by Start while a scan is active.
	ErrNotIdle = errors.New("scan already active")
	// ErrNotScanning is returned by Stop while idle.
	ErrNotScanning = errors.New("scan not active")
)

// ScanFailedError is a failure the radio reported after a scan was accepted.
type ScanFailedError struct {
	InterfaceID string
	Reason      error
}

func (e *ScanFailedError) Error() string {
	return fmt.Sprintf("scan on %s failed: %v", e.InterfaceID, e.Reason)
}

func (e *ScanFailedError) Unwrap() error { return e.Reason }

// RadioState is the software and hardware switch state of one PHY.
type RadioState struct {
	Software bool `json:"software"`
	Hardware bool `json:"hardware"`
}

// On reports whether both switches are on.
func (s RadioState) On() bool { return s.Software && s.Hardware }

// Interface describes one radio interface and its PHY states.
type Interface struct {
	ID     string       `json:"id"`
	Radios []RadioState `json:"radios"`
}

// Usable reports whether the interface has at least one PHY and every PHY is
// switched on.
func (i Interface) Usable() bool {
	if len(i.Radios) == 0 {
		return false
	}
	for _, r := range i.Radios {
		if !r.On() {
			return false
		}
	}
	return true
}

// Advertisement is a visible broadcaster and the raw information elements of
// its last beacon.
type Advertisement struct {
	BroadcasterID string
	IE            []byte
}

// Radio is the external wireless stack.
type Radio interface {
	EnumerateInterfaces() ([]Interface, error)
	// RequestScan triggers a scan. Completion or failure arrives later as a
	// Notification.
	RequestScan(interfaceID string) error
	EnumerateVisibleAdvertisements(interfaceID string) ([]Advertisement, error)
}

// Decoder parses raw information elements into messages.
type Decoder interface {
	DecodeInformationElements(raw []byte) ([]remoteid.Message, error)
}

// Sink receives decoded messages per broadcaster. *catalog.Aggregator is the
// primary implementation.
type Sink interface {
	Ingest(id string, msgs []remoteid.Message)
	Clear()
}

// NotificationType enumerates the radio notifications the controller reacts to.
type NotificationType int

const (
	InterfaceArrived NotificationType = iota
	InterfaceRemoved
	ScanComplete
	ScanFailed
	RadioStateChanged
)

func (t NotificationType) String() string {
	switch t {
	case InterfaceArrived:
		return "interface-arrived"
	case InterfaceRemoved:
		return "interface-removed"
	case ScanComplete:
		return "scan-complete"
	case ScanFailed:
		return "scan-failed"
	case RadioStateChanged:
		return "radio-state-changed"
	default:
		return fmt.Sprintf("notification(%d)", int(t))
	}
}

// Notification is one event from the radio. Reason is set for ScanFailed and
// State for RadioStateChanged.
type Notification struct {
	Type        NotificationType
	InterfaceID string
	Reason      error
	State       RadioState
}
