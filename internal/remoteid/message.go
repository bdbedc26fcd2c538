package remoteid

import (
	"fmt"
	"time"
)

// MessageKind is the ASTM F3411 message type code carried in the high nibble
// of the first byte of every Remote-ID message.
type MessageKind uint8

const (
	KindBasicID        MessageKind = 0x0
	KindLocation       MessageKind = 0x1
	KindAuthentication MessageKind = 0x2
	KindSelfID         MessageKind = 0x3
	KindSystem         MessageKind = 0x4
	KindOperatorID     MessageKind = 0x5
)

// Kinds lists the six named message kinds in protocol order.
var Kinds = []MessageKind{
	KindBasicID,
	KindLocation,
	KindAuthentication,
	KindSelfID,
	KindSystem,
	KindOperatorID,
}

// Known reports whether k is one of the six named kinds.
func (k MessageKind) Known() bool {
	return k <= KindOperatorID
}

// String returns the title used for the kind in broadcaster listings.
func (k MessageKind) String() string {
	switch k {
	case KindBasicID:
		return "BASIC ID"
	case KindLocation:
		return "LOCATION"
	case KindAuthentication:
		return "AUTH"
	case KindSelfID:
		return "SELF ID"
	case KindSystem:
		return "SYSTEM"
	case KindOperatorID:
		return "OPERATOR ID"
	default:
		return "UNKNOWN"
	}
}

// Key returns the path segment that ParseKind maps back to k: the title for
// a named kind, the type code ("0xB") otherwise.
func (k MessageKind) Key() string {
	if k.Known() {
		return k.String()
	}
	return fmt.Sprintf("0x%X", uint8(k))
}

// ParseKind maps a kind title or a numeric type code ("0x1", "1") back to a
// MessageKind.
func ParseKind(s string) (MessageKind, bool) {
	for _, k := range Kinds {
		if s == k.String() {
			return k, true
		}
	}
	code, ok := parseCode(s)
	if !ok {
		return 0, false
	}
	return MessageKind(code), true
}

// Message is one decoded Remote-ID message. The set of implementations is
// closed: BasicID, Location, SelfID, System, OperatorID and Raw, the latter
// covering Authentication and every unrecognised type code.
type Message interface {
	Kind() MessageKind
	ProtocolVersion() uint8
	message()
}

// Header carries the fields common to every message.
type Header struct {
	Version uint8 `json:"version"`
}

// ProtocolVersion returns the low nibble of the message header.
func (h Header) ProtocolVersion() uint8 { return h.Version }

func (Header) message() {}

// BasicID identifies the aircraft.
type BasicID struct {
	Header
	IDType  IDType  `json:"id_type"`
	UavType UavType `json:"uav_type"`
	ID      []byte  `json:"id"`
}

func (*BasicID) Kind() MessageKind { return KindBasicID }

// Location is the dynamic position/vector message.
type Location struct {
	Header
	Status             UavStatus          `json:"status"`
	Direction          float64            `json:"direction"`
	HorizontalSpeed    float64            `json:"horizontal_speed"`
	VerticalSpeed      float64            `json:"vertical_speed"`
	Latitude           float64            `json:"latitude"`
	Longitude          float64            `json:"longitude"`
	BaroAltitude       float64            `json:"baro_altitude"`
	GeoAltitude        float64            `json:"geo_altitude"`
	Height             float64            `json:"height"`
	HeightReference    HeightReference    `json:"height_reference"`
	HorizontalAccuracy HorizontalAccuracy `json:"horizontal_accuracy"`
	VerticalAccuracy   VerticalAccuracy   `json:"vertical_accuracy"`
	BaroAccuracy       VerticalAccuracy   `json:"baro_accuracy"`
	SpeedAccuracy      SpeedAccuracy      `json:"speed_accuracy"`
	TimestampAccuracy  TimestampAccuracy  `json:"timestamp_accuracy"`
	// Timestamp is seconds after the full hour, with a resolution of a tenth
	// of a second.
	Timestamp float64 `json:"timestamp"`
}

func (*Location) Kind() MessageKind { return KindLocation }

// SelfID is the operator-declared free text.
type SelfID struct {
	Header
	DescriptionType DescriptionType `json:"description_type"`
	Description     string          `json:"description"`
}

func (*SelfID) Kind() MessageKind { return KindSelfID }

// System carries the operator position and the operating area.
type System struct {
	Header
	OperatorLocationType   OperatorLocationType   `json:"operator_location_type"`
	OperatorClassification OperatorClassification `json:"operator_classification"`
	OperatorLatitude       float64                `json:"operator_latitude"`
	OperatorLongitude      float64                `json:"operator_longitude"`
	OperatorAltitude       float64                `json:"operator_altitude"`
	AreaCount              uint16                 `json:"area_count"`
	AreaRadius             float64                `json:"area_radius"`
	AreaCeiling            float64                `json:"area_ceiling"`
	AreaFloor              float64                `json:"area_floor"`
	UavEuCategory          UavEuCategory          `json:"uav_eu_category"`
	UavEuClass             UavEuClass             `json:"uav_eu_class"`
	Timestamp              time.Time              `json:"timestamp"`
}

func (*System) Kind() MessageKind { return KindSystem }

// OperatorID identifies the operator. The id type is kept as the raw byte.
type OperatorID struct {
	Header
	IDType uint8  `json:"id_type"`
	ID     []byte `json:"id"`
}

func (*OperatorID) Kind() MessageKind { return KindOperatorID }

// Raw is an opaque passthrough: Authentication messages and any type code
// outside the named kinds. Data is kept exactly as decoded.
type Raw struct {
	Header
	TypeCode uint8  `json:"type_code"`
	Data     []byte `json:"data"`
}

func (m *Raw) Kind() MessageKind { return MessageKind(m.TypeCode) }

// IsNil reports whether msg is nil or a nil pointer of one of the message
// types.
func IsNil(msg Message) bool {
	switch m := msg.(type) {
	case nil:
		return true
	case *BasicID:
		return m == nil
	case *Location:
		return m == nil
	case *SelfID:
		return m == nil
	case *System:
		return m == nil
	case *OperatorID:
		return m == nil
	case *Raw:
		return m == nil
	default:
		return false
	}
}

// Present returns msgs without nil entries. msgs is returned as is when it
// holds none.
func Present(msgs []Message) []Message {
	for i, msg := range msgs {
		if !IsNil(msg) {
			continue
		}
		out := append([]Message(nil), msgs[:i]...)
		for _, rest := range msgs[i+1:] {
			if !IsNil(rest) {
				out = append(out, rest)
			}
		}
		return out
	}
	return msgs
}
