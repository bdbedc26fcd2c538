package remoteid

import (
	"fmt"
	"strconv"
	"strings"
)

// Sentinel encodings defined by the broadcast protocol.
const (
	InvalidAltitude = -1000.0
	MaxDirection    = 360.0
	InvalidSpeed    = 255.0
	InvalidLatLon   = 0.0
)

// Class tells how a raw field was classified.
type Class uint8

const (
	// Measured is a calibrated physical value.
	Measured Class = iota
	// Labeled is a recognised enumeration code.
	Labeled
	// Invalid is a sentinel meaning "not provided".
	Invalid
	// Unrecognized is an enumeration code with no known label. The raw byte
	// is preserved.
	Unrecognized
)

// Value is the result of interpreting one protocol field.
type Value struct {
	Class  Class   `json:"class"`
	Number float64 `json:"number,omitempty"`
	Label  string  `json:"label,omitempty"`
	Raw    uint8   `json:"raw"`
}

// Valid reports whether the value carries a usable measurement or label.
func (v Value) Valid() bool {
	return v.Class == Measured || v.Class == Labeled
}

// String renders the value for display.
func (v Value) String() string {
	switch v.Class {
	case Measured:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case Labeled:
		return v.Label
	case Invalid:
		return "Invalid"
	default:
		return fmt.Sprintf("Raw value: 0x%02X", v.Raw)
	}
}

// Measure wraps a value that has no sentinel encoding.
func Measure(n float64) Value {
	return Value{Class: Measured, Number: n}
}

// Altitude interprets pressure, geodetic and height-above fields, and the
// area ceiling and floor.
func Altitude(meters float64) Value {
	if meters == InvalidAltitude {
		return Value{Class: Invalid}
	}
	return Measure(meters)
}

// Direction interprets the track direction in degrees clockwise from north.
func Direction(degrees float64) Value {
	if degrees > MaxDirection {
		return Value{Class: Invalid}
	}
	return Measure(degrees)
}

// HorizontalSpeed interprets the ground speed in m/s.
func HorizontalSpeed(mps float64) Value {
	if mps == InvalidSpeed {
		return Value{Class: Invalid}
	}
	return Measure(mps)
}

// Coordinate interprets a latitude or longitude in degrees. Zero is never a
// legitimate position in this encoding.
func Coordinate(degrees float64) Value {
	if degrees == InvalidLatLon {
		return Value{Class: Invalid}
	}
	return Measure(degrees)
}

// labels maps enumeration codes to display labels. Missing codes and empty
// entries are unrecognised.
type labels []string

func (l labels) interpret(raw uint8) Value {
	if int(raw) < len(l) && l[raw] != "" {
		return Value{Class: Labeled, Label: l[raw], Raw: raw}
	}
	return Value{Class: Unrecognized, Raw: raw}
}

// Hex renders a byte in the two digit form used for raw type codes.
func Hex(b uint8) string {
	return fmt.Sprintf("0x%02X", b)
}

// ASCII decodes an identifier field. Trailing NUL padding is dropped and
// bytes outside printable ASCII become '?'.
func ASCII(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range []byte(strings.TrimRight(string(b), "\x00")) {
		if c < 0x20 || c > 0x7e {
			sb.WriteByte('?')
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

func parseCode(s string) (uint8, bool) {
	n, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, false
	}
	return uint8(n), true
}
