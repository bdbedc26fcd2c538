package decoder

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/saviobatista/rid-tracker/internal/remoteid"
)

const (
	// ElementVendorSpecific is the 802.11 information element id that carries
	// Remote-ID payloads in beacons.
	ElementVendorSpecific = 0xDD
	// OUIType is the ASD-STAN vendor type following the OUI.
	OUIType = 0x0D
	// MessageSize is the fixed size of every F3411 message.
	MessageSize = 25
	// TypeMessagePack wraps several messages in one payload.
	TypeMessagePack = 0xF
)

// OUI is the ASD-STAN organisationally unique identifier.
var OUI = [3]byte{0xFA, 0x0B, 0xBC}

// ErrTruncated is returned when an element or message is shorter than its
// declared or fixed length.
var ErrTruncated = errors.New("truncated remote id data")

// systemEpoch is the zero of the System message timestamp.
var systemEpoch = time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)

// Decoder turns raw beacon information elements into Remote-ID messages.
type Decoder struct{}

// New creates a new Decoder
func New() *Decoder {
	return &Decoder{}
}

// DecodeInformationElements decodes every Remote-ID message found in the raw
// information elements of one advertisement. Messages decoded before an error
// are still returned.
func (d *Decoder) DecodeInformationElements(raw []byte) ([]remoteid.Message, error) {
	payloads, err := ExtractPayloads(raw)

	var messages []remoteid.Message
	for _, p := range payloads {
		// First byte is the message counter.
		if len(p) < 1 {
			continue
		}
		msgs, perr := DecodePayload(p[1:])
		messages = append(messages, msgs...)
		if perr != nil && err == nil {
			err = perr
		}
	}
	return messages, err
}

// ExtractPayloads walks the information elements and returns the bodies of
// Remote-ID vendor elements with the OUI and type stripped.
func ExtractPayloads(raw []byte) ([][]byte, error) {
	var payloads [][]byte
	for i := 0; i < len(raw); {
		if i+2 > len(raw) {
			return payloads, fmt.Errorf("element header at offset %d: %w", i, ErrTruncated)
		}
		id, length := raw[i], int(raw[i+1])
		start, end := i+2, i+2+length
		if end > len(raw) {
			return payloads, fmt.Errorf("element 0x%02X at offset %d: %w", id, i, ErrTruncated)
		}
		body := raw[start:end]
		if id == ElementVendorSpecific && len(body) > 4 &&
			body[0] == OUI[0] && body[1] == OUI[1] && body[2] == OUI[2] && body[3] == OUIType {
			payloads = append(payloads, body[4:])
		}
		i = end
	}
	return payloads, nil
}

// DecodePayload decodes either a message pack or a single message.
func DecodePayload(b []byte) ([]remoteid.Message, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("empty payload: %w", ErrTruncated)
	}
	if b[0]>>4 != TypeMessagePack {
		msg, err := DecodeMessage(b)
		if err != nil {
			return nil, err
		}
		return []remoteid.Message{msg}, nil
	}

	if len(b) < 3 {
		return nil, fmt.Errorf("message pack header: %w", ErrTruncated)
	}
	size, count := int(b[1]), int(b[2])
	if size != MessageSize {
		return nil, fmt.Errorf("message pack with %d byte messages: %w", size, ErrTruncated)
	}

	messages := make([]remoteid.Message, 0, count)
	body := b[3:]
	for n := 0; n < count; n++ {
		off := n * MessageSize
		if off+MessageSize > len(body) {
			return messages, fmt.Errorf("message %d of %d in pack: %w", n+1, count, ErrTruncated)
		}
		msg, err := DecodeMessage(body[off : off+MessageSize])
		if err != nil {
			return messages, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// DecodeMessage decodes one 25 byte message. Type codes without a model are
// kept as remoteid.Raw.
func DecodeMessage(b []byte) (remoteid.Message, error) {
	if len(b) < MessageSize {
		return nil, fmt.Errorf("message of %d bytes: %w", len(b), ErrTruncated)
	}
	b = b[:MessageSize]
	header := remoteid.Header{Version: b[0] & 0x0F}

	switch kind := remoteid.MessageKind(b[0] >> 4); kind {
	case remoteid.KindBasicID:
		return &remoteid.BasicID{
			Header:  header,
			IDType:  remoteid.IDType(b[1] >> 4),
			UavType: remoteid.UavType(b[1] & 0x0F),
			ID:      clone(b[2:22]),
		}, nil
	case remoteid.KindLocation:
		return decodeLocation(header, b), nil
	case remoteid.KindSelfID:
		return &remoteid.SelfID{
			Header:          header,
			DescriptionType: remoteid.DescriptionType(b[1]),
			Description:     remoteid.ASCII(b[2:25]),
		}, nil
	case remoteid.KindSystem:
		return decodeSystem(header, b), nil
	case remoteid.KindOperatorID:
		return &remoteid.OperatorID{
			Header: header,
			IDType: b[1],
			ID:     clone(b[2:22]),
		}, nil
	default:
		return &remoteid.Raw{
			Header:   header,
			TypeCode: uint8(kind),
			Data:     clone(b[1:]),
		}, nil
	}
}

func decodeLocation(header remoteid.Header, b []byte) *remoteid.Location {
	flags := b[1]

	direction := float64(b[2])
	if flags&0x02 != 0 {
		direction += 180
	}

	speed := float64(b[3]) * 0.25
	if flags&0x01 != 0 {
		speed = float64(b[3])*0.75 + 255*0.25
	}

	return &remoteid.Location{
		Header:             header,
		Status:             remoteid.UavStatus(flags >> 4),
		HeightReference:    remoteid.HeightReference((flags >> 2) & 0x01),
		Direction:          direction,
		HorizontalSpeed:    speed,
		VerticalSpeed:      float64(int8(b[4])) * 0.5,
		Latitude:           latLon(b[5:9]),
		Longitude:          latLon(b[9:13]),
		BaroAltitude:       altitude(b[13:15]),
		GeoAltitude:        altitude(b[15:17]),
		Height:             altitude(b[17:19]),
		VerticalAccuracy:   remoteid.VerticalAccuracy(b[19] >> 4),
		HorizontalAccuracy: remoteid.HorizontalAccuracy(b[19] & 0x0F),
		BaroAccuracy:       remoteid.VerticalAccuracy(b[20] >> 4),
		SpeedAccuracy:      remoteid.SpeedAccuracy(b[20] & 0x0F),
		Timestamp:          float64(binary.LittleEndian.Uint16(b[21:23])) / 10,
		TimestampAccuracy:  remoteid.TimestampAccuracy(b[23] & 0x0F),
	}
}

func decodeSystem(header remoteid.Header, b []byte) *remoteid.System {
	return &remoteid.System{
		Header:                 header,
		OperatorClassification: remoteid.OperatorClassification((b[1] >> 2) & 0x07),
		OperatorLocationType:   remoteid.OperatorLocationType(b[1] & 0x03),
		OperatorLatitude:       latLon(b[2:6]),
		OperatorLongitude:      latLon(b[6:10]),
		AreaCount:              binary.LittleEndian.Uint16(b[10:12]),
		AreaRadius:             float64(b[12]) * 10,
		AreaCeiling:            altitude(b[13:15]),
		AreaFloor:              altitude(b[15:17]),
		UavEuCategory:          remoteid.UavEuCategory(b[17] >> 4),
		UavEuClass:             remoteid.UavEuClass(b[17] & 0x0F),
		OperatorAltitude:       altitude(b[18:20]),
		Timestamp:              systemEpoch.Add(time.Duration(binary.LittleEndian.Uint32(b[20:24])) * time.Second),
	}
}

func latLon(b []byte) float64 {
	return float64(int32(binary.LittleEndian.Uint32(b))) / 1e7
}

func altitude(b []byte) float64 {
	return float64(binary.LittleEndian.Uint16(b))*0.5 - 1000
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
