package testutils

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/saviobatista/rid-tracker/internal/remoteid"
	"github.com/saviobatista/rid-tracker/internal/types"
)

var systemEpoch = time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)

// MockAdvertisement creates an advertisement whose information elements carry
// msgs as one message pack.
func MockAdvertisement(sensorID, ssid string, msgs ...remoteid.Message) *types.Advertisement {
	return &types.Advertisement{
		SensorID:  sensorID,
		SSID:      ssid,
		IE:        BeaconIE(ssid, EncodePack(msgs...)),
		Timestamp: time.Now().UTC(),
	}
}

// BeaconIE builds beacon information elements: an SSID element followed by
// a Remote-ID vendor element holding payload.
func BeaconIE(ssid string, payload []byte) []byte {
	ie := []byte{0x00, byte(len(ssid))}
	ie = append(ie, ssid...)
	body := append([]byte{0xFA, 0x0B, 0xBC, 0x0D, 0x01}, payload...)
	ie = append(ie, 0xDD, byte(len(body)))
	return append(ie, body...)
}

// EncodePack encodes msgs as a message pack.
func EncodePack(msgs ...remoteid.Message) []byte {
	out := []byte{0xF2, 25, byte(len(msgs))}
	for _, m := range msgs {
		out = append(out, EncodeMessage(m)...)
	}
	return out
}

// EncodeMessage encodes a single 25 byte ASTM F3411 message.
func EncodeMessage(msg remoteid.Message) []byte {
	b := make([]byte, 25)
	b[0] = byte(msg.Kind())<<4 | msg.ProtocolVersion()&0x0F

	switch m := msg.(type) {
	case *remoteid.BasicID:
		b[1] = byte(m.IDType)<<4 | byte(m.UavType)&0x0F
		copy(b[2:22], m.ID)
	case *remoteid.Location:
		encodeLocation(b, m)
	case *remoteid.SelfID:
		b[1] = byte(m.DescriptionType)
		copy(b[2:25], m.Description)
	case *remoteid.System:
		encodeSystem(b, m)
	case *remoteid.OperatorID:
		b[1] = m.IDType
		copy(b[2:22], m.ID)
	case *remoteid.Raw:
		copy(b[1:], m.Data)
	}
	return b
}

func encodeLocation(b []byte, m *remoteid.Location) {
	flags := byte(m.Status) << 4
	flags |= (byte(m.HeightReference) & 0x01) << 2

	dir := m.Direction
	if dir >= 180 {
		flags |= 0x02
		dir -= 180
	}
	b[2] = byte(math.Round(dir))

	if m.HorizontalSpeed <= 255*0.25 {
		b[3] = byte(math.Round(m.HorizontalSpeed / 0.25))
	} else {
		flags |= 0x01
		b[3] = byte(math.Round((m.HorizontalSpeed - 255*0.25) / 0.75))
	}
	b[1] = flags

	b[4] = byte(int8(math.Round(m.VerticalSpeed / 0.5)))
	putLatLon(b[5:9], m.Latitude)
	putLatLon(b[9:13], m.Longitude)
	putAltitude(b[13:15], m.BaroAltitude)
	putAltitude(b[15:17], m.GeoAltitude)
	putAltitude(b[17:19], m.Height)
	b[19] = byte(m.VerticalAccuracy)<<4 | byte(m.HorizontalAccuracy)&0x0F
	b[20] = byte(m.BaroAccuracy)<<4 | byte(m.SpeedAccuracy)&0x0F
	binary.LittleEndian.PutUint16(b[21:23], uint16(math.Round(m.Timestamp*10)))
	b[23] = byte(m.TimestampAccuracy) & 0x0F
}

func encodeSystem(b []byte, m *remoteid.System) {
	b[1] = (byte(m.OperatorClassification)&0x07)<<2 | byte(m.OperatorLocationType)&0x03
	putLatLon(b[2:6], m.OperatorLatitude)
	putLatLon(b[6:10], m.OperatorLongitude)
	binary.LittleEndian.PutUint16(b[10:12], m.AreaCount)
	b[12] = byte(math.Round(m.AreaRadius / 10))
	putAltitude(b[13:15], m.AreaCeiling)
	putAltitude(b[15:17], m.AreaFloor)
	b[17] = byte(m.UavEuCategory)<<4 | byte(m.UavEuClass)&0x0F
	putAltitude(b[18:20], m.OperatorAltitude)
	if !m.Timestamp.IsZero() {
		binary.LittleEndian.PutUint32(b[20:24], uint32(m.Timestamp.Sub(systemEpoch)/time.Second))
	}
}

func putLatLon(b []byte, deg float64) {
	binary.LittleEndian.PutUint32(b, uint32(int32(math.Round(deg*1e7))))
}

func putAltitude(b []byte, meters float64) {
	binary.LittleEndian.PutUint16(b, uint16(math.Round((meters+1000)/0.5)))
}

// WaitForCondition waits for a condition to be true with timeout
func WaitForCondition(condition func() bool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for condition")
		case <-ticker.C:
			if condition() {
				return nil
			}
		}
	}
}
