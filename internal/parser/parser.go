package parser

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/saviobatista/rid-tracker/internal/types"
)

// RecordType represents the type of a capture feed line
type RecordType string

const (
	// ADV,<hex information elements>,<ssid>
	RecordAdvertisement RecordType = "ADV"
	// RADIO,<software on 0|1>,<hardware on 0|1>
	RecordRadio RecordType = "RADIO"
)

// Record is one parsed capture feed line. Exactly one of Advertisement and
// Status is set.
type Record struct {
	Type          RecordType
	Advertisement *types.Advertisement
	Status        *types.SensorStatus
}

// ParseMessage parses one line of the capture feed. Blank lines and lines
// starting with '#' yield a nil record and no error.
func ParseMessage(raw, sensorID string, timestamp time.Time) (*Record, error) {
	line := strings.TrimRight(raw, "\r\n")
	if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
		return nil, nil
	}

	// The SSID comes last so it may itself contain commas.
	fields := strings.SplitN(line, ",", 3)
	if len(fields) < 3 {
		return nil, fmt.Errorf("invalid message format: expected 3 fields, got %d", len(fields))
	}

	switch RecordType(strings.TrimSpace(fields[0])) {
	case RecordAdvertisement:
		ie, err := hex.DecodeString(strings.TrimSpace(fields[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid information elements: %w", err)
		}
		if len(ie) == 0 {
			return nil, fmt.Errorf("empty information elements")
		}
		ssid := fields[2]
		if ssid == "" {
			return nil, fmt.Errorf("missing ssid")
		}
		return &Record{
			Type: RecordAdvertisement,
			Advertisement: &types.Advertisement{
				SensorID:  sensorID,
				SSID:      ssid,
				IE:        ie,
				Timestamp: timestamp,
			},
		}, nil

	case RecordRadio:
		software, err := parseSwitch(fields[1])
		if err != nil {
			return nil, fmt.Errorf("invalid software switch: %w", err)
		}
		hardware, err := parseSwitch(fields[2])
		if err != nil {
			return nil, fmt.Errorf("invalid hardware switch: %w", err)
		}
		return &Record{
			Type: RecordRadio,
			Status: &types.SensorStatus{
				SensorID:   sensorID,
				Online:     true,
				SoftwareOn: software,
				HardwareOn: hardware,
				Timestamp:  timestamp,
			},
		}, nil

	default:
		return nil, fmt.Errorf("unknown record type %q", fields[0])
	}
}

func parseSwitch(field string) (bool, error) {
	return strconv.ParseBool(strings.TrimSpace(field))
}

// FormatAdvertisement renders adv as a capture feed line without the
// trailing newline.
func FormatAdvertisement(adv *types.Advertisement) string {
	return fmt.Sprintf("%s,%s,%s", RecordAdvertisement, strings.ToUpper(hex.EncodeToString(adv.IE)), adv.SSID)
}

// FormatRadio renders the radio switches of status as a capture feed line.
func FormatRadio(status *types.SensorStatus) string {
	return fmt.Sprintf("%s,%s,%s", RecordRadio, formatSwitch(status.SoftwareOn), formatSwitch(status.HardwareOn))
}

func formatSwitch(on bool) string {
	if on {
		return "1"
	}
	return "0"
}
