package remoteid

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Vendor is the only message family this package models.
const Vendor = "ASD"

// Field is one display row of a described message.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Describe projects a message into the ordered rows shown for a selected
// broadcaster entry. Every kind is handled; Authentication and unknown type
// codes fall back to a hex dump.
func Describe(ssid string, msg Message) []Field {
	fields := []Field{
		{Name: "SSID", Value: ssid},
		{Name: "Vendor", Value: Vendor},
	}

	switch m := msg.(type) {
	case *BasicID:
		return append(fields, describeBasicID(m)...)
	case *Location:
		return append(fields, describeLocation(m)...)
	case *SelfID:
		return append(fields, describeSelfID(m)...)
	case *System:
		return append(fields, describeSystem(m)...)
	case *OperatorID:
		return append(fields, describeOperatorID(m)...)
	case *Raw:
		return append(fields, describeRaw(m)...)
	default:
		return fields
	}
}

func describeBasicID(m *BasicID) []Field {
	return []Field{
		{"ID", ASCII(m.ID)},
		{"ID type", m.IDType.String()},
		{"UAV type", m.UavType.String()},
	}
}

func describeLocation(m *Location) []Field {
	return []Field{
		{"Baro Altitude", Altitude(m.BaroAltitude).String()},
		{"Baro Accuracy", m.BaroAccuracy.String()},
		{"Direction", Direction(m.Direction).String()},
		{"Geo Altitude", Altitude(m.GeoAltitude).String()},
		{"Height", Altitude(m.Height).String()},
		{"Height Reference", m.HeightReference.String()},
		{"Horizontal Accuracy", m.HorizontalAccuracy.String()},
		{"Horizontal Speed", HorizontalSpeed(m.HorizontalSpeed).String()},
		{"Latitude", Coordinate(m.Latitude).String()},
		{"Longitude", Coordinate(m.Longitude).String()},
		{"Speed Accuracy", m.SpeedAccuracy.String()},
		{"Status", m.Status.String()},
		{"Timestamp", Measure(m.Timestamp).String()},
		{"Timestamp Accuracy", m.TimestampAccuracy.String()},
		{"Vertical Accuracy", m.VerticalAccuracy.String()},
		{"Vertical Speed", Measure(m.VerticalSpeed).String()},
	}
}

func describeSelfID(m *SelfID) []Field {
	return []Field{
		{"Description", m.Description},
		{"Description Type", m.DescriptionType.String()},
	}
}

func describeSystem(m *System) []Field {
	return []Field{
		{"Area ceiling", Altitude(m.AreaCeiling).String()},
		{"Area count", fmt.Sprint(m.AreaCount)},
		{"Area floor", Altitude(m.AreaFloor).String()},
		{"Area radius", Measure(m.AreaRadius).String()},
		{"Operator altitude", Measure(m.OperatorAltitude).String()},
		{"Operator classification", m.OperatorClassification.String()},
		{"Operator latitude", Coordinate(m.OperatorLatitude).String()},
		{"Operator longitude", Coordinate(m.OperatorLongitude).String()},
		{"Location type", m.OperatorLocationType.String()},
		{"Timestamp", formatTimestamp(m.Timestamp)},
		{"UAV EU category", m.UavEuCategory.String()},
		{"UAV EU class", m.UavEuClass.String()},
	}
}

func describeOperatorID(m *OperatorID) []Field {
	return []Field{
		{"ID", ASCII(m.ID)},
		{"ID Type", Hex(m.IDType)},
	}
}

func describeRaw(m *Raw) []Field {
	return []Field{
		{"Message type", fmt.Sprintf("%02X", m.TypeCode)},
		{"Raw data", strings.ToUpper(hex.EncodeToString(m.Data))},
	}
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "Unknown"
	}
	return t.UTC().Format(time.RFC3339)
}
