package types

import (
	"time"
)

// Advertisement is one beacon seen by a sensor: the advertised network name
// and the raw information elements of the frame.
type Advertisement struct {
	SensorID  string    `json:"sensor_id"`
	SSID      string    `json:"ssid"`
	IE        []byte    `json:"ie"`
	Timestamp time.Time `json:"timestamp"`
}

// SensorStatus is the periodic radio state report of a sensor.
type SensorStatus struct {
	SensorID   string    `json:"sensor_id"`
	Online     bool      `json:"online"`
	SoftwareOn bool      `json:"software_on"`
	HardwareOn bool      `json:"hardware_on"`
	Timestamp  time.Time `json:"timestamp"`
}

// Enabled reports whether both radio switches are on.
func (s SensorStatus) Enabled() bool {
	return s.SoftwareOn && s.HardwareOn
}

// StatusEvent is a human readable progress or error line from the tracker.
type StatusEvent struct {
	Time      time.Time `json:"time"`
	SessionID string    `json:"session_id"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

// ScanSession is one start..stop span of continuous scanning.
type ScanSession struct {
	SessionID   string    `json:"session_id"`
	InterfaceID string    `json:"interface_id"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
}

// LocationReport is a Location message flattened for storage. Nil fields
// held a sentinel "not provided" value.
type LocationReport struct {
	Time            time.Time `json:"time"`
	SessionID       string    `json:"session_id"`
	Broadcaster     string    `json:"broadcaster"`
	Status          string    `json:"status"`
	Latitude        *float64  `json:"latitude,omitempty"`
	Longitude       *float64  `json:"longitude,omitempty"`
	GeoAltitude     *float64  `json:"geo_altitude,omitempty"`
	BaroAltitude    *float64  `json:"baro_altitude,omitempty"`
	Height          *float64  `json:"height,omitempty"`
	Direction       *float64  `json:"direction,omitempty"`
	HorizontalSpeed *float64  `json:"horizontal_speed,omitempty"`
	VerticalSpeed   float64   `json:"vertical_speed"`
}
