package nats

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/saviobatista/rid-tracker/internal/types"
)

func TestNew_Unit_URLs(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{name: "empty URL should fail", url: ""},
		{name: "invalid URL should fail", url: "invalid://url:12345"},
		{name: "malformed URL should fail", url: "not-a-url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.url)
			if err == nil {
				t.Error("Expected error, got none")
				client.Close()
				return
			}
			if client != nil {
				t.Error("Expected nil client on error")
			}
		})
	}
}

func TestClient_Close_Unit_NilSafety(t *testing.T) {
	client := &Client{conn: nil}
	client.Close()
}

func TestSubjects_Unit_CoveredByStream(t *testing.T) {
	if SubjectAdvertisement != "rid.adv" {
		t.Errorf("Expected SubjectAdvertisement to be 'rid.adv', got %s", SubjectAdvertisement)
	}
	if SubjectSensorStatus != "rid.sensor" {
		t.Errorf("Expected SubjectSensorStatus to be 'rid.sensor', got %s", SubjectSensorStatus)
	}
	if StreamName != "RID" {
		t.Errorf("Expected StreamName to be 'RID', got %s", StreamName)
	}
}

func TestDecodeAdvertisement_Unit(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	data, err := json.Marshal(&types.Advertisement{
		SensorID:  "roof",
		SSID:      "DJI-001",
		IE:        []byte{0xDD, 0x01, 0x02},
		Timestamp: ts,
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	tests := []struct {
		name      string
		data      []byte
		expectErr bool
	}{
		{name: "valid", data: data},
		{name: "invalid json", data: []byte("not json"), expectErr: true},
		{name: "missing sensor", data: []byte(`{"ssid":"x"}`), expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adv, err := DecodeAdvertisement(tt.data)
			if tt.expectErr {
				if err == nil {
					t.Error("Expected error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if adv.SensorID != "roof" || adv.SSID != "DJI-001" {
				t.Errorf("unexpected advertisement: %+v", adv)
			}
			if len(adv.IE) != 3 || adv.IE[0] != 0xDD {
				t.Errorf("IE not preserved: %v", adv.IE)
			}
			if !adv.Timestamp.Equal(ts) {
				t.Errorf("Expected timestamp %v, got %v", ts, adv.Timestamp)
			}
		})
	}
}

func TestDecodeSensorStatus_Unit(t *testing.T) {
	status, err := DecodeSensorStatus([]byte(`{"sensor_id":"roof","online":true,"software_on":true,"hardware_on":false}`))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !status.Online || status.Enabled() {
		t.Errorf("unexpected status: %+v", status)
	}

	if _, err := DecodeSensorStatus([]byte(`{"online":true}`)); err == nil {
		t.Error("Expected error for status without sensor id")
	}
	if _, err := DecodeSensorStatus([]byte(`[`)); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}
