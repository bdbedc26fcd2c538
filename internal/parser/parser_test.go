package parser

import (
	"bytes"
	"testing"
	"time"

	"github.com/saviobatista/rid-tracker/internal/remoteid"
	"github.com/saviobatista/rid-tracker/internal/testutils"
	"github.com/saviobatista/rid-tracker/internal/types"
)

func TestParseMessage(t *testing.T) {
	timestamp := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		raw        string
		wantErr    bool
		wantNil    bool
		wantAdv    *types.Advertisement
		wantStatus *types.SensorStatus
	}{
		{
			name: "advertisement",
			raw:  "ADV,DD05FA0BBC0D01,DJI-001\n",
			wantAdv: &types.Advertisement{
				SensorID:  "roof",
				SSID:      "DJI-001",
				IE:        []byte{0xDD, 0x05, 0xFA, 0x0B, 0xBC, 0x0D, 0x01},
				Timestamp: timestamp,
			},
		},
		{
			name: "ssid with commas",
			raw:  "ADV,00,drone,one,two",
			wantAdv: &types.Advertisement{
				SensorID:  "roof",
				SSID:      "drone,one,two",
				IE:        []byte{0x00},
				Timestamp: timestamp,
			},
		},
		{
			name: "radio state",
			raw:  "RADIO,1,0",
			wantStatus: &types.SensorStatus{
				SensorID:   "roof",
				Online:     true,
				SoftwareOn: true,
				HardwareOn: false,
				Timestamp:  timestamp,
			},
		},
		{name: "blank line", raw: "   \r\n", wantNil: true},
		{name: "comment", raw: "# capture started", wantNil: true},
		{name: "too few fields", raw: "ADV,DD05", wantErr: true},
		{name: "bad hex", raw: "ADV,XYZ,DJI-001", wantErr: true},
		{name: "empty ie", raw: "ADV,,DJI-001", wantErr: true},
		{name: "missing ssid", raw: "ADV,DD05,", wantErr: true},
		{name: "bad switch", raw: "RADIO,on,maybe", wantErr: true},
		{name: "unknown record", raw: "MSG,8,111", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := ParseMessage(tt.raw, "roof", timestamp)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if tt.wantNil {
				if rec != nil {
					t.Errorf("Expected nil record, got %+v", rec)
				}
				return
			}
			if rec == nil {
				t.Fatal("ParseMessage() returned nil record")
			}

			if tt.wantAdv != nil {
				if rec.Type != RecordAdvertisement || rec.Advertisement == nil {
					t.Fatalf("Expected advertisement record, got %+v", rec)
				}
				got := rec.Advertisement
				if got.SensorID != tt.wantAdv.SensorID || got.SSID != tt.wantAdv.SSID ||
					!bytes.Equal(got.IE, tt.wantAdv.IE) || !got.Timestamp.Equal(tt.wantAdv.Timestamp) {
					t.Errorf("ParseMessage() = %+v, want %+v", got, tt.wantAdv)
				}
			}
			if tt.wantStatus != nil {
				if rec.Type != RecordRadio || rec.Status == nil {
					t.Fatalf("Expected radio record, got %+v", rec)
				}
				if *rec.Status != *tt.wantStatus {
					t.Errorf("ParseMessage() = %+v, want %+v", rec.Status, tt.wantStatus)
				}
			}
		})
	}
}

func TestFormatAdvertisement_RoundTrip(t *testing.T) {
	adv := testutils.MockAdvertisement("roof", "DJI-001",
		&remoteid.BasicID{IDType: remoteid.IDTypeSerialNumber, ID: []byte("1581F45T")},
	)

	line := FormatAdvertisement(adv)
	rec, err := ParseMessage(line, "roof", adv.Timestamp)
	if err != nil {
		t.Fatalf("ParseMessage(%q) failed: %v", line, err)
	}
	if rec.Advertisement.SSID != "DJI-001" {
		t.Errorf("Expected SSID DJI-001, got %s", rec.Advertisement.SSID)
	}
	if !bytes.Equal(rec.Advertisement.IE, adv.IE) {
		t.Error("Information elements changed on the way through the feed format")
	}
}

func TestFormatRadio(t *testing.T) {
	tests := []struct {
		software, hardware bool
		want               string
	}{
		{true, true, "RADIO,1,1"},
		{true, false, "RADIO,1,0"},
		{false, false, "RADIO,0,0"},
	}

	for _, tt := range tests {
		status := &types.SensorStatus{SoftwareOn: tt.software, HardwareOn: tt.hardware}
		got := FormatRadio(status)
		if got != tt.want {
			t.Errorf("FormatRadio(%v, %v) = %q, want %q", tt.software, tt.hardware, got, tt.want)
		}
		rec, err := ParseMessage(got, "roof", time.Time{})
		if err != nil {
			t.Fatalf("ParseMessage(%q) failed: %v", got, err)
		}
		if rec.Status.SoftwareOn != tt.software || rec.Status.HardwareOn != tt.hardware {
			t.Errorf("Radio state changed on the way through the feed format: %+v", rec.Status)
		}
	}
}
