package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

var envKeys = []string{
	"RID_CONFIG", "NATS_URL", "REDIS_ADDR", "DB_CONN_STR", "OUTPUT_DIR", "HTTP_ADDR",
	"SCAN_WINDOW", "SENSOR_TIMEOUT", "AUTO_START", "SENSOR_ID", "SOURCES", "LOG_LEVEL",
}

// clearEnv unsets every configuration variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	config, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if config.NATSURL != DefaultNATSURL {
		t.Errorf("Expected NATSURL = %s, got %s", DefaultNATSURL, config.NATSURL)
	}
	if config.RedisAddr != DefaultRedisAddr {
		t.Errorf("Expected RedisAddr = %s, got %s", DefaultRedisAddr, config.RedisAddr)
	}
	if config.OutputDir != "./logs" {
		t.Errorf("Expected OutputDir = ./logs, got %s", config.OutputDir)
	}
	if config.ScanWindow != 2*time.Second {
		t.Errorf("Expected ScanWindow = 2s, got %s", config.ScanWindow)
	}
	if config.SensorTimeout != 30*time.Second {
		t.Errorf("Expected SensorTimeout = 30s, got %s", config.SensorTimeout)
	}
	if config.AutoStart {
		t.Error("Expected AutoStart to default to false")
	}
	if config.SensorID == "" {
		t.Error("Expected SensorID to default to the host name")
	}
	if len(config.Sources) != 0 {
		t.Errorf("Expected no sources, got %v", config.Sources)
	}
}

func TestLoad_WithEnvironment(t *testing.T) {
	clearEnv(t)
	os.Setenv("NATS_URL", "nats://localhost:4222")
	os.Setenv("OUTPUT_DIR", "/test/output")
	os.Setenv("SCAN_WINDOW", "500ms")
	os.Setenv("AUTO_START", "true")
	os.Setenv("SENSOR_ID", "roof")
	os.Setenv("LOG_LEVEL", "debug")

	config, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if config.NATSURL != "nats://localhost:4222" {
		t.Errorf("Expected NATSURL override, got %s", config.NATSURL)
	}
	if config.OutputDir != "/test/output" {
		t.Errorf("Expected OutputDir = /test/output, got %s", config.OutputDir)
	}
	if config.ScanWindow != 500*time.Millisecond {
		t.Errorf("Expected ScanWindow = 500ms, got %s", config.ScanWindow)
	}
	if !config.AutoStart {
		t.Error("Expected AutoStart = true")
	}
	if config.SensorID != "roof" {
		t.Errorf("Expected SensorID = roof, got %s", config.SensorID)
	}
	if config.LogLevel != "debug" {
		t.Errorf("Expected LogLevel = debug, got %s", config.LogLevel)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad window", "SCAN_WINDOW", "soon"},
		{"zero window", "SCAN_WINDOW", "0s"},
		{"negative timeout", "SENSOR_TIMEOUT", "-1s"},
		{"bad auto start", "AUTO_START", "maybe"},
		{"bad level", "LOG_LEVEL", "chatty"},
		{"missing file", "RID_CONFIG", "/does/not/exist.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			os.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestLoad_WithYAMLFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "rid.yaml")
	content := `
nats_url: nats://file:4222
http_addr: ":9090"
scan_window: 3s
auto_start: true
sources:
  - "localhost:30003"
  - " radio:30003 "
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	os.Setenv("RID_CONFIG", path)
	os.Setenv("HTTP_ADDR", ":7070")

	config, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if config.NATSURL != "nats://file:4222" {
		t.Errorf("Expected NATSURL from file, got %s", config.NATSURL)
	}
	// Environment wins over the file.
	if config.HTTPAddr != ":7070" {
		t.Errorf("Expected HTTPAddr = :7070, got %s", config.HTTPAddr)
	}
	if config.ScanWindow != 3*time.Second {
		t.Errorf("Expected ScanWindow = 3s, got %s", config.ScanWindow)
	}
	if !config.AutoStart {
		t.Error("Expected AutoStart from file")
	}
	expected := []string{"localhost:30003", "radio:30003"}
	if len(config.Sources) != len(expected) {
		t.Fatalf("Expected %d sources, got %v", len(expected), config.Sources)
	}
	for i, source := range expected {
		if config.Sources[i] != source {
			t.Errorf("Expected source[%d] = %s, got %s", i, source, config.Sources[i])
		}
	}
}

func TestLoad_WithBrokenYAMLFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "rid.yaml")
	if err := os.WriteFile(path, []byte("scan_window: [oops"), 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	os.Setenv("RID_CONFIG", path)

	if _, err := Load(); err == nil {
		t.Error("Expected error for malformed YAML")
	}
}

func TestRequireSources(t *testing.T) {
	tests := []struct {
		name    string
		sources string
		want    []string
		wantErr bool
	}{
		{"missing", "", nil, true},
		{"only commas", " , ,", nil, true},
		{"single", "source1", []string{"source1"}, false},
		{"several", "source1,source2,source3", []string{"source1", "source2", "source3"}, false},
		{"spaces", " source1 , source2 ", []string{"source1", "source2"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			os.Setenv("SOURCES", tt.sources)

			config, err := Load()
			if err != nil {
				t.Fatalf("Load() failed: %v", err)
			}
			err = config.RequireSources()
			if (err != nil) != tt.wantErr {
				t.Fatalf("RequireSources() error = %v, wantErr %v", err, tt.wantErr)
			}
			if strings.Join(config.Sources, "|") != strings.Join(tt.want, "|") {
				t.Errorf("Expected sources %v, got %v", tt.want, config.Sources)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	defer log.SetDefault(log.Default())
	var buf bytes.Buffer

	logger := newLogger(&buf, "tracker", "warn")
	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Expected info to be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "tracker") || !strings.Contains(out, "shown") {
		t.Errorf("Expected prefixed warning, got %q", out)
	}
}

func TestNewLogger_BadLevel(t *testing.T) {
	defer log.SetDefault(log.Default())
	var buf bytes.Buffer

	logger := newLogger(&buf, "sensor", "loud")
	if logger.GetLevel() != log.InfoLevel {
		t.Errorf("Expected info level fallback, got %v", logger.GetLevel())
	}
	if !strings.Contains(buf.String(), "falling back") {
		t.Errorf("Expected fallback warning, got %q", buf.String())
	}
}
