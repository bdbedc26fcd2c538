package capture

import (
	"net"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	sources := []string{"localhost:30003", "localhost:30004"}
	capture := New(sources)

	if capture == nil {
		t.Fatal("New() returned nil")
	}
	if len(capture.sources) != 2 {
		t.Errorf("Expected 2 sources, got %d", len(capture.sources))
	}
	if capture.conns == nil {
		t.Error("Expected conns map to be initialized")
	}
	if cap(capture.msgChan) != 1000 {
		t.Errorf("Expected message buffer of 1000, got %d", cap(capture.msgChan))
	}
	if capture.reconnectDelay != 5*time.Second {
		t.Errorf("Expected default reconnect delay of 5s, got %s", capture.reconnectDelay)
	}
}

func TestCapture_StartAndStopWithoutListener(t *testing.T) {
	capture := New([]string{"127.0.0.1:1"})
	capture.SetReconnectDelay(10 * time.Millisecond)

	if err := capture.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		capture.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return while retrying")
	}

	if _, ok := <-capture.Messages(); ok {
		t.Error("Expected message channel to be closed")
	}
}

func TestCapture_StopTwice(t *testing.T) {
	capture := New(nil)
	if err := capture.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	capture.Stop()
	capture.Stop()
}

func TestCapture_HandleConnectionError(t *testing.T) {
	capture := New(nil)
	capture.SetReconnectDelay(time.Millisecond)

	tests := []struct {
		name           string
		connected      bool
		disconnectTime time.Time
		wantSetTime    bool
	}{
		{"first failure", false, time.Time{}, false},
		{"drop after connect", true, time.Time{}, true},
		{"keeps earlier drop", true, time.Now().Add(-time.Minute), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			connected, disconnectTime := capture.handleConnectionError(tt.connected, tt.disconnectTime)
			if connected {
				t.Error("Expected connected = false")
			}
			if disconnectTime.IsZero() == tt.wantSetTime {
				t.Errorf("Unexpected disconnect time %v", disconnectTime)
			}
			if !tt.disconnectTime.IsZero() && !disconnectTime.Equal(tt.disconnectTime) {
				t.Error("Expected earlier disconnect time to be kept")
			}
		})
	}
}

func TestCapture_HandleSuccessfulConnection(t *testing.T) {
	capture := New(nil)

	tests := []struct {
		name           string
		connected      bool
		disconnectTime time.Time
	}{
		{"first connection", false, time.Time{}},
		{"short hiccup", false, time.Now().Add(-time.Second)},
		{"long outage", false, time.Now().Add(-time.Minute)},
		{"already connected", true, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			connected, disconnectTime := capture.handleSuccessfulConnection(tt.connected, tt.disconnectTime, "src")
			if !connected {
				t.Error("Expected connected = true")
			}
			if !disconnectTime.IsZero() {
				t.Error("Expected disconnect time to be reset")
			}
		})
	}
}

func TestCapture_ConfigureTCPKeepaliveNonTCP(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	// Non TCP connections are left alone.
	New(nil).configureTCPKeepalive(client, "pipe")
}

func TestDeadlineReader(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	r := deadlineReader{conn: client, timeout: 20 * time.Millisecond}
	buf := make([]byte, 8)
	_, err := r.Read(buf)
	netErr, ok := err.(net.Error)
	if !ok || !netErr.Timeout() {
		t.Fatalf("Expected timeout error, got %v", err)
	}
}
