package stats

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/saviobatista/rid-tracker/internal/remoteid"
)

type fakeStore struct {
	mu    sync.Mutex
	calls []map[string]interface{}
	err   error
}

func (f *fakeStore) StoreSystemStats(stats map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, stats)
	return f.err
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestNew(t *testing.T) {
	stats := New()
	if stats == nil {
		t.Fatal("New() returned nil")
	}
	if stats.ScansCompleted != 0 || stats.DecodedMessages != 0 {
		t.Error("Expected counters to start at zero")
	}
	if time.Since(stats.StartTime) > 5*time.Second {
		t.Error("StartTime should be recent")
	}
	if !stats.LastScanTime.IsZero() {
		t.Error("LastScanTime should be unset")
	}
}

func TestCounters(t *testing.T) {
	stats := New()

	stats.IncrementScansStarted()
	stats.IncrementScansCompleted()
	stats.IncrementScansCompleted()
	stats.IncrementScansFailed()
	stats.IncrementAdvertisements()
	stats.IncrementDecodeAnomalies()
	stats.SetActiveBroadcasters(4)

	got := stats.GetStats()
	tests := []struct {
		key  string
		want uint64
	}{
		{"scans_started", 1},
		{"scans_completed", 2},
		{"scans_failed", 1},
		{"advertisements", 1},
		{"decode_anomalies", 1},
		{"active_broadcasters", 4},
	}
	for _, tt := range tests {
		if got[tt.key].(uint64) != tt.want {
			t.Errorf("%s: expected %d, got %v", tt.key, tt.want, got[tt.key])
		}
	}
	if got["last_scan_time"].(time.Time).IsZero() {
		t.Error("Expected last scan time to be set after a completed scan")
	}
}

func TestAddMessages(t *testing.T) {
	stats := New()
	stats.AddMessages([]remoteid.Message{
		&remoteid.BasicID{},
		&remoteid.Location{},
		&remoteid.Location{},
		&remoteid.Raw{TypeCode: uint8(remoteid.KindAuthentication)},
		&remoteid.Raw{TypeCode: 0x0A},
		&remoteid.Raw{TypeCode: 0x0C},
		nil,
		(*remoteid.Raw)(nil),
	})

	if stats.DecodedMessages != 6 {
		t.Errorf("Expected 6 decoded messages, got %d", stats.DecodedMessages)
	}
	want := [7]uint64{1, 2, 1, 0, 0, 0, 2}
	if stats.KindCounts != want {
		t.Errorf("Expected kind counts %v, got %v", want, stats.KindCounts)
	}
}

func TestConcurrentIncrements(t *testing.T) {
	stats := New()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				stats.IncrementAdvertisements()
				stats.IncrementScansCompleted()
				stats.AddMessages([]remoteid.Message{&remoteid.SelfID{}})
			}
		}()
	}
	wg.Wait()

	got := stats.GetStats()
	if got["advertisements"].(uint64) != 1000 {
		t.Errorf("Expected 1000 advertisements, got %v", got["advertisements"])
	}
	if got["kind_counts"].([7]uint64)[remoteid.KindSelfID] != 1000 {
		t.Errorf("Expected 1000 self id messages, got %v", got["kind_counts"])
	}
}

func TestPersist(t *testing.T) {
	stats := New()
	if err := stats.Persist(); err == nil {
		t.Error("Expected error without a store")
	}

	store := &fakeStore{}
	stats.SetStore(store)
	stats.IncrementScansCompleted()
	if err := stats.Persist(); err != nil {
		t.Fatalf("Persist() failed: %v", err)
	}
	if store.calls[0]["scans_completed"].(uint64) != 1 {
		t.Errorf("Unexpected persisted stats: %v", store.calls[0])
	}

	store.err = errors.New("db down")
	if err := stats.Persist(); err == nil {
		t.Error("Expected store error to be returned")
	}
}

func TestStartPersistence(t *testing.T) {
	stats := New()
	store := &fakeStore{}
	stats.SetStore(store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		stats.StartPersistence(ctx, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(35 * time.Millisecond)
	cancel()
	<-done

	// Ticks plus the final flush.
	if store.count() < 2 {
		t.Errorf("Expected at least 2 persists, got %d", store.count())
	}
}

func TestString(t *testing.T) {
	stats := New()
	stats.IncrementScansFailed()
	s := stats.String()
	for _, want := range []string{"Scans Failed: 1", "Decoded Messages: 0", "Uptime:"} {
		if !strings.Contains(s, want) {
			t.Errorf("Expected %q in %q", want, s)
		}
	}
}

func TestCollector(t *testing.T) {
	stats := New()
	stats.IncrementScansCompleted()
	stats.IncrementScansCompleted()
	stats.AddMessages([]remoteid.Message{&remoteid.Location{}, &remoteid.Raw{TypeCode: 0x0B}})
	stats.SetActiveBroadcasters(3)

	reg := prometheus.NewRegistry()
	if err := reg.Register(NewCollector(stats)); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() failed: %v", err)
	}

	values := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range m.GetLabel() {
				key += "/" + lp.GetValue()
			}
			if m.GetCounter() != nil {
				values[key] = m.GetCounter().GetValue()
			} else if m.GetGauge() != nil {
				values[key] = m.GetGauge().GetValue()
			}
		}
	}

	checks := map[string]float64{
		"rid_scans_total/completed":   2,
		"rid_scans_total/failed":      0,
		"rid_messages_total/LOCATION": 1,
		"rid_messages_total/UNKNOWN":  1,
		"rid_active_broadcasters":     3,
	}
	for key, want := range checks {
		if got, ok := values[key]; !ok || got != want {
			t.Errorf("%s: expected %v, got %v (present=%v)", key, want, got, ok)
		}
	}
}
