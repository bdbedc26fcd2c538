package stats

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/saviobatista/rid-tracker/internal/remoteid"
)

// UnknownKindSlot is the KindCounts slot shared by every unrecognised type code.
const UnknownKindSlot = 6

// Store persists a statistics snapshot; *db.Client satisfies it.
type Store interface {
	StoreSystemStats(stats map[string]interface{}) error
}

// Stats tracks scan and decode statistics
type Stats struct {
	ScansStarted    uint64
	ScansCompleted  uint64
	ScansFailed     uint64
	Advertisements  uint64
	DecodedMessages uint64
	DecodeAnomalies uint64

	// Indexed by message kind code; UnknownKindSlot collects the rest.
	KindCounts [7]uint64

	ActiveBroadcasters uint64

	StartTime    time.Time
	LastScanTime time.Time

	store  Store
	logger *log.Logger

	mu sync.RWMutex
}

// New creates a new Stats instance
func New() *Stats {
	return &Stats{
		StartTime: time.Now(),
		logger:    log.Default().WithPrefix("stats"),
	}
}

// SetStore sets the persistence backend
func (s *Stats) SetStore(store Store) {
	s.mu.Lock()
	s.store = store
	s.mu.Unlock()
}

// Persist stores the current statistics
func (s *Stats) Persist() error {
	s.mu.RLock()
	store := s.store
	s.mu.RUnlock()

	if store == nil {
		return fmt.Errorf("statistics store not set")
	}
	return store.StoreSystemStats(s.GetStats())
}

// IncrementScansStarted counts a session start.
func (s *Stats) IncrementScansStarted() {
	atomic.AddUint64(&s.ScansStarted, 1)
}

// IncrementScansCompleted counts a completed scan.
func (s *Stats) IncrementScansCompleted() {
	atomic.AddUint64(&s.ScansCompleted, 1)
	s.mu.Lock()
	s.LastScanTime = time.Now()
	s.mu.Unlock()
}

// IncrementScansFailed counts a failed scan or refused scan request.
func (s *Stats) IncrementScansFailed() {
	atomic.AddUint64(&s.ScansFailed, 1)
}

// IncrementAdvertisements counts advertisements handed to the decoder.
func (s *Stats) IncrementAdvertisements() {
	atomic.AddUint64(&s.Advertisements, 1)
}

// IncrementDecodeAnomalies counts advertisements that decoded with an error.
func (s *Stats) IncrementDecodeAnomalies() {
	atomic.AddUint64(&s.DecodeAnomalies, 1)
}

// AddMessages counts decoded messages by kind.
func (s *Stats) AddMessages(msgs []remoteid.Message) {
	for _, msg := range remoteid.Present(msgs) {
		atomic.AddUint64(&s.DecodedMessages, 1)
		slot := int(msg.Kind())
		if !msg.Kind().Known() {
			slot = UnknownKindSlot
		}
		atomic.AddUint64(&s.KindCounts[slot], 1)
	}
}

// SetActiveBroadcasters sets the number of broadcasters in the catalog.
func (s *Stats) SetActiveBroadcasters(count uint64) {
	atomic.StoreUint64(&s.ActiveBroadcasters, count)
}

// GetStats returns a copy of the current statistics
func (s *Stats) GetStats() map[string]interface{} {
	var kinds [7]uint64
	for i := range kinds {
		kinds[i] = atomic.LoadUint64(&s.KindCounts[i])
	}

	s.mu.RLock()
	lastScan := s.LastScanTime
	s.mu.RUnlock()

	return map[string]interface{}{
		"scans_started":       atomic.LoadUint64(&s.ScansStarted),
		"scans_completed":     atomic.LoadUint64(&s.ScansCompleted),
		"scans_failed":        atomic.LoadUint64(&s.ScansFailed),
		"advertisements":      atomic.LoadUint64(&s.Advertisements),
		"decoded_messages":    atomic.LoadUint64(&s.DecodedMessages),
		"decode_anomalies":    atomic.LoadUint64(&s.DecodeAnomalies),
		"kind_counts":         kinds,
		"active_broadcasters": atomic.LoadUint64(&s.ActiveBroadcasters),
		"last_scan_time":      lastScan,
		"uptime":              time.Since(s.StartTime),
	}
}

// String returns a string representation of the statistics
func (s *Stats) String() string {
	stats := s.GetStats()
	return fmt.Sprintf(
		"Scans Started: %d\n"+
			"Scans Completed: %d\n"+
			"Scans Failed: %d\n"+
			"Advertisements: %d\n"+
			"Decoded Messages: %d\n"+
			"Decode Anomalies: %d\n"+
			"Active Broadcasters: %d\n"+
			"Last Scan Time: %s\n"+
			"Uptime: %s",
		stats["scans_started"],
		stats["scans_completed"],
		stats["scans_failed"],
		stats["advertisements"],
		stats["decoded_messages"],
		stats["decode_anomalies"],
		stats["active_broadcasters"],
		stats["last_scan_time"],
		stats["uptime"],
	)
}

// StartPersistence persists statistics every interval until ctx is done
func (s *Stats) StartPersistence(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := s.Persist(); err != nil {
				s.logger.Error("failed to persist final statistics", "err", err)
			}
			return
		case <-ticker.C:
			if err := s.Persist(); err != nil {
				s.logger.Error("failed to persist statistics", "err", err)
			}
		}
	}
}
