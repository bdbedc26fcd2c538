package db

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/saviobatista/rid-tracker/internal/types"
)

// Store is the subset of Client the Writer needs.
type Store interface {
	CreateSession(s *types.ScanSession) error
	EndSession(sessionID string, endedAt time.Time) error
	StoreStatusEvent(e *types.StatusEvent) error
	StoreLocationReport(r *types.LocationReport) error
}

type sessionEnd struct {
	id string
	at time.Time
}

// Writer persists tracker records from its own goroutine. Status lines and
// location reports are dropped when the queue is full; session boundaries
// wait up to boundaryWait for room.
type Writer struct {
	store        Store
	queue        chan interface{}
	boundaryWait time.Duration
	logger       *log.Logger
}

// NewWriter creates a Writer with room for size pending records.
func NewWriter(store Store, size int) *Writer {
	return &Writer{
		store:        store,
		queue:        make(chan interface{}, size),
		boundaryWait: time.Second,
		logger:       log.Default().WithPrefix("db"),
	}
}

// SessionStarted queues a new scan session row.
func (w *Writer) SessionStarted(s *types.ScanSession) { w.enqueueBoundary(s) }

// SessionEnded queues the end of a scan session.
func (w *Writer) SessionEnded(id string, at time.Time) {
	w.enqueueBoundary(sessionEnd{id: id, at: at})
}

// Status queues a status line.
func (w *Writer) Status(e *types.StatusEvent) { w.enqueue(e) }

// Location queues a location report.
func (w *Writer) Location(r *types.LocationReport) { w.enqueue(r) }

func (w *Writer) enqueue(rec interface{}) {
	select {
	case w.queue <- rec:
	default:
		w.logger.Warn("write queue full, dropping record")
	}
}

func (w *Writer) enqueueBoundary(rec interface{}) {
	timer := time.NewTimer(w.boundaryWait)
	defer timer.Stop()
	select {
	case w.queue <- rec:
	case <-timer.C:
		w.logger.Error("write queue full, dropping session record", "record", fmt.Sprintf("%T", rec))
	}
}

// Run writes queued records until ctx is done, then flushes what is left.
func (w *Writer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.flush()
			return
		case rec := <-w.queue:
			w.write(rec)
		}
	}
}

func (w *Writer) flush() {
	for {
		select {
		case rec := <-w.queue:
			w.write(rec)
		default:
			return
		}
	}
}

func (w *Writer) write(rec interface{}) {
	var err error
	switch r := rec.(type) {
	case *types.ScanSession:
		err = w.store.CreateSession(r)
	case sessionEnd:
		err = w.store.EndSession(r.id, r.at)
	case *types.StatusEvent:
		err = w.store.StoreStatusEvent(r)
	case *types.LocationReport:
		err = w.store.StoreLocationReport(r)
	}
	if err != nil {
		w.logger.Error("failed to write record", "record", fmt.Sprintf("%T", rec), "err", err)
	}
}
