package redis

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/saviobatista/rid-tracker/internal/remoteid"
)

type mirrorOp struct {
	epoch uint64
	id    string
	msgs  []remoteid.Message
}

// Mirror is a session sink that replays catalog updates into Redis from its
// own goroutine, so the caller never waits on the network.
//
// Every Clear starts a new epoch. Queued updates from an older epoch are
// discarded, and a pending clear is applied before anything newer, so a clear
// cannot be lost to a full queue.
type Mirror struct {
	client  *Client
	ops     chan mirrorOp
	wake    chan struct{}
	timeout time.Duration
	logger  *log.Logger

	mu    sync.Mutex
	epoch uint64

	// cleared is the epoch last cleared in Redis. Owned by Run.
	cleared uint64
}

// NewMirror creates a Mirror with room for queue pending updates.
func NewMirror(client *Client, queue int) *Mirror {
	return &Mirror{
		client:  client,
		ops:     make(chan mirrorOp, queue),
		wake:    make(chan struct{}, 1),
		timeout: 2 * time.Second,
		logger:  log.Default().WithPrefix("redis"),
	}
}

// Ingest queues msgs for broadcaster id. Nil messages are skipped; updates are
// dropped when the queue is full.
func (m *Mirror) Ingest(id string, msgs []remoteid.Message) {
	msgs = remoteid.Present(msgs)
	if len(msgs) == 0 {
		return
	}

	select {
	case m.ops <- mirrorOp{epoch: m.currentEpoch(), id: id, msgs: msgs}:
	default:
		m.logger.Warn("mirror queue full, dropping update", "broadcaster", id)
	}
}

// Clear schedules removal of every mirrored broadcaster. It never blocks and
// is never dropped.
func (m *Mirror) Clear() {
	m.mu.Lock()
	m.epoch++
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Mirror) currentEpoch() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}

// Run applies queued updates until ctx is done, then applies what is still
// queued. Writes are bounded by the mirror timeout, not by ctx, so shutdown
// does not abort them.
func (m *Mirror) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			m.drain(ctx)
			return
		case <-m.wake:
			m.syncClear(ctx)
		case op := <-m.ops:
			m.syncClear(ctx)
			m.apply(ctx, op)
		}
	}
}

func (m *Mirror) drain(ctx context.Context) {
	for {
		select {
		case op := <-m.ops:
			m.syncClear(ctx)
			m.apply(ctx, op)
		default:
			m.syncClear(ctx)
			return
		}
	}
}

func (m *Mirror) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
}

// syncClear clears Redis when a Clear happened since the last one applied. A
// failed clear is retried on the next update.
func (m *Mirror) syncClear(ctx context.Context) {
	target := m.currentEpoch()
	if target == m.cleared {
		return
	}

	ctx, cancel := m.writeContext(ctx)
	defer cancel()
	if err := m.client.Clear(ctx); err != nil {
		m.logger.Error("mirror clear failed", "err", err)
		return
	}
	m.cleared = target
}

func (m *Mirror) apply(ctx context.Context, op mirrorOp) {
	if op.epoch != m.currentEpoch() {
		return
	}

	ctx, cancel := m.writeContext(ctx)
	defer cancel()
	if err := m.client.StoreMessages(ctx, op.id, op.msgs); err != nil {
		m.logger.Error("mirror update failed", "err", err)
	}
}
