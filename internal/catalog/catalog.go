// Package catalog keeps the latest decoded Remote-ID message of every kind
// for every broadcaster seen in the current scan session.
//
// An Aggregator is owned by a single goroutine. It does no locking; callers
// that read it from elsewhere must marshal those reads onto the owner.
package catalog

import (
	"sort"

	"github.com/saviobatista/rid-tracker/internal/remoteid"
)

// Entries maps message kinds to the latest message of that kind.
type Entries map[remoteid.MessageKind]remoteid.Message

// Catalog maps broadcaster ids to their entries.
type Catalog map[string]Entries

// Aggregator owns the live catalog.
type Aggregator struct {
	catalog Catalog
	touched map[string]uint64
	seq     uint64
}

// New creates an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{
		catalog: make(Catalog),
		touched: make(map[string]uint64),
	}
}

// Ingest stores msgs under broadcaster id. A message replaces any earlier
// message of the same kind for that broadcaster; nothing is merged. Nil
// messages are skipped.
func (a *Aggregator) Ingest(id string, msgs []remoteid.Message) {
	msgs = remoteid.Present(msgs)
	if len(msgs) == 0 {
		return
	}

	entries, ok := a.catalog[id]
	if !ok {
		entries = make(Entries)
		a.catalog[id] = entries
	}
	for _, msg := range msgs {
		entries[msg.Kind()] = msg
	}

	a.seq++
	a.touched[id] = a.seq
}

// Get returns the latest message of kind for broadcaster id.
func (a *Aggregator) Get(id string, kind remoteid.MessageKind) (remoteid.Message, bool) {
	entries, ok := a.catalog[id]
	if !ok {
		return nil, false
	}
	msg, ok := entries[kind]
	return msg, ok
}

// Snapshot returns a copy of the catalog. The maps are fresh; the messages
// are shared and must be treated as read-only.
func (a *Aggregator) Snapshot() Catalog {
	out := make(Catalog, len(a.catalog))
	for id, entries := range a.catalog {
		cp := make(Entries, len(entries))
		for kind, msg := range entries {
			cp[kind] = msg
		}
		out[id] = cp
	}
	return out
}

// Broadcasters lists broadcaster ids, most recently ingested first.
func (a *Aggregator) Broadcasters() []string {
	ids := make([]string, 0, len(a.catalog))
	for id := range a.catalog {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return a.touched[ids[i]] > a.touched[ids[j]]
	})
	return ids
}

// Latest returns the most recently ingested broadcaster.
func (a *Aggregator) Latest() (string, bool) {
	var (
		best string
		seq  uint64
	)
	for id, s := range a.touched {
		if s > seq {
			best, seq = id, s
		}
	}
	return best, seq > 0
}

// Len returns the number of broadcasters.
func (a *Aggregator) Len() int {
	return len(a.catalog)
}

// Clear empties the catalog.
func (a *Aggregator) Clear() {
	a.catalog = make(Catalog)
	a.touched = make(map[string]uint64)
	a.seq = 0
}

// Kinds lists the kinds present in entries in ascending code order.
func (e Entries) Kinds() []remoteid.MessageKind {
	kinds := make([]remoteid.MessageKind, 0, len(e))
	for k := range e {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
