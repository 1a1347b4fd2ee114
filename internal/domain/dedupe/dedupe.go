// Package dedupe tracks idempotency keys so a retried ingest batch is
// accepted once.
package dedupe

import (
	"context"
	"sync"
)

const defaultMaxSize = 50000

// Deduper records seen keys.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so a batch that failed after being recorded can
	// be retried with the same key.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// slot is a recorded key in arrival order. A slot whose seq no longer
// matches the map entry was unrecorded and is skipped on eviction.
type slot struct {
	id  string
	seq uint64
}

// inMemoryDeduper evicts the oldest key once maxSize keys are held. A
// maxSize of zero or less keeps every key.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]uint64
	order   []slot
	front   int
	seq     uint64
	maxSize int
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]uint64)
	return d
}

// SeenAndRecord implements Deduper.
func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}
	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		d.evictOldest()
	}
	d.seq++
	d.seen[id] = d.seq
	if d.maxSize > 0 {
		d.order = append(d.order, slot{id: id, seq: d.seq})
		d.compact()
	}
	return false
}

// Unrecord implements Deduper.
func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, id)
}

// Size returns the number of recorded keys.
func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}

// evictOldest drops the oldest live key. Must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	for d.front < len(d.order) {
		s := d.order[d.front]
		d.order[d.front] = slot{}
		d.front++
		if seq, ok := d.seen[s.id]; ok && seq == s.seq {
			delete(d.seen, s.id)
			return
		}
	}
}

// compact reclaims the consumed prefix and stale slots once they outweigh
// the live keys. Must be called with d.mu held.
func (d *inMemoryDeduper) compact() {
	if len(d.order)-d.front <= 2*d.maxSize && d.front <= len(d.order)/2 {
		return
	}
	live := make([]slot, 0, len(d.seen))
	for _, s := range d.order[d.front:] {
		if seq, ok := d.seen[s.id]; ok && seq == s.seq {
			live = append(live, s)
		}
	}
	d.order, d.front = live, 0
}
