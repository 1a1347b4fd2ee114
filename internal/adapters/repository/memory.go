package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/okian/fightlog/internal/domain/encounter"
	"github.com/okian/fightlog/pkg/metrics"
)

const memoryDriver = "memory"

// MemoryStore keeps records in process memory.
//
// The damage ranking covers every record saved since construction,
// including records later evicted by the limit.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]encounter.Record
	order   []string
	limit   int
	ranking *ranking
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		byID:    make(map[string]encounter.Record),
		ranking: newRanking(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save implements Store.Save.
func (s *MemoryStore) Save(ctx context.Context, rec encounter.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := Validate(rec); err != nil {
		metrics.RecordStoreError(memoryDriver)
		return fmt.Errorf("save: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[rec.ID]; ok {
		metrics.RecordStoreError(memoryDriver)
		return fmt.Errorf("save %s: %w", rec.ID, ErrAlreadyExists)
	}
	s.byID[rec.ID] = rec
	s.order = append(s.order, rec.ID)
	for _, p := range rec.Participants {
		s.ranking.offer(Entry{Name: p.Name, Damage: p.OutboundHitSum, EncounterID: rec.ID, Adversary: rec.Adversary.Name})
	}
	if s.limit > 0 && len(s.order) > s.limit {
		evict := s.order[:len(s.order)-s.limit]
		for _, id := range evict {
			delete(s.byID, id)
		}
		s.order = slices.Clone(s.order[len(evict):])
	}
	metrics.RecordRecordStored(memoryDriver)
	return nil
}

// Get implements Store.Get.
func (s *MemoryStore) Get(_ context.Context, id string) (encounter.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	if !ok {
		return encounter.Record{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	return rec, nil
}

// List implements Store.List.
func (s *MemoryStore) List(_ context.Context, limit int) ([]encounter.Record, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	out := make([]encounter.Record, 0, len(s.byID))
	for _, rec := range s.byID {
		out = append(out, rec)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, compareRecent)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// compareRecent orders records by UpdatedAt descending, then id.
func compareRecent(a, b encounter.Record) int {
	if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
		return c
	}
	if a.ID < b.ID {
		return -1
	}
	if a.ID > b.ID {
		return 1
	}
	return 0
}

// TopDamage implements Store.TopDamage.
func (s *MemoryStore) TopDamage(_ context.Context, n int) ([]Entry, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ranking.top(n), nil
}

// Count implements Store.Count.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Close implements Store.Close.
func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
