// Package repository stores finished encounter records and ranks
// participants by their best single-encounter damage.
package repository

import (
	"context"
	"fmt"

	"github.com/okian/fightlog/internal/domain/encounter"
)

// Entry is one row of the damage ranking.
type Entry struct {
	Rank        int    `json:"rank"`
	Name        string `json:"name"`
	Damage      int64  `json:"damage"`
	EncounterID string `json:"encounter_id"`
	Adversary   string `json:"adversary"`
}

// Store provides read/write access to finished encounters.
type Store interface {
	// Save stores a finished record. Saving an id twice returns
	// ErrAlreadyExists.
	Save(ctx context.Context, rec encounter.Record) error

	// Get returns the record with id or ErrNotFound.
	Get(ctx context.Context, id string) (encounter.Record, error)

	// List returns up to limit records, most recently updated first.
	List(ctx context.Context, limit int) ([]encounter.Record, error)

	// TopDamage returns the n participants with the highest damage in a
	// single stored encounter.
	TopDamage(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) int

	Close() error
}

// Validate rejects records a store cannot key or rank.
func Validate(rec encounter.Record) error {
	switch {
	case rec.ID == "":
		return fmt.Errorf("%w: missing id", encounter.ErrInvalidRecord)
	case rec.Status == encounter.Active:
		return fmt.Errorf("%w: %s is still active", encounter.ErrInvalidRecord, rec.ID)
	case rec.Adversary == nil:
		return fmt.Errorf("%w: %s has no adversary", encounter.ErrInvalidRecord, rec.ID)
	}
	return nil
}

// AssignRanks numbers entries already sorted by damage. Equal damage shares
// a rank and the next distinct damage takes the following rank.
func AssignRanks(entries []Entry) {
	rank := 0
	for i := range entries {
		if i == 0 || entries[i].Damage != entries[i-1].Damage {
			rank++
		}
		entries[i].Rank = rank
	}
}
