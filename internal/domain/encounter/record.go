package encounter

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// SchemaVersion is written into every Record. Readers accept any record of
// the same major version.
const SchemaVersion = "1.0"

// Record is the interchange shape of a finished encounter as stored and
// handed to reporting. Field names are part of the format.
type Record struct {
	SchemaVersion string         `json:"schema_version"`
	ID            string         `json:"id"`
	StartedAt     time.Time      `json:"started_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	Status        Status         `json:"status"`
	Zone          string         `json:"zone"`
	PartyScope    PartyScope     `json:"party_scope"`
	Server        string         `json:"server,omitempty"`
	Actor         string         `json:"actor,omitempty"`
	BucketSeconds int            `json:"bucket_seconds"`
	Adversary     *Participant   `json:"adversary"`
	Participants  []*Participant `json:"participants"`
	Members       []string       `json:"members,omitempty"`
}

// Record snapshots the encounter. Participants are shared, so the encounter
// must not be mutated afterwards.
func (e *Encounter) Record() Record {
	return Record{
		SchemaVersion: SchemaVersion,
		ID:            e.ID,
		StartedAt:     e.StartedAt,
		UpdatedAt:     e.UpdatedAt,
		Status:        e.Status,
		Zone:          e.Zone,
		PartyScope:    e.Scope,
		Server:        e.Server,
		Actor:         e.Actor,
		BucketSeconds: BucketSeconds,
		Adversary:     e.Adversary,
		Participants:  append([]*Participant(nil), e.participants...),
		Members:       e.Members,
	}
}

// TotalDamage sums the outbound damage of every participant.
func (r Record) TotalDamage() int64 {
	var total int64
	for _, p := range r.Participants {
		total += p.OutboundHitSum
	}
	return total
}

// FromRecord rebuilds a finished encounter from its record so it can be
// merged again. Participants are copied, so r may be shared with other
// readers.
func FromRecord(r Record) (*Encounter, error) {
	major, _, _ := strings.Cut(r.SchemaVersion, ".")
	want, _, _ := strings.Cut(SchemaVersion, ".")
	switch {
	case major != want:
		return nil, fmt.Errorf("%w: schema version %q", ErrInvalidRecord, r.SchemaVersion)
	case r.ID == "":
		return nil, fmt.Errorf("%w: missing id", ErrInvalidRecord)
	case r.Status == Active:
		return nil, fmt.Errorf("%w: %s is still active", ErrInvalidRecord, r.ID)
	case r.Adversary == nil || r.Adversary.Name == "":
		return nil, fmt.Errorf("%w: %s has no adversary", ErrInvalidRecord, r.ID)
	case r.BucketSeconds != 0 && r.BucketSeconds != BucketSeconds:
		return nil, fmt.Errorf("%w: %s uses %ds buckets", ErrInvalidRecord, r.ID, r.BucketSeconds)
	}

	e := &Encounter{
		ID:        r.ID,
		StartedAt: r.StartedAt,
		UpdatedAt: r.UpdatedAt,
		Status:    r.Status,
		Zone:      r.Zone,
		Scope:     r.PartyScope,
		Server:    r.Server,
		Actor:     r.Actor,
		Adversary: r.Adversary.clone(),
		Members:   slices.Clone(r.Members),
		byName:    make(map[string]*Participant, len(r.Participants)),
	}
	for _, p := range r.Participants {
		if p == nil || p.Name == "" {
			return nil, fmt.Errorf("%w: %s has an unnamed participant", ErrInvalidRecord, r.ID)
		}
		if _, dup := e.byName[p.Name]; dup {
			return nil, fmt.Errorf("%w: %s lists %s twice", ErrInvalidRecord, r.ID, p.Name)
		}
		p = p.clone()
		e.byName[p.Name] = p
		e.participants = append(e.participants, p)
	}
	return e, nil
}
