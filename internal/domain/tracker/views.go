package tracker

import (
	"time"

	"github.com/okian/fightlog/internal/domain/encounter"
)

// Stats are running counters of the engine.
type Stats struct {
	EventsHandled       int64 `json:"events_handled"`
	EventsDropped       int64 `json:"events_dropped"`
	EventsBuffered      int64 `json:"events_buffered"`
	EventsReplayed      int64 `json:"events_replayed"`
	EncountersStarted   int64 `json:"encounters_started"`
	EncountersFinished  int64 `json:"encounters_finished"`
	EncountersDiscarded int64 `json:"encounters_discarded"`
	RaidsFinished       int64 `json:"raids_finished"`
	Pending             int   `json:"pending"`
	Active              int   `json:"active"`
	ActiveRaids         int   `json:"active_raids"`
	KnownActors         int   `json:"known_actors"`
}

// EncounterView is a read-only summary of an active encounter.
type EncounterView struct {
	ID           string               `json:"id"`
	Adversary    string               `json:"adversary"`
	Zone         string               `json:"zone"`
	Scope        encounter.PartyScope `json:"party_scope"`
	StartedAt    time.Time            `json:"started_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
	DamageTaken  int64                `json:"damage_taken"`
	Participants int                  `json:"participants"`
}

// RaidView is a read-only summary of an active raid.
type RaidView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Zone      string    `json:"zone"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Members   []string  `json:"members"`
}

// Stats returns a copy of the counters.
func (e *Engine) Stats() Stats {
	s := e.stats
	s.Pending = len(e.pending)
	s.Active = len(e.active)
	s.ActiveRaids = len(e.raids)
	s.KnownActors = e.identity.Len()
	return s
}

// ActiveEncounters summarizes active encounters, newest first.
func (e *Engine) ActiveEncounters() []EncounterView {
	list := e.byCreation()
	out := make([]EncounterView, 0, len(list))
	for _, tr := range list {
		out = append(out, EncounterView{
			ID:           tr.enc.ID,
			Adversary:    tr.enc.Adversary.Name,
			Zone:         tr.enc.Zone,
			Scope:        tr.enc.Scope,
			StartedAt:    tr.enc.StartedAt,
			UpdatedAt:    tr.enc.UpdatedAt,
			DamageTaken:  tr.enc.DamageTaken(),
			Participants: len(tr.enc.Participants()),
		})
	}
	return out
}

// ActiveRaids summarizes active raids, oldest first.
func (e *Engine) ActiveRaids() []RaidView {
	raids := e.activeRaids()
	out := make([]RaidView, 0, len(raids))
	for _, r := range raids {
		v := RaidView{
			ID:        r.ID,
			Name:      r.Template.Name,
			Zone:      r.Template.Zone,
			StartedAt: r.StartedAt,
			UpdatedAt: r.UpdatedAt,
		}
		for _, m := range r.Members() {
			v.Members = append(v.Members, m.ID)
		}
		out = append(out, v)
	}
	return out
}
