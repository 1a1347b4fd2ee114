// Package buffs remembers which beneficial and detrimental effects landed on
// which actor and when.
package buffs

import (
	"sort"
	"time"
)

// Kind separates beneficial from detrimental effects.
type Kind int

// Effect kinds.
const (
	Beneficial Kind = iota
	Detrimental
)

func (k Kind) String() string {
	if k == Detrimental {
		return "detrimental"
	}
	return "beneficial"
}

// Landing is one effect observed landing on an actor.
type Landing struct {
	Spell string    `json:"spell"`
	Kind  Kind      `json:"kind"`
	At    time.Time `json:"at"`
}

// Registry keeps landings per actor in time order.
type Registry struct {
	byActor map[string][]Landing
	// retention bounds how far back landings are kept; zero keeps everything.
	retention time.Duration
}

// Option configures a Registry.
type Option func(*Registry)

// WithRetention drops landings older than d relative to the newest landing
// recorded for the same actor.
func WithRetention(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.retention = d
		}
	}
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{byActor: make(map[string][]Landing)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record notes that spell landed on actor at t.
func (r *Registry) Record(actor, spell string, kind Kind, t time.Time) {
	if actor == "" || spell == "" {
		return
	}
	list := r.byActor[actor]
	l := Landing{Spell: spell, Kind: kind, At: t}

	// Events are mostly in order; fall back to an insert for stragglers.
	if n := len(list); n == 0 || !t.Before(list[n-1].At) {
		list = append(list, l)
	} else {
		i := sort.Search(n, func(i int) bool { return list[i].At.After(t) })
		list = append(list, Landing{})
		copy(list[i+1:], list[i:])
		list[i] = l
	}

	if r.retention > 0 {
		cutoff := list[len(list)-1].At.Add(-r.retention)
		drop := sort.Search(len(list), func(i int) bool { return !list[i].At.Before(cutoff) })
		list = list[drop:]
	}
	r.byActor[actor] = list
}

// Landed returns the landings on actor within [from, to], oldest first.
func (r *Registry) Landed(actor string, from, to time.Time) []Landing {
	list := r.byActor[actor]
	start := sort.Search(len(list), func(i int) bool { return !list[i].At.Before(from) })
	var out []Landing
	for _, l := range list[start:] {
		if l.At.After(to) {
			break
		}
		out = append(out, l)
	}
	return out
}

// Reset forgets every landing.
func (r *Registry) Reset() {
	r.byActor = make(map[string][]Landing)
}
