// Package identity classifies every actor seen in the event stream as an
// ally, an adversary, or unknown, and remembers the attributes (class, level,
// pet owner, player flag) later copied onto encounter participants.
//
// The registry is plain state with no eviction; it is reset only when a new
// stream is opened. It is not safe for concurrent use.
package identity

import (
	"strings"
	"time"
)

// Classification is the side an actor is believed to be on.
type Classification int

// Classifications.
const (
	Unknown Classification = iota
	Ally
	Adversary
)

func (c Classification) String() string {
	switch c {
	case Ally:
		return "Ally"
	case Adversary:
		return "Adversary"
	default:
		return "Unknown"
	}
}

// Suffixes recognized by the registry.
const (
	corpseSuffix = "'s corpse"
	petSuffix    = "`s pet"
	warderSuffix = "`s warder"
	mountSuffix  = "`s ward"
)

// Character is everything known about one actor.
type Character struct {
	Name           string
	Classification Classification
	IsPlayer       bool
	Class          string
	Level          int
	// Owner is the name of the owning actor for pets. It is a name
	// reference only; the owner has its own Character.
	Owner          string
	LastAllyDamage time.Time
}

// Registry maps actor names to their Character.
type Registry struct {
	chars map[string]*Character
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{chars: make(map[string]*Character)}
}

// NormalizeName strips a trailing "'s corpse" and reports whether it did.
func NormalizeName(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if base, ok := strings.CutSuffix(name, corpseSuffix); ok && base != "" {
		return base, true
	}
	return name, false
}

// OwnerFromName derives the owner from pet style names such as
// "Aldar`s pet" or "Aldar`s warder".
func OwnerFromName(name string) (string, bool) {
	for _, suffix := range []string{petSuffix, warderSuffix, mountSuffix} {
		if owner, ok := strings.CutSuffix(name, suffix); ok && owner != "" {
			return owner, true
		}
	}
	return "", false
}

// Classify returns the Character for name, creating it on first mention.
// Corpse names resolve to the living actor. Pet style names get their owner
// set and inherit an ally owner's classification.
func (r *Registry) Classify(name string) *Character {
	name, _ = NormalizeName(name)
	if c, ok := r.chars[name]; ok {
		return c
	}
	c := &Character{Name: name}
	r.chars[name] = c
	if owner, ok := OwnerFromName(name); ok {
		r.SetOwner(name, owner)
	}
	return c
}

// Lookup returns the Character for name without creating it.
func (r *Registry) Lookup(name string) (*Character, bool) {
	name, _ = NormalizeName(name)
	c, ok := r.chars[name]
	return c, ok
}

// ClassificationOf returns the current classification of name.
func (r *Registry) ClassificationOf(name string) Classification {
	if c, ok := r.Lookup(name); ok {
		return c.Classification
	}
	return Unknown
}

// IsAlly reports whether name is currently classified Ally.
func (r *Registry) IsAlly(name string) bool { return r.ClassificationOf(name) == Ally }

// IsAdversary reports whether name is currently classified Adversary.
func (r *Registry) IsAdversary(name string) bool { return r.ClassificationOf(name) == Adversary }

// SetAlly classifies name as an ally.
func (r *Registry) SetAlly(name string) { r.Classify(name).Classification = Ally }

// SetAdversary classifies name as an adversary.
func (r *Registry) SetAdversary(name string) { r.Classify(name).Classification = Adversary }

// MarkPlayer flags name as a player character. Players are always allies in
// this model.
func (r *Registry) MarkPlayer(name string) {
	c := r.Classify(name)
	c.IsPlayer = true
	c.Classification = Ally
}

// SetClass records the class of name when known.
func (r *Registry) SetClass(name, class string) {
	if class == "" {
		return
	}
	r.Classify(name).Class = class
}

// SetLevel records the level of name when known.
func (r *Registry) SetLevel(name string, level int) {
	if level <= 0 {
		return
	}
	r.Classify(name).Level = level
}

// SetOwner records owner as the owner of pet. A pet owned by an ally is an
// ally too.
func (r *Registry) SetOwner(pet, owner string) {
	pet, _ = NormalizeName(pet)
	owner, _ = NormalizeName(owner)
	if pet == "" || owner == "" || pet == owner {
		return
	}
	p := r.Classify(pet)
	p.Owner = owner
	if r.ClassificationOf(owner) == Ally {
		p.Classification = Ally
	}
}

// NoteAllyDamage records that name was hit by an ally at t.
func (r *Registry) NoteAllyDamage(name string, t time.Time) {
	c := r.Classify(name)
	if t.After(c.LastAllyDamage) {
		c.LastAllyDamage = t
	}
}

// Len returns the number of known actors.
func (r *Registry) Len() int { return len(r.chars) }

// Reset forgets every actor.
func (r *Registry) Reset() {
	r.chars = make(map[string]*Character)
}
