// Package encounter holds the per-encounter statistics model: one adversary,
// the actors who interacted with it, and the bucketed time series built from
// their hits, misses and heals. It also merges finished encounters into one
// aligned record and aggregates raid encounters.
//
// An Encounter is mutated only while Active. Every Add method panics on a
// finished encounter since that can only be caller misuse.
package encounter

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/fightlog/internal/domain/model"
)

// BucketSeconds is the width of one time series bucket.
const BucketSeconds = 6

// lifetapSpell keys heals that carry no spell name.
const lifetapSpell = "Lifetap"

// Encounter is one tracked fight against a single adversary.
type Encounter struct {
	ID        string
	StartedAt time.Time
	UpdatedAt time.Time
	Status    Status
	Zone      string
	Scope     PartyScope
	Server    string
	Actor     string
	Adversary *Participant
	// Members lists the ids of the encounters a merged encounter was built
	// from.
	Members []string

	participants []*Participant
	byName       map[string]*Participant
}

// Option configures a new Encounter.
type Option func(*Encounter)

// WithID overrides the generated id.
func WithID(id string) Option {
	return func(e *Encounter) {
		if id != "" {
			e.ID = id
		}
	}
}

// WithZone sets the zone the encounter happens in.
func WithZone(zone string) Option {
	return func(e *Encounter) { e.Zone = zone }
}

// WithScope sets the party scope.
func WithScope(scope PartyScope) Option {
	return func(e *Encounter) { e.Scope = scope }
}

// WithServer sets the server name.
func WithServer(server string) Option {
	return func(e *Encounter) { e.Server = server }
}

// WithActor sets the name of the log owner.
func WithActor(actor string) Option {
	return func(e *Encounter) { e.Actor = actor }
}

// New starts an Active encounter against adversary at start.
func New(adversary string, start time.Time, opts ...Option) *Encounter {
	e := &Encounter{
		ID:        uuid.NewString(),
		StartedAt: start,
		UpdatedAt: start,
		Status:    Active,
		Adversary: newParticipant(adversary),
		byName:    make(map[string]*Participant),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Participants returns the participants in their current order. After Finish
// they are sorted by outbound damage.
func (e *Encounter) Participants() []*Participant { return e.participants }

// Participant returns the participant named name. The adversary is not a
// participant.
func (e *Encounter) Participant(name string) (*Participant, bool) {
	p, ok := e.byName[name]
	return p, ok
}

// Has reports whether name is the adversary or a participant.
func (e *Encounter) Has(name string) bool {
	if name == "" {
		return false
	}
	if name == e.Adversary.Name {
		return true
	}
	_, ok := e.byName[name]
	return ok
}

// Finished reports whether the encounter reached a terminal status.
func (e *Encounter) Finished() bool { return e.Status != Active }

// DamageTaken is the total damage the adversary received.
func (e *Encounter) DamageTaken() int64 { return e.Adversary.InboundHitSum }

// Bucket returns the series index for t. Buckets are anchored to the wall
// clock modulo BucketSeconds so independently started encounters line up
// when merged.
func (e *Encounter) Bucket(t time.Time) int {
	off := t.Unix() - e.StartedAt.Unix() + int64(e.StartedAt.Second()%BucketSeconds)
	if off < 0 {
		return 0
	}
	return int(off / BucketSeconds)
}

// Duration is the span between the start and the last update.
func (e *Encounter) Duration() time.Duration { return e.UpdatedAt.Sub(e.StartedAt) }

// participant returns the accumulator for name, creating a participant on
// first sight. It returns nil for an empty name.
func (e *Encounter) participant(name string) *Participant {
	if name == "" {
		return nil
	}
	if name == e.Adversary.Name {
		return e.Adversary
	}
	if p, ok := e.byName[name]; ok {
		return p
	}
	p := newParticipant(name)
	e.byName[name] = p
	e.participants = append(e.participants, p)
	return p
}

// Touch returns the participant for name, creating it if needed.
func (e *Encounter) Touch(name string) *Participant {
	e.mustBeActive("touch")
	return e.participant(name)
}

func (e *Encounter) mustBeActive(op string) {
	if e.Status != Active {
		panic(fmt.Sprintf("encounter %s: %s on %s encounter", e.ID, op, e.Status))
	}
}

func (e *Encounter) touch(t time.Time) {
	if t.After(e.UpdatedAt) {
		e.UpdatedAt = t
	}
}

// categoryFor relabels special attacks under their own key.
func categoryFor(category string, mods model.Modifier) string {
	switch {
	case mods.Has(model.ModRiposte):
		return "riposte"
	case mods.Has(model.ModFinishingBlow):
		return "finishing blow"
	case mods.Has(model.ModHeadshot):
		return "headshot"
	case mods.Has(model.ModAssassinate):
		return "assassinate"
	case mods.Has(model.ModSlayUndead):
		return "slay undead"
	case category == "":
		return "hits"
	default:
		return category
	}
}

// AddHit folds a hit between the adversary and a participant.
func (e *Encounter) AddHit(h model.Hit) {
	e.mustBeActive("add hit")
	e.touch(h.At)
	b := e.Bucket(h.At)
	crit := h.Modifiers.Has(model.ModCritical)

	if src := e.participant(h.Source); src != nil {
		src.stamp(h.At)
		src.OutboundHitCount++
		src.OutboundHitSum += h.Amount
		src.Buckets.Damage = addAt(src.Buckets.Damage, b, h.Amount)

		hs := src.hit(categoryFor(h.Category, h.Modifiers))
		hs.Count++
		hs.Sum += h.Amount
		hs.Max = max(hs.Max, h.Amount)
		if crit {
			hs.CritCount++
			hs.CritSum += h.Amount
		}

		if h.Spell != "" {
			sp := src.spell(h.Spell, SpellDamage)
			sp.Count++
			sp.Sum += h.Amount
			if crit {
				sp.CritCount++
				sp.CritSum += h.Amount
			}
			if h.Modifiers.Has(model.ModTwincast) {
				sp.TwinCount++
			}
		}
	}

	if tgt := e.participant(h.Target); tgt != nil {
		tgt.stamp(h.At)
		tgt.InboundHitCount++
		tgt.InboundHitSum += h.Amount
		if h.Spell == "" {
			tgt.Buckets.InboundMelee = addAt(tgt.Buckets.InboundMelee, b, h.Amount)
		}
		// The log never reports the defense check a strikethrough bypassed.
		if h.Modifiers.Has(model.ModStrikethrough) && !h.Modifiers.Has(model.ModRiposte) {
			tgt.defense("unknown").Count++
		}
	}
}

// MarkCritical reclassifies an already folded hit into its crit tallies.
func (e *Encounter) MarkCritical(h model.Hit) {
	e.mustBeActive("mark critical")
	src := e.participant(h.Source)
	if src == nil {
		return
	}
	if hs, ok := src.Hit(categoryFor(h.Category, h.Modifiers)); ok {
		hs.CritCount++
		hs.CritSum += h.Amount
	}
	if h.Spell != "" {
		if sp, ok := src.Spell(h.Spell, SpellDamage); ok {
			sp.CritCount++
			sp.CritSum += h.Amount
		}
	}
}

// AddMiss folds a miss. Spell misses are resists and never count as a
// defense.
func (e *Encounter) AddMiss(m model.Miss) {
	e.mustBeActive("add miss")
	e.touch(m.At)

	if src := e.participant(m.Source); src != nil {
		src.stamp(m.At)
		src.OutboundMissCount++
		if m.Spell != "" {
			src.spell(m.Spell, SpellDamage).ResistCount++
		}
	}
	if m.Spell != "" {
		return
	}
	if tgt := e.participant(m.Target); tgt != nil {
		category := m.Category
		if category == "" {
			category = "miss"
		}
		tgt.InboundMissCount++
		tgt.defense(category).Count++
	}
}

// AddHeal folds a heal. Heals on the adversary are ignored.
func (e *Encounter) AddHeal(h model.Heal) {
	e.mustBeActive("add heal")
	if h.Target == "" || h.Target == e.Adversary.Name {
		return
	}
	e.touch(h.At)
	b := e.Bucket(h.At)

	if src := e.participant(h.Source); src != nil {
		src.stamp(h.At)
		src.OutboundHealSum += h.Amount
		src.OutboundGrossHealSum += h.Gross
		src.Buckets.Heal = addAt(src.Buckets.Heal, b, h.Amount)

		ht := src.healTarget(h.Target)
		ht.Count++
		ht.Sum += h.Amount
		ht.GrossSum += h.Gross

		name := h.Spell
		if name == "" {
			name = lifetapSpell
		}
		sp := src.spell(name, SpellHeal)
		sp.Count++
		sp.Sum += h.Amount
		if h.Modifiers.Has(model.ModCritical) {
			sp.CritCount++
			sp.CritSum += h.Amount
		}
		if h.Modifiers.Has(model.ModTwincast) {
			sp.TwinCount++
		}
	}

	tgt := e.participant(h.Target)
	tgt.InboundHealSum += h.Amount
	tgt.Buckets.InboundHeal = addAt(tgt.Buckets.InboundHeal, b, h.Amount)
}

// AddCast notes that name began casting.
func (e *Encounter) AddCast(c model.Cast) {
	e.mustBeActive("add cast")
	p := e.participant(c.Source)
	if p == nil {
		return
	}
	e.touch(c.At)
	p.stamp(c.At)
	p.CastCount++
}

// AddDeath records a death of name inside this encounter.
func (e *Encounter) AddDeath(name string, t time.Time) {
	e.mustBeActive("add death")
	p := e.participant(name)
	if p == nil {
		return
	}
	e.touch(t)
	p.DeathCount++
}
