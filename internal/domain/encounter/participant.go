package encounter

import (
	"slices"
	"time"

	"github.com/okian/fightlog/internal/domain/buffs"
)

// HitStats aggregates outbound hits of one category.
type HitStats struct {
	Category  string `json:"category"`
	Count     int64  `json:"count"`
	Sum       int64  `json:"sum"`
	CritCount int64  `json:"crit_count"`
	CritSum   int64  `json:"crit_sum"`
	Max       int64  `json:"max"`
}

// DefenseStats counts inbound misses of one defense type. Attempts is only
// meaningful after Finish.
type DefenseStats struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
	Attempts int64  `json:"attempts"`
}

// SpellStats aggregates one spell, either as damage or as healing.
type SpellStats struct {
	Name        string    `json:"name"`
	Type        SpellType `json:"type"`
	Count       int64     `json:"count"`
	Sum         int64     `json:"sum"`
	CritCount   int64     `json:"crit_count"`
	CritSum     int64     `json:"crit_sum"`
	TwinCount   int64     `json:"twin_count"`
	ResistCount int64     `json:"resist_count"`
}

// HealStats aggregates outbound healing onto one target.
type HealStats struct {
	Target   string `json:"target"`
	Count    int64  `json:"count"`
	Sum      int64  `json:"sum"`
	GrossSum int64  `json:"gross_sum"`
}

// Top names the largest aggregate of a kind and its sum.
type Top struct {
	Name string `json:"name,omitempty"`
	Sum  int64  `json:"sum"`
}

// Series holds the fixed width bucket arrays of a participant. Arrays grow
// lazily and never shrink.
type Series struct {
	Damage       []int64 `json:"damage"`
	Heal         []int64 `json:"heal"`
	InboundMelee []int64 `json:"inbound_melee"`
	InboundHeal  []int64 `json:"inbound_heal"`
}

// Participant accumulates the statistics of one actor within an encounter.
type Participant struct {
	Name          string    `json:"name"`
	PetOwner      string    `json:"pet_owner,omitempty"`
	Class         string    `json:"class,omitempty"`
	Level         int       `json:"level,omitempty"`
	FirstActionAt time.Time `json:"first_action_at,omitzero"`
	LastActionAt  time.Time `json:"last_action_at,omitzero"`

	OutboundHitCount  int64 `json:"outbound_hit_count"`
	OutboundHitSum    int64 `json:"outbound_hit_sum"`
	OutboundMissCount int64 `json:"outbound_miss_count"`
	InboundHitCount   int64 `json:"inbound_hit_count"`
	InboundHitSum     int64 `json:"inbound_hit_sum"`
	InboundMissCount  int64 `json:"inbound_miss_count"`

	OutboundHealSum      int64 `json:"outbound_heal_sum"`
	OutboundGrossHealSum int64 `json:"outbound_gross_heal_sum"`
	InboundHealSum       int64 `json:"inbound_heal_sum"`

	CastCount  int64 `json:"cast_count"`
	DeathCount int64 `json:"death_count"`

	TopHit  Top `json:"top_hit"`
	TopHeal Top `json:"top_heal"`

	Hits        []*HitStats     `json:"hits"`
	Defenses    []*DefenseStats `json:"defenses"`
	Spells      []*SpellStats   `json:"spells"`
	HealTargets []*HealStats    `json:"heal_targets"`
	Buckets     Series          `json:"buckets"`
	Buffs       []buffs.Landing `json:"buffs,omitempty"`

	hitIdx     map[string]*HitStats
	defenseIdx map[string]*DefenseStats
	spellIdx   map[string]*SpellStats
	healIdx    map[string]*HealStats
}

func newParticipant(name string) *Participant {
	p := &Participant{Name: name}
	p.reindex()
	return p
}

// reindex rebuilds the lookup maps from the ordered slices.
func (p *Participant) reindex() {
	p.hitIdx = make(map[string]*HitStats, len(p.Hits))
	for _, h := range p.Hits {
		p.hitIdx[h.Category] = h
	}
	p.defenseIdx = make(map[string]*DefenseStats, len(p.Defenses))
	for _, d := range p.Defenses {
		p.defenseIdx[d.Category] = d
	}
	p.spellIdx = make(map[string]*SpellStats, len(p.Spells))
	for _, s := range p.Spells {
		p.spellIdx[spellKey(s.Name, s.Type)] = s
	}
	p.healIdx = make(map[string]*HealStats, len(p.HealTargets))
	for _, h := range p.HealTargets {
		p.healIdx[h.Target] = h
	}
}

// clone returns a deep copy of p with fresh lookup maps.
func (p *Participant) clone() *Participant {
	c := *p
	c.Hits = cloneAll(p.Hits)
	c.Defenses = cloneAll(p.Defenses)
	c.Spells = cloneAll(p.Spells)
	c.HealTargets = cloneAll(p.HealTargets)
	c.Buckets = Series{
		Damage:       slices.Clone(p.Buckets.Damage),
		Heal:         slices.Clone(p.Buckets.Heal),
		InboundMelee: slices.Clone(p.Buckets.InboundMelee),
		InboundHeal:  slices.Clone(p.Buckets.InboundHeal),
	}
	c.Buffs = slices.Clone(p.Buffs)
	c.reindex()
	return &c
}

func cloneAll[T any](list []*T) []*T {
	if list == nil {
		return nil
	}
	out := make([]*T, len(list))
	for i, v := range list {
		cp := *v
		out[i] = &cp
	}
	return out
}

func getOrAdd[T any](idx map[string]*T, list *[]*T, key string, mk func() *T) *T {
	if v, ok := idx[key]; ok {
		return v
	}
	v := mk()
	idx[key] = v
	*list = append(*list, v)
	return v
}

func (p *Participant) hit(category string) *HitStats {
	return getOrAdd(p.hitIdx, &p.Hits, category, func() *HitStats { return &HitStats{Category: category} })
}

func (p *Participant) defense(category string) *DefenseStats {
	return getOrAdd(p.defenseIdx, &p.Defenses, category, func() *DefenseStats { return &DefenseStats{Category: category} })
}

func (p *Participant) spell(name string, typ SpellType) *SpellStats {
	return getOrAdd(p.spellIdx, &p.Spells, spellKey(name, typ), func() *SpellStats { return &SpellStats{Name: name, Type: typ} })
}

func (p *Participant) healTarget(target string) *HealStats {
	return getOrAdd(p.healIdx, &p.HealTargets, target, func() *HealStats { return &HealStats{Target: target} })
}

// Hit returns the aggregate for a hit category.
func (p *Participant) Hit(category string) (*HitStats, bool) {
	h, ok := p.hitIdx[category]
	return h, ok
}

// Defense returns the aggregate for a defense category.
func (p *Participant) Defense(category string) (*DefenseStats, bool) {
	d, ok := p.defenseIdx[category]
	return d, ok
}

// Spell returns the aggregate for a spell of the given type.
func (p *Participant) Spell(name string, typ SpellType) (*SpellStats, bool) {
	s, ok := p.spellIdx[spellKey(name, typ)]
	return s, ok
}

// HealTarget returns the heal aggregate for target.
func (p *Participant) HealTarget(target string) (*HealStats, bool) {
	h, ok := p.healIdx[target]
	return h, ok
}

// IsPet reports whether the participant has an owner.
func (p *Participant) IsPet() bool { return p.PetOwner != "" }

func (p *Participant) stamp(t time.Time) {
	if p.FirstActionAt.IsZero() || t.Before(p.FirstActionAt) {
		p.FirstActionAt = t
	}
	if t.After(p.LastActionAt) {
		p.LastActionAt = t
	}
}

// idle reports whether the participant did, took and received nothing.
func (p *Participant) idle() bool {
	if p.OutboundHitSum != 0 || p.OutboundHealSum != 0 || p.InboundHitSum != 0 {
		return false
	}
	for _, s := range [][]int64{p.Buckets.Damage, p.Buckets.Heal, p.Buckets.InboundMelee, p.Buckets.InboundHeal} {
		for _, v := range s {
			if v != 0 {
				return false
			}
		}
	}
	return true
}

// addAt adds v to s[i], growing s with zeros as needed.
func addAt(s []int64, i int, v int64) []int64 {
	if i < 0 {
		i = 0
	}
	for len(s) <= i {
		s = append(s, 0)
	}
	s[i] += v
	return s
}

func spellKey(name string, typ SpellType) string {
	return typ.String() + "\x00" + name
}
