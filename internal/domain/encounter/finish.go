package encounter

import (
	"fmt"
	"sort"
)

// petPrefix marks pet aggregates folded into their owner.
const petPrefix = "pet:"

// defenseOrder is the sequence the game checks defenses in. Categories not
// listed sort after these.
var defenseOrder = map[string]int{
	"miss":    0,
	"invul":   1,
	"block":   2,
	"riposte": 3,
	"parry":   4,
	"dodge":   5,
	"shield":  6,
	"rune":    7,
}

// Finish moves the encounter to status and normalizes it: pets fold into
// owners, aggregates are sorted, defense attempts are rebuilt and bystanders
// are pruned. It must be called exactly once.
func (e *Encounter) Finish(status Status) {
	if status == Active {
		panic(fmt.Sprintf("encounter %s: finish with status Active", e.ID))
	}
	e.mustBeActive("finish")

	e.mergePets()
	for _, p := range e.participants {
		p.normalize()
	}
	e.Adversary.normalize()

	sort.SliceStable(e.participants, func(i, j int) bool {
		a, b := e.participants[i], e.participants[j]
		if a.OutboundHitSum != b.OutboundHitSum {
			return a.OutboundHitSum > b.OutboundHitSum
		}
		return a.Name < b.Name
	})

	kept := e.participants[:0]
	for _, p := range e.participants {
		if p.idle() {
			delete(e.byName, p.Name)
			continue
		}
		kept = append(kept, p)
	}
	for i := len(kept); i < len(e.participants); i++ {
		e.participants[i] = nil
	}
	e.participants = kept
	e.Status = status
}

// mergePets folds every pet's offense into its owner.
func (e *Encounter) mergePets() {
	// Owners created here are appended; iterate over a snapshot.
	for _, pet := range append([]*Participant(nil), e.participants...) {
		if !pet.IsPet() || pet.PetOwner == e.Adversary.Name || pet.PetOwner == pet.Name {
			continue
		}
		owner := e.participant(pet.PetOwner)
		owner.absorb(pet, petPrefix, nil)
		pet.clearOffense()
	}
}

// absorb adds other's offensive data into p, prefixing category and spell
// names. slot maps other's bucket indices to p's; nil keeps them as is.
func (p *Participant) absorb(other *Participant, prefix string, slot []int) {
	p.OutboundHitCount += other.OutboundHitCount
	p.OutboundHitSum += other.OutboundHitSum
	p.OutboundMissCount += other.OutboundMissCount
	p.OutboundHealSum += other.OutboundHealSum
	p.OutboundGrossHealSum += other.OutboundGrossHealSum
	p.CastCount += other.CastCount

	for _, h := range other.Hits {
		dst := p.hit(prefix + h.Category)
		dst.Count += h.Count
		dst.Sum += h.Sum
		dst.CritCount += h.CritCount
		dst.CritSum += h.CritSum
		dst.Max = max(dst.Max, h.Max)
	}
	for _, s := range other.Spells {
		dst := p.spell(prefix+s.Name, s.Type)
		dst.Count += s.Count
		dst.Sum += s.Sum
		dst.CritCount += s.CritCount
		dst.CritSum += s.CritSum
		dst.TwinCount += s.TwinCount
		dst.ResistCount += s.ResistCount
	}
	for _, h := range other.HealTargets {
		dst := p.healTarget(h.Target)
		dst.Count += h.Count
		dst.Sum += h.Sum
		dst.GrossSum += h.GrossSum
	}
	p.Buckets.Damage = addSeries(p.Buckets.Damage, other.Buckets.Damage, slot)
	p.Buckets.Heal = addSeries(p.Buckets.Heal, other.Buckets.Heal, slot)

	if !other.FirstActionAt.IsZero() {
		p.stamp(other.FirstActionAt)
		p.stamp(other.LastActionAt)
	}
}

// absorbDefense adds other's inbound data into p.
func (p *Participant) absorbDefense(other *Participant, slot []int) {
	p.InboundHitCount += other.InboundHitCount
	p.InboundHitSum += other.InboundHitSum
	p.InboundMissCount += other.InboundMissCount
	p.InboundHealSum += other.InboundHealSum
	p.DeathCount += other.DeathCount
	for _, d := range other.Defenses {
		p.defense(d.Category).Count += d.Count
	}
	p.Buckets.InboundMelee = addSeries(p.Buckets.InboundMelee, other.Buckets.InboundMelee, slot)
	p.Buckets.InboundHeal = addSeries(p.Buckets.InboundHeal, other.Buckets.InboundHeal, slot)
}

func (p *Participant) clearOffense() {
	p.OutboundHitCount, p.OutboundHitSum, p.OutboundMissCount = 0, 0, 0
	p.OutboundHealSum, p.OutboundGrossHealSum, p.CastCount = 0, 0, 0
	p.Hits, p.Spells, p.HealTargets = nil, nil, nil
	p.Buckets.Damage, p.Buckets.Heal = nil, nil
	p.TopHit, p.TopHeal = Top{}, Top{}
	p.reindex()
}

func addSeries(dst, src []int64, slot []int) []int64 {
	for i, v := range src {
		j := i
		if slot != nil {
			j = slot[i]
		}
		dst = addAt(dst, j, v)
	}
	return dst
}

// normalize computes tops and puts every aggregate list in report order.
func (p *Participant) normalize() {
	p.TopHit, p.TopHeal = Top{}, Top{}
	for _, h := range p.Hits {
		if h.Sum > p.TopHit.Sum {
			p.TopHit = Top{Name: h.Category, Sum: h.Sum}
		}
	}
	for _, s := range p.Spells {
		if s.Type == SpellHeal && s.Sum > p.TopHeal.Sum {
			p.TopHeal = Top{Name: s.Name, Sum: s.Sum}
		}
	}

	sort.SliceStable(p.Hits, func(i, j int) bool {
		if p.Hits[i].Sum != p.Hits[j].Sum {
			return p.Hits[i].Sum > p.Hits[j].Sum
		}
		return p.Hits[i].Category < p.Hits[j].Category
	})

	sort.SliceStable(p.Defenses, func(i, j int) bool {
		return defenseRank(p.Defenses[i].Category) < defenseRank(p.Defenses[j].Category)
	})
	attempts := p.InboundHitCount + p.InboundMissCount
	for _, d := range p.Defenses {
		d.Attempts = attempts
		attempts -= d.Count
	}

	sort.SliceStable(p.Spells, func(i, j int) bool {
		a, b := p.Spells[i], p.Spells[j]
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.Sum != b.Sum {
			return a.Sum > b.Sum
		}
		return a.Name < b.Name
	})

	targets := p.HealTargets[:0]
	for _, h := range p.HealTargets {
		if h.Sum == 0 {
			delete(p.healIdx, h.Target)
			continue
		}
		targets = append(targets, h)
	}
	p.HealTargets = targets
	sort.SliceStable(p.HealTargets, func(i, j int) bool {
		return p.HealTargets[i].Sum > p.HealTargets[j].Sum
	})
}

func defenseRank(category string) int {
	if r, ok := defenseOrder[category]; ok {
		return r
	}
	return len(defenseOrder)
}
