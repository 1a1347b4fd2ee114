package tracker

import (
	"context"

	"github.com/okian/fightlog/internal/domain/encounter"
	"github.com/okian/fightlog/internal/domain/identity"
	"github.com/okian/fightlog/internal/domain/model"
)

// resolvePair works out the adversary of a hit or miss. It returns the
// normalized source and target, the adversary, and whether the event should
// be attributed at all.
func (e *Engine) resolvePair(ctx context.Context, ev model.Event, source, target string) (src, tgt, adv string, ok bool) {
	src, srcCorpse := identity.NormalizeName(source)
	tgt, tgtCorpse := identity.NormalizeName(target)
	if tgtCorpse {
		e.drop(ctx, ev, "corpse_target")
		return "", "", "", false
	}

	// Damage with no known attacker lands on an already tracked adversary.
	if src == "" {
		if _, tracked := e.active[tgt]; tracked {
			return "", tgt, tgt, true
		}
		e.drop(ctx, ev, "no_source")
		return "", "", "", false
	}

	adv, ok = e.identity.ResolveAdversary(src, tgt)
	if !ok {
		if src != tgt {
			e.bufferPending(ctx, ev)
		} else {
			e.drop(ctx, ev, "self")
		}
		return "", "", "", false
	}
	// A corpse keeps hurting the living adversary through its DoTs, but a
	// dead adversary does not start a new fight.
	if srcCorpse && adv == src {
		e.drop(ctx, ev, "corpse_source")
		return "", "", "", false
	}
	return src, tgt, adv, true
}

func (e *Engine) handleHit(ctx context.Context, h model.Hit) {
	src, tgt, adv, ok := e.resolvePair(ctx, h, h.Source, h.Target)
	if !ok {
		return
	}
	h.Source, h.Target = src, tgt
	tr := e.open(ctx, adv, h.At)
	if src != "" && e.crits.takeNotice(src, h.Amount, h.At) {
		h.Modifiers |= model.ModCritical
	}
	tr.enc.AddHit(h)
	e.touch(tr)
	if src != "" {
		e.crits.rememberHit(src, tr, h)
	}
}

func (e *Engine) handleMiss(ctx context.Context, m model.Miss) {
	src, tgt, adv, ok := e.resolvePair(ctx, m, m.Source, m.Target)
	if !ok {
		return
	}
	m.Source, m.Target = src, tgt
	tr := e.open(ctx, adv, m.At)
	tr.enc.AddMiss(m)
	e.touch(tr)
}

// handleHeal attributes a heal to the encounter it most plausibly belongs
// to: the last touched one if it knows either side, else the newest one that
// does, else the newest one when the healer is an ally.
func (e *Engine) handleHeal(ctx context.Context, h model.Heal) {
	if h.Target == "" {
		e.drop(ctx, h, "no_target")
		return
	}
	h.Source, _ = identity.NormalizeName(h.Source)
	h.Target, _ = identity.NormalizeName(h.Target)

	knows := func(tr *tracked) bool { return tr.enc.Has(h.Source) || tr.enc.Has(h.Target) }

	var target *tracked
	if tr := e.lastTouched(); tr != nil && knows(tr) {
		target = tr
	}
	if target == nil {
		newest := e.byCreation()
		for _, tr := range newest {
			if knows(tr) {
				target = tr
				break
			}
		}
		if target == nil && len(newest) > 0 && e.identity.IsAlly(h.Source) {
			target = newest[0]
		}
	}
	if target == nil {
		e.drop(ctx, h, "unattributed_heal")
		return
	}
	target.enc.AddHeal(h)
	e.touch(target)
}

// handleCast attributes a cast to the last touched encounter when the caster
// is its adversary or an ally.
func (e *Engine) handleCast(ctx context.Context, c model.Cast) {
	c.Source, _ = identity.NormalizeName(c.Source)
	tr := e.lastTouched()
	if tr == nil || c.Source == "" {
		e.drop(ctx, c, "unattributed_cast")
		return
	}
	if c.Source != tr.enc.Adversary.Name && !e.identity.IsAlly(c.Source) {
		e.drop(ctx, c, "unrelated_cast")
		return
	}
	tr.enc.AddCast(c)
	e.touch(tr)
}

// handleDeath finishes the encounter of a dying adversary, otherwise tallies
// the death on the encounter of the killer or the last touched one.
func (e *Engine) handleDeath(ctx context.Context, d model.Death) {
	name, _ := identity.NormalizeName(d.Name)
	if name == "" {
		e.drop(ctx, d, "no_name")
		return
	}
	if tr, ok := e.active[name]; ok {
		tr.enc.AddDeath(name, d.At)
		e.finalize(ctx, tr, encounter.Killed)
		return
	}

	killer, _ := identity.NormalizeName(d.KillShot)
	tr, ok := e.active[killer]
	if !ok {
		tr = e.lastTouched()
	}
	if tr == nil {
		e.drop(ctx, d, "unattributed_death")
		return
	}
	tr.enc.AddDeath(name, d.At)
	e.touch(tr)
}
