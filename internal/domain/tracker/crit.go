package tracker

import (
	"context"
	"time"

	"github.com/okian/fightlog/internal/domain/model"
)

// critNotice is a crit notification still waiting for its hit.
type critNotice struct {
	source string
	amount int64
	second int64
}

// lastHit is the most recent hit of a source, kept so a notification that
// arrives after its hit can reclassify it.
type lastHit struct {
	tr   *tracked
	hit  model.Hit
	crit bool
}

// critState correlates crit notifications with hits of the same source,
// amount and second, whichever arrives first.
type critState struct {
	notices []critNotice
	hits    map[string]lastHit
}

func (c *critState) reset() {
	c.notices = nil
	c.hits = make(map[string]lastHit)
}

// takeNotice consumes a pending notice matching the hit.
func (c *critState) takeNotice(source string, amount int64, at time.Time) bool {
	sec := at.Unix()
	kept := c.notices[:0]
	found := false
	for _, n := range c.notices {
		if n.second < sec {
			continue
		}
		if !found && n.source == source && n.amount == amount && n.second == sec {
			found = true
			continue
		}
		kept = append(kept, n)
	}
	c.notices = kept
	return found
}

func (c *critState) rememberHit(source string, tr *tracked, h model.Hit) {
	c.hits[source] = lastHit{tr: tr, hit: h, crit: h.Modifiers.Has(model.ModCritical)}
}

func (e *Engine) handleCritical(ctx context.Context, v model.Critical) {
	if v.Source == "" || v.Amount <= 0 {
		e.drop(ctx, v, "bad_critical")
		return
	}
	if lh, ok := e.crits.hits[v.Source]; ok && !lh.crit &&
		lh.hit.Amount == v.Amount && lh.hit.At.Unix() == v.At.Unix() &&
		!lh.tr.enc.Finished() {
		lh.tr.enc.MarkCritical(lh.hit)
		lh.crit = true
		e.crits.hits[v.Source] = lh
		return
	}
	sec := v.At.Unix()
	kept := e.crits.notices[:0]
	for _, n := range e.crits.notices {
		if n.second >= sec {
			kept = append(kept, n)
		}
	}
	e.crits.notices = append(kept, critNotice{source: v.Source, amount: v.Amount, second: sec})
}
