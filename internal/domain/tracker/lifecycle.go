package tracker

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/okian/fightlog/internal/domain/encounter"
	"github.com/okian/fightlog/internal/domain/identity"
	"github.com/okian/fightlog/pkg/logger"
	"github.com/okian/fightlog/pkg/metrics"
)

func (e *Engine) timeoutFor(scope encounter.PartyScope) time.Duration {
	if scope == encounter.Raid {
		return e.raidTimeout
	}
	return e.groupTimeout
}

// maybeSweep runs the timeout sweep once per sweep interval of event time.
// An event older than the last sweep re-arms the schedule.
func (e *Engine) maybeSweep(ctx context.Context, now time.Time) {
	if e.lastSweep.IsZero() || now.Before(e.lastSweep) {
		e.lastSweep = now
		return
	}
	if now.Sub(e.lastSweep) < e.sweepInterval {
		return
	}
	e.lastSweep = now
	e.sweep(ctx, now)
}

// sweep times out idle encounters and raids as of now.
func (e *Engine) sweep(ctx context.Context, now time.Time) {
	timeout := e.timeoutFor(e.scope)
	for _, tr := range e.byCreation() {
		if tr.enc.UpdatedAt.Add(timeout).After(now) {
			continue
		}
		e.expire(ctx, tr)
	}

	for _, raid := range e.activeRaids() {
		if raid.UpdatedAt.Add(e.raidTimeout).After(now) || e.raidHasActiveMembers(raid) {
			continue
		}
		e.finishRaid(ctx, raid, encounter.TimedOut)
	}
}

// expire times out tr, discarding it when the adversary never took damage.
func (e *Engine) expire(ctx context.Context, tr *tracked) {
	if tr.enc.DamageTaken() > 0 {
		e.finalize(ctx, tr, encounter.TimedOut)
		return
	}
	e.remove(tr)
	e.discard(ctx, tr.enc, "idle")
}

func (e *Engine) remove(tr *tracked) {
	delete(e.active, tr.enc.Adversary.Name)
	metrics.UpdateActiveEncounters(len(e.active))
}

func (e *Engine) discard(ctx context.Context, enc *encounter.Encounter, reason string) {
	e.stats.EncountersDiscarded++
	metrics.RecordEncounterDiscarded(reason)
	e.log.Debug(ctx, "encounter discarded",
		logger.String("encounter.id", enc.ID),
		logger.String("encounter.adversary", enc.Adversary.Name),
		logger.String("reason", reason),
	)
}

// finalize removes tr from the active set, finishes it with status and
// hands it to observers and, for raid fights, to the matching raid.
func (e *Engine) finalize(ctx context.Context, tr *tracked, status encounter.Status) {
	enc := tr.enc
	if enc.Finished() {
		return
	}
	e.remove(tr)

	adversary := enc.Adversary.Name
	if !e.identity.IsAdversary(adversary) {
		e.discard(ctx, enc, "not_adversary")
		return
	}

	from, to := enc.StartedAt.Add(-buffLead), enc.UpdatedAt
	for _, p := range append([]*encounter.Participant{enc.Adversary}, enc.Participants()...) {
		if c, ok := e.identity.Lookup(p.Name); ok {
			e.copyIdentity(p, c)
		}
		p.Buffs = e.buffs.Landed(p.Name, from, to)
	}
	if e.scope > enc.Scope {
		enc.Scope = e.scope
	}

	enc.Finish(status)
	if len(enc.Participants()) == 0 {
		e.discard(ctx, enc, "empty")
		return
	}

	e.stats.EncountersFinished++
	metrics.RecordEncounterFinished(status.String())
	e.log.Info(ctx, "encounter finished",
		logger.String("encounter.id", enc.ID),
		logger.String("encounter.adversary", adversary),
		logger.String("encounter.status", status.String()),
		logger.Duration("encounter.duration", enc.Duration()),
		logger.Int64("encounter.damage", enc.DamageTaken()),
		logger.Int("encounter.participants", len(enc.Participants())),
	)
	e.emit(ctx, enc)

	if enc.Scope != encounter.Raid {
		return
	}
	tmpl, ok := e.templateFor(enc.Zone, adversary)
	if !ok {
		return
	}
	raid, ok := e.raids[tmpl.Name]
	if !ok {
		raid = encounter.NewRaid(tmpl)
		raid.ID = e.newID()
		e.raids[tmpl.Name] = raid
		metrics.UpdateActiveRaids(len(e.raids))
		e.log.Info(ctx, "raid started",
			logger.String("raid.id", raid.ID),
			logger.String("raid.name", tmpl.Name),
		)
	}
	raid.Add(enc)
	if status == encounter.Killed && tmpl.EndsOn(adversary) {
		e.finishRaid(ctx, raid, encounter.Killed)
	}
}

func (e *Engine) copyIdentity(p *encounter.Participant, c *identity.Character) {
	if p.Class == "" {
		p.Class = c.Class
	}
	if c.Level > 0 {
		p.Level = c.Level
	}
	if p.PetOwner == "" {
		p.PetOwner = c.Owner
	}
}

func (e *Engine) emit(ctx context.Context, enc *encounter.Encounter) {
	for _, o := range e.observers {
		o.EncounterFinished(ctx, enc)
	}
}

// finishRaid times out the raid's remaining active encounters, merges the
// raid and emits it. Re-entry for a raid already finishing is a no-op.
func (e *Engine) finishRaid(ctx context.Context, raid *encounter.RaidEncounter, status encounter.Status) {
	if raid.Status != encounter.Active || e.finishing[raid.ID] {
		return
	}
	e.finishing[raid.ID] = true
	defer delete(e.finishing, raid.ID)

	for _, tr := range e.byCreation() {
		if raid.Template.Matches(tr.enc.Zone, tr.enc.Adversary.Name) {
			e.expire(ctx, tr)
		}
	}

	delete(e.raids, raid.Template.Name)
	metrics.UpdateActiveRaids(len(e.raids))
	out := raid.Finish(status)
	metrics.RecordRaidFinished(status.String())
	if out == nil {
		return
	}
	e.stats.RaidsFinished++
	e.log.Info(ctx, "raid finished",
		logger.String("raid.id", raid.ID),
		logger.String("raid.name", raid.Template.Name),
		logger.String("raid.status", status.String()),
		logger.Int("raid.members", len(raid.Members())),
	)
	e.emit(ctx, out)
}

func (e *Engine) raidHasActiveMembers(raid *encounter.RaidEncounter) bool {
	for _, tr := range e.active {
		if raid.Template.Matches(tr.enc.Zone, tr.enc.Adversary.Name) {
			return true
		}
	}
	return false
}

func (e *Engine) activeRaids() []*encounter.RaidEncounter {
	out := make([]*encounter.RaidEncounter, 0, len(e.raids))
	for _, r := range e.raids {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b *encounter.RaidEncounter) int { return a.StartedAt.Compare(b.StartedAt) })
	return out
}

func (e *Engine) templateFor(zone, adversary string) (encounter.RaidTemplate, bool) {
	for _, t := range e.templates {
		if t.Matches(zone, adversary) {
			return t, true
		}
	}
	return encounter.RaidTemplate{}, false
}

// AddRaidTemplate registers a raid template, replacing one with the same
// name. Malformed templates are rejected.
func (e *Engine) AddRaidTemplate(t encounter.RaidTemplate) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("add raid template: %w", err)
	}
	for i, old := range e.templates {
		if old.Name == t.Name {
			e.templates[i] = t
			return nil
		}
	}
	e.templates = append(e.templates, t)
	return nil
}

// SetRaidTemplates replaces the registered templates with the valid ones in
// ts. Invalid templates are skipped and reported in the returned error.
// Active raids keep running under the template they started with.
func (e *Engine) SetRaidTemplates(ts []encounter.RaidTemplate) error {
	var errs []error
	kept := make([]encounter.RaidTemplate, 0, len(ts))
	for _, t := range ts {
		if err := t.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("raid template %q: %w", t.Name, err))
			continue
		}
		if i := slices.IndexFunc(kept, func(k encounter.RaidTemplate) bool { return k.Name == t.Name }); i >= 0 {
			kept[i] = t
			continue
		}
		kept = append(kept, t)
	}
	e.templates = kept
	return errors.Join(errs...)
}

// RaidTemplates returns the registered templates.
func (e *Engine) RaidTemplates() []encounter.RaidTemplate {
	return slices.Clone(e.templates)
}

// ForceTimeouts times out active encounters whose adversary is listed in
// names, or every active encounter and raid when names is empty. It returns
// how many encounters were removed.
func (e *Engine) ForceTimeouts(ctx context.Context, names ...string) int {
	n := 0
	for _, tr := range e.byCreation() {
		if len(names) > 0 && !slices.Contains(names, tr.enc.Adversary.Name) {
			continue
		}
		e.expire(ctx, tr)
		n++
	}
	if len(names) == 0 {
		for _, raid := range e.activeRaids() {
			e.finishRaid(ctx, raid, encounter.TimedOut)
		}
	}
	return n
}
