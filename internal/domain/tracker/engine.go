// Package tracker reconstructs encounters from a chronological event stream.
//
// The Engine is single threaded: callers feed HandleEvent sequentially and
// all state changes happen inside that call. Timeouts compare against the
// latest observed event time, never the wall clock.
package tracker

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/okian/fightlog/internal/domain/buffs"
	"github.com/okian/fightlog/internal/domain/encounter"
	"github.com/okian/fightlog/internal/domain/identity"
	"github.com/okian/fightlog/internal/domain/model"
	"github.com/okian/fightlog/internal/domain/spells"
	"github.com/okian/fightlog/pkg/logger"
	"github.com/okian/fightlog/pkg/metrics"
)

// Observer is notified when encounters start and finish. Finished
// encounters are handed over and never mutated by the engine again.
type Observer interface {
	EncounterStarted(ctx context.Context, e *encounter.Encounter)
	EncounterFinished(ctx context.Context, e *encounter.Encounter)
}

// tracked is an active encounter plus its attribution bookkeeping.
type tracked struct {
	enc     *encounter.Encounter
	created uint64
	touched uint64
}

// Engine owns the active encounter set and the registries it attributes
// events with.
type Engine struct {
	log       logger.Logger
	identity  *identity.Registry
	buffs     *buffs.Registry
	spells    spells.Lookup
	observers []Observer
	newID     func() string

	groupTimeout  time.Duration
	raidTimeout   time.Duration
	pendingWindow time.Duration
	sweepInterval time.Duration
	buffRetention time.Duration

	zone   string
	scope  encounter.PartyScope
	server string
	actor  string

	active    map[string]*tracked
	seq       uint64
	templates []encounter.RaidTemplate
	raids     map[string]*encounter.RaidEncounter
	finishing map[string]bool
	pending   []model.Event
	crits     critState
	lastSweep time.Time
	now       time.Time

	stats Stats
}

// New returns an Engine with empty registries.
func New(opts ...Option) *Engine {
	e := &Engine{
		log:           logger.OrDiscard("tracker"),
		identity:      identity.NewRegistry(),
		spells:        spells.None{},
		newID:         uuid.NewString,
		groupTimeout:  DefaultGroupTimeout,
		raidTimeout:   DefaultRaidTimeout,
		pendingWindow: DefaultPendingWindow,
		sweepInterval: DefaultSweepInterval,
		buffRetention: DefaultBuffRetention,
		active:        make(map[string]*tracked),
		raids:         make(map[string]*encounter.RaidEncounter),
		finishing:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.buffs = buffs.NewRegistry(buffs.WithRetention(e.buffRetention))
	e.crits.reset()
	return e
}

// Identity exposes the identity registry for seeding and inspection.
func (e *Engine) Identity() *identity.Registry { return e.identity }

// HandleEvent folds one event into the engine state.
func (e *Engine) HandleEvent(ctx context.Context, ev model.Event) {
	start := time.Now()
	defer func() { metrics.RecordHandleLatency(time.Since(start)) }()

	t := ev.Time()
	if t.After(e.now) {
		e.now = t
	}
	e.stats.EventsHandled++
	metrics.RecordEventHandled(string(ev.Kind()))

	e.observe(ctx, ev)
	e.maybeSweep(ctx, t)

	switch v := ev.(type) {
	case model.Hit:
		e.handleHit(ctx, v)
	case model.Miss:
		e.handleMiss(ctx, v)
	case model.Heal:
		e.handleHeal(ctx, v)
	case model.Cast:
		if v.Type == model.CastBegin {
			e.handleCast(ctx, v)
		}
	case model.Death:
		e.handleDeath(ctx, v)
	case model.Critical:
		e.handleCritical(ctx, v)
	}
}

// observe updates identity, buffs and ambient state before attribution.
func (e *Engine) observe(ctx context.Context, ev model.Event) {
	switch v := ev.(type) {
	case model.StreamOpened:
		e.reopen(ctx, v)
	case model.ZoneChanged:
		e.zone = v.Name
	case model.PartyStatusChanged:
		e.observeParty(v)
	case model.ExperienceGained:
		switch v.Type {
		case model.ExperienceSolo:
			e.scope = encounter.Solo
		case model.ExperienceGroup:
			e.scope = encounter.Group
		case model.ExperienceRaid:
			e.scope = encounter.Raid
		}
	case model.Chat:
		if playerChannels[v.Channel] && v.Source != "" {
			e.identity.MarkPlayer(v.Source)
		}
	case model.RosterEntry:
		e.identity.MarkPlayer(v.Name)
		e.identity.SetClass(v.Name, v.Class)
		e.identity.SetLevel(v.Name, v.Level)
	case model.Considered:
		e.identity.SetLevel(v.Name, v.Level)
		if v.IsFoeLeaning && e.identity.ClassificationOf(v.Name) == identity.Unknown {
			e.identity.SetAdversary(v.Name)
		}
	case model.Cast:
		switch v.Type {
		case model.CastBegin:
			if class, ok := e.spells.Class(v.Spell); ok && v.Source != "" {
				e.identity.SetClass(v.Source, class)
			}
		case model.CastLandedBeneficial:
			e.buffs.Record(v.Source, v.Spell, buffs.Beneficial, v.At)
		case model.CastLandedDetrimental:
			e.buffs.Record(v.Source, v.Spell, buffs.Detrimental, v.At)
		}
	case model.Heal:
		if v.Source == "" || v.Target == "" || v.Source == v.Target {
			return
		}
		if target, ok := e.spells.Target(v.Spell); ok && target == spells.TargetPet {
			e.identity.SetOwner(v.Target, v.Source)
		}
		if e.identity.IsAlly(v.Source) && e.identity.ClassificationOf(v.Target) == identity.Unknown {
			e.identity.SetAlly(v.Target)
		}
	case model.Hit:
		if v.Source != "" && e.identity.IsAlly(v.Source) {
			e.identity.NoteAllyDamage(v.Target, v.At)
		}
	}
}

// playerChannels are chat channels only players can speak on.
var playerChannels = map[string]bool{
	"group":      true,
	"raid":       true,
	"guild":      true,
	"tell":       true,
	"fellowship": true,
	"ooc":        true,
	"auction":    true,
	"shout":      true,
}

func (e *Engine) observeParty(v model.PartyStatusChanged) {
	self := v.Name == "" || v.Name == e.actor
	if !self {
		if v.Status == model.JoinedGroup || v.Status == model.JoinedRaid {
			e.identity.MarkPlayer(v.Name)
		}
	}
	switch v.Status {
	case model.JoinedRaid:
		e.scope = encounter.Raid
	case model.JoinedGroup:
		if e.scope < encounter.Group {
			e.scope = encounter.Group
		}
	case model.LeftRaid, model.LeftGroup:
		if self {
			e.scope = encounter.Solo
		}
	}
}

// reopen finishes everything from the previous stream and starts over.
func (e *Engine) reopen(ctx context.Context, v model.StreamOpened) {
	e.ForceTimeouts(ctx)
	e.identity.Reset()
	e.buffs.Reset()
	for _, ev := range e.pending {
		e.drop(ctx, ev, "unresolved")
	}
	e.pending = nil
	metrics.UpdatePendingEvents(0)
	e.crits.reset()
	e.lastSweep = time.Time{}
	e.zone = ""
	e.scope = encounter.Solo
	e.actor, e.server = v.ActorSelfName, v.ServerName
	if v.ActorSelfName != "" {
		e.identity.MarkPlayer(v.ActorSelfName)
	}
	e.log.Info(ctx, "stream opened",
		logger.String("actor", v.ActorSelfName),
		logger.String("server", v.ServerName),
	)
}

// open returns the active encounter for adversary, creating it and replaying
// buffered events that mention it.
func (e *Engine) open(ctx context.Context, adversary string, at time.Time) *tracked {
	if tr, ok := e.active[adversary]; ok {
		return tr
	}

	var replay []model.Event
	kept := e.pending[:0]
	for _, ev := range e.pending {
		src, tgt := endpoints(ev)
		if src == adversary || tgt == adversary {
			replay = append(replay, ev)
			if ev.Time().Before(at) {
				at = ev.Time()
			}
			continue
		}
		kept = append(kept, ev)
	}
	e.pending = kept
	metrics.UpdatePendingEvents(len(e.pending))

	e.seq++
	tr := &tracked{
		enc: encounter.New(adversary, at,
			encounter.WithID(e.newID()),
			encounter.WithZone(e.zone),
			encounter.WithScope(e.scope),
			encounter.WithServer(e.server),
			encounter.WithActor(e.actor),
		),
		created: e.seq,
		touched: e.seq,
	}
	e.active[adversary] = tr
	e.stats.EncountersStarted++
	metrics.RecordEncounterStarted()
	metrics.UpdateActiveEncounters(len(e.active))

	for _, ev := range replay {
		src, tgt := endpoints(ev)
		if adv, ok := e.identity.ResolveAdversary(src, tgt); !ok || adv != adversary {
			e.drop(ctx, ev, "unresolved")
			continue
		}
		e.stats.EventsReplayed++
		switch v := ev.(type) {
		case model.Hit:
			v.Source, v.Target = src, tgt
			tr.enc.AddHit(v)
		case model.Miss:
			v.Source, v.Target = src, tgt
			tr.enc.AddMiss(v)
		}
	}

	e.log.Info(ctx, "encounter started",
		logger.String("encounter.id", tr.enc.ID),
		logger.String("encounter.adversary", adversary),
		logger.String("encounter.zone", e.zone),
		logger.Int("encounter.replayed", len(replay)),
	)
	for _, o := range e.observers {
		o.EncounterStarted(ctx, tr.enc)
	}
	return tr
}

// endpoints returns the normalized source and target of a hit or miss.
func endpoints(ev model.Event) (string, string) {
	var src, tgt string
	switch v := ev.(type) {
	case model.Hit:
		src, tgt = v.Source, v.Target
	case model.Miss:
		src, tgt = v.Source, v.Target
	}
	src, _ = identity.NormalizeName(src)
	tgt, _ = identity.NormalizeName(tgt)
	return src, tgt
}

// bufferPending keeps an unresolved hit or miss for later replay. Events
// that age out of the window or overflow the cap count as dropped.
func (e *Engine) bufferPending(ctx context.Context, ev model.Event) {
	e.stats.EventsBuffered++
	metrics.RecordEventBuffered()
	cutoff := e.now.Add(-e.pendingWindow)
	n := sort.Search(len(e.pending), func(i int) bool { return !e.pending[i].Time().Before(cutoff) })
	if over := len(e.pending) - n + 1 - maxPending; over > 0 {
		n += over
	}
	for _, old := range e.pending[:n] {
		e.drop(ctx, old, "unresolved")
	}
	e.pending = append(e.pending[n:], ev)
	metrics.UpdatePendingEvents(len(e.pending))
}

func (e *Engine) drop(ctx context.Context, ev model.Event, reason string) {
	e.stats.EventsDropped++
	metrics.RecordEventDropped(reason)
	e.log.Debug(ctx, "event dropped",
		logger.String("event.kind", string(ev.Kind())),
		logger.String("reason", reason),
	)
}

// touch marks tr as the most recently attributed encounter.
func (e *Engine) touch(tr *tracked) {
	e.seq++
	tr.touched = e.seq
}

// lastTouched returns the most recently attributed active encounter.
func (e *Engine) lastTouched() *tracked {
	var best *tracked
	for _, tr := range e.active {
		if best == nil || tr.touched > best.touched {
			best = tr
		}
	}
	return best
}

// byCreation returns active encounters newest first.
func (e *Engine) byCreation() []*tracked {
	out := make([]*tracked, 0, len(e.active))
	for _, tr := range e.active {
		out = append(out, tr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].created > out[j].created })
	return out
}
