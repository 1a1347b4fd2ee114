// Package model contains the event taxonomy consumed by the encounter engine.
//
// Events form a closed union: every kind is a value type implementing Event,
// and consumers dispatch with a type switch. Names are expected to arrive
// pre-normalized by the parsing layer ("you" resolved to the actor name,
// possessive suffixes stripped).
package model

import "time"

// Kind identifies the concrete type of an Event.
type Kind string

// Event kinds.
const (
	KindHit                Kind = "hit"
	KindMiss               Kind = "miss"
	KindHeal               Kind = "heal"
	KindCast               Kind = "cast"
	KindDeath              Kind = "death"
	KindZoneChanged        Kind = "zone"
	KindPartyStatusChanged Kind = "party"
	KindExperienceGained   Kind = "experience"
	KindChat               Kind = "chat"
	KindRosterEntry        Kind = "roster"
	KindConsidered         Kind = "considered"
	KindStreamOpened       Kind = "stream_opened"
	KindCritical           Kind = "critical"
)

// Event is implemented only by the types in this package.
type Event interface {
	Kind() Kind
	Time() time.Time
	sealed()
}

// Header carries the fields shared by every event.
type Header struct {
	At time.Time
}

// Time returns the event timestamp.
func (h Header) Time() time.Time { return h.At }

func (Header) sealed() {}

// Hit is damage landing on a target. Source is empty when the attacker is
// unknown (a DoT ticking after its caster died).
type Hit struct {
	Header
	Source    string
	Target    string
	Amount    int64
	Category  string
	Modifiers Modifier
	Spell     string
}

// Miss is an attack that did not land. Category is the defense that stopped
// it (miss, parry, dodge, ...); spell misses are resists.
type Miss struct {
	Header
	Source    string
	Target    string
	Category  string
	Modifiers Modifier
	Spell     string
}

// Heal restores hit points. Gross includes overhealing.
type Heal struct {
	Header
	Source    string
	Target    string
	Amount    int64
	Gross     int64
	Spell     string
	Modifiers Modifier
}

// CastType distinguishes a cast starting from an effect landing.
type CastType string

// Cast types.
const (
	CastBegin             CastType = "begin"
	CastLandedBeneficial  CastType = "beneficial"
	CastLandedDetrimental CastType = "detrimental"
)

// Cast reports spell activity. For CastBegin Source is the caster; for the
// landed types Source is the actor the effect landed on.
type Cast struct {
	Header
	Source string
	Spell  string
	Type   CastType
}

// Death reports Name dying, optionally with the killer.
type Death struct {
	Header
	Name     string
	KillShot string
}

// ZoneChanged reports the log owner entering a zone.
type ZoneChanged struct {
	Header
	Name string
}

// PartyStatus is a party membership transition.
type PartyStatus string

// Party statuses.
const (
	JoinedGroup PartyStatus = "joined_group"
	LeftGroup   PartyStatus = "left_group"
	JoinedRaid  PartyStatus = "joined_raid"
	LeftRaid    PartyStatus = "left_raid"
)

// PartyStatusChanged reports Name joining or leaving a group or raid.
type PartyStatusChanged struct {
	Header
	Name   string
	Status PartyStatus
}

// ExperienceType is the party context an experience message was earned in.
type ExperienceType string

// Experience types.
const (
	ExperienceSolo  ExperienceType = "solo"
	ExperienceGroup ExperienceType = "group"
	ExperienceRaid  ExperienceType = "raid"
)

// ExperienceGained reports experience awarded to the log owner.
type ExperienceGained struct {
	Header
	Type ExperienceType
}

// Chat is a line of communication on a channel.
type Chat struct {
	Header
	Source  string
	Channel string
	Message string
}

// RosterEntry is one line of a group/raid roster listing.
type RosterEntry struct {
	Header
	Name  string
	Class string
	Level int
}

// Considered reports the result of considering an actor.
type Considered struct {
	Header
	Name         string
	Level        int
	IsFoeLeaning bool
}

// StreamOpened marks the start of a log stream for an actor on a server.
type StreamOpened struct {
	Header
	ActorSelfName string
	ServerName    string
}

// Critical is the separate crit notification line. Melee notices precede
// the damage line, spell notices follow it.
type Critical struct {
	Header
	Source string
	Amount int64
}

func (Hit) Kind() Kind                { return KindHit }
func (Miss) Kind() Kind               { return KindMiss }
func (Heal) Kind() Kind               { return KindHeal }
func (Cast) Kind() Kind               { return KindCast }
func (Death) Kind() Kind              { return KindDeath }
func (ZoneChanged) Kind() Kind        { return KindZoneChanged }
func (PartyStatusChanged) Kind() Kind { return KindPartyStatusChanged }
func (ExperienceGained) Kind() Kind   { return KindExperienceGained }
func (Chat) Kind() Kind               { return KindChat }
func (RosterEntry) Kind() Kind        { return KindRosterEntry }
func (Considered) Kind() Kind         { return KindConsidered }
func (StreamOpened) Kind() Kind       { return KindStreamOpened }
func (Critical) Kind() Kind           { return KindCritical }
