package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// envelope is the flat JSON shape events travel in over HTTP and in NDJSON
// replay files. Only the fields relevant to Kind are populated.
type envelope struct {
	Kind       Kind      `json:"kind"`
	At         time.Time `json:"at"`
	Source     string    `json:"source,omitempty"`
	Target     string    `json:"target,omitempty"`
	Amount     int64     `json:"amount,omitempty"`
	Gross      int64     `json:"gross,omitempty"`
	Category   string    `json:"category,omitempty"`
	Spell      string    `json:"spell,omitempty"`
	Modifiers  []string  `json:"modifiers,omitempty"`
	CastType   CastType  `json:"cast_type,omitempty"`
	Name       string    `json:"name,omitempty"`
	KillShot   string    `json:"kill_shot,omitempty"`
	Status     string    `json:"status,omitempty"`
	Experience string    `json:"experience,omitempty"`
	Channel    string    `json:"channel,omitempty"`
	Message    string    `json:"message,omitempty"`
	Class      string    `json:"class,omitempty"`
	Level      int       `json:"level,omitempty"`
	FoeLeaning bool      `json:"foe_leaning,omitempty"`
	Actor      string    `json:"actor,omitempty"`
	Server     string    `json:"server,omitempty"`
}

// Encode marshals an event into its JSON envelope.
func Encode(ev Event) ([]byte, error) {
	env := envelope{Kind: ev.Kind(), At: ev.Time()}
	switch e := ev.(type) {
	case Hit:
		env.Source, env.Target, env.Amount, env.Category, env.Spell = e.Source, e.Target, e.Amount, e.Category, e.Spell
		env.Modifiers = e.Modifiers.Names()
	case Miss:
		env.Source, env.Target, env.Category, env.Spell = e.Source, e.Target, e.Category, e.Spell
		env.Modifiers = e.Modifiers.Names()
	case Heal:
		env.Source, env.Target, env.Amount, env.Gross, env.Spell = e.Source, e.Target, e.Amount, e.Gross, e.Spell
		env.Modifiers = e.Modifiers.Names()
	case Cast:
		env.Source, env.Spell, env.CastType = e.Source, e.Spell, e.Type
	case Death:
		env.Name, env.KillShot = e.Name, e.KillShot
	case ZoneChanged:
		env.Name = e.Name
	case PartyStatusChanged:
		env.Name, env.Status = e.Name, string(e.Status)
	case ExperienceGained:
		env.Experience = string(e.Type)
	case Chat:
		env.Source, env.Channel, env.Message = e.Source, e.Channel, e.Message
	case RosterEntry:
		env.Name, env.Class, env.Level = e.Name, e.Class, e.Level
	case Considered:
		env.Name, env.Level, env.FoeLeaning = e.Name, e.Level, e.IsFoeLeaning
	case StreamOpened:
		env.Actor, env.Server = e.ActorSelfName, e.ServerName
	case Critical:
		env.Source, env.Amount = e.Source, e.Amount
	default:
		return nil, fmt.Errorf("encode %T: %w", ev, ErrUnknownKind)
	}
	return json.Marshal(env)
}

// Decode parses a single JSON envelope.
func Decode(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return env.event()
}

// DecodeBatch parses either a single envelope object or an array of them.
func DecodeBatch(data []byte) ([]Event, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidEvent)
	}
	if trimmed[0] != '[' {
		ev, err := Decode(trimmed)
		if err != nil {
			return nil, err
		}
		return []Event{ev}, nil
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(trimmed, &raws); err != nil {
		return nil, fmt.Errorf("decode event batch: %w", err)
	}
	out := make([]Event, 0, len(raws))
	for i, raw := range raws {
		ev, err := Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		out = append(out, ev)
	}
	return out, nil
}

func (env envelope) event() (Event, error) {
	if env.At.IsZero() {
		return nil, fmt.Errorf("%w: missing timestamp", ErrInvalidEvent)
	}
	h := Header{At: env.At}
	mods, err := ParseModifiers(env.Modifiers)
	if err != nil {
		return nil, err
	}

	switch env.Kind {
	case KindHit:
		if env.Target == "" {
			return nil, fmt.Errorf("%w: hit without target", ErrInvalidEvent)
		}
		return Hit{Header: h, Source: env.Source, Target: env.Target, Amount: env.Amount,
			Category: strings.ToLower(env.Category), Modifiers: mods, Spell: env.Spell}, nil
	case KindMiss:
		if env.Target == "" {
			return nil, fmt.Errorf("%w: miss without target", ErrInvalidEvent)
		}
		return Miss{Header: h, Source: env.Source, Target: env.Target,
			Category: strings.ToLower(env.Category), Modifiers: mods, Spell: env.Spell}, nil
	case KindHeal:
		if env.Target == "" {
			return nil, fmt.Errorf("%w: heal without target", ErrInvalidEvent)
		}
		gross := env.Gross
		if gross < env.Amount {
			gross = env.Amount
		}
		return Heal{Header: h, Source: env.Source, Target: env.Target, Amount: env.Amount,
			Gross: gross, Spell: env.Spell, Modifiers: mods}, nil
	case KindCast:
		ct := env.CastType
		if ct == "" {
			ct = CastBegin
		}
		switch ct {
		case CastBegin, CastLandedBeneficial, CastLandedDetrimental:
		default:
			return nil, fmt.Errorf("%w: cast type %q", ErrInvalidEvent, ct)
		}
		return Cast{Header: h, Source: env.Source, Spell: env.Spell, Type: ct}, nil
	case KindDeath:
		return Death{Header: h, Name: env.Name, KillShot: env.KillShot}, nil
	case KindZoneChanged:
		return ZoneChanged{Header: h, Name: env.Name}, nil
	case KindPartyStatusChanged:
		status := PartyStatus(env.Status)
		switch status {
		case JoinedGroup, LeftGroup, JoinedRaid, LeftRaid:
		default:
			return nil, fmt.Errorf("%w: party status %q", ErrInvalidEvent, env.Status)
		}
		return PartyStatusChanged{Header: h, Name: env.Name, Status: status}, nil
	case KindExperienceGained:
		typ := ExperienceType(env.Experience)
		switch typ {
		case ExperienceSolo, ExperienceGroup, ExperienceRaid:
		default:
			return nil, fmt.Errorf("%w: experience type %q", ErrInvalidEvent, env.Experience)
		}
		return ExperienceGained{Header: h, Type: typ}, nil
	case KindChat:
		return Chat{Header: h, Source: env.Source, Channel: strings.ToLower(env.Channel), Message: env.Message}, nil
	case KindRosterEntry:
		return RosterEntry{Header: h, Name: env.Name, Class: env.Class, Level: env.Level}, nil
	case KindConsidered:
		return Considered{Header: h, Name: env.Name, Level: env.Level, IsFoeLeaning: env.FoeLeaning}, nil
	case KindStreamOpened:
		return StreamOpened{Header: h, ActorSelfName: env.Actor, ServerName: env.Server}, nil
	case KindCritical:
		return Critical{Header: h, Source: env.Source, Amount: env.Amount}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
	}
}
