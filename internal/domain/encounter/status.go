package encounter

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of an encounter.
type Status int

// Encounter statuses. Active is the only non-terminal state.
const (
	Active Status = iota
	Killed
	TimedOut
	Merged
)

var statusNames = [...]string{"Active", "Killed", "TimedOut", "Merged"}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// MarshalText encodes the status as its name.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(b []byte) error {
	for i, n := range statusNames {
		if strings.EqualFold(n, string(b)) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("%w: status %q", ErrInvalidRecord, b)
}

// PartyScope is the size of the group fighting.
type PartyScope int

// Party scopes.
const (
	Solo PartyScope = iota
	Group
	Raid
)

var scopeNames = [...]string{"Solo", "Group", "Raid"}

func (p PartyScope) String() string {
	if p < 0 || int(p) >= len(scopeNames) {
		return fmt.Sprintf("PartyScope(%d)", int(p))
	}
	return scopeNames[p]
}

// MarshalText encodes the scope as its name.
func (p PartyScope) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText decodes a scope name.
func (p *PartyScope) UnmarshalText(b []byte) error {
	for i, n := range scopeNames {
		if strings.EqualFold(n, string(b)) {
			*p = PartyScope(i)
			return nil
		}
	}
	return fmt.Errorf("%w: party scope %q", ErrInvalidRecord, b)
}

// SpellType separates damage spells from healing spells. Damage sorts first.
type SpellType int

// Spell types.
const (
	SpellDamage SpellType = iota
	SpellHeal
)

func (t SpellType) String() string {
	if t == SpellHeal {
		return "heal"
	}
	return "damage"
}

// MarshalText encodes the type as its name.
func (t SpellType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText decodes a spell type name.
func (t *SpellType) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "damage":
		*t = SpellDamage
	case "heal":
		*t = SpellHeal
	default:
		return fmt.Errorf("%w: spell type %q", ErrInvalidRecord, b)
	}
	return nil
}
