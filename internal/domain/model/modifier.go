package model

import (
	"fmt"
	"strings"
)

// Modifier is a bitset of special hit/heal properties reported by the log.
type Modifier uint16

// Modifier flags.
const (
	ModCritical Modifier = 1 << iota
	ModTwincast
	ModStrikethrough
	ModFinishingBlow
	ModHeadshot
	ModAssassinate
	ModSlayUndead
	ModRiposte
	ModLucky
	ModRampage
	ModFlurry
)

var modifierNames = []struct {
	flag Modifier
	name string
}{
	{ModCritical, "critical"},
	{ModTwincast, "twincast"},
	{ModStrikethrough, "strikethrough"},
	{ModFinishingBlow, "finishing_blow"},
	{ModHeadshot, "headshot"},
	{ModAssassinate, "assassinate"},
	{ModSlayUndead, "slay_undead"},
	{ModRiposte, "riposte"},
	{ModLucky, "lucky"},
	{ModRampage, "rampage"},
	{ModFlurry, "flurry"},
}

// Has reports whether every flag in f is set.
func (m Modifier) Has(f Modifier) bool { return m&f == f }

// Names returns the set flags in declaration order.
func (m Modifier) Names() []string {
	var out []string
	for _, n := range modifierNames {
		if m.Has(n.flag) {
			out = append(out, n.name)
		}
	}
	return out
}

// String implements fmt.Stringer.
func (m Modifier) String() string { return strings.Join(m.Names(), "|") }

// ParseModifiers converts flag names back into a Modifier.
func ParseModifiers(names []string) (Modifier, error) {
	var m Modifier
next:
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		for _, n := range modifierNames {
			if n.name == name {
				m |= n.flag
				continue next
			}
		}
		return 0, fmt.Errorf("%w: %q", ErrUnknownModifier, raw)
	}
	return m, nil
}
