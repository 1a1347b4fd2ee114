package model

import "testing"

func TestModifierNames(t *testing.T) {
	m := ModCritical | ModStrikethrough | ModSlayUndead
	got := m.String()
	if got != "critical|strikethrough|slay_undead" {
		t.Fatalf("String() = %q", got)
	}

	back, err := ParseModifiers(m.Names())
	if err != nil {
		t.Fatalf("ParseModifiers: %v", err)
	}
	if back != m {
		t.Fatalf("round trip = %v, want %v", back, m)
	}
}

func TestModifierHas(t *testing.T) {
	m := ModTwincast
	if !m.Has(ModTwincast) {
		t.Fatal("expected twincast")
	}
	if m.Has(ModTwincast | ModCritical) {
		t.Fatal("Has must require every flag")
	}
}
