// Package spells answers class and target-kind questions about spell names.
package spells

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// TargetKind is what a spell can be cast on.
type TargetKind string

// Target kinds.
const (
	TargetSelf   TargetKind = "self"
	TargetSingle TargetKind = "single"
	TargetGroup  TargetKind = "group"
	TargetPet    TargetKind = "pet"
	TargetArea   TargetKind = "area"
)

// ErrInvalidCatalog is returned for unreadable or malformed catalog files.
var ErrInvalidCatalog = errors.New("invalid spell catalog")

// Lookup is the collaborator the engine uses to infer class and pet
// ownership from spell names.
type Lookup interface {
	Class(spell string) (string, bool)
	Target(spell string) (TargetKind, bool)
}

// Spell is one catalog entry.
type Spell struct {
	Name   string     `yaml:"name"`
	Class  string     `yaml:"class"`
	Target TargetKind `yaml:"target"`
}

type catalogFile struct {
	Spells []Spell `yaml:"spells"`
}

// Catalog is an in-memory Lookup keyed by lowercased spell name.
type Catalog struct {
	byName map[string]Spell
}

// NewCatalog builds a catalog from entries. Later duplicates win.
func NewCatalog(entries ...Spell) *Catalog {
	c := &Catalog{byName: make(map[string]Spell, len(entries))}
	for _, s := range entries {
		if s.Name == "" {
			continue
		}
		c.byName[strings.ToLower(s.Name)] = s
	}
	return c
}

// Parse reads a YAML document of the form {spells: [{name, class, target}]}.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	for i, s := range f.Spells {
		if s.Name == "" {
			return nil, fmt.Errorf("%w: entry %d has no name", ErrInvalidCatalog, i)
		}
		switch s.Target {
		case "", TargetSelf, TargetSingle, TargetGroup, TargetPet, TargetArea:
		default:
			return nil, fmt.Errorf("%w: spell %q has unknown target %q", ErrInvalidCatalog, s.Name, s.Target)
		}
	}
	return NewCatalog(f.Spells...), nil
}

// LoadFile reads a catalog from path.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	return Parse(data)
}

// Class returns the class that casts spell.
func (c *Catalog) Class(spell string) (string, bool) {
	s, ok := c.byName[strings.ToLower(spell)]
	if !ok || s.Class == "" {
		return "", false
	}
	return s.Class, true
}

// Target returns the target kind of spell.
func (c *Catalog) Target(spell string) (TargetKind, bool) {
	s, ok := c.byName[strings.ToLower(spell)]
	if !ok || s.Target == "" {
		return "", false
	}
	return s.Target, true
}

// Len returns the number of entries.
func (c *Catalog) Len() int { return len(c.byName) }

// None is a Lookup that knows nothing.
type None struct{}

func (None) Class(string) (string, bool)      { return "", false }
func (None) Target(string) (TargetKind, bool) { return "", false }
