package encounter

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RaidTemplate groups related adversaries of a zone into one raid.
type RaidTemplate struct {
	Zone        string   `json:"zone" yaml:"zone"`
	Name        string   `json:"name" yaml:"name"`
	Adversaries []string `json:"adversaries" yaml:"adversaries"`
	EndsOnDeath []string `json:"ends_on_death" yaml:"ends_on_death"`
}

// Validate rejects templates missing a zone, a name or adversaries, and
// ends-on-death names that are not adversaries of the template.
func (t RaidTemplate) Validate() error {
	switch {
	case strings.TrimSpace(t.Zone) == "":
		return fmt.Errorf("%w: missing zone", ErrInvalidTemplate)
	case strings.TrimSpace(t.Name) == "":
		return fmt.Errorf("%w: missing name", ErrInvalidTemplate)
	case len(t.Adversaries) == 0:
		return fmt.Errorf("%w: %s has no adversaries", ErrInvalidTemplate, t.Name)
	}
	for _, a := range t.Adversaries {
		if strings.TrimSpace(a) == "" {
			return fmt.Errorf("%w: %s has an empty adversary name", ErrInvalidTemplate, t.Name)
		}
	}
	for _, n := range t.EndsOnDeath {
		if !slices.Contains(t.Adversaries, n) {
			return fmt.Errorf("%w: %s ends on %q which is not an adversary", ErrInvalidTemplate, t.Name, n)
		}
	}
	return nil
}

// Matches reports whether adversary fighting in zone belongs to the raid.
func (t RaidTemplate) Matches(zone, adversary string) bool {
	return strings.EqualFold(t.Zone, zone) && slices.Contains(t.Adversaries, adversary)
}

// EndsOn reports whether the death of adversary finishes the raid.
func (t RaidTemplate) EndsOn(adversary string) bool {
	return slices.Contains(t.EndsOnDeath, adversary)
}

// RaidEncounter collects finished encounters of one raid and merges them when
// the raid finishes.
type RaidEncounter struct {
	ID        string
	Template  RaidTemplate
	StartedAt time.Time
	UpdatedAt time.Time
	Status    Status

	members []*Encounter
}

// NewRaid starts an Active raid for template.
func NewRaid(template RaidTemplate) *RaidEncounter {
	return &RaidEncounter{ID: uuid.NewString(), Template: template, Status: Active}
}

// Members returns the encounters folded so far ordered by start.
func (r *RaidEncounter) Members() []*Encounter { return r.members }

// Add folds a finished encounter into the raid.
func (r *RaidEncounter) Add(e *Encounter) {
	if r.Status != Active {
		panic(fmt.Sprintf("raid %s: add to %s raid", r.ID, r.Status))
	}
	if !e.Finished() {
		panic(fmt.Sprintf("raid %s: add of active encounter %s", r.ID, e.ID))
	}
	i := sort.Search(len(r.members), func(i int) bool { return r.members[i].StartedAt.After(e.StartedAt) })
	r.members = slices.Insert(r.members, i, e)

	if r.StartedAt.IsZero() || e.StartedAt.Before(r.StartedAt) {
		r.StartedAt = e.StartedAt
	}
	if e.UpdatedAt.After(r.UpdatedAt) {
		r.UpdatedAt = e.UpdatedAt
	}
}

// Finish ends the raid with status and returns the merged encounter, or nil
// when no encounter was ever folded in.
func (r *RaidEncounter) Finish(status Status) *Encounter {
	if status == Active {
		panic(fmt.Sprintf("raid %s: finish with status Active", r.ID))
	}
	if r.Status != Active {
		panic(fmt.Sprintf("raid %s: finish of %s raid", r.ID, r.Status))
	}
	r.Status = status
	if len(r.members) == 0 {
		return nil
	}
	out := merge(r.ID, r.Template.Name, status, r.members)
	out.Zone = r.Template.Zone
	out.Scope = Raid
	return out
}
