package replay

import (
	"math/rand/v2"
	"time"

	"github.com/okian/fightlog/internal/domain/model"
)

// GenerateConfig shapes a synthetic stream.
type GenerateConfig struct {
	Fights int
	Seed   uint64
	Start  time.Time
	Actor  string
	Server string
	Zone   string
	Party  []string
}

var adversaries = []string{
	"a gnoll pup",
	"a decaying skeleton",
	"a fire beetle",
	"an orc pawn",
	"a large rat",
	"a kobold runt",
}

var meleeCategories = []string{"slashes", "crushes", "pierces", "kicks", "bashes"}

const (
	fightGap     = 45 * time.Second
	minRounds    = 3
	maxRounds    = 8
	minHit       = 5
	maxHit       = 40
	healEvery    = 3
	healAmount   = 25
	defaultFight = 10
)

// Generate builds a deterministic stream in which the party kills
// cfg.Fights adversaries one after another. The first party member is the
// log owner unless cfg.Actor is set.
func Generate(cfg GenerateConfig) []model.Event {
	if cfg.Fights <= 0 {
		cfg.Fights = defaultFight
	}
	if cfg.Start.IsZero() {
		cfg.Start = time.Date(2026, 1, 1, 20, 0, 0, 0, time.UTC)
	}
	if len(cfg.Party) == 0 {
		cfg.Party = []string{"Aldar", "Brin", "Cyra"}
	}
	if cfg.Actor == "" {
		cfg.Actor = cfg.Party[0]
	}
	if cfg.Server == "" {
		cfg.Server = "Tunare"
	}
	if cfg.Zone == "" {
		cfg.Zone = "West Commonlands"
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	at := func(d time.Duration) model.Header { return model.Header{At: cfg.Start.Add(d)} }

	events := []model.Event{
		model.StreamOpened{Header: at(0), ActorSelfName: cfg.Actor, ServerName: cfg.Server},
		model.ZoneChanged{Header: at(0), Name: cfg.Zone},
	}
	for _, name := range cfg.Party {
		events = append(events, model.RosterEntry{Header: at(0), Name: name, Class: "Warrior", Level: 20})
	}

	clock := time.Second
	for i := range cfg.Fights {
		adversary := adversaries[i%len(adversaries)]
		rounds := minRounds + rng.IntN(maxRounds-minRounds+1)
		var last string
		for r := range rounds {
			for _, member := range cfg.Party {
				last = member
				events = append(events, model.Hit{
					Header:   at(clock),
					Source:   member,
					Target:   adversary,
					Amount:   int64(minHit + rng.IntN(maxHit-minHit+1)),
					Category: meleeCategories[rng.IntN(len(meleeCategories))],
				})
			}
			victim := cfg.Party[rng.IntN(len(cfg.Party))]
			if rng.IntN(4) == 0 {
				events = append(events, model.Miss{Header: at(clock), Source: adversary, Target: victim, Category: "miss"})
			} else {
				events = append(events, model.Hit{
					Header:   at(clock),
					Source:   adversary,
					Target:   victim,
					Amount:   int64(minHit + rng.IntN(maxHit-minHit+1)),
					Category: "hits",
				})
			}
			if r%healEvery == healEvery-1 {
				events = append(events, model.Heal{
					Header: at(clock),
					Source: cfg.Party[len(cfg.Party)-1],
					Target: victim,
					Amount: healAmount,
					Gross:  healAmount,
					Spell:  "Light Healing",
				})
			}
			clock += time.Second
		}
		events = append(events, model.Death{Header: at(clock), Name: adversary, KillShot: last})
		clock += fightGap
	}
	return events
}
