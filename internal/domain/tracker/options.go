package tracker

import (
	"time"

	"github.com/okian/fightlog/internal/domain/spells"
	"github.com/okian/fightlog/pkg/logger"
)

// Default timing configuration.
const (
	DefaultGroupTimeout  = 15 * time.Second
	DefaultRaidTimeout   = 60 * time.Second
	DefaultPendingWindow = 60 * time.Second
	DefaultSweepInterval = 5 * time.Second
	DefaultBuffRetention = 30 * time.Minute

	// buffLead is how far before the encounter start buff landings are
	// attached.
	buffLead = 10 * time.Second
	// maxPending caps the unresolved event buffer regardless of its window.
	maxPending = 4096
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithGroupTimeout sets the idle time after which solo and group encounters
// time out.
func WithGroupTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.groupTimeout = d
		}
	}
}

// WithRaidTimeout sets the idle time after which raid encounters and raids
// time out.
func WithRaidTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.raidTimeout = d
		}
	}
}

// WithPendingWindow bounds how long unresolved hits are kept for replay.
func WithPendingWindow(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.pendingWindow = d
		}
	}
}

// WithSweepInterval sets how much event time passes between timeout sweeps.
func WithSweepInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.sweepInterval = d
		}
	}
}

// WithBuffRetention bounds how long buff landings are kept per actor.
// Zero keeps every landing for the life of the stream.
func WithBuffRetention(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.buffRetention = d
		}
	}
}

// WithSpellLookup sets the spell catalog used for class and pet inference.
func WithSpellLookup(l spells.Lookup) Option {
	return func(e *Engine) {
		if l != nil {
			e.spells = l
		}
	}
}

// WithObserver registers an observer. Observers are notified in
// registration order.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observers = append(e.observers, o)
		}
	}
}

// WithIDGenerator overrides how encounter and raid ids are generated.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}
