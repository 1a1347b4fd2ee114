// Package replay drives the encounter service from recorded event streams:
// offline runs over an NDJSON file, synthetic stream generation and posting
// a stream to a running server.
package replay

import (
	"errors"
	"time"

	"github.com/okian/fightlog/internal/domain/encounter"
)

// Sentinel errors.
var (
	ErrBadLine   = errors.New("bad event line")
	ErrRejected  = errors.New("events rejected by server")
	ErrUnhealthy = errors.New("service unhealthy")
)

// RunConfig configures an offline replay.
type RunConfig struct {
	EventsPath    string
	TemplatesPath string
	SpellsPath    string
	OutPath       string
}

// Summary describes an offline replay.
type Summary struct {
	Events   int
	Records  []encounter.Record
	Duration time.Duration
}

// PostConfig configures posting a stream to a server.
type PostConfig struct {
	BaseURL    string
	BatchSize  int
	Timeout    time.Duration
	MaxRetries int
}

// PostStats counts the outcome of a post.
type PostStats struct {
	Batches  int
	Accepted int
	Retries  int
}
