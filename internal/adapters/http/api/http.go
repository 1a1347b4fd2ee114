// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/fightlog/internal/adapters/mq/queue"
	"github.com/okian/fightlog/internal/adapters/repository"
	"github.com/okian/fightlog/internal/domain/dedupe"
	"github.com/okian/fightlog/internal/domain/encounter"
	"github.com/okian/fightlog/internal/domain/model"
	"github.com/okian/fightlog/internal/domain/tracker"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	EventDependencies
	EncounterDependencies
	ActiveDependencies
	RankingDependencies
	StatsProvider
}

// EventDependencies accepts events for asynchronous processing. The
// deduper tracks Idempotency-Key headers of accepted batches.
type EventDependencies interface {
	dedupe.Deduper
	// EnqueueEvents queues a batch in order, all or nothing.
	EnqueueEvents(ctx context.Context, events []model.Event) error
}

// EncounterDependencies reads and merges finished encounters.
type EncounterDependencies interface {
	Encounters(ctx context.Context, limit int) ([]encounter.Record, error)
	Encounter(ctx context.Context, id string) (encounter.Record, error)
	MergeEncounters(ctx context.Context, name string, ids []string) (encounter.Record, error)
}

// ActiveDependencies exposes the engine's in-flight state.
type ActiveDependencies interface {
	ActiveEncounters(ctx context.Context) []tracker.EncounterView
	ActiveRaids(ctx context.Context) []tracker.RaidView
}

// RankingDependencies ranks participants by damage.
type RankingDependencies interface {
	TopDamage(ctx context.Context, n int) ([]repository.Entry, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	eventsHandler     *EventsHandler
	encountersHandler *EncountersHandler
	activeHandler     *ActiveHandler
	rankingHandler    *RankingHandler
}

// NewServer creates a new API server with all handlers. maxLimit caps the
// limit query parameter of list endpoints.
func NewServer(deps Dependencies, maxLimit int) *Server {
	return &Server{
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(deps),
		eventsHandler:     NewEventsHandler(deps),
		encountersHandler: NewEncountersHandler(deps, maxLimit),
		activeHandler:     NewActiveHandler(deps),
		rankingHandler:    NewRankingHandler(deps, maxLimit),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/events", MetricsMiddleware(s.eventsHandler.HandlePostEvents, "events"))
	mux.HandleFunc("/encounters", MetricsMiddleware(s.encountersHandler.HandleList, "encounters"))
	mux.HandleFunc("/encounters/merge", MetricsMiddleware(s.encountersHandler.HandleMerge, "encounters_merge"))
	mux.HandleFunc("/encounters/", MetricsMiddleware(s.encountersHandler.HandleGet, "encounter"))
	mux.HandleFunc("/active", MetricsMiddleware(s.activeHandler.HandleActive, "active"))
	mux.HandleFunc("/top", MetricsMiddleware(s.rankingHandler.HandleTop, "top"))
}

type ackResponse struct {
	Status    string `json:"status"`
	Accepted  int    `json:"accepted"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeUpstreamError translates errors of the layers below into responses.
func writeUpstreamError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, queue.ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, queue.ErrQueueClosed), errors.Is(err, ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	case errors.Is(err, repository.ErrInvalidLimit), errors.Is(err, ErrBadRequest),
		errors.Is(err, model.ErrInvalidEvent), errors.Is(err, model.ErrUnknownKind),
		errors.Is(err, model.ErrUnknownModifier):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, encounter.ErrInvalidRecord):
		writeError(w, http.StatusUnprocessableEntity, "invalid_record", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
