package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/okian/fightlog/internal/domain/model"
)

// maxEventsBody bounds a POST /events payload.
const maxEventsBody = 8 << 20

// IdempotencyHeader names the request header carrying a batch key.
const IdempotencyHeader = "Idempotency-Key"

// EventsHandler handles event requests.
type EventsHandler struct {
	deps EventDependencies
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps EventDependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

// HandlePostEvents handles POST /events. The body is one event envelope or
// an array of them; the batch is queued whole or rejected whole. A batch
// repeating the Idempotency-Key of an accepted one is acknowledged without
// being queued again.
func (h *EventsHandler) HandlePostEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventsBody+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	if len(body) > maxEventsBody {
		writeError(w, http.StatusRequestEntityTooLarge, "too_large", ErrBadRequest)
		return
	}
	events, err := model.DecodeBatch(body)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	key := r.Header.Get(IdempotencyHeader)
	if key != "" && h.deps.SeenAndRecord(r.Context(), key) {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}
	if err := h.deps.EnqueueEvents(r.Context(), events); err != nil {
		if key != "" {
			h.deps.Unrecord(r.Context(), key)
		}
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", Accepted: len(events)})
}
