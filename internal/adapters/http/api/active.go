package api

import (
	"net/http"

	"github.com/okian/fightlog/internal/domain/tracker"
)

// ActiveHandler serves the engine's in-flight encounters and raids.
type ActiveHandler struct {
	deps ActiveDependencies
}

// NewActiveHandler creates a new active handler.
func NewActiveHandler(deps ActiveDependencies) *ActiveHandler {
	return &ActiveHandler{deps: deps}
}

type activeResponse struct {
	Encounters []tracker.EncounterView `json:"encounters"`
	Raids      []tracker.RaidView      `json:"raids"`
}

// HandleActive handles GET /active.
func (h *ActiveHandler) HandleActive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, activeResponse{
		Encounters: h.deps.ActiveEncounters(r.Context()),
		Raids:      h.deps.ActiveRaids(r.Context()),
	})
}
