package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

const defaultListLimit = 50

// EncountersHandler serves finished encounters.
type EncountersHandler struct {
	deps     EncounterDependencies
	maxLimit int
}

// NewEncountersHandler creates a new encounters handler.
func NewEncountersHandler(deps EncounterDependencies, maxLimit int) *EncountersHandler {
	return &EncountersHandler{deps: deps, maxLimit: maxLimit}
}

// HandleList handles GET /encounters?limit=N, most recent first.
func (h *EncountersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	n, err := parseLimit(r, h.maxLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	records, err := h.deps.Encounters(r.Context(), n)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// HandleGet handles GET /encounters/{id}.
func (h *EncountersHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/encounters/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	rec, err := h.deps.Encounter(r.Context(), id)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// mergeRequest is the body of POST /encounters/merge.
type mergeRequest struct {
	Name string   `json:"name"`
	IDs  []string `json:"ids"`
}

func (m mergeRequest) validate() error {
	if len(m.IDs) < 2 {
		return fmt.Errorf("%w: at least two ids are required", ErrBadRequest)
	}
	seen := make(map[string]bool, len(m.IDs))
	for _, id := range m.IDs {
		switch {
		case strings.TrimSpace(id) == "":
			return fmt.Errorf("%w: empty id", ErrBadRequest)
		case seen[id]:
			return fmt.Errorf("%w: duplicate id %q", ErrBadRequest, id)
		}
		seen[id] = true
	}
	return nil
}

// HandleMerge handles POST /encounters/merge and returns the merged record.
func (h *EncountersHandler) HandleMerge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req mergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	rec, err := h.deps.MergeEncounters(r.Context(), strings.TrimSpace(req.Name), req.IDs)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// parseLimit reads ?limit, defaulting when absent.
func parseLimit(r *http.Request, maxLimit int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return min(defaultListLimit, maxLimit), nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: limit must be a positive integer", ErrBadRequest)
	}
	if n > maxLimit {
		return 0, fmt.Errorf("%w: limit exceeds %d", ErrBadRequest, maxLimit)
	}
	return n, nil
}
