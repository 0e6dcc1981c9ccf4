package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/fltops/autopilot/internal/mysky"
	"github.com/fltops/autopilot/internal/planner"
	"github.com/fltops/autopilot/internal/store"
)

type AdminHandler struct {
	store   store.Store
	planner *planner.Planner
}

func NewAdminHandler(s store.Store, p *planner.Planner) *AdminHandler {
	return &AdminHandler{store: s, planner: p}
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetStats(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Sync pulls the pilot roster and trip sheet from MySky and reconciles
// them into the store. Existing trips are never overwritten.
func (h *AdminHandler) Sync(w http.ResponseWriter, r *http.Request) {
	pilots, trips, err := h.planner.Sync(r.Context())
	if errors.Is(err, mysky.ErrNotConfigured) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "mysky sync not configured"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"pilots_synced": pilots, "trips_created": trips})
}

func (h *AdminHandler) AssignmentHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	records, err := h.store.ListAssignmentRecords(r.Context(), limit, offset)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if records == nil {
		records = []*store.AssignmentRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}
