package api

import (
	"encoding/json"
	"net/http"

	"github.com/fltops/autopilot/internal/store"
)

type PilotsHandler struct {
	store store.Store
}

func NewPilotsHandler(s store.Store) *PilotsHandler {
	return &PilotsHandler{store: s}
}

func (h *PilotsHandler) List(w http.ResponseWriter, r *http.Request) {
	pilots, err := h.store.ListPilots(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if pilots == nil {
		pilots = []*store.Pilot{}
	}
	writeJSON(w, http.StatusOK, pilots)
}

// Upsert creates or replaces a pilot keyed by short code. Roster edits
// from the dispatcher UI come through here between MySky syncs.
func (h *PilotsHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var pilot store.Pilot
	if err := json.NewDecoder(r.Body).Decode(&pilot); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if pilot.ShortCode == "" || pilot.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "short_code and name required"})
		return
	}
	if pilot.Seat != store.SeatPIC && pilot.Seat != store.SeatSIC && pilot.Seat != store.SeatDual {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "seat must be pic, sic or dual"})
		return
	}

	if err := h.store.UpsertPilot(r.Context(), &pilot); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, &pilot)
}
