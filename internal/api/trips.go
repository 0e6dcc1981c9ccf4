package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fltops/autopilot/internal/planner"
	"github.com/fltops/autopilot/internal/scoring"
	"github.com/fltops/autopilot/internal/store"
)

type TripsHandler struct {
	store   store.Store
	planner *planner.Planner
}

func NewTripsHandler(s store.Store, p *planner.Planner) *TripsHandler {
	return &TripsHandler{store: s, planner: p}
}

type CreateTripRequest struct {
	ID          string      `json:"id"`
	Airframe    string      `json:"airframe"`
	Tail        string      `json:"tail,omitempty"`
	Route       string      `json:"route"`
	Special     string      `json:"special,omitempty"`
	WindowStart *time.Time  `json:"window_start,omitempty"`
	WindowEnd   *time.Time  `json:"window_end,omitempty"`
	TAFBHours   *float64    `json:"tafb_hours,omitempty"`
	TAFBDays    *float64    `json:"tafb_days,omitempty"`
	Legs        []store.Leg `json:"legs,omitempty"`
}

func (h *TripsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateTripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.ID == "" || req.Airframe == "" || req.Route == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id, airframe and route required"})
		return
	}

	trip := &store.Trip{
		ID:          req.ID,
		Airframe:    req.Airframe,
		Tail:        req.Tail,
		Route:       req.Route,
		Special:     req.Special,
		WindowStart: req.WindowStart,
		WindowEnd:   req.WindowEnd,
		TAFBHours:   req.TAFBHours,
		TAFBDays:    req.TAFBDays,
		Legs:        req.Legs,
	}
	if err := h.store.CreateTrip(r.Context(), trip); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, trip)
}

func (h *TripsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := store.TripFilter{
		Airframe: r.URL.Query().Get("airframe"),
	}
	if v := r.URL.Query().Get("unassigned"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			filter.Unassigned = &b
		}
	}

	trips, err := h.store.ListTrips(r.Context(), filter)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if trips == nil {
		trips = []*store.Trip{}
	}
	writeJSON(w, http.StatusOK, trips)
}

func (h *TripsHandler) Get(w http.ResponseWriter, r *http.Request) {
	trip, err := h.store.GetTrip(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if trip == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "trip not found"})
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

// Recommendations returns the ranked pairing options for a trip. The UI
// typically shows the top 5 via ?limit=5; the full list stays available.
func (h *TripsHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	trip, recs, err := h.planner.RecommendTrip(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, planner.ErrTripNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "trip not found"})
		return
	}
	if errors.Is(err, scoring.ErrInvalidTrip) || errors.Is(err, scoring.ErrInvalidRoster) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n < len(recs) {
			recs = recs[:n]
		}
	}
	if recs == nil {
		recs = []scoring.Recommendation{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"trip":            trip,
		"recommendations": recs,
	})
}

type AssignRequest struct {
	PICShort        string `json:"pic_short"`
	SICShort        string `json:"sic_short"`
	DispatcherNotes string `json:"dispatcher_notes,omitempty"`
}

func (h *TripsHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var req AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.PICShort == "" || req.SICShort == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "pic_short and sic_short required"})
		return
	}

	dispatcher := r.Header.Get("X-Dispatcher-ID")
	record, err := h.planner.Assign(r.Context(), chi.URLParam(r, "id"),
		req.PICShort, req.SICShort, req.DispatcherNotes, dispatcher)
	switch {
	case errors.Is(err, planner.ErrTripNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "trip not found"})
	case errors.Is(err, planner.ErrTripAssigned):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "trip already assigned"})
	case errors.Is(err, planner.ErrPairNotEligible):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusCreated, record)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
