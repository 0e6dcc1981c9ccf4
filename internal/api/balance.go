package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fltops/autopilot/internal/balance"
	"github.com/fltops/autopilot/internal/planner"
	"github.com/fltops/autopilot/internal/scoring"
	"github.com/fltops/autopilot/internal/store"
)

type BalanceHandler struct {
	planner *planner.Planner
}

func NewBalanceHandler(p *planner.Planner) *BalanceHandler {
	return &BalanceHandler{planner: p}
}

type BalanceRequest struct {
	Metric       string   `json:"metric,omitempty"`
	Unit         string   `json:"unit,omitempty"`
	TargetCredit *float64 `json:"target_credit,omitempty"`
	Commit       bool     `json:"commit,omitempty"`
}

type BalanceResponse struct {
	Plan      *balance.Plan             `json:"plan"`
	Committed []*store.AssignmentRecord `json:"committed,omitempty"`
}

// Run executes a balancing pass over all unassigned trips. With commit
// false the plan is a dry run; nothing is written.
func (h *BalanceHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req BalanceRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}

	opts := balance.Options{
		Metric:       balance.Metric(req.Metric),
		Unit:         balance.Unit(req.Unit),
		TargetCredit: req.TargetCredit,
	}
	if req.Metric != "" && opts.Metric != balance.MetricDuration && opts.Metric != balance.MetricLegs {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "metric must be credit-by-duration or credit-by-legs"})
		return
	}
	if req.Unit != "" && opts.Unit != balance.UnitHours && opts.Unit != balance.UnitDays {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unit must be hours or days"})
		return
	}

	plan, committed, err := h.planner.RunBalance(r.Context(), opts, req.Commit)
	if errors.Is(err, scoring.ErrInvalidRoster) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{Plan: plan, Committed: committed})
}
