// Package balance distributes unassigned trips across the roster with a
// single greedy pass that minimizes projected workload variance. It is a
// myopic heuristic, not an optimal assignment: trip volume is small and
// dispatcher review is mandatory before anything is finalized.
package balance

import (
	"log/slog"
	"sort"
	"time"

	"github.com/fltops/autopilot/internal/scoring"
	"github.com/fltops/autopilot/internal/store"
)

type Metric string

const (
	MetricDuration Metric = "credit-by-duration"
	MetricLegs     Metric = "credit-by-legs"
)

type Unit string

const (
	UnitHours Unit = "hours"
	UnitDays  Unit = "days"
)

const (
	safetyAlertPenalty   = 6.0
	nightCurrencyPenalty = 5.0
	overusePenalty       = 3.0
	overuseFactor        = 1.5
	fallbackLegHours     = 6.0
	minCreditHours       = 0.5
)

// Options tune a balancing run. Zero values fall back to duration credits
// in hours with a computed target.
type Options struct {
	Metric       Metric   `json:"metric,omitempty"`
	Unit         Unit     `json:"unit,omitempty"`
	TargetCredit *float64 `json:"target_credit,omitempty"`
}

// PlannedAssignment is the balancer's choice for one trip.
type PlannedAssignment struct {
	PICShort       string                 `json:"pic_short"`
	SICShort       string                 `json:"sic_short"`
	Credit         float64                `json:"credit"`
	Recommendation scoring.Recommendation `json:"recommendation"`
}

// Plan is one balancing run's output. It is recomputed from scratch each
// run and never merged with a prior plan. Trips the balancer could not or
// did not need to assign are absent from Assignments.
type Plan struct {
	TargetCredit  float64                      `json:"target_credit"`
	CreditByPilot map[string]float64           `json:"credit_by_pilot"`
	Assignments   map[string]PlannedAssignment `json:"assignments"`
}

// TripIDs returns the planned trip identities in stable order, for callers
// that commit assignments deterministically.
func (p *Plan) TripIDs() []string {
	ids := make([]string, 0, len(p.Assignments))
	for id := range p.Assignments {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type Balancer struct {
	rec    *scoring.Recommender
	logger *slog.Logger
}

func New(rec *scoring.Recommender, logger *slog.Logger) *Balancer {
	return &Balancer{rec: rec, logger: logger}
}

// Balance runs the greedy fairness pass: trips in input order, no
// backtracking. Trips with either seat already filled are skipped, as are
// trips with no eligible pairings.
func (b *Balancer) Balance(trips []*store.Trip, pilots []*store.Pilot, history store.PairingHistory, duty *store.DutyStats, opts Options, now time.Time) (*Plan, error) {
	if err := scoring.ValidateRoster(pilots); err != nil {
		return nil, err
	}
	if opts.Metric == "" {
		opts.Metric = MetricDuration
	}
	if opts.Unit == "" {
		opts.Unit = UnitHours
	}

	credits := make(map[string]float64, len(pilots))
	for _, p := range pilots {
		credits[p.ShortCode] = 0
	}

	var target float64
	if opts.TargetCredit != nil {
		target = *opts.TargetCredit
	} else {
		target = estimateTarget(trips, pilots, opts)
	}

	assignments := make(map[string]PlannedAssignment)

	for _, trip := range trips {
		if trip.AssignedPIC != nil || trip.AssignedSIC != nil {
			continue
		}

		recs, err := b.rec.Recommend(trip, pilots, history, duty, now)
		if err != nil {
			return nil, err
		}
		if len(recs) == 0 {
			b.logger.Debug("no eligible pairings, leaving trip unassigned", "trip", trip.ID)
			continue
		}

		credit := TripCredit(trip, opts)

		bestIdx := -1
		bestScore := 0.0
		for i, rec := range recs {
			// The list is pre-sorted by pairing quality, so a strict
			// comparison makes ties favor the better pairing.
			score := projectedPenalty(credits, rec, credit, target)
			if bestIdx < 0 || score < bestScore {
				bestIdx = i
				bestScore = score
			}
		}

		chosen := recs[bestIdx]
		credits[chosen.PICShort] += credit
		credits[chosen.SICShort] += credit
		assignments[trip.ID] = PlannedAssignment{
			PICShort:       chosen.PICShort,
			SICShort:       chosen.SICShort,
			Credit:         credit,
			Recommendation: chosen,
		}
	}

	return &Plan{
		TargetCredit:  target,
		CreditByPilot: credits,
		Assignments:   assignments,
	}, nil
}

func projectedPenalty(credits map[string]float64, rec scoring.Recommendation, credit, target float64) float64 {
	proj := make(map[string]float64, len(credits))
	for k, v := range credits {
		proj[k] = v
	}
	proj[rec.PICShort] += credit
	proj[rec.SICShort] += credit

	score := varianceFromTarget(proj, target)
	if len(rec.SafetyAlerts) > 0 {
		score += safetyAlertPenalty
	}
	if !rec.NightCurrencyOK {
		score += nightCurrencyPenalty
	}
	for _, v := range proj {
		if v > target*overuseFactor {
			score += overusePenalty
		}
	}
	return score
}

// TripCredit converts a trip into its fairness credit under the options.
func TripCredit(trip *store.Trip, opts Options) float64 {
	if opts.Metric == MetricLegs {
		if len(trip.Legs) < 1 {
			return 1
		}
		return float64(len(trip.Legs))
	}

	hours := estimateTAFBHours(trip)
	if opts.Unit == UnitDays {
		return hours / 24
	}
	return hours
}

// estimateTAFBHours derives trip duration in priority order: explicit hours,
// explicit days, scheduling window, then a per-leg fallback.
func estimateTAFBHours(trip *store.Trip) float64 {
	if trip.TAFBHours != nil {
		return maxFloat(minCreditHours, *trip.TAFBHours)
	}
	if trip.TAFBDays != nil {
		return maxFloat(minCreditHours, *trip.TAFBDays*24)
	}
	if trip.WindowStart != nil && trip.WindowEnd != nil && trip.WindowEnd.After(*trip.WindowStart) {
		return maxFloat(minCreditHours, trip.WindowEnd.Sub(*trip.WindowStart).Hours())
	}
	legs := len(trip.Legs)
	if legs < 1 {
		legs = 1
	}
	return float64(legs) * fallbackLegHours
}

// estimateTarget computes the fair per-pilot credit: the ×2 accounts for
// both crew seats accruing credit per trip.
func estimateTarget(trips []*store.Trip, pilots []*store.Pilot, opts Options) float64 {
	if len(pilots) == 0 {
		return 0
	}
	var total float64
	for _, t := range trips {
		total += TripCredit(t, opts) * 2
	}
	return total / float64(len(pilots))
}

// varianceFromTarget is the population variance of ledger entries around the
// target. Lower is better.
func varianceFromTarget(ledger map[string]float64, target float64) float64 {
	if len(ledger) == 0 {
		return 0
	}
	var sum float64
	for _, v := range ledger {
		d := v - target
		sum += d * d
	}
	return sum / float64(len(ledger))
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
