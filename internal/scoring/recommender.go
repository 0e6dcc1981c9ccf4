// Package scoring enumerates eligible PIC/SIC pairs for a trip and ranks
// them with a weighted additive factor model. It never assigns crews; it
// only produces ranked options for the dispatcher and the balancer.
package scoring

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/fltops/autopilot/internal/safety"
	"github.com/fltops/autopilot/internal/store"
)

// SafetyMode controls how safety results feed the composite score.
type SafetyMode string

const (
	// SafetyModePenalty subtracts fixed penalties from the composite:
	// 6 points for any alert, 3 for failed PIC night currency.
	SafetyModePenalty SafetyMode = "alert-penalty"
	// SafetyModeDisplay attaches alerts without touching the score.
	SafetyModeDisplay SafetyMode = "display-only"
)

const (
	alertPenalty         = 6.0
	nightCurrencyPenalty = 3.0
)

// Contract violations. Everything softer than these degrades to a
// conservative default instead of failing.
var (
	ErrInvalidTrip   = errors.New("trip configuration error")
	ErrInvalidRoster = errors.New("roster configuration error")
)

// Recommendation is one ranked PIC/SIC option for a trip. Short codes are
// first-class fields; the labels exist for display only.
type Recommendation struct {
	TripID          string         `json:"trip_id"`
	PIC             string         `json:"pic"` // "Name (SHORT)"
	SIC             string         `json:"sic"`
	PICShort        string         `json:"pic_short"`
	SICShort        string         `json:"sic_short"`
	TotalScore      float64        `json:"total_score"` // 0–100 range before penalties
	Factors         []FactorResult `json:"factors"`
	SafetyAlerts    []string       `json:"safety_alerts"`
	NightCurrencyOK bool           `json:"night_currency_ok"`
	Rationale       []string       `json:"rationale"`
}

// Recommender scores and ranks crew pairings for one trip at a time.
type Recommender struct {
	weights WeightSet
	safety  *safety.Evaluator
	mode    SafetyMode
	logger  *slog.Logger
}

func NewRecommender(weights WeightSet, ev *safety.Evaluator, mode SafetyMode, logger *slog.Logger) *Recommender {
	return &Recommender{weights: weights, safety: ev, mode: mode, logger: logger}
}

// Recommend enumerates every eligible ordered (PIC, SIC) pair and returns
// recommendations sorted descending by composite score. Ties keep the
// enumeration order (deterministic for a given roster order). Currency and
// safety findings never gate eligibility; they surface as alerts and, in
// penalty mode, as score deductions.
func (r *Recommender) Recommend(trip *store.Trip, pilots []*store.Pilot, history store.PairingHistory, duty *store.DutyStats, now time.Time) ([]Recommendation, error) {
	if trip == nil {
		return nil, fmt.Errorf("%w: nil trip", ErrInvalidTrip)
	}
	if trip.Airframe == "" {
		return nil, fmt.Errorf("%w: trip %s has no airframe", ErrInvalidTrip, trip.ID)
	}
	if err := ValidateRoster(pilots); err != nil {
		return nil, err
	}

	var recs []Recommendation
	for _, pic := range pilots {
		if !canActAs(pic, store.SeatPIC) || !holdsAirframe(pic, trip.Airframe) {
			continue
		}
		for _, sic := range pilots {
			if sic.ShortCode == pic.ShortCode {
				continue
			}
			if !canActAs(sic, store.SeatSIC) || !holdsAirframe(sic, trip.Airframe) {
				continue
			}
			recs = append(recs, r.scorePair(trip, pic, sic, history, duty, now))
		}
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].TotalScore > recs[j].TotalScore
	})
	return recs, nil
}

func (r *Recommender) scorePair(trip *store.Trip, pic, sic *store.Pilot, history store.PairingHistory, duty *store.DutyStats, now time.Time) Recommendation {
	pc := &PairContext{Trip: trip, PIC: pic, SIC: sic, History: history, Duty: duty, Now: now}

	factors := []FactorResult{
		FamiliarityFactor(pc),
		RotationFairnessFactor(pc),
		SpecialAirportFactor(pc),
		UpgradeMentorshipFactor(pc),
		DutyHealthFactor(pc),
	}
	weights := []float64{
		r.weights.Familiarity,
		r.weights.RotationFairness,
		r.weights.SpecialAirport,
		r.weights.UpgradeMentorship,
		r.weights.DutyHealth,
	}

	var total float64
	for i := range factors {
		factors[i].Weight = weights[i]
		factors[i].Weighted = factors[i].Score * weights[i]
		total += factors[i].Weighted
	}
	total *= 100 // 0–100 display range

	result := r.safety.Evaluate(trip, pic, sic, now)
	if r.mode == SafetyModePenalty {
		if len(result.Alerts) > 0 {
			total -= alertPenalty
		}
		if !result.NightCurrencyOK {
			total -= nightCurrencyPenalty
		}
	}

	return Recommendation{
		TripID:          trip.ID,
		PIC:             displayLabel(pic),
		SIC:             displayLabel(sic),
		PICShort:        pic.ShortCode,
		SICShort:        sic.ShortCode,
		TotalScore:      total,
		Factors:         factors,
		SafetyAlerts:    result.Alerts,
		NightCurrencyOK: result.NightCurrencyOK,
		Rationale:       buildRationale(pc, factors),
	}
}

// ValidateRoster fails fast on caller contract violations: empty or
// duplicate short codes.
func ValidateRoster(pilots []*store.Pilot) error {
	seen := make(map[string]bool, len(pilots))
	for _, p := range pilots {
		if p.ShortCode == "" {
			return fmt.Errorf("%w: pilot %q has no short code", ErrInvalidRoster, p.Name)
		}
		if seen[p.ShortCode] {
			return fmt.Errorf("%w: duplicate short code %s", ErrInvalidRoster, p.ShortCode)
		}
		seen[p.ShortCode] = true
	}
	return nil
}

func canActAs(p *store.Pilot, seat store.Seat) bool {
	return p.Seat == seat || p.Seat == store.SeatDual
}

func holdsAirframe(p *store.Pilot, airframe string) bool {
	for _, a := range p.Airframes {
		if a == airframe {
			return true
		}
	}
	return false
}

func displayLabel(p *store.Pilot) string {
	return fmt.Sprintf("%s (%s)", p.Name, p.ShortCode)
}

// buildRationale produces the dispatcher-facing bullets from the same inputs
// the factors used. No randomness anywhere.
func buildRationale(pc *PairContext, factors []FactorResult) []string {
	var bullets []string

	stat := pc.History.Lookup(pc.PIC.ShortCode, pc.SIC.ShortCode)
	if stat.Count90 == 0 {
		bullets = append(bullets, fmt.Sprintf("first pairing in at least %d days", stat.DaysSinceLast))
	} else {
		bullets = append(bullets, fmt.Sprintf("paired %d time(s) in the last 90 days, last %d days ago", stat.Count90, stat.DaysSinceLast))
	}

	if (isMentor(pc.PIC) && pc.SIC.UpgradeTrack) || (isMentor(pc.SIC) && pc.PIC.UpgradeTrack) {
		bullets = append(bullets, "pairs a standards/training mentor with an upgrade-track pilot")
	} else if pc.PIC.UpgradeTrack || pc.SIC.UpgradeTrack {
		bullets = append(bullets, "upgrade-track pilot flying without a mentor counterpart")
	}

	if pc.Trip.Special != "" {
		picDays, picKnown := safetyDays(pc.PIC, pc)
		sicDays, sicKnown := safetyDays(pc.SIC, pc)
		switch {
		case !picKnown && !sicKnown:
			bullets = append(bullets, fmt.Sprintf("no recent %s experience for either pilot", pc.Trip.Special))
		case picKnown && sicKnown:
			bullets = append(bullets, fmt.Sprintf("%s recency: PIC %d days, SIC %d days", pc.Trip.Special, picDays, sicDays))
		case picKnown:
			bullets = append(bullets, fmt.Sprintf("%s recency: PIC %d days, SIC no record", pc.Trip.Special, picDays))
		default:
			bullets = append(bullets, fmt.Sprintf("%s recency: SIC %d days, PIC no record", pc.Trip.Special, sicDays))
		}
	}

	return bullets
}

func safetyDays(p *store.Pilot, pc *PairContext) (int, bool) {
	return safety.SpecialDaysSince(p, pc.Trip.Special, pc.Now)
}
