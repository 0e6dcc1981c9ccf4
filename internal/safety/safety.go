// Package safety runs the currency and fatigue checks for a candidate crew
// pairing. Results are advisory: they surface as alerts and score penalties,
// never as eligibility gates, so dispatchers retain override authority.
package safety

import (
	"fmt"
	"time"

	"github.com/fltops/autopilot/internal/store"
)

// Config holds the currency thresholds. Two special-airport window policies
// exist in the field (60-day fairness-sensitive vs 365-day long-horizon);
// both are reachable through SpecialWindowDays.
type Config struct {
	SpecialWindowDays   int
	RequireBothCurrent  bool
	NightLandingsMin    int
	NightHoursMin       float64
	NightWindowDays     int
	DutyReviewThreshold int
}

func DefaultConfig() Config {
	return Config{
		SpecialWindowDays:   60,
		RequireBothCurrent:  false,
		NightLandingsMin:    3,
		NightHoursMin:       15,
		NightWindowDays:     90,
		DutyReviewThreshold: 10,
	}
}

type Result struct {
	Alerts          []string `json:"alerts"`
	NightCurrencyOK bool     `json:"night_currency_ok"`
}

type Evaluator struct {
	cfg Config
}

func NewEvaluator(cfg Config) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// Evaluate runs every check against the pairing. Checks are independent and
// never short-circuit each other; each appends at most one alert. The
// reference instant is a parameter so day-difference math is consistent
// across checks within one call and deterministic under test.
func (e *Evaluator) Evaluate(trip *store.Trip, pic, sic *store.Pilot, now time.Time) Result {
	var alerts []string

	if trip.Special != "" {
		picDays, picKnown := SpecialDaysSince(pic, trip.Special, now)
		sicDays, sicKnown := SpecialDaysSince(sic, trip.Special, now)
		picCurrent := picKnown && picDays <= e.cfg.SpecialWindowDays
		sicCurrent := sicKnown && sicDays <= e.cfg.SpecialWindowDays

		var pass bool
		if e.cfg.RequireBothCurrent {
			pass = picCurrent && sicCurrent
		} else {
			// At least one seat current, and no crew member entirely
			// absent from the record. No data fails.
			pass = (picCurrent || sicCurrent) && picKnown && sicKnown
		}
		if !pass {
			alerts = append(alerts, fmt.Sprintf("special airport %s: crew recency not satisfied", trip.Special))
		}
	}

	picNight := e.nightCurrent(pic, now)
	sicNight := e.nightCurrent(sic, now)
	if !picNight {
		alerts = append(alerts, fmt.Sprintf("%s: PIC night currency expired", pic.ShortCode))
	}
	if !sicNight {
		alerts = append(alerts, fmt.Sprintf("%s: SIC night currency lapsed (advisory)", sic.ShortCode))
	}

	if pic.MaxedOut {
		alerts = append(alerts, fmt.Sprintf("%s: fatigue/limit threshold reached", pic.ShortCode))
	}
	if sic.MaxedOut {
		alerts = append(alerts, fmt.Sprintf("%s: fatigue/limit threshold reached", sic.ShortCode))
	}

	// One department-wide alert, not per pilot, to keep the noise down.
	if pic.DutyDays14 >= e.cfg.DutyReviewThreshold || sic.DutyDays14 >= e.cfg.DutyReviewThreshold {
		alerts = append(alerts, "duty load above review threshold: fatigue review recommended")
	}

	return Result{
		Alerts: alerts,
		// Night currency gates the PIC seat only; an SIC lapse is the
		// advisory alert above.
		NightCurrencyOK: picNight,
	}
}

// SpecialDaysSince resolves how many days ago the pilot last operated at the
// airport, supporting both the counter and timestamp record encodings. The
// counter wins when both are present.
func SpecialDaysSince(p *store.Pilot, airport string, now time.Time) (int, bool) {
	if d, ok := p.SpecialDaysSince[airport]; ok {
		return d, true
	}
	if ts, ok := p.SpecialLastLanding[airport]; ok {
		return int(now.Sub(ts).Hours() / 24), true
	}
	return 0, false
}

func (e *Evaluator) nightCurrent(p *store.Pilot, now time.Time) bool {
	if p.NightLandings90 != nil && *p.NightLandings90 >= e.cfg.NightLandingsMin {
		return true
	}
	if p.NightHours90 != nil && *p.NightHours90 >= e.cfg.NightHoursMin {
		return true
	}
	if p.LastNightLanding != nil {
		days := int(now.Sub(*p.LastNightLanding).Hours() / 24)
		return days <= e.cfg.NightWindowDays
	}
	return false
}
