package scoring

import (
	"fmt"
	"time"

	"github.com/fltops/autopilot/internal/safety"
	"github.com/fltops/autopilot/internal/store"
)

// FactorResult captures one factor's contribution to the pairing score.
// Scores are normalized to 0.0–1.0.
type FactorResult struct {
	Name     string  `json:"name"`
	Score    float64 `json:"score"`
	Weight   float64 `json:"weight"`
	Weighted float64 `json:"weighted"`
	Reason   string  `json:"reason"`
}

// PairContext bundles all inputs needed to score one PIC/SIC pair.
type PairContext struct {
	Trip    *store.Trip
	PIC     *store.Pilot
	SIC     *store.Pilot
	History store.PairingHistory
	Duty    *store.DutyStats // nil means no fleet baselines available
	Now     time.Time
}

// --- Individual factor calculators ---

// FamiliarityFactor rewards infrequent recent pairing: a blend of normalized
// days-since-last-paired (capped at 90) and an inverse step of pairing count
// in the trailing 90 days. A pair with no history scores the maximum.
func FamiliarityFactor(pc *PairContext) FactorResult {
	stat := pc.History.Lookup(pc.PIC.ShortCode, pc.SIC.ShortCode)

	days := stat.DaysSinceLast
	if days > 90 {
		days = 90
	}
	recency := float64(days) / 90.0

	var countComp float64
	switch {
	case stat.Count90 == 0:
		countComp = 1.0
	case stat.Count90 == 1:
		countComp = 0.85
	case stat.Count90 == 2:
		countComp = 0.5
	default:
		countComp = 0.15
	}

	reason := "no recent pairings"
	if stat.Count90 > 0 {
		reason = fmt.Sprintf("paired %d time(s) in last 90 days", stat.Count90)
	}
	return FactorResult{
		Name:   "familiarity",
		Score:  0.5*recency + 0.5*countComp,
		Reason: reason,
	}
}

// RotationFairnessFactor compares each pilot's trailing duty-day and weekend
// counts against the fleet averages. At or below average scores 1.0; overage
// degrades linearly, floored at 0.
func RotationFairnessFactor(pc *PairContext) FactorResult {
	if pc.Duty == nil {
		return FactorResult{Name: "rotation_fairness", Score: 1.0, Reason: "no fleet baselines"}
	}
	score := (rotationScore(pc.PIC, pc.Duty) + rotationScore(pc.SIC, pc.Duty)) / 2
	return FactorResult{Name: "rotation_fairness", Score: score, Reason: "vs fleet averages"}
}

func rotationScore(p *store.Pilot, duty *store.DutyStats) float64 {
	overDuty := float64(p.DutyDays14) - duty.AvgDutyDays14
	if overDuty < 0 {
		overDuty = 0
	}
	overWeekend := float64(p.WeekendDuty30) - duty.AvgWeekendDuty30
	if overWeekend < 0 {
		overWeekend = 0
	}
	return clamp(1.0-0.08*overDuty-0.10*overWeekend, 0.0, 1.0)
}

// SpecialAirportFactor is neutral (1.0) when the trip has no special
// designation. Otherwise each pilot scores by recency band and the pair
// averages; a pair with no record at all gets a fixed stale score.
func SpecialAirportFactor(pc *PairContext) FactorResult {
	if pc.Trip.Special == "" {
		return FactorResult{Name: "special_airport", Score: 1.0, Reason: "no special designation"}
	}

	picDays, picKnown := safety.SpecialDaysSince(pc.PIC, pc.Trip.Special, pc.Now)
	sicDays, sicKnown := safety.SpecialDaysSince(pc.SIC, pc.Trip.Special, pc.Now)

	if !picKnown && !sicKnown {
		return FactorResult{
			Name:   "special_airport",
			Score:  0.15,
			Reason: fmt.Sprintf("no %s experience on record for either pilot", pc.Trip.Special),
		}
	}

	score := (recencyBand(picDays, picKnown) + recencyBand(sicDays, sicKnown)) / 2
	return FactorResult{
		Name:   "special_airport",
		Score:  score,
		Reason: fmt.Sprintf("recency at %s evaluated", pc.Trip.Special),
	}
}

func recencyBand(days int, known bool) float64 {
	if !known {
		return 0.2
	}
	switch {
	case days <= 30:
		return 1.0
	case days <= 60:
		return 0.8
	case days <= 90:
		return 0.6
	case days <= 120:
		return 0.4
	default:
		return 0.2
	}
}

// UpgradeMentorshipFactor gives maximum credit when a standards or training
// pilot sits opposite an upgrade-track pilot, in either seat order.
func UpgradeMentorshipFactor(pc *PairContext) FactorResult {
	picMentor := isMentor(pc.PIC)
	sicMentor := isMentor(pc.SIC)

	switch {
	case (picMentor && pc.SIC.UpgradeTrack) || (sicMentor && pc.PIC.UpgradeTrack):
		return FactorResult{Name: "upgrade_mentorship", Score: 1.0, Reason: "mentor paired with upgrade-track pilot"}
	case pc.PIC.UpgradeTrack || pc.SIC.UpgradeTrack:
		return FactorResult{Name: "upgrade_mentorship", Score: 0.6, Reason: "upgrade-track pilot without mentor counterpart"}
	default:
		return FactorResult{Name: "upgrade_mentorship", Score: 0.3, Reason: "no upgrade pairing"}
	}
}

func isMentor(p *store.Pilot) bool {
	return p.Role == "standards" || p.Role == "training"
}

// DutyHealthFactor applies a harsher duty-overage slope than rotation
// fairness, floored near 0.2. The pair takes the worse pilot's score so a
// single fatigued pilot is not averaged away.
func DutyHealthFactor(pc *PairContext) FactorResult {
	if pc.Duty == nil {
		return FactorResult{Name: "duty_health", Score: 1.0, Reason: "no fleet baselines"}
	}
	pic := dutyHealthScore(pc.PIC, pc.Duty)
	sic := dutyHealthScore(pc.SIC, pc.Duty)
	score := pic
	if sic < score {
		score = sic
	}
	reason := "within duty tolerance"
	if score < 1.0 {
		reason = "duty overage approaching fatigue territory"
	}
	return FactorResult{Name: "duty_health", Score: score, Reason: reason}
}

func dutyHealthScore(p *store.Pilot, duty *store.DutyStats) float64 {
	over := float64(p.DutyDays14) - duty.AvgDutyDays14
	if over < 0 {
		over = 0
	}
	return clamp(1.0-0.15*over, 0.2, 1.0)
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
