package balance

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/fltops/autopilot/internal/safety"
	"github.com/fltops/autopilot/internal/scoring"
	"github.com/fltops/autopilot/internal/store"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func strPtr(s string) *string     { return &s }

func pilot(short string, mods ...func(*store.Pilot)) *store.Pilot {
	p := &store.Pilot{
		ShortCode:       short,
		Name:            "Pilot " + short,
		Airframes:       []string{"G650"},
		Seat:            store.SeatDual,
		NightLandings90: intPtr(5),
	}
	for _, m := range mods {
		m(p)
	}
	return p
}

func trip(id string, hours float64) *store.Trip {
	return &store.Trip{ID: id, Airframe: "G650", Route: "TEB-MIA", TAFBHours: &hours}
}

func testBalancer() *Balancer {
	rec := scoring.NewRecommender(
		scoring.DefaultWeights(),
		safety.NewEvaluator(safety.DefaultConfig()),
		scoring.SafetyModeDisplay,
		discardLogger(),
	)
	return New(rec, discardLogger())
}

func TestTripCredit(t *testing.T) {
	start := testNow
	end := testNow.Add(36 * time.Hour)

	tests := []struct {
		name string
		trip *store.Trip
		opts Options
		want float64
	}{
		{"explicit hours", trip("T1", 12), Options{Metric: MetricDuration, Unit: UnitHours}, 12},
		{
			"explicit days beat window",
			&store.Trip{ID: "T2", TAFBDays: floatPtr(2), WindowStart: &start, WindowEnd: &end},
			Options{Metric: MetricDuration, Unit: UnitHours},
			48,
		},
		{
			"window fallback",
			&store.Trip{ID: "T3", WindowStart: &start, WindowEnd: &end},
			Options{Metric: MetricDuration, Unit: UnitHours},
			36,
		},
		{
			"leg fallback",
			&store.Trip{ID: "T4", Legs: []store.Leg{{Num: 1}, {Num: 2}, {Num: 3}}},
			Options{Metric: MetricDuration, Unit: UnitHours},
			18,
		},
		{
			"no data at all assumes one leg",
			&store.Trip{ID: "T5"},
			Options{Metric: MetricDuration, Unit: UnitHours},
			6,
		},
		{"minimum credit floor", trip("T6", 0.1), Options{Metric: MetricDuration, Unit: UnitHours}, 0.5},
		{"day unit divides", trip("T7", 48), Options{Metric: MetricDuration, Unit: UnitDays}, 2},
		{
			"leg metric counts legs",
			&store.Trip{ID: "T8", Legs: []store.Leg{{Num: 1}, {Num: 2}}},
			Options{Metric: MetricLegs},
			2,
		},
		{"leg metric floors at one", &store.Trip{ID: "T9"}, Options{Metric: MetricLegs}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TripCredit(tt.trip, tt.opts); math.Abs(got-tt.want) > 0.0001 {
				t.Errorf("expected %f, got %f", tt.want, got)
			}
		})
	}
}

func TestBalanceLedgerAccounting(t *testing.T) {
	b := testBalancer()
	trips := []*store.Trip{trip("T1", 10), trip("T2", 20), trip("T3", 8)}
	roster := []*store.Pilot{pilot("AA"), pilot("BB"), pilot("CC"), pilot("DD")}

	plan, err := b.Balance(trips, roster, store.PairingHistory{}, nil, Options{}, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(plan.Assignments) != 3 {
		t.Fatalf("expected 3 assignments, got %d", len(plan.Assignments))
	}

	// Each trip credits both seats, so the ledger sums to twice the credit.
	var ledgerSum, creditSum float64
	for _, v := range plan.CreditByPilot {
		ledgerSum += v
	}
	for _, a := range plan.Assignments {
		creditSum += a.Credit
	}
	if math.Abs(ledgerSum-creditSum*2) > 0.0001 {
		t.Errorf("ledger sum %f != 2x assigned credit %f", ledgerSum, creditSum)
	}

	wantTarget := (10.0 + 20.0 + 8.0) * 2 / 4
	if math.Abs(plan.TargetCredit-wantTarget) > 0.0001 {
		t.Errorf("expected target %f, got %f", wantTarget, plan.TargetCredit)
	}

	// Every pilot appears in the ledger even with zero credit.
	if len(plan.CreditByPilot) != 4 {
		t.Errorf("expected all 4 pilots in ledger, got %d", len(plan.CreditByPilot))
	}
}

func TestBalanceSkipsAssignedTrips(t *testing.T) {
	b := testBalancer()
	assigned := trip("T1", 10)
	assigned.AssignedPIC = strPtr("AA")
	assigned.AssignedSIC = strPtr("BB")
	half := trip("T2", 10)
	half.AssignedPIC = strPtr("AA")

	trips := []*store.Trip{assigned, half, trip("T3", 10)}
	roster := []*store.Pilot{pilot("AA"), pilot("BB")}

	plan, err := b.Balance(trips, roster, store.PairingHistory{}, nil, Options{}, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Assignments) != 1 {
		t.Fatalf("expected only the open trip planned, got %d", len(plan.Assignments))
	}
	if _, ok := plan.Assignments["T3"]; !ok {
		t.Error("expected T3 to be planned")
	}
}

func TestBalanceRoundTrip(t *testing.T) {
	// Committing a plan's pairing back onto the trip makes a second run
	// treat it as settled.
	b := testBalancer()
	trips := []*store.Trip{trip("T1", 10), trip("T2", 10)}
	roster := []*store.Pilot{pilot("AA"), pilot("BB"), pilot("CC"), pilot("DD")}

	first, err := b.Balance(trips, roster, store.PairingHistory{}, nil, Options{}, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	chosen, ok := first.Assignments["T1"]
	if !ok {
		t.Fatal("expected T1 planned in the first pass")
	}
	trips[0].AssignedPIC = &chosen.PICShort
	trips[0].AssignedSIC = &chosen.SICShort

	second, err := b.Balance(trips, roster, store.PairingHistory{}, nil, Options{}, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := second.Assignments["T1"]; ok {
		t.Error("expected the committed trip to be skipped on the second pass")
	}
	if _, ok := second.Assignments["T2"]; !ok {
		t.Error("expected the still-open trip to be planned")
	}
}

func TestBalanceSkipsTripsWithNoEligiblePairs(t *testing.T) {
	b := testBalancer()
	odd := &store.Trip{ID: "T1", Airframe: "CL350", TAFBHours: floatPtr(10)}
	trips := []*store.Trip{odd, trip("T2", 10)}
	roster := []*store.Pilot{pilot("AA"), pilot("BB")}

	plan, err := b.Balance(trips, roster, store.PairingHistory{}, nil, Options{}, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := plan.Assignments["T1"]; ok {
		t.Error("trip with no qualified crew must stay unplanned")
	}
	if _, ok := plan.Assignments["T2"]; !ok {
		t.Error("expected T2 planned")
	}
}

func TestBalanceSpreadsLoadAcrossRoster(t *testing.T) {
	b := testBalancer()
	trips := []*store.Trip{trip("T1", 10), trip("T2", 10)}
	roster := []*store.Pilot{pilot("AA"), pilot("BB"), pilot("CC"), pilot("DD")}

	plan, err := b.Balance(trips, roster, store.PairingHistory{}, nil, Options{}, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Two identical trips over four identical pilots: variance is minimized
	// only when all four fly once.
	flying := 0
	for _, v := range plan.CreditByPilot {
		if v > 0 {
			flying++
		}
	}
	if flying != 4 {
		t.Errorf("expected all 4 pilots used, got %d (%v)", flying, plan.CreditByPilot)
	}
}

func TestBalanceAvoidsOverloadedPilot(t *testing.T) {
	b := testBalancer()
	// One trip, four pilots with identical qualifications. DD carries a duty
	// load past the review threshold, which draws the department fatigue
	// alert. With the ledger empty every candidate pair projects the same
	// variance, so the alert penalty is the deciding term and DD sits out.
	duty := &store.DutyStats{AvgDutyDays14: 5, AvgWeekendDuty30: 1}
	roster := []*store.Pilot{
		pilot("AA", func(p *store.Pilot) { p.DutyDays14 = 5 }),
		pilot("BB", func(p *store.Pilot) { p.DutyDays14 = 5 }),
		pilot("CC", func(p *store.Pilot) { p.DutyDays14 = 5 }),
		pilot("DD", func(p *store.Pilot) { p.DutyDays14 = 12 }),
	}

	plan, err := b.Balance([]*store.Trip{trip("T1", 10)}, roster, store.PairingHistory{}, duty, Options{}, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, ok := plan.Assignments["T1"]
	if !ok {
		t.Fatal("expected T1 planned")
	}
	if a.PICShort == "DD" || a.SICShort == "DD" {
		t.Errorf("expected the overloaded pilot to sit out, got %s/%s", a.PICShort, a.SICShort)
	}
	if len(a.Recommendation.SafetyAlerts) != 0 {
		t.Errorf("chosen pairing carries alerts: %v", a.Recommendation.SafetyAlerts)
	}
	if v := plan.CreditByPilot["DD"]; v != 0 {
		t.Errorf("expected no credit for the overloaded pilot, got %f", v)
	}
}

func TestBalanceTargetOverride(t *testing.T) {
	b := testBalancer()
	target := 5.0
	plan, err := b.Balance([]*store.Trip{trip("T1", 10)},
		[]*store.Pilot{pilot("AA"), pilot("BB")},
		store.PairingHistory{}, nil, Options{TargetCredit: &target}, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.TargetCredit != 5.0 {
		t.Errorf("expected target override 5.0, got %f", plan.TargetCredit)
	}
}

func TestBalanceSafetyPenaltySteersSelection(t *testing.T) {
	b := testBalancer()
	tr := trip("T1", 10)
	// CC is maxed out; any pairing containing CC draws a safety alert and
	// the balancer should prefer the clean AA/BB pairing.
	roster := []*store.Pilot{
		pilot("AA"),
		pilot("BB"),
		pilot("CC", func(p *store.Pilot) { p.MaxedOut = true }),
	}

	plan, err := b.Balance([]*store.Trip{tr}, roster, store.PairingHistory{}, nil, Options{}, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, ok := plan.Assignments["T1"]
	if !ok {
		t.Fatal("expected T1 planned")
	}
	if a.PICShort == "CC" || a.SICShort == "CC" {
		t.Errorf("expected the maxed-out pilot to be avoided, got %s/%s", a.PICShort, a.SICShort)
	}
	if len(a.Recommendation.SafetyAlerts) != 0 {
		t.Errorf("chosen pairing carries alerts: %v", a.Recommendation.SafetyAlerts)
	}
}

func TestBalanceRejectsBadRoster(t *testing.T) {
	b := testBalancer()
	roster := []*store.Pilot{pilot("AA"), pilot("AA")}
	if _, err := b.Balance([]*store.Trip{trip("T1", 10)}, roster, store.PairingHistory{}, nil, Options{}, testNow); err == nil {
		t.Fatal("expected roster validation error")
	}
}

func TestPlanTripIDsStableOrder(t *testing.T) {
	p := &Plan{Assignments: map[string]PlannedAssignment{
		"T3": {}, "T1": {}, "T2": {},
	}}
	ids := p.TripIDs()
	want := []string{"T1", "T2", "T3"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, ids)
		}
	}
}
