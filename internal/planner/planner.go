// Package planner owns the orchestration between the scheduling store and
// the pure scoring/balancing engines: it loads snapshots, runs the engines,
// and commits accepted pairings through the store's single atomic
// assignment path while writing the audit trail.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fltops/autopilot/internal/balance"
	"github.com/fltops/autopilot/internal/config"
	"github.com/fltops/autopilot/internal/events"
	"github.com/fltops/autopilot/internal/metrics"
	"github.com/fltops/autopilot/internal/mysky"
	"github.com/fltops/autopilot/internal/safety"
	"github.com/fltops/autopilot/internal/scoring"
	"github.com/fltops/autopilot/internal/store"
)

var (
	ErrTripNotFound    = errors.New("trip not found")
	ErrTripAssigned    = errors.New("trip already assigned")
	ErrPairNotEligible = errors.New("pair not eligible for trip")
)

// BalancerDispatcherName labels audit records written by the balancer.
const BalancerDispatcherName = "AutoPilot Balancer"

const tripPageSize = 500

type Planner struct {
	store  store.Store
	events events.Client // nil when running without a broker
	sky    mysky.Client
	rec    *scoring.Recommender
	bal    *balance.Balancer
	logger *slog.Logger
	now    func() time.Time
}

func New(s store.Store, ev events.Client, sky mysky.Client, cfg *config.Config, logger *slog.Logger) (*Planner, error) {
	weights := scoring.WeightSet{
		Familiarity:       cfg.Scoring.Weights.Familiarity,
		RotationFairness:  cfg.Scoring.Weights.RotationFairness,
		SpecialAirport:    cfg.Scoring.Weights.SpecialAirport,
		UpgradeMentorship: cfg.Scoring.Weights.UpgradeMentorship,
		DutyHealth:        cfg.Scoring.Weights.DutyHealth,
	}
	if err := weights.Validate(); err != nil {
		return nil, fmt.Errorf("scoring weights: %w", err)
	}

	evaluator := safety.NewEvaluator(safety.Config{
		SpecialWindowDays:   cfg.Safety.SpecialWindowDays,
		RequireBothCurrent:  cfg.Safety.RequireBothCurrent,
		NightLandingsMin:    cfg.Safety.NightLandingsMin,
		NightHoursMin:       cfg.Safety.NightHoursMin,
		NightWindowDays:     cfg.Safety.NightWindowDays,
		DutyReviewThreshold: cfg.Safety.DutyReviewThreshold,
	})

	rec := scoring.NewRecommender(weights, evaluator, scoring.SafetyMode(cfg.Scoring.SafetyMode), logger)

	return &Planner{
		store:  s,
		events: ev,
		sky:    sky,
		rec:    rec,
		bal:    balance.New(rec, logger),
		logger: logger,
		now:    time.Now,
	}, nil
}

type snapshot struct {
	pilots  []*store.Pilot
	history store.PairingHistory
	duty    *store.DutyStats
}

// loadSnapshot takes a fresh read of everything the engines need. The
// engines never see the store; they get immutable per-call inputs.
func (p *Planner) loadSnapshot(ctx context.Context) (*snapshot, error) {
	pilots, err := p.store.ListPilots(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pilots: %w", err)
	}
	history, err := p.store.GetPairingHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pairing history: %w", err)
	}
	duty, err := p.store.GetDutyStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("load duty stats: %w", err)
	}
	return &snapshot{pilots: pilots, history: history, duty: duty}, nil
}

// RecommendTrip produces the full ranked pairing list for one trip.
func (p *Planner) RecommendTrip(ctx context.Context, tripID string) (*store.Trip, []scoring.Recommendation, error) {
	trip, err := p.store.GetTrip(ctx, tripID)
	if err != nil {
		return nil, nil, err
	}
	if trip == nil {
		return nil, nil, ErrTripNotFound
	}

	snap, err := p.loadSnapshot(ctx)
	if err != nil {
		return nil, nil, err
	}

	recs, err := p.rec.Recommend(trip, snap.pilots, snap.history, snap.duty, p.now())
	if err != nil {
		return nil, nil, err
	}
	metrics.RecommendationsComputed.Inc()
	return trip, recs, nil
}

// Assign commits a dispatcher-chosen pairing: it re-scores the trip, claims
// both seats atomically, bumps pairing history, and writes the audit record.
func (p *Planner) Assign(ctx context.Context, tripID, picShort, sicShort, notes, dispatcher string) (*store.AssignmentRecord, error) {
	trip, recs, err := p.RecommendTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}

	var chosen *scoring.Recommendation
	for i := range recs {
		if recs[i].PICShort == picShort && recs[i].SICShort == sicShort {
			chosen = &recs[i]
			break
		}
	}
	if chosen == nil {
		return nil, fmt.Errorf("%w: %s/%s on trip %s", ErrPairNotEligible, picShort, sicShort, tripID)
	}

	return p.commit(ctx, trip, chosen, notes, dispatcher, "manual")
}

// RunBalance executes a fairness-balancing pass over all unassigned trips.
// When commit is false the plan is returned without touching any state.
func (p *Planner) RunBalance(ctx context.Context, opts balance.Options, commit bool) (*balance.Plan, []*store.AssignmentRecord, error) {
	// Page through the full trip list so a large backlog is never silently
	// truncated out of the target computation.
	var trips []*store.Trip
	for offset := 0; ; offset += tripPageSize {
		page, err := p.store.ListTrips(ctx, store.TripFilter{Limit: tripPageSize, Offset: offset})
		if err != nil {
			return nil, nil, fmt.Errorf("load trips: %w", err)
		}
		trips = append(trips, page...)
		if len(page) < tripPageSize {
			break
		}
	}
	snap, err := p.loadSnapshot(ctx)
	if err != nil {
		return nil, nil, err
	}

	plan, err := p.bal.Balance(trips, snap.pilots, snap.history, snap.duty, opts, p.now())
	if err != nil {
		return nil, nil, err
	}
	metrics.BalanceRuns.Inc()

	var records []*store.AssignmentRecord
	if commit {
		tripByID := make(map[string]*store.Trip, len(trips))
		for _, t := range trips {
			tripByID[t.ID] = t
		}
		for _, tripID := range plan.TripIDs() {
			pa := plan.Assignments[tripID]
			rec, err := p.commit(ctx, tripByID[tripID], &pa.Recommendation,
				"[Auto-Balance] scheduled to reduce workload variance", BalancerDispatcherName, "balancer")
			if errors.Is(err, ErrTripAssigned) {
				// Raced with a manual assignment; the plan entry is stale.
				p.logger.Warn("trip claimed since planning, skipping", "trip", tripID)
				continue
			}
			if err != nil {
				return nil, nil, err
			}
			records = append(records, rec)
		}
	}

	if p.events != nil {
		_ = p.events.Publish(events.SubjectBalanceCompleted, events.BalanceCompletedEvent{
			TargetCredit:  plan.TargetCredit,
			AssignedTrips: len(plan.Assignments),
			CreditByPilot: plan.CreditByPilot,
			Committed:     commit,
			Timestamp:     p.now(),
		})
	}

	return plan, records, nil
}

func (p *Planner) commit(ctx context.Context, trip *store.Trip, rec *scoring.Recommendation, notes, dispatcher, source string) (*store.AssignmentRecord, error) {
	claimed, err := p.store.AssignTrip(ctx, trip.ID, rec.PICShort, rec.SICShort)
	if err != nil {
		return nil, fmt.Errorf("assign trip: %w", err)
	}
	if !claimed {
		return nil, fmt.Errorf("%w: %s", ErrTripAssigned, trip.ID)
	}

	if err := p.store.BumpPairing(ctx, store.NewPairKey(rec.PICShort, rec.SICShort)); err != nil {
		p.logger.Warn("failed to bump pairing history", "trip", trip.ID, "error", err)
	}

	record := &store.AssignmentRecord{
		TripID:          trip.ID,
		Route:           trip.Route,
		Window:          windowLabel(trip),
		PIC:             rec.PIC,
		SIC:             rec.SIC,
		PICShort:        rec.PICShort,
		SICShort:        rec.SICShort,
		PairingScore:    rec.TotalScore,
		SafetyAlerts:    rec.SafetyAlerts,
		NightCurrencyOK: rec.NightCurrencyOK,
		Rationale:       rec.Rationale,
		DispatcherNotes: notes,
		DispatcherName:  dispatcher,
	}
	if err := p.store.CreateAssignmentRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("write audit record: %w", err)
	}

	metrics.AssignmentsCommitted.WithLabelValues(source).Inc()
	if p.events != nil {
		_ = p.events.Publish(events.SubjectTripAssigned(trip.ID), events.TripAssignedEvent{
			TripID:         trip.ID,
			PICShort:       rec.PICShort,
			SICShort:       rec.SICShort,
			PairingScore:   rec.TotalScore,
			DispatcherName: dispatcher,
			Source:         source,
		})
	}

	p.logger.Info("trip assigned",
		"trip", trip.ID, "pic", rec.PICShort, "sic", rec.SICShort,
		"score", rec.TotalScore, "source", source)
	return record, nil
}

// Sync refreshes the roster and trip list from the scheduling source. New
// trips are inserted; existing trips keep their assignment state.
func (p *Planner) Sync(ctx context.Context) (int, int, error) {
	pilots, err := p.sky.FetchPilots(ctx)
	if err != nil {
		return 0, 0, err
	}
	trips, err := p.sky.FetchTrips(ctx)
	if err != nil {
		return 0, 0, err
	}

	for _, pilot := range pilots {
		if err := p.store.UpsertPilot(ctx, pilot); err != nil {
			return 0, 0, fmt.Errorf("upsert pilot %s: %w", pilot.ShortCode, err)
		}
	}
	var created int
	for _, trip := range trips {
		existing, err := p.store.GetTrip(ctx, trip.ID)
		if err != nil {
			return 0, 0, err
		}
		if existing != nil {
			continue
		}
		if err := p.store.CreateTrip(ctx, trip); err != nil {
			return 0, 0, fmt.Errorf("create trip %s: %w", trip.ID, err)
		}
		created++
		if p.events != nil {
			_ = p.events.Publish(events.SubjectTripCreated(trip.ID), events.TripCreatedEvent{
				TripID:   trip.ID,
				Airframe: trip.Airframe,
				Route:    trip.Route,
				Source:   "sync",
			})
		}
	}

	if p.events != nil {
		_ = p.events.Publish(events.SubjectRosterSynced, events.RosterSyncedEvent{
			Pilots:    len(pilots),
			Trips:     created,
			Timestamp: p.now(),
		})
	}
	p.logger.Info("roster synced", "pilots", len(pilots), "new_trips", created)
	return len(pilots), created, nil
}

func windowLabel(t *store.Trip) string {
	if t.WindowStart == nil {
		return ""
	}
	if t.WindowEnd == nil {
		return t.WindowStart.Format("Mon Jan 2")
	}
	return t.WindowStart.Format("Mon Jan 2") + " → " + t.WindowEnd.Format("Mon Jan 2")
}
