package planner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fltops/autopilot/internal/balance"
	"github.com/fltops/autopilot/internal/config"
	"github.com/fltops/autopilot/internal/events"
	"github.com/fltops/autopilot/internal/store"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

// Mocks

type mockStore struct {
	pilots  []*store.Pilot
	trips   map[string]*store.Trip
	history store.PairingHistory
	duty    *store.DutyStats
	records []*store.AssignmentRecord
	bumps   []store.PairKey
}

func newMockStore() *mockStore {
	return &mockStore{
		trips:   make(map[string]*store.Trip),
		history: store.PairingHistory{},
	}
}

func (m *mockStore) UpsertPilot(_ context.Context, p *store.Pilot) error {
	for i, existing := range m.pilots {
		if existing.ShortCode == p.ShortCode {
			m.pilots[i] = p
			return nil
		}
	}
	m.pilots = append(m.pilots, p)
	return nil
}
func (m *mockStore) ListPilots(_ context.Context) ([]*store.Pilot, error) { return m.pilots, nil }
func (m *mockStore) CreateTrip(_ context.Context, t *store.Trip) error {
	m.trips[t.ID] = t
	return nil
}
func (m *mockStore) GetTrip(_ context.Context, id string) (*store.Trip, error) {
	return m.trips[id], nil
}
func (m *mockStore) ListTrips(_ context.Context, filter store.TripFilter) ([]*store.Trip, error) {
	ids := make([]string, 0, len(m.trips))
	for id := range m.trips {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	var out []*store.Trip
	for _, id := range ids[min(filter.Offset, len(ids)):] {
		if len(out) == limit {
			break
		}
		out = append(out, m.trips[id])
	}
	return out, nil
}
func (m *mockStore) AssignTrip(_ context.Context, tripID, picShort, sicShort string) (bool, error) {
	t, ok := m.trips[tripID]
	if !ok || !t.Unassigned() {
		return false, nil
	}
	t.AssignedPIC = &picShort
	t.AssignedSIC = &sicShort
	return true, nil
}
func (m *mockStore) GetPairingHistory(_ context.Context) (store.PairingHistory, error) {
	return m.history, nil
}
func (m *mockStore) BumpPairing(_ context.Context, key store.PairKey) error {
	m.bumps = append(m.bumps, key)
	return nil
}
func (m *mockStore) GetDutyStats(_ context.Context) (*store.DutyStats, error) { return m.duty, nil }
func (m *mockStore) CreateAssignmentRecord(_ context.Context, rec *store.AssignmentRecord) error {
	rec.ID = uuid.New()
	rec.CreatedAt = testNow
	m.records = append(m.records, rec)
	return nil
}
func (m *mockStore) ListAssignmentRecords(_ context.Context, _, _ int) ([]*store.AssignmentRecord, error) {
	return m.records, nil
}
func (m *mockStore) GetStats(_ context.Context) (*store.Stats, error) { return &store.Stats{}, nil }
func (m *mockStore) Close() error                                     { return nil }

type mockEvents struct {
	published []string
}

func (m *mockEvents) Publish(subject string, _ interface{}) error {
	m.published = append(m.published, subject)
	return nil
}
func (m *mockEvents) Close() {}

type mockSky struct {
	pilots []*store.Pilot
	trips  []*store.Trip
	err    error
}

func (m *mockSky) FetchPilots(_ context.Context) ([]*store.Pilot, error) {
	return m.pilots, m.err
}
func (m *mockSky) FetchTrips(_ context.Context) ([]*store.Trip, error) { return m.trips, m.err }

// Fixtures

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func rosterPilot(short string, mods ...func(*store.Pilot)) *store.Pilot {
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

func openTrip(id string) *store.Trip {
	return &store.Trip{ID: id, Airframe: "G650", Route: "TEB-MIA", TAFBHours: floatPtr(10)}
}

func newTestPlanner(t *testing.T, s store.Store, ev events.Client, sky *mockSky) *Planner {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if sky == nil {
		sky = &mockSky{}
	}
	p, err := New(s, ev, sky, cfg, logger)
	if err != nil {
		t.Fatalf("build planner: %v", err)
	}
	p.now = func() time.Time { return testNow }
	return p
}

// Tests

func TestRecommendTrip(t *testing.T) {
	s := newMockStore()
	s.pilots = []*store.Pilot{rosterPilot("AA"), rosterPilot("BB")}
	s.trips["T1"] = openTrip("T1")
	p := newTestPlanner(t, s, nil, nil)

	trip, recs, err := p.RecommendTrip(context.Background(), "T1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if trip.ID != "T1" {
		t.Errorf("expected trip T1, got %s", trip.ID)
	}
	if len(recs) != 2 {
		t.Errorf("expected 2 recommendations, got %d", len(recs))
	}

	t.Run("missing trip", func(t *testing.T) {
		if _, _, err := p.RecommendTrip(context.Background(), "missing"); !errors.Is(err, ErrTripNotFound) {
			t.Errorf("expected ErrTripNotFound, got %v", err)
		}
	})
}

func TestAssign(t *testing.T) {
	s := newMockStore()
	s.pilots = []*store.Pilot{rosterPilot("AA"), rosterPilot("BB")}
	s.trips["T1"] = openTrip("T1")
	ev := &mockEvents{}
	p := newTestPlanner(t, s, ev, nil)

	rec, err := p.Assign(context.Background(), "T1", "AA", "BB", "crew request honored", "dispatcher-7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rec.PICShort != "AA" || rec.SICShort != "BB" {
		t.Errorf("unexpected record seats %s/%s", rec.PICShort, rec.SICShort)
	}
	if rec.DispatcherName != "dispatcher-7" || rec.DispatcherNotes != "crew request honored" {
		t.Errorf("dispatcher attribution lost: %+v", rec)
	}
	if rec.ID == uuid.Nil {
		t.Error("expected persisted record ID")
	}

	trip := s.trips["T1"]
	if trip.AssignedPIC == nil || *trip.AssignedPIC != "AA" {
		t.Error("trip seats not claimed")
	}
	if len(s.bumps) != 1 || s.bumps[0] != store.NewPairKey("AA", "BB") {
		t.Errorf("expected one pairing bump, got %v", s.bumps)
	}
	if len(ev.published) != 1 || ev.published[0] != events.SubjectTripAssigned("T1") {
		t.Errorf("expected trip assigned event, got %v", ev.published)
	}
}

func TestAssignErrors(t *testing.T) {
	s := newMockStore()
	s.pilots = []*store.Pilot{rosterPilot("AA"), rosterPilot("BB")}
	s.trips["T1"] = openTrip("T1")
	p := newTestPlanner(t, s, nil, nil)

	t.Run("ineligible pair", func(t *testing.T) {
		_, err := p.Assign(context.Background(), "T1", "AA", "ZZ", "", "d1")
		if !errors.Is(err, ErrPairNotEligible) {
			t.Errorf("expected ErrPairNotEligible, got %v", err)
		}
	})

	t.Run("missing trip", func(t *testing.T) {
		_, err := p.Assign(context.Background(), "nope", "AA", "BB", "", "d1")
		if !errors.Is(err, ErrTripNotFound) {
			t.Errorf("expected ErrTripNotFound, got %v", err)
		}
	})

	t.Run("already assigned", func(t *testing.T) {
		if _, err := p.Assign(context.Background(), "T1", "AA", "BB", "", "d1"); err != nil {
			t.Fatalf("first assign failed: %v", err)
		}
		_, err := p.Assign(context.Background(), "T1", "BB", "AA", "", "d1")
		if !errors.Is(err, ErrTripAssigned) {
			t.Errorf("expected ErrTripAssigned, got %v", err)
		}
	})
}

func TestRunBalanceDryRun(t *testing.T) {
	s := newMockStore()
	s.pilots = []*store.Pilot{rosterPilot("AA"), rosterPilot("BB"), rosterPilot("CC"), rosterPilot("DD")}
	s.trips["T1"] = openTrip("T1")
	s.trips["T2"] = openTrip("T2")
	ev := &mockEvents{}
	p := newTestPlanner(t, s, ev, nil)

	plan, records, err := p.RunBalance(context.Background(), balance.Options{}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Assignments) != 2 {
		t.Errorf("expected 2 planned trips, got %d", len(plan.Assignments))
	}
	if len(records) != 0 {
		t.Errorf("dry run must not commit, got %d records", len(records))
	}
	for _, trip := range s.trips {
		if !trip.Unassigned() {
			t.Errorf("dry run mutated trip %s", trip.ID)
		}
	}
	if len(ev.published) != 1 || ev.published[0] != events.SubjectBalanceCompleted {
		t.Errorf("expected balance completed event, got %v", ev.published)
	}
}

func TestRunBalancePagesThroughTrips(t *testing.T) {
	s := newMockStore()
	s.pilots = []*store.Pilot{rosterPilot("AA"), rosterPilot("BB")}
	// More trips than one store page, so the load must paginate.
	total := tripPageSize + 20
	for i := 0; i < total; i++ {
		id := fmt.Sprintf("T%04d", i)
		s.trips[id] = openTrip(id)
	}
	p := newTestPlanner(t, s, nil, nil)

	plan, _, err := p.RunBalance(context.Background(), balance.Options{}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Assignments) != total {
		t.Fatalf("expected all %d trips planned, got %d", total, len(plan.Assignments))
	}
	lastID := fmt.Sprintf("T%04d", total-1)
	if _, ok := plan.Assignments[lastID]; !ok {
		t.Errorf("expected trip %s from the second page in the plan", lastID)
	}
}

func TestRunBalanceCommit(t *testing.T) {
	s := newMockStore()
	s.pilots = []*store.Pilot{rosterPilot("AA"), rosterPilot("BB"), rosterPilot("CC"), rosterPilot("DD")}
	s.trips["T1"] = openTrip("T1")
	s.trips["T2"] = openTrip("T2")
	p := newTestPlanner(t, s, nil, nil)

	plan, records, err := p.RunBalance(context.Background(), balance.Options{}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != len(plan.Assignments) {
		t.Fatalf("expected %d committed records, got %d", len(plan.Assignments), len(records))
	}
	for _, trip := range s.trips {
		if trip.Unassigned() {
			t.Errorf("trip %s left unassigned after commit", trip.ID)
		}
	}
	for _, rec := range records {
		if rec.DispatcherName != BalancerDispatcherName {
			t.Errorf("expected balancer attribution, got %q", rec.DispatcherName)
		}
	}
}

func TestRunBalanceSkipsRacedTrip(t *testing.T) {
	s := newMockStore()
	s.pilots = []*store.Pilot{rosterPilot("AA"), rosterPilot("BB")}
	s.trips["T1"] = openTrip("T1")
	p := newTestPlanner(t, s, nil, nil)

	// Simulate a manual claim landing between planning and commit.
	raced := &racingStore{mockStore: s}
	p.store = raced

	_, records, err := p.RunBalance(context.Background(), balance.Options{}, true)
	if err != nil {
		t.Fatalf("expected race to be skipped, got error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no committed records after race, got %d", len(records))
	}
}

// racingStore fills the trip's seats just before every claim attempt.
type racingStore struct {
	*mockStore
}

func (r *racingStore) AssignTrip(ctx context.Context, tripID, picShort, sicShort string) (bool, error) {
	other := "XX"
	if t := r.trips[tripID]; t != nil && t.Unassigned() {
		t.AssignedPIC = &other
		t.AssignedSIC = &other
	}
	return false, nil
}

func TestSync(t *testing.T) {
	s := newMockStore()
	existing := openTrip("T1")
	s.trips["T1"] = existing
	sky := &mockSky{
		pilots: []*store.Pilot{rosterPilot("AA"), rosterPilot("BB")},
		trips:  []*store.Trip{openTrip("T1"), openTrip("T2")},
	}
	ev := &mockEvents{}
	p := newTestPlanner(t, s, ev, sky)

	pilots, created, err := p.Sync(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pilots != 2 {
		t.Errorf("expected 2 pilots synced, got %d", pilots)
	}
	if created != 1 {
		t.Errorf("expected only the new trip created, got %d", created)
	}
	if s.trips["T1"] != existing {
		t.Error("existing trip must not be replaced by sync")
	}
	want := []string{events.SubjectTripCreated("T2"), events.SubjectRosterSynced}
	if len(ev.published) != 2 || ev.published[0] != want[0] || ev.published[1] != want[1] {
		t.Errorf("expected events %v, got %v", want, ev.published)
	}
}

func TestSyncPropagatesFetchErrors(t *testing.T) {
	s := newMockStore()
	sky := &mockSky{err: errors.New("feed down")}
	p := newTestPlanner(t, s, nil, sky)

	if _, _, err := p.Sync(context.Background()); err == nil {
		t.Fatal("expected fetch error to propagate")
	}
}
