package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Seat string

const (
	SeatPIC  Seat = "pic"
	SeatSIC  Seat = "sic"
	SeatDual Seat = "dual"
)

// Pilot is one roster member. ShortCode is unique within the roster and is
// the sole cross-reference key; display names are never used for lookup.
type Pilot struct {
	ShortCode    string   `json:"short_code"`
	Name         string   `json:"name"`
	Airframes    []string `json:"airframes"`
	Seat         Seat     `json:"seat"`
	Seniority    int      `json:"seniority"`
	Role         string   `json:"role,omitempty"` // line, standards, training
	UpgradeTrack bool     `json:"upgrade_track"`

	// Special-airport recency. Two encodings exist in crew-records feeds;
	// either or both may be present, keyed by airport code.
	SpecialDaysSince   map[string]int       `json:"special_days_since,omitempty"`
	SpecialLastLanding map[string]time.Time `json:"special_last_landing,omitempty"`

	// Night currency inputs, again in two feed encodings.
	NightLandings90  *int       `json:"night_landings_90,omitempty"`
	NightHours90     *float64   `json:"night_hours_90,omitempty"`
	LastNightLanding *time.Time `json:"last_night_landing,omitempty"`

	// Duty load.
	DutyDays14    int  `json:"duty_days_14"`
	WeekendDuty30 int  `json:"weekend_duty_30"`
	MaxedOut      bool `json:"maxed_out"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Leg struct {
	Num int    `json:"num"`
	Dep string `json:"dep"`
	Arr string `json:"arr"`
	ETD string `json:"etd,omitempty"`
	ETA string `json:"eta,omitempty"`
}

// Trip is one scheduled trip. Only the assignment seats are mutable, and
// only through AssignTrip; everything else is set at ingest.
type Trip struct {
	ID       string `json:"id"`
	Airframe string `json:"airframe"`
	Tail     string `json:"tail,omitempty"`
	Route    string `json:"route"`
	Special  string `json:"special,omitempty"` // special-airport code, empty = none

	WindowStart *time.Time `json:"window_start,omitempty"`
	WindowEnd   *time.Time `json:"window_end,omitempty"`
	TAFBHours   *float64   `json:"tafb_hours,omitempty"`
	TAFBDays    *float64   `json:"tafb_days,omitempty"`
	Legs        []Leg      `json:"legs,omitempty"`

	AssignedPIC *string `json:"assigned_pic,omitempty"`
	AssignedSIC *string `json:"assigned_sic,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Unassigned reports whether neither seat has been filled. The two seats are
// independent; a half-assigned trip is not unassigned.
func (t *Trip) Unassigned() bool {
	return t.AssignedPIC == nil && t.AssignedSIC == nil
}

// PairKey is a canonical unordered pair of pilot short codes, so (A,B) and
// (B,A) resolve to the same history entry.
type PairKey struct {
	A string `json:"a"`
	B string `json:"b"`
}

func NewPairKey(a, b string) PairKey {
	if b < a {
		a, b = b, a
	}
	return PairKey{A: a, B: b}
}

func (k PairKey) String() string { return k.A + "|" + k.B }

type PairingStat struct {
	DaysSinceLast int `json:"days_since_last"`
	Count90       int `json:"count_90"`
}

type PairingHistory map[PairKey]PairingStat

// Lookup returns the stat for a pair. A missing entry is the maximally
// unfamiliar baseline: 90 days since, zero pairings.
func (h PairingHistory) Lookup(a, b string) PairingStat {
	if s, ok := h[NewPairKey(a, b)]; ok {
		return s
	}
	return PairingStat{DaysSinceLast: 90, Count90: 0}
}

// DutyStats are fleet-wide duty baselines, supplied out-of-band and read-only.
type DutyStats struct {
	AvgDutyDays14    float64 `json:"avg_duty_days_14"`
	AvgWeekendDuty30 float64 `json:"avg_weekend_duty_30"`
}

// AssignmentRecord is the audit trail entry written when a recommendation is
// accepted, either by a dispatcher or by the balancer.
type AssignmentRecord struct {
	ID              uuid.UUID `json:"record_id"`
	TripID          string    `json:"trip_id"`
	Route           string    `json:"route"`
	Window          string    `json:"window,omitempty"`
	PIC             string    `json:"assigned_pic"` // display label "Name (SHORT)"
	SIC             string    `json:"assigned_sic"`
	PICShort        string    `json:"pic_short"`
	SICShort        string    `json:"sic_short"`
	PairingScore    float64   `json:"pairing_score"`
	SafetyAlerts    []string  `json:"safety_alerts"`
	NightCurrencyOK bool      `json:"night_currency_ok"`
	Rationale       []string  `json:"rationale,omitempty"`
	DispatcherNotes string    `json:"dispatcher_notes,omitempty"`
	DispatcherName  string    `json:"dispatcher_name"`
	CreatedAt       time.Time `json:"created_at"`
}

type TripFilter struct {
	Unassigned *bool
	Airframe   string
	Limit      int
	Offset     int
}

type Stats struct {
	TotalPilots       int `json:"total_pilots"`
	TotalTrips        int `json:"total_trips"`
	UnassignedTrips   int `json:"unassigned_trips"`
	AssignmentRecords int `json:"assignment_records"`
}

// Store owns all scheduling state. The scoring and balancing packages never
// touch it directly; they operate on snapshots read through this interface,
// and the single mutation path for seats is AssignTrip.
type Store interface {
	UpsertPilot(ctx context.Context, p *Pilot) error
	ListPilots(ctx context.Context) ([]*Pilot, error)

	CreateTrip(ctx context.Context, t *Trip) error
	GetTrip(ctx context.Context, id string) (*Trip, error)
	ListTrips(ctx context.Context, filter TripFilter) ([]*Trip, error)

	// AssignTrip atomically claims both seats of an unassigned trip.
	// It reports false when the trip was already partially or fully
	// assigned, without error.
	AssignTrip(ctx context.Context, tripID, picShort, sicShort string) (bool, error)

	GetPairingHistory(ctx context.Context) (PairingHistory, error)
	BumpPairing(ctx context.Context, key PairKey) error

	GetDutyStats(ctx context.Context) (*DutyStats, error)

	CreateAssignmentRecord(ctx context.Context, rec *AssignmentRecord) error
	ListAssignmentRecords(ctx context.Context, limit, offset int) ([]*AssignmentRecord, error)

	GetStats(ctx context.Context) (*Stats, error)

	Close() error
}
