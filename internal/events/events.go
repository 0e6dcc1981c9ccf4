package events

import "time"

type TripAssignedEvent struct {
	TripID         string  `json:"trip_id"`
	PICShort       string  `json:"pic_short"`
	SICShort       string  `json:"sic_short"`
	PairingScore   float64 `json:"pairing_score"`
	DispatcherName string  `json:"dispatcher_name"`
	Source         string  `json:"source"` // "manual" or "balancer"
}

type BalanceCompletedEvent struct {
	TargetCredit  float64            `json:"target_credit"`
	AssignedTrips int                `json:"assigned_trips"`
	CreditByPilot map[string]float64 `json:"credit_by_pilot"`
	Committed     bool               `json:"committed"`
	Timestamp     time.Time          `json:"timestamp"`
}

type TripCreatedEvent struct {
	TripID   string `json:"trip_id"`
	Airframe string `json:"airframe"`
	Route    string `json:"route"`
	Source   string `json:"source"` // "manual" or "sync"
}

type RosterSyncedEvent struct {
	Pilots    int       `json:"pilots"`
	Trips     int       `json:"trips"`
	Timestamp time.Time `json:"timestamp"`
}
