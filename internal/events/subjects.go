package events

const (
	SubjectBalanceCompleted = "crew.balance.completed"
	SubjectRosterSynced     = "crew.roster.synced"

	StreamName   = "CREW_EVENTS"
	StreamMaxAge = "2160h" // 90 days, the audit-relevant horizon
)

func SubjectTripAssigned(tripID string) string { return "crew.trip." + tripID + ".assigned" }
func SubjectTripCreated(tripID string) string  { return "crew.trip." + tripID + ".created" }
