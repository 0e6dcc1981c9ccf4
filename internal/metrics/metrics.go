package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecommendationsComputed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autopilot_recommendations_computed_total",
		Help: "Pairing recommendation lists computed.",
	})

	AssignmentsCommitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autopilot_assignments_committed_total",
		Help: "Trip assignments committed, by source.",
	}, []string{"source"})

	BalanceRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autopilot_balance_runs_total",
		Help: "Fairness balancing runs executed.",
	})
)
