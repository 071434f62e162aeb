package checkout

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	terminalOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_terminal_outcomes_total",
			Help: "Terminal outcomes of reservation sessions by exit kind",
		},
		[]string{"outcome"},
	)

	sessionsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "checkout_sessions_in_flight",
			Help: "Reservation sessions currently awaiting payment",
		},
	)
)
