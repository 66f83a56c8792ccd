package circuitbreaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BreakerEnabled indicates whether the breaker admits executions.
	BreakerEnabled = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flasharb_circuit_breaker_enabled",
		Help: "Whether the circuit breaker admits executions (1=enabled, 0=tripped)",
	})

	// ConsecutiveFailures tracks the current consecutive failure run.
	ConsecutiveFailures = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flasharb_circuit_breaker_consecutive_failures",
		Help: "Current run of consecutive failed executions",
	})

	// WindowLoss tracks cumulative realized loss inside the trailing window.
	WindowLoss = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flasharb_circuit_breaker_window_loss_usd",
		Help: "Cumulative realized loss in USD inside the trailing window",
	})

	// TripsTotal counts breaker trips.
	TripsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flasharb_circuit_breaker_trips_total",
		Help: "Total number of times the circuit breaker tripped",
	})
)
