package health

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ObservationsTotal counts outcomes recorded per component.
	ObservationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flasharb_health_observations_total",
		Help: "Total number of health observations recorded",
	}, []string{"component", "outcome"})

	// FailureRateGauge is the rolling failure rate per component.
	FailureRateGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flasharb_health_failure_rate",
		Help: "Rolling-window failure rate per component",
	}, []string{"component"})

	// AnomaliesTotal counts latency anomalies detected per component.
	AnomaliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flasharb_health_anomalies_total",
		Help: "Total number of latency anomalies detected",
	}, []string{"component"})

	// CriticalChecksTotal counts checks that found the system critical.
	CriticalChecksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flasharb_health_critical_checks_total",
		Help: "Total number of health checks reporting critical status",
	})
)
