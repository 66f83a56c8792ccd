package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AdmissionsTotal counts admission outcomes; the label is either
	// "admitted" or the rejection code.
	AdmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flasharb_orchestrator_admissions_total",
		Help: "Total number of admission decisions by outcome",
	}, []string{"outcome"})

	// ActiveExecutions is the number of executions currently running.
	ActiveExecutions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flasharb_orchestrator_active_executions",
		Help: "Number of executions currently in flight",
	})

	// ExposureGauge is the USD notional currently at risk.
	ExposureGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flasharb_orchestrator_exposure_usd",
		Help: "Total USD notional of in-flight executions",
	})
)
