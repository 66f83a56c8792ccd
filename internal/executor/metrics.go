package executor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BuildsTotal counts successfully built requests by funding source.
	BuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flasharb_executor_builds_total",
		Help: "Total number of transaction requests built",
	}, []string{"source"})

	// GasGateRejectionsTotal counts opportunities rejected at the gas gate.
	GasGateRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flasharb_executor_gas_gate_rejections_total",
		Help: "Total number of opportunities rejected by gas gates",
	}, []string{"gate"})

	// SubmissionsTotal counts submission outcomes.
	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flasharb_executor_submissions_total",
		Help: "Total number of transaction submissions by outcome",
	}, []string{"outcome"})

	// ConfirmationsTotal counts confirmed receipts by status.
	ConfirmationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flasharb_executor_confirmations_total",
		Help: "Total number of transaction confirmations by status",
	}, []string{"status"})
)
