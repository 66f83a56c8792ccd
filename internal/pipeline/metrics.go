package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExecutionsTotal counts executions by terminal state.
	ExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flasharb_pipeline_executions_total",
		Help: "Total number of pipeline executions by terminal state",
	}, []string{"state"})

	// StateTransitionsTotal counts checkpoint crossings.
	StateTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flasharb_pipeline_state_transitions_total",
		Help: "Total number of pipeline state transitions",
	}, []string{"from", "to"})

	// ExecutionDuration tracks confirmed execution wall time.
	ExecutionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flasharb_pipeline_execution_duration_seconds",
		Help:    "Wall time from detection to confirmation",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)
