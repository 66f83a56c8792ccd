package profit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ValidationsTotal counts executions that passed the profit gate.
	ValidationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flasharb_profit_validations_total",
		Help: "Total executions that passed profit validation",
	})

	// RejectionsTotal counts profit-gate rejections by reason.
	RejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flasharb_profit_rejections_total",
			Help: "Total profit validation rejections by reason",
		},
		[]string{"reason"},
	)

	// PredictionDrift tracks realized vs forecast net profit.
	PredictionDrift = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flasharb_profit_prediction_drift",
		Help:    "Relative drift between forecast and realized net profit",
		Buckets: prometheus.LinearBuckets(-1.0, 0.2, 11),
	})
)
