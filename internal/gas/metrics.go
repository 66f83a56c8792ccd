package gas

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EstimationDuration tracks estimate latency.
	EstimationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flasharb_gas_estimation_duration_seconds",
		Help:    "Duration of gas cost estimation",
		Buckets: prometheus.DefBuckets,
	})

	// EstimatedGasLimit tracks buffered gas limit forecasts.
	EstimatedGasLimit = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flasharb_gas_estimated_limit",
		Help:    "Distribution of estimated gas limits",
		Buckets: prometheus.ExponentialBuckets(200_000, 1.5, 10),
	})

	// EstimatedCostUSD tracks forecast transaction cost.
	EstimatedCostUSD = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flasharb_gas_estimated_cost_usd",
		Help:    "Distribution of estimated total gas cost in USD",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)
