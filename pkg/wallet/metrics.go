package wallet

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// NativeBalance tracks the wallet's native token balance.
	NativeBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flasharb_wallet_native_balance",
		Help: "Current native token balance of the engine wallet (native units)",
	})

	// LowBalance is 1 while the balance is below the configured minimum.
	LowBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flasharb_wallet_low_balance",
		Help: "1 if the wallet balance is below the configured minimum, else 0",
	})

	// UpdateErrorsTotal tracks the number of failed balance polls.
	UpdateErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flasharb_wallet_update_errors_total",
		Help: "Total number of failed wallet balance polls",
	})

	// UpdateDuration tracks the time taken to read the balance.
	UpdateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flasharb_wallet_update_duration_seconds",
		Help:    "Time taken to read the wallet balance (seconds)",
		Buckets: prometheus.DefBuckets,
	})

	// LastUpdateTimestamp tracks the Unix timestamp of the last successful poll.
	LastUpdateTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flasharb_wallet_last_update_timestamp",
		Help: "Unix timestamp of last successful balance poll",
	})
)
