package nonce

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AllocationsTotal counts nonce allocations.
	AllocationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flasharb_nonce_allocations_total",
		Help: "Total nonces allocated",
	})

	// ReleasesTotal counts never-broadcast nonces returned to the pool.
	ReleasesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flasharb_nonce_releases_total",
		Help: "Total nonces released back for reuse",
	})

	// ResyncsTotal counts rebases against the on-chain nonce.
	ResyncsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flasharb_nonce_resyncs_total",
		Help: "Total resyncs against the authoritative chain nonce",
	})

	// InFlightGauge tracks allocated, unresolved nonces.
	InFlightGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flasharb_nonce_in_flight",
		Help: "Currently allocated nonces awaiting broadcast or release",
	})
)
