package chain

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RPCCallDuration tracks per-method RPC latency.
	RPCCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flasharb_chain_rpc_call_duration_seconds",
		Help:    "Duration of RPC calls by method",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	// RPCErrorsTotal tracks per-method RPC failures.
	RPCErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flasharb_chain_rpc_errors_total",
		Help: "Total RPC call failures by method",
	}, []string{"method"})

	// TransactionsSentTotal tracks successful broadcasts.
	TransactionsSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flasharb_chain_transactions_sent_total",
		Help: "Total transactions broadcast to the network",
	})
)
