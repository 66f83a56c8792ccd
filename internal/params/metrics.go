package params

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BuildersRegistered counts protocol builders added to the registry.
	BuildersRegistered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flasharb_params_builders_registered_total",
		Help: "Total number of DEX protocol builders registered",
	})

	// CalldataBuiltTotal counts successful calldata builds by source.
	CalldataBuiltTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flasharb_params_calldata_built_total",
		Help: "Total number of executor calldata payloads built",
	}, []string{"source"})
)
