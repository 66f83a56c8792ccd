package flashloan

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SelectionsTotal tracks chosen funding sources.
	SelectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flasharb_flashloan_selections_total",
			Help: "Total flash-loan source selections by source",
		},
		[]string{"source"},
	)

	// SelectionFailuresTotal counts borrows no venue could fund.
	SelectionFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flasharb_flashloan_selection_failures_total",
		Help: "Total borrows for which no funding source was available",
	})
)
