package recovery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ActionsTotal counts recovery actions planned, by strategy and the
// error code that triggered them.
var ActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "flasharb_recovery_actions_total",
	Help: "Total number of recovery actions planned",
}, []string{"strategy", "code"})
