package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PublishedTotal counts events published by kind.
	PublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flasharb_events_published_total",
		Help: "Total number of events published to the bus",
	}, []string{"kind"})

	// DroppedTotal counts events dropped on lagging subscribers.
	DroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flasharb_events_dropped_total",
		Help: "Total number of events dropped because a subscriber lagged",
	})

	// SubscribersGauge is the current subscriber count.
	SubscribersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flasharb_events_subscribers",
		Help: "Current number of event bus subscribers",
	})
)
