package httpserver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventStreamClients is the number of connected event stream clients.
	EventStreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flasharb_httpserver_event_stream_clients",
		Help: "Number of connected WebSocket event stream clients",
	})

	// EventStreamMessagesTotal counts events delivered over WebSocket.
	EventStreamMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flasharb_httpserver_event_stream_messages_total",
		Help: "Total number of events delivered to WebSocket clients",
	})
)
