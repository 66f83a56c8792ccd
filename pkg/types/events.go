package types

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind names an entry on the engine's public event stream.
type EventKind string

const (
	EventExecutionStarted   EventKind = "execution-started"
	EventExecutionCompleted EventKind = "execution-completed"
	EventExecutionFailed    EventKind = "execution-failed"
	EventExecutionRejected  EventKind = "execution-rejected"
	EventStateTransition    EventKind = "state-transition"
	EventHealthCheck        EventKind = "health-check"
	EventAnomalyDetected    EventKind = "anomaly-detected"
	EventCriticalHealth     EventKind = "critical-health"
)

// Event is one entry on the public stream. The stream is the sole
// channel for failure visibility; no terminal outcome is dropped.
type Event struct {
	Kind          EventKind   `json:"kind"`
	OpportunityID string      `json:"opportunity_id,omitempty"`
	TxHash        common.Hash `json:"tx_hash,omitempty"`
	NetProfit     float64     `json:"net_profit,omitempty"`
	Reason        string      `json:"reason,omitempty"`
	Component     string      `json:"component,omitempty"`
	Description   string      `json:"description,omitempty"`
	State         string      `json:"state,omitempty"`
	At            time.Time   `json:"at"`
}
