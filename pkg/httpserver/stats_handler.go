package httpserver

import (
	"net/http"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/axionmev/flasharb/internal/circuitbreaker"
	"github.com/axionmev/flasharb/internal/health"
	"github.com/axionmev/flasharb/internal/orchestrator"
)

// StatsSource exposes execution counters and exposure totals.
type StatsSource interface {
	GetStats() orchestrator.Stats
}

// BreakerSource exposes the circuit breaker state.
type BreakerSource interface {
	GetStatus() circuitbreaker.Status
}

// HealthSource exposes per-component health snapshots.
type HealthSource interface {
	Snapshot() []health.ComponentHealth
}

// StatsHandler serves the engine status API.
type StatsHandler struct {
	stats   StatsSource
	breaker BreakerSource
	health  HealthSource
	logger  *zap.Logger
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(stats StatsSource, breaker BreakerSource, healthSrc HealthSource, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{
		stats:   stats,
		breaker: breaker,
		health:  healthSrc,
		logger:  logger,
	}
}

// StatsResponse represents the HTTP response for engine status.
type StatsResponse struct {
	Executions orchestrator.Stats       `json:"executions"`
	Breaker    circuitbreaker.Status    `json:"breaker"`
	Health     []health.ComponentHealth `json:"health"`
}

// HandleStats handles GET /api/stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	response := StatsResponse{
		Executions: h.stats.GetStats(),
		Breaker:    h.breaker.GetStatus(),
		Health:     h.health.Snapshot(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	err := json.NewEncoder(w).Encode(response)
	if err != nil {
		h.logger.Error("failed-to-encode-response", zap.Error(err))
	}
}
