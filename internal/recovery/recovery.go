// Package recovery decides what to do after a failed execution
// attempt. Classification is a fixed table from error code to
// strategy, so the same failure always produces the same plan.
package recovery

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/axionmev/flasharb/pkg/types"
)

// Strategy is the action class the pipeline takes for a failure.
type Strategy string

const (
	// StrategyRetry resubmits after an exponential backoff.
	StrategyRetry Strategy = "retry"

	// StrategyResyncNonce rebases the nonce sequencer from chain state
	// before retrying.
	StrategyResyncNonce Strategy = "resync_nonce"

	// StrategyAdjustGas requotes gas with a bounded bump before
	// retrying.
	StrategyAdjustGas Strategy = "adjust_gas"

	// StrategyWaitAndRetry holds for a congestion delay before
	// retrying.
	StrategyWaitAndRetry Strategy = "wait_and_retry"

	// StrategyEscalate abandons the attempt. Reverts and slippage are
	// never blindly retried: the state that produced them is stale.
	StrategyEscalate Strategy = "escalate"
)

// classification is the fixed code-to-strategy table. Codes absent
// from the table escalate.
var classification = map[types.ErrorCode]Strategy{
	types.ErrCodeRPCTimeout:       StrategyRetry,
	types.ErrCodeRPCUnreachable:   StrategyRetry,
	types.ErrCodeNonceTooLow:      StrategyResyncNonce,
	types.ErrCodeNonceConflict:    StrategyResyncNonce,
	types.ErrCodeUnderpriced:      StrategyAdjustGas,
	types.ErrCodeConfirmTimeout:   StrategyAdjustGas,
	types.ErrCodeGasSpike:         StrategyWaitAndRetry,
	types.ErrCodeCongestion:       StrategyWaitAndRetry,
	types.ErrCodeReverted:         StrategyEscalate,
	types.ErrCodeOutOfGas:         StrategyEscalate,
	types.ErrCodeSlippageExceeded: StrategyEscalate,
	types.ErrCodeTimeout:          StrategyEscalate,
}

// Action is the plan for one failed attempt.
type Action struct {
	Strategy Strategy
	Backoff  time.Duration
	// BumpGas asks the executor to requote with the bump factor
	// applied. Only set for StrategyAdjustGas while bumps remain.
	BumpGas bool
}

// Config bounds how far the planner will go before giving up.
type Config struct {
	MaxRetries      int
	BackoffBase     time.Duration
	BackoffMax      time.Duration
	GasBumpFactor   float64
	MaxGasBumps     int
	CongestionDelay time.Duration
	Logger          *zap.Logger
}

// Planner maps execution errors to recovery actions.
type Planner struct {
	cfg    Config
	logger *zap.Logger
}

// NewPlanner creates a recovery planner.
func NewPlanner(cfg Config) (*Planner, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max retries cannot be negative")
	}
	if cfg.BackoffBase <= 0 {
		return nil, fmt.Errorf("backoff base must be positive")
	}
	if cfg.BackoffMax < cfg.BackoffBase {
		return nil, fmt.Errorf("backoff max must be >= backoff base")
	}
	if cfg.GasBumpFactor <= 1.0 {
		return nil, fmt.Errorf("gas bump factor must be > 1.0")
	}

	return &Planner{cfg: cfg, logger: cfg.Logger}, nil
}

// Classify returns the strategy for an error code.
func Classify(code types.ErrorCode) Strategy {
	if s, ok := classification[code]; ok {
		return s
	}

	return StrategyEscalate
}

// Plan decides the action for a failed attempt. attempt is 1-based:
// the attempt that just failed. gasBumps is how many gas bumps have
// already been applied for this opportunity.
func (p *Planner) Plan(execErr *types.ExecutionError, attempt, gasBumps int) Action {
	if execErr == nil {
		return Action{Strategy: StrategyEscalate}
	}

	// Validation rejections are final; they are not transient faults.
	if types.IsValidationCode(execErr.Code) {
		return Action{Strategy: StrategyEscalate}
	}

	if attempt >= p.cfg.MaxRetries {
		p.logger.Warn("retry-budget-exhausted",
			zap.String("code", string(execErr.Code)),
			zap.Int("attempt", attempt))

		return Action{Strategy: StrategyEscalate}
	}

	strategy := Classify(execErr.Code)
	ActionsTotal.WithLabelValues(string(strategy), string(execErr.Code)).Inc()

	switch strategy {
	case StrategyRetry:
		return Action{Strategy: strategy, Backoff: p.backoff(attempt)}
	case StrategyResyncNonce:
		return Action{Strategy: strategy, Backoff: p.backoff(attempt)}
	case StrategyAdjustGas:
		if gasBumps >= p.cfg.MaxGasBumps {
			return Action{Strategy: StrategyEscalate}
		}

		return Action{Strategy: strategy, Backoff: p.backoff(attempt), BumpGas: true}
	case StrategyWaitAndRetry:
		return Action{Strategy: strategy, Backoff: p.cfg.CongestionDelay}
	default:
		return Action{Strategy: StrategyEscalate}
	}
}

// GasBumpFactor is the multiplier the executor applies per bump.
func (p *Planner) GasBumpFactor() float64 {
	return p.cfg.GasBumpFactor
}

// backoff doubles per attempt from the base, capped at the max.
func (p *Planner) backoff(attempt int) time.Duration {
	d := p.cfg.BackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.cfg.BackoffMax {
			return p.cfg.BackoffMax
		}
	}
	if d > p.cfg.BackoffMax {
		return p.cfg.BackoffMax
	}

	return d
}
