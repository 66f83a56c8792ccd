// Package pipeline drives one opportunity from detection to a terminal
// checkpoint. Every attempt, error, and state crossing is recorded on
// the execution context; the pipeline itself holds no per-execution
// state.
package pipeline

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/axionmev/flasharb/internal/profit"
	"github.com/axionmev/flasharb/internal/recovery"
	"github.com/axionmev/flasharb/pkg/types"
)

const (
	weiPerNative = 1e18

	// A forecast that misses realized net by more than half counts
	// against forecast health.
	forecastDriftTolerance = 0.5
)

// TransactionExecutor builds and submits transactions. Satisfied by
// the executor package. gasBumps carries the replacement count so a
// rebuilt request prices above the attempt it replaces.
type TransactionExecutor interface {
	Build(ctx context.Context, opp *types.Opportunity, deadline time.Time, gasBumps int) (*types.TransactionRequest, *profit.Breakdown, error)
	Submit(ctx context.Context, req *types.TransactionRequest) (*types.TransactionResult, error)
}

// Reconciler compares a profit forecast against realized gas spend.
// Satisfied by the profit validator.
type Reconciler interface {
	Reconcile(forecast profit.Breakdown, actualGasUSD float64) float64
}

// NonceResyncer rebases the nonce sequence from chain state.
type NonceResyncer interface {
	Resync(ctx context.Context) error
}

// GasRefresher invalidates the cached gas quote.
type GasRefresher interface {
	Refresh()
}

// HealthRecorder receives per-execution outcomes.
type HealthRecorder interface {
	Record(component string, success bool, latency time.Duration)
}

// Publisher receives pipeline events.
type Publisher interface {
	Publish(event types.Event)
}

// Config holds pipeline configuration.
type Config struct {
	ExecutionTimeout time.Duration
	NativePriceUSD   float64 // converts realized gas wei to USD for reconciliation

	Executor TransactionExecutor
	Planner  *recovery.Planner
	Nonces   NonceResyncer
	Gas      GasRefresher
	Profit   Reconciler
	Health   HealthRecorder
	Events   Publisher
	Logger   *zap.Logger
}

// Pipeline runs executions. Safe for concurrent use; each Run carries
// its own context.
type Pipeline struct {
	cfg    Config
	logger *zap.Logger
}

// New creates an execution pipeline.
func New(cfg *Config) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("executor cannot be nil")
	}
	if cfg.Planner == nil {
		return nil, fmt.Errorf("recovery planner cannot be nil")
	}
	if cfg.Nonces == nil {
		return nil, fmt.Errorf("nonce resyncer cannot be nil")
	}
	if cfg.Gas == nil {
		return nil, fmt.Errorf("gas refresher cannot be nil")
	}
	if cfg.Profit == nil {
		return nil, fmt.Errorf("profit reconciler cannot be nil")
	}
	if cfg.Health == nil {
		return nil, fmt.Errorf("health recorder cannot be nil")
	}
	if cfg.Events == nil {
		return nil, fmt.Errorf("event publisher cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.ExecutionTimeout <= 0 {
		return nil, fmt.Errorf("execution timeout must be positive")
	}
	if cfg.NativePriceUSD <= 0 {
		return nil, fmt.Errorf("native token price must be positive")
	}

	return &Pipeline{cfg: *cfg, logger: cfg.Logger}, nil
}

// Run executes one opportunity to a terminal state. It never returns a
// context in a non-terminal state.
func (p *Pipeline) Run(ctx context.Context, opp *types.Opportunity) *Context {
	ectx := newContext(opp)

	deadline := time.Now().Add(p.cfg.ExecutionTimeout)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	p.publish(types.Event{
		Kind:          types.EventExecutionStarted,
		OpportunityID: opp.ID,
		At:            time.Now(),
	})

	for {
		ectx.Attempts++

		if ctx.Err() != nil {
			p.fail(ectx, types.NewExecutionError(types.ErrCodeTimeout, "pipeline",
				"execution deadline exceeded", ctx.Err()))

			return ectx
		}

		done := p.attempt(ctx, ectx, deadline)
		if done {
			return ectx
		}
	}
}

// attempt runs one build+submit cycle. Returns true when the context
// reached a terminal state.
func (p *Pipeline) attempt(ctx context.Context, ectx *Context, deadline time.Time) bool {
	buildStart := time.Now()
	req, forecast, err := p.cfg.Executor.Build(ctx, ectx.Opportunity, deadline, ectx.GasBumps)
	if err != nil {
		execErr := recovery.ClassifyError(err, "build")
		ectx.recordError(execErr)

		if types.IsValidationCode(execErr.Code) {
			p.reject(ectx, execErr)

			return true
		}

		p.cfg.Health.Record("build", false, time.Since(buildStart))

		return p.recover(ctx, ectx, execErr)
	}
	p.cfg.Health.Record("build", true, time.Since(buildStart))

	if ectx.State == StateDetected {
		p.checkpoint(ectx, StateValidated)
	}
	p.checkpoint(ectx, StatePrepared)
	ectx.Request = req
	ectx.Forecast = forecast

	p.checkpoint(ectx, StateSubmitted)

	submitStart := time.Now()
	result, err := p.cfg.Executor.Submit(ctx, req)
	p.cfg.Health.Record("submit", err == nil, time.Since(submitStart))
	if result != nil {
		ectx.Result = result
	}
	if err != nil {
		execErr := recovery.ClassifyError(err, "submit")
		ectx.recordError(execErr)

		return p.recover(ctx, ectx, execErr)
	}

	p.checkpoint(ectx, StateConfirmed)
	p.cfg.Health.Record("pipeline", true, ectx.Duration())
	ExecutionsTotal.WithLabelValues("confirmed").Inc()
	ExecutionDuration.Observe(ectx.Duration().Seconds())

	p.reconcile(req, forecast, result)

	p.publish(types.Event{
		Kind:          types.EventExecutionCompleted,
		OpportunityID: ectx.Opportunity.ID,
		TxHash:        result.TxHash,
		NetProfit:     req.NetProfit,
		At:            time.Now(),
	})
	p.logger.Info("execution-confirmed",
		zap.String("opportunity", ectx.Opportunity.ID),
		zap.Int("attempts", ectx.Attempts),
		zap.Duration("duration", ectx.Duration()))

	return true
}

// recover consults the planner and applies its action. Returns true
// when the failure escalated to a terminal state.
func (p *Pipeline) recover(ctx context.Context, ectx *Context, execErr *types.ExecutionError) bool {
	action := p.cfg.Planner.Plan(execErr, ectx.Attempts, ectx.GasBumps)

	if action.Strategy == recovery.StrategyEscalate {
		p.fail(ectx, execErr)

		return true
	}

	// Leaving Submitted means re-validating before the next attempt.
	if ectx.State == StateSubmitted {
		p.checkpoint(ectx, StateValidated)
	}

	p.logger.Warn("attempt-failed-recovering",
		zap.String("opportunity", ectx.Opportunity.ID),
		zap.String("code", string(execErr.Code)),
		zap.String("strategy", string(action.Strategy)),
		zap.Int("attempt", ectx.Attempts))

	switch action.Strategy {
	case recovery.StrategyResyncNonce:
		if err := p.cfg.Nonces.Resync(ctx); err != nil {
			p.logger.Error("nonce-resync-failed", zap.Error(err))
		}
	case recovery.StrategyAdjustGas:
		p.cfg.Gas.Refresh()
		if action.BumpGas {
			// The next Build prices at quote * factor^GasBumps.
			ectx.GasBumps++
		}
	}

	if action.Backoff > 0 && !p.sleep(ctx, action.Backoff) {
		p.fail(ectx, types.NewExecutionError(types.ErrCodeTimeout, "pipeline",
			"deadline expired during backoff", ctx.Err()))

		return true
	}

	return false
}

// reconcile compares the pre-submission profit forecast against the
// realized gas spend and folds forecast accuracy into component
// health. Paper trades report no gas used and are skipped.
func (p *Pipeline) reconcile(req *types.TransactionRequest, forecast *profit.Breakdown, result *types.TransactionResult) {
	if forecast == nil || result == nil || result.GasUsed == 0 || req.GasPrice == nil {
		return
	}

	costWei := new(big.Int).Mul(req.GasPrice, new(big.Int).SetUint64(result.GasUsed))
	costNative := new(big.Float).Quo(new(big.Float).SetInt(costWei), big.NewFloat(weiPerNative))
	actualGasUSD, _ := new(big.Float).Mul(costNative, big.NewFloat(p.cfg.NativePriceUSD)).Float64()

	drift := p.cfg.Profit.Reconcile(*forecast, actualGasUSD)
	p.cfg.Health.Record("profit-forecast", math.Abs(drift) <= forecastDriftTolerance, 0)

	p.logger.Debug("profit-reconciled",
		zap.String("opportunity", req.OpportunityID),
		zap.Float64("actual-gas-usd", actualGasUSD),
		zap.Float64("drift", drift))
}

// sleep waits for the backoff unless the context expires first.
func (p *Pipeline) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (p *Pipeline) checkpoint(ectx *Context, to State) {
	from := ectx.State
	if err := ectx.transition(to); err != nil {
		// Transition relation violations are programming errors.
		p.logger.Error("illegal-state-transition", zap.Error(err))

		return
	}

	StateTransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
	p.publish(types.Event{
		Kind:          types.EventStateTransition,
		OpportunityID: ectx.Opportunity.ID,
		State:         string(to),
		At:            time.Now(),
	})
}

func (p *Pipeline) reject(ectx *Context, execErr *types.ExecutionError) {
	p.checkpoint(ectx, StateRejected)
	ExecutionsTotal.WithLabelValues("rejected").Inc()

	p.publish(types.Event{
		Kind:          types.EventExecutionRejected,
		OpportunityID: ectx.Opportunity.ID,
		Reason:        string(execErr.Code),
		At:            time.Now(),
	})
	p.logger.Info("execution-rejected",
		zap.String("opportunity", ectx.Opportunity.ID),
		zap.String("code", string(execErr.Code)))
}

func (p *Pipeline) fail(ectx *Context, execErr *types.ExecutionError) {
	if ectx.LastError() != execErr {
		ectx.recordError(execErr)
	}
	p.checkpoint(ectx, StateFailed)
	p.cfg.Health.Record("pipeline", false, ectx.Duration())
	ExecutionsTotal.WithLabelValues("failed").Inc()

	p.publish(types.Event{
		Kind:          types.EventExecutionFailed,
		OpportunityID: ectx.Opportunity.ID,
		Reason:        string(execErr.Code),
		At:            time.Now(),
	})
	p.logger.Warn("execution-failed",
		zap.String("opportunity", ectx.Opportunity.ID),
		zap.String("code", string(execErr.Code)),
		zap.Int("attempts", ectx.Attempts))
}

func (p *Pipeline) publish(event types.Event) {
	p.cfg.Events.Publish(event)
}
