// Package orchestrator admits opportunities into the execution
// pipeline and tracks the fleet of in-flight executions. Admission is
// the engine's safety perimeter: the circuit breaker, position limits,
// health state, and the concurrency budget are all enforced here,
// before any chain interaction.
package orchestrator

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/axionmev/flasharb/internal/events"
	"github.com/axionmev/flasharb/internal/health"
	"github.com/axionmev/flasharb/internal/pipeline"
	"github.com/axionmev/flasharb/pkg/types"
)

// Runner executes one opportunity to a terminal state.
type Runner interface {
	Run(ctx context.Context, opp *types.Opportunity) *pipeline.Context
}

// AdmissionBreaker gates admission on realized outcomes.
type AdmissionBreaker interface {
	IsEnabled() bool
	RecordSuccess()
	RecordFailure(lossUSD float64)
}

// HealthSource reports the system-wide health status.
type HealthSource interface {
	Overall() health.Status
}

// ResultStore archives terminal execution contexts.
type ResultStore interface {
	SaveExecution(ctx context.Context, ectx *pipeline.Context) error
}

// Stats is a snapshot of engine throughput since start.
type Stats struct {
	Admitted           uint64  `json:"admitted"`
	Confirmed          uint64  `json:"confirmed"`
	Failed             uint64  `json:"failed"`
	Rejected           uint64  `json:"rejected"`
	ActiveExecutions   int     `json:"active_executions"`
	CurrentExposureUSD float64 `json:"current_exposure_usd"`
	TotalNetProfitUSD  float64 `json:"total_net_profit_usd"`
	TotalLossUSD       float64 `json:"total_loss_usd"`
}

// Config holds orchestrator configuration.
type Config struct {
	MaxConcurrentExecutions int
	MaxPositionSizeUSD      float64
	MaxTotalExposureUSD     float64
	NativeTokenPriceUSD     float64

	Pipeline Runner
	Breaker  AdmissionBreaker
	Health   HealthSource
	Bus      *events.Bus
	Store    ResultStore
	Logger   *zap.Logger
}

// Orchestrator runs the admission gate and execution fleet.
type Orchestrator struct {
	cfg    Config
	logger *zap.Logger

	accepting atomic.Bool
	runCtx    context.Context
	cancel    context.CancelFunc
	slots     chan struct{}
	wg        sync.WaitGroup

	mu          sync.Mutex
	exposureUSD float64
	stats       Stats
}

// New creates an orchestrator.
func New(cfg *Config) (*Orchestrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Pipeline == nil {
		return nil, fmt.Errorf("pipeline cannot be nil")
	}
	if cfg.Breaker == nil {
		return nil, fmt.Errorf("circuit breaker cannot be nil")
	}
	if cfg.Health == nil {
		return nil, fmt.Errorf("health source cannot be nil")
	}
	if cfg.Bus == nil {
		return nil, fmt.Errorf("event bus cannot be nil")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("result store cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.MaxConcurrentExecutions <= 0 {
		return nil, fmt.Errorf("max concurrent executions must be positive")
	}
	if cfg.MaxPositionSizeUSD <= 0 {
		return nil, fmt.Errorf("max position size must be positive")
	}
	if cfg.MaxTotalExposureUSD < cfg.MaxPositionSizeUSD {
		return nil, fmt.Errorf("max total exposure must be >= max position size")
	}

	return &Orchestrator{
		cfg:    *cfg,
		logger: cfg.Logger,
		slots:  make(chan struct{}, cfg.MaxConcurrentExecutions),
	}, nil
}

// Start opens the admission gate. Executions run under the given
// context.
func (o *Orchestrator) Start(ctx context.Context) {
	o.runCtx, o.cancel = context.WithCancel(ctx)
	o.accepting.Store(true)

	o.logger.Info("orchestrator-started",
		zap.Int("max-concurrent", o.cfg.MaxConcurrentExecutions),
		zap.Float64("max-position-usd", o.cfg.MaxPositionSizeUSD),
		zap.Float64("max-exposure-usd", o.cfg.MaxTotalExposureUSD))
}

// Stop closes the gate and drains in-flight executions. New
// opportunities are rejected immediately; running pipelines finish
// inside their own deadlines.
func (o *Orchestrator) Stop() {
	o.accepting.Store(false)
	o.wg.Wait()
	if o.cancel != nil {
		o.cancel()
	}

	o.logger.Info("orchestrator-stopped")
}

// ProcessOpportunity runs the admission gate and, on success,
// dispatches the opportunity asynchronously. The returned error is nil
// exactly when the opportunity was admitted.
func (o *Orchestrator) ProcessOpportunity(opp *types.Opportunity) error {
	if opp == nil || opp.Path == nil {
		return types.NewExecutionError(types.ErrCodeInvalidPath, "admission", "nil opportunity", nil)
	}

	if execErr := o.admit(opp); execErr != nil {
		o.rejectAtGate(opp, execErr)

		return execErr
	}

	o.wg.Add(1)
	o.mu.Lock()
	o.stats.Admitted++
	o.mu.Unlock()
	AdmissionsTotal.WithLabelValues("admitted").Inc()

	go o.execute(opp)

	return nil
}

// admit runs every gate in order. Cheap checks first; the concurrency
// slot is taken last because it must be given back on later rejection.
func (o *Orchestrator) admit(opp *types.Opportunity) *types.ExecutionError {
	if !o.accepting.Load() {
		return types.NewExecutionError(types.ErrCodeCapacityExhausted, "admission",
			"orchestrator is not accepting opportunities", nil)
	}

	if !o.cfg.Breaker.IsEnabled() {
		return types.NewExecutionError(types.ErrCodeCircuitBreakerOpen, "admission",
			"circuit breaker is tripped", nil)
	}

	if o.cfg.Health.Overall() == health.StatusCritical {
		return types.NewExecutionError(types.ErrCodeHealthCritical, "admission",
			"system health is critical", nil)
	}

	if opp.BorrowNotionalUSD > o.cfg.MaxPositionSizeUSD {
		return types.NewExecutionError(types.ErrCodePositionTooLarge, "admission",
			fmt.Sprintf("notional $%.0f exceeds position limit $%.0f",
				opp.BorrowNotionalUSD, o.cfg.MaxPositionSizeUSD), nil)
	}

	o.mu.Lock()
	overExposed := o.exposureUSD+opp.BorrowNotionalUSD > o.cfg.MaxTotalExposureUSD
	o.mu.Unlock()
	if overExposed {
		return types.NewExecutionError(types.ErrCodePositionTooLarge, "admission",
			"total exposure limit reached", nil)
	}

	select {
	case o.slots <- struct{}{}:
	default:
		return types.NewExecutionError(types.ErrCodeCapacityExhausted, "admission",
			"all execution slots are busy", nil)
	}

	o.mu.Lock()
	o.exposureUSD += opp.BorrowNotionalUSD
	ExposureGauge.Set(o.exposureUSD)
	o.mu.Unlock()

	return nil
}

// execute runs the pipeline and settles the books afterwards.
func (o *Orchestrator) execute(opp *types.Opportunity) {
	defer o.wg.Done()
	defer func() {
		<-o.slots
		o.mu.Lock()
		o.exposureUSD -= opp.BorrowNotionalUSD
		ExposureGauge.Set(o.exposureUSD)
		o.mu.Unlock()
	}()

	ActiveExecutions.Inc()
	defer ActiveExecutions.Dec()

	ectx := o.cfg.Pipeline.Run(o.runCtx, opp)
	o.settle(ectx)

	if err := o.cfg.Store.SaveExecution(o.runCtx, ectx); err != nil {
		o.logger.Error("execution-archive-failed",
			zap.String("opportunity", opp.ID),
			zap.Error(err))
	}
}

// settle feeds the terminal outcome to the breaker and the stats.
func (o *Orchestrator) settle(ectx *pipeline.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch ectx.State {
	case pipeline.StateConfirmed:
		o.stats.Confirmed++
		if ectx.Request != nil {
			o.stats.TotalNetProfitUSD += ectx.Request.NetProfit
		}
		o.cfg.Breaker.RecordSuccess()
	case pipeline.StateFailed:
		o.stats.Failed++
		loss := o.realizedLoss(ectx)
		o.stats.TotalLossUSD += loss
		o.cfg.Breaker.RecordFailure(loss)
	case pipeline.StateRejected:
		o.stats.Rejected++
	}
}

// realizedLoss is the gas actually burned by a failed execution, in
// USD. Executions that never reached the network lose nothing.
func (o *Orchestrator) realizedLoss(ectx *pipeline.Context) float64 {
	if ectx.Result == nil || ectx.Request == nil || ectx.Result.GasUsed == 0 {
		return 0
	}

	wei := new(big.Int).Mul(ectx.Request.GasPrice, new(big.Int).SetUint64(ectx.Result.GasUsed))
	native := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(1e18))
	usd, _ := new(big.Float).Mul(native, big.NewFloat(o.cfg.NativeTokenPriceUSD)).Float64()

	return usd
}

// rejectAtGate publishes a rejection for an opportunity that never
// entered the pipeline. The event stream carries every outcome, gate
// rejections included.
func (o *Orchestrator) rejectAtGate(opp *types.Opportunity, execErr *types.ExecutionError) {
	o.mu.Lock()
	o.stats.Rejected++
	o.mu.Unlock()

	AdmissionsTotal.WithLabelValues(string(execErr.Code)).Inc()
	o.cfg.Bus.Publish(types.Event{
		Kind:          types.EventExecutionRejected,
		OpportunityID: opp.ID,
		Reason:        string(execErr.Code),
		At:            time.Now(),
	})
	o.logger.Info("opportunity-rejected-at-gate",
		zap.String("opportunity", opp.ID),
		zap.String("code", string(execErr.Code)))
}

// GetStats returns a snapshot of throughput counters.
func (o *Orchestrator) GetStats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()

	stats := o.stats
	stats.ActiveExecutions = len(o.slots)
	stats.CurrentExposureUSD = o.exposureUSD

	return stats
}
