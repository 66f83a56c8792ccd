package recovery

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/axionmev/flasharb/pkg/types"
)

func newTestPlanner(t *testing.T) *Planner {
	t.Helper()

	planner, err := NewPlanner(Config{
		MaxRetries:      3,
		BackoffBase:     500 * time.Millisecond,
		BackoffMax:      8 * time.Second,
		GasBumpFactor:   1.25,
		MaxGasBumps:     2,
		CongestionDelay: 15 * time.Second,
		Logger:          zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	return planner
}

func TestNewPlannerValidation(t *testing.T) {
	t.Parallel()

	base := Config{
		MaxRetries:      3,
		BackoffBase:     time.Second,
		BackoffMax:      8 * time.Second,
		GasBumpFactor:   1.25,
		CongestionDelay: time.Second,
		Logger:          zaptest.NewLogger(t),
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"nil logger", func(c *Config) { c.Logger = nil }},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }},
		{"zero backoff base", func(c *Config) { c.BackoffBase = 0 }},
		{"max below base", func(c *Config) { c.BackoffMax = time.Millisecond }},
		{"bump factor too small", func(c *Config) { c.GasBumpFactor = 1.0 }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := base
			tt.mutate(&cfg)

			_, err := NewPlanner(cfg)
			require.Error(t, err)
		})
	}
}

func TestClassifyTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code types.ErrorCode
		want Strategy
	}{
		{types.ErrCodeRPCTimeout, StrategyRetry},
		{types.ErrCodeRPCUnreachable, StrategyRetry},
		{types.ErrCodeNonceTooLow, StrategyResyncNonce},
		{types.ErrCodeNonceConflict, StrategyResyncNonce},
		{types.ErrCodeUnderpriced, StrategyAdjustGas},
		{types.ErrCodeConfirmTimeout, StrategyAdjustGas},
		{types.ErrCodeGasSpike, StrategyWaitAndRetry},
		{types.ErrCodeCongestion, StrategyWaitAndRetry},
		{types.ErrCodeReverted, StrategyEscalate},
		{types.ErrCodeSlippageExceeded, StrategyEscalate},
		{types.ErrCodeOutOfGas, StrategyEscalate},
		{types.ErrCodeTimeout, StrategyEscalate},
		{types.ErrCodeUnknown, StrategyEscalate},
	}

	for _, tt := range tests {
		tt := tt
		require.Equal(t, tt.want, Classify(tt.code), "code %s", tt.code)
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	t.Parallel()

	codes := []types.ErrorCode{
		types.ErrCodeRPCTimeout, types.ErrCodeNonceTooLow,
		types.ErrCodeUnderpriced, types.ErrCodeGasSpike,
		types.ErrCodeReverted, types.ErrCodeUnknown,
	}

	for i := 0; i < 1000; i++ {
		code := codes[i%len(codes)]
		require.Equal(t, Classify(code), Classify(code))
	}
}

func TestPlanBackoffDoublesAndCaps(t *testing.T) {
	t.Parallel()

	planner, err := NewPlanner(Config{
		MaxRetries:      10,
		BackoffBase:     500 * time.Millisecond,
		BackoffMax:      8 * time.Second,
		GasBumpFactor:   1.25,
		MaxGasBumps:     2,
		CongestionDelay: 15 * time.Second,
		Logger:          zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	execErr := types.NewExecutionError(types.ErrCodeRPCTimeout, "broadcast", "timeout", nil)

	wants := []time.Duration{
		500 * time.Millisecond, // attempt 1
		time.Second,            // attempt 2
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		8 * time.Second, // capped
	}
	for i, want := range wants {
		action := planner.Plan(execErr, i+1, 0)
		require.Equal(t, StrategyRetry, action.Strategy)
		require.Equal(t, want, action.Backoff, "attempt %d", i+1)
	}
}

func TestPlanGasBumpBounded(t *testing.T) {
	t.Parallel()

	planner := newTestPlanner(t)
	execErr := types.NewExecutionError(types.ErrCodeUnderpriced, "broadcast", "underpriced", nil)

	action := planner.Plan(execErr, 1, 0)
	require.Equal(t, StrategyAdjustGas, action.Strategy)
	require.True(t, action.BumpGas)

	action = planner.Plan(execErr, 1, 1)
	require.True(t, action.BumpGas)

	// Bump budget exhausted.
	action = planner.Plan(execErr, 1, 2)
	require.Equal(t, StrategyEscalate, action.Strategy)
	require.False(t, action.BumpGas)
}

func TestPlanCongestionUsesFixedDelay(t *testing.T) {
	t.Parallel()

	planner := newTestPlanner(t)
	execErr := types.NewExecutionError(types.ErrCodeGasSpike, "validate", "spike", nil)

	action := planner.Plan(execErr, 1, 0)
	require.Equal(t, StrategyWaitAndRetry, action.Strategy)
	require.Equal(t, 15*time.Second, action.Backoff)
}

func TestPlanEscalatesAfterRetryBudget(t *testing.T) {
	t.Parallel()

	planner := newTestPlanner(t)
	execErr := types.NewExecutionError(types.ErrCodeRPCTimeout, "broadcast", "timeout", nil)

	require.Equal(t, StrategyRetry, planner.Plan(execErr, 2, 0).Strategy)
	require.Equal(t, StrategyEscalate, planner.Plan(execErr, 3, 0).Strategy)
}

func TestPlanNeverRetriesValidationRejections(t *testing.T) {
	t.Parallel()

	planner := newTestPlanner(t)

	for _, code := range []types.ErrorCode{
		types.ErrCodeProfitBelowMin,
		types.ErrCodeGasCostTooHigh,
		types.ErrCodeCircuitBreakerOpen,
		types.ErrCodePositionTooLarge,
	} {
		execErr := types.NewExecutionError(code, "validate", "rejected", nil)
		require.Equal(t, StrategyEscalate, planner.Plan(execErr, 1, 0).Strategy, "code %s", code)
	}
}

func TestPlanNeverRetriesSlippage(t *testing.T) {
	t.Parallel()

	planner := newTestPlanner(t)
	execErr := types.NewExecutionError(types.ErrCodeSlippageExceeded, "confirm", "reverted: slippage", nil)

	action := planner.Plan(execErr, 1, 0)
	require.Equal(t, StrategyEscalate, action.Strategy)
}

func TestClassifyErrorSignatures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want types.ErrorCode
	}{
		{errors.New("nonce too low: next nonce 42, tx nonce 40"), types.ErrCodeNonceTooLow},
		{errors.New("already known"), types.ErrCodeNonceConflict},
		{errors.New("replacement transaction underpriced"), types.ErrCodeUnderpriced},
		{errors.New("transaction underpriced: tip needed 1 gwei"), types.ErrCodeUnderpriced},
		{errors.New("execution reverted"), types.ErrCodeReverted},
		{errors.New("dial tcp: connection refused"), types.ErrCodeRPCUnreachable},
		{errors.New("txpool is full"), types.ErrCodeCongestion},
		{context.DeadlineExceeded, types.ErrCodeRPCTimeout},
		{context.Canceled, types.ErrCodeTimeout},
		{errors.New("something novel"), types.ErrCodeUnknown},
	}

	for _, tt := range tests {
		tt := tt
		execErr := ClassifyError(tt.err, "broadcast")
		require.NotNil(t, execErr)
		require.Equal(t, tt.want, execErr.Code, "error %q", tt.err)
		require.Equal(t, "broadcast", execErr.Stage)
	}
}

func TestClassifyErrorPassesThroughClassified(t *testing.T) {
	t.Parallel()

	original := types.NewExecutionError(types.ErrCodeSlippageExceeded, "confirm", "reverted", nil)
	wrapped := fmt.Errorf("attempt failed: %w", original)

	got := ClassifyError(wrapped, "pipeline")
	require.Same(t, original, got)
}

func TestClassifyErrorNil(t *testing.T) {
	t.Parallel()

	require.Nil(t, ClassifyError(nil, "any"))
}

func TestClassifyRevert(t *testing.T) {
	t.Parallel()

	require.Equal(t, types.ErrCodeSlippageExceeded, ClassifyRevert("UniswapV2Router: INSUFFICIENT_OUTPUT_AMOUNT"))
	require.Equal(t, types.ErrCodeSlippageExceeded, ClassifyRevert("Too little received"))
	require.Equal(t, types.ErrCodeReverted, ClassifyRevert("Arithmetic overflow"))
	require.Equal(t, types.ErrCodeReverted, ClassifyRevert(""))
}
