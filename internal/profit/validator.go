package profit

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/axionmev/flasharb/pkg/types"
)

// Breakdown is a full profit decomposition for one execution. All
// values are USD.
type Breakdown struct {
	Gross         float64
	GasCost       float64
	FlashLoanFee  float64
	MEVRisk       float64
	Net           float64
	Margin        float64 // net as a fraction of gross
	LoanRepayable bool
	Profitable    bool
}

// Validator recomputes net profit and enforces the minimum threshold.
// It is a pure calculator: the same inputs always produce the same
// breakdown, so it serves both pre-submission gating and
// post-confirmation reconciliation against actual gas used.
type Validator struct {
	minProfitUSD  float64
	mevLeakFactor float64
	logger        *zap.Logger
}

// Config holds validator configuration.
type Config struct {
	MinProfitAfterGasUSD float64
	MEVLeakFactor        float64 // fraction of post-gas profit assumed lost to MEV
	Logger               *zap.Logger
}

// New creates a profit validator.
func New(cfg *Config) (*Validator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.MEVLeakFactor < 0 || cfg.MEVLeakFactor >= 1.0 {
		return nil, fmt.Errorf("MEV leak factor must be in [0, 1.0)")
	}

	return &Validator{
		minProfitUSD:  cfg.MinProfitAfterGasUSD,
		mevLeakFactor: cfg.MEVLeakFactor,
		logger:        cfg.Logger,
	}, nil
}

// Evaluate decomposes profit: gross output minus gas, flash-loan
// premium on the borrowed principal, and an MEV leakage reserve taken
// from whatever survives gas.
func (v *Validator) Evaluate(grossUSD, gasCostUSD, principalUSD, feeRate float64) Breakdown {
	flashFee := principalUSD * feeRate
	postGas := grossUSD - gasCostUSD
	mevRisk := math.Max(postGas, 0) * v.mevLeakFactor
	net := postGas - flashFee - mevRisk

	margin := 0.0
	if grossUSD > 0 {
		margin = net / grossUSD
	}

	return Breakdown{
		Gross:         grossUSD,
		GasCost:       gasCostUSD,
		FlashLoanFee:  flashFee,
		MEVRisk:       mevRisk,
		Net:           net,
		Margin:        margin,
		LoanRepayable: grossUSD >= gasCostUSD+flashFee,
		Profitable:    net >= v.minProfitUSD,
	}
}

// Validate gates an execution: returns the net profit, or a
// classified rejection when it falls below the configured minimum or
// the loan could not be repaid.
func (v *Validator) Validate(grossUSD, gasCostUSD, principalUSD, feeRate float64) (float64, error) {
	b := v.Evaluate(grossUSD, gasCostUSD, principalUSD, feeRate)

	if !b.LoanRepayable {
		RejectionsTotal.WithLabelValues("loan_not_repayable").Inc()
		return b.Net, types.NewExecutionError(types.ErrCodeProfitBelowMin, "profit-validation",
			fmt.Sprintf("gross $%.2f cannot repay gas $%.2f + premium $%.2f", grossUSD, gasCostUSD, b.FlashLoanFee), nil)
	}

	if !b.Profitable {
		RejectionsTotal.WithLabelValues("below_minimum").Inc()
		v.logger.Debug("profit-below-minimum",
			zap.Float64("net-usd", b.Net),
			zap.Float64("min-usd", v.minProfitUSD))

		return b.Net, types.NewExecutionError(types.ErrCodeProfitBelowMin, "profit-validation",
			fmt.Sprintf("net profit $%.2f below minimum $%.2f", b.Net, v.minProfitUSD), nil)
	}

	ValidationsTotal.Inc()

	return b.Net, nil
}

// Reconcile compares a pre-submission forecast against the realized
// outcome and returns the prediction error as a fraction of the
// forecast. Feeds the health monitor's accuracy tracking.
func (v *Validator) Reconcile(forecast Breakdown, actualGasUSD float64) float64 {
	realized := v.Evaluate(forecast.Gross, actualGasUSD, 0, 0)
	realized.FlashLoanFee = forecast.FlashLoanFee
	realized.Net -= forecast.FlashLoanFee

	if forecast.Net == 0 {
		return 0
	}

	drift := (realized.Net - forecast.Net) / math.Abs(forecast.Net)
	PredictionDrift.Observe(drift)

	return drift
}
