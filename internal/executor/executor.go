// Package executor builds, signs, and broadcasts arbitrage
// transactions. Build is the gated assembly line: source selection,
// gas and profit gates, calldata, then nonce allocation last so a
// rejected opportunity never consumes a nonce.
package executor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"github.com/axionmev/flasharb/internal/flashloan"
	"github.com/axionmev/flasharb/internal/gas"
	"github.com/axionmev/flasharb/internal/nonce"
	"github.com/axionmev/flasharb/internal/params"
	"github.com/axionmev/flasharb/internal/profit"
	"github.com/axionmev/flasharb/internal/recovery"
	"github.com/axionmev/flasharb/pkg/types"
)

// Broadcaster submits signed transactions, reads receipts, and replays
// calls. The chain client satisfies it; tests substitute a fake.
type Broadcaster interface {
	SendTransaction(ctx context.Context, tx *coretypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*coretypes.Receipt, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// HealthRecorder receives per-stage outcomes. Optional; nil disables
// recording.
type HealthRecorder interface {
	Record(component string, success bool, latency time.Duration)
}

// TxSigner signs transactions for the engine wallet.
type TxSigner interface {
	Address() common.Address
	SignTx(tx *coretypes.Transaction) (*coretypes.Transaction, error)
}

// Config holds executor configuration.
type Config struct {
	ExecutorContract    common.Address
	ChainID             int64
	MaxGasPriceWei      *big.Int
	MaxGasCostPercent   float64 // max gas cost as a fraction of gross profit
	ConfirmPollInterval time.Duration
	Paper               bool // build and sign but never broadcast

	Selector *flashloan.Selector
	Params   *params.Builder
	Gas      *gas.Estimator
	Profit   *profit.Validator
	Nonces   *nonce.Manager
	Signer   TxSigner
	Client   Broadcaster
	Health   HealthRecorder
	Logger   *zap.Logger
}

// Executor assembles and submits transactions for validated
// opportunities.
type Executor struct {
	cfg    Config
	logger *zap.Logger
}

// New creates a transaction executor.
func New(cfg *Config) (*Executor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Selector == nil {
		return nil, fmt.Errorf("flash-loan selector cannot be nil")
	}
	if cfg.Params == nil {
		return nil, fmt.Errorf("params builder cannot be nil")
	}
	if cfg.Gas == nil {
		return nil, fmt.Errorf("gas estimator cannot be nil")
	}
	if cfg.Profit == nil {
		return nil, fmt.Errorf("profit validator cannot be nil")
	}
	if cfg.Nonces == nil {
		return nil, fmt.Errorf("nonce manager cannot be nil")
	}
	if cfg.Signer == nil {
		return nil, fmt.Errorf("signer cannot be nil")
	}
	if cfg.Client == nil && !cfg.Paper {
		return nil, fmt.Errorf("chain client cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.MaxGasPriceWei == nil || cfg.MaxGasPriceWei.Sign() <= 0 {
		return nil, fmt.Errorf("max gas price must be positive")
	}
	if cfg.MaxGasCostPercent <= 0 || cfg.MaxGasCostPercent > 1.0 {
		return nil, fmt.Errorf("max gas cost percent must be in (0, 1.0]")
	}
	if cfg.ConfirmPollInterval <= 0 {
		return nil, fmt.Errorf("confirm poll interval must be positive")
	}

	return &Executor{cfg: *cfg, logger: cfg.Logger}, nil
}

// Build assembles a ready-to-sign request. Gate order matters: every
// check that can reject runs before the nonce is allocated, and the
// nonce is the very last resource taken. gasBumps prices the request
// above the previous attempt when a replacement is needed.
func (e *Executor) Build(ctx context.Context, opp *types.Opportunity, deadline time.Time, gasBumps int) (*types.TransactionRequest, *profit.Breakdown, error) {
	if opp == nil || opp.Path == nil {
		return nil, nil, types.NewExecutionError(types.ErrCodeInvalidPath, "build", "nil opportunity", nil)
	}

	path := opp.Path

	source, err := e.cfg.Selector.Select(path.BorrowToken, path.BorrowAmount, opp.BorrowNotionalUSD)
	if err != nil {
		return nil, nil, recovery.ClassifyError(err, "source-selection")
	}

	gasStart := time.Now()
	est, err := e.cfg.Gas.Estimate(ctx, path, gasBumps)
	e.record("gas-estimator", err == nil, gasStart)
	if err != nil {
		return nil, nil, recovery.ClassifyError(err, "gas-estimation")
	}

	if est.GasPrice.Cmp(e.cfg.MaxGasPriceWei) > 0 {
		GasGateRejectionsTotal.WithLabelValues("price_cap").Inc()
		return nil, nil, types.NewExecutionError(types.ErrCodeGasSpike, "gas-gate",
			fmt.Sprintf("gas price %s wei above cap %s", est.GasPrice, e.cfg.MaxGasPriceWei), nil)
	}

	if opp.ExpectedGrossProfit > 0 && est.TotalCostUSD > e.cfg.MaxGasCostPercent*opp.ExpectedGrossProfit {
		GasGateRejectionsTotal.WithLabelValues("cost_ratio").Inc()
		return nil, nil, types.NewExecutionError(types.ErrCodeGasCostTooHigh, "gas-gate",
			fmt.Sprintf("gas cost $%.2f exceeds %.0f%% of gross $%.2f",
				est.TotalCostUSD, e.cfg.MaxGasCostPercent*100, opp.ExpectedGrossProfit), nil)
	}

	feeRate := e.cfg.Selector.FeeRate(source, path.BorrowToken)
	net, err := e.cfg.Profit.Validate(opp.ExpectedGrossProfit, est.TotalCostUSD, opp.BorrowNotionalUSD, feeRate)
	if err != nil {
		return nil, nil, recovery.ClassifyError(err, "profit-validation")
	}
	breakdown := e.cfg.Profit.Evaluate(opp.ExpectedGrossProfit, est.TotalCostUSD, opp.BorrowNotionalUSD, feeRate)

	calldata, err := e.cfg.Params.BuildCalldata(path, source, deadline)
	if err != nil {
		return nil, nil, types.NewExecutionError(types.ErrCodeInvalidPath, "calldata", err.Error(), err)
	}

	n, err := e.cfg.Nonces.Allocate()
	if err != nil {
		return nil, nil, recovery.ClassifyError(err, "nonce-allocation")
	}

	req := &types.TransactionRequest{
		OpportunityID: opp.ID,
		To:            e.cfg.ExecutorContract,
		Calldata:      calldata,
		Nonce:         n,
		GasLimit:      est.GasLimit,
		GasPrice:      est.GasPrice,
		GasTipCap:     est.GasTipCap,
		Value:         big.NewInt(0),
		Source:        source,
		NetProfit:     net,
		Deadline:      deadline,
	}

	BuildsTotal.WithLabelValues(string(source)).Inc()
	e.logger.Info("transaction-built",
		zap.String("opportunity", opp.ID),
		zap.String("source", string(source)),
		zap.Uint64("nonce", n),
		zap.Float64("net-profit-usd", net))

	return req, &breakdown, nil
}

// Submit signs and broadcasts a built request, then waits for its
// receipt. The nonce is released only when the transaction provably
// never reached the network; once the send call returns ambiguously or
// successfully the nonce is burned.
func (e *Executor) Submit(ctx context.Context, req *types.TransactionRequest) (*types.TransactionResult, error) {
	if req == nil {
		return nil, types.NewExecutionError(types.ErrCodeInvalidPath, "submit", "nil request", nil)
	}

	tx := e.assembleTx(req)

	signed, err := e.cfg.Signer.SignTx(tx)
	if err != nil {
		e.releaseNonce(req.Nonce)
		return nil, types.NewExecutionError(types.ErrCodeUnknown, "signing", "failed to sign transaction", err)
	}

	if e.cfg.Paper {
		// Paper trades stop at the signed payload.
		e.releaseNonce(req.Nonce)
		SubmissionsTotal.WithLabelValues("paper").Inc()
		e.logger.Info("paper-trade-signed",
			zap.String("opportunity", req.OpportunityID),
			zap.String("tx-hash", signed.Hash().Hex()))

		return &types.TransactionResult{
			Success:     true,
			TxHash:      signed.Hash(),
			GasUsed:     0,
			ConfirmedAt: time.Now(),
		}, nil
	}

	sendStart := time.Now()
	err = e.cfg.Client.SendTransaction(ctx, signed)
	e.record("broadcast", err == nil, sendStart)
	if err != nil {
		execErr := recovery.ClassifyError(err, "broadcast")
		// "already known" means an earlier attempt did reach the pool.
		if execErr.Code == types.ErrCodeNonceConflict {
			execErr.Broadcast = true
			e.markBroadcast(req.Nonce)
		} else {
			e.releaseNonce(req.Nonce)
		}
		SubmissionsTotal.WithLabelValues("failed").Inc()

		return nil, execErr
	}

	e.markBroadcast(req.Nonce)
	SubmissionsTotal.WithLabelValues("broadcast").Inc()
	e.logger.Info("transaction-broadcast",
		zap.String("opportunity", req.OpportunityID),
		zap.String("tx-hash", signed.Hash().Hex()),
		zap.Uint64("nonce", req.Nonce))

	return e.awaitReceipt(ctx, req, signed.Hash())
}

// assembleTx maps the request onto the right transaction envelope.
func (e *Executor) assembleTx(req *types.TransactionRequest) *coretypes.Transaction {
	if req.GasTipCap != nil {
		return coretypes.NewTx(&coretypes.DynamicFeeTx{
			ChainID:   big.NewInt(e.cfg.ChainID),
			Nonce:     req.Nonce,
			GasTipCap: req.GasTipCap,
			GasFeeCap: req.GasPrice,
			Gas:       req.GasLimit,
			To:        &req.To,
			Value:     req.Value,
			Data:      req.Calldata,
		})
	}

	return coretypes.NewTx(&coretypes.LegacyTx{
		Nonce:    req.Nonce,
		GasPrice: req.GasPrice,
		Gas:      req.GasLimit,
		To:       &req.To,
		Value:    req.Value,
		Data:     req.Calldata,
	})
}

// awaitReceipt polls until the transaction lands or the context
// expires.
func (e *Executor) awaitReceipt(ctx context.Context, req *types.TransactionRequest, hash common.Hash) (*types.TransactionResult, error) {
	ticker := time.NewTicker(e.cfg.ConfirmPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			execErr := types.NewExecutionError(types.ErrCodeConfirmTimeout, "confirmation",
				fmt.Sprintf("no receipt for %s before deadline", hash.Hex()), ctx.Err())
			execErr.Broadcast = true

			return nil, execErr
		case <-ticker.C:
			receipt, err := e.cfg.Client.TransactionReceipt(ctx, hash)
			if err != nil {
				// Not found yet; keep polling.
				continue
			}

			result := &types.TransactionResult{
				TxHash:      hash,
				GasUsed:     receipt.GasUsed,
				ConfirmedAt: time.Now(),
			}

			if receipt.Status == coretypes.ReceiptStatusSuccessful {
				result.Success = true
				ConfirmationsTotal.WithLabelValues("success").Inc()
				e.logger.Info("transaction-confirmed",
					zap.String("tx-hash", hash.Hex()),
					zap.Uint64("gas-used", receipt.GasUsed))

				return result, nil
			}

			ConfirmationsTotal.WithLabelValues("reverted").Inc()
			result.RevertReason = e.replayRevert(ctx, req, receipt.BlockNumber)
			code := recovery.ClassifyRevert(result.RevertReason)
			execErr := types.NewExecutionError(code, "confirmation",
				fmt.Sprintf("transaction %s reverted", hash.Hex()), nil)
			execErr.Broadcast = true

			return result, execErr
		}
	}
}

// replayRevert re-executes a reverted transaction as a read-only call
// at the block it landed in. Receipts carry no reason; only the
// replayed call surfaces it. Best effort: an unreadable reason leaves
// the revert unrefined.
func (e *Executor) replayRevert(ctx context.Context, req *types.TransactionRequest, block *big.Int) string {
	msg := ethereum.CallMsg{
		From:  e.cfg.Signer.Address(),
		To:    &req.To,
		Gas:   req.GasLimit,
		Value: req.Value,
		Data:  req.Calldata,
	}
	if req.GasTipCap != nil {
		msg.GasFeeCap = req.GasPrice
		msg.GasTipCap = req.GasTipCap
	} else {
		msg.GasPrice = req.GasPrice
	}

	_, err := e.cfg.Client.CallContract(ctx, msg, block)
	if err == nil {
		return ""
	}

	reason := revertReasonFrom(err)
	if reason != "" {
		e.logger.Info("revert-reason-extracted",
			zap.String("opportunity", req.OpportunityID),
			zap.String("reason", reason))
	}

	return reason
}

// revertReasonFrom extracts a human-readable revert reason from a
// failed call. Nodes surface it either as ABI-encoded error data or
// inline in the error message.
func revertReasonFrom(err error) string {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if hexData, ok := dataErr.ErrorData().(string); ok {
			if data, decErr := hexutil.Decode(hexData); decErr == nil {
				if reason, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
					return reason
				}
			}
		}
	}

	const marker = "execution reverted: "
	if msg := err.Error(); strings.Contains(msg, marker) {
		return msg[strings.Index(msg, marker)+len(marker):]
	}

	return ""
}

func (e *Executor) record(component string, success bool, start time.Time) {
	if e.cfg.Health == nil {
		return
	}
	e.cfg.Health.Record(component, success, time.Since(start))
}

func (e *Executor) releaseNonce(n uint64) {
	if err := e.cfg.Nonces.Release(n); err != nil {
		e.logger.Warn("nonce-release-failed", zap.Uint64("nonce", n), zap.Error(err))
	}
}

func (e *Executor) markBroadcast(n uint64) {
	if err := e.cfg.Nonces.MarkBroadcast(n); err != nil {
		e.logger.Warn("nonce-mark-broadcast-failed", zap.Uint64("nonce", n), zap.Error(err))
	}
}
