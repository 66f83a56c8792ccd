package executor

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/axionmev/flasharb/internal/flashloan"
	"github.com/axionmev/flasharb/internal/gas"
	"github.com/axionmev/flasharb/internal/nonce"
	"github.com/axionmev/flasharb/internal/params"
	"github.com/axionmev/flasharb/internal/profit"
	"github.com/axionmev/flasharb/internal/testutil"
	"github.com/axionmev/flasharb/pkg/chain"
	"github.com/axionmev/flasharb/pkg/types"
)

// mockBroadcaster simulates the node's transaction pool, receipt
// lookup, and call replay.
type mockBroadcaster struct {
	mu            sync.Mutex
	sendErr       error
	callErr       error // returned when a reverted tx is replayed
	sent          []*coretypes.Transaction
	receiptStatus uint64
	receiptGas    uint64
	pollsUntil    int // receipt lookups that fail before one succeeds
	neverConfirm  bool
}

func (m *mockBroadcaster) SendTransaction(_ context.Context, tx *coretypes.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, tx)

	return nil
}

func (m *mockBroadcaster) TransactionReceipt(_ context.Context, txHash common.Hash) (*coretypes.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.neverConfirm {
		return nil, errors.New("not found")
	}
	if m.pollsUntil > 0 {
		m.pollsUntil--
		return nil, errors.New("not found")
	}

	return &coretypes.Receipt{
		Status:      m.receiptStatus,
		GasUsed:     m.receiptGas,
		TxHash:      txHash,
		BlockNumber: big.NewInt(1024),
	}, nil
}

func (m *mockBroadcaster) CallContract(_ context.Context, _ ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return nil, m.callErr
}

type harness struct {
	executor *Executor
	nonces   *nonce.Manager
	quoter   *testutil.MockQuoter
	chain    *mockBroadcaster
}

func newHarness(t *testing.T, paper bool) *harness {
	t.Helper()

	logger := zaptest.NewLogger(t)

	liquidity := flashloan.NewLiquidityTable()
	liquidity.Set(testutil.USDC, testutil.USDCAmount(100_000_000))

	selector, err := flashloan.New(&flashloan.Config{
		LargeNotionalThresholdUSD: 10_000_000,
		LendingPool:               flashloan.NewLendingPoolProvider(liquidity),
		Logger:                    logger,
	})
	require.NoError(t, err)

	registry, err := params.NewRegistry(logger)
	require.NoError(t, err)
	builder, err := params.NewBuilder(registry, logger)
	require.NoError(t, err)

	quoter := testutil.NewMockQuoter()
	estimator, err := gas.New(&gas.Config{
		Quoter:           quoter,
		QuoteCache:       testutil.NewMapCache[*gas.Quote](),
		QuoteTTL:         time.Minute,
		SafetyBuffer:     1.2,
		PriorityFeeBoost: 1.5,
		BumpFactor:       1.25,
		NativePriceUSD:   3000,
		Logger:           logger,
	})
	require.NoError(t, err)

	validator, err := profit.New(&profit.Config{
		MinProfitAfterGasUSD: 1.0,
		MEVLeakFactor:        0.10,
		Logger:               logger,
	})
	require.NoError(t, err)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer, err := chain.NewSigner(hex.EncodeToString(crypto.FromECDSA(key)), 42161)
	require.NoError(t, err)

	nonces, err := nonce.New(&nonce.Config{
		Reader:  &testutil.MockNonceReader{Nonce: 7},
		Address: signer.Address(),
		Logger:  logger,
	})
	require.NoError(t, err)
	require.NoError(t, nonces.Init(context.Background()))

	bc := &mockBroadcaster{receiptStatus: coretypes.ReceiptStatusSuccessful, receiptGas: 450_000}

	exec, err := New(&Config{
		ExecutorContract:    common.HexToAddress("0x00000000000000000000000000000000000000E1"),
		ChainID:             42161,
		MaxGasPriceWei:      new(big.Int).Mul(big.NewInt(300), big.NewInt(1_000_000_000)),
		MaxGasCostPercent:   0.5,
		ConfirmPollInterval: 5 * time.Millisecond,
		Paper:               paper,
		Selector:            selector,
		Params:              builder,
		Gas:                 estimator,
		Profit:              validator,
		Nonces:              nonces,
		Signer:              signer,
		Client:              bc,
		Logger:              logger,
	})
	require.NoError(t, err)

	return &harness{executor: exec, nonces: nonces, quoter: quoter, chain: bc}
}

func TestBuildHappyPath(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false)
	opp := testutil.CreateTestOpportunity(10_000, 500)

	req, breakdown, err := h.executor.Build(context.Background(), opp, time.Now().Add(45*time.Second), 0)
	require.NoError(t, err)

	require.Equal(t, opp.ID, req.OpportunityID)
	require.Equal(t, types.SourceAave, req.Source)
	require.Equal(t, uint64(7), req.Nonce)
	require.NotEmpty(t, req.Calldata)
	require.Greater(t, req.NetProfit, 0.0)
	require.Equal(t, 1, h.nonces.InFlight())

	require.True(t, breakdown.LoanRepayable)
	require.True(t, breakdown.Profitable)
	// Aave premium on the $10k principal.
	require.InDelta(t, 9.0, breakdown.FlashLoanFee, 1e-9)
}

func TestBuildRejectsGasSpikeBeforeNonce(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false)
	h.quoter.SetGasPrice(new(big.Int).Mul(big.NewInt(400), big.NewInt(1_000_000_000)))

	_, _, err := h.executor.Build(context.Background(), testutil.CreateTestOpportunity(10_000, 500), time.Now().Add(time.Minute), 0)
	require.Error(t, err)

	var execErr *types.ExecutionError
	require.ErrorAs(t, err, &execErr)
	require.Equal(t, types.ErrCodeGasSpike, execErr.Code)

	// A rejected opportunity never consumes a nonce.
	require.Zero(t, h.nonces.InFlight())
}

func TestBuildRejectsGasCostRatio(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false)

	// ~$53 of gas against $60 gross blows the 50% ratio.
	_, _, err := h.executor.Build(context.Background(), testutil.CreateTestOpportunity(10_000, 60), time.Now().Add(time.Minute), 0)

	var execErr *types.ExecutionError
	require.ErrorAs(t, err, &execErr)
	require.Equal(t, types.ErrCodeGasCostTooHigh, execErr.Code)
	require.Zero(t, h.nonces.InFlight())
}

func TestBuildRejectsUnprofitable(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false)

	// $200k principal carries a $180 Aave premium that a $200 gross
	// cannot cover after gas.
	_, _, err := h.executor.Build(context.Background(), testutil.CreateTestOpportunity(200_000, 200), time.Now().Add(time.Minute), 0)

	var execErr *types.ExecutionError
	require.ErrorAs(t, err, &execErr)
	require.Equal(t, types.ErrCodeProfitBelowMin, execErr.Code)
	require.Zero(t, h.nonces.InFlight())
}

func TestBuildRejectsNilOpportunity(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false)

	_, _, err := h.executor.Build(context.Background(), nil, time.Now(), 0)

	var execErr *types.ExecutionError
	require.ErrorAs(t, err, &execErr)
	require.Equal(t, types.ErrCodeInvalidPath, execErr.Code)
}

func TestSubmitConfirmsSuccess(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false)
	h.chain.pollsUntil = 2

	req, _, err := h.executor.Build(context.Background(), testutil.CreateTestOpportunity(10_000, 500), time.Now().Add(time.Minute), 0)
	require.NoError(t, err)

	result, err := h.executor.Submit(context.Background(), req)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, uint64(450_000), result.GasUsed)

	// Broadcast nonces are burned: no longer in flight, not reusable.
	require.Zero(t, h.nonces.InFlight())
	require.Error(t, h.nonces.Release(req.Nonce))
}

func TestSubmitReleasesNonceWhenNeverBroadcast(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false)
	h.chain.sendErr = errors.New("dial tcp: connection refused")

	req, _, err := h.executor.Build(context.Background(), testutil.CreateTestOpportunity(10_000, 500), time.Now().Add(time.Minute), 0)
	require.NoError(t, err)

	_, err = h.executor.Submit(context.Background(), req)

	var execErr *types.ExecutionError
	require.ErrorAs(t, err, &execErr)
	require.Equal(t, types.ErrCodeRPCUnreachable, execErr.Code)
	require.False(t, execErr.Broadcast)

	// The freed nonce comes back on the next allocation.
	n, err := h.nonces.Allocate()
	require.NoError(t, err)
	require.Equal(t, req.Nonce, n)
}

func TestSubmitBurnsNonceOnAlreadyKnown(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false)
	h.chain.sendErr = errors.New("already known")

	req, _, err := h.executor.Build(context.Background(), testutil.CreateTestOpportunity(10_000, 500), time.Now().Add(time.Minute), 0)
	require.NoError(t, err)

	_, err = h.executor.Submit(context.Background(), req)

	var execErr *types.ExecutionError
	require.ErrorAs(t, err, &execErr)
	require.Equal(t, types.ErrCodeNonceConflict, execErr.Code)
	require.True(t, execErr.Broadcast)

	// The pool has the transaction: the nonce must not be reused.
	n, err := h.nonces.Allocate()
	require.NoError(t, err)
	require.NotEqual(t, req.Nonce, n)
}

func TestSubmitReportsRevert(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false)
	h.chain.receiptStatus = coretypes.ReceiptStatusFailed

	req, _, err := h.executor.Build(context.Background(), testutil.CreateTestOpportunity(10_000, 500), time.Now().Add(time.Minute), 0)
	require.NoError(t, err)

	result, err := h.executor.Submit(context.Background(), req)

	var execErr *types.ExecutionError
	require.ErrorAs(t, err, &execErr)
	require.Equal(t, types.ErrCodeReverted, execErr.Code)
	require.True(t, execErr.Broadcast)

	require.NotNil(t, result)
	require.False(t, result.Success)
}

func TestSubmitConfirmationTimeout(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false)
	h.chain.neverConfirm = true

	req, _, err := h.executor.Build(context.Background(), testutil.CreateTestOpportunity(10_000, 500), time.Now().Add(time.Minute), 0)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err = h.executor.Submit(ctx, req)

	var execErr *types.ExecutionError
	require.ErrorAs(t, err, &execErr)
	require.Equal(t, types.ErrCodeConfirmTimeout, execErr.Code)
	require.True(t, execErr.Broadcast)
}

func TestSubmitUsesDynamicFeesWhenBaseFeePresent(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false)
	h.quoter.Fee = big.NewInt(20_000_000_000)
	h.quoter.TipCap = big.NewInt(2_000_000_000)

	req, _, err := h.executor.Build(context.Background(), testutil.CreateTestOpportunity(10_000, 500), time.Now().Add(time.Minute), 0)
	require.NoError(t, err)
	require.NotNil(t, req.GasTipCap)

	_, err = h.executor.Submit(context.Background(), req)
	require.NoError(t, err)

	h.chain.mu.Lock()
	defer h.chain.mu.Unlock()
	require.Len(t, h.chain.sent, 1)
	require.Equal(t, uint8(coretypes.DynamicFeeTxType), h.chain.sent[0].Type())
}

func TestPaperModeSkipsBroadcast(t *testing.T) {
	t.Parallel()

	h := newHarness(t, true)

	req, _, err := h.executor.Build(context.Background(), testutil.CreateTestOpportunity(10_000, 500), time.Now().Add(time.Minute), 0)
	require.NoError(t, err)

	result, err := h.executor.Submit(context.Background(), req)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Zero(t, result.GasUsed)

	h.chain.mu.Lock()
	sent := len(h.chain.sent)
	h.chain.mu.Unlock()
	require.Zero(t, sent)

	// Paper trades hand their nonce straight back.
	n, err := h.nonces.Allocate()
	require.NoError(t, err)
	require.Equal(t, req.Nonce, n)
}

func TestBuildRepricesAboveEarlierAttempt(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false)
	opp := testutil.CreateTestOpportunity(10_000, 500)
	deadline := time.Now().Add(time.Minute)

	first, _, err := h.executor.Build(context.Background(), opp, deadline, 0)
	require.NoError(t, err)

	// A resubmission after an underpriced rejection rebuilds with the
	// bump count; the chain quote is unchanged, so only the factor can
	// raise the price. It must, or the replacement is rejected again.
	second, _, err := h.executor.Build(context.Background(), opp, deadline, 1)
	require.NoError(t, err)

	third, _, err := h.executor.Build(context.Background(), opp, deadline, 2)
	require.NoError(t, err)

	require.Equal(t, 1, second.GasPrice.Cmp(first.GasPrice))
	require.Equal(t, 1, third.GasPrice.Cmp(second.GasPrice))
}

func TestSubmitExtractsRevertReason(t *testing.T) {
	t.Parallel()

	h := newHarness(t, false)
	h.chain.receiptStatus = coretypes.ReceiptStatusFailed
	h.chain.callErr = errors.New("execution reverted: too little received")

	req, _, err := h.executor.Build(context.Background(), testutil.CreateTestOpportunity(10_000, 500), time.Now().Add(time.Minute), 0)
	require.NoError(t, err)

	result, err := h.executor.Submit(context.Background(), req)

	var execErr *types.ExecutionError
	require.ErrorAs(t, err, &execErr)
	require.Equal(t, types.ErrCodeSlippageExceeded, execErr.Code)

	require.NotNil(t, result)
	require.Equal(t, "too little received", result.RevertReason)
}

// fakeDataError mimics a node error carrying ABI-encoded revert data.
type fakeDataError struct {
	msg  string
	data interface{}
}

func (e *fakeDataError) Error() string          { return e.msg }
func (e *fakeDataError) ErrorData() interface{} { return e.data }

func TestRevertReasonFrom(t *testing.T) {
	t.Parallel()

	// Error("slippage"), ABI-encoded the way nodes return it.
	encoded := "0x08c379a0" +
		"0000000000000000000000000000000000000000000000000000000000000020" +
		"0000000000000000000000000000000000000000000000000000000000000008" +
		"736c697070616765000000000000000000000000000000000000000000000000"

	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "abi-encoded-data",
			err:  &fakeDataError{msg: "execution reverted", data: encoded},
			want: "slippage",
		},
		{
			name: "inline-message",
			err:  errors.New("execution reverted: insufficient output amount"),
			want: "insufficient output amount",
		},
		{
			name: "no-reason",
			err:  errors.New("execution reverted"),
			want: "",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tt.want, revertReasonFrom(tt.err))
		})
	}
}
