package gas

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/axionmev/flasharb/internal/testutil"
)

func newTestEstimator(t *testing.T, quoter Quoter, ttl time.Duration) *Estimator {
	t.Helper()

	est, err := New(&Config{
		Quoter:           quoter,
		QuoteCache:       testutil.NewMapCache[*Quote](),
		QuoteTTL:         ttl,
		SafetyBuffer:     1.2,
		PriorityFeeBoost: 1.5,
		BumpFactor:       1.25,
		NativePriceUSD:   3000.0,
		Logger:           zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	return est
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	logger := zaptest.NewLogger(t)
	quoter := testutil.NewMockQuoter()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "nil-quoter", mutate: func(c *Config) { c.Quoter = nil }, wantErr: "quoter cannot be nil"},
		{name: "nil-cache", mutate: func(c *Config) { c.QuoteCache = nil }, wantErr: "quote cache cannot be nil"},
		{name: "nil-logger", mutate: func(c *Config) { c.Logger = nil }, wantErr: "logger cannot be nil"},
		{name: "buffer-below-one", mutate: func(c *Config) { c.SafetyBuffer = 0.9 }, wantErr: "safety buffer must be >= 1.0"},
		{name: "bump-factor-at-one", mutate: func(c *Config) { c.BumpFactor = 1.0 }, wantErr: "bump factor must be > 1.0"},
		{name: "zero-ttl", mutate: func(c *Config) { c.QuoteTTL = 0 }, wantErr: "quote TTL must be positive"},
		{name: "zero-native-price", mutate: func(c *Config) { c.NativePriceUSD = 0 }, wantErr: "native token price must be positive"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := &Config{
				Quoter:         quoter,
				QuoteCache:     testutil.NewMapCache[*Quote](),
				QuoteTTL:       time.Second,
				SafetyBuffer:   1.2,
				BumpFactor:     1.25,
				NativePriceUSD: 3000.0,
				Logger:         logger,
			}
			tt.mutate(cfg)

			_, err := New(cfg)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestEstimateHopCountModel(t *testing.T) {
	t.Parallel()

	est := newTestEstimator(t, testutil.NewMockQuoter(), time.Second)

	twoHop, err := est.Estimate(context.Background(), testutil.CreateTestPath(1_000), 0)
	require.NoError(t, err)

	threeHop, err := est.Estimate(context.Background(), testutil.CreateTriangularPath(1_000), 0)
	require.NoError(t, err)

	// base 100k + flash loan 150k + 120k/hop, then 1.2x buffer.
	require.Equal(t, uint64(float64(100_000+150_000+2*120_000)*1.2), twoHop.GasLimit)
	require.Equal(t, uint64(float64(100_000+150_000+3*120_000)*1.2), threeHop.GasLimit)
	require.Greater(t, threeHop.TotalCostUSD, twoHop.TotalCostUSD)
}

func TestEstimateIdempotentWithinQuoteTTL(t *testing.T) {
	t.Parallel()

	quoter := testutil.NewMockQuoter()
	est := newTestEstimator(t, quoter, time.Minute)
	path := testutil.CreateTestPath(1_000)

	first, err := est.Estimate(context.Background(), path, 0)
	require.NoError(t, err)

	// Price moves on the chain, but the cached quote is still live:
	// identical inputs must produce identical output.
	quoter.SetGasPrice(big.NewInt(90_000_000_000))

	second, err := est.Estimate(context.Background(), path, 0)
	require.NoError(t, err)

	require.Equal(t, first.GasLimit, second.GasLimit)
	require.Zero(t, first.GasPrice.Cmp(second.GasPrice))
	require.Equal(t, first.TotalCostUSD, second.TotalCostUSD)
	require.Equal(t, first.QuotedAt, second.QuotedAt)
}

func TestEstimateRequotesAfterRefresh(t *testing.T) {
	t.Parallel()

	quoter := testutil.NewMockQuoter()
	est := newTestEstimator(t, quoter, time.Minute)
	path := testutil.CreateTestPath(1_000)

	first, err := est.Estimate(context.Background(), path, 0)
	require.NoError(t, err)

	quoter.SetGasPrice(big.NewInt(90_000_000_000))
	est.Refresh()

	second, err := est.Estimate(context.Background(), path, 0)
	require.NoError(t, err)

	require.Equal(t, 1, second.GasPrice.Cmp(first.GasPrice))
}

func TestEstimateBumpCompoundsPrice(t *testing.T) {
	t.Parallel()

	quoter := testutil.NewMockQuoter() // flat 30 gwei legacy quote
	est := newTestEstimator(t, quoter, time.Minute)
	path := testutil.CreateTestPath(1_000)

	base, err := est.Estimate(context.Background(), path, 0)
	require.NoError(t, err)

	once, err := est.Estimate(context.Background(), path, 1)
	require.NoError(t, err)

	twice, err := est.Estimate(context.Background(), path, 2)
	require.NoError(t, err)

	// Each bump strictly raises the price even though the chain quote
	// never moved: 30 -> 37.5 -> 46.875 gwei at factor 1.25.
	require.Equal(t, 1, once.GasPrice.Cmp(base.GasPrice))
	require.Equal(t, 1, twice.GasPrice.Cmp(once.GasPrice))
	require.Zero(t, once.GasPrice.Cmp(big.NewInt(37_500_000_000)))
	require.Zero(t, twice.GasPrice.Cmp(big.NewInt(46_875_000_000)))

	// The cached quote stays unbumped.
	again, err := est.Estimate(context.Background(), path, 0)
	require.NoError(t, err)
	require.Zero(t, again.GasPrice.Cmp(base.GasPrice))
}

func TestEstimateBumpScalesTip(t *testing.T) {
	t.Parallel()

	quoter := testutil.NewMockQuoter()
	quoter.Fee = big.NewInt(20_000_000_000)
	quoter.TipCap = big.NewInt(2_000_000_000)
	est := newTestEstimator(t, quoter, time.Minute)
	path := testutil.CreateTestPath(1_000)

	base, err := est.Estimate(context.Background(), path, 0)
	require.NoError(t, err)

	bumped, err := est.Estimate(context.Background(), path, 1)
	require.NoError(t, err)

	// A fee-cap-only bump loses replacement races on the tip; both
	// components must rise.
	require.Equal(t, 1, bumped.GasPrice.Cmp(base.GasPrice))
	require.Equal(t, 1, bumped.GasTipCap.Cmp(base.GasTipCap))
}

func TestEstimateEIP1559Pricing(t *testing.T) {
	t.Parallel()

	quoter := testutil.NewMockQuoter()
	quoter.Fee = big.NewInt(20_000_000_000)   // 20 gwei base fee
	quoter.TipCap = big.NewInt(2_000_000_000) // 2 gwei suggested tip
	est := newTestEstimator(t, quoter, time.Second)

	e, err := est.Estimate(context.Background(), testutil.CreateTestPath(1_000), 0)
	require.NoError(t, err)

	// fee cap = 2*baseFee + 1.5*tip
	wantTip := big.NewInt(3_000_000_000)
	wantCap := big.NewInt(43_000_000_000)
	require.Zero(t, e.GasTipCap.Cmp(wantTip))
	require.Zero(t, e.GasPrice.Cmp(wantCap))
}

func TestEstimateQuoteError(t *testing.T) {
	t.Parallel()

	quoter := testutil.NewMockQuoter()
	quoter.QuoteErr = context.DeadlineExceeded
	est := newTestEstimator(t, quoter, time.Second)

	_, err := est.Estimate(context.Background(), testutil.CreateTestPath(1_000), 0)
	require.Error(t, err)
}
