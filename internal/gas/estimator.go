package gas

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/axionmev/flasharb/pkg/cache"
	"github.com/axionmev/flasharb/pkg/types"
)

// Gas cost model. Flash-loan initiation and repayment carry a fixed
// overhead on top of the base transaction cost; each hop adds an
// average swap cost.
const (
	baseTxGas       = 100_000
	flashLoanGas    = 150_000
	gasPerHop       = 120_000
	quoteCacheKey   = "gas-quote"
	weiPerNative    = 1e18
	baseFeeHeadroom = 2 // fee cap = headroom*baseFee + tip
)

// Quoter supplies live gas pricing from the chain.
type Quoter interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	BaseFee(ctx context.Context) (*big.Int, error)
}

// Estimate is a full cost forecast for one execution.
type Estimate struct {
	GasLimit     uint64
	GasPrice     *big.Int // legacy price or EIP-1559 fee cap, wei
	GasTipCap    *big.Int // nil when the chain has no base fee
	TotalCostWei *big.Int
	TotalCostUSD float64
	QuotedAt     time.Time
}

// Quote is the cached pricing snapshot shared across estimations. It
// always holds the unbumped chain quote; resubmission bumps are
// applied per estimate.
type Quote struct {
	GasPrice *big.Int // legacy price or EIP-1559 fee cap, wei
	TipCap   *big.Int // nil when the chain has no base fee
	At       time.Time
}

// Estimator forecasts total transaction cost for a path. Estimates are
// pure in path + bump count + quoted chain state: identical inputs
// against an unexpired quote produce identical results.
type Estimator struct {
	quoter       Quoter
	quoteCache   cache.Cache[*Quote]
	quoteTTL     time.Duration
	safetyBuffer float64
	tipBoost     float64
	bumpFactor   float64
	nativeUSD    float64
	logger       *zap.Logger
}

// Config holds estimator configuration.
type Config struct {
	Quoter           Quoter
	QuoteCache       cache.Cache[*Quote]
	QuoteTTL         time.Duration
	SafetyBuffer     float64 // multiplier on the raw gas limit
	PriorityFeeBoost float64 // multiplier on the suggested tip
	BumpFactor       float64 // price multiplier applied per resubmission bump
	NativePriceUSD   float64
	Logger           *zap.Logger
}

// New creates a gas estimator.
func New(cfg *Config) (*Estimator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Quoter == nil {
		return nil, fmt.Errorf("quoter cannot be nil")
	}
	if cfg.QuoteCache == nil {
		return nil, fmt.Errorf("quote cache cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.SafetyBuffer < 1.0 {
		return nil, fmt.Errorf("safety buffer must be >= 1.0")
	}
	if cfg.BumpFactor <= 1.0 {
		return nil, fmt.Errorf("bump factor must be > 1.0")
	}
	if cfg.QuoteTTL <= 0 {
		return nil, fmt.Errorf("quote TTL must be positive")
	}
	if cfg.NativePriceUSD <= 0 {
		return nil, fmt.Errorf("native token price must be positive")
	}

	tipBoost := cfg.PriorityFeeBoost
	if tipBoost < 1.0 {
		tipBoost = 1.0
	}

	return &Estimator{
		quoter:       cfg.Quoter,
		quoteCache:   cfg.QuoteCache,
		quoteTTL:     cfg.QuoteTTL,
		safetyBuffer: cfg.SafetyBuffer,
		tipBoost:     tipBoost,
		bumpFactor:   cfg.BumpFactor,
		nativeUSD:    cfg.NativePriceUSD,
		logger:       cfg.Logger,
	}, nil
}

// Estimate forecasts the total cost of executing a path. Quotes are
// cached with a short TTL; a stale quote is re-fetched, which is the
// submission-time re-quote the pipeline relies on. bumps is the number
// of price bumps already applied for this opportunity: attempt N is
// priced at quote * factor^N so a replacement beats the stuck
// transaction instead of repeating its price.
func (e *Estimator) Estimate(ctx context.Context, path *types.ArbitragePath, bumps int) (*Estimate, error) {
	start := time.Now()
	defer func() {
		EstimationDuration.Observe(time.Since(start).Seconds())
	}()

	gasLimit := e.gasLimitFor(path.HopCount())

	q, err := e.currentQuote(ctx)
	if err != nil {
		return nil, err
	}

	price := new(big.Int).Set(q.GasPrice)
	var tip *big.Int
	if q.TipCap != nil {
		tip = new(big.Int).Set(q.TipCap)
	}

	if bumps > 0 {
		mult := math.Pow(e.bumpFactor, float64(bumps))
		price = scaleWei(price, mult)
		if tip != nil {
			tip = scaleWei(tip, mult)
		}
	}

	totalCost := new(big.Int).Mul(price, new(big.Int).SetUint64(gasLimit))

	costNative := new(big.Float).Quo(new(big.Float).SetInt(totalCost), big.NewFloat(weiPerNative))
	costUSD, _ := new(big.Float).Mul(costNative, big.NewFloat(e.nativeUSD)).Float64()

	EstimatedGasLimit.Observe(float64(gasLimit))
	EstimatedCostUSD.Observe(costUSD)

	e.logger.Debug("gas-estimated",
		zap.Int("hops", path.HopCount()),
		zap.Uint64("gas-limit", gasLimit),
		zap.String("gas-price", price.String()),
		zap.Int("bumps", bumps),
		zap.Float64("cost-usd", costUSD))

	return &Estimate{
		GasLimit:     gasLimit,
		GasPrice:     price,
		GasTipCap:    tip,
		TotalCostWei: totalCost,
		TotalCostUSD: costUSD,
		QuotedAt:     q.At,
	}, nil
}

// Refresh discards the cached quote so the next estimate re-prices.
// Used by gas-bump recovery before resubmission.
func (e *Estimator) Refresh() {
	e.quoteCache.Delete(quoteCacheKey)
}

// gasLimitFor applies the hop-count cost model and the safety buffer.
func (e *Estimator) gasLimitFor(hops int) uint64 {
	raw := baseTxGas + flashLoanGas + gasPerHop*hops
	return uint64(float64(raw) * e.safetyBuffer)
}

// scaleWei multiplies a wei amount by a float factor.
func scaleWei(wei *big.Int, factor float64) *big.Int {
	scaled := new(big.Float).Mul(new(big.Float).SetInt(wei), big.NewFloat(factor))
	out, _ := scaled.Int(nil)

	return out
}

func (e *Estimator) currentQuote(ctx context.Context) (*Quote, error) {
	if q, ok := e.quoteCache.Get(quoteCacheKey); ok && time.Since(q.At) < e.quoteTTL {
		return q, nil
	}

	q, err := e.fetchQuote(ctx)
	if err != nil {
		return nil, err
	}

	e.quoteCache.Set(quoteCacheKey, q, e.quoteTTL)

	return q, nil
}

// fetchQuote prices against the chain: EIP-1559 when a base fee
// exists, legacy gas price otherwise.
func (e *Estimator) fetchQuote(ctx context.Context) (*Quote, error) {
	baseFee, err := e.quoter.BaseFee(ctx)
	if err != nil {
		return nil, fmt.Errorf("read base fee: %w", err)
	}

	now := time.Now()

	if baseFee == nil {
		price, err := e.quoter.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("suggest gas price: %w", err)
		}

		return &Quote{GasPrice: price, At: now}, nil
	}

	tip, err := e.quoter.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas tip cap: %w", err)
	}

	boostedTip := scaleWei(tip, e.tipBoost)

	feeCap := new(big.Int).Mul(baseFee, big.NewInt(baseFeeHeadroom))
	feeCap.Add(feeCap, boostedTip)

	return &Quote{GasPrice: feeCap, TipCap: boostedTip, At: now}, nil
}
