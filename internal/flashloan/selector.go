package flashloan

import (
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/axionmev/flasharb/pkg/types"
)

// Selector chooses the cheapest funding source that can actually
// satisfy a borrow. Priority: hybrid Aave+flash-swap for large
// notionals, then zero-fee venues (vault, then peer-to-pool), then the
// universal lending pool with its premium.
type Selector struct {
	logger *zap.Logger

	largeNotionalThresholdUSD float64

	// Venues in their fixed priority roles.
	vault       Provider // Balancer-style, zero fee
	peerToPool  Provider // dYdX-style, zero fee, narrow asset set
	lendingPool Provider // Aave-style, universal, premium

	mu             sync.RWMutex
	hybridEligible map[common.Address]bool
	poolSpecific   map[common.Address]Provider
}

// Config holds selector configuration.
type Config struct {
	LargeNotionalThresholdUSD float64
	Vault                     Provider
	PeerToPool                Provider
	LendingPool               Provider
	Logger                    *zap.Logger
}

// New creates a flash-loan source selector.
func New(cfg *Config) (*Selector, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.LendingPool == nil {
		return nil, fmt.Errorf("lending pool provider cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.LargeNotionalThresholdUSD <= 0 {
		return nil, fmt.Errorf("large notional threshold must be positive")
	}

	return &Selector{
		logger:                    cfg.Logger,
		largeNotionalThresholdUSD: cfg.LargeNotionalThresholdUSD,
		vault:                     cfg.Vault,
		peerToPool:                cfg.PeerToPool,
		lendingPool:               cfg.LendingPool,
		hybridEligible:            make(map[common.Address]bool),
		poolSpecific:              make(map[common.Address]Provider),
	}, nil
}

// SetHybridEligible marks a token as executable through the nested
// zero-fee flash-swap callback. The eligibility set is configuration,
// not protocol: which tokens have a deep enough AMM leg is operational
// knowledge.
func (s *Selector) SetHybridEligible(token common.Address, eligible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hybridEligible[token] = eligible
}

// SeedHybridEligible marks every address in a comma-separated list as
// hybrid-eligible. Empty input is a no-op.
func (s *Selector) SeedHybridEligible(csv string) error {
	for _, raw := range strings.Split(csv, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		if !common.IsHexAddress(raw) {
			return fmt.Errorf("invalid hybrid-eligible token %q", raw)
		}

		s.SetHybridEligible(common.HexToAddress(raw), true)
	}

	return nil
}

// RegisterPoolSpecific registers a single-pool venue for a token.
func (s *Selector) RegisterPoolSpecific(token common.Address, provider Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.poolSpecific[token] = provider
}

// Select returns the funding source for a borrow. notionalUSD is the
// USD value of the borrow, used only for the large-notional gate.
func (s *Selector) Select(token common.Address, amount *big.Int, notionalUSD float64) (types.FlashLoanSource, error) {
	if amount == nil || amount.Sign() <= 0 {
		return "", fmt.Errorf("borrow amount must be positive")
	}

	largeNotional := notionalUSD >= s.largeNotionalThresholdUSD

	// Large borrows take lending-pool capacity but route the swap leg
	// through a zero-fee flash-swap callback, so the realized fee is
	// the lending premium alone rather than premium plus AMM fee.
	if largeNotional && s.isHybridEligible(token) && s.lendingPool.IsSupported(token, amount) {
		s.record(types.SourceHybridAaveFlashSwap)
		return types.SourceHybridAaveFlashSwap, nil
	}

	if s.vault != nil && s.vault.IsSupported(token, amount) {
		s.record(s.vault.Source())
		return s.vault.Source(), nil
	}

	if s.peerToPool != nil && s.peerToPool.IsSupported(token, amount) {
		s.record(s.peerToPool.Source())
		return s.peerToPool.Source(), nil
	}

	if s.lendingPool.IsSupported(token, amount) {
		s.record(types.SourceAave)
		return types.SourceAave, nil
	}

	if p := s.poolSpecificFor(token); p != nil && p.IsSupported(token, amount) {
		s.record(types.SourcePoolSpecific)
		return types.SourcePoolSpecific, nil
	}

	SelectionFailuresTotal.Inc()
	s.logger.Warn("no-flash-loan-source",
		zap.String("token", token.Hex()),
		zap.String("amount", amount.String()),
		zap.Float64("notional-usd", notionalUSD))

	return "", types.NewExecutionError(types.ErrCodeNoFlashLoanSource, "source-selection",
		fmt.Sprintf("no venue can fund %s of %s", amount.String(), token.Hex()), nil)
}

// FeeRate returns the premium the selected source will charge.
func (s *Selector) FeeRate(source types.FlashLoanSource, token common.Address) float64 {
	if source == types.SourcePoolSpecific {
		if p := s.poolSpecificFor(token); p != nil {
			return p.FeeRate()
		}
	}

	return source.FeeRate()
}

func (s *Selector) isHybridEligible(token common.Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hybridEligible[token]
}

func (s *Selector) poolSpecificFor(token common.Address) Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.poolSpecific[token]
}

func (s *Selector) record(source types.FlashLoanSource) {
	SelectionsTotal.WithLabelValues(string(source)).Inc()
}
