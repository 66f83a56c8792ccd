package flashloan

import (
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/axionmev/flasharb/pkg/types"
)

// Provider is one flash-loan venue. IsSupported must be checked before
// any fee comparison: a venue that cannot satisfy the requested size is
// excluded up front, not discovered at submission time.
type Provider interface {
	Source() types.FlashLoanSource
	FeeRate() float64
	IsSupported(token common.Address, amount *big.Int) bool
}

// LiquidityTable holds per-token available liquidity for a venue.
// Writers (the liquidity feed) swap entries under a lock; readers copy
// on read, so refreshes never block selection.
type LiquidityTable struct {
	mu        sync.RWMutex
	liquidity map[common.Address]*big.Int
}

// NewLiquidityTable creates an empty liquidity table.
func NewLiquidityTable() *LiquidityTable {
	return &LiquidityTable{
		liquidity: make(map[common.Address]*big.Int),
	}
}

// Set records the available liquidity for a token.
func (t *LiquidityTable) Set(token common.Address, available *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.liquidity[token] = new(big.Int).Set(available)
}

// SeedSnapshot applies an operator-supplied liquidity snapshot of the
// form "source:token:amount,source:token:amount" to the venue tables.
// Live liquidity feeds inject updates the same way at runtime.
func SeedSnapshot(snapshot string, tables map[types.FlashLoanSource]*LiquidityTable) error {
	if snapshot == "" {
		return nil
	}

	for _, entry := range strings.Split(snapshot, ",") {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) != 3 {
			return fmt.Errorf("malformed entry %q", entry)
		}

		table, ok := tables[types.FlashLoanSource(parts[0])]
		if !ok {
			return fmt.Errorf("unknown source %q", parts[0])
		}

		if !common.IsHexAddress(parts[1]) {
			return fmt.Errorf("invalid token address %q", parts[1])
		}

		amount, ok := new(big.Int).SetString(parts[2], 10)
		if !ok || amount.Sign() <= 0 {
			return fmt.Errorf("invalid amount %q", parts[2])
		}

		table.Set(common.HexToAddress(parts[1]), amount)
	}

	return nil
}

// Covers reports whether the venue holds at least amount of token.
func (t *LiquidityTable) Covers(token common.Address, amount *big.Int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	available, ok := t.liquidity[token]
	if !ok {
		return false
	}

	return available.Cmp(amount) >= 0
}

// VaultProvider is a Balancer-style vault: zero fee, supports whatever
// tokens the vault holds at sufficient depth.
type VaultProvider struct {
	source    types.FlashLoanSource
	liquidity *LiquidityTable
}

// NewVaultProvider creates a zero-fee vault venue.
func NewVaultProvider(source types.FlashLoanSource, liquidity *LiquidityTable) *VaultProvider {
	return &VaultProvider{source: source, liquidity: liquidity}
}

func (p *VaultProvider) Source() types.FlashLoanSource { return p.source }
func (p *VaultProvider) FeeRate() float64              { return 0 }

func (p *VaultProvider) IsSupported(token common.Address, amount *big.Int) bool {
	return p.liquidity.Covers(token, amount)
}

// LendingPoolProvider is an Aave-style pool: universal asset coverage
// at the standard premium, bounded only by pool depth.
type LendingPoolProvider struct {
	liquidity *LiquidityTable
}

// NewLendingPoolProvider creates the premium-bearing fallback venue.
func NewLendingPoolProvider(liquidity *LiquidityTable) *LendingPoolProvider {
	return &LendingPoolProvider{liquidity: liquidity}
}

func (p *LendingPoolProvider) Source() types.FlashLoanSource { return types.SourceAave }
func (p *LendingPoolProvider) FeeRate() float64              { return types.AaveFlashLoanFeeRate }

func (p *LendingPoolProvider) IsSupported(token common.Address, amount *big.Int) bool {
	return p.liquidity.Covers(token, amount)
}

// PoolSpecificProvider borrows from one of the path's own pools; the
// fee is whatever that pool charges. Used only when explicitly
// registered for a pool, never as part of the default priority chain.
type PoolSpecificProvider struct {
	pool      common.Address
	feeRate   float64
	liquidity *LiquidityTable
}

// NewPoolSpecificProvider creates a venue backed by a single pool.
func NewPoolSpecificProvider(pool common.Address, feeRate float64, liquidity *LiquidityTable) *PoolSpecificProvider {
	return &PoolSpecificProvider{pool: pool, feeRate: feeRate, liquidity: liquidity}
}

func (p *PoolSpecificProvider) Source() types.FlashLoanSource { return types.SourcePoolSpecific }
func (p *PoolSpecificProvider) FeeRate() float64              { return p.feeRate }

func (p *PoolSpecificProvider) IsSupported(token common.Address, amount *big.Int) bool {
	return p.liquidity.Covers(token, amount)
}
