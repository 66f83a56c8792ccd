package types

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// DEXKind identifies the swap protocol family a pool belongs to.
// The set is open: the parameter builder registry dispatches on it,
// so adding a protocol means adding a constant and registering a builder.
type DEXKind string

const (
	DEXUniswapV2  DEXKind = "uniswap_v2"
	DEXUniswapV3  DEXKind = "uniswap_v3"
	DEXStableSwap DEXKind = "stable_swap"
)

// Path length limits. A single hop is a plain cross-DEX arb; anything
// beyond five hops burns more gas than any realistic spread recovers.
const (
	MinPathLength = 1
	MaxPathLength = 5
)

// SwapStep is one hop of an arbitrage path.
type SwapStep struct {
	Pool     common.Address
	TokenIn  common.Address
	TokenOut common.Address
	FeeTier  uint32 // basis points * 100 (e.g. 3000 = 0.3%), V3-style pools
	DEXKind  DEXKind
	AmountIn *big.Int // input amount in token base units
	MinOut   *big.Int // slippage floor for this hop
}

// ArbitragePath is an ordered hop sequence returning to the borrowed
// asset. Immutable once constructed; owned by the Opportunity that
// produced it.
type ArbitragePath struct {
	Steps          []SwapStep
	BorrowToken    common.Address
	BorrowAmount   *big.Int
	MinFinalAmount *big.Int
}

// Validate checks structural invariants: hop count bounds, positive
// amounts, and token continuity (output of hop i feeds hop i+1).
func (p *ArbitragePath) Validate() error {
	if len(p.Steps) < MinPathLength || len(p.Steps) > MaxPathLength {
		return fmt.Errorf("path length %d outside [%d, %d]", len(p.Steps), MinPathLength, MaxPathLength)
	}

	if p.BorrowAmount == nil || p.BorrowAmount.Sign() <= 0 {
		return fmt.Errorf("borrow amount must be positive")
	}

	if p.MinFinalAmount == nil || p.MinFinalAmount.Sign() <= 0 {
		return fmt.Errorf("min final amount must be positive")
	}

	if p.Steps[0].TokenIn != p.BorrowToken {
		return fmt.Errorf("first hop input %s does not match borrow token %s",
			p.Steps[0].TokenIn.Hex(), p.BorrowToken.Hex())
	}

	for i, step := range p.Steps {
		if step.Pool == (common.Address{}) {
			return fmt.Errorf("hop %d: zero pool address", i)
		}

		if step.TokenIn == step.TokenOut {
			return fmt.Errorf("hop %d: identical input and output token", i)
		}

		if step.MinOut == nil || step.MinOut.Sign() <= 0 {
			return fmt.Errorf("hop %d: min output must be positive", i)
		}

		if i < len(p.Steps)-1 && step.TokenOut != p.Steps[i+1].TokenIn {
			return fmt.Errorf("token continuity broken between hops %d and %d: %s != %s",
				i, i+1, step.TokenOut.Hex(), p.Steps[i+1].TokenIn.Hex())
		}
	}

	// A path must return to the borrowed asset so the loan can be repaid
	// inside the same transaction.
	last := p.Steps[len(p.Steps)-1]
	if last.TokenOut != p.BorrowToken {
		return fmt.Errorf("final hop output %s does not return to borrow token %s",
			last.TokenOut.Hex(), p.BorrowToken.Hex())
	}

	return nil
}

// HopCount returns the number of swaps in the path.
func (p *ArbitragePath) HopCount() int {
	return len(p.Steps)
}
