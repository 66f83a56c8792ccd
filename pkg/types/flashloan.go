package types

// FlashLoanSource identifies where borrowed capital comes from.
type FlashLoanSource string

const (
	// SourceBalancer is a Balancer-style vault flash loan. Zero fee.
	SourceBalancer FlashLoanSource = "balancer"

	// SourceDyDx is a dYdX-style peer-to-pool loan. Zero fee, but only
	// for the handful of assets the venue actually holds.
	SourceDyDx FlashLoanSource = "dydx"

	// SourceHybridAaveFlashSwap borrows size from an Aave-style lending
	// pool while routing the swap leg through a zero-fee AMM flash-swap
	// callback, so large notionals pay only the lending premium.
	SourceHybridAaveFlashSwap FlashLoanSource = "hybrid_aave_flash_swap"

	// SourceAave is the universal lending-pool fallback with its
	// standard premium.
	SourceAave FlashLoanSource = "aave"

	// SourcePoolSpecific is a flash loan taken directly from one of the
	// path's own pools; the fee is whatever that pool charges.
	SourcePoolSpecific FlashLoanSource = "pool_specific"
)

// AaveFlashLoanFeeRate is the standard Aave premium (0.09%).
const AaveFlashLoanFeeRate = 0.0009

// FeeRate returns the source's flash-loan premium as a fraction of the
// borrowed amount. Pool-specific fees vary by pool and are returned as
// zero here; callers quoting a pool-specific loan must ask the pool.
func (s FlashLoanSource) FeeRate() float64 {
	switch s {
	case SourceAave, SourceHybridAaveFlashSwap:
		// The hybrid mode's swap leg is free; only the lending premium
		// on the borrowed principal remains.
		return AaveFlashLoanFeeRate
	default:
		return 0
	}
}
