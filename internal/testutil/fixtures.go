package testutil

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/axionmev/flasharb/pkg/types"
)

// Well-known test token and pool addresses.
var (
	USDC = common.HexToAddress("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174")
	WETH = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	DAI  = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")

	PoolA = common.HexToAddress("0x0000000000000000000000000000000000000A01")
	PoolB = common.HexToAddress("0x0000000000000000000000000000000000000A02")
	PoolC = common.HexToAddress("0x0000000000000000000000000000000000000A03")
)

// USDCAmount converts whole USDC into 6-decimal base units.
func USDCAmount(amount int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(amount), big.NewInt(1_000_000))
}

// CreateTestPath builds a valid 2-hop USDC→WETH→USDC path borrowing
// the given amount of USDC.
func CreateTestPath(borrowUSDC int64) *types.ArbitragePath {
	borrow := USDCAmount(borrowUSDC)

	return &types.ArbitragePath{
		BorrowToken:    USDC,
		BorrowAmount:   borrow,
		MinFinalAmount: new(big.Int).Add(borrow, USDCAmount(1)),
		Steps: []types.SwapStep{
			{
				Pool:     PoolA,
				TokenIn:  USDC,
				TokenOut: WETH,
				DEXKind:  types.DEXUniswapV2,
				AmountIn: borrow,
				MinOut:   big.NewInt(1),
			},
			{
				Pool:     PoolB,
				TokenIn:  WETH,
				TokenOut: USDC,
				DEXKind:  types.DEXUniswapV3,
				FeeTier:  3000,
				AmountIn: big.NewInt(1),
				MinOut:   new(big.Int).Add(borrow, USDCAmount(1)),
			},
		},
	}
}

// CreateTestOpportunity wraps a 2-hop path in an opportunity with the
// given expected gross profit.
func CreateTestOpportunity(borrowUSDC int64, grossProfitUSD float64) *types.Opportunity {
	opp, err := types.NewOpportunity(CreateTestPath(borrowUSDC), grossProfitUSD, float64(borrowUSDC), 19_000_000)
	if err != nil {
		panic(err)
	}

	return opp
}

// CreateTriangularPath builds a 3-hop USDC→WETH→DAI→USDC path.
func CreateTriangularPath(borrowUSDC int64) *types.ArbitragePath {
	borrow := USDCAmount(borrowUSDC)

	return &types.ArbitragePath{
		BorrowToken:    USDC,
		BorrowAmount:   borrow,
		MinFinalAmount: new(big.Int).Add(borrow, USDCAmount(1)),
		Steps: []types.SwapStep{
			{
				Pool:     PoolA,
				TokenIn:  USDC,
				TokenOut: WETH,
				DEXKind:  types.DEXUniswapV3,
				FeeTier:  500,
				AmountIn: borrow,
				MinOut:   big.NewInt(1),
			},
			{
				Pool:     PoolB,
				TokenIn:  WETH,
				TokenOut: DAI,
				DEXKind:  types.DEXUniswapV2,
				AmountIn: big.NewInt(1),
				MinOut:   big.NewInt(1),
			},
			{
				Pool:     PoolC,
				TokenIn:  DAI,
				TokenOut: USDC,
				DEXKind:  types.DEXStableSwap,
				AmountIn: big.NewInt(1),
				MinOut:   new(big.Int).Add(borrow, USDCAmount(1)),
			},
		},
	}
}
