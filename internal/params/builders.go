package params

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/axionmev/flasharb/pkg/types"
)

// Step fragment layouts. Each fragment starts with a one-byte kind tag
// so the executor callback can dispatch without guessing at lengths.
const (
	tagUniswapV2  byte = 0x01
	tagUniswapV3  byte = 0x02
	tagStableSwap byte = 0x03
)

var (
	addressType = mustNewType("address")
	uint256Type = mustNewType("uint256")
	uint24Type  = mustNewType("uint24")

	v2StepArgs = abi.Arguments{
		{Name: "pool", Type: addressType},
		{Name: "tokenIn", Type: addressType},
		{Name: "tokenOut", Type: addressType},
		{Name: "amountIn", Type: uint256Type},
		{Name: "minOut", Type: uint256Type},
	}

	v3StepArgs = abi.Arguments{
		{Name: "pool", Type: addressType},
		{Name: "tokenIn", Type: addressType},
		{Name: "tokenOut", Type: addressType},
		{Name: "feeTier", Type: uint24Type},
		{Name: "amountIn", Type: uint256Type},
		{Name: "minOut", Type: uint256Type},
	}

	stableStepArgs = abi.Arguments{
		{Name: "pool", Type: addressType},
		{Name: "tokenIn", Type: addressType},
		{Name: "tokenOut", Type: addressType},
		{Name: "amountIn", Type: uint256Type},
		{Name: "minOut", Type: uint256Type},
	}
)

func mustNewType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(fmt.Sprintf("abi type %q: %v", t, err))
	}

	return typ
}

func buildUniswapV2Step(step types.SwapStep) ([]byte, error) {
	packed, err := v2StepArgs.Pack(
		step.Pool,
		step.TokenIn,
		step.TokenOut,
		step.AmountIn,
		step.MinOut,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to pack uniswap v2 step: %w", err)
	}

	return append([]byte{tagUniswapV2}, packed...), nil
}

func buildUniswapV3Step(step types.SwapStep) ([]byte, error) {
	if step.FeeTier == 0 {
		return nil, fmt.Errorf("uniswap v3 step requires a fee tier")
	}

	packed, err := v3StepArgs.Pack(
		step.Pool,
		step.TokenIn,
		step.TokenOut,
		big.NewInt(int64(step.FeeTier)),
		step.AmountIn,
		step.MinOut,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to pack uniswap v3 step: %w", err)
	}

	return append([]byte{tagUniswapV3}, packed...), nil
}

func buildStableSwapStep(step types.SwapStep) ([]byte, error) {
	packed, err := stableStepArgs.Pack(
		step.Pool,
		step.TokenIn,
		step.TokenOut,
		step.AmountIn,
		step.MinOut,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to pack stable swap step: %w", err)
	}

	return append([]byte{tagStableSwap}, packed...), nil
}
