package params

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/axionmev/flasharb/internal/testutil"
	"github.com/axionmev/flasharb/pkg/types"
)

func newTestBuilder(t *testing.T) (*Builder, *Registry) {
	t.Helper()

	registry, err := NewRegistry(zaptest.NewLogger(t))
	require.NoError(t, err)

	builder, err := NewBuilder(registry, zaptest.NewLogger(t))
	require.NoError(t, err)

	return builder, registry
}

func TestNewRegistryValidation(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "logger")
}

func TestRegistrySeedsStockProtocols(t *testing.T) {
	t.Parallel()

	_, registry := newTestBuilder(t)

	require.True(t, registry.Supported(types.DEXUniswapV2))
	require.True(t, registry.Supported(types.DEXUniswapV3))
	require.True(t, registry.Supported(types.DEXStableSwap))
	require.False(t, registry.Supported(types.DEXKind("bancor_v3")))
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	t.Parallel()

	_, registry := newTestBuilder(t)

	err := registry.Register(types.DEXUniswapV2, buildUniswapV2Step)
	require.Error(t, err)
	require.Contains(t, err.Error(), "already registered")
}

func TestRegisterValidatesInput(t *testing.T) {
	t.Parallel()

	_, registry := newTestBuilder(t)

	require.Error(t, registry.Register("", buildUniswapV2Step))
	require.Error(t, registry.Register(types.DEXKind("bancor_v3"), nil))
}

func TestRegisterOpensTheSet(t *testing.T) {
	t.Parallel()

	builder, registry := newTestBuilder(t)

	kind := types.DEXKind("bancor_v3")
	err := registry.Register(kind, func(step types.SwapStep) ([]byte, error) {
		return []byte{0xff}, nil
	})
	require.NoError(t, err)

	path := testutil.CreateTestPath(10_000)
	path.Steps[0].DEXKind = kind

	require.True(t, builder.Supported(path))

	calldata, err := builder.BuildCalldata(path, types.SourceBalancer, time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.NotEmpty(t, calldata)
}

func TestBuildCalldataPerSource(t *testing.T) {
	t.Parallel()

	builder, _ := newTestBuilder(t)
	path := testutil.CreateTestPath(10_000)
	deadline := time.Now().Add(time.Minute)

	sources := []types.FlashLoanSource{
		types.SourceBalancer,
		types.SourceDyDx,
		types.SourceAave,
		types.SourceHybridAaveFlashSwap,
		types.SourcePoolSpecific,
	}

	seen := make(map[string]bool)
	for _, source := range sources {
		calldata, err := builder.BuildCalldata(path, source, deadline)
		require.NoError(t, err, "source %s", source)
		require.Greater(t, len(calldata), 4)

		// Each source routes to a distinct entry point.
		selector := string(calldata[:4])
		require.False(t, seen[selector], "selector collision for %s", source)
		seen[selector] = true
	}
}

func TestBuildCalldataSelectorMatchesABI(t *testing.T) {
	t.Parallel()

	builder, _ := newTestBuilder(t)
	path := testutil.CreateTestPath(10_000)

	calldata, err := builder.BuildCalldata(path, types.SourceAave, time.Now().Add(time.Minute))
	require.NoError(t, err)

	method := builder.abi.Methods["executeAaveFlashLoan"]
	require.Equal(t, method.ID, calldata[:4])
}

func TestBuildCalldataRejectsUnknownSource(t *testing.T) {
	t.Parallel()

	builder, _ := newTestBuilder(t)

	_, err := builder.BuildCalldata(testutil.CreateTestPath(10_000), types.FlashLoanSource("maker"), time.Now())
	require.Error(t, err)
	require.Contains(t, err.Error(), "no executor entry point")
}

func TestBuildCalldataRejectsUnregisteredHop(t *testing.T) {
	t.Parallel()

	builder, _ := newTestBuilder(t)

	path := testutil.CreateTestPath(10_000)
	path.Steps[1].DEXKind = types.DEXKind("bancor_v3")

	require.False(t, builder.Supported(path))

	_, err := builder.BuildCalldata(path, types.SourceBalancer, time.Now().Add(time.Minute))
	require.Error(t, err)
	require.Contains(t, err.Error(), "no builder registered")
}

func TestUniswapV3StepRequiresFeeTier(t *testing.T) {
	t.Parallel()

	step := testutil.CreateTestPath(10_000).Steps[0]
	step.DEXKind = types.DEXUniswapV3
	step.FeeTier = 0

	_, err := buildUniswapV3Step(step)
	require.Error(t, err)
	require.Contains(t, err.Error(), "fee tier")
}

func TestStepFragmentsAreTagged(t *testing.T) {
	t.Parallel()

	step := testutil.CreateTestPath(10_000).Steps[0]

	v2, err := buildUniswapV2Step(step)
	require.NoError(t, err)
	require.Equal(t, tagUniswapV2, v2[0])

	step.FeeTier = 3000
	v3, err := buildUniswapV3Step(step)
	require.NoError(t, err)
	require.Equal(t, tagUniswapV3, v3[0])

	stable, err := buildStableSwapStep(step)
	require.NoError(t, err)
	require.Equal(t, tagStableSwap, stable[0])
}

func TestBuildCalldataValidatesPath(t *testing.T) {
	t.Parallel()

	builder, _ := newTestBuilder(t)

	_, err := builder.BuildCalldata(nil, types.SourceBalancer, time.Now())
	require.Error(t, err)

	path := testutil.CreateTestPath(10_000)
	path.Steps = nil
	_, err = builder.BuildCalldata(path, types.SourceBalancer, time.Now())
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid path")
}
