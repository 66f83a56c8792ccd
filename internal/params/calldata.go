package params

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"go.uber.org/zap"

	"github.com/axionmev/flasharb/pkg/types"
)

// executorABI covers the engine-side entry points of the arbitrage
// executor contract. One entry point per flash-loan source; each takes
// the borrowed asset, principal, encoded step fragments, the minimum
// acceptable final amount, and a deadline after which the contract
// reverts.
const executorABI = `[
	{"name":"executeBalancerFlashLoan","type":"function","inputs":[
		{"name":"asset","type":"address"},
		{"name":"amount","type":"uint256"},
		{"name":"steps","type":"bytes[]"},
		{"name":"minFinalAmount","type":"uint256"},
		{"name":"deadline","type":"uint256"}]},
	{"name":"executeDyDxFlashLoan","type":"function","inputs":[
		{"name":"asset","type":"address"},
		{"name":"amount","type":"uint256"},
		{"name":"steps","type":"bytes[]"},
		{"name":"minFinalAmount","type":"uint256"},
		{"name":"deadline","type":"uint256"}]},
	{"name":"executeAaveFlashLoan","type":"function","inputs":[
		{"name":"asset","type":"address"},
		{"name":"amount","type":"uint256"},
		{"name":"steps","type":"bytes[]"},
		{"name":"minFinalAmount","type":"uint256"},
		{"name":"deadline","type":"uint256"}]},
	{"name":"executeHybridFlashSwap","type":"function","inputs":[
		{"name":"asset","type":"address"},
		{"name":"amount","type":"uint256"},
		{"name":"steps","type":"bytes[]"},
		{"name":"minFinalAmount","type":"uint256"},
		{"name":"deadline","type":"uint256"}]},
	{"name":"executePoolFlashLoan","type":"function","inputs":[
		{"name":"asset","type":"address"},
		{"name":"amount","type":"uint256"},
		{"name":"steps","type":"bytes[]"},
		{"name":"minFinalAmount","type":"uint256"},
		{"name":"deadline","type":"uint256"}]}
]`

var sourceMethods = map[types.FlashLoanSource]string{
	types.SourceBalancer:            "executeBalancerFlashLoan",
	types.SourceDyDx:                "executeDyDxFlashLoan",
	types.SourceAave:                "executeAaveFlashLoan",
	types.SourceHybridAaveFlashSwap: "executeHybridFlashSwap",
	types.SourcePoolSpecific:        "executePoolFlashLoan",
}

// Builder turns validated arbitrage paths into executor-contract
// calldata.
type Builder struct {
	registry *Registry
	abi      abi.ABI
	logger   *zap.Logger
}

// NewBuilder creates a calldata builder on top of a protocol registry.
func NewBuilder(registry *Registry, logger *zap.Logger) (*Builder, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	parsed, err := abi.JSON(strings.NewReader(executorABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse executor abi: %w", err)
	}

	return &Builder{
		registry: registry,
		abi:      parsed,
		logger:   logger,
	}, nil
}

// Supported reports whether every hop of the path has a registered
// protocol builder.
func (b *Builder) Supported(path *types.ArbitragePath) bool {
	for _, step := range path.Steps {
		if !b.registry.Supported(step.DEXKind) {
			return false
		}
	}

	return true
}

// BuildCalldata encodes the full executor call for a path and a chosen
// flash-loan source. Each hop is encoded by its protocol builder; a hop
// with no registered builder fails the whole build.
func (b *Builder) BuildCalldata(
	path *types.ArbitragePath,
	source types.FlashLoanSource,
	deadline time.Time,
) ([]byte, error) {
	if path == nil {
		return nil, fmt.Errorf("path cannot be nil")
	}
	if err := path.Validate(); err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	method, ok := sourceMethods[source]
	if !ok {
		return nil, fmt.Errorf("no executor entry point for source %q", source)
	}

	steps := make([][]byte, 0, len(path.Steps))
	for i, step := range path.Steps {
		builder, err := b.registry.builderFor(step.DEXKind)
		if err != nil {
			return nil, fmt.Errorf("hop %d: %w", i, err)
		}

		encoded, err := builder(step)
		if err != nil {
			return nil, fmt.Errorf("hop %d: %w", i, err)
		}

		steps = append(steps, encoded)
	}

	calldata, err := b.abi.Pack(
		method,
		path.BorrowToken,
		path.BorrowAmount,
		steps,
		path.MinFinalAmount,
		big.NewInt(deadline.Unix()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	CalldataBuiltTotal.WithLabelValues(string(source)).Inc()
	b.logger.Debug("calldata-built",
		zap.String("source", string(source)),
		zap.Int("hops", len(path.Steps)),
		zap.Int("bytes", len(calldata)))

	return calldata, nil
}
