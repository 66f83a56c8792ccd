package params

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/axionmev/flasharb/pkg/types"
)

// BuilderFunc encodes one swap step into the protocol-specific
// fragment the on-chain executor's callback decodes.
type BuilderFunc func(step types.SwapStep) ([]byte, error)

// Registry maps DEX kinds to their calldata builders. The set is
// open: supporting a new protocol means registering a builder, not
// touching dispatch.
type Registry struct {
	logger *zap.Logger

	mu       sync.RWMutex
	builders map[types.DEXKind]BuilderFunc
}

// NewRegistry creates a registry pre-seeded with the stock protocol
// builders.
func NewRegistry(logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	r := &Registry{
		logger:   logger,
		builders: make(map[types.DEXKind]BuilderFunc),
	}

	// Stock protocols.
	if err := r.Register(types.DEXUniswapV2, buildUniswapV2Step); err != nil {
		return nil, err
	}
	if err := r.Register(types.DEXUniswapV3, buildUniswapV3Step); err != nil {
		return nil, err
	}
	if err := r.Register(types.DEXStableSwap, buildStableSwapStep); err != nil {
		return nil, err
	}

	return r, nil
}

// Register adds a builder for a DEX kind. Registration is validated up
// front so a broken protocol plug-in fails at wiring time, not when an
// opportunity is already in flight.
func (r *Registry) Register(kind types.DEXKind, builder BuilderFunc) error {
	if kind == "" {
		return fmt.Errorf("dex kind cannot be empty")
	}
	if builder == nil {
		return fmt.Errorf("builder for %q cannot be nil", kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.builders[kind]; exists {
		return fmt.Errorf("builder for %q already registered", kind)
	}

	r.builders[kind] = builder
	BuildersRegistered.Inc()
	r.logger.Info("dex-builder-registered", zap.String("kind", string(kind)))

	return nil
}

// Supported reports whether a builder exists for the kind.
func (r *Registry) Supported(kind types.DEXKind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.builders[kind]

	return ok
}

// builderFor returns the builder for a kind.
func (r *Registry) builderFor(kind types.DEXKind) (BuilderFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	builder, ok := r.builders[kind]
	if !ok {
		return nil, fmt.Errorf("no builder registered for dex kind %q", kind)
	}

	return builder, nil
}
