package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/axionmev/flasharb/internal/circuitbreaker"
	"github.com/axionmev/flasharb/internal/events"
	"github.com/axionmev/flasharb/internal/flashloan"
	"github.com/axionmev/flasharb/internal/gas"
	"github.com/axionmev/flasharb/internal/health"
	"github.com/axionmev/flasharb/internal/orchestrator"
	"github.com/axionmev/flasharb/internal/storage"
	"github.com/axionmev/flasharb/pkg/cache"
	"github.com/axionmev/flasharb/pkg/chain"
	"github.com/axionmev/flasharb/pkg/config"
	"github.com/axionmev/flasharb/pkg/healthprobe"
	"github.com/axionmev/flasharb/pkg/httpserver"
	"github.com/axionmev/flasharb/pkg/wallet"
)

// App wires the execution engine together and owns its lifecycle.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	chainClient   *chain.Client
	quoteCache    *cache.Ristretto[*gas.Quote]
	bus           *events.Bus
	monitor       *health.Monitor
	breaker       *circuitbreaker.Breaker
	selector      *flashloan.Selector
	nonceManager  nonceIniter
	orchestrator  *orchestrator.Orchestrator
	storage       storage.Storage
	walletTracker *wallet.Tracker
	skipChainDial bool
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// nonceIniter is the slice of the nonce manager the app lifecycle needs.
type nonceIniter interface {
	Init(ctx context.Context) error
}

// Options holds application options.
type Options struct {
	SkipChainDial bool // for tests: wire everything but never dial RPC
}

// Orchestrator exposes the admission gate, the engine's programmatic
// ingress.
func (a *App) Orchestrator() *orchestrator.Orchestrator {
	return a.orchestrator
}

// Selector exposes the flash-loan selector so operators can adjust
// hybrid eligibility and pool-specific venues at runtime.
func (a *App) Selector() *flashloan.Selector {
	return a.selector
}
