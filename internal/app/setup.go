package app

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/axionmev/flasharb/internal/circuitbreaker"
	"github.com/axionmev/flasharb/internal/events"
	"github.com/axionmev/flasharb/internal/executor"
	"github.com/axionmev/flasharb/internal/flashloan"
	"github.com/axionmev/flasharb/internal/gas"
	"github.com/axionmev/flasharb/internal/health"
	"github.com/axionmev/flasharb/internal/nonce"
	"github.com/axionmev/flasharb/internal/orchestrator"
	"github.com/axionmev/flasharb/internal/params"
	"github.com/axionmev/flasharb/internal/pipeline"
	"github.com/axionmev/flasharb/internal/profit"
	"github.com/axionmev/flasharb/internal/recovery"
	"github.com/axionmev/flasharb/internal/storage"
	"github.com/axionmev/flasharb/pkg/cache"
	"github.com/axionmev/flasharb/pkg/chain"
	"github.com/axionmev/flasharb/pkg/config"
	"github.com/axionmev/flasharb/pkg/healthprobe"
	"github.com/axionmev/flasharb/pkg/httpserver"
	"github.com/axionmev/flasharb/pkg/types"
	"github.com/axionmev/flasharb/pkg/wallet"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	bus := events.NewBus(logger)
	healthChecker := healthprobe.New()

	monitor, err := setupHealthMonitor(cfg, logger, bus)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup health monitor: %w", err)
	}

	breaker, err := circuitbreaker.New(&circuitbreaker.Config{
		ConsecutiveFailureLimit: cfg.ConsecutiveFailureLimit,
		MaxLossWindowUSD:        cfg.MaxLossWindowUSD,
		LossWindow:              cfg.LossWindow,
		Logger:                  logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup circuit breaker: %w", err)
	}

	chainClient, err := chain.NewClient(cfg.RPCURL, cfg.ChainID, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup chain client: %w", err)
	}

	signer, err := setupSigner(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup signer: %w", err)
	}

	quoteCache, err := cache.NewRistretto[*gas.Quote](&cache.Config{
		NumCounters: 1024,
		MaxCost:     64,
		BufferItems: 64,
		Logger:      logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup quote cache: %w", err)
	}

	selector, err := setupFlashLoanSelector(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup flash-loan selector: %w", err)
	}

	registry, err := params.NewRegistry(logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup builder registry: %w", err)
	}

	paramsBuilder, err := params.NewBuilder(registry, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup parameter builder: %w", err)
	}

	planner, err := recovery.NewPlanner(recovery.Config{
		MaxRetries:      cfg.MaxRetries,
		BackoffBase:     cfg.RetryBackoffBase,
		BackoffMax:      cfg.RetryBackoffMax,
		GasBumpFactor:   cfg.GasBumpFactor,
		MaxGasBumps:     cfg.MaxGasBumps,
		CongestionDelay: cfg.CongestionDelay,
		Logger:          logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup recovery planner: %w", err)
	}

	gasEstimator, err := gas.New(&gas.Config{
		Quoter:           chainClient,
		QuoteCache:       quoteCache,
		QuoteTTL:         cfg.GasQuoteTTL,
		SafetyBuffer:     cfg.GasSafetyBuffer,
		PriorityFeeBoost: cfg.PriorityFeeBoost,
		BumpFactor:       planner.GasBumpFactor(),
		NativePriceUSD:   cfg.NativeTokenPriceUSD,
		Logger:           logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup gas estimator: %w", err)
	}

	profitValidator, err := profit.New(&profit.Config{
		MinProfitAfterGasUSD: cfg.MinProfitAfterGasUSD,
		MEVLeakFactor:        cfg.MEVLeakFactor,
		Logger:               logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup profit validator: %w", err)
	}

	nonceManager, err := nonce.New(&nonce.Config{
		Reader:  chainClient,
		Address: signer.Address(),
		Logger:  logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup nonce manager: %w", err)
	}

	txExecutor, err := executor.New(&executor.Config{
		ExecutorContract:    common.HexToAddress(cfg.ExecutorContract),
		ChainID:             cfg.ChainID,
		MaxGasPriceWei:      cfg.MaxGasPriceWei(),
		MaxGasCostPercent:   cfg.MaxGasCostPercent,
		ConfirmPollInterval: cfg.ConfirmPollInterval,
		Paper:               cfg.ExecutionMode == "paper",
		Selector:            selector,
		Params:              paramsBuilder,
		Gas:                 gasEstimator,
		Profit:              profitValidator,
		Nonces:              nonceManager,
		Signer:              signer,
		Client:              chainClient,
		Health:              monitor,
		Logger:              logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup executor: %w", err)
	}

	execPipeline, err := pipeline.New(&pipeline.Config{
		ExecutionTimeout: cfg.ExecutionTimeout,
		NativePriceUSD:   cfg.NativeTokenPriceUSD,
		Executor:         txExecutor,
		Planner:          planner,
		Nonces:           nonceManager,
		Gas:              gasEstimator,
		Profit:           profitValidator,
		Health:           monitor,
		Events:           bus,
		Logger:           logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup pipeline: %w", err)
	}

	store, err := setupStorage(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup storage: %w", err)
	}

	orch, err := orchestrator.New(&orchestrator.Config{
		MaxConcurrentExecutions: cfg.MaxConcurrentExecutions,
		MaxPositionSizeUSD:      cfg.MaxPositionSizeUSD,
		MaxTotalExposureUSD:     cfg.MaxTotalExposureUSD,
		NativeTokenPriceUSD:     cfg.NativeTokenPriceUSD,
		Pipeline:                execPipeline,
		Breaker:                 breaker,
		Health:                  monitor,
		Bus:                     bus,
		Store:                   store,
		Logger:                  logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup orchestrator: %w", err)
	}

	walletTracker, err := wallet.New(&wallet.Config{
		Reader:        chainClient,
		Address:       signer.Address(),
		PollInterval:  cfg.BalancePollInterval,
		MinBalanceWei: cfg.MinNativeBalanceWei(),
		Logger:        logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup wallet tracker: %w", err)
	}

	httpServer := httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		Stats:         orch,
		Breaker:       breaker,
		Health:        monitor,
		Ingress:       orch,
		Bus:           bus,
	})

	return &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthChecker,
		httpServer:    httpServer,
		chainClient:   chainClient,
		quoteCache:    quoteCache,
		bus:           bus,
		monitor:       monitor,
		breaker:       breaker,
		selector:      selector,
		nonceManager:  nonceManager,
		orchestrator:  orch,
		storage:       store,
		walletTracker: walletTracker,
		skipChainDial: opts.SkipChainDial,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

func setupHealthMonitor(cfg *config.Config, logger *zap.Logger, bus *events.Bus) (*health.Monitor, error) {
	return health.NewMonitor(health.Config{
		CheckInterval:          cfg.HealthCheckInterval,
		WindowSize:             cfg.HealthWindowSize,
		AnomalyDeviationFactor: cfg.AnomalyDeviationFactor,
		Publisher:              bus,
		Logger:                 logger,
	})
}

// setupSigner builds the wallet signer. Paper mode may run without a
// configured key; an ephemeral one is generated so signing still
// exercises the real code path.
func setupSigner(cfg *config.Config, logger *zap.Logger) (*chain.Signer, error) {
	keyHex := strings.TrimPrefix(cfg.WalletPrivateKey, "0x")

	if keyHex == "" {
		if cfg.ExecutionMode != "paper" {
			return nil, fmt.Errorf("wallet private key required in live mode")
		}

		key, err := crypto.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("generate ephemeral key: %w", err)
		}

		keyHex = hex.EncodeToString(crypto.FromECDSA(key))
		logger.Warn("using-ephemeral-wallet-key",
			zap.String("note", "paper mode without WALLET_PRIVATE_KEY"))
	}

	return chain.NewSigner(keyHex, cfg.ChainID)
}

func setupFlashLoanSelector(cfg *config.Config, logger *zap.Logger) (*flashloan.Selector, error) {
	vaultLiquidity := flashloan.NewLiquidityTable()
	peerToPoolLiquidity := flashloan.NewLiquidityTable()
	lendingPoolLiquidity := flashloan.NewLiquidityTable()

	selector, err := flashloan.New(&flashloan.Config{
		LargeNotionalThresholdUSD: cfg.LargeNotionalThresholdUSD,
		Vault:                     flashloan.NewVaultProvider(types.SourceBalancer, vaultLiquidity),
		PeerToPool:                flashloan.NewVaultProvider(types.SourceDyDx, peerToPoolLiquidity),
		LendingPool:               flashloan.NewLendingPoolProvider(lendingPoolLiquidity),
		Logger:                    logger,
	})
	if err != nil {
		return nil, err
	}

	err = flashloan.SeedSnapshot(cfg.LiquiditySnapshot, map[types.FlashLoanSource]*flashloan.LiquidityTable{
		types.SourceBalancer: vaultLiquidity,
		types.SourceDyDx:     peerToPoolLiquidity,
		types.SourceAave:     lendingPoolLiquidity,
	})
	if err != nil {
		return nil, fmt.Errorf("seed liquidity: %w", err)
	}

	if cfg.LiquiditySnapshot != "" {
		logger.Info("liquidity-seeded", zap.String("snapshot", cfg.LiquiditySnapshot))
	}

	err = selector.SeedHybridEligible(cfg.HybridEligibleTokens)
	if err != nil {
		return nil, fmt.Errorf("seed hybrid eligibility: %w", err)
	}

	return selector, nil
}

func setupStorage(cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	if cfg.StorageMode == "postgres" {
		pgStorage, err := storage.NewPostgresStorage(&storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres storage: %w", err)
		}
		return pgStorage, nil
	}

	return storage.NewConsoleStorage(logger), nil
}
