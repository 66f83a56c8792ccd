package cmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/axionmev/flasharb/internal/executor"
	"github.com/axionmev/flasharb/internal/flashloan"
	"github.com/axionmev/flasharb/internal/gas"
	"github.com/axionmev/flasharb/internal/nonce"
	"github.com/axionmev/flasharb/internal/params"
	"github.com/axionmev/flasharb/internal/profit"
	"github.com/axionmev/flasharb/pkg/cache"
	"github.com/axionmev/flasharb/pkg/chain"
	"github.com/axionmev/flasharb/pkg/config"
	"github.com/axionmev/flasharb/pkg/httpserver"
	"github.com/axionmev/flasharb/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Dry-run an opportunity without touching the chain",
	Long: `Builds the full transaction for an opportunity from a JSON file:
source selection, gas forecast, profit gates and calldata encoding all
run exactly as in live execution, against fixed gas prices instead of a
live RPC. Nothing is broadcast.

The file uses the same format as POST /api/opportunities.`,
	RunE: runSimulate,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringP("file", "f", "", "opportunity JSON file (required)")
	simulateCmd.Flags().Float64("gas-gwei", 30, "assumed legacy gas price in gwei")
	simulateCmd.Flags().Float64("base-fee-gwei", 0, "assumed base fee in gwei (0 = legacy pricing)")
	simulateCmd.Flags().Float64("tip-gwei", 2, "assumed priority fee in gwei")
	_ = simulateCmd.MarkFlagRequired("file")
}

// staticQuoter supplies fixed gas pricing for offline simulation.
type staticQuoter struct {
	gasPrice *big.Int
	tip      *big.Int
	baseFee  *big.Int // nil for legacy pricing
}

func (q *staticQuoter) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(q.gasPrice), nil
}

func (q *staticQuoter) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(q.tip), nil
}

func (q *staticQuoter) BaseFee(ctx context.Context) (*big.Int, error) {
	if q.baseFee == nil {
		return nil, nil
	}
	return new(big.Int).Set(q.baseFee), nil
}

// staticNonceReader seeds the simulated nonce sequence at zero.
type staticNonceReader struct{}

func (staticNonceReader) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return 0, nil
}

func runSimulate(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewConsoleLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	file, _ := cmd.Flags().GetString("file")
	gasGwei, _ := cmd.Flags().GetFloat64("gas-gwei")
	baseFeeGwei, _ := cmd.Flags().GetFloat64("base-fee-gwei")
	tipGwei, _ := cmd.Flags().GetFloat64("tip-gwei")

	opp, err := loadOpportunity(file)
	if err != nil {
		return fmt.Errorf("load opportunity: %w", err)
	}

	exec, err := buildSimulationExecutor(cfg, logger, opp, gasGwei, baseFeeGwei, tipGwei)
	if err != nil {
		return fmt.Errorf("build simulation stack: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, breakdown, err := exec.Build(ctx, opp, time.Now().Add(time.Minute), 0)
	if err != nil {
		fmt.Printf("\nREJECTED: %v\n", err)
		return nil
	}

	printSimulation(opp, req, breakdown)

	return nil
}

func loadOpportunity(path string) (*types.Opportunity, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var req httpserver.OpportunityRequest
	err = json.Unmarshal(raw, &req)
	if err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	return req.ToOpportunity()
}

func buildSimulationExecutor(
	cfg *config.Config,
	logger *zap.Logger,
	opp *types.Opportunity,
	gasGwei, baseFeeGwei, tipGwei float64,
) (*executor.Executor, error) {
	// Every standard venue is assumed to cover the borrow; selection
	// then runs on the real priority policy. Override per venue with
	// LIQUIDITY_SNAPSHOT to model thinner liquidity.
	vaultLiquidity := flashloan.NewLiquidityTable()
	peerToPoolLiquidity := flashloan.NewLiquidityTable()
	lendingPoolLiquidity := flashloan.NewLiquidityTable()
	if cfg.LiquiditySnapshot == "" {
		vaultLiquidity.Set(opp.Path.BorrowToken, opp.Path.BorrowAmount)
		peerToPoolLiquidity.Set(opp.Path.BorrowToken, opp.Path.BorrowAmount)
		lendingPoolLiquidity.Set(opp.Path.BorrowToken, opp.Path.BorrowAmount)
	}

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

	err = selector.SeedHybridEligible(cfg.HybridEligibleTokens)
	if err != nil {
		return nil, fmt.Errorf("seed hybrid eligibility: %w", err)
	}

	registry, err := params.NewRegistry(logger)
	if err != nil {
		return nil, err
	}

	builder, err := params.NewBuilder(registry, logger)
	if err != nil {
		return nil, err
	}

	quoteCache, err := cache.NewRistretto[*gas.Quote](&cache.Config{
		NumCounters: 64,
		MaxCost:     8,
		BufferItems: 64,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	quoter := &staticQuoter{
		gasPrice: gweiToWei(gasGwei),
		tip:      gweiToWei(tipGwei),
	}
	if baseFeeGwei > 0 {
		quoter.baseFee = gweiToWei(baseFeeGwei)
	}

	estimator, err := gas.New(&gas.Config{
		Quoter:           quoter,
		QuoteCache:       quoteCache,
		QuoteTTL:         cfg.GasQuoteTTL,
		SafetyBuffer:     cfg.GasSafetyBuffer,
		PriorityFeeBoost: cfg.PriorityFeeBoost,
		BumpFactor:       cfg.GasBumpFactor,
		NativePriceUSD:   cfg.NativeTokenPriceUSD,
		Logger:           logger,
	})
	if err != nil {
		return nil, err
	}

	validator, err := profit.New(&profit.Config{
		MinProfitAfterGasUSD: cfg.MinProfitAfterGasUSD,
		MEVLeakFactor:        cfg.MEVLeakFactor,
		Logger:               logger,
	})
	if err != nil {
		return nil, err
	}

	signer, err := setupSimulationSigner(cfg)
	if err != nil {
		return nil, err
	}

	nonces, err := nonce.New(&nonce.Config{
		Reader:  staticNonceReader{},
		Address: signer.Address(),
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	err = nonces.Init(context.Background())
	if err != nil {
		return nil, err
	}

	return executor.New(&executor.Config{
		ExecutorContract:    common.HexToAddress(cfg.ExecutorContract),
		ChainID:             cfg.ChainID,
		MaxGasPriceWei:      cfg.MaxGasPriceWei(),
		MaxGasCostPercent:   cfg.MaxGasCostPercent,
		ConfirmPollInterval: cfg.ConfirmPollInterval,
		Paper:               true,
		Selector:            selector,
		Params:              builder,
		Gas:                 estimator,
		Profit:              validator,
		Nonces:              nonces,
		Signer:              signer,
		Logger:              logger,
	})
}

func setupSimulationSigner(cfg *config.Config) (*chain.Signer, error) {
	keyHex := strings.TrimPrefix(cfg.WalletPrivateKey, "0x")
	if keyHex == "" {
		key, err := crypto.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("generate ephemeral key: %w", err)
		}
		keyHex = hex.EncodeToString(crypto.FromECDSA(key))
	}

	return chain.NewSigner(keyHex, cfg.ChainID)
}

func gweiToWei(gwei float64) *big.Int {
	wei, _ := new(big.Float).Mul(big.NewFloat(gwei), big.NewFloat(1e9)).Int(nil)
	return wei
}

func printSimulation(opp *types.Opportunity, req *types.TransactionRequest, breakdown *profit.Breakdown) {
	fmt.Println("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println("SIMULATION RESULT")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("Opportunity:    %s\n", opp.ID)
	fmt.Printf("Path:           %d hops, borrow %s of %s\n",
		opp.Path.HopCount(), opp.Path.BorrowAmount.String(), opp.Path.BorrowToken.Hex())
	fmt.Printf("Source:         %s\n", req.Source)
	fmt.Printf("Gas limit:      %d\n", req.GasLimit)
	fmt.Printf("Gas price:      %s wei\n", req.GasPrice.String())
	if req.GasTipCap != nil {
		fmt.Printf("Priority fee:   %s wei\n", req.GasTipCap.String())
	}
	fmt.Printf("Calldata:       %d bytes\n", len(req.Calldata))
	fmt.Println("────────────────────────────────────────────────────────────────────────")
	fmt.Printf("Gross:          $%.2f\n", breakdown.Gross)
	fmt.Printf("Gas cost:       $%.2f\n", breakdown.GasCost)
	fmt.Printf("Flash-loan fee: $%.2f\n", breakdown.FlashLoanFee)
	fmt.Printf("MEV reserve:    $%.2f\n", breakdown.MEVRisk)
	fmt.Printf("Net:            $%.2f (margin %.1f%%)\n", breakdown.Net, breakdown.Margin*100)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
}
