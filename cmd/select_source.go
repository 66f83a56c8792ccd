package cmd

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/axionmev/flasharb/internal/flashloan"
	"github.com/axionmev/flasharb/pkg/config"
	"github.com/axionmev/flasharb/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var selectSourceCmd = &cobra.Command{
	Use:   "select-source",
	Short: "Show which flash-loan venue would fund a borrow",
	Long: `Runs source selection for a hypothetical borrow against the venue
liquidity configured through LIQUIDITY_SNAPSHOT and prints the chosen
venue and its fee. Useful for checking priority and hybrid routing
before wiring an opportunity feed.`,
	RunE: runSelectSource,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(selectSourceCmd)
	selectSourceCmd.Flags().String("token", "", "borrow token address (required)")
	selectSourceCmd.Flags().String("amount", "", "borrow amount in base units (required)")
	selectSourceCmd.Flags().Float64("notional", 0, "borrow notional in USD, drives the hybrid gate")
	_ = selectSourceCmd.MarkFlagRequired("token")
	_ = selectSourceCmd.MarkFlagRequired("amount")
}

func runSelectSource(cmd *cobra.Command, args []string) error {
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

	tokenHex, _ := cmd.Flags().GetString("token")
	amountStr, _ := cmd.Flags().GetString("amount")
	notional, _ := cmd.Flags().GetFloat64("notional")

	if !common.IsHexAddress(tokenHex) {
		return fmt.Errorf("invalid token address %q", tokenHex)
	}
	token := common.HexToAddress(tokenHex)

	amount, ok := new(big.Int).SetString(amountStr, 10)
	if !ok || amount.Sign() <= 0 {
		return fmt.Errorf("invalid amount %q", amountStr)
	}

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
		return fmt.Errorf("create selector: %w", err)
	}

	err = flashloan.SeedSnapshot(cfg.LiquiditySnapshot, map[types.FlashLoanSource]*flashloan.LiquidityTable{
		types.SourceBalancer: vaultLiquidity,
		types.SourceDyDx:     peerToPoolLiquidity,
		types.SourceAave:     lendingPoolLiquidity,
	})
	if err != nil {
		return fmt.Errorf("seed liquidity: %w", err)
	}

	err = selector.SeedHybridEligible(cfg.HybridEligibleTokens)
	if err != nil {
		return fmt.Errorf("seed hybrid eligibility: %w", err)
	}

	source, err := selector.Select(token, amount, notional)
	if err != nil {
		fmt.Printf("\nNO SOURCE: %v\n", err)
		return nil
	}

	fee := selector.FeeRate(source, token)
	fmt.Printf("\nSource:   %s\n", source)
	fmt.Printf("Fee rate: %.4f%%\n", fee*100)
	fmt.Printf("Borrow:   %s of %s (notional $%.2f)\n", amount.String(), token.Hex(), notional)

	return nil
}
