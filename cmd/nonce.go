package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/axionmev/flasharb/pkg/chain"
	"github.com/axionmev/flasharb/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var nonceCmd = &cobra.Command{
	Use:   "nonce",
	Short: "Show the pending nonce for the engine wallet",
	Long: `Queries the RPC node for the pending nonce of the engine wallet, or
of an explicit address. The engine seeds its local nonce sequence from
the same value on startup, so this is the number the next transaction
will carry.`,
	RunE: runNonce,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(nonceCmd)
	nonceCmd.Flags().String("address", "", "query this address instead of the wallet key")
}

func runNonce(cmd *cobra.Command, args []string) error {
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

	addressHex, _ := cmd.Flags().GetString("address")

	var account common.Address
	switch {
	case addressHex != "":
		if !common.IsHexAddress(addressHex) {
			return fmt.Errorf("invalid address %q", addressHex)
		}
		account = common.HexToAddress(addressHex)
	case cfg.WalletPrivateKey != "":
		signer, err := chain.NewSigner(strings.TrimPrefix(cfg.WalletPrivateKey, "0x"), cfg.ChainID)
		if err != nil {
			return fmt.Errorf("derive wallet address: %w", err)
		}
		account = signer.Address()
	default:
		return fmt.Errorf("no --address given and WALLET_PRIVATE_KEY is unset")
	}

	client, err := chain.NewClient(cfg.RPCURL, cfg.ChainID, logger)
	if err != nil {
		return fmt.Errorf("create chain client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = client.Dial(ctx)
	if err != nil {
		return fmt.Errorf("dial rpc: %w", err)
	}

	pending, err := client.PendingNonceAt(ctx, account)
	if err != nil {
		return fmt.Errorf("query pending nonce: %w", err)
	}

	fmt.Printf("\nAddress:       %s\n", account.Hex())
	fmt.Printf("Pending nonce: %d\n", pending)

	return nil
}
