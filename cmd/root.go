package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "flasharb",
	Short: "Flash-loan arbitrage execution engine",
	Long: `Autonomous execution engine for on-chain flash-loan arbitrage.

The engine accepts detected opportunities, selects the cheapest viable
flash-loan source, builds and gates the transaction (gas ceiling, gas
cost ratio, net profit after fees and MEV reserve), and drives it
through a checkpointed pipeline with bounded retries, nonce recovery
and gas bumping. A circuit breaker and health monitor guard admissions.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
