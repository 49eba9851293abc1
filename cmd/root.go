package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hedera-swap/pkg/logging"
)

var rootCmd = &cobra.Command{
	Use:   "hedera-swap",
	Short: "A CLI for validated token swaps on Hedera through an aggregator router",
	Long: `hedera-swap fetches candidate routes from a quote service, re-validates every
route locally, prepares token associations and allowances, and executes the
swap through the aggregator router contract.

Examples:
  hedera-swap swap 10 HBAR to SAUCE
  hedera-swap swap 25 SAUCE to USDC --slippage 1 --yes
  hedera-swap quote 100 HBAR to USDC
  hedera-swap list-tokens
  hedera-swap status 0.0.1234@1700000000.000000001`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

func newLogger(cmd *cobra.Command) *zap.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	return logging.New(verbose, jsonOutput)
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}
