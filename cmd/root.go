package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "wave-swap",
	Short: "A CLI for public and confidential token swaps on Solana",
	Long: `wave-swap swaps one token for another, either publicly (best-price
routing through the aggregator) or privately (value-hidden routing through
the confidential-balance backend).

Examples:
  wave-swap swap 1 SOL to USDC
  wave-swap swap 100 USDC to SOL --private
  wave-swap tokens --private
  wave-swap balances
  wave-swap recover <signature> --kind deposit`,
	Version: "0.1.0",
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

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}
