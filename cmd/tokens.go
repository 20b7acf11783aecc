package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"wave-swap/pkg/types"
)

var (
	tokensPrivate bool
	filterSymbol  string
)

var tokensCmd = &cobra.Command{
	Use:     "list-tokens",
	Aliases: []string{"tokens", "ls"},
	Short:   "List swappable tokens",
	Long: `List the tokens available for swapping: your wallet holdings first,
then the curated defaults. With --private, confidential-wrapped variants are
included for every token you hold a confidential balance of.

Examples:
  wave-swap list-tokens
  wave-swap list-tokens --private
  wave-swap list-tokens --symbol USDC`,
	Run: runListTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)

	tokensCmd.Flags().BoolVar(&tokensPrivate, "private", false, "Include confidential-wrapped tokens")
	tokensCmd.Flags().StringVar(&filterSymbol, "symbol", "", "Filter by token symbol")
}

func runListTokens(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := newApp(false)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	// Get tokens with spinner
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Resolving token list..."
		s.Start()
	}

	ctx := context.Background()
	var tokens []types.Token
	if a.signer != nil {
		identity := a.signer.PublicKey()
		if tokensPrivate {
			if err := a.balances.Refresh(ctx, identity, nil); err != nil {
				// Synthesis just skips tokens we could not learn about.
				fmt.Fprintf(os.Stderr, "warning: confidential balance fetch failed: %v\n", err)
			}
		}
		tokens, _ = a.catalog.Resolve(ctx, &identity, tokensPrivate, a.balances.PrivacyMap())
	} else {
		tokens, _ = a.catalog.Resolve(ctx, nil, false, nil)
	}

	if !jsonOutput {
		s.Stop()
	}

	if filterSymbol != "" {
		var temp []types.Token
		for _, token := range tokens {
			if strings.Contains(strings.ToUpper(token.Symbol), strings.ToUpper(filterSymbol)) {
				temp = append(temp, token)
			}
		}
		tokens = temp
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(tokens, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayTokens(tokens)
	}
}

func displayTokens(tokens []types.Token) {
	if len(tokens) == 0 {
		fmt.Println("\nNo tokens found matching the criteria.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                            SWAPPABLE TOKENS")
	fmt.Println(strings.Repeat("=", 90))

	for _, token := range tokens {
		address := token.Address
		if len(address) > 48 {
			address = address[:45] + "..."
		}

		flags := ""
		if token.SupportsPrivateMode {
			flags = color.MagentaString("private")
		}

		fmt.Printf("  %-10s  %2d decimals  %-48s  %s\n",
			color.YellowString(token.Symbol),
			token.Decimals,
			color.HiBlackString(address),
			flags)
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d tokens\n\n", len(tokens))
}
