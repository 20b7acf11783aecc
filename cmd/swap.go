package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"wave-swap/pkg/parser"
	"wave-swap/pkg/types"
)

var (
	privateMode bool
	noConfirm   bool
)

var swapCmd = &cobra.Command{
	Use:   "swap <amount> <source-token> to <dest-token>",
	Short: "Swap one token for another, publicly or privately",
	Long: `Swap tokens through the public aggregator, or privately through the
confidential-balance backend with --private.

A private swap deposits your tokens into the confidential system, executes
the swap there, and polls the order until it completes. If confirmation times
out mid-flow, the deposit signature is recorded and 'wave-swap recover' can
reconcile it.

Examples:
  # Public swap
  wave-swap swap 1 SOL to USDC

  # Private swap (amounts hidden on-chain)
  wave-swap swap 100 USDC to SOL --private

  # Skip the confirmation prompt
  wave-swap swap 1 SOL to USDC --yes`,
	Args: cobra.MinimumNArgs(1),
	Run:  runSwap,
}

func init() {
	rootCmd.AddCommand(swapCmd)

	swapCmd.Flags().BoolVar(&privateMode, "private", false, "Route the swap through the confidential backend")
	swapCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
}

func runSwap(cmd *cobra.Command, args []string) {
	commandStr := strings.Join(args, " ")
	parsed, err := parser.ParseSwapCommand(commandStr)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := newApp(true)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	ctx := context.Background()
	identity := a.signer.PublicKey()

	// The privacy map drives confidential-wrapped token synthesis, so pull
	// balances before resolving the catalog in private mode.
	if privateMode {
		if err := a.balances.Refresh(ctx, identity, nil); err != nil && verbose {
			fmt.Printf("\nDebug: confidential balance fetch failed: %v\n", err)
		}
	}

	tokens, _ := a.catalog.Resolve(ctx, &identity, privateMode, a.balances.PrivacyMap())
	input := findBySymbol(tokens, parsed.SourceSymbol)
	output := findBySymbol(tokens, parsed.DestSymbol)
	if input == nil {
		printError(fmt.Errorf("token '%s' not found (try: wave-swap tokens)", parsed.SourceSymbol))
		os.Exit(1)
	}
	if output == nil {
		printError(fmt.Errorf("token '%s' not found (try: wave-swap tokens)", parsed.DestSymbol))
		os.Exit(1)
	}

	mode := types.ModePublic
	if privateMode {
		mode = types.ModePrivate
	}

	// Get quote with spinner
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching quote..."
		s.Start()
	}

	q, err := a.engine.RequestQuote(ctx, input, output, parsed.Amount, mode)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if q == nil {
		printError(fmt.Errorf("quote request was collapsed; try again"))
		os.Exit(1)
	}

	if verbose {
		fmt.Printf("\nQuote received:\n")
		quoteJSON, _ := json.MarshalIndent(q, "", "  ")
		fmt.Println(string(quoteJSON))
	}

	if jsonOutput {
		out := map[string]interface{}{
			"input_mint":       q.InputMint,
			"output_mint":      q.OutputMint,
			"in_amount":        q.InAmount,
			"out_amount":       q.OutAmount,
			"price_impact_pct": q.PriceImpactPct,
			"mode":             q.Mode,
			"status":           "quote_generated",
		}
		jsonData, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayQuote(q, input, output, parsed.Amount)
	}

	if !noConfirm && !jsonOutput {
		if !confirmSwap() {
			fmt.Println("\nSwap cancelled.")
			os.Exit(0)
		}
	}

	runControllerSwap(ctx, a, q, *input, *output, jsonOutput)
}

func runControllerSwap(ctx context.Context, a *app, q *types.Quote, input, output types.Token, jsonOutput bool) {
	if !jsonOutput {
		a.controller.OnProgress = printProgress
	}

	err := a.controller.Swap(ctx, q, input, output)
	if err != nil {
		switch types.KindOf(err) {
		case types.ErrCancelled:
			color.Yellow("\nSwap cancelled. %s\n", guidanceOf(err))
		case types.ErrIndeterminate, types.ErrPostDeposit:
			color.Red("\n%v", err)
			color.Yellow("%s", guidanceOf(err))
			record := a.controller.RecoveryRecord()
			if record.NeedsRecovery {
				fmt.Println("\nTo reconcile, run:")
				color.Cyan("  wave-swap recover %s --kind %s\n", record.LastDepositSignature, record.Kind)
			}
		default:
			printError(err)
		}
		os.Exit(1)
	}

	if jsonOutput {
		fmt.Println(`{"status": "completed"}`)
	} else {
		color.Green("\n✓ Swap completed!")
	}
}

func printProgress(p types.SwapProgress) {
	if p.Status.Terminal() {
		return
	}
	fmt.Printf("  [%d/%d] %s: %s\n", p.Step, p.TotalSteps, color.CyanString(string(p.Status)), p.Message)
}

func guidanceOf(err error) string {
	if se, ok := err.(*types.SwapError); ok {
		return se.Guidance
	}
	return ""
}

func findBySymbol(tokens []types.Token, symbol string) *types.Token {
	symbol = parser.NormalizeTokenSymbol(symbol)
	for i := range tokens {
		if strings.EqualFold(tokens[i].Symbol, symbol) {
			return &tokens[i]
		}
	}
	return nil
}

func displayQuote(q *types.Quote, input, output *types.Token, amount string) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                     SWAP QUOTE")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  From:          %s %s\n", amount, color.YellowString(input.Symbol))
	fmt.Printf("  To:            ~%s %s\n", q.OutAmountDecimal(output.Decimals).String(), color.YellowString(output.Symbol))
	fmt.Printf("  Price Impact:  %.4f%%\n", q.PriceImpactPct)
	if q.EstimateOnly() {
		fmt.Printf("  Mode:          %s\n", color.MagentaString("private (output is an estimate)"))
		fmt.Println("\n  Private swaps deposit into the confidential system first;")
		fmt.Println("  cancelling later cannot reverse an already-broadcast deposit.")
	} else {
		fmt.Printf("  Mode:          public\n")
	}

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func confirmSwap() bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("\nProceed with swap? (y/N): ")

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
