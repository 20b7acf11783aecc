package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"wave-swap/pkg/parser"
	"wave-swap/pkg/types"
)

var withdrawYes bool

var withdrawCmd = &cobra.Command{
	Use:   "withdraw <amount> <token>",
	Short: "Move a confidential balance back to your plain wallet",
	Long: `Withdraw from the confidential system back into plain tokens. The
backend builds the transaction; it is signed and submitted locally.

Examples:
  wave-swap withdraw 50 USDC
  wave-swap withdraw 1.5 SOL --yes`,
	Args: cobra.ExactArgs(2),
	Run:  runWithdraw,
}

func init() {
	rootCmd.AddCommand(withdrawCmd)

	withdrawCmd.Flags().BoolVarP(&withdrawYes, "yes", "y", false, "Skip confirmation prompt")
}

func runWithdraw(cmd *cobra.Command, args []string) {
	amount := args[0]
	symbol := parser.NormalizeTokenSymbol(args[1])

	a, err := newApp(true)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	ctx := context.Background()
	identity := a.signer.PublicKey()

	if err := a.balances.Refresh(ctx, identity, nil); err != nil {
		printError(err)
		os.Exit(1)
	}
	tokens, _ := a.catalog.Resolve(ctx, &identity, true, a.balances.PrivacyMap())

	var token *types.Token
	for i := range tokens {
		if strings.EqualFold(tokens[i].Symbol, symbol) || strings.EqualFold(tokens[i].Symbol, "c"+symbol) {
			token = &tokens[i]
			break
		}
	}
	if token == nil {
		printError(fmt.Errorf("no confidential balance found for '%s'", symbol))
		os.Exit(1)
	}

	fmt.Printf("\nWithdrawing %s %s from the confidential system.\n", amount, color.YellowString(symbol))
	if !withdrawYes && !confirmSwap() {
		fmt.Println("\nWithdrawal cancelled.")
		os.Exit(0)
	}

	a.controller.OnProgress = printProgress
	if err := a.controller.Withdraw(ctx, *token, amount); err != nil {
		if types.KindOf(err) == types.ErrIndeterminate {
			color.Red("\n%v", err)
			color.Yellow("%s", guidanceOf(err))
			record := a.controller.RecoveryRecord()
			if record.NeedsRecovery {
				fmt.Println("\nTo reconcile, run:")
				color.Cyan("  wave-swap recover %s --kind %s\n", record.LastDepositSignature, record.Kind)
			}
		} else {
			printError(err)
		}
		os.Exit(1)
	}

	color.Green("\n✓ Withdrawal completed!")
}
