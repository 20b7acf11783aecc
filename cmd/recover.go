package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"wave-swap/pkg/privacy"
	"wave-swap/pkg/types"
)

var recoverKind string

var recoverCmd = &cobra.Command{
	Use:   "recover <signature>",
	Short: "Reconcile a transaction whose outcome timed out",
	Long: `Query remote deposit/order state for a signature whose confirmation
timed out and apply the verdict locally. Recovery only reads state; it never
submits a transaction, and running it twice is safe.

Examples:
  wave-swap recover 5Umo3vX... --kind deposit
  wave-swap recover 5Umo3vX... --kind withdrawal`,
	Args: cobra.ExactArgs(1),
	Run:  runRecover,
}

func init() {
	rootCmd.AddCommand(recoverCmd)

	recoverCmd.Flags().StringVar(&recoverKind, "kind", "deposit", "Which flow the signature belongs to: deposit or withdrawal")
}

func runRecover(cmd *cobra.Command, args []string) {
	signature := args[0]

	var kind types.RecoveryKind
	switch recoverKind {
	case "deposit":
		kind = types.RecoveryDeposit
	case "withdrawal":
		kind = types.RecoveryWithdrawal
	default:
		printError(fmt.Errorf("unknown recovery kind %q (expected deposit or withdrawal)", recoverKind))
		os.Exit(1)
	}

	a, err := newApp(true)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " Querying recovery state..."
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	outcome, err := a.recoverer.Recover(ctx, signature, kind)
	s.Stop()

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	fmt.Println()
	switch outcome.Action {
	case privacy.ActionDepositConfirmed:
		color.Green("✓ Deposit confirmed on the confidential backend.")
		fmt.Println("  Your confidential balance has been updated.")
	case privacy.ActionWithdrawalConfirmed:
		color.Green("✓ Withdrawal confirmed.")
		fmt.Println("  Your balances have been updated.")
	case privacy.ActionRecoveryNeeded:
		color.Red("⚠ Funds are in an indeterminate state and need manual follow-up.")
		if outcome.Message != "" {
			fmt.Printf("  %s\n", outcome.Message)
		}
	default:
		fmt.Println("Analysis complete; nothing to change.")
		if outcome.Message != "" {
			fmt.Printf("  %s\n", outcome.Message)
		}
	}
	fmt.Println()
}
