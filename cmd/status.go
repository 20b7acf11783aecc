package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"wave-swap/pkg/chain"
)

var (
	watchStatus   bool
	watchInterval int
	orderID       string
)

var statusCmd = &cobra.Command{
	Use:   "status <signature>",
	Short: "Check the status of a transaction or order",
	Long: `Check the on-chain status of a transaction by signature, and optionally
the confidential backend's order status.

Examples:
  wave-swap status 5Umo3vX...
  wave-swap status 5Umo3vX... --order <order-id>
  wave-swap status 5Umo3vX... --watch --interval 10`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Watch status updates continuously")
	statusCmd.Flags().IntVar(&watchInterval, "interval", 5, "Polling interval in seconds (when watching)")
	statusCmd.Flags().StringVar(&orderID, "order", "", "Also check this confidential order")
}

func runStatus(cmd *cobra.Command, args []string) {
	signature := args[0]

	a, err := newApp(false)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if watchStatus {
		fmt.Printf("\nWatching status (signature: %s)\n", color.CyanString(signature))
		fmt.Printf("Checking every %d seconds. Press Ctrl+C to stop.\n\n", watchInterval)

		ticker := time.NewTicker(time.Duration(watchInterval) * time.Second)
		defer ticker.Stop()

		checkAndDisplayStatus(a, signature)
		for range ticker.C {
			checkAndDisplayStatus(a, signature)
		}
		return
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " Checking status..."
	s.Start()
	txStatus, orderState, err := fetchStatus(a, signature)
	s.Stop()

	if err != nil {
		printError(err)
		os.Exit(1)
	}
	displayTxStatus(signature, txStatus, orderState)
}

func checkAndDisplayStatus(a *app, signature string) {
	txStatus, orderState, err := fetchStatus(a, signature)
	if err != nil {
		color.Red("Error: %v", err)
		return
	}
	displayTxStatus(signature, txStatus, orderState)
}

func fetchStatus(a *app, signature string) (chain.TxStatus, string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	txStatus, err := a.chain.TransactionStatus(ctx, signature)
	if err != nil {
		return chain.TxUnknown, "", err
	}

	orderState := ""
	if orderID != "" {
		state, err := a.privacy.OrderStatus(ctx, orderID)
		if err != nil {
			orderState = fmt.Sprintf("unavailable (%v)", err)
		} else {
			orderState = string(state)
		}
	}
	return txStatus, orderState, nil
}

func displayTxStatus(signature string, txStatus chain.TxStatus, orderState string) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                        TRANSACTION STATUS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Signature: %s\n", color.CyanString(signature))
	fmt.Printf("  On-chain:  %s\n", coloredTxStatus(txStatus))
	if orderState != "" {
		fmt.Printf("  Order:     %s\n", orderState)
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func coloredTxStatus(s chain.TxStatus) string {
	switch s {
	case chain.TxConfirmed:
		return color.GreenString("CONFIRMED")
	case chain.TxFailed:
		return color.RedString("FAILED")
	default:
		return color.YellowString("UNKNOWN")
	}
}
