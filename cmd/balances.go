package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"wave-swap/pkg/types"
)

var balancesCmd = &cobra.Command{
	Use:   "balances",
	Short: "Show the merged balance view",
	Long: `Show plain on-chain balances alongside confidential balances for the
configured wallet. Confidential entries may show sentinels:

  AUTH_REQUIRED  a balance exists but needs a signed request to reveal
  DEPOSITED      funds are in the confidential system but not yet swappable

Examples:
  wave-swap balances
  wave-swap balances --json`,
	Run: runBalances,
}

func init() {
	rootCmd.AddCommand(balancesCmd)
}

func runBalances(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := newApp(true)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching balances..."
		s.Start()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	identity := a.signer.PublicKey()
	tokens, _ := a.catalog.Resolve(ctx, &identity, false, nil)
	err = a.balances.Refresh(ctx, identity, tokens)

	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	view := a.balances.All()

	if jsonOutput {
		out := make(map[string]string, len(view))
		for addr, bal := range view {
			out[addr] = bal.String()
		}
		jsonData, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	displayBalances(view)
}

func displayBalances(view map[string]types.Balance) {
	fmt.Println("\n" + strings.Repeat("=", 80))
	color.Green("                             BALANCES")
	fmt.Println(strings.Repeat("=", 80))

	addresses := make([]string, 0, len(view))
	for addr := range view {
		addresses = append(addresses, addr)
	}
	sort.Strings(addresses)

	for _, addr := range addresses {
		bal := view[addr]
		label := addr
		if strings.HasPrefix(addr, types.ConfidentialAddressPrefix) {
			label = color.MagentaString(addr)
		}
		if len(label) > 58 {
			label = label[:55] + "..."
		}

		switch bal.Kind {
		case types.BalanceAuthRequired:
			fmt.Printf("  %-58s  %s  %s\n", label, color.YellowString(bal.String()), "(sign in to reveal)")
		case types.BalanceDeposited:
			fmt.Printf("  %-58s  %s  %s\n", label, color.YellowString(bal.String()), "(deposit settling)")
		default:
			fmt.Printf("  %-58s  %s\n", label, bal.Amount.String())
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 80) + "\n")
}
