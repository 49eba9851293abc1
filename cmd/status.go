package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"hedera-swap/pkg/types"
)

var statusCmd = &cobra.Command{
	Use:   "status <transaction-id>",
	Short: "Check the outcome of a swap transaction",
	Long: `Poll the mirror node until a transaction reaches consensus or the retry
schedule is exhausted.

Examples:
  hedera-swap status 0.0.1234@1700000000.000000001
  hedera-swap status 0x3f9c...e1a2`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	txID := strings.TrimSpace(args[0])
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := newApp(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Checking transaction status..."
		s.Start()
	}

	status := a.monitor.Wait(ctx, txID, func(attempt, max int) {
		s.Lock()
		s.Suffix = fmt.Sprintf(" Checking transaction status (attempt %d/%d)...", attempt, max)
		s.Unlock()
	})
	if !jsonOutput {
		s.Stop()
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(status, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayStatus(status, txID, a.cfg.Network)
	}
}

func displayStatus(status types.TransactionStatus, txID, network string) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                     TRANSACTION STATUS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Transaction:     %s\n", color.CyanString(txID))
	fmt.Printf("  Status:          %s\n", getColoredStatus(status.Status))
	if status.ResultCode != "" {
		fmt.Printf("  Result:          %s\n", status.ResultCode)
	}
	if status.ConsensusTimestamp != "" {
		fmt.Printf("  Consensus:       %s\n", status.ConsensusTimestamp)
	}
	if status.Detail != "" {
		fmt.Printf("  Detail:          %s\n", color.HiBlackString(status.Detail))
	}
	fmt.Printf("  Polls:           %d\n", status.Attempts)
	fmt.Printf("  Explorer:        %s\n", explorerURL(network, txID))

	if status.Status == types.StatusUnknown {
		color.Yellow("\n  The mirror node has not reported this transaction yet, check the explorer.")
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func getColoredStatus(status string) string {
	status = strings.ToUpper(status)

	switch status {
	case "SUCCESS":
		return color.GreenString(status)
	case "UNKNOWN":
		return color.YellowString(status)
	case "FAILED":
		return color.RedString(status)
	default:
		return status
	}
}
