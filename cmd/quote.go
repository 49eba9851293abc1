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

	"hedera-swap/pkg/parser"
	"hedera-swap/pkg/validator"
)

var quoteCmd = &cobra.Command{
	Use:   "quote <amount> <source-token> to <dest-token>",
	Short: "Show validated routes without swapping",
	Long: `Fetch candidate routes and show which of them pass local validation.

Examples:
  hedera-swap quote 100 HBAR to USDC
  hedera-swap quote 25 SAUCE to HBAR --slippage 0.5`,
	Args: cobra.MinimumNArgs(1),
	Run:  runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)

	quoteCmd.Flags().StringVar(&slippageFlag, "slippage", "", "Slippage tolerance in percent (default from config)")
	quoteCmd.Flags().BoolVar(&autoSlippage, "auto", false, "Accept routes whose price impact exceeds the slippage tolerance")
}

func runQuote(cmd *cobra.Command, args []string) {
	swapReq, err := parser.ParseSwapCommand(strings.Join(args, " "))
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if err := parser.ValidateSwapRequest(swapReq); err != nil {
		printError(err)
		os.Exit(1)
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := newApp(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer a.close()

	settings, err := swapSettings(a.cfg)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching routes..."
		s.Start()
	}

	ctx := context.Background()
	from, to, amount, err := a.resolvePair(ctx, swapReq)
	var result *validator.Result
	if err == nil {
		_, result, err = a.quoteAndValidate(ctx, from, to, amount, settings)
	}
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		output := map[string]interface{}{
			"accepted": len(result.Accepted),
			"rejected": rejectionSummary(result.Rejected),
		}
		if best, ok := result.Best(); ok {
			output["best"] = map[string]interface{}{
				"aggregators":  best.Route.AggregatorIDs,
				"amount_out":   best.FormattedOutput,
				"price_impact": best.Route.PriceImpact.String(),
				"hops":         best.Hops(),
				"warnings":     best.Warnings,
			}
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	if best, ok := result.Best(); ok {
		displayQuote(best, from, to, amount, settings)
		for i, alt := range result.Accepted[1:] {
			fmt.Printf("  Alternative %d:     ~%s %s via %s\n", i+1, alt.FormattedOutput, to.Symbol, strings.Join(alt.Route.AggregatorIDs, ", "))
		}
	} else {
		color.Yellow("\nNo route passed validation.")
	}
	displayRejections(result.Rejected)
}

func rejectionSummary(rejected []validator.Rejection) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(rejected))
	for _, r := range rejected {
		out = append(out, map[string]interface{}{
			"index":  r.Index,
			"reason": r.Reason.String(),
			"detail": r.Detail,
		})
	}
	return out
}

func displayRejections(rejected []validator.Rejection) {
	if len(rejected) == 0 {
		return
	}
	color.Red("\nRejected routes:")
	for _, r := range rejected {
		fmt.Printf("  #%d %-22s %s\n", r.Index, r.Reason.String(), color.HiBlackString(r.Detail))
	}
	fmt.Println()
}
