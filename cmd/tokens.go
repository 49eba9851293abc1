package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"hedera-swap/pkg/types"
)

var filterSymbol string

var tokensCmd = &cobra.Command{
	Use:     "list-tokens",
	Aliases: []string{"tokens", "ls"},
	Short:   "List all routable tokens",
	Long: `List all tokens the quote service can route.

Examples:
  hedera-swap list-tokens
  hedera-swap list-tokens --symbol USDC`,
	Run: runListTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)

	tokensCmd.Flags().StringVar(&filterSymbol, "symbol", "", "Filter by token symbol")
}

func runListTokens(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := newApp(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer a.close()

	// Get tokens with spinner
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching supported tokens..."
		s.Start()
	}

	tokens, err := a.quotes.Tokens(cmd.Context())
	if !jsonOutput {
		s.Stop()
	}

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	filtered := filterTokens(tokens, filterSymbol)

	// Output
	if jsonOutput {
		jsonData, _ := json.MarshalIndent(filtered, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayTokens(filtered)
	}
}

func filterTokens(tokens []types.Token, symbol string) []types.Token {
	if symbol == "" {
		return tokens
	}
	var out []types.Token
	for _, token := range tokens {
		if strings.Contains(strings.ToUpper(token.Symbol), strings.ToUpper(symbol)) {
			out = append(out, token)
		}
	}
	return out
}

func displayTokens(tokens []types.Token) {
	if len(tokens) == 0 {
		fmt.Println("\nNo tokens found matching the criteria.")
		return
	}

	sorted := make([]types.Token, len(tokens))
	copy(sorted, tokens)
	sort.Slice(sorted, func(i, j int) bool {
		return strings.ToUpper(sorted[i].Symbol) < strings.ToUpper(sorted[j].Symbol)
	})

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                            SUPPORTED TOKENS")
	fmt.Println(strings.Repeat("=", 90))
	fmt.Println()

	for _, token := range sorted {
		price := ""
		if token.PriceUSD.IsPositive() {
			price = "$" + token.PriceUSD.StringFixed(4)
		}
		fmt.Printf("  %-10s  %-14s  %2d decimals  %s\n",
			color.YellowString(token.Symbol),
			token.ID,
			token.Decimals,
			color.HiBlackString(price))
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d tokens\n\n", len(tokens))
}
