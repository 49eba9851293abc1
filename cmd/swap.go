package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hedera-swap/config"
	"hedera-swap/pkg/orchestrator"
	"hedera-swap/pkg/parser"
	"hedera-swap/pkg/precondition"
	"hedera-swap/pkg/txbuilder"
	"hedera-swap/pkg/types"
	"hedera-swap/pkg/validator"
	"hedera-swap/pkg/wallet"
)

var (
	slippageFlag  string
	deadlineFlag  time.Duration
	autoSlippage  bool
	noConfirm     bool
	recipientAddr string
	feeOnTransfer bool
)

// stdin is shared by every prompt so buffered input is not lost between readers
var stdin = bufio.NewReader(os.Stdin)

var swapCmd = &cobra.Command{
	Use:   "swap <amount> <source-token> to <dest-token>",
	Short: "Perform a validated token swap on Hedera",
	Long: `Swap tokens on Hedera through the aggregator router contract.

The best route returned by the quote service is re-validated locally, missing
token associations and allowances are requested, and the swap transaction is
monitored until the mirror node reports its outcome.

Examples:
  # Swap HBAR for SAUCE with the default slippage
  hedera-swap swap 10 HBAR to SAUCE

  # Token to token with 1% slippage
  hedera-swap swap 25 SAUCE to USDC --slippage 1

  # Use a token ID instead of a symbol and skip all confirmations
  hedera-swap swap 5 0.0.731861 to HBAR --yes`,
	Args: cobra.MinimumNArgs(1),
	Run:  runSwap,
}

func init() {
	rootCmd.AddCommand(swapCmd)

	swapCmd.Flags().StringVar(&slippageFlag, "slippage", "", "Slippage tolerance in percent (default from config)")
	swapCmd.Flags().DurationVar(&deadlineFlag, "deadline", 0, "Time until the swap expires (default from config)")
	swapCmd.Flags().BoolVar(&autoSlippage, "auto", false, "Accept routes whose price impact exceeds the slippage tolerance")
	swapCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompts")
	swapCmd.Flags().StringVar(&recipientAddr, "recipient", "", "Account receiving the output (defaults to the signer)")
	swapCmd.Flags().BoolVar(&feeOnTransfer, "fee-on-transfer", false, "Use the fee-on-transfer variant of the router call")
}

func runSwap(cmd *cobra.Command, args []string) {
	// Parse the command
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

	if err := a.cfg.RequireSigner(); err != nil {
		printError(err)
		os.Exit(1)
	}
	if a.cfg.RouterID == "" {
		printError(fmt.Errorf("router contract not configured (set HEDERA_SWAP_ROUTER_ID)"))
		os.Exit(1)
	}

	settings, err := swapSettings(a.cfg)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching routes..."
		s.Start()
	}

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

	best, ok := result.Best()
	if !ok {
		if !jsonOutput {
			displayRejections(result.Rejected)
		}
		printError(fmt.Errorf("no route passed validation"))
		os.Exit(1)
	}

	if !jsonOutput {
		displayQuote(best, from, to, amount, settings)
	}

	// Ask for confirmation
	if !noConfirm && !jsonOutput {
		if !confirmSwap() {
			fmt.Println("\nSwap cancelled.")
			os.Exit(0)
		}
	}

	relay, err := wallet.DialRelay(wallet.RelayConfig{
		RPCURL:     a.cfg.RelayURL,
		ChainID:    a.cfg.ChainID,
		AccountID:  a.cfg.AccountID,
		PrivateKey: a.cfg.PrivateKey,
	}, a.logger)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer relay.Close()

	var session wallet.Session = relay
	if !noConfirm && !jsonOutput {
		session = wallet.NewPromptSession(relay, stdin, os.Stdout, wallet.DescribeTx)
	}

	orch, err := newOrchestrator(a)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if !jsonOutput {
		progress := newProgressView(!noConfirm)
		unsubscribe := orch.Subscribe(progress.update)
		defer unsubscribe()
	}

	state := orch.Execute(ctx, session, orchestrator.Request{
		Route:     best,
		From:      from,
		To:        to,
		AmountIn:  amount,
		Settings:  &settings,
		Recipient: recipientAddr,
	})

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(swapOutput(state), "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayOutcome(state, a.cfg, a.logger)
	}

	if state.Step != orchestrator.StepSuccess {
		a.close()
		os.Exit(1)
	}
}

func swapSettings(cfg *config.Config) (types.SwapSettings, error) {
	slippage := cfg.Slippage
	if slippageFlag != "" {
		parsed, err := config.ParseSlippage(slippageFlag)
		if err != nil {
			return types.SwapSettings{}, err
		}
		slippage = parsed
	}

	deadline := cfg.Deadline
	if deadlineFlag > 0 {
		deadline = deadlineFlag
	}

	settings := types.SwapSettings{
		SlippagePercent: slippage,
		Deadline:        time.Now().Add(deadline),
		Auto:            autoSlippage,
		FeeOnTransfer:   feeOnTransfer,
	}
	if err := settings.Validate(time.Now()); err != nil {
		return types.SwapSettings{}, err
	}
	return settings, nil
}

func newOrchestrator(a *app) (*orchestrator.Orchestrator, error) {
	router, err := participant(a.cfg.RouterID)
	if err != nil {
		return nil, fmt.Errorf("router_id: %w", err)
	}
	wrapped, err := types.TokenIDToAddress(a.cfg.WrappedNativeID)
	if err != nil {
		return nil, fmt.Errorf("wrapped_native_id: %w", err)
	}

	adapters := make(map[types.Aggregator]precondition.Participant, len(a.cfg.Adapters))
	for agg, id := range a.cfg.Adapters {
		p, err := participant(id)
		if err != nil {
			return nil, fmt.Errorf("adapter for %s: %w", agg, err)
		}
		adapters[agg] = p
	}

	manager := precondition.NewManager(precondition.Config{}, a.mirror, a.monitor, a.logger)
	builder := txbuilder.New(txbuilder.Config{Router: router.Address, WrappedNative: wrapped})

	return orchestrator.New(orchestrator.Config{
		Router:      router,
		Adapters:    adapters,
		SettleDelay: a.cfg.SettleDelay,
	}, manager, builder, a.monitor, a.metrics, a.logger), nil
}

// progressView renders orchestrator state changes on a spinner
type progressView struct {
	spinner *spinner.Spinner
	prompts bool
}

func newProgressView(prompts bool) *progressView {
	return &progressView{spinner: spinner.New(spinner.CharSets[14], 100*time.Millisecond), prompts: prompts}
}

var stepMessages = map[orchestrator.Step]string{
	orchestrator.StepValidating:                "Validating swap...",
	orchestrator.StepEnsuringParticipants:      "Checking router associations...",
	orchestrator.StepCheckingDestAssociation:   "Checking token association...",
	orchestrator.StepRequestingDestAssociation: "Associating destination token...",
	orchestrator.StepCheckingSourceAllowance:   "Checking allowance...",
	orchestrator.StepRequestingSourceAllowance: "Approving router allowance...",
	orchestrator.StepBuildingTransaction:       "Building swap transaction...",
	orchestrator.StepAwaitingSignature:         "Waiting for swap signature...",
	orchestrator.StepBroadcasting:              "Broadcasting...",
	orchestrator.StepMonitoring:                "Waiting for confirmation...",
}

// steps that may prompt on the terminal
var promptSteps = map[orchestrator.Step]bool{
	orchestrator.StepEnsuringParticipants:      true,
	orchestrator.StepRequestingDestAssociation: true,
	orchestrator.StepRequestingSourceAllowance: true,
	orchestrator.StepAwaitingSignature:         true,
}

func (p *progressView) update(state orchestrator.State) {
	if state.Step.Terminal() {
		p.spinner.Stop()
		return
	}

	msg, ok := stepMessages[state.Step]
	if !ok {
		msg = string(state.Step)
	}
	if state.Step == orchestrator.StepMonitoring && state.Progress != nil && state.Progress.Max > 0 {
		msg = fmt.Sprintf("Waiting for confirmation (attempt %d/%d)...", state.Progress.Attempt, state.Progress.Max)
	}

	if p.prompts && promptSteps[state.Step] {
		p.spinner.Stop()
		color.Cyan("\n%s", msg)
		return
	}

	p.spinner.Lock()
	p.spinner.Suffix = " " + msg
	p.spinner.Unlock()
	if !p.spinner.Active() {
		p.spinner.Start()
	}
}

func swapOutput(state orchestrator.State) map[string]interface{} {
	output := map[string]interface{}{
		"attempt_id":     state.AttemptID,
		"status":         string(state.Step),
		"transaction_id": state.TransactionID,
	}
	if state.Err != nil {
		output["error_kind"] = state.Err.Kind.String()
		output["error"] = state.Err.UserMessage()
		if state.Err.Code != "" {
			output["code"] = state.Err.Code
		}
	}
	if state.Status != nil {
		output["result"] = state.Status
	}
	return output
}

func displayQuote(route validator.Accepted, from, to types.Token, amount *big.Int, settings types.SwapSettings) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                     SWAP QUOTE")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  From:              %s %s\n", from.FormatAmount(decimal.NewFromBigInt(amount, 0)), color.YellowString(from.Symbol))
	fmt.Printf("  To:                ~%s %s\n", route.FormattedOutput, color.YellowString(to.Symbol))
	fmt.Printf("  Aggregator:        %s\n", strings.Join(route.Route.AggregatorIDs, ", "))
	fmt.Printf("  Hops:              %d\n", route.Hops())
	fmt.Printf("  Price Impact:      %s%%\n", route.Route.PriceImpact.StringFixed(2))
	fmt.Printf("  Slippage:          %s%%\n", settings.SlippagePercent.String())
	fmt.Printf("  Deadline:          %s\n", settings.Deadline.Format(time.RFC3339))

	for _, w := range route.Warnings {
		color.Yellow("  Warning: %s", w)
	}

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func displayOutcome(state orchestrator.State, cfg *config.Config, logger *zap.Logger) {
	if state.Step == orchestrator.StepSuccess {
		color.Green("\nSwap confirmed!")
		fmt.Printf("  Transaction ID: %s\n", color.CyanString(state.TransactionID))
		fmt.Printf("  Explorer:       %s\n\n", explorerURL(cfg.Network, state.TransactionID))
		return
	}

	if state.Err != nil {
		color.Red("\n%s", state.Err.UserMessage())
		logger.Debug("swap failed", zap.Error(state.Err))
	}
	if state.TransactionID != "" {
		fmt.Printf("  Transaction ID: %s\n", color.CyanString(state.TransactionID))
		fmt.Println("\nYou can check the swap status using:")
		color.Cyan("  hedera-swap status %s\n", state.TransactionID)
	}
	if state.Err != nil && state.Err.Retryable() {
		fmt.Println("\nThe swap can be retried safely.")
	}
}

func explorerURL(network, txID string) string {
	return fmt.Sprintf("https://hashscan.io/%s/transaction/%s", network, txID)
}

func confirmSwap() bool {
	fmt.Print("\nProceed with swap? (y/N): ")

	response, err := stdin.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
