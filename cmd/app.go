package cmd

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hedera-swap/config"
	"hedera-swap/pkg/client"
	"hedera-swap/pkg/metrics"
	"hedera-swap/pkg/monitor"
	"hedera-swap/pkg/precondition"
	"hedera-swap/pkg/types"
	"hedera-swap/pkg/validator"
)

// app holds the components shared by the commands
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	metrics   *metrics.Recorder
	quotes    *client.QuoteClient
	mirror    *client.MirrorClient
	validator *validator.Validator
	monitor   *monitor.Monitor
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := newLogger(cmd)
	recorder := metrics.NewRecorder("")
	mirror := client.NewMirrorClient(cfg.MirrorURL, cfg.HTTPTimeout, logger)

	vcfg, err := validatorConfig(cfg)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		metrics:   recorder,
		quotes:    client.NewQuoteClient(cfg.QuoteURL, cfg.HTTPTimeout, logger),
		mirror:    mirror,
		validator: validator.New(vcfg, mirror, logger),
		monitor:   monitor.New(monitorConfig(cfg), mirror, recorder, logger),
	}, nil
}

// close flushes metrics and logs
func (a *app) close() {
	if a.cfg.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(a.cfg.MetricsFile, a.metrics.Registry()); err != nil {
			a.logger.Warn("failed to write metrics", zap.String("file", a.cfg.MetricsFile), zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func monitorConfig(cfg *config.Config) monitor.Config {
	return monitor.Config{
		InitialDelay:    cfg.Monitor.InitialDelay,
		InitialInterval: cfg.Monitor.InitialInterval,
		Multiplier:      cfg.Monitor.Multiplier,
		MaxInterval:     cfg.Monitor.MaxInterval,
		MaxAttempts:     cfg.Monitor.MaxAttempts,
	}
}

func validatorConfig(cfg *config.Config) (validator.Config, error) {
	blocked, err := parseAddresses(cfg.BlockedTokens)
	if err != nil {
		return validator.Config{}, fmt.Errorf("blocked_tokens: %w", err)
	}
	trusted, err := parseAddresses(cfg.TrustedTokens)
	if err != nil {
		return validator.Config{}, fmt.Errorf("trusted_tokens: %w", err)
	}
	wrapped, err := types.TokenIDToAddress(cfg.WrappedNativeID)
	if err != nil {
		return validator.Config{}, fmt.Errorf("wrapped_native_id: %w", err)
	}

	return validator.Config{
		Aggregators:    cfg.Aggregators,
		BlockedTokens:  blocked,
		TrustedTokens:  append(trusted, wrapped),
		MaxHops:        cfg.MaxHops,
		MaxPriceImpact: cfg.MaxPriceImpact,
		WrappedNative:  wrapped,
	}, nil
}

func parseAddresses(values []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(values))
	for _, v := range values {
		addr, err := client.ParseAddress(v)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

func participant(id string) (precondition.Participant, error) {
	addr, err := types.TokenIDToAddress(id)
	if err != nil {
		return precondition.Participant{}, err
	}
	return precondition.Participant{ID: id, Address: addr}, nil
}

// resolvePair looks both tokens up in the quote service catalog and converts the amount to raw units
func (a *app) resolvePair(ctx context.Context, req *types.SwapRequest) (types.Token, types.Token, *big.Int, error) {
	tokens, err := a.quotes.Tokens(ctx)
	if err != nil {
		return types.Token{}, types.Token{}, nil, err
	}

	from, err := lookupToken(tokens, req.SourceToken)
	if err != nil {
		return types.Token{}, types.Token{}, nil, fmt.Errorf("source token error: %w", err)
	}
	to, err := lookupToken(tokens, req.DestToken)
	if err != nil {
		return types.Token{}, types.Token{}, nil, fmt.Errorf("destination token error: %w", err)
	}

	raw, err := from.ParseAmount(req.Amount)
	if err != nil {
		return types.Token{}, types.Token{}, nil, err
	}
	return from, to, raw.BigInt(), nil
}

func lookupToken(tokens []types.Token, ref string) (types.Token, error) {
	if strings.Count(ref, ".") == 2 {
		for _, t := range tokens {
			if t.ID == ref {
				return t, nil
			}
		}
		return types.Token{}, fmt.Errorf("token '%s' is not routable", ref)
	}
	return client.MatchToken(tokens, ref)
}

// quoteAndValidate fetches routes for the pair and filters them through the validator
func (a *app) quoteAndValidate(ctx context.Context, from, to types.Token, amount *big.Int, settings types.SwapSettings) ([]types.Route, *validator.Result, error) {
	routes, err := a.quotes.Routes(ctx, from, to, amount)
	if err != nil {
		return nil, nil, err
	}
	if len(routes) == 0 {
		return nil, nil, fmt.Errorf("no routes available for %s to %s", from.Symbol, to.Symbol)
	}

	slippage := settings.SlippagePercent
	result := a.validator.Validate(ctx, routes, from, to, validator.Options{
		SlippageTolerance: &slippage,
		Auto:              settings.Auto,
	})
	return routes, result, nil
}
