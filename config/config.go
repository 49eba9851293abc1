package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"gopkg.in/go-playground/validator.v9"

	"hedera-swap/pkg/types"
)

// network holds the per-network endpoints and well-known contracts
type network struct {
	chainID       int64
	relayURL      string
	mirrorURL     string
	wrappedNative string
}

var networks = map[string]network{
	"mainnet": {
		chainID:       295,
		relayURL:      "https://mainnet.hashio.io/api",
		mirrorURL:     "https://mainnet-public.mirrornode.hedera.com",
		wrappedNative: "0.0.1456986",
	},
	"testnet": {
		chainID:       296,
		relayURL:      "https://testnet.hashio.io/api",
		mirrorURL:     "https://testnet.mirrornode.hedera.com",
		wrappedNative: "0.0.15058",
	},
	"previewnet": {
		chainID:       297,
		relayURL:      "https://previewnet.hashio.io/api",
		mirrorURL:     "https://previewnet.mirrornode.hedera.com",
		wrappedNative: "0.0.15058",
	},
}

// MonitorConfig is the transaction polling schedule
type MonitorConfig struct {
	InitialDelay    time.Duration `validate:"gte=0"`
	InitialInterval time.Duration `validate:"gt=0"`
	Multiplier      float64       `validate:"gte=1"`
	MaxInterval     time.Duration `validate:"gtfield=InitialInterval"`
	MaxAttempts     int           `validate:"min=1,max=100"`
}

// Config holds the application configuration
type Config struct {
	Network    string `validate:"required,oneof=mainnet testnet previewnet"`
	ChainID    int64  `validate:"required"`
	AccountID  string
	PrivateKey string

	RelayURL  string `validate:"required,url"`
	MirrorURL string `validate:"required,url"`
	QuoteURL  string `validate:"required,url"`

	RouterID        string
	WrappedNativeID string `validate:"required"`
	// Adapters maps an aggregator to the contract that executes its hops
	Adapters map[types.Aggregator]string

	// Aggregators is the trusted allow-list, resolved at load
	Aggregators   map[string]types.Aggregator `validate:"required,min=1"`
	BlockedTokens []string
	TrustedTokens []string

	MaxHops        int             `validate:"min=1,max=8"`
	MaxPriceImpact decimal.Decimal `validate:"-"`
	Slippage       decimal.Decimal `validate:"-"`
	Deadline       time.Duration   `validate:"gt=0"`
	SettleDelay    time.Duration   `validate:"gte=0"`
	HTTPTimeout    time.Duration   `validate:"gt=0"`

	Monitor MonitorConfig

	// MetricsFile, when set, receives the metrics in Prometheus text format after each command
	MetricsFile string
}

var globalConfig *Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("network", "mainnet")
	v.SetDefault("quote_url", "https://api.etaswap.com")
	v.SetDefault("aggregators", []string{"SaucerSwapV1", "SaucerSwapV2", "Pangolin", "HeliSwap"})
	v.SetDefault("max_hops", 3)
	v.SetDefault("max_price_impact", "10")
	v.SetDefault("slippage", "0.5")
	v.SetDefault("deadline", 20*time.Minute)
	v.SetDefault("settle_delay", 2*time.Second)
	v.SetDefault("http_timeout", 10*time.Second)
	v.SetDefault("monitor.initial_delay", 4*time.Second)
	v.SetDefault("monitor.initial_interval", 2*time.Second)
	v.SetDefault("monitor.multiplier", 1.4)
	v.SetDefault("monitor.max_interval", 8*time.Second)
	v.SetDefault("monitor.max_attempts", 12)
}

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".hedera-swap")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME")
	v.AddConfigPath(".")

	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("HEDERA_SWAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional)
	_ = v.ReadInConfig()

	cfg, err := FromViper(v)
	if err != nil {
		return nil, err
	}
	globalConfig = cfg
	return cfg, nil
}

// FromViper builds and validates a Config from an already populated viper instance
func FromViper(v *viper.Viper) (*Config, error) {
	name := strings.ToLower(v.GetString("network"))
	net, ok := networks[name]
	if !ok {
		return nil, fmt.Errorf("unknown network %q (want mainnet, testnet or previewnet)", name)
	}

	cfg := &Config{
		Network:         name,
		ChainID:         net.chainID,
		AccountID:       v.GetString("account_id"),
		PrivateKey:      v.GetString("private_key"),
		RelayURL:        orDefault(v.GetString("relay_url"), net.relayURL),
		MirrorURL:       orDefault(v.GetString("mirror_url"), net.mirrorURL),
		QuoteURL:        v.GetString("quote_url"),
		RouterID:        v.GetString("router_id"),
		WrappedNativeID: orDefault(v.GetString("wrapped_native_id"), net.wrappedNative),
		BlockedTokens:   v.GetStringSlice("blocked_tokens"),
		TrustedTokens:   v.GetStringSlice("trusted_tokens"),
		MaxHops:         v.GetInt("max_hops"),
		Deadline:        v.GetDuration("deadline"),
		SettleDelay:     v.GetDuration("settle_delay"),
		HTTPTimeout:     v.GetDuration("http_timeout"),
		MetricsFile:     v.GetString("metrics_file"),
		Monitor: MonitorConfig{
			InitialDelay:    v.GetDuration("monitor.initial_delay"),
			InitialInterval: v.GetDuration("monitor.initial_interval"),
			Multiplier:      v.GetFloat64("monitor.multiplier"),
			MaxInterval:     v.GetDuration("monitor.max_interval"),
			MaxAttempts:     v.GetInt("monitor.max_attempts"),
		},
	}

	var err error
	if cfg.MaxPriceImpact, err = decimal.NewFromString(v.GetString("max_price_impact")); err != nil {
		return nil, fmt.Errorf("invalid max_price_impact: %w", err)
	}
	if !cfg.MaxPriceImpact.IsPositive() || cfg.MaxPriceImpact.GreaterThan(decimal.NewFromInt(100)) {
		return nil, fmt.Errorf("max_price_impact must be in (0, 100], got %s", cfg.MaxPriceImpact)
	}
	if cfg.Slippage, err = ParseSlippage(v.GetString("slippage")); err != nil {
		return nil, err
	}

	if cfg.Aggregators, err = ResolveAggregators(v.GetStringSlice("aggregators")); err != nil {
		return nil, err
	}
	if cfg.Adapters, err = resolveAdapters(v.GetStringMapString("adapters")); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ResolveAggregators turns allow-listed ids into aggregator variants. Unknown ids are an error.
func ResolveAggregators(ids []string) (map[string]types.Aggregator, error) {
	out := make(map[string]types.Aggregator, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		agg, err := types.ParseAggregator(id)
		if err != nil {
			return nil, fmt.Errorf("aggregators: %w", err)
		}
		out[id] = agg
	}
	return out, nil
}

func resolveAdapters(raw map[string]string) (map[types.Aggregator]string, error) {
	out := make(map[types.Aggregator]string, len(raw))
	for id, contract := range raw {
		agg, err := types.ParseAggregator(id)
		if err != nil {
			return nil, fmt.Errorf("adapters: %w", err)
		}
		if _, err := types.TokenIDToAddress(contract); err != nil {
			return nil, fmt.Errorf("adapters: %s: %w", id, err)
		}
		out[agg] = contract
	}
	return out, nil
}

// ParseSlippage parses a slippage percentage and checks it is in [0, 100)
func ParseSlippage(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid slippage %q: %w", s, err)
	}
	if d.IsNegative() || d.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		return decimal.Zero, fmt.Errorf("slippage must be in [0, 100), got %s", d)
	}
	return d, nil
}

// RequireSigner checks the settings needed to sign and submit transactions
func (c *Config) RequireSigner() error {
	var missing []string
	if c.AccountID == "" {
		missing = append(missing, "HEDERA_SWAP_ACCOUNT_ID")
	}
	if c.PrivateKey == "" {
		missing = append(missing, "HEDERA_SWAP_PRIVATE_KEY")
	}
	if c.RouterID == "" {
		missing = append(missing, "HEDERA_SWAP_ROUTER_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s not set. Please set the environment variables or add them to .hedera-swap.yaml", strings.Join(missing, ", "))
	}
	return nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	return globalConfig
}

// Set updates the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}
