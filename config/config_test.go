package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"hedera-swap/pkg/types"
)

func newViper(values map[string]any) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	for k, val := range values {
		v.Set(k, val)
	}
	return v
}

func TestDefaults(t *testing.T) {
	cfg, err := FromViper(newViper(nil))
	require.NoError(t, err)

	require.Equal(t, "mainnet", cfg.Network)
	require.Equal(t, int64(295), cfg.ChainID)
	require.Equal(t, "0.0.1456986", cfg.WrappedNativeID)
	require.Equal(t, "0.5", cfg.Slippage.String())
	require.Equal(t, "10", cfg.MaxPriceImpact.String())
	require.Equal(t, 3, cfg.MaxHops)
	require.Equal(t, 20*time.Minute, cfg.Deadline)
	require.Equal(t, 2*time.Second, cfg.SettleDelay)
	require.Equal(t, 12, cfg.Monitor.MaxAttempts)
	require.Equal(t, 1.4, cfg.Monitor.Multiplier)
	require.Len(t, cfg.Aggregators, 4)
	require.Equal(t, types.SaucerSwapV2, cfg.Aggregators["SaucerSwapV2"])

	require.Error(t, cfg.RequireSigner())
}

func TestNetworkSelection(t *testing.T) {
	cfg, err := FromViper(newViper(map[string]any{"network": "Testnet", "mirror_url": "http://localhost:5551"}))
	require.NoError(t, err)
	require.Equal(t, int64(296), cfg.ChainID)
	require.Equal(t, "https://testnet.hashio.io/api", cfg.RelayURL)
	require.Equal(t, "http://localhost:5551", cfg.MirrorURL)

	_, err = FromViper(newViper(map[string]any{"network": "devnet"}))
	require.Error(t, err)
}

func TestUnknownAggregatorFailsLoad(t *testing.T) {
	_, err := FromViper(newViper(map[string]any{"aggregators": []string{"SaucerSwapV2", "ShadySwap"}}))
	require.ErrorContains(t, err, "ShadySwap")

	_, err = FromViper(newViper(map[string]any{"aggregators": []string{}}))
	require.Error(t, err)

	cfg, err := FromViper(newViper(map[string]any{"aggregators": []string{"SaucerSwapV2_EXACT2"}}))
	require.NoError(t, err)
	require.Equal(t, types.SaucerSwapV2, cfg.Aggregators["SaucerSwapV2_EXACT2"])
}

func TestAdapters(t *testing.T) {
	cfg, err := FromViper(newViper(map[string]any{"adapters": map[string]string{"SaucerSwapV2": "0.0.3949424"}}))
	require.NoError(t, err)
	require.Equal(t, "0.0.3949424", cfg.Adapters[types.SaucerSwapV2])

	_, err = FromViper(newViper(map[string]any{"adapters": map[string]string{"SaucerSwapV2": "router"}}))
	require.Error(t, err)
}

func TestStructValidation(t *testing.T) {
	_, err := FromViper(newViper(map[string]any{"max_hops": 0}))
	require.ErrorContains(t, err, "MaxHops")

	_, err = FromViper(newViper(map[string]any{"monitor.max_interval": time.Second}))
	require.ErrorContains(t, err, "MaxInterval")

	_, err = FromViper(newViper(map[string]any{"quote_url": "not a url"}))
	require.ErrorContains(t, err, "QuoteURL")

	_, err = FromViper(newViper(map[string]any{"max_price_impact": "0"}))
	require.Error(t, err)
}

func TestParseSlippage(t *testing.T) {
	d, err := ParseSlippage("1%")
	require.NoError(t, err)
	require.Equal(t, "1", d.String())

	_, err = ParseSlippage("100")
	require.Error(t, err)
	_, err = ParseSlippage("-1")
	require.Error(t, err)
	_, err = ParseSlippage("abc")
	require.Error(t, err)
}

func TestRequireSigner(t *testing.T) {
	cfg, err := FromViper(newViper(map[string]any{
		"account_id":  "0.0.1234",
		"private_key": "0xabc",
		"router_id":   "0.0.3949434",
	}))
	require.NoError(t, err)
	require.NoError(t, cfg.RequireSigner())
}
