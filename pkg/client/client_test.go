package client

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hedera-swap/pkg/monitor"
	"hedera-swap/pkg/types"
)

func serve(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path
		if r.URL.RawQuery != "" {
			key += "?" + r.URL.RawQuery
		}
		body, ok := routes[key]
		if !ok {
			body, ok = routes[r.URL.Path]
		}
		if !ok {
			http.NotFound(w, r)
			return
		}
		if body == "500" {
			http.Error(w, "upstream down", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

var sauce = types.Token{ID: "0.0.731861", Symbol: "SAUCE", Decimals: 6}

func TestQuoteRoutes(t *testing.T) {
	srv := serve(t, map[string]string{
		"/api/v1/rates": `[
			{"aggregatorId":"SaucerSwapV2","path":"0x0000000000000000000000000000000000163b5a000bb800000000000000000000000000000000000b2ad5",
			 "amountFrom":"100000000","amountTo":"2500000","gasEstimate":250000,"priceImpact":-1.5,"transactionType":"SWAP"},
			{"aggregatorId":["SaucerSwapV1","Pangolin"],"route":["0.0.1456986","0x00000000000000000000000000000000000b2ad5"],
			 "amountTo":["1000000",1500000],"gasEstimate":"bad"}
		]`,
	})

	c := NewQuoteClient(srv.URL, 0, nil)
	_, err := c.Routes(context.Background(), types.HBAR, sauce, big.NewInt(100_000_000))
	require.Error(t, err, "malformed gasEstimate fails the whole decode")

	srv = serve(t, map[string]string{
		"/api/v1/rates": `[
			{"aggregatorId":"SaucerSwapV2","path":"0x0000000000000000000000000000000000163b5a000bb800000000000000000000000000000000000b2ad5",
			 "amountFrom":"100000000","amountTo":"2500000","gasEstimate":250000,"priceImpact":-1.5,"transactionType":"SWAP"},
			{"aggregatorId":["SaucerSwapV1","Pangolin"],"route":["0.0.1456986","0x00000000000000000000000000000000000b2ad5"],
			 "amountTo":["1000000",1500000],"gasEstimate":300000,"transactionType":"split_swap"},
			{"aggregatorId":"HeliSwap","route":["not-an-address"],"amountTo":"1","gasEstimate":1}
		]`,
	})
	c = NewQuoteClient(srv.URL, 0, nil)

	routes, err := c.Routes(context.Background(), types.HBAR, sauce, big.NewInt(100_000_000))
	require.NoError(t, err)
	require.Len(t, routes, 2)

	first := routes[0]
	assert.Equal(t, []string{"SaucerSwapV2"}, first.AggregatorIDs)
	assert.Len(t, first.EncodedPath, 43)
	assert.Equal(t, int64(100_000_000), first.AmountIn.Int64())
	assert.Equal(t, "1.5", first.PriceImpact.String())
	assert.Equal(t, types.ShapeSwap, first.Shape)

	split := routes[1]
	assert.Equal(t, []string{"SaucerSwapV1", "Pangolin"}, split.AggregatorIDs)
	assert.Equal(t, int64(2_500_000), split.TotalOut().Int64())
	assert.Equal(t, int64(100_000_000), split.AmountIn.Int64())
	assert.Equal(t, types.ShapeSplitSwap, split.Shape)
	assert.Equal(t, common.HexToAddress("0x0000000000000000000000000000000000163b5a"), split.Path[0])
}

func TestQuoteTokens(t *testing.T) {
	srv := serve(t, map[string]string{
		"/api/v1/tokens": `[
			{"solidityAddress":"0x0000000000000000000000000000000000000000","symbol":"HBAR","decimals":8,"priceUsd":"0.07"},
			{"id":"0.0.731861","solidityAddress":"0x00000000000000000000000000000000000b2ad5","symbol":"SAUCE","decimals":6,"priceUsd":0.012},
			{"solidityAddress":"0x000000000000000000000000000000000006f89a","symbol":"USDC","decimals":6,"priceUsd":1},
			{"id":"0.0.1","symbol":"DUP","decimals":0},
			{"id":"0.0.2","symbol":"dup","decimals":0}
		]`,
	})
	c := NewQuoteClient(srv.URL, 0, nil)

	hbar, err := c.FindToken(context.Background(), "hbar")
	require.NoError(t, err)
	assert.True(t, hbar.IsNative())
	assert.Equal(t, "0.07", hbar.PriceUSD.String())

	usdc, err := c.FindToken(context.Background(), "USDC")
	require.NoError(t, err)
	assert.Equal(t, "0.0.456858", usdc.ID)

	_, err = c.FindToken(context.Background(), "DUP")
	require.ErrorContains(t, err, "ambiguous")

	_, err = c.FindToken(context.Background(), "NOPE")
	require.ErrorContains(t, err, "not found")
}

func TestMirrorAccountState(t *testing.T) {
	srv := serve(t, map[string]string{
		"/api/v1/accounts/0.0.1234/tokens?token.id=0.0.731861": `{"tokens":[{"token_id":"0.0.731861","balance":5}]}`,
		"/api/v1/accounts/0.0.1234/tokens":                     `{"tokens":[]}`,
		"/api/v1/accounts/0.0.1234/allowances/tokens":          `{"allowances":[{"amount":123456789012345678,"spender":"0.0.3949434","token_id":"0.0.731861"}]}`,
		"/api/v1/accounts/0.0.9/tokens":                        "500",
	})
	c := NewMirrorClient(srv.URL, 0, nil)
	ctx := context.Background()

	ok, err := c.IsAssociated(ctx, "0.0.1234", "0.0.731861")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.IsAssociated(ctx, "0.0.1234", "0.0.456858")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.IsAssociated(ctx, "0.0.9", "0.0.456858")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)

	amount, err := c.Allowance(ctx, "0.0.1234", "0.0.3949434", "0.0.731861")
	require.NoError(t, err)
	assert.Equal(t, "123456789012345678", amount.String())

	amount, err = c.Allowance(ctx, "0.0.1234", "0.0.1", "0.0.731861")
	require.NoError(t, err)
	assert.Zero(t, amount.Sign())
}

func TestMirrorTokenExists(t *testing.T) {
	srv := serve(t, map[string]string{
		"/api/v1/tokens/0.0.731861": `{"token_id":"0.0.731861","symbol":"SAUCE","decimals":"6"}`,
	})
	c := NewMirrorClient(srv.URL, 0, nil)

	ok, err := c.TokenExists(context.Background(), common.HexToAddress("0x00000000000000000000000000000000000b2ad5"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.TokenExists(context.Background(), common.HexToAddress("0x00000000000000000000000000000000000f423f"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMirrorTransaction(t *testing.T) {
	revert := "0x08c379a0" +
		"0000000000000000000000000000000000000000000000000000000000000020" +
		"000000000000000000000000000000000000000000000000000000000000000f" +
		"536c69707061676520657863656564000000000000000000000000000000000000"[:64]
	srv := serve(t, map[string]string{
		"/api/v1/transactions/0.0.1234-1700000000-000000001": `{"transactions":[{"transaction_id":"0.0.1234-1700000000-000000001","result":"SUCCESS","consensus_timestamp":"1700000003.000000001"}]}`,
		"/api/v1/transactions/0.0.1234-1700000000-000000002": `{"transactions":[]}`,
		"/api/v1/contracts/results/0xfeed":                   `{"hash":"0xfeed","result":"CONTRACT_REVERT_EXECUTED","timestamp":"1700000004.1","error_message":"` + revert + `"}`,
	})
	c := NewMirrorClient(srv.URL, 0, nil)
	ctx := context.Background()

	rec, err := c.Transaction(ctx, "0.0.1234@1700000000.000000001")
	require.NoError(t, err)
	assert.Equal(t, types.ResultSuccess, rec.ResultCode)
	assert.Equal(t, "1700000003.000000001", rec.ConsensusTimestamp)

	_, err = c.Transaction(ctx, "0.0.1234@1700000000.000000002")
	require.True(t, errors.Is(err, monitor.ErrNotFound))

	_, err = c.Transaction(ctx, "0.0.1234@1700000000.000000003")
	require.True(t, errors.Is(err, monitor.ErrNotFound))

	rec, err = c.Transaction(ctx, "0xfeed")
	require.NoError(t, err)
	assert.Equal(t, "CONTRACT_REVERT_EXECUTED", rec.ResultCode)
	assert.Equal(t, "Slippage exceed", rec.ErrorMessage)

	_, err = c.Transaction(ctx, "0xbeef")
	require.True(t, errors.Is(err, monitor.ErrNotFound))
}

func TestMirrorTransactionID(t *testing.T) {
	assert.Equal(t, "0.0.1234-1700000000-000000001", MirrorTransactionID("0.0.1234@1700000000.000000001"))
	assert.Equal(t, "0.0.1234-1700000000-000000001", MirrorTransactionID("0.0.1234-1700000000-000000001"))
}

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress("0.0.731861")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000b2ad5"), addr)

	addr, err = ParseAddress("00000000000000000000000000000000000b2ad5")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000b2ad5"), addr)

	_, err = ParseAddress("0x1234")
	require.Error(t, err)
}
