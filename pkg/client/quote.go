package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"hedera-swap/pkg/logging"
	"hedera-swap/pkg/types"
)

// QuoteClient fetches candidate routes and the token list from the quote service
type QuoteClient struct {
	rest   restClient
	logger *zap.Logger
}

// NewQuoteClient creates a new quote service client
func NewQuoteClient(baseURL string, timeout time.Duration, logger *zap.Logger) *QuoteClient {
	logger = logging.OrNop(logger).Named("quote")
	return &QuoteClient{
		rest:   newRestClient(baseURL, timeout, logger),
		logger: logger,
	}
}

// flexStrings accepts either "a" or ["a", "b"]
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*f = list
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s != "" {
		*f = []string{s}
	}
	return nil
}

// flexAmounts accepts an integer amount as a string, a number, or a list of either
type flexAmounts []*big.Int

func (f *flexAmounts) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	var raw []json.RawMessage
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	} else {
		raw = []json.RawMessage{data}
	}

	out := make([]*big.Int, 0, len(raw))
	for _, r := range raw {
		n, err := parseAmount(r)
		if err != nil {
			return err
		}
		out = append(out, n)
	}
	*f = out
	return nil
}

func parseAmount(raw json.RawMessage) (*big.Int, error) {
	text := strings.Trim(string(bytes.TrimSpace(raw)), `"`)
	n, ok := new(big.Int).SetString(text, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %s", raw)
	}
	return n, nil
}

type routeResponse struct {
	AggregatorID    flexStrings     `json:"aggregatorId"`
	Path            string          `json:"path"`
	Route           []string        `json:"route"`
	Fees            []uint32        `json:"fees"`
	AmountFrom      flexAmounts     `json:"amountFrom"`
	AmountTo        flexAmounts     `json:"amountTo"`
	GasEstimate     uint64          `json:"gasEstimate"`
	PriceImpact     decimal.Decimal `json:"priceImpact"`
	TransactionType string          `json:"transactionType"`
}

// Routes asks for candidate routes swapping amount (raw units) of from into to.
// Routes are returned as data only; nothing about them is trusted.
func (c *QuoteClient) Routes(ctx context.Context, from, to types.Token, amount *big.Int) ([]types.Route, error) {
	fromAddr, err := from.EVMAddress()
	if err != nil {
		return nil, fmt.Errorf("source token: %w", err)
	}
	toAddr, err := to.EVMAddress()
	if err != nil {
		return nil, fmt.Errorf("destination token: %w", err)
	}

	query := url.Values{
		"tokenFrom": {fromAddr.Hex()},
		"tokenTo":   {toAddr.Hex()},
		"amount":    {amount.String()},
	}

	var resp []routeResponse
	if err := c.rest.getJSON(ctx, "/api/v1/rates", query, &resp); err != nil {
		return nil, fmt.Errorf("failed to get rates: %w", err)
	}

	routes := make([]types.Route, 0, len(resp))
	for i, r := range resp {
		route, err := r.toRoute(amount)
		if err != nil {
			c.logger.Warn("skipping malformed route", zap.Int("index", i), zap.Error(err))
			continue
		}
		routes = append(routes, route)
	}

	c.logger.Debug("routes received", zap.Int("count", len(routes)))
	return routes, nil
}

func (r routeResponse) toRoute(requested *big.Int) (types.Route, error) {
	route := types.Route{
		AggregatorIDs: []string(r.AggregatorID),
		Fees:          r.Fees,
		AmountsOut:    []*big.Int(r.AmountTo),
		GasEstimate:   r.GasEstimate,
		// the service reports expected-minus-actual value, so a gain is negative on the wire
		PriceImpact: r.PriceImpact.Neg(),
		Shape:       types.TxShape(strings.ToUpper(r.TransactionType)),
	}

	switch len(r.AmountFrom) {
	case 0:
		route.AmountIn = new(big.Int).Set(requested)
	default:
		total := new(big.Int)
		for _, n := range r.AmountFrom {
			total.Add(total, n)
		}
		route.AmountIn = total
	}

	for _, hop := range r.Route {
		addr, err := ParseAddress(hop)
		if err != nil {
			return types.Route{}, fmt.Errorf("route hop %q: %w", hop, err)
		}
		route.Path = append(route.Path, addr)
	}

	if r.Path != "" {
		encoded, err := hexutil.Decode(ensureHexPrefix(r.Path))
		if err != nil {
			return types.Route{}, fmt.Errorf("invalid path encoding: %w", err)
		}
		route.EncodedPath = encoded
	}
	return route, nil
}

type tokenListEntry struct {
	ID              string          `json:"id"`
	SolidityAddress string          `json:"solidityAddress"`
	Symbol          string          `json:"symbol"`
	Decimals        int32           `json:"decimals"`
	PriceUSD        decimal.Decimal `json:"priceUsd"`
}

// Tokens returns the tokens the quote service can route
func (c *QuoteClient) Tokens(ctx context.Context) ([]types.Token, error) {
	var resp []tokenListEntry
	if err := c.rest.getJSON(ctx, "/api/v1/tokens", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to get tokens: %w", err)
	}

	tokens := make([]types.Token, 0, len(resp))
	for _, t := range resp {
		token := types.Token{ID: t.ID, Symbol: t.Symbol, Decimals: t.Decimals, PriceUSD: t.PriceUSD}
		if t.SolidityAddress != "" {
			addr, err := ParseAddress(t.SolidityAddress)
			if err != nil {
				c.logger.Warn("skipping token with invalid address", zap.String("symbol", t.Symbol), zap.Error(err))
				continue
			}
			token.Address = addr
		}
		if token.ID == "" && token.Address == (common.Address{}) {
			token = types.HBAR
			token.PriceUSD = t.PriceUSD
		}
		if token.ID == "" {
			token.ID = types.AddressToTokenID(token.Address)
		}
		tokens = append(tokens, token)
	}
	return tokens, nil
}

// FindToken resolves a symbol against the token list. The native asset always resolves.
func (c *QuoteClient) FindToken(ctx context.Context, symbol string) (types.Token, error) {
	tokens, err := c.Tokens(ctx)
	if err != nil {
		return types.Token{}, err
	}
	return MatchToken(tokens, symbol)
}

// MatchToken finds symbol in tokens, case-insensitively. Ambiguous symbols are an error.
func MatchToken(tokens []types.Token, symbol string) (types.Token, error) {
	var matches []types.Token
	for _, t := range tokens {
		if strings.EqualFold(t.Symbol, symbol) {
			matches = append(matches, t)
		}
	}

	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		if strings.EqualFold(symbol, types.NativeSymbol) {
			return types.HBAR, nil
		}
		return types.Token{}, fmt.Errorf("token '%s' not found", symbol)
	default:
		ids := make([]string, len(matches))
		for i, m := range matches {
			ids[i] = m.ID
		}
		return types.Token{}, fmt.Errorf("token '%s' is ambiguous: %s", symbol, strings.Join(ids, ", "))
	}
}

// ParseAddress accepts a 0x address, a bare hex address or a 0.0.N entity id
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if strings.Count(s, ".") == 2 {
		return types.TokenIDToAddress(s)
	}
	s = ensureHexPrefix(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

func ensureHexPrefix(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s
	}
	return "0x" + s
}
