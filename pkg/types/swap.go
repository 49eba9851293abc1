package types

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// SwapRequest represents a user's swap command
type SwapRequest struct {
	Amount      string
	SourceToken string
	DestToken   string
}

// TxShape is the transaction-shape tag a quote service attaches to a route
type TxShape string

const (
	ShapeSwap         TxShape = "SWAP"
	ShapeSplitSwap    TxShape = "SPLIT_SWAP"
	ShapeMultiHopSwap TxShape = "MULTI_HOP_SWAP"
)

// Known reports whether the shape is one the router can execute
func (s TxShape) Known() bool {
	switch s {
	case ShapeSwap, ShapeSplitSwap, ShapeMultiHopSwap:
		return true
	default:
		return false
	}
}

// Route is one candidate execution path returned by the quote service.
// Routes are never mutated after decoding.
type Route struct {
	AggregatorIDs []string         `json:"aggregatorIds"`
	Path          []common.Address `json:"path"`
	Fees          []uint32         `json:"fees,omitempty"`
	EncodedPath   []byte           `json:"encodedPath,omitempty"`
	AmountIn      *big.Int         `json:"amountIn"`
	AmountsOut    []*big.Int       `json:"amountsOut"`
	GasEstimate   uint64           `json:"gasEstimate"`
	PriceImpact   decimal.Decimal  `json:"priceImpact"` // signed percent, positive is favorable
	Shape         TxShape          `json:"shape"`
}

// TotalOut sums the declared output legs
func (r Route) TotalOut() *big.Int {
	total := new(big.Int)
	for _, out := range r.AmountsOut {
		if out != nil {
			total.Add(total, out)
		}
	}
	return total
}

// Hops returns the number of token-to-token legs. A route without a path is a direct hop.
func (r Route) Hops() int {
	if len(r.Path) < 2 {
		return 1
	}
	return len(r.Path) - 1
}

// SwapSettings are user-owned parameters fixed for one execution
type SwapSettings struct {
	SlippagePercent decimal.Decimal
	Deadline        time.Time
	Auto            bool
	FeeOnTransfer   bool
}

// SlippageBasisPoints converts the slippage percentage into integer basis points
func (s SwapSettings) SlippageBasisPoints() int64 {
	return s.SlippagePercent.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// Validate checks the settings are usable
func (s SwapSettings) Validate(now time.Time) error {
	bps := s.SlippageBasisPoints()
	if bps < 0 || bps >= 10000 {
		return fmt.Errorf("slippage %s%% out of range", s.SlippagePercent)
	}
	if s.Deadline.IsZero() {
		return fmt.Errorf("deadline is required")
	}
	if !s.Deadline.After(now) {
		return fmt.Errorf("deadline %s already passed", s.Deadline.Format(time.RFC3339))
	}
	return nil
}
