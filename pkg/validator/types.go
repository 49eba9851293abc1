package validator

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"hedera-swap/pkg/types"
)

// Reason is why a route was rejected
type Reason int

const (
	ReasonBlockedToken Reason = iota + 1
	ReasonUntrustedAggregator
	ReasonUnknownShape
	ReasonTooManyHops
	ReasonEndpointMismatch
	ReasonNonPositiveOutput
	ReasonImplausibleCost
	ReasonUnknownToken
	ReasonPriceImpact
	ReasonSlippage
	ReasonMalformedPath
)

var reasonNames = map[Reason]string{
	ReasonBlockedToken:        "blocked_token",
	ReasonUntrustedAggregator: "untrusted_aggregator",
	ReasonUnknownShape:        "unknown_shape",
	ReasonTooManyHops:         "too_many_hops",
	ReasonEndpointMismatch:    "endpoint_mismatch",
	ReasonNonPositiveOutput:   "non_positive_output",
	ReasonImplausibleCost:     "implausible_cost",
	ReasonUnknownToken:        "unknown_token",
	ReasonPriceImpact:         "price_impact",
	ReasonSlippage:            "slippage",
	ReasonMalformedPath:       "malformed_path",
}

func (r Reason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return "unknown"
}

// Rejection records one route that did not pass
type Rejection struct {
	Index  int
	Route  types.Route
	Reason Reason
	Detail string
}

// Accepted is a route that passed validation, annotated for display and execution.
// Only the validator produces values with Validated() == true.
type Accepted struct {
	Route       types.Route
	Aggregators []types.Aggregator
	// Path is the token sequence the router will trade through
	Path            []common.Address
	FormattedOutput string
	DerivedImpact   *decimal.Decimal
	Relaxed         bool
	Warnings        []string

	validated bool
}

// Validated reports whether the value came out of Validate
func (a Accepted) Validated() bool {
	return a.validated
}

// Hops is the number of legs the router executes
func (a Accepted) Hops() int {
	if len(a.Path) < 2 {
		return a.Route.Hops()
	}
	return len(a.Path) - 1
}

// Primary returns the aggregator that executes the route, if it resolved
func (a Accepted) Primary() (types.Aggregator, bool) {
	if len(a.Aggregators) == 0 {
		return types.AggregatorUnknown, false
	}
	return a.Aggregators[0], true
}

// Result is the outcome of validating a batch of candidate routes
type Result struct {
	Accepted []Accepted
	Rejected []Rejection
}

// Best returns the highest-output accepted route
func (r *Result) Best() (Accepted, bool) {
	if r == nil || len(r.Accepted) == 0 {
		return Accepted{}, false
	}
	return r.Accepted[0], true
}

func (r *Result) reject(i int, route types.Route, reason Reason, detail string) {
	r.Rejected = append(r.Rejected, Rejection{Index: i, Route: route, Reason: reason, Detail: detail})
}
