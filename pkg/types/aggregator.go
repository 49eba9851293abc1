package types

import (
	"fmt"
	"strings"
)

// PathEncoding describes how a hop path is laid out for a pool family
type PathEncoding int

const (
	// PathAddressesOnly concatenates 20-byte token addresses (constant-product pools)
	PathAddressesOnly PathEncoding = iota
	// PathWithFees interleaves a 3-byte fee tier between addresses (concentrated liquidity pools)
	PathWithFees
)

// Aggregator is a liquidity-routing integration the router contract can execute through
type Aggregator int

const (
	AggregatorUnknown Aggregator = iota
	SaucerSwapV1
	SaucerSwapV2
	Pangolin
	HeliSwap
)

type aggregatorInfo struct {
	key      string
	encoding PathEncoding
}

var aggregators = map[Aggregator]aggregatorInfo{
	SaucerSwapV1: {key: "SaucerSwapV1", encoding: PathAddressesOnly},
	SaucerSwapV2: {key: "SaucerSwapV2", encoding: PathWithFees},
	Pangolin:     {key: "Pangolin", encoding: PathAddressesOnly},
	HeliSwap:     {key: "HeliSwap", encoding: PathAddressesOnly},
}

// String returns the router key of the aggregator
func (a Aggregator) String() string {
	if info, ok := aggregators[a]; ok {
		return info.key
	}
	return "unknown"
}

// RouterKey is the aggregator id string passed to the router contract
func (a Aggregator) RouterKey() string {
	return a.String()
}

// PathEncoding returns how this aggregator expects its hop path encoded
func (a Aggregator) PathEncoding() PathEncoding {
	return aggregators[a].encoding
}

// ParseAggregator resolves an aggregator id into its variant. Quote services append
// execution-mode suffixes (e.g. "SaucerSwapV2_EXACT2"); the suffix does not change routing.
func ParseAggregator(id string) (Aggregator, error) {
	base := strings.TrimSpace(id)
	if i := strings.Index(base, "_"); i > 0 {
		base = base[:i]
	}
	for agg, info := range aggregators {
		if strings.EqualFold(info.key, base) {
			return agg, nil
		}
	}
	return AggregatorUnknown, fmt.Errorf("unknown aggregator %q", id)
}

// AllAggregators returns every known variant
func AllAggregators() []Aggregator {
	return []Aggregator{SaucerSwapV1, SaucerSwapV2, Pangolin, HeliSwap}
}
