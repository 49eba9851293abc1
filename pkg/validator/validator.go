package validator

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jellydator/ttlcache/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"hedera-swap/pkg/logging"
	"hedera-swap/pkg/types"
)

const (
	DefaultMaxGasEstimate = types.MaxGasPerTransaction
	DefaultMaxHops        = 3

	defaultExistenceTTL  = 24 * time.Hour
	defaultExistenceSize = 4096
)

// TokenCatalog answers whether a token exists on the ledger
type TokenCatalog interface {
	TokenExists(ctx context.Context, addr common.Address) (bool, error)
}

// Config holds the process-wide validation policy
type Config struct {
	// Aggregators is the trusted allow-list keyed by the id the quote service reports
	Aggregators    map[string]types.Aggregator
	BlockedTokens  []common.Address
	TrustedTokens  []common.Address
	MaxHops        int
	MaxPriceImpact decimal.Decimal
	MaxGasEstimate uint64
	// WrappedNative is accepted wherever the native asset is requested
	WrappedNative common.Address

	ExistenceCacheTTL  time.Duration
	ExistenceCacheSize uint64
}

// Options are the per-request knobs
type Options struct {
	// SlippageTolerance in percent; nil disables the unfavorable-impact check
	SlippageTolerance *decimal.Decimal
	Auto              bool
}

// Validator filters untrusted quote routes down to the ones that are safe to execute
type Validator struct {
	aggregators map[string]types.Aggregator
	blocked     map[common.Address]struct{}
	cfg         Config
	catalog     TokenCatalog
	exists      *ttlcache.Cache[common.Address, bool]
	logger      *zap.Logger
}

// New creates a validator. The catalog is consulted for every token not yet cached.
func New(cfg Config, catalog TokenCatalog, logger *zap.Logger) *Validator {
	if cfg.MaxHops <= 0 {
		cfg.MaxHops = DefaultMaxHops
	}
	if cfg.MaxGasEstimate == 0 {
		cfg.MaxGasEstimate = DefaultMaxGasEstimate
	}
	if cfg.ExistenceCacheTTL <= 0 {
		cfg.ExistenceCacheTTL = defaultExistenceTTL
	}
	if cfg.ExistenceCacheSize == 0 {
		cfg.ExistenceCacheSize = defaultExistenceSize
	}

	aggs := make(map[string]types.Aggregator, len(cfg.Aggregators))
	for id, agg := range cfg.Aggregators {
		aggs[strings.ToLower(id)] = agg
	}

	blocked := make(map[common.Address]struct{}, len(cfg.BlockedTokens))
	for _, addr := range cfg.BlockedTokens {
		blocked[addr] = struct{}{}
	}

	exists := ttlcache.New[common.Address, bool](
		ttlcache.WithTTL[common.Address, bool](cfg.ExistenceCacheTTL),
		ttlcache.WithCapacity[common.Address, bool](cfg.ExistenceCacheSize),
		ttlcache.WithDisableTouchOnHit[common.Address, bool](),
	)
	for _, addr := range cfg.TrustedTokens {
		exists.Set(addr, true, ttlcache.NoTTL)
	}

	return &Validator{
		aggregators: aggs,
		blocked:     blocked,
		cfg:         cfg,
		catalog:     catalog,
		exists:      exists,
		logger:      logging.OrNop(logger).Named("validator"),
	}
}

// Validate returns the accepted subset of routes, best output first
func (v *Validator) Validate(ctx context.Context, routes []types.Route, from, to types.Token, opts Options) *Result {
	result := &Result{}
	var passedBlockList []int

	paths := make([][]common.Address, len(routes))
	for i, route := range routes {
		path, err := v.hopPath(route, from, to)
		if err != nil {
			result.reject(i, route, ReasonMalformedPath, err.Error())
			continue
		}
		if addr, ok := v.blockedToken(path); ok {
			result.reject(i, route, ReasonBlockedToken, addr.Hex())
			continue
		}
		paths[i] = path
		passedBlockList = append(passedBlockList, i)

		accepted, rejection := v.check(ctx, route, path, from, to, opts)
		if rejection != nil {
			rejection.Index = i
			result.Rejected = append(result.Rejected, *rejection)
			v.logger.Debug("route rejected",
				zap.Int("index", i),
				zap.Strings("aggregators", route.AggregatorIDs),
				zap.Stringer("reason", rejection.Reason),
				zap.String("detail", rejection.Detail))
			continue
		}
		result.Accepted = append(result.Accepted, accepted)
	}

	if len(result.Accepted) == 0 && opts.Auto && len(passedBlockList) > 0 {
		best := passedBlockList[0]
		for _, i := range passedBlockList[1:] {
			if routes[i].TotalOut().Cmp(routes[best].TotalOut()) > 0 {
				best = i
			}
		}
		relaxed := v.annotate(routes[best], paths[best], from, to)
		relaxed.Relaxed = true
		relaxed.Warnings = append(relaxed.Warnings, "accepted under relaxed validation")
		result.Accepted = append(result.Accepted, relaxed)
		v.logger.Warn("no route passed validation, using relaxed fallback",
			zap.Int("index", best),
			zap.Strings("aggregators", routes[best].AggregatorIDs))
	}

	sort.SliceStable(result.Accepted, func(i, j int) bool {
		return result.Accepted[i].Route.TotalOut().Cmp(result.Accepted[j].Route.TotalOut()) > 0
	})

	return result
}

func (v *Validator) blockedToken(path []common.Address) (common.Address, bool) {
	for _, addr := range path {
		if _, ok := v.blocked[addr]; ok {
			return addr, true
		}
	}
	return common.Address{}, false
}

// hopPath returns the tokens the router will actually trade through. Encoded bytes are
// what the router receives, so they are decoded and must agree with any declared path.
// A route with neither is a direct hop between the requested tokens.
func (v *Validator) hopPath(route types.Route, from, to types.Token) ([]common.Address, error) {
	if len(route.EncodedPath) > 0 {
		decoded, err := v.decodePath(route)
		if err != nil {
			return nil, err
		}
		if len(route.Path) > 0 && !v.samePath(route.Path, decoded) {
			return nil, fmt.Errorf("declared path disagrees with encoded path")
		}
		return decoded, nil
	}
	if len(route.Path) > 0 {
		return route.Path, nil
	}

	src, err := from.EVMAddress()
	if err != nil {
		return nil, fmt.Errorf("source token: %w", err)
	}
	dst, err := to.EVMAddress()
	if err != nil {
		return nil, fmt.Errorf("destination token: %w", err)
	}
	return []common.Address{src, dst}, nil
}

// decodePath uses the layout of the executing aggregator. An aggregator outside the
// allow-list is rejected later, but its path is still decoded for the block-list.
func (v *Validator) decodePath(route types.Route) ([]common.Address, error) {
	if len(route.AggregatorIDs) > 0 {
		agg, ok := v.resolve(route.AggregatorIDs[0])
		if !ok {
			agg, _ = types.ParseAggregator(route.AggregatorIDs[0])
		}
		if agg != types.AggregatorUnknown {
			return types.DecodePath(route.EncodedPath, agg.PathEncoding())
		}
	}
	if hops, err := types.DecodePath(route.EncodedPath, types.PathWithFees); err == nil {
		return hops, nil
	}
	return types.DecodePath(route.EncodedPath, types.PathAddressesOnly)
}

// samePath compares hop by hop, treating the native pseudo-address and the wrapped-native token as one
func (v *Validator) samePath(declared, decoded []common.Address) bool {
	if len(declared) != len(decoded) {
		return false
	}
	for i := range declared {
		if v.canonical(declared[i]) != v.canonical(decoded[i]) {
			return false
		}
	}
	return true
}

func (v *Validator) canonical(addr common.Address) common.Address {
	if addr == types.NativeAddress && v.cfg.WrappedNative != (common.Address{}) {
		return v.cfg.WrappedNative
	}
	return addr
}

func (v *Validator) check(ctx context.Context, route types.Route, path []common.Address, from, to types.Token, opts Options) (Accepted, *Rejection) {
	reject := func(reason Reason, format string, args ...any) (Accepted, *Rejection) {
		return Accepted{}, &Rejection{Route: route, Reason: reason, Detail: fmt.Sprintf(format, args...)}
	}

	if len(route.AggregatorIDs) == 0 {
		return reject(ReasonUntrustedAggregator, "route has no aggregator")
	}
	aggs := make([]types.Aggregator, 0, len(route.AggregatorIDs))
	for _, id := range route.AggregatorIDs {
		agg, ok := v.resolve(id)
		if !ok {
			return reject(ReasonUntrustedAggregator, "aggregator %q not in allow-list", id)
		}
		aggs = append(aggs, agg)
	}

	if !route.Shape.Known() {
		return reject(ReasonUnknownShape, "transaction shape %q", route.Shape)
	}

	if len(path) < 2 {
		return reject(ReasonEndpointMismatch, "path has a single token")
	}
	if hops := len(path) - 1; hops > v.cfg.MaxHops {
		return reject(ReasonTooManyHops, "%d hops exceeds maximum %d", hops, v.cfg.MaxHops)
	}
	if !v.matches(path[0], from) {
		return reject(ReasonEndpointMismatch, "path starts at %s, want %s", path[0].Hex(), from.Symbol)
	}
	if !v.matches(path[len(path)-1], to) {
		return reject(ReasonEndpointMismatch, "path ends at %s, want %s", path[len(path)-1].Hex(), to.Symbol)
	}

	for _, out := range route.AmountsOut {
		if out == nil || out.Sign() < 0 {
			return reject(ReasonNonPositiveOutput, "output leg is missing or negative")
		}
	}
	if route.TotalOut().Sign() <= 0 {
		return reject(ReasonNonPositiveOutput, "declared output %s", route.TotalOut())
	}

	if route.GasEstimate == 0 || route.GasEstimate > v.cfg.MaxGasEstimate {
		return reject(ReasonImplausibleCost, "gas estimate %d", route.GasEstimate)
	}

	for _, addr := range routeTokens(path) {
		ok, err := v.tokenExists(ctx, addr)
		if err != nil {
			return reject(ReasonUnknownToken, "lookup %s: %v", addr.Hex(), err)
		}
		if !ok {
			return reject(ReasonUnknownToken, "token %s does not exist", addr.Hex())
		}
	}

	accepted := v.annotate(route, path, from, to)
	accepted.Aggregators = aggs

	impact := effectiveImpact(route.PriceImpact, accepted.DerivedImpact)
	if impact.Abs().GreaterThan(v.cfg.MaxPriceImpact) {
		if !opts.Auto {
			return reject(ReasonPriceImpact, "price impact %s%% exceeds %s%%", impact, v.cfg.MaxPriceImpact)
		}
		accepted.Warnings = append(accepted.Warnings, fmt.Sprintf("high price impact %s%%", impact))
	}
	if !opts.Auto && opts.SlippageTolerance != nil && impact.IsNegative() && impact.Abs().GreaterThan(*opts.SlippageTolerance) {
		return reject(ReasonSlippage, "unfavorable impact %s%% exceeds slippage %s%%", impact, *opts.SlippageTolerance)
	}

	return accepted, nil
}

func (v *Validator) annotate(route types.Route, path []common.Address, from, to types.Token) Accepted {
	accepted := Accepted{
		Route:           route,
		Path:            path,
		FormattedOutput: to.FormatAmount(decimal.NewFromBigInt(route.TotalOut(), 0)),
		validated:       true,
	}
	for _, id := range route.AggregatorIDs {
		if agg, ok := v.resolve(id); ok {
			accepted.Aggregators = append(accepted.Aggregators, agg)
		} else if agg, err := types.ParseAggregator(id); err == nil {
			accepted.Aggregators = append(accepted.Aggregators, agg)
		}
	}
	if impact, ok := DerivePriceImpact(route.AmountIn, route.TotalOut(), from, to); ok {
		accepted.DerivedImpact = &impact
	}
	return accepted
}

// resolve looks id up in the allow-list. Execution-mode suffixes ("SaucerSwapV2_EXACT2")
// resolve to their base entry.
func (v *Validator) resolve(id string) (types.Aggregator, bool) {
	key := strings.ToLower(strings.TrimSpace(id))
	if agg, ok := v.aggregators[key]; ok {
		return agg, true
	}
	if base, _, found := strings.Cut(key, "_"); found {
		agg, ok := v.aggregators[base]
		return agg, ok
	}
	return types.AggregatorUnknown, false
}

// matches compares a path endpoint to a requested token. The native asset also
// matches its pseudo-address and the wrapped-native token.
func (v *Validator) matches(endpoint common.Address, token types.Token) bool {
	if token.IsNative() {
		return endpoint == types.NativeAddress || (v.cfg.WrappedNative != (common.Address{}) && endpoint == v.cfg.WrappedNative)
	}
	addr, err := token.EVMAddress()
	return err == nil && addr == endpoint
}

func (v *Validator) tokenExists(ctx context.Context, addr common.Address) (bool, error) {
	if item := v.exists.Get(addr); item != nil {
		return item.Value(), nil
	}
	if v.catalog == nil {
		return false, fmt.Errorf("no token catalog configured")
	}
	ok, err := v.catalog.TokenExists(ctx, addr)
	if err != nil {
		return false, err
	}
	v.exists.Set(addr, ok, ttlcache.DefaultTTL)
	return ok, nil
}

// routeTokens lists the path's tokens that need an existence check
func routeTokens(path []common.Address) []common.Address {
	out := make([]common.Address, 0, len(path))
	for _, addr := range path {
		if addr != types.NativeAddress {
			out = append(out, addr)
		}
	}
	return out
}

// effectiveImpact prefers the derived impact when it is less favorable than what the quote declared
func effectiveImpact(declared decimal.Decimal, derived *decimal.Decimal) decimal.Decimal {
	if derived != nil && derived.LessThan(declared) {
		return *derived
	}
	return declared
}

// DerivePriceImpact estimates the signed impact in percent from USD prices.
// Positive means the output is worth more than the input.
func DerivePriceImpact(amountIn, amountOut *big.Int, from, to types.Token) (decimal.Decimal, bool) {
	if amountIn == nil || amountOut == nil || !from.PriceUSD.IsPositive() || !to.PriceUSD.IsPositive() {
		return decimal.Zero, false
	}
	valueIn := decimal.NewFromBigInt(amountIn, -from.Decimals).Mul(from.PriceUSD)
	if !valueIn.IsPositive() {
		return decimal.Zero, false
	}
	valueOut := decimal.NewFromBigInt(amountOut, -to.Decimals).Mul(to.PriceUSD)
	return valueOut.Sub(valueIn).Div(valueIn).Mul(decimal.NewFromInt(100)).Round(4), true
}
