package txbuilder

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"hedera-swap/pkg/types"
	"hedera-swap/pkg/validator"
)

// DefaultFeeTier is the pool fee (hundredths of a basis point) used when a route carries no fee tiers
const DefaultFeeTier = 3000

const routerABIJSON = `[{
	"type":"function","name":"swap","stateMutability":"payable",
	"inputs":[
		{"name":"aggregatorId","type":"string"},
		{"name":"path","type":"bytes"},
		{"name":"amountFrom","type":"uint256"},
		{"name":"amountTo","type":"uint256"},
		{"name":"deadline","type":"uint256"},
		{"name":"isTokenFromHBAR","type":"bool"},
		{"name":"feeOnTransfer","type":"bool"}
	],
	"outputs":[]
}]`

var routerABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(routerABIJSON))
	if err != nil {
		panic(fmt.Sprintf("invalid router ABI: %v", err))
	}
	routerABI = parsed
}

var (
	ErrNotValidated = errors.New("route was not produced by the validator")
	ErrNoAggregator = errors.New("route has no resolved aggregator")
	ErrNoAmount     = errors.New("route has no input amount")
)

// Config holds the contract addresses the builder targets
type Config struct {
	Router        common.Address
	WrappedNative common.Address
}

// Builder turns validated routes into unsigned router calls
type Builder struct {
	cfg Config
}

// New creates a new transaction builder
func New(cfg Config) *Builder {
	return &Builder{cfg: cfg}
}

// Build encodes the router swap call for route. Output is a pure function of its inputs.
func (b *Builder) Build(route validator.Accepted, from, to types.Token, settings types.SwapSettings, payer string) (*types.UnsignedTx, error) {
	if !route.Validated() {
		return nil, ErrNotValidated
	}
	agg, ok := route.Primary()
	if !ok {
		return nil, ErrNoAggregator
	}
	r := route.Route
	if r.AmountIn == nil || r.AmountIn.Sign() <= 0 {
		return nil, ErrNoAmount
	}
	if b.cfg.Router == (common.Address{}) {
		return nil, fmt.Errorf("router address not configured")
	}

	path, err := b.EncodePath(r, agg, from, to)
	if err != nil {
		return nil, err
	}

	minOut := MinOutput(r.TotalOut(), settings.SlippageBasisPoints())
	deadline := big.NewInt(settings.Deadline.Unix())

	data, err := routerABI.Pack("swap",
		agg.RouterKey(),
		path,
		new(big.Int).Set(r.AmountIn),
		minOut,
		deadline,
		from.IsNative(),
		settings.FeeOnTransfer,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to encode swap call: %w", err)
	}

	tx := &types.UnsignedTx{
		Kind: types.TxSwap,
		From: payer,
		To:   b.cfg.Router,
		Data: data,
		Gas:  GasLimit(r.GasEstimate),
		Mode: types.SignDetached,
		Memo: fmt.Sprintf("swap %s %s to %s via %s",
			from.FormatAmount(decimal.NewFromBigInt(r.AmountIn, 0)), from.Symbol, to.Symbol, agg),
	}
	if from.IsNative() {
		tx.Value = new(big.Int).Set(r.AmountIn)
		tx.Mode = types.SignBound
	}
	return tx, nil
}

// MinOutput applies slippage in basis points with floor rounding on the deduction
func MinOutput(out *big.Int, bps int64) *big.Int {
	if out == nil {
		return new(big.Int)
	}
	cut := new(big.Int).Mul(out, big.NewInt(bps))
	cut.Quo(cut, big.NewInt(10_000))
	return new(big.Int).Sub(out, cut)
}

// GasLimit inflates an estimate by 50%, capped at the network maximum
func GasLimit(estimate uint64) uint64 {
	gas := estimate * 3 / 2
	if gas > types.MaxGasPerTransaction {
		return types.MaxGasPerTransaction
	}
	return gas
}
