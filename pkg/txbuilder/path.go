package txbuilder

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"hedera-swap/pkg/types"
)

const maxFeeTier = 1<<24 - 1

// EncodePath returns the hop path bytes for the router. Quote-supplied bytes are
// used verbatim; otherwise the path is encoded for the aggregator's pool family.
func (b *Builder) EncodePath(r types.Route, agg types.Aggregator, from, to types.Token) ([]byte, error) {
	if len(r.EncodedPath) > 0 {
		return append([]byte(nil), r.EncodedPath...), nil
	}

	var hops []common.Address
	if len(r.Path) >= 2 {
		hops = make([]common.Address, len(r.Path))
		for i, addr := range r.Path {
			resolved, err := b.resolve(addr)
			if err != nil {
				return nil, err
			}
			hops[i] = resolved
		}
	} else {
		src, err := b.tokenAddress(from)
		if err != nil {
			return nil, err
		}
		dst, err := b.tokenAddress(to)
		if err != nil {
			return nil, err
		}
		hops = []common.Address{src, dst}
	}

	switch agg.PathEncoding() {
	case types.PathWithFees:
		out := make([]byte, 0, len(hops)*common.AddressLength+(len(hops)-1)*3)
		for i, addr := range hops {
			if i > 0 {
				fee := uint32(DefaultFeeTier)
				if i-1 < len(r.Fees) {
					fee = r.Fees[i-1]
				}
				if fee > maxFeeTier {
					return nil, fmt.Errorf("fee tier %d does not fit in 3 bytes", fee)
				}
				out = append(out, byte(fee>>16), byte(fee>>8), byte(fee))
			}
			out = append(out, addr.Bytes()...)
		}
		return out, nil
	default:
		out := make([]byte, 0, len(hops)*common.AddressLength)
		for _, addr := range hops {
			out = append(out, addr.Bytes()...)
		}
		return out, nil
	}
}

// resolve swaps the native pseudo-address for the wrapped-native token
func (b *Builder) resolve(addr common.Address) (common.Address, error) {
	if addr != types.NativeAddress {
		return addr, nil
	}
	if b.cfg.WrappedNative == (common.Address{}) {
		return common.Address{}, fmt.Errorf("wrapped native token not configured")
	}
	return b.cfg.WrappedNative, nil
}

func (b *Builder) tokenAddress(token types.Token) (common.Address, error) {
	addr, err := token.EVMAddress()
	if err != nil {
		return common.Address{}, err
	}
	return b.resolve(addr)
}
