package types

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// FeeTierSize is the width of a fee tier between two addresses in a PathWithFees path
const FeeTierSize = 3

// DecodePath splits router path bytes back into the tokens they trade through
func DecodePath(encoded []byte, enc PathEncoding) ([]common.Address, error) {
	stride := common.AddressLength
	if enc == PathWithFees {
		stride += FeeTierSize
	}

	n := len(encoded)
	if n < common.AddressLength+stride || (n-common.AddressLength)%stride != 0 {
		return nil, fmt.Errorf("encoded path of %d bytes is not a valid %s path", n, enc)
	}

	hops := make([]common.Address, 0, (n-common.AddressLength)/stride+1)
	for i := 0; i < n; i += stride {
		hops = append(hops, common.BytesToAddress(encoded[i:i+common.AddressLength]))
	}
	return hops, nil
}

func (e PathEncoding) String() string {
	if e == PathWithFees {
		return "address+fee"
	}
	return "address-only"
}
