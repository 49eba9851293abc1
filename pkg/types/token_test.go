package types

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestTokenIDAddressRoundTrip(t *testing.T) {
	addr, err := TokenIDToAddress("0.0.731861")
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000b2ad5"), addr)
	require.Equal(t, "0.0.731861", AddressToTokenID(addr))
	require.True(t, IsLongZero(addr))

	_, err = TokenIDToAddress("731861")
	require.Error(t, err)
}

func TestNativeToken(t *testing.T) {
	require.True(t, HBAR.IsNative())
	addr, err := HBAR.EVMAddress()
	require.NoError(t, err)
	require.Equal(t, NativeAddress, addr)

	sauce := Token{ID: "0.0.731861", Decimals: 6}
	require.False(t, sauce.IsNative())
	addr, err = sauce.EVMAddress()
	require.NoError(t, err)
	require.Equal(t, "0.0.731861", AddressToTokenID(addr))
}

func TestParseAndFormatAmount(t *testing.T) {
	raw, err := HBAR.ParseAmount("1.5")
	require.NoError(t, err)
	require.Equal(t, "150000000", raw.String())
	require.Equal(t, "1.5", HBAR.FormatAmount(raw))

	_, err = HBAR.ParseAmount("0.000000001")
	require.Error(t, err)
	_, err = HBAR.ParseAmount("abc")
	require.Error(t, err)
}

func TestParseAggregator(t *testing.T) {
	tests := []struct {
		id       string
		expected Aggregator
		wantErr  bool
	}{
		{id: "SaucerSwapV1", expected: SaucerSwapV1},
		{id: "SaucerSwapV2_EXACT2", expected: SaucerSwapV2},
		{id: "pangolin", expected: Pangolin},
		{id: "UniswapV3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			agg, err := ParseAggregator(tt.id)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.expected, agg)
		})
	}

	require.Equal(t, PathWithFees, SaucerSwapV2.PathEncoding())
	require.Equal(t, PathAddressesOnly, SaucerSwapV1.PathEncoding())
}

func TestRouteTotals(t *testing.T) {
	r := Route{AmountsOut: []*big.Int{big.NewInt(60), big.NewInt(40)}}
	require.Equal(t, int64(100), r.TotalOut().Int64())
	require.Equal(t, 1, r.Hops())

	r.Path = []common.Address{{1}, {2}, {3}}
	require.Equal(t, 2, r.Hops())
}

func TestSwapSettings(t *testing.T) {
	now := time.Now()
	s := SwapSettings{SlippagePercent: decimal.RequireFromString("0.5"), Deadline: now.Add(time.Minute)}
	require.Equal(t, int64(50), s.SlippageBasisPoints())
	require.NoError(t, s.Validate(now))

	s.Deadline = now.Add(-time.Second)
	require.Error(t, s.Validate(now))

	s = SwapSettings{SlippagePercent: decimal.NewFromInt(100), Deadline: now.Add(time.Minute)}
	require.Error(t, s.Validate(now))
}

func TestUnsignedTxValidate(t *testing.T) {
	tx := &UnsignedTx{Data: []byte{1, 2, 3, 4}, Gas: 10, Value: big.NewInt(5), Mode: SignDetached}
	require.ErrorIs(t, tx.Validate(), ErrValueNeedsBoundSigner)

	tx.Mode = SignBound
	require.NoError(t, tx.Validate())
}

func TestDecodePath(t *testing.T) {
	a, b, c := common.Address{0xa}, common.Address{0xb}, common.Address{0xc}

	withFees := append(append(append(append(a.Bytes(), 0x00, 0x0b, 0xb8), b.Bytes()...), 0x00, 0x01, 0xf4), c.Bytes()...)
	hops, err := DecodePath(withFees, PathWithFees)
	require.NoError(t, err)
	require.Equal(t, []common.Address{a, b, c}, hops)

	plain := append(append(a.Bytes(), b.Bytes()...), c.Bytes()...)
	hops, err = DecodePath(plain, PathAddressesOnly)
	require.NoError(t, err)
	require.Equal(t, []common.Address{a, b, c}, hops)

	for name, tc := range map[string]struct {
		encoded []byte
		enc     PathEncoding
	}{
		"single address":      {a.Bytes(), PathAddressesOnly},
		"fee layout as plain": {withFees, PathAddressesOnly},
		"plain as fee layout": {plain, PathWithFees},
		"truncated":           {withFees[:len(withFees)-1], PathWithFees},
		"empty":               {nil, PathWithFees},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodePath(tc.encoded, tc.enc)
			require.Error(t, err)
		})
	}
}
