package wallet

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"hedera-swap/pkg/types"
)

type fakeRelay struct {
	nonce   uint64
	sent    []*ethtypes.Transaction
	sendErr error
}

func (f *fakeRelay) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return f.nonce, nil
}

func (f *fakeRelay) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(710_000_000_000), nil
}

func (f *fakeRelay) SendTransaction(_ context.Context, tx *ethtypes.Transaction) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

func newTestSession(t *testing.T, relay *fakeRelay) *RelaySession {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return NewRelaySession(relay, "0.0.1234", key, ChainIDTestnet, nil)
}

func swapTx(value int64, mode types.SigningMode) *types.UnsignedTx {
	return &types.UnsignedTx{
		Kind:  types.TxSwap,
		From:  "0.0.1234",
		To:    common.HexToAddress("0x00000000000000000000000000000000003c437a"),
		Data:  []byte{0xde, 0xad, 0xbe, 0xef, 0x01},
		Value: big.NewInt(value),
		Gas:   375_000,
		Mode:  mode,
	}
}

func TestRelaySessionBindsValue(t *testing.T) {
	relay := &fakeRelay{nonce: 7}
	session := newTestSession(t, relay)

	signed, err := session.Sign(context.Background(), swapTx(150_000_000, types.SignBound))
	require.NoError(t, err)

	decoded := new(ethtypes.Transaction)
	require.NoError(t, decoded.UnmarshalBinary(signed.Raw))
	require.Equal(t, uint64(7), decoded.Nonce())
	require.Equal(t, uint64(375_000), decoded.Gas())
	require.Equal(t, 0, decoded.Value().Cmp(new(big.Int).Mul(big.NewInt(150_000_000), big.NewInt(10_000_000_000))))
	require.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef, 0x01}, decoded.Data())

	sender, err := ethtypes.Sender(ethtypes.NewEIP155Signer(big.NewInt(ChainIDTestnet)), decoded)
	require.NoError(t, err)
	require.Equal(t, session.Address(), sender)

	hash, err := session.Submit(context.Background(), signed)
	require.NoError(t, err)
	require.Equal(t, signed.Hash, hash)
	require.Len(t, relay.sent, 1)
}

func TestRelaySessionRefusesDetachedValue(t *testing.T) {
	session := newTestSession(t, &fakeRelay{})

	_, err := session.Sign(context.Background(), swapTx(1, types.SignDetached))
	require.ErrorIs(t, err, types.ErrValueNeedsBoundSigner)

	_, err = session.Sign(context.Background(), swapTx(0, types.SignDetached))
	require.NoError(t, err)
}

func TestRelaySessionRejectsForeignPayer(t *testing.T) {
	session := newTestSession(t, &fakeRelay{})
	tx := swapTx(0, types.SignBound)
	tx.From = "0.0.9999"

	_, err := session.Sign(context.Background(), tx)
	require.Error(t, err)
}

func TestRelaySubmitStatusCode(t *testing.T) {
	relay := &fakeRelay{sendErr: errors.New("execution reverted: INSUFFICIENT_PAYER_BALANCE")}
	session := newTestSession(t, relay)

	signed, err := session.Sign(context.Background(), swapTx(0, types.SignBound))
	require.NoError(t, err)

	_, err = session.Submit(context.Background(), signed)
	require.Error(t, err)
	require.Equal(t, "INSUFFICIENT_PAYER_BALANCE", CodeOf(err))
}

func TestParseStatusCode(t *testing.T) {
	require.Equal(t, "TOKEN_ALREADY_ASSOCIATED_TO_ACCOUNT", ParseStatusCode("precheck failed: TOKEN_ALREADY_ASSOCIATED_TO_ACCOUNT"))
	require.Equal(t, "", ParseStatusCode("connection refused"))
}

func TestPromptSession(t *testing.T) {
	relay := &fakeRelay{}
	inner := newTestSession(t, relay)

	var out bytes.Buffer
	prompt := NewPromptSession(inner, strings.NewReader("n\ny\n"), &out, nil)

	_, err := prompt.Sign(context.Background(), swapTx(5, types.SignBound))
	require.ErrorIs(t, err, ErrRejected)
	require.Contains(t, out.String(), "value 5 tinybars")

	signed, err := prompt.Sign(context.Background(), swapTx(5, types.SignBound))
	require.NoError(t, err)
	require.NotEmpty(t, signed.Hash)
	require.Equal(t, "0.0.1234", prompt.AccountID())

	_, err = prompt.Sign(context.Background(), swapTx(5, types.SignBound))
	require.ErrorIs(t, err, ErrRejected)
}
