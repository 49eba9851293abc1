package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"hedera-swap/pkg/logging"
	"hedera-swap/pkg/types"
)

// Chain ids served by the JSON-RPC relay
const (
	ChainIDMainnet    = 295
	ChainIDTestnet    = 296
	ChainIDPreviewnet = 297
)

// weibarsPerTinybar converts the native 8-decimal unit into the relay's 18-decimal unit
var weibarsPerTinybar = big.NewInt(10_000_000_000)

// RelayClient is the subset of ethclient the relay session needs
type RelayClient interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
}

// RelayConfig configures a session backed by a JSON-RPC relay and a local ECDSA key
type RelayConfig struct {
	RPCURL     string
	ChainID    int64
	AccountID  string
	PrivateKey string
	GasPrice   *big.Int
}

// RelaySession signs transactions locally and broadcasts them through the relay.
// The whole transaction, value included, is built before signing.
type RelaySession struct {
	accountID  string
	client     RelayClient
	privateKey *ecdsa.PrivateKey
	from       common.Address
	chainID    *big.Int
	gasPrice   *big.Int
	closer     func()
	logger     *zap.Logger
}

// DialRelay connects to the relay endpoint and parses the signing key
func DialRelay(cfg RelayConfig, logger *zap.Logger) (*RelaySession, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("relay RPC URL not configured")
	}
	if cfg.PrivateKey == "" {
		return nil, fmt.Errorf("private key not configured")
	}
	if cfg.AccountID == "" {
		return nil, fmt.Errorf("account id not configured")
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to relay: %w", err)
	}

	session := NewRelaySession(client, cfg.AccountID, privateKey, cfg.ChainID, logger)
	session.gasPrice = cfg.GasPrice
	session.closer = client.Close
	return session, nil
}

// NewRelaySession creates a session over an existing relay client
func NewRelaySession(client RelayClient, accountID string, key *ecdsa.PrivateKey, chainID int64, logger *zap.Logger) *RelaySession {
	return &RelaySession{
		accountID:  accountID,
		client:     client,
		privateKey: key,
		from:       crypto.PubkeyToAddress(key.PublicKey),
		chainID:    big.NewInt(chainID),
		logger:     logging.OrNop(logger).Named("relay"),
	}
}

// AccountID returns the account that pays for and signs transactions
func (s *RelaySession) AccountID() string {
	return s.accountID
}

// Address returns the EVM address of the signing key
func (s *RelaySession) Address() common.Address {
	return s.from
}

// Sign builds and signs the transaction. Value is converted to weibars and bound
// into the signed payload, so detached signing never applies here.
func (s *RelaySession) Sign(ctx context.Context, tx *types.UnsignedTx) (*SignedTx, error) {
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	if tx.From != "" && tx.From != s.accountID {
		return nil, fmt.Errorf("transaction payer %s does not match session account %s", tx.From, s.accountID)
	}

	nonce, err := s.client.PendingNonceAt(ctx, s.from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice := s.gasPrice
	if gasPrice == nil {
		gasPrice, err = s.client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get gas price: %w", err)
		}
	}

	to := tx.To
	ethTx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    TinybarsToWeibars(tx.Value),
		Gas:      tx.Gas,
		GasPrice: gasPrice,
		Data:     tx.Data,
	})

	signedTx, err := ethtypes.SignTx(ethTx, ethtypes.NewEIP155Signer(s.chainID), s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	raw, err := signedTx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to encode transaction: %w", err)
	}

	s.logger.Debug("signed transaction",
		zap.String("kind", string(tx.Kind)),
		zap.String("hash", signedTx.Hash().Hex()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas", tx.Gas))

	return &SignedTx{Tx: tx, Raw: raw, Hash: signedTx.Hash().Hex()}, nil
}

// Submit broadcasts a signed transaction and returns its hash
func (s *RelaySession) Submit(ctx context.Context, signed *SignedTx) (string, error) {
	ethTx := new(ethtypes.Transaction)
	if err := ethTx.UnmarshalBinary(signed.Raw); err != nil {
		return "", fmt.Errorf("failed to decode signed transaction: %w", err)
	}

	if err := s.client.SendTransaction(ctx, ethTx); err != nil {
		if code := ParseStatusCode(err.Error()); code != "" {
			return "", &StatusError{Code: code, Err: err}
		}
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}

	s.logger.Debug("submitted transaction", zap.String("hash", ethTx.Hash().Hex()))
	return ethTx.Hash().Hex(), nil
}

// Close closes the relay connection
func (s *RelaySession) Close() {
	if s.closer != nil {
		s.closer()
	}
}

// TinybarsToWeibars scales an 8-decimal amount to the relay's 18-decimal unit
func TinybarsToWeibars(tinybars *big.Int) *big.Int {
	if tinybars == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(tinybars, weibarsPerTinybar)
}
