package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"hedera-swap/pkg/logging"
	"hedera-swap/pkg/monitor"
	"hedera-swap/pkg/types"
)

// Public mirror node endpoints
const (
	MirrorMainnet    = "https://mainnet-public.mirrornode.hedera.com"
	MirrorTestnet    = "https://testnet.mirrornode.hedera.com"
	MirrorPreviewnet = "https://previewnet.mirrornode.hedera.com"
)

// MirrorClient reads account state, tokens and transactions from a mirror node
type MirrorClient struct {
	rest restClient
}

// NewMirrorClient creates a new mirror node client
func NewMirrorClient(baseURL string, timeout time.Duration, logger *zap.Logger) *MirrorClient {
	return &MirrorClient{
		rest: newRestClient(baseURL, timeout, logging.OrNop(logger).Named("mirror")),
	}
}

type accountTokensResponse struct {
	Tokens []struct {
		TokenID string `json:"token_id"`
	} `json:"tokens"`
}

// IsAssociated reports whether tokenID is associated with accountID
func (c *MirrorClient) IsAssociated(ctx context.Context, accountID, tokenID string) (bool, error) {
	var resp accountTokensResponse
	query := url.Values{"token.id": {tokenID}}
	if err := c.rest.getJSON(ctx, "/api/v1/accounts/"+url.PathEscape(accountID)+"/tokens", query, &resp); err != nil {
		return false, err
	}
	for _, t := range resp.Tokens {
		if t.TokenID == tokenID {
			return true, nil
		}
	}
	return false, nil
}

type allowancesResponse struct {
	Allowances []struct {
		Amount  json.Number `json:"amount"`
		Spender string      `json:"spender"`
		TokenID string      `json:"token_id"`
	} `json:"allowances"`
}

// Allowance returns the remaining amount spender may move of owner's tokenID
func (c *MirrorClient) Allowance(ctx context.Context, owner, spender, tokenID string) (*big.Int, error) {
	var resp allowancesResponse
	query := url.Values{"token.id": {tokenID}, "spender.id": {spender}}
	if err := c.rest.getJSON(ctx, "/api/v1/accounts/"+url.PathEscape(owner)+"/allowances/tokens", query, &resp); err != nil {
		return nil, err
	}
	for _, a := range resp.Allowances {
		if a.Spender != spender || a.TokenID != tokenID {
			continue
		}
		amount, ok := new(big.Int).SetString(a.Amount.String(), 10)
		if !ok {
			return nil, fmt.Errorf("invalid allowance amount %q", a.Amount)
		}
		return amount, nil
	}
	return new(big.Int), nil
}

type tokenResponse struct {
	TokenID  string `json:"token_id"`
	Symbol   string `json:"symbol"`
	Decimals string `json:"decimals"`
}

// TokenExists reports whether addr is a token known to the mirror node
func (c *MirrorClient) TokenExists(ctx context.Context, addr common.Address) (bool, error) {
	id := addr.Hex()
	if types.IsLongZero(addr) {
		id = types.AddressToTokenID(addr)
	}

	var resp tokenResponse
	err := c.rest.getJSON(ctx, "/api/v1/tokens/"+url.PathEscape(id), nil, &resp)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return resp.TokenID != "", nil
}

type transactionsResponse struct {
	Transactions []struct {
		TransactionID      string `json:"transaction_id"`
		Result             string `json:"result"`
		ConsensusTimestamp string `json:"consensus_timestamp"`
	} `json:"transactions"`
}

type contractResultResponse struct {
	Hash         string `json:"hash"`
	Result       string `json:"result"`
	Timestamp    string `json:"timestamp"`
	ErrorMessage string `json:"error_message"`
}

// Transaction looks up an executed transaction by ledger id (0.0.N@s.n) or by
// relay hash (0x...). Unindexed transactions return monitor.ErrNotFound.
func (c *MirrorClient) Transaction(ctx context.Context, id string) (*types.TransactionRecord, error) {
	if strings.HasPrefix(id, "0x") {
		return c.contractResult(ctx, id)
	}

	var resp transactionsResponse
	err := c.rest.getJSON(ctx, "/api/v1/transactions/"+url.PathEscape(MirrorTransactionID(id)), nil, &resp)
	if errors.Is(err, ErrNotFound) {
		return nil, monitor.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(resp.Transactions) == 0 {
		return nil, monitor.ErrNotFound
	}

	tx := resp.Transactions[0]
	return &types.TransactionRecord{
		ID:                 id,
		ResultCode:         tx.Result,
		ConsensusTimestamp: tx.ConsensusTimestamp,
	}, nil
}

func (c *MirrorClient) contractResult(ctx context.Context, hash string) (*types.TransactionRecord, error) {
	var resp contractResultResponse
	err := c.rest.getJSON(ctx, "/api/v1/contracts/results/"+url.PathEscape(hash), nil, &resp)
	if errors.Is(err, ErrNotFound) {
		return nil, monitor.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if resp.Result == "" {
		return nil, monitor.ErrNotFound
	}
	return &types.TransactionRecord{
		ID:                 hash,
		ResultCode:         resp.Result,
		ConsensusTimestamp: resp.Timestamp,
		ErrorMessage:       decodeRevert(resp.ErrorMessage),
	}, nil
}

// MirrorTransactionID converts 0.0.N@seconds.nanos into the 0.0.N-seconds-nanos form the mirror node expects
func MirrorTransactionID(id string) string {
	account, validStart, ok := strings.Cut(id, "@")
	if !ok {
		return id
	}
	return account + "-" + strings.Replace(validStart, ".", "-", 1)
}

// decodeRevert turns an ABI encoded Error(string) into its message. Anything else is returned as is.
func decodeRevert(message string) string {
	if !strings.HasPrefix(message, "0x") {
		return message
	}
	data, err := hexutil.Decode(message)
	if err != nil {
		return message
	}
	if reason, err := abi.UnpackRevert(data); err == nil {
		return reason
	}
	return message
}
