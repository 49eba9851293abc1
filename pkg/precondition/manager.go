package precondition

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"

	"hedera-swap/pkg/logging"
	"hedera-swap/pkg/types"
	"hedera-swap/pkg/wallet"
)

const (
	DefaultAssociationGas = 1_000_000
	DefaultAllowanceGas   = 800_000
	// DefaultParticipantGas is charged per token in a bulk association call
	DefaultParticipantGas = 1_000_000

	defaultCacheTTL    = time.Hour
	defaultCacheSize   = 8192
	defaultConcurrency = 4
)

// AccountState reads association and allowance state for an account
type AccountState interface {
	IsAssociated(ctx context.Context, accountID, tokenID string) (bool, error)
	Allowance(ctx context.Context, owner, spender, tokenID string) (*big.Int, error)
}

// Confirmer waits for a submitted transaction to reach a verdict
type Confirmer interface {
	Wait(ctx context.Context, id string, onProgress func(attempt, max int)) types.TransactionStatus
}

// Participant is a contract that holds or forwards tokens during a swap
type Participant struct {
	ID      string
	Address common.Address
}

// Status is the outcome of a precondition check
type Status struct {
	Satisfied bool
	Token     string
	Account   string
	Current   *big.Int
	Required  *big.Int
}

// Config tunes gas limits and the association cache
type Config struct {
	AssociationGas uint64
	AllowanceGas   uint64
	ParticipantGas uint64
	CacheTTL       time.Duration
	CacheSize      uint64
	Concurrency    int
}

// Manager checks and establishes token associations and allowances
type Manager struct {
	cfg        Config
	state      AccountState
	confirmer  Confirmer
	associated *ttlcache.Cache[string, struct{}]
	logger     *zap.Logger
}

// NewManager creates a new precondition manager
func NewManager(cfg Config, state AccountState, confirmer Confirmer, logger *zap.Logger) *Manager {
	if cfg.AssociationGas == 0 {
		cfg.AssociationGas = DefaultAssociationGas
	}
	if cfg.AllowanceGas == 0 {
		cfg.AllowanceGas = DefaultAllowanceGas
	}
	if cfg.ParticipantGas == 0 {
		cfg.ParticipantGas = DefaultParticipantGas
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = defaultCacheSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}

	return &Manager{
		cfg:       cfg,
		state:     state,
		confirmer: confirmer,
		associated: ttlcache.New[string, struct{}](
			ttlcache.WithTTL[string, struct{}](cfg.CacheTTL),
			ttlcache.WithCapacity[string, struct{}](cfg.CacheSize),
		),
		logger: logging.OrNop(logger).Named("precondition"),
	}
}

func cacheKey(accountID, tokenID string) string {
	return accountID + "/" + tokenID
}

func (m *Manager) markAssociated(accountID, tokenID string) {
	m.associated.Set(cacheKey(accountID, tokenID), struct{}{}, ttlcache.DefaultTTL)
}

func (m *Manager) cachedAssociated(accountID, tokenID string) bool {
	return m.associated.Get(cacheKey(accountID, tokenID)) != nil
}

// CheckAssociation reports whether accountID can receive token. Lookup failures
// report false so the caller goes through an explicit association step.
func (m *Manager) CheckAssociation(ctx context.Context, token types.Token, accountID string) bool {
	if token.IsNative() {
		return true
	}
	if m.cachedAssociated(accountID, token.ID) {
		return true
	}

	ok, err := m.state.IsAssociated(ctx, accountID, token.ID)
	if err != nil {
		m.logger.Warn("association lookup failed, assuming not associated",
			zap.String("account", accountID),
			zap.String("token", token.ID),
			zap.Error(err))
		return false
	}
	if ok {
		m.markAssociated(accountID, token.ID)
	}
	return ok
}

// CheckAllowance reports whether spender may move amount of token on behalf of owner
func (m *Manager) CheckAllowance(ctx context.Context, token types.Token, owner string, spender Participant, amount *big.Int) Status {
	status := Status{Token: token.ID, Account: owner, Required: amount}
	if token.IsNative() {
		status.Satisfied = true
		return status
	}

	current, err := m.state.Allowance(ctx, owner, spender.ID, token.ID)
	if err != nil {
		m.logger.Warn("allowance lookup failed, assuming insufficient",
			zap.String("owner", owner),
			zap.String("spender", spender.ID),
			zap.String("token", token.ID),
			zap.Error(err))
		return status
	}

	status.Current = current
	status.Satisfied = current != nil && amount != nil && current.Cmp(amount) >= 0
	return status
}

// BuildAssociationTx builds the call that associates token with accountID
func (m *Manager) BuildAssociationTx(token types.Token, accountID string) (*types.UnsignedTx, error) {
	addr, err := tokenAddress(token)
	if err != nil {
		return nil, err
	}
	data, err := tokenFacade.Pack("associate")
	if err != nil {
		return nil, fmt.Errorf("failed to encode associate: %w", err)
	}
	return &types.UnsignedTx{
		Kind: types.TxAssociation,
		From: accountID,
		To:   addr,
		Data: data,
		Gas:  m.cfg.AssociationGas,
		Mode: types.SignDetached,
		Memo: fmt.Sprintf("associate %s", token.Symbol),
	}, nil
}

// BuildAllowanceTx builds the approval for spender, padded by 1% to absorb rounding
func (m *Manager) BuildAllowanceTx(token types.Token, owner string, spender Participant, amount *big.Int) (*types.UnsignedTx, error) {
	addr, err := tokenAddress(token)
	if err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("allowance amount must be positive")
	}
	data, err := tokenFacade.Pack("approve", spender.Address, BufferedAmount(amount))
	if err != nil {
		return nil, fmt.Errorf("failed to encode approve: %w", err)
	}
	return &types.UnsignedTx{
		Kind: types.TxAllowance,
		From: owner,
		To:   addr,
		Data: data,
		Gas:  m.cfg.AllowanceGas,
		Mode: types.SignDetached,
		Memo: fmt.Sprintf("approve %s for %s", token.Symbol, spender.ID),
	}, nil
}

// BufferedAmount returns ceil(amount * 101 / 100)
func BufferedAmount(amount *big.Int) *big.Int {
	n := new(big.Int).Mul(amount, big.NewInt(101))
	n.Add(n, big.NewInt(99))
	return n.Div(n, big.NewInt(100))
}

func tokenAddress(token types.Token) (common.Address, error) {
	if token.IsNative() {
		return common.Address{}, fmt.Errorf("%s needs no association or allowance", token.Symbol)
	}
	return token.EVMAddress()
}

// RequestAssociation associates token with the session account and waits for confirmation
func (m *Manager) RequestAssociation(ctx context.Context, session wallet.Session, token types.Token) error {
	accountID := session.AccountID()
	tx, err := m.BuildAssociationTx(token, accountID)
	if err != nil {
		return &Error{Op: string(types.TxAssociation), Err: err}
	}
	if err := m.Submit(ctx, session, tx); err != nil {
		return err
	}
	m.markAssociated(accountID, token.ID)
	return nil
}

// RequestAllowance approves spender for amount of token from the session account
func (m *Manager) RequestAllowance(ctx context.Context, session wallet.Session, token types.Token, spender Participant, amount *big.Int) error {
	tx, err := m.BuildAllowanceTx(token, session.AccountID(), spender, amount)
	if err != nil {
		return &Error{Op: string(types.TxAllowance), Err: err}
	}
	return m.Submit(ctx, session, tx)
}

// Submit signs and submits a precondition transaction, then waits for its verdict.
// "Already associated" outcomes count as success.
func (m *Manager) Submit(ctx context.Context, session wallet.Session, tx *types.UnsignedTx) error {
	op := string(tx.Kind)

	id, err := wallet.SignAndSubmit(ctx, session, tx)
	if err != nil {
		if errors.Is(err, wallet.ErrRejected) {
			return &Error{Op: op, Err: err}
		}
		code := wallet.CodeOf(err)
		if IsAlreadySatisfied(code) {
			m.logger.Info("precondition already satisfied", zap.String("op", op), zap.String("code", code))
			return nil
		}
		return &Error{Op: op, Code: code, Err: err}
	}

	m.logger.Info("precondition transaction submitted", zap.String("op", op), zap.String("id", id))

	if m.confirmer == nil {
		return nil
	}
	status := m.confirmer.Wait(ctx, id, nil)
	switch status.Status {
	case types.StatusSuccess:
		return nil
	case types.StatusFailed:
		if IsAlreadySatisfied(status.ResultCode) || IsAlreadySatisfied(wallet.ParseStatusCode(status.Detail)) {
			m.logger.Info("precondition already satisfied", zap.String("op", op), zap.String("code", status.ResultCode))
			return nil
		}
		return &Error{Op: op, Code: status.ResultCode, Err: ErrFailed}
	default:
		return &Error{Op: op, Err: ErrUnconfirmed}
	}
}
