package precondition

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"hedera-swap/pkg/types"
	"hedera-swap/pkg/wallet"
)

// Pair is one (participant, token) association requirement
type Pair struct {
	Participant Participant
	Token       types.Token
}

// BatchResult splits the checked pairs by whether they are already associated
type BatchResult struct {
	Satisfied []Pair
	Missing   []Pair
}

// Complete reports whether nothing is missing
func (r BatchResult) Complete() bool {
	return len(r.Missing) == 0
}

// CheckParticipants checks every token against every participant. Native tokens
// and duplicates are skipped. Confirmed pairs are served from the cache.
func (m *Manager) CheckParticipants(ctx context.Context, tokens []types.Token, participants []Participant) BatchResult {
	var pairs []Pair
	seen := make(map[string]struct{})
	for _, p := range participants {
		for _, token := range tokens {
			if token.IsNative() {
				continue
			}
			key := cacheKey(p.ID, token.ID)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			pairs = append(pairs, Pair{Participant: p, Token: token})
		}
	}

	associated := make([]bool, len(pairs))
	g := new(errgroup.Group)
	g.SetLimit(m.cfg.Concurrency)
	for i, pair := range pairs {
		i, pair := i, pair
		g.Go(func() error {
			associated[i] = m.CheckAssociation(ctx, pair.Token, pair.Participant.ID)
			return nil
		})
	}
	_ = g.Wait()

	var result BatchResult
	for i, pair := range pairs {
		if associated[i] {
			result.Satisfied = append(result.Satisfied, pair)
		} else {
			result.Missing = append(result.Missing, pair)
		}
	}

	m.logger.Debug("participant associations checked",
		zap.Int("satisfied", len(result.Satisfied)),
		zap.Int("missing", len(result.Missing)))

	return result
}

// BuildParticipantTxs builds one bulk association call per participant, in the
// order participants first appear in missing
func (m *Manager) BuildParticipantTxs(missing []Pair, from string) ([]*types.UnsignedTx, error) {
	var order []Participant
	grouped := make(map[string][]Pair)
	for _, pair := range missing {
		if _, ok := grouped[pair.Participant.ID]; !ok {
			order = append(order, pair.Participant)
		}
		grouped[pair.Participant.ID] = append(grouped[pair.Participant.ID], pair)
	}

	txs := make([]*types.UnsignedTx, 0, len(order))
	for _, p := range order {
		pairs := grouped[p.ID]
		addrs := make([]common.Address, 0, len(pairs))
		for _, pair := range pairs {
			addr, err := tokenAddress(pair.Token)
			if err != nil {
				return nil, err
			}
			addrs = append(addrs, addr)
		}

		data, err := participant.Pack("associateTokens", addrs)
		if err != nil {
			return nil, fmt.Errorf("failed to encode associateTokens: %w", err)
		}

		gas := m.cfg.ParticipantGas * uint64(len(addrs))
		if gas > types.MaxGasPerTransaction {
			gas = types.MaxGasPerTransaction
		}

		txs = append(txs, &types.UnsignedTx{
			Kind: types.TxParticipantAssociation,
			From: from,
			To:   p.Address,
			Data: data,
			Gas:  gas,
			Mode: types.SignDetached,
			Memo: fmt.Sprintf("associate %d token(s) with %s", len(addrs), p.ID),
		})
	}
	return txs, nil
}

// RequestParticipantAssociations submits the bulk association calls for missing
// pairs one participant at a time and caches every confirmed pair
func (m *Manager) RequestParticipantAssociations(ctx context.Context, session wallet.Session, missing []Pair) error {
	txs, err := m.BuildParticipantTxs(missing, session.AccountID())
	if err != nil {
		return &Error{Op: string(types.TxParticipantAssociation), Err: err}
	}

	for _, tx := range txs {
		if err := m.Submit(ctx, session, tx); err != nil {
			return err
		}
		for _, pair := range missing {
			if pair.Participant.Address == tx.To {
				m.markAssociated(pair.Participant.ID, pair.Token.ID)
			}
		}
	}
	return nil
}
