package wallet

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"hedera-swap/pkg/types"
)

// Describer renders a transaction for the confirmation prompt
type Describer func(tx *types.UnsignedTx) string

// PromptSession asks for interactive confirmation before every signature
type PromptSession struct {
	Session
	mu       sync.Mutex
	reader   *bufio.Reader
	out      io.Writer
	describe Describer
}

// NewPromptSession wraps inner so each Sign call first asks y/N on out
func NewPromptSession(inner Session, in io.Reader, out io.Writer, describe Describer) *PromptSession {
	if describe == nil {
		describe = DescribeTx
	}
	return &PromptSession{
		Session:  inner,
		reader:   bufio.NewReader(in),
		out:      out,
		describe: describe,
	}
}

// Sign prompts and delegates, returning ErrRejected when the user declines
func (p *PromptSession) Sign(ctx context.Context, tx *types.UnsignedTx) (*SignedTx, error) {
	if !p.confirm(tx) {
		return nil, ErrRejected
	}
	return p.Session.Sign(ctx, tx)
}

func (p *PromptSession) confirm(tx *types.UnsignedTx) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "\n%s\nSign this transaction? (y/N): ", p.describe(tx))

	response, err := p.reader.ReadString('\n')
	if err != nil && response == "" {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

// DescribeTx is the default one-line transaction summary
func DescribeTx(tx *types.UnsignedTx) string {
	desc := fmt.Sprintf("%s call to %s (gas %d)", tx.Kind, tx.To.Hex(), tx.Gas)
	if tx.HasValue() {
		desc += fmt.Sprintf(", value %s tinybars", tx.Value)
	}
	if tx.Memo != "" {
		desc += ": " + tx.Memo
	}
	return desc
}
