package wallet

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"hedera-swap/pkg/types"
)

// ErrRejected is returned when the signer declines a transaction
var ErrRejected = errors.New("transaction rejected by signer")

// StatusError carries a ledger status code reported before or during submission
type StatusError struct {
	Code string
	Err  error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// CodeOf extracts the ledger status code from err, if any
func CodeOf(err error) string {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code
	}
	return ""
}

var statusCodePattern = regexp.MustCompile(`\b[A-Z][A-Z0-9]*(?:_[A-Z0-9]+)+\b`)

// ParseStatusCode finds a ledger status code (e.g. INSUFFICIENT_PAYER_BALANCE) in a message
func ParseStatusCode(message string) string {
	return statusCodePattern.FindString(message)
}

// SignedTx is a transaction signed by a session and ready to submit
type SignedTx struct {
	Tx   *types.UnsignedTx
	Raw  []byte
	Hash string
}

// Session is a caller-owned wallet handle. Implementations must bind the signer
// when the transaction carries native value.
type Session interface {
	AccountID() string
	Sign(ctx context.Context, tx *types.UnsignedTx) (*SignedTx, error)
	Submit(ctx context.Context, signed *SignedTx) (string, error)
}

// SignAndSubmit signs tx and submits it, returning the transaction id
func SignAndSubmit(ctx context.Context, s Session, tx *types.UnsignedTx) (string, error) {
	signed, err := s.Sign(ctx, tx)
	if err != nil {
		return "", err
	}
	return s.Submit(ctx, signed)
}
