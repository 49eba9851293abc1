package precondition

import (
	"errors"
	"fmt"
)

var (
	// ErrUnconfirmed is returned when a submitted precondition transaction never reached a verdict
	ErrUnconfirmed = errors.New("precondition transaction status unknown")
	// ErrFailed is returned when a precondition transaction executed with a failure code
	ErrFailed = errors.New("precondition transaction failed")
)

// alreadySatisfied lists result codes that mean the precondition was already in place
var alreadySatisfied = map[string]struct{}{
	"TOKEN_ALREADY_ASSOCIATED_TO_ACCOUNT": {},
	"TOKEN_ALREADY_ASSOCIATED":            {},
}

// IsAlreadySatisfied reports whether code only says the precondition already holds
func IsAlreadySatisfied(code string) bool {
	_, ok := alreadySatisfied[code]
	return ok
}

// Error is a precondition transaction that was rejected or failed
type Error struct {
	Op   string
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
