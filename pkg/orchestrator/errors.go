package orchestrator

import (
	"errors"
	"fmt"
)

// ErrIllegalTransition is returned for an event the current step does not accept
var ErrIllegalTransition = errors.New("illegal state transition")

// Kind buckets a terminal error so callers can render it appropriately
type Kind int

const (
	KindValidation Kind = iota + 1
	KindPrecondition
	KindSignatureRejected
	KindNetwork
	KindOnChain
	KindUnknownStatus
	KindAbandoned
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPrecondition:
		return "precondition"
	case KindSignatureRejected:
		return "signature_rejected"
	case KindNetwork:
		return "network"
	case KindOnChain:
		return "on_chain"
	case KindUnknownStatus:
		return "unknown_status"
	case KindAbandoned:
		return "abandoned"
	default:
		return "unspecified"
	}
}

// SwapError is the terminal error of a swap attempt
type SwapError struct {
	Kind Kind
	Step Step
	Code string
	Err  error
}

func newError(kind Kind, step Step, err error) *SwapError {
	return &SwapError{Kind: kind, Step: step, Err: err}
}

func (e *SwapError) Error() string {
	msg := fmt.Sprintf("%s error during %s", e.Kind, e.Step)
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SwapError) Unwrap() error {
	return e.Err
}

// Retryable reports whether a fresh attempt with the same intent may succeed
func (e *SwapError) Retryable() bool {
	switch e.Kind {
	case KindValidation, KindPrecondition, KindNetwork, KindAbandoned:
		return true
	default:
		return false
	}
}

// UserMessage renders the error for display
func (e *SwapError) UserMessage() string {
	switch e.Kind {
	case KindValidation:
		return fmt.Sprintf("Swap parameters are invalid: %v", e.Err)
	case KindPrecondition:
		return fmt.Sprintf("Could not prepare your account for the swap: %v", e.Err)
	case KindSignatureRejected:
		return "Transaction was rejected in the wallet"
	case KindNetwork:
		return fmt.Sprintf("Network error, please try again: %v", e.Err)
	case KindOnChain:
		if e.Code != "" {
			return fmt.Sprintf("Swap failed on chain with %s", e.Code)
		}
		return "Swap failed on chain"
	case KindUnknownStatus:
		return "Status unknown, check the explorer"
	case KindAbandoned:
		return "Swap was cancelled before broadcast"
	default:
		return e.Error()
	}
}
