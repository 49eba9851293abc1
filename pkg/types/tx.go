package types

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TxKind identifies what an unsigned transaction is for
type TxKind string

const (
	TxAssociation            TxKind = "association"
	TxAllowance              TxKind = "allowance"
	TxParticipantAssociation TxKind = "participant_association"
	TxSwap                   TxKind = "swap"
)

// MaxGasPerTransaction is the network's per-transaction gas ceiling
const MaxGasPerTransaction uint64 = 15_000_000

// SigningMode controls when the signer is bound to the transaction body
type SigningMode int

const (
	// SignDetached freezes the body first and attaches a signer afterwards
	SignDetached SigningMode = iota
	// SignBound binds the signer while freezing so every field, including value, is serialized
	SignBound
)

// ErrValueNeedsBoundSigner is returned when a value-carrying transaction uses detached signing
var ErrValueNeedsBoundSigner = errors.New("transaction carries native value and must be signed with a bound signer")

// UnsignedTx is a contract call ready to hand to a wallet session
type UnsignedTx struct {
	Kind  TxKind
	From  string
	To    common.Address
	Data  []byte
	Value *big.Int // tinybars
	Gas   uint64
	Mode  SigningMode
	Memo  string
}

// HasValue reports whether the transaction attaches native value
func (tx *UnsignedTx) HasValue() bool {
	return tx.Value != nil && tx.Value.Sign() > 0
}

// Validate rejects transactions that cannot be signed safely
func (tx *UnsignedTx) Validate() error {
	if tx.HasValue() && tx.Mode != SignBound {
		return ErrValueNeedsBoundSigner
	}
	if len(tx.Data) < 4 {
		return errors.New("transaction has no call data")
	}
	if tx.Gas == 0 {
		return errors.New("transaction has no gas limit")
	}
	return nil
}

// ResultSuccess is the only result code that counts as a successful transaction
const ResultSuccess = "SUCCESS"

// TransactionRecord is what the indexer reports for an executed transaction
type TransactionRecord struct {
	ID                 string
	ResultCode         string
	ConsensusTimestamp string
	ErrorMessage       string
}

// Status values of a monitored transaction
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusUnknown = "unknown"
)

// TransactionStatus is the verdict of monitoring
type TransactionStatus struct {
	Success            bool   `json:"success"`
	Status             string `json:"status"`
	ConsensusTimestamp string `json:"consensusTimestamp,omitempty"`
	ResultCode         string `json:"resultCode,omitempty"`
	Detail             string `json:"detail,omitempty"`
	Attempts           int    `json:"attempts"`
}
