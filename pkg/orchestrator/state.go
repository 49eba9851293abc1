package orchestrator

import "hedera-swap/pkg/types"

// Step is one state of a swap attempt
type Step string

const (
	StepIdle                      Step = "idle"
	StepValidating                Step = "validating"
	StepEnsuringParticipants      Step = "ensuring_preconditions_for_route_participants"
	StepCheckingDestAssociation   Step = "checking_destination_association"
	StepRequestingDestAssociation Step = "requesting_destination_association"
	StepCheckingSourceAllowance   Step = "checking_source_allowance"
	StepRequestingSourceAllowance Step = "requesting_source_allowance"
	StepBuildingTransaction       Step = "building_transaction"
	StepAwaitingSignature         Step = "awaiting_signature"
	StepBroadcasting              Step = "broadcasting"
	StepMonitoring                Step = "monitoring"
	StepSuccess                   Step = "success"
	StepError                     Step = "error"
)

// Terminal reports whether no further transition is possible
func (s Step) Terminal() bool {
	return s == StepSuccess || s == StepError
}

// Progress is the monitor's poll counter
type Progress struct {
	Attempt int `json:"attempt"`
	Max     int `json:"max"`
}

// State is the observable state of one swap attempt
type State struct {
	AttemptID     string                   `json:"attemptId"`
	Step          Step                     `json:"step"`
	Err           *SwapError               `json:"-"`
	TransactionID string                   `json:"transactionId,omitempty"`
	Progress      *Progress                `json:"progress,omitempty"`
	Status        *types.TransactionStatus `json:"status,omitempty"`
	History       []Step                   `json:"history"`
}

// Clone returns a deep copy safe to hand to listeners
func (s State) Clone() State {
	out := s
	out.History = append([]Step(nil), s.History...)
	if s.Progress != nil {
		p := *s.Progress
		out.Progress = &p
	}
	if s.Status != nil {
		st := *s.Status
		out.Status = &st
	}
	return out
}
