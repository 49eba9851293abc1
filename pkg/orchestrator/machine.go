package orchestrator

import (
	"fmt"

	"hedera-swap/pkg/types"
)

// EventType is something that happened while executing the current step
type EventType int

const (
	EventStart EventType = iota
	EventValidated
	EventParticipantsReady
	EventAssociationMissing
	EventAssociationReady
	EventAllowanceMissing
	EventAllowanceReady
	EventBuilt
	EventSigned
	EventSubmitted
	EventProgress
	EventConfirmed
	EventFailed
)

var eventNames = map[EventType]string{
	EventStart:              "start",
	EventValidated:          "validated",
	EventParticipantsReady:  "participants_ready",
	EventAssociationMissing: "association_missing",
	EventAssociationReady:   "association_ready",
	EventAllowanceMissing:   "allowance_missing",
	EventAllowanceReady:     "allowance_ready",
	EventBuilt:              "built",
	EventSigned:             "signed",
	EventSubmitted:          "submitted",
	EventProgress:           "progress",
	EventConfirmed:          "confirmed",
	EventFailed:             "failed",
}

func (e EventType) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return fmt.Sprintf("event(%d)", int(e))
}

// Event drives a transition. Only the fields relevant to Type are read.
type Event struct {
	Type          EventType
	TransactionID string
	Progress      *Progress
	Status        *types.TransactionStatus
	Err           *SwapError
}

// Effect is work the caller must perform after a transition
type Effect int

const (
	EffectNotify Effect = iota
	EffectValidate
	EffectCheckParticipants
	EffectCheckAssociation
	EffectRequestAssociation
	EffectCheckAllowance
	EffectRequestAllowance
	EffectBuild
	EffectSign
	EffectSubmit
	EffectMonitor
)

var transitions = map[Step]map[EventType]Step{
	StepIdle: {
		EventStart: StepValidating,
	},
	StepValidating: {
		EventValidated: StepEnsuringParticipants,
	},
	StepEnsuringParticipants: {
		EventParticipantsReady: StepCheckingDestAssociation,
	},
	StepCheckingDestAssociation: {
		EventAssociationMissing: StepRequestingDestAssociation,
		EventAssociationReady:   StepCheckingSourceAllowance,
	},
	StepRequestingDestAssociation: {
		EventAssociationReady: StepCheckingSourceAllowance,
	},
	StepCheckingSourceAllowance: {
		EventAllowanceMissing: StepRequestingSourceAllowance,
		EventAllowanceReady:   StepBuildingTransaction,
	},
	StepRequestingSourceAllowance: {
		EventAllowanceReady: StepBuildingTransaction,
	},
	StepBuildingTransaction: {
		EventBuilt: StepAwaitingSignature,
	},
	StepAwaitingSignature: {
		EventSigned: StepBroadcasting,
	},
	StepBroadcasting: {
		EventSubmitted: StepMonitoring,
	},
	StepMonitoring: {
		EventProgress: StepMonitoring,
	},
}

var stepEffects = map[Step]Effect{
	StepValidating:                EffectValidate,
	StepEnsuringParticipants:      EffectCheckParticipants,
	StepCheckingDestAssociation:   EffectCheckAssociation,
	StepRequestingDestAssociation: EffectRequestAssociation,
	StepCheckingSourceAllowance:   EffectCheckAllowance,
	StepRequestingSourceAllowance: EffectRequestAllowance,
	StepBuildingTransaction:       EffectBuild,
	StepAwaitingSignature:         EffectSign,
	StepBroadcasting:              EffectSubmit,
	StepMonitoring:                EffectMonitor,
}

// Transition computes the next state for event. It never mutates s; an illegal
// event returns s unchanged with ErrIllegalTransition.
func Transition(s State, ev Event) (State, []Effect, error) {
	if s.Step.Terminal() {
		return s, nil, fmt.Errorf("%w: %s is terminal", ErrIllegalTransition, s.Step)
	}

	switch ev.Type {
	case EventFailed:
		if s.Step == StepIdle {
			return s, nil, fmt.Errorf("%w: %s before start", ErrIllegalTransition, ev.Type)
		}
		err := ev.Err
		if err == nil {
			err = newError(KindValidation, s.Step, fmt.Errorf("unspecified failure"))
		}
		next := enter(s, StepError)
		next.Err = err
		return next, []Effect{EffectNotify}, nil

	case EventConfirmed:
		if s.Step != StepMonitoring {
			return s, nil, fmt.Errorf("%w: %s from %s", ErrIllegalTransition, ev.Type, s.Step)
		}
		if ev.Status == nil {
			return s, nil, fmt.Errorf("%w: %s without status", ErrIllegalTransition, ev.Type)
		}
		status := *ev.Status
		var next State
		switch status.Status {
		case types.StatusSuccess:
			next = enter(s, StepSuccess)
		case types.StatusFailed:
			next = enter(s, StepError)
			next.Err = &SwapError{
				Kind: KindOnChain,
				Step: StepMonitoring,
				Code: status.ResultCode,
				Err:  fmt.Errorf("transaction %s failed with %s", s.TransactionID, status.ResultCode),
			}
		default:
			next = enter(s, StepError)
			next.Err = newError(KindUnknownStatus, StepMonitoring,
				fmt.Errorf("transaction %s not found after %d attempts", s.TransactionID, status.Attempts))
		}
		next.Status = &status
		return next, []Effect{EffectNotify}, nil
	}

	target, ok := transitions[s.Step][ev.Type]
	if !ok {
		return s, nil, fmt.Errorf("%w: %s from %s", ErrIllegalTransition, ev.Type, s.Step)
	}

	if ev.Type == EventProgress {
		if ev.Progress == nil {
			return s, nil, fmt.Errorf("%w: %s without progress", ErrIllegalTransition, ev.Type)
		}
		next := s.Clone()
		p := *ev.Progress
		next.Progress = &p
		return next, []Effect{EffectNotify}, nil
	}

	next := enter(s, target)
	if ev.Type == EventSubmitted {
		next.TransactionID = ev.TransactionID
	}
	return next, []Effect{EffectNotify, stepEffects[target]}, nil
}

func enter(s State, step Step) State {
	next := s.Clone()
	next.Step = step
	next.History = append(next.History, step)
	if step.Terminal() {
		next.Progress = nil
	}
	return next
}
