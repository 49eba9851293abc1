package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"hedera-swap/pkg/logging"
	"hedera-swap/pkg/metrics"
	"hedera-swap/pkg/precondition"
	"hedera-swap/pkg/types"
	"hedera-swap/pkg/validator"
	"hedera-swap/pkg/wallet"
)

// DefaultSettleDelay gives the account-state service time to catch up after a precondition lands
const DefaultSettleDelay = 2 * time.Second

// Preconditions checks and establishes associations and allowances
type Preconditions interface {
	CheckParticipants(ctx context.Context, tokens []types.Token, participants []precondition.Participant) precondition.BatchResult
	RequestParticipantAssociations(ctx context.Context, session wallet.Session, missing []precondition.Pair) error
	CheckAssociation(ctx context.Context, token types.Token, accountID string) bool
	RequestAssociation(ctx context.Context, session wallet.Session, token types.Token) error
	CheckAllowance(ctx context.Context, token types.Token, owner string, spender precondition.Participant, amount *big.Int) precondition.Status
	RequestAllowance(ctx context.Context, session wallet.Session, token types.Token, spender precondition.Participant, amount *big.Int) error
}

// Builder encodes the swap call
type Builder interface {
	Build(route validator.Accepted, from, to types.Token, settings types.SwapSettings, payer string) (*types.UnsignedTx, error)
}

// Monitor resolves a submitted transaction
type Monitor interface {
	Wait(ctx context.Context, id string, onProgress func(attempt, max int)) types.TransactionStatus
}

// Listener receives a copy of the state after every transition
type Listener func(State)

// Config wires the contracts that take part in a swap
type Config struct {
	Router   precondition.Participant
	Adapters map[types.Aggregator]precondition.Participant
	// SettleDelay is waited after each confirmed precondition transaction
	SettleDelay time.Duration
}

// Request is one swap to execute
type Request struct {
	Route     validator.Accepted
	From      types.Token
	To        types.Token
	AmountIn  *big.Int
	Settings  *types.SwapSettings
	Recipient string
}

// Orchestrator runs swap attempts through the state machine
type Orchestrator struct {
	cfg           Config
	preconditions Preconditions
	builder       Builder
	monitor       Monitor
	metrics       *metrics.Recorder
	logger        *zap.Logger
	now           func() time.Time

	mu        sync.RWMutex
	listeners map[int]Listener
	nextID    int
}

// New creates a new orchestrator
func New(cfg Config, preconditions Preconditions, builder Builder, monitor Monitor, recorder *metrics.Recorder, logger *zap.Logger) *Orchestrator {
	if cfg.SettleDelay < 0 {
		cfg.SettleDelay = 0
	}
	return &Orchestrator{
		cfg:           cfg,
		preconditions: preconditions,
		builder:       builder,
		monitor:       monitor,
		metrics:       recorder,
		logger:        logging.OrNop(logger).Named("orchestrator"),
		now:           time.Now,
		listeners:     make(map[int]Listener),
	}
}

// Subscribe registers l for state updates of every attempt. The returned func unsubscribes.
func (o *Orchestrator) Subscribe(l Listener) func() {
	o.mu.Lock()
	id := o.nextID
	o.nextID++
	o.listeners[id] = l
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		delete(o.listeners, id)
		o.mu.Unlock()
	}
}

func (o *Orchestrator) publish(s State) {
	o.mu.RLock()
	listeners := make([]Listener, 0, len(o.listeners))
	for _, l := range o.listeners {
		listeners = append(listeners, l)
	}
	o.mu.RUnlock()

	for _, l := range listeners {
		l(s.Clone())
	}
}

// attempt carries the per-execution data effects need
type attempt struct {
	session   wallet.Session
	req       Request
	recipient string
	amountIn  *big.Int
	tx        *types.UnsignedTx
	signed    *wallet.SignedTx
	log       *zap.Logger
}

// Execute runs one swap attempt to a terminal state. Cancelling ctx before
// broadcast abandons the attempt; once broadcast, monitoring runs to completion.
func (o *Orchestrator) Execute(ctx context.Context, session wallet.Session, req Request) State {
	state := State{
		AttemptID: uuid.NewString(),
		Step:      StepIdle,
		History:   []Step{StepIdle},
	}
	a := &attempt{session: session, req: req}
	a.log = o.logger.With(zap.String("attempt", state.AttemptID))

	entered := o.now()
	ev := Event{Type: EventStart}
	for {
		next, effects, err := Transition(state, ev)
		if err != nil {
			a.log.Error("rejected transition", zap.Stringer("event", ev.Type), zap.Error(err))
			next, effects, _ = Transition(state, Event{Type: EventFailed, Err: newError(KindValidation, state.Step, err)})
		}

		if next.Step != state.Step {
			o.metrics.StepDuration(string(state.Step), o.now().Sub(entered))
			entered = o.now()
			a.log.Debug("step", zap.String("from", string(state.Step)), zap.String("to", string(next.Step)))
		}
		state = next

		if state.Step.Terminal() {
			o.finish(a, state)
			o.publish(state)
			return state
		}

		ev = o.perform(ctx, a, &state, effects)
	}
}

func (o *Orchestrator) finish(a *attempt, s State) {
	if s.Err == nil {
		o.metrics.Attempt(string(s.Step), "")
		a.log.Info("swap succeeded", zap.String("tx", s.TransactionID))
		return
	}
	o.metrics.Attempt(string(s.Step), s.Err.Kind.String())
	a.log.Warn("swap attempt ended with error",
		zap.Stringer("kind", s.Err.Kind),
		zap.String("step", string(s.Err.Step)),
		zap.String("code", s.Err.Code),
		zap.String("tx", s.TransactionID),
		zap.Error(s.Err.Err))
}

func (o *Orchestrator) perform(ctx context.Context, a *attempt, s *State, effects []Effect) Event {
	var ev Event
	for _, effect := range effects {
		if effect == EffectNotify {
			o.publish(*s)
			continue
		}
		if s.Step != StepMonitoring && ctx.Err() != nil {
			return failed(KindAbandoned, s.Step, ctx.Err())
		}
		ev = o.run(ctx, a, s, effect)
	}
	return ev
}

func failed(kind Kind, step Step, err error) Event {
	return Event{Type: EventFailed, Err: newError(kind, step, err)}
}

func (o *Orchestrator) run(ctx context.Context, a *attempt, s *State, effect Effect) Event {
	step := s.Step
	switch effect {
	case EffectValidate:
		if err := o.validate(a); err != nil {
			return failed(KindValidation, step, err)
		}
		return Event{Type: EventValidated}

	case EffectCheckParticipants:
		tokens := routeTokens(a.req)
		participants := o.participants(a.req.Route)
		batch := o.preconditions.CheckParticipants(ctx, tokens, participants)
		if batch.Complete() {
			return Event{Type: EventParticipantsReady}
		}
		a.log.Info("route participants need associations", zap.Int("missing", len(batch.Missing)))
		if err := o.preconditions.RequestParticipantAssociations(ctx, a.session, batch.Missing); err != nil {
			return preconditionFailed(ctx, step, err)
		}
		if err := o.settle(ctx); err != nil {
			return failed(KindAbandoned, step, err)
		}
		return Event{Type: EventParticipantsReady}

	case EffectCheckAssociation:
		if o.preconditions.CheckAssociation(ctx, a.req.To, a.recipient) {
			return Event{Type: EventAssociationReady}
		}
		return Event{Type: EventAssociationMissing}

	case EffectRequestAssociation:
		if a.recipient != a.session.AccountID() {
			return failed(KindPrecondition, step,
				fmt.Errorf("recipient %s is not associated with %s", a.recipient, a.req.To.Symbol))
		}
		if err := o.preconditions.RequestAssociation(ctx, a.session, a.req.To); err != nil {
			return preconditionFailed(ctx, step, err)
		}
		if err := o.settle(ctx); err != nil {
			return failed(KindAbandoned, step, err)
		}
		return Event{Type: EventAssociationReady}

	case EffectCheckAllowance:
		status := o.preconditions.CheckAllowance(ctx, a.req.From, a.session.AccountID(), o.cfg.Router, a.amountIn)
		if status.Satisfied {
			return Event{Type: EventAllowanceReady}
		}
		return Event{Type: EventAllowanceMissing}

	case EffectRequestAllowance:
		if err := o.preconditions.RequestAllowance(ctx, a.session, a.req.From, o.cfg.Router, a.amountIn); err != nil {
			return preconditionFailed(ctx, step, err)
		}
		if err := o.settle(ctx); err != nil {
			return failed(KindAbandoned, step, err)
		}
		return Event{Type: EventAllowanceReady}

	case EffectBuild:
		tx, err := o.builder.Build(a.req.Route, a.req.From, a.req.To, *a.req.Settings, a.session.AccountID())
		if err != nil {
			return failed(KindValidation, step, err)
		}
		a.tx = tx
		return Event{Type: EventBuilt}

	case EffectSign:
		signed, err := a.session.Sign(ctx, a.tx)
		if err != nil {
			return failed(classifySigning(ctx, err), step, err)
		}
		a.signed = signed
		return Event{Type: EventSigned}

	case EffectSubmit:
		id, err := a.session.Submit(context.WithoutCancel(ctx), a.signed)
		if err != nil {
			ev := failed(KindNetwork, step, err)
			ev.Err.Code = wallet.CodeOf(err)
			return ev
		}
		a.log.Info("swap submitted", zap.String("tx", id))
		return Event{Type: EventSubmitted, TransactionID: id}

	case EffectMonitor:
		status := o.monitor.Wait(context.WithoutCancel(ctx), s.TransactionID, func(attempt, max int) {
			next, effects, err := Transition(*s, Event{Type: EventProgress, Progress: &Progress{Attempt: attempt, Max: max}})
			if err != nil {
				return
			}
			*s = next
			for _, e := range effects {
				if e == EffectNotify {
					o.publish(next)
				}
			}
		})
		return Event{Type: EventConfirmed, Status: &status}
	}

	return failed(KindValidation, step, fmt.Errorf("no handler for effect %d", effect))
}

func (o *Orchestrator) validate(a *attempt) error {
	req := a.req
	if a.session == nil {
		return errors.New("no wallet session")
	}
	if !req.Route.Validated() {
		return errors.New("route was not validated")
	}
	if req.Route.Route.TotalOut().Sign() <= 0 {
		return errors.New("route has no output")
	}
	if req.Settings == nil {
		return errors.New("swap settings are required")
	}
	if err := req.Settings.Validate(o.now()); err != nil {
		return err
	}
	if sameToken(req.From, req.To) {
		return fmt.Errorf("source and destination are both %s", req.From.Symbol)
	}

	amount := req.AmountIn
	if amount == nil {
		amount = req.Route.Route.AmountIn
	}
	if amount == nil || amount.Sign() <= 0 {
		return errors.New("amount must be positive")
	}
	if routeIn := req.Route.Route.AmountIn; routeIn != nil && routeIn.Cmp(amount) != 0 {
		return fmt.Errorf("amount %s does not match quoted input %s", amount, routeIn)
	}
	a.amountIn = amount

	a.recipient = req.Recipient
	if a.recipient == "" {
		a.recipient = a.session.AccountID()
	}
	return nil
}

func (o *Orchestrator) settle(ctx context.Context) error {
	if o.cfg.SettleDelay == 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(o.cfg.SettleDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// participants returns the router and the adapter of every aggregator on the route
func (o *Orchestrator) participants(route validator.Accepted) []precondition.Participant {
	out := []precondition.Participant{o.cfg.Router}
	seen := map[string]struct{}{o.cfg.Router.ID: {}}
	for _, agg := range route.Aggregators {
		p, ok := o.cfg.Adapters[agg]
		if !ok {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}

// routeTokens lists every token the route moves through, intermediates included
func routeTokens(req Request) []types.Token {
	path := req.Route.Path
	if len(path) == 0 {
		path = req.Route.Route.Path
	}
	if len(path) < 2 {
		return []types.Token{req.From, req.To}
	}
	tokens := make([]types.Token, 0, len(path))
	for i, addr := range path {
		switch {
		case i == 0 && addrMatches(req.From, addr):
			tokens = append(tokens, req.From)
		case i == len(path)-1 && addrMatches(req.To, addr):
			tokens = append(tokens, req.To)
		case addr == types.NativeAddress:
			tokens = append(tokens, types.HBAR)
		default:
			id := types.AddressToTokenID(addr)
			tokens = append(tokens, types.Token{ID: id, Address: addr, Symbol: id})
		}
	}
	return tokens
}

func sameToken(a, b types.Token) bool {
	if a.IsNative() || b.IsNative() {
		return a.IsNative() && b.IsNative()
	}
	return a.ID != "" && a.ID == b.ID
}

func addrMatches(token types.Token, addr common.Address) bool {
	tokenAddr, err := token.EVMAddress()
	return err == nil && tokenAddr == addr
}

func preconditionFailed(ctx context.Context, step Step, err error) Event {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return failed(KindAbandoned, step, err)
	}
	ev := failed(KindPrecondition, step, err)
	var precondErr *precondition.Error
	if errors.As(err, &precondErr) {
		ev.Err.Code = precondErr.Code
	}
	return ev
}

func classifySigning(ctx context.Context, err error) Kind {
	switch {
	case errors.Is(err, wallet.ErrRejected):
		return KindSignatureRejected
	case errors.Is(err, types.ErrValueNeedsBoundSigner):
		return KindValidation
	case ctx.Err() != nil:
		return KindAbandoned
	default:
		return KindNetwork
	}
}
