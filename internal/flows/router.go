package flows

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/Ananth-NQI/segurobot-backend/internal/cache"
	"github.com/Ananth-NQI/segurobot-backend/internal/logger"
	"github.com/Ananth-NQI/segurobot-backend/internal/models"
	"github.com/Ananth-NQI/segurobot-backend/internal/services"
	"github.com/Ananth-NQI/segurobot-backend/internal/storage"
)

// ErrUnknownStep means a session points at a (flow, step) nobody registered
var ErrUnknownStep = errors.New("unknown flow step")

// Event is one inbound chat message, already mapped from the transport
type Event struct {
	ID             string
	From           string
	Body           string
	Type           string
	ReplyID        string
	IsGroupMessage bool
	FromSelf       bool
}

// Deps are the services a conversation needs
type Deps struct {
	Sessions        *services.SessionManager
	Sender          services.Sender
	Availability    *services.Availability
	Exporter        services.Exporter
	Store           storage.Store
	Dedup           *cache.DedupCache
	Catalog         *Catalog
	Log             *logger.Logger
	OperatorAddress string
	HandoffWindow   time.Duration
	DedupTTL        time.Duration
	Now             func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Result reports what happened to an event
type Result string

const (
	ResultHandled   Result = "handled"
	ResultIgnored   Result = "ignored"
	ResultDuplicate Result = "duplicate"
	ResultInactive  Result = "inactive"
	ResultFailed    Result = "failed"
)

// FlowRouter turns inbound events into flow transitions. Events for the same
// address are processed one at a time; different addresses run in parallel.
type FlowRouter struct {
	deps  *Deps
	reg   *Registry
	locks *keyedMutex
}

func NewFlowRouter(deps *Deps, reg *Registry) (*FlowRouter, error) {
	if deps.Sessions == nil || deps.Sender == nil || deps.Dedup == nil || deps.Log == nil {
		return nil, errors.New("flow router needs sessions, sender, dedup cache and logger")
	}
	if deps.Catalog == nil {
		deps.Catalog = DefaultCatalog()
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return &FlowRouter{deps: deps, reg: reg, locks: newKeyedMutex()}, nil
}

// Handle processes one event end to end
func (r *FlowRouter) Handle(ctx context.Context, ev Event) (Result, error) {
	if ignoredEvent(ev) {
		return ResultIgnored, nil
	}

	if !r.deps.Dedup.MarkIfNew(ev.From, ev.ID, r.deps.DedupTTL) {
		r.deps.Log.Debug("Duplicate event dropped", "from", ev.From, "id", ev.ID)
		return ResultDuplicate, nil
	}

	r.deps.Sessions.IncrementMessages()

	in := NewInput(ev.Body, ev.ReplyID)
	intent := IntentNone
	if in.ReplyID == "" {
		intent = r.deps.Catalog.Detect(in.Text)
	}

	if r.deps.Availability != nil && !r.deps.Availability.Active() {
		if intent != IntentReset {
			r.deps.Log.Debug("Bot inactive, event skipped", "from", ev.From)
			return ResultInactive, nil
		}
		r.deps.Log.Info("Reset command received while inactive, re-enabling bot", "from", ev.From)
		r.deps.Availability.Enable()
	}

	unlock := r.locks.Lock(ev.From)
	defer unlock()

	session := r.deps.Sessions.GetOrCreate(ev.From)
	turn := newTurn(ctx, r.deps, r.reg, session, in)

	if err := r.run(turn, intent); err != nil {
		r.fail(ctx, turn, err)
		return ResultFailed, err
	}

	if _, err := r.deps.Sessions.Update(ev.From, turn.patch()); err != nil {
		return ResultFailed, fmt.Errorf("failed to commit session: %w", err)
	}
	return ResultHandled, nil
}

func ignoredEvent(ev Event) bool {
	if ev.FromSelf || ev.IsGroupMessage {
		return true
	}
	if ev.From == "" || ev.ID == "" {
		return true
	}
	return strings.HasSuffix(ev.From, "@broadcast") || strings.HasSuffix(ev.From, "@g.us")
}

// run dispatches the turn and converts handler panics into errors
func (r *FlowRouter) run(t *Turn, intent Intent) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.deps.Log.Error("Handler panic", "panic", rec, "stack", string(debug.Stack()))
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()

	switch intent {
	case IntentReset:
		return t.Enter(FlowMainMenu, stepChoose)
	case IntentGreeting:
		return t.Enter(FlowWelcome, stepStart)
	case IntentFarewell:
		return farewell(t)
	case IntentHuman:
		return t.Enter(FlowHandoff, stepStart)
	}

	step, ok := r.reg.Lookup(t.Flow(), t.Step())
	if !ok {
		r.deps.Log.Error("Session points at an unknown step, resetting",
			"address", t.Address, "flow", t.Flow(), "step", t.Step())
		t.routingReset = true
		t.ClearData()
		t.Goto(FlowWelcome, stepStart)
		return t.Say(msgRoutingError)
	}

	if t.Input.ReplyID == "" && r.deps.Catalog.IsBack(t.Input.Text) {
		return t.Back()
	}
	return step.Handle(t)
}

// fail discards the turn's changes, parks the session on the main menu and
// tells the user how to continue. A session whose position could not be
// resolved restarts at welcome/start with no data instead.
func (r *FlowRouter) fail(ctx context.Context, t *Turn, cause error) {
	address := t.Address
	r.deps.Log.Error("Failed to process message", "address", address, "error", cause)

	flow, step := FlowMainMenu, stepChoose
	patch := models.SessionPatch{CurrentFlow: &flow, CurrentStep: &step}
	if t.routingReset {
		flow, step = FlowWelcome, stepStart
		patch.ClearData = true
	}
	if _, err := r.deps.Sessions.Update(address, patch); err != nil {
		r.deps.Log.Error("Failed to park session after error", "address", address, "error", err)
	}
	if err := r.deps.Sender.SendText(ctx, address, msgGenericError); err != nil {
		r.deps.Log.Error("Failed to send error message", "address", address, "error", err)
	}
}

// keyedMutex serializes work per key and forgets keys nobody holds
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
