package flows

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Ananth-NQI/segurobot-backend/internal/models"
	"github.com/Ananth-NQI/segurobot-backend/internal/utils"
)

// Input is one inbound message as handlers see it
type Input struct {
	Raw     string // trimmed original body
	Text    string // normalized body
	ReplyID string // structured reply id, when the user tapped a list row
}

func NewInput(body, replyID string) Input {
	raw := strings.TrimSpace(body)
	return Input{Raw: raw, Text: Normalize(raw), ReplyID: strings.TrimSpace(replyID)}
}

// Turn carries everything a handler may touch while processing one message.
// Session changes are made on a working copy that the router commits only
// when the handler returns without error.
type Turn struct {
	ctx     context.Context
	deps    *Deps
	reg     *Registry
	Address string
	Input   Input

	session   *models.Session
	clearData bool
	hops      int

	// set when the stored position was unusable and the turn restarted it
	routingReset bool
}

// maxHops bounds Enter chains inside a single turn
const maxHops = 8

func newTurn(ctx context.Context, deps *Deps, reg *Registry, session *models.Session, in Input) *Turn {
	return &Turn{
		ctx:     ctx,
		deps:    deps,
		reg:     reg,
		Address: session.Address,
		Input:   in,
		session: session,
	}
}

func (t *Turn) Context() context.Context { return t.ctx }
func (t *Turn) Flow() string             { return t.session.CurrentFlow }
func (t *Turn) Step() string             { return t.session.CurrentStep }
func (t *Turn) Catalog() *Catalog        { return t.deps.Catalog }
func (t *Turn) Now() time.Time           { return t.deps.now() }

// Field reads a value collected by any flow
func (t *Turn) Field(flow, key string) string {
	return t.session.Field(flow, key)
}

// Set records a value for the current flow
func (t *Turn) Set(key, value string) {
	t.session.SetField(t.session.CurrentFlow, key, value)
}

// SetFor records a value under another flow, typically right before
// entering it
func (t *Turn) SetFor(flow, key, value string) {
	t.session.SetField(flow, key, value)
}

// Unset removes a value of the current flow
func (t *Turn) Unset(key string) {
	if fields := t.session.Data[t.session.CurrentFlow]; fields != nil {
		delete(fields, key)
	}
}

// Fields returns a copy of everything collected by flow
func (t *Turn) Fields(flow string) map[string]string {
	out := make(map[string]string, len(t.session.Data[flow]))
	for k, v := range t.session.Data[flow] {
		out[k] = v
	}
	return out
}

// ClearData drops every collected value
func (t *Turn) ClearData() {
	t.session.Data = make(map[string]map[string]string)
	t.clearData = true
}

// Goto moves the turn without rendering anything
func (t *Turn) Goto(flow, step string) {
	t.session.CurrentFlow = flow
	t.session.CurrentStep = step
}

// Enter moves the turn and renders the target step's prompt
func (t *Turn) Enter(flow, step string) error {
	s, ok := t.reg.Lookup(flow, step)
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrUnknownStep, flow, step)
	}
	t.hops++
	if t.hops > maxHops {
		return fmt.Errorf("too many transitions in one turn, last %s/%s", flow, step)
	}
	t.Goto(flow, step)
	if s.Prompt == nil {
		return nil
	}
	return s.Prompt(t)
}

// Reprompt renders the current step's prompt again
func (t *Turn) Reprompt() error {
	s, ok := t.reg.Lookup(t.Flow(), t.Step())
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrUnknownStep, t.Flow(), t.Step())
	}
	if s.Prompt == nil {
		return nil
	}
	return s.Prompt(t)
}

// Retry tells the user what was wrong and asks again
func (t *Turn) Retry(hint string) error {
	if err := t.Say(hint); err != nil {
		return err
	}
	return t.Reprompt()
}

// Back returns to the previous step of the flow, or to the main menu from a
// flow's first step.
func (t *Turn) Back() error {
	s, ok := t.reg.Lookup(t.Flow(), t.Step())
	if ok && s.Prev != "" {
		return t.Enter(t.Flow(), s.Prev)
	}
	return t.Enter(FlowMainMenu, stepChoose)
}

// Say sends a text message to the user
func (t *Turn) Say(text string) error {
	return t.deps.Sender.SendText(t.ctx, t.Address, text)
}

// Ask sends a menu to the user
func (t *Turn) Ask(m Menu) error {
	return t.deps.Sender.SendOptionList(t.ctx, t.Address, m.List())
}

// NotifyOperator sends text to the operator address. It never sends to the
// user who triggered it and is a no-op when no operator is configured.
func (t *Turn) NotifyOperator(text string) {
	op := t.deps.OperatorAddress
	if op == "" {
		t.deps.Log.Warn("No operator address configured, notification skipped", "user", t.Address)
		return
	}
	if utils.SameAddress(op, t.Address) {
		t.deps.Log.Debug("Operator is the sender, notification skipped", "user", t.Address)
		return
	}
	if err := t.deps.Sender.SendText(t.ctx, op, text); err != nil {
		t.deps.Log.Error("Failed to notify operator", "error", err, "user", t.Address)
	}
}

// Export hands a finalized quote to the configured sinks. Failures are logged
// and never block the conversation.
func (t *Turn) Export(record *models.QuoteRecord) {
	if t.deps.Exporter == nil {
		return
	}
	if err := t.deps.Exporter.Export(t.ctx, record); err != nil {
		t.deps.Log.Error("Failed to export quote", "error", err, "user", t.Address)
		return
	}
	t.deps.Log.Info("📝 Quote exported", "user", t.Address, "type", record.InsuranceType)
}

// OpenTicket records a follow-up request and returns its protocol number
func (t *Turn) OpenTicket(issueType, prefix, nationalID, description string) string {
	protocol := utils.GenerateProtocol(prefix, t.Now())
	if t.deps.Store == nil {
		return protocol
	}
	ticket := &models.SupportTicket{
		TicketID:    protocol,
		UserPhone:   t.Address,
		UserName:    t.Field(FlowQuote, fieldName),
		IssueType:   issueType,
		NationalID:  nationalID,
		Description: description,
		Status:      models.TicketStatusOpen,
	}
	if _, err := t.deps.Store.CreateSupportTicket(ticket); err != nil {
		t.deps.Log.Error("Failed to save support ticket", "error", err, "protocol", protocol)
	}
	return protocol
}

// DisableBot pauses automated replies for the handoff window
func (t *Turn) DisableBot() *time.Time {
	if t.deps.Availability == nil {
		return nil
	}
	return t.deps.Availability.Disable(t.deps.HandoffWindow)
}

func (t *Turn) patch() models.SessionPatch {
	flow, step := t.session.CurrentFlow, t.session.CurrentStep
	data := t.session.Data
	if data == nil {
		data = make(map[string]map[string]string)
	}
	return models.SessionPatch{
		CurrentFlow: &flow,
		CurrentStep: &step,
		Data:        data,
		ClearData:   t.clearData,
	}
}
