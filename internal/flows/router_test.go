package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Ananth-NQI/segurobot-backend/internal/cache"
	"github.com/Ananth-NQI/segurobot-backend/internal/logger"
	"github.com/Ananth-NQI/segurobot-backend/internal/models"
	"github.com/Ananth-NQI/segurobot-backend/internal/services"
	"github.com/Ananth-NQI/segurobot-backend/internal/storage"
)

const (
	testUser     = "whatsapp:+5511999990001"
	testOperator = "whatsapp:+5511900000000"
)

type sentMessage struct {
	To   string
	Text string
	List bool
}

type recordingSender struct {
	mu       sync.Mutex
	messages []sentMessage
	failNext bool
}

var errSendFailed = errors.New("send failed")

func (s *recordingSender) record(to, text string, list bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext {
		s.failNext = false
		return errSendFailed
	}
	s.messages = append(s.messages, sentMessage{To: to, Text: text, List: list})
	return nil
}

func (s *recordingSender) SendText(ctx context.Context, to, text string) error {
	return s.record(to, text, false)
}

func (s *recordingSender) SendOptionList(ctx context.Context, to string, list services.OptionList) error {
	if err := list.Validate(); err != nil {
		return err
	}
	return s.record(to, list.RenderText(), true)
}

func (s *recordingSender) to(addr string) []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sentMessage
	for _, m := range s.messages {
		if m.To == addr {
			out = append(out, m)
		}
	}
	return out
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *recordingSender) last(addr string) string {
	msgs := s.to(addr)
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1].Text
}

type recordingExporter struct {
	mu      sync.Mutex
	records []*models.QuoteRecord
}

func (e *recordingExporter) Export(ctx context.Context, record *models.QuoteRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.records = append(e.records, record)
	return nil
}

type fixture struct {
	router   *FlowRouter
	sender   *recordingSender
	exporter *recordingExporter
	sessions *services.SessionManager
	avail    *services.Availability
	store    *storage.MemoryStore

	mu  sync.Mutex
	seq int
}

func newFixture(t *testing.T, operator string) *fixture {
	t.Helper()
	log := logger.Nop()
	sessions := services.NewSessionManager(nil, log)
	avail := services.NewAvailability(sessions, log)
	t.Cleanup(avail.Stop)

	f := &fixture{
		sender:   &recordingSender{},
		exporter: &recordingExporter{},
		sessions: sessions,
		avail:    avail,
		store:    storage.NewMemoryStore(),
	}
	router, err := NewFlowRouter(&Deps{
		Sessions:        sessions,
		Sender:          f.sender,
		Availability:    avail,
		Exporter:        f.exporter,
		Store:           f.store,
		Dedup:           cache.NewDedupCache(time.Minute),
		Catalog:         DefaultCatalog(),
		Log:             log,
		OperatorAddress: operator,
		HandoffWindow:   30 * time.Minute,
		DedupTTL:        time.Minute,
	}, DefaultRegistry())
	if err != nil {
		t.Fatalf("NewFlowRouter failed: %v", err)
	}
	f.router = router
	return f
}

func (f *fixture) nextID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	return fmt.Sprintf("SM%04d", f.seq)
}

func (f *fixture) send(t *testing.T, from, body string) Result {
	t.Helper()
	res, err := f.router.Handle(context.Background(), Event{ID: f.nextID(), From: from, Body: body, Type: "chat"})
	if err != nil {
		t.Fatalf("Handle(%q) failed: %v", body, err)
	}
	return res
}

func (f *fixture) tap(t *testing.T, from, replyID string) Result {
	t.Helper()
	res, err := f.router.Handle(context.Background(), Event{ID: f.nextID(), From: from, ReplyID: replyID, Type: "list_response"})
	if err != nil {
		t.Fatalf("Handle(reply %q) failed: %v", replyID, err)
	}
	return res
}

func (f *fixture) position(t *testing.T, addr string) (string, string) {
	t.Helper()
	s, err := f.sessions.Get(addr)
	if err != nil {
		t.Fatalf("session %s not found: %v", addr, err)
	}
	return s.CurrentFlow, s.CurrentStep
}

func (f *fixture) expectAt(t *testing.T, addr, flow, step string) {
	t.Helper()
	gotFlow, gotStep := f.position(t, addr)
	if gotFlow != flow || gotStep != step {
		t.Fatalf("Expected %s/%s, got %s/%s", flow, step, gotFlow, gotStep)
	}
}

func TestQuoteHappyPath(t *testing.T) {
	f := newFixture(t, testOperator)

	f.send(t, testUser, "Oi!")
	f.expectAt(t, testUser, FlowMainMenu, stepChoose)

	f.tap(t, testUser, optQuote)
	f.expectAt(t, testUser, FlowQuote, stepCollectName)

	steps := []struct {
		body string
		step string
	}{
		{"Maria Silva", stepCollectEmail},
		{"maria@x.com", stepConfirmContinue},
		{"continuar", stepCollectNationalID},
		{"529.982.247-25", stepSelectInsuranceType},
		{"auto", stepCollectVehicleBrand},
		{"Fiat Argo", stepCollectVehiclePlate},
		{"abc-1d23", stepCollectPostalCode},
	}
	for _, s := range steps {
		f.send(t, testUser, s.body)
		f.expectAt(t, testUser, FlowQuote, s.step)
	}

	f.send(t, testUser, "13015-900")
	f.expectAt(t, testUser, FlowFinalization, stepChoose)

	if len(f.exporter.records) != 1 {
		t.Fatalf("Expected exactly one exported record, got %d", len(f.exporter.records))
	}
	rec := f.exporter.records[0]
	if rec.Name != "Maria Silva" || rec.Email != "maria@x.com" {
		t.Errorf("Unexpected contact data: %+v", rec)
	}
	if rec.NationalID != "52998224725" {
		t.Errorf("Expected normalized CPF, got %q", rec.NationalID)
	}
	if rec.InsuranceType != models.InsuranceAuto || rec.VehicleInfo != "Fiat Argo - ABC1D23" {
		t.Errorf("Unexpected vehicle data: type=%q vehicle=%q", rec.InsuranceType, rec.VehicleInfo)
	}
	if rec.PostalCode != "13015900" || rec.Phone != "+5511999990001" {
		t.Errorf("Unexpected postal code or phone: %q %q", rec.PostalCode, rec.Phone)
	}

	ops := f.sender.to(testOperator)
	if len(ops) != 1 || !strings.Contains(ops[0].Text, "Nova cotação") {
		t.Errorf("Expected one lead notification to the operator, got %+v", ops)
	}

	s, _ := f.sessions.Get(testUser)
	if len(s.History) == 0 || s.History[len(s.History)-1].To != FlowFinalization {
		t.Errorf("Expected history to end with a transition into finalization, got %+v", s.History)
	}
}

func TestQuoteNonAutoSkipsVehicle(t *testing.T) {
	f := newFixture(t, testOperator)
	f.send(t, testUser, "oi")
	f.send(t, testUser, "1")
	for _, body := range []string{"João Souza", "joao@exemplo.com.br", "1", "52998224725"} {
		f.send(t, testUser, body)
	}
	f.expectAt(t, testUser, FlowQuote, stepSelectInsuranceType)

	f.tap(t, testUser, insuranceOptionPrefix+models.InsuranceHome)
	f.expectAt(t, testUser, FlowQuote, stepCollectNotes)

	f.send(t, testUser, "voltar")
	f.expectAt(t, testUser, FlowQuote, stepSelectInsuranceType)

	f.send(t, testUser, "seguro de casa")
	f.send(t, testUser, "Apartamento de 80m2 em Campinas")
	f.expectAt(t, testUser, FlowFinalization, stepChoose)

	if len(f.exporter.records) != 1 {
		t.Fatalf("Expected one record, got %d", len(f.exporter.records))
	}
	rec := f.exporter.records[0]
	if rec.InsuranceType != models.InsuranceHome || rec.VehicleInfo != "" {
		t.Errorf("Unexpected record: %+v", rec)
	}
	if rec.Notes != "Apartamento de 80m2 em Campinas" {
		t.Errorf("Unexpected notes %q", rec.Notes)
	}
}

func TestBackNavigation(t *testing.T) {
	f := newFixture(t, testOperator)
	f.send(t, testUser, "oi")
	f.tap(t, testUser, optQuote)
	f.send(t, testUser, "Maria Silva")
	f.expectAt(t, testUser, FlowQuote, stepCollectEmail)

	f.send(t, testUser, "Voltar")
	f.expectAt(t, testUser, FlowQuote, stepCollectName)
	if !strings.Contains(f.sender.last(testUser), "nome completo") {
		t.Errorf("Expected the name prompt again, got %q", f.sender.last(testUser))
	}

	s, _ := f.sessions.Get(testUser)
	if s.Field(FlowQuote, fieldName) != "Maria Silva" {
		t.Errorf("Going back must keep collected data")
	}

	// first step of a flow goes back to the main menu
	f.send(t, testUser, "voltar")
	f.expectAt(t, testUser, FlowMainMenu, stepChoose)
}

func TestInvalidInputRepromptsWithoutAdvancing(t *testing.T) {
	f := newFixture(t, testOperator)
	f.send(t, testUser, "oi")
	f.tap(t, testUser, optQuote)
	f.send(t, testUser, "Maria Silva")
	f.send(t, testUser, "maria@x.com")
	f.send(t, testUser, "continuar")

	before := len(f.sender.to(testUser))
	f.send(t, testUser, "111.111.111-11")
	f.expectAt(t, testUser, FlowQuote, stepCollectNationalID)

	msgs := f.sender.to(testUser)[before:]
	if len(msgs) != 2 || !strings.Contains(msgs[0].Text, "CPF inválido") || !strings.Contains(msgs[1].Text, "CPF") {
		t.Errorf("Expected a correction and the CPF prompt, got %+v", msgs)
	}

	f.send(t, testUser, "xyz")
	f.expectAt(t, testUser, FlowQuote, stepCollectNationalID)
}

func TestUnknownMenuOption(t *testing.T) {
	f := newFixture(t, testOperator)
	f.send(t, testUser, "oi")
	f.send(t, testUser, "quero uma pizza")
	f.expectAt(t, testUser, FlowMainMenu, stepChoose)

	msgs := f.sender.to(testUser)
	if len(msgs) < 2 || !strings.Contains(msgs[len(msgs)-2].Text, "Não entendi") || !msgs[len(msgs)-1].List {
		t.Errorf("Expected a hint followed by the menu, got %+v", msgs)
	}

	f.send(t, testUser, "9")
	f.expectAt(t, testUser, FlowMainMenu, stepChoose)
}

func TestDuplicateEventIsIgnored(t *testing.T) {
	f := newFixture(t, testOperator)
	ev := Event{ID: "SMdup", From: testUser, Body: "oi", Type: "chat"}

	res, err := f.router.Handle(context.Background(), ev)
	if err != nil || res != ResultHandled {
		t.Fatalf("First delivery: res=%s err=%v", res, err)
	}
	sent := f.sender.count()
	before, _ := f.sessions.Get(testUser)

	res, err = f.router.Handle(context.Background(), ev)
	if err != nil || res != ResultDuplicate {
		t.Fatalf("Second delivery: res=%s err=%v", res, err)
	}
	if f.sender.count() != sent {
		t.Errorf("Duplicate produced %d extra messages", f.sender.count()-sent)
	}
	after, _ := f.sessions.Get(testUser)
	if !after.LastActivity.Equal(before.LastActivity) || after.CurrentFlow != before.CurrentFlow {
		t.Errorf("Duplicate mutated the session")
	}
	if got := f.sessions.Stats().MessageCount; got != 1 {
		t.Errorf("Expected message count 1, got %d", got)
	}
}

func TestInactiveBotSkipsEverything(t *testing.T) {
	f := newFixture(t, testOperator)
	f.avail.Disable(time.Hour)

	if res := f.send(t, testUser, "oi"); res != ResultInactive {
		t.Fatalf("Expected inactive result, got %s", res)
	}
	if f.sender.count() != 0 {
		t.Errorf("Inactive bot sent %d messages", f.sender.count())
	}
	stats := f.sessions.Stats()
	if stats.TotalSessions != 0 {
		t.Errorf("Inactive bot created a session")
	}
	if stats.MessageCount != 1 {
		t.Errorf("Expected message count 1, got %d", stats.MessageCount)
	}

	// the reset command brings the bot back
	if res := f.send(t, testUser, "Menu"); res != ResultHandled {
		t.Fatalf("Expected reset to be handled, got %s", res)
	}
	if !f.avail.Active() {
		t.Errorf("Expected bot to be active after reset")
	}
	f.expectAt(t, testUser, FlowMainMenu, stepChoose)
}

func TestHandoffNotifiesOperatorOnce(t *testing.T) {
	f := newFixture(t, testOperator)
	f.send(t, testUser, "oi")
	before := len(f.sender.to(testUser))

	f.send(t, testUser, "Quero falar com um atendente, por favor")
	f.expectAt(t, testUser, FlowHandoff, stepWaiting)

	if f.avail.Active() {
		t.Errorf("Expected bot to be paused after handoff")
	}
	if ops := f.sender.to(testOperator); len(ops) != 1 {
		t.Errorf("Expected exactly one operator notification, got %d", len(ops))
	}
	acks := f.sender.to(testUser)[before:]
	if len(acks) != 1 || !strings.Contains(acks[0].Text, "Protocolo") {
		t.Errorf("Expected exactly one acknowledgement, got %+v", acks)
	}

	tickets, _ := f.store.GetSupportTicketsByUser(testUser)
	if len(tickets) != 1 || tickets[0].IssueType != models.IssueTypeHandoff {
		t.Errorf("Expected one handoff ticket, got %+v", tickets)
	}

	if res := f.send(t, testUser, "alguém aí?"); res != ResultInactive {
		t.Errorf("Expected bot to stay quiet during handoff, got %s", res)
	}
}

func TestHandoffFromOperatorSkipsNotification(t *testing.T) {
	f := newFixture(t, testUser)
	f.send(t, testUser, "oi")
	before := len(f.sender.to(testUser))

	f.tap(t, testUser, optHuman)
	f.expectAt(t, testUser, FlowHandoff, stepWaiting)

	if got := len(f.sender.to(testUser)) - before; got != 1 {
		t.Errorf("Expected only the acknowledgement, got %d messages", got)
	}
}

func TestHandoffSkipsOperatorInBareNumberForm(t *testing.T) {
	const phone = "+5511988887777"
	user := "whatsapp:" + phone
	f := newFixture(t, phone)
	f.send(t, user, "oi")
	before := len(f.sender.to(user))

	f.send(t, user, "quero falar com um atendente")
	f.expectAt(t, user, FlowHandoff, stepWaiting)

	if ops := f.sender.to(phone); len(ops) != 0 {
		t.Errorf("Operator notice reached the sender's own phone: %+v", ops)
	}
	if got := len(f.sender.to(user)) - before; got != 1 {
		t.Errorf("Expected only the acknowledgement, got %d messages", got)
	}
}

func TestQuoteConfirmHandoff(t *testing.T) {
	f := newFixture(t, testOperator)
	f.send(t, testUser, "oi")
	f.tap(t, testUser, optQuote)
	f.send(t, testUser, "Maria Silva")
	f.send(t, testUser, "maria@x.com")
	f.tap(t, testUser, optHandoff)
	f.expectAt(t, testUser, FlowHandoff, stepWaiting)

	ops := f.sender.to(testOperator)
	if len(ops) != 1 || !strings.Contains(ops[0].Text, "Maria Silva") || !strings.Contains(ops[0].Text, "cotação") {
		t.Errorf("Unexpected operator notification: %+v", ops)
	}
}

func TestClaimFlowOpensTicket(t *testing.T) {
	f := newFixture(t, testOperator)
	f.send(t, testUser, "oi")
	f.tap(t, testUser, optClaim)
	f.expectAt(t, testUser, FlowClaim, stepCollectNationalID)

	f.send(t, testUser, "52998224725")
	f.send(t, testUser, "curto")
	f.expectAt(t, testUser, FlowClaim, stepCollectDescription)

	f.send(t, testUser, "Bati o carro no estacionamento do mercado ontem à noite")
	f.expectAt(t, testUser, FlowFinalization, stepChoose)

	tickets, _ := f.store.ListSupportTickets(models.TicketStatusOpen)
	if len(tickets) != 1 {
		t.Fatalf("Expected one ticket, got %d", len(tickets))
	}
	if tk := tickets[0]; tk.IssueType != models.IssueTypeClaim || !strings.HasPrefix(tk.TicketID, "SIN-") {
		t.Errorf("Unexpected ticket %+v", tk)
	}
	ops := f.sender.to(testOperator)
	if len(ops) != 1 || !strings.Contains(ops[0].Text, "529.***.***-25") {
		t.Errorf("Expected a masked CPF in the operator alert, got %+v", ops)
	}
	if len(f.exporter.records) != 0 {
		t.Errorf("Claims must not export quotes")
	}
}

func TestRenewalFlow(t *testing.T) {
	f := newFixture(t, testOperator)
	f.send(t, testUser, "oi")
	f.send(t, testUser, "quero renovar meu seguro")
	f.expectAt(t, testUser, FlowRenewal, stepCollectNationalID)

	f.send(t, testUser, "529.982.247-25")
	f.send(t, testUser, "13/2025")
	f.expectAt(t, testUser, FlowRenewal, stepCollectPolicyEnd)
	f.send(t, testUser, "Não sei")
	f.expectAt(t, testUser, FlowFinalization, stepChoose)

	tickets, _ := f.store.GetSupportTicketsByUser(testUser)
	if len(tickets) != 1 || tickets[0].IssueType != models.IssueTypeRenewal {
		t.Fatalf("Expected one renewal ticket, got %+v", tickets)
	}
}

func TestInsurersDirectory(t *testing.T) {
	f := newFixture(t, testOperator)
	f.send(t, testUser, "oi")
	f.tap(t, testUser, optInsurers)
	f.expectAt(t, testUser, FlowInsurers, stepChoose)

	f.send(t, testUser, "porto seguro")
	f.expectAt(t, testUser, FlowFinalization, stepChoose)

	msgs := f.sender.to(testUser)
	found := false
	for _, m := range msgs {
		if strings.Contains(m.Text, "portoseguro.com.br") && strings.Contains(m.Text, "0800 727 0800") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected insurer website and assistance phone to be sent, got %+v", msgs)
	}
}

func TestFinalizationChoices(t *testing.T) {
	f := newFixture(t, testOperator)
	f.send(t, testUser, "oi")
	f.tap(t, testUser, optQuote)
	f.send(t, testUser, "Maria Silva")
	f.send(t, testUser, "voltar ao menu")
	f.expectAt(t, testUser, FlowMainMenu, stepChoose)

	f.tap(t, testUser, optInsurers)
	f.send(t, testUser, "1")
	f.tap(t, testUser, optFinalMenu)
	f.expectAt(t, testUser, FlowMainMenu, stepChoose)
	s, _ := f.sessions.Get(testUser)
	if s.Field(FlowQuote, fieldName) != "Maria Silva" {
		t.Errorf("Returning to the menu must keep collected data")
	}

	f.tap(t, testUser, optInsurers)
	f.send(t, testUser, "1")
	f.tap(t, testUser, optFinalEnd)
	f.expectAt(t, testUser, FlowWelcome, stepStart)
	s, _ = f.sessions.Get(testUser)
	if len(s.Data) != 0 {
		t.Errorf("Ending the conversation must clear data, got %+v", s.Data)
	}
}

func TestFarewellResetsSession(t *testing.T) {
	f := newFixture(t, testOperator)
	f.send(t, testUser, "oi")
	f.tap(t, testUser, optQuote)
	f.send(t, testUser, "Maria Silva")
	f.send(t, testUser, "Tchau!")
	f.expectAt(t, testUser, FlowWelcome, stepStart)

	if !strings.Contains(f.sender.last(testUser), "Obrigado pelo contato") {
		t.Errorf("Expected farewell message, got %q", f.sender.last(testUser))
	}

	// any message afterwards greets again
	f.send(t, testUser, "preciso de ajuda")
	f.expectAt(t, testUser, FlowMainMenu, stepChoose)
}

func TestUnknownStepResetsSession(t *testing.T) {
	f := newFixture(t, testOperator)
	f.sessions.GetOrCreate(testUser)
	flow, step := "ghost", "nowhere"
	if _, err := f.sessions.Update(testUser, models.SessionPatch{CurrentFlow: &flow, CurrentStep: &step}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if res := f.send(t, testUser, "qualquer coisa"); res != ResultHandled {
		t.Fatalf("Expected handled, got %s", res)
	}
	f.expectAt(t, testUser, FlowWelcome, stepStart)
	if !strings.Contains(f.sender.last(testUser), "reiniciamos") {
		t.Errorf("Expected routing error message, got %q", f.sender.last(testUser))
	}
}

func TestHandlerErrorDiscardsChanges(t *testing.T) {
	f := newFixture(t, testOperator)
	f.send(t, testUser, "oi")
	f.tap(t, testUser, optQuote)

	f.sender.mu.Lock()
	f.sender.failNext = true
	f.sender.mu.Unlock()

	res, err := f.router.Handle(context.Background(), Event{ID: f.nextID(), From: testUser, Body: "Maria Silva"})
	if res != ResultFailed || !errors.Is(err, errSendFailed) {
		t.Fatalf("Expected failure, got res=%s err=%v", res, err)
	}
	f.expectAt(t, testUser, FlowMainMenu, stepChoose)

	s, _ := f.sessions.Get(testUser)
	if s.Field(FlowQuote, fieldName) != "" {
		t.Errorf("Failed turn must not commit data")
	}
	last := f.sender.last(testUser)
	if !strings.Contains(last, "menu") || !strings.Contains(last, "atendente") {
		t.Errorf("Expected recovery instructions, got %q", last)
	}
}

func TestIgnoredEvents(t *testing.T) {
	f := newFixture(t, testOperator)
	events := []Event{
		{ID: "1", From: testUser, Body: "oi", FromSelf: true},
		{ID: "2", From: testUser, Body: "oi", IsGroupMessage: true},
		{ID: "3", From: "status@broadcast", Body: "oi"},
		{ID: "", From: testUser, Body: "oi"},
	}
	for _, ev := range events {
		res, err := f.router.Handle(context.Background(), ev)
		if err != nil || res != ResultIgnored {
			t.Errorf("Event %+v: res=%s err=%v", ev, res, err)
		}
	}
	if f.sessions.Stats().MessageCount != 0 || f.sender.count() != 0 {
		t.Errorf("Ignored events must not be counted or answered")
	}
}

func TestConcurrentUsers(t *testing.T) {
	f := newFixture(t, testOperator)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			addr := fmt.Sprintf("whatsapp:+55119000%05d", i)
			for _, body := range []string{"oi", "1", "Maria Silva"} {
				if _, err := f.router.Handle(context.Background(), Event{ID: f.nextID(), From: addr, Body: body}); err != nil {
					t.Errorf("Handle failed: %v", err)
				}
			}
		}(i)
	}
	wg.Wait()

	stats := f.sessions.Stats()
	if stats.UserCount != 20 || stats.MessageCount != 60 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	if stats.SessionsByFlow[FlowQuote] != 20 {
		t.Errorf("Expected every session in the quote flow, got %+v", stats.SessionsByFlow)
	}
}

func TestConcurrentEventsForOneUserAreSerialized(t *testing.T) {
	f := newFixture(t, testOperator)
	f.send(t, testUser, "oi")
	f.tap(t, testUser, optQuote)
	f.expectAt(t, testUser, FlowQuote, stepCollectName)

	names := []string{"Ana Souza", "Bruno Lima", "Carla Dias", "Davi Rocha", "Elisa Melo", "Fabio Reis", "Gina Alves", "Hugo Costa"}
	start := make(chan struct{})
	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			<-start
			res, err := f.router.Handle(context.Background(), Event{ID: f.nextID(), From: testUser, Body: name, Type: "chat"})
			if err != nil || res != ResultHandled {
				t.Errorf("Handle(%q): res=%s err=%v", name, res, err)
			}
		}(name)
	}
	close(start)
	wg.Wait()

	f.expectAt(t, testUser, FlowQuote, stepCollectEmail)

	s, err := f.sessions.Get(testUser)
	if err != nil {
		t.Fatalf("session lost: %v", err)
	}
	committed := s.Data[FlowQuote][fieldName]
	found := false
	for _, name := range names {
		if committed == name {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected one of the sent names to be committed, got %q", committed)
	}

	// Exactly one event saw collect_name; the rest were read as e-mails
	rejected := 0
	for _, m := range f.sender.to(testUser) {
		if strings.Contains(m.Text, "e-mail não parece válido") {
			rejected++
		}
	}
	if rejected != len(names)-1 {
		t.Errorf("Expected %d e-mail rejections, got %d", len(names)-1, rejected)
	}
	if f.sessions.Stats().MessageCount != int64(len(names)+2) {
		t.Errorf("Expected %d counted messages, got %d", len(names)+2, f.sessions.Stats().MessageCount)
	}
}

func TestUnknownStepResetSurvivesSendFailure(t *testing.T) {
	f := newFixture(t, testOperator)
	f.sessions.GetOrCreate(testUser)
	flow, step := "ghost", "nowhere"
	if _, err := f.sessions.Update(testUser, models.SessionPatch{
		CurrentFlow: &flow,
		CurrentStep: &step,
		Data:        map[string]map[string]string{FlowQuote: {fieldName: "Maria Silva"}},
	}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	f.sender.mu.Lock()
	f.sender.failNext = true
	f.sender.mu.Unlock()

	res, err := f.router.Handle(context.Background(), Event{ID: f.nextID(), From: testUser, Body: "qualquer coisa"})
	if res != ResultFailed || !errors.Is(err, errSendFailed) {
		t.Fatalf("Expected failure, got res=%s err=%v", res, err)
	}
	f.expectAt(t, testUser, FlowWelcome, stepStart)
	s, _ := f.sessions.Get(testUser)
	if len(s.Data) != 0 {
		t.Errorf("Expected stale data to be cleared, got %+v", s.Data)
	}
	if last := f.sender.last(testUser); !strings.Contains(last, "atendente") {
		t.Errorf("Expected recovery instructions, got %q", last)
	}
}

func TestResetCommandKeepsCollectedData(t *testing.T) {
	f := newFixture(t, testOperator)
	f.send(t, testUser, "oi")
	f.tap(t, testUser, optQuote)
	f.send(t, testUser, "Maria Silva")
	f.expectAt(t, testUser, FlowQuote, stepCollectEmail)

	f.send(t, testUser, "Menu")
	f.expectAt(t, testUser, FlowMainMenu, stepChoose)
	s, _ := f.sessions.Get(testUser)
	if s.Field(FlowQuote, fieldName) != "Maria Silva" {
		t.Errorf("The menu command must keep collected data, got %+v", s.Data)
	}
}
