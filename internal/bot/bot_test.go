package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"crm-gin/internal/cache"
	"crm-gin/internal/dateparse"
	"crm-gin/internal/integrations/graph"
	"crm-gin/internal/integrations/slack"
	"crm-gin/internal/llm"
	"crm-gin/internal/mail"
	"crm-gin/internal/models"
	"crm-gin/internal/realtime"
	"crm-gin/internal/repositories"
	"crm-gin/internal/services"
	"crm-gin/internal/testutil"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ===========================================================================
// Fixtures
// ===========================================================================

type nullTransport struct{}

func (nullTransport) Send(context.Context, *mail.Message) error { return nil }
func (nullTransport) Test(context.Context) error                { return nil }

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingObserver) ObserveTool(name string, err error, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.calls = append(r.calls, name+":"+status)
}

type toolEnv struct {
	store      *repositories.Store
	clock      *testutil.FakeClock
	settings   services.SettingsService
	dispatcher *Dispatcher
	observer   *recordingObserver
	tc         *ToolContext
	tenant     *models.Tenant
	client     *models.Client
}

var smtpSettings = models.TenantSettings{
	SMTP: models.SMTPSettings{Host: "smtp.example.fr", Port: 587, FromEmail: "factures@acme.fr"},
}

// newToolEnv wires every service on sqlite. The clock is a Tuesday,
// 10 March 2026 at 10:00 UTC.
func newToolEnv(t *testing.T) *toolEnv {
	t.Helper()
	db := testutil.NewDB(t)
	store := repositories.NewStore(db)
	logger := zap.NewNop()
	clock := testutil.NewFakeClock(time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC))

	settings := services.NewSettingsService(store.Tenants, cache.MustNew[*models.Tenant](16, time.Minute, clock), logger)
	mailer := mail.NewMailer(settings, func(models.SMTPSettings) mail.Transport { return nullTransport{} }, logger)
	notifier := services.NewNotifier(settings, slack.New(), realtime.NewNoopPublisher(), logger)
	invoices := services.NewInvoiceService(store, settings, mailer, notifier, clock, logger)

	observer := &recordingObserver{}
	dispatcher := NewDispatcher(Deps{
		Store:     store,
		Clients:   services.NewClientService(store.Clients, logger),
		Invoices:  invoices,
		Quotes:    services.NewQuoteService(store, settings, mailer, notifier, clock, logger),
		Treasury:  services.NewTreasuryService(store, invoices, clock, logger),
		Work:      services.NewWorkService(store, clock, logger),
		Analytics: services.NewAnalyticsService(store, clock, time.UTC, logger),
		Contracts: services.NewContractService(store, settings, mailer, "", logger),
		Calendar:  services.NewCalendarService(settings, graph.New("", ""), logger),
		Clock:     clock,
	}, observer, logger)

	tenant := testutil.SeedTenant(t, db, "acme", smtpSettings)
	client := testutil.SeedClient(t, db, tenant, "Dupont")

	return &toolEnv{
		store:      store,
		clock:      clock,
		settings:   settings,
		dispatcher: dispatcher,
		observer:   observer,
		tc:         &ToolContext{TenantID: tenant.ID, ChatID: 42, Dates: dateparse.New(clock.Now, time.UTC)},
		tenant:     tenant,
		client:     client,
	}
}

func (e *toolEnv) call(t *testing.T, name string, args any) map[string]any {
	t.Helper()
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	out := e.dispatcher.Execute(context.Background(), e.tc, name, string(raw))
	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &result), out)
	return result
}

func dupontItems() []map[string]any {
	return []map[string]any{{"description": "Journée de conseil", "quantity": 10, "unitPrice": 80}}
}

// ===========================================================================
// Dispatcher
// ===========================================================================

func TestDispatcher_CatalogueIsComplete(t *testing.T) {
	e := newToolEnv(t)

	names := e.dispatcher.Names()
	assert.Len(t, names, 46)
	for _, want := range []string{
		"search_clients", "create_quote", "convert_quote_to_invoice", "mark_invoice_paid",
		"reconcile_transaction", "list_expiring_domains", "send_contract_for_signature",
		"get_top_clients", "create_calendar_event", "list_calendar_events",
	} {
		assert.Contains(t, names, want)
	}

	for _, def := range e.dispatcher.Definitions() {
		require.NotNil(t, def.Function)
		var schema map[string]any
		require.NoError(t, json.Unmarshal(def.Function.Parameters.(json.RawMessage), &schema), def.Function.Name)
		assert.Equal(t, "object", schema["type"], def.Function.Name)
		assert.NotContains(t, schema, "$schema", def.Function.Name)
		assert.NotEmpty(t, def.Function.Description, def.Function.Name)
	}
}

func TestDispatcher_SchemaMarksRequiredFields(t *testing.T) {
	e := newToolEnv(t)

	for _, def := range e.dispatcher.Definitions() {
		if def.Function.Name != "create_invoice" {
			continue
		}
		var schema struct {
			Required   []string                  `json:"required"`
			Properties map[string]map[string]any `json:"properties"`
		}
		require.NoError(t, json.Unmarshal(def.Function.Parameters.(json.RawMessage), &schema))
		assert.Contains(t, schema.Required, "items")
		assert.NotContains(t, schema.Required, "clientName")
		assert.Contains(t, schema.Properties, "clientId")
		assert.Contains(t, schema.Properties, "clientName")
		return
	}
	t.Fatal("create_invoice not found")
}

func TestDispatcher_UnknownToolAndBadArguments(t *testing.T) {
	e := newToolEnv(t)

	out := e.dispatcher.Execute(context.Background(), e.tc, "drop_database", "{}")
	assert.JSONEq(t, `{"error":"Outil inconnu: drop_database"}`, out)

	out = e.dispatcher.Execute(context.Background(), e.tc, "search_clients", "{not json")
	assert.Contains(t, out, `"error"`)
}

func TestDispatcher_CreateInvoiceComputesTotals(t *testing.T) {
	e := newToolEnv(t)

	res := e.call(t, "create_invoice", map[string]any{"clientName": "dup", "items": dupontItems()})
	require.NotContains(t, res, "error")
	assert.Equal(t, "FAC-2026-0001", res["number"])
	assert.InDelta(t, 800.0, res["subtotal_ht"], 0.001)
	assert.InDelta(t, 160.0, res["tax_amount"], 0.001)
	assert.InDelta(t, 960.0, res["total_ttc"], 0.001)
	assert.Equal(t, e.client.ID.String(), res["client_id"])
}

func TestDispatcher_ClientResolution(t *testing.T) {
	e := newToolEnv(t)

	res := e.call(t, "create_invoice", map[string]any{"items": dupontItems()})
	assert.Equal(t, "clientId ou clientName est requis", res["error"])

	res = e.call(t, "create_invoice", map[string]any{"clientName": "Inconnu SA", "items": dupontItems()})
	assert.Equal(t, "Client non trouvé", res["error"])

	res = e.call(t, "get_client", map[string]any{"clientId": "pas-un-uuid"})
	assert.Contains(t, res["error"], "Identifiant invalide")

	res = e.call(t, "get_client", map[string]any{"clientId": e.client.ID.String()})
	require.NotContains(t, res, "error")
	assert.Equal(t, "Dupont", res["client"].(map[string]any)["company_name"])
}

func TestDispatcher_ConvertQuoteOnlyOnce(t *testing.T) {
	e := newToolEnv(t)

	quote := e.call(t, "create_quote", map[string]any{"clientName": "Dupont", "items": dupontItems()})
	require.NotContains(t, quote, "error")
	assert.Equal(t, "DEV-2026-0001", quote["number"])
	assert.InDelta(t, 800.0, quote["subtotal_ht"], 0.001)
	assert.InDelta(t, 160.0, quote["tax_amount"], 0.001)
	assert.InDelta(t, 960.0, quote["total_ttc"], 0.001)

	first := e.call(t, "convert_quote_to_invoice", map[string]any{"quoteNumber": "dev-2026-0001"})
	require.NotContains(t, first, "error")
	assert.InDelta(t, 960.0, first["total_ttc"], 0.001)

	second := e.call(t, "convert_quote_to_invoice", map[string]any{"quoteId": quote["id"]})
	assert.Contains(t, second, "error")

	_, total, err := e.store.Invoices.List(context.Background(), e.tenant.ID, repositories.InvoiceFilter{}, repositories.FindOptions{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestDispatcher_MarkPaidLeavesUnpaidList(t *testing.T) {
	e := newToolEnv(t)

	inv := e.call(t, "create_invoice", map[string]any{"clientName": "Dupont", "items": dupontItems()})
	require.NotContains(t, inv, "error")
	sent := e.call(t, "send_invoice_email", map[string]any{"invoiceNumber": inv["number"]})
	require.NotContains(t, sent, "error")
	assert.Equal(t, "sent", sent["status"])

	unpaid := e.call(t, "list_unpaid_invoices", map[string]any{})
	assert.EqualValues(t, 1, unpaid["count"])

	paid := e.call(t, "mark_invoice_paid", map[string]any{"invoiceNumber": inv["number"], "paymentMethod": "virement"})
	require.NotContains(t, paid, "error")
	assert.Equal(t, "paid", paid["status"])
	assert.NotEmpty(t, paid["payment_date"])

	unpaid = e.call(t, "list_unpaid_invoices", map[string]any{})
	assert.EqualValues(t, 0, unpaid["count"])
}

func TestDispatcher_ReminderUsesFrenchDates(t *testing.T) {
	e := newToolEnv(t)

	res := e.call(t, "create_reminder", map[string]any{"content": "Relancer Dupont", "remindAt": "demain 15h", "clientName": "Dupont"})
	require.NotContains(t, res, "error")
	at, err := time.Parse(time.RFC3339, res["reminder_at"].(string))
	require.NoError(t, err)
	assert.True(t, at.Equal(time.Date(2026, 3, 11, 15, 0, 0, 0, time.UTC)), at)

	upcoming := e.call(t, "list_reminders", map[string]any{"days": 2})
	assert.EqualValues(t, 1, upcoming["count"])

	bad := e.call(t, "create_reminder", map[string]any{"content": "x", "remindAt": "un de ces jours"})
	assert.Contains(t, bad["error"], "Date non reconnue")
}

func TestDispatcher_TodoLifecycle(t *testing.T) {
	e := newToolEnv(t)

	todo := e.call(t, "create_todo", map[string]any{"content": "Préparer la proposition"})
	require.NotContains(t, todo, "error")

	open := e.call(t, "list_todos", map[string]any{})
	assert.EqualValues(t, 1, open["count"])

	done := e.call(t, "complete_todo", map[string]any{"todoId": todo["id"]})
	assert.Equal(t, true, done["is_done"])

	open = e.call(t, "list_todos", map[string]any{})
	assert.EqualValues(t, 0, open["count"])
	all := e.call(t, "list_todos", map[string]any{"includeDone": true})
	assert.EqualValues(t, 1, all["count"])
}

func TestDispatcher_TicketFlow(t *testing.T) {
	e := newToolEnv(t)

	ticket := e.call(t, "create_ticket", map[string]any{"clientName": "Dupont", "subject": "Site en panne", "message": "Erreur 500", "priority": "high"})
	require.NotContains(t, ticket, "error")
	assert.Equal(t, "TCK-2026-0001", ticket["number"])

	msg := e.call(t, "add_ticket_message", map[string]any{"ticketId": ticket["id"], "content": "Corrigé"})
	require.NotContains(t, msg, "error")

	closed := e.call(t, "update_ticket_status", map[string]any{"ticketId": ticket["id"], "status": "closed"})
	assert.Equal(t, "closed", closed["status"])

	again := e.call(t, "add_ticket_message", map[string]any{"ticketId": ticket["id"], "content": "Encore"})
	assert.Contains(t, again, "error")
}

func TestDispatcher_CalendarNeedsOffice365(t *testing.T) {
	e := newToolEnv(t)

	res := e.call(t, "create_calendar_event", map[string]any{"subject": "Rendez-vous", "start": "lundi 14h"})
	assert.Equal(t, "Office 365 n'est pas configuré", res["error"])
}

func TestDispatcher_ObserverSeesEveryCall(t *testing.T) {
	e := newToolEnv(t)

	e.call(t, "search_clients", map[string]any{"query": "dup"})
	e.call(t, "get_client", map[string]any{})

	assert.Equal(t, []string{"search_clients:ok", "get_client:error"}, e.observer.calls)
}

// ===========================================================================
// ConversationMemory
// ===========================================================================

func TestConversationMemory_CapsAndPersists(t *testing.T) {
	e := newToolEnv(t)
	ctx := context.Background()
	newMemory := func() *ConversationMemory {
		return NewConversationMemory(e.store.Conversations, cache.MustNew[*models.TelegramConversation](8, time.Hour, e.clock), e.clock, 4)
	}

	mem := newMemory()
	for i := 0; i < 3; i++ {
		require.NoError(t, mem.Append(ctx, e.tenant.ID, 7,
			models.ChatTurn{Role: "user", Content: fmt.Sprintf("question %d", i)},
			models.ChatTurn{Role: "assistant", Content: fmt.Sprintf("réponse %d", i)},
		))
	}

	history, err := mem.History(ctx, e.tenant.ID, 7)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, "question 1", history[0].Content)
	assert.Equal(t, "réponse 2", history[3].Content)

	// a fresh cache reads the persisted copy
	history, err = newMemory().History(ctx, e.tenant.ID, 7)
	require.NoError(t, err)
	assert.Len(t, history, 4)

	require.NoError(t, mem.Reset(ctx, 7))
	history, err = mem.History(ctx, e.tenant.ID, 7)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestConversationMemory_CacheIsBounded(t *testing.T) {
	e := newToolEnv(t)
	ctx := context.Background()
	c := cache.MustNew[*models.TelegramConversation](2, time.Hour, e.clock)
	mem := NewConversationMemory(e.store.Conversations, c, e.clock, 10)

	for chat := int64(1); chat <= 5; chat++ {
		require.NoError(t, mem.Append(ctx, e.tenant.ID, chat, models.ChatTurn{Role: "user", Content: "bonjour"}))
	}
	assert.LessOrEqual(t, c.Len(), 2)

	history, err := mem.History(ctx, e.tenant.ID, 1)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

// ===========================================================================
// Assistant
// ===========================================================================

type fakeLLM struct {
	mu          sync.Mutex
	responses   []openai.ChatCompletionResponse
	requests    []openai.ChatCompletionRequest
	transcript  string
	description string
}

func (f *fakeLLM) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if len(f.responses) == 0 {
		return openai.ChatCompletionResponse{}, fmt.Errorf("no scripted response")
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

func (f *fakeLLM) Transcribe(context.Context, string, []byte) (string, error) {
	return f.transcript, nil
}

func (f *fakeLLM) DescribeImage(context.Context, string, []byte) (string, error) {
	return f.description, nil
}

func (f *fakeLLM) Model() string { return "gpt-test" }

func text(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{
		Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
	}}}
}

func toolCall(id, name, args string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{
		Message: openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleAssistant,
			ToolCalls: []openai.ToolCall{{
				ID:       id,
				Type:     openai.ToolTypeFunction,
				Function: openai.FunctionCall{Name: name, Arguments: args},
			}},
		},
	}}}
}

func newAssistant(e *toolEnv, fake *fakeLLM) (Assistant, *ConversationMemory) {
	mem := NewConversationMemory(e.store.Conversations, cache.MustNew[*models.TelegramConversation](8, time.Hour, e.clock), e.clock, 20)
	return NewAssistant(e.settings, llm.StaticProvider{Client: fake}, e.dispatcher, mem, e.clock, time.UTC, zap.NewNop()), mem
}

func TestAssistant_RunsToolsThenAnswers(t *testing.T) {
	e := newToolEnv(t)
	fake := &fakeLLM{responses: []openai.ChatCompletionResponse{
		toolCall("call_1", "search_clients", `{"query":"dupont"}`),
		text("Vous avez un client correspondant: Dupont."),
	}}
	a, mem := newAssistant(e, fake)
	ctx := context.Background()

	reply, err := a.Reply(ctx, Message{TenantID: e.tenant.ID, ChatID: 42, Text: "Cherche le client Dupont"})
	require.NoError(t, err)
	assert.Equal(t, "Vous avez un client correspondant: Dupont.", reply.Text)
	assert.Equal(t, []string{"search_clients"}, reply.Tools)

	require.Len(t, fake.requests, 2)
	first := fake.requests[0]
	assert.Equal(t, "auto", first.ToolChoice)
	assert.Len(t, first.Tools, 46)
	assert.Contains(t, first.Messages[0].Content, "mardi 10 mars 2026")

	second := fake.requests[1]
	last := second.Messages[len(second.Messages)-1]
	assert.Equal(t, openai.ChatMessageRoleTool, last.Role)
	assert.Equal(t, "call_1", last.ToolCallID)
	assert.Contains(t, last.Content, "Dupont")
	assert.Empty(t, second.Tools)

	history, err := mem.History(ctx, e.tenant.ID, 42)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "Cherche le client Dupont", history[0].Content)
	assert.Equal(t, reply.Text, history[1].Content)
}

func TestAssistant_ReplaysHistory(t *testing.T) {
	e := newToolEnv(t)
	fake := &fakeLLM{responses: []openai.ChatCompletionResponse{text("Bonjour !"), text("Toujours là.")}}
	a, _ := newAssistant(e, fake)
	ctx := context.Background()

	_, err := a.Reply(ctx, Message{TenantID: e.tenant.ID, ChatID: 42, Text: "Salut"})
	require.NoError(t, err)
	_, err = a.Reply(ctx, Message{TenantID: e.tenant.ID, ChatID: 42, Text: "Tu es là ?"})
	require.NoError(t, err)

	require.Len(t, fake.requests, 2)
	msgs := fake.requests[1].Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, "Salut", msgs[1].Content)
	assert.Equal(t, "Bonjour !", msgs[2].Content)
	assert.Equal(t, "Tu es là ?", msgs[3].Content)

	require.NoError(t, a.Reset(ctx, 42))
	_, err = a.Reply(ctx, Message{TenantID: e.tenant.ID, ChatID: 42, Text: "Nouveau départ"})
	assert.Error(t, err) // no scripted response left
	assert.Len(t, fake.requests[2].Messages, 2)
}

func TestAssistant_MediaBecomesText(t *testing.T) {
	e := newToolEnv(t)
	fake := &fakeLLM{
		responses:   []openai.ChatCompletionResponse{text("Noté."), text("C'est une facture.")},
		transcript:  "rappelle-moi d'appeler Dupont demain",
		description: "Une facture EDF de 120 euros",
	}
	a, _ := newAssistant(e, fake)
	ctx := context.Background()

	reply, err := a.Reply(ctx, Message{TenantID: e.tenant.ID, ChatID: 9, Voice: &Media{Filename: "voice.oga", Data: []byte("ogg")}})
	require.NoError(t, err)
	assert.Equal(t, fake.transcript, reply.Input)

	reply, err = a.Reply(ctx, Message{TenantID: e.tenant.ID, ChatID: 9, Text: "c'est quoi ?", Image: &Media{Data: []byte("jpg")}})
	require.NoError(t, err)
	assert.Contains(t, reply.Input, "Une facture EDF de 120 euros")
	assert.Contains(t, reply.Input, "c'est quoi ?")
}

func TestAssistant_EmptyAnswerFallsBack(t *testing.T) {
	e := newToolEnv(t)
	fake := &fakeLLM{responses: []openai.ChatCompletionResponse{text("  ")}}
	a, _ := newAssistant(e, fake)

	reply, err := a.Reply(context.Background(), Message{TenantID: e.tenant.ID, ChatID: 1, Text: "?"})
	require.NoError(t, err)
	assert.Equal(t, noAnswer, reply.Text)
}

func TestFrenchDate(t *testing.T) {
	assert.Equal(t, "mardi 10 mars 2026", FrenchDate(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "dimanche 1 février 2026", FrenchDate(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)))
}
