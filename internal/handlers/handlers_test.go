package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"crm-gin/internal/billing"
	"crm-gin/internal/bot"
	"crm-gin/internal/cache"
	apperrors "crm-gin/internal/errors"
	"crm-gin/internal/integrations/slack"
	"crm-gin/internal/mail"
	"crm-gin/internal/middleware"
	"crm-gin/internal/models"
	"crm-gin/internal/realtime"
	"crm-gin/internal/repositories"
	"crm-gin/internal/services"
	"crm-gin/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ===========================================================================
// Fakes
// ===========================================================================

type nullTransport struct{}

func (nullTransport) Send(context.Context, *mail.Message) error { return nil }
func (nullTransport) Test(context.Context) error                { return nil }

type sentDocument struct {
	Filename string
	Data     []byte
	Caption  string
}

type fakeMessenger struct {
	mu        sync.Mutex
	texts     []string
	actions   int
	documents []sentDocument
	files     map[string][]byte
}

func (m *fakeMessenger) SendMessage(_ context.Context, _ string, _ int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, text)
	return nil
}

func (m *fakeMessenger) SendChatAction(context.Context, string, int64, string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions++
	return nil
}

func (m *fakeMessenger) SendDocument(_ context.Context, _ string, _ int64, filename string, data []byte, caption string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents = append(m.documents, sentDocument{Filename: filename, Data: data, Caption: caption})
	return nil
}

func (m *fakeMessenger) DownloadFile(_ context.Context, _ string, fileID string) ([]byte, string, error) {
	data, ok := m.files[fileID]
	if !ok {
		return nil, "", errors.New("file not found")
	}
	return data, "voice/" + fileID + ".oga", nil
}

func (m *fakeMessenger) sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

type fakeAssistant struct {
	mu     sync.Mutex
	got    []bot.Message
	resets int
	err    error
}

func (a *fakeAssistant) Reply(_ context.Context, msg bot.Message) (*bot.Reply, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.got = append(a.got, msg)
	if a.err != nil {
		return nil, a.err
	}
	return &bot.Reply{Text: "Réponse à: " + msg.Text, Input: msg.Text}, nil
}

func (a *fakeAssistant) Reset(context.Context, int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resets++
	return nil
}

// ===========================================================================
// Environment
// ===========================================================================

const (
	botToken      = "TOKEN"
	webhookSecret = "s3cret"
	allowedUser   = int64(42)
)

type httpEnv struct {
	router    *gin.Engine
	store     *repositories.Store
	clock     *testutil.FakeClock
	invoices  services.InvoiceService
	messenger *fakeMessenger
	assistant *fakeAssistant
	tenant    *models.Tenant
	client    *models.Client
}

func newHTTPEnv(t *testing.T, ratePerMinute int) *httpEnv {
	t.Helper()
	db := testutil.NewDB(t)
	store := repositories.NewStore(db)
	logger := zap.NewNop()
	clock := testutil.NewFakeClock(time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC))

	settings := services.NewSettingsService(store.Tenants, cache.MustNew[*models.Tenant](16, time.Minute, clock), logger)
	mailer := mail.NewMailer(settings, func(models.SMTPSettings) mail.Transport { return nullTransport{} }, logger)
	notifier := services.NewNotifier(settings, slack.New(), realtime.NewNoopPublisher(), logger)
	invoices := services.NewInvoiceService(store, settings, mailer, notifier, clock, logger)

	tenant := testutil.SeedTenant(t, db, "acme", models.TenantSettings{
		SMTP: models.SMTPSettings{Host: "smtp.example.fr", Port: 587, FromEmail: "factures@acme.fr"},
		Telegram: models.TelegramSettings{
			Enabled:       true,
			BotToken:      botToken,
			WebhookSecret: webhookSecret,
			AllowedUsers:  []int64{allowedUser},
		},
	})
	client := testutil.SeedClient(t, db, tenant, "Dupont")

	e := &httpEnv{
		store:     store,
		clock:     clock,
		invoices:  invoices,
		messenger: &fakeMessenger{files: map[string][]byte{}},
		assistant: &fakeAssistant{},
		tenant:    tenant,
		client:    client,
	}

	telegram := NewTelegramHandler(store.Tenants, settings, invoices, e.assistant, e.messenger, clock,
		TelegramConfig{RatePerMinute: ratePerMinute, TypingInterval: time.Hour, ReplyTimeout: 5 * time.Second}, logger)
	invoiceHandler := NewInvoiceHandler(invoices, clock.Now, time.UTC, logger)

	r := gin.New()
	api := r.Group("/api")
	telegram.RegisterRoutes(api)
	protected := api.Group("", func(c *gin.Context) {
		c.Set(middleware.ContextKeyTenantID, tenant.ID)
		c.Set(middleware.ContextKeyUserID, uuid.New())
		c.Set(middleware.ContextKeyUserRole, models.RoleOwner)
		c.Next()
	})
	invoiceHandler.RegisterRoutes(protected)

	e.router = r
	return e
}

func (e *httpEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *httpEnv) webhook(t *testing.T, message map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, http.MethodPost, "/api/telegram/webhook/acme",
		map[string]any{"update_id": 1, "message": message},
		map[string]string{SecretTokenHeader: webhookSecret})
}

func textFrom(sender int64, text string) map[string]any {
	return map[string]any{
		"message_id": 1,
		"from":       map[string]any{"id": sender, "first_name": "Paul"},
		"chat":       map[string]any{"id": sender, "type": "private"},
		"date":       1773136800,
		"text":       text,
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Meta *struct {
		Total int64 `json:"total"`
	} `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

// ===========================================================================
// Telegram webhook
// ===========================================================================

func TestTelegram_TextMessageIsAnswered(t *testing.T) {
	e := newHTTPEnv(t, 20)

	w := e.webhook(t, textFrom(allowedUser, "Quelles factures sont impayées ?"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())

	require.Len(t, e.assistant.got, 1)
	assert.Equal(t, e.tenant.ID, e.assistant.got[0].TenantID)
	assert.Equal(t, allowedUser, e.assistant.got[0].ChatID)
	assert.Equal(t, []string{"Réponse à: Quelles factures sont impayées ?"}, e.messenger.sent())
	assert.GreaterOrEqual(t, e.messenger.actions, 1)
}

func TestTelegram_UnknownSenderGetsFixedReply(t *testing.T) {
	e := newHTTPEnv(t, 20)

	w := e.webhook(t, textFrom(7, "Crée une facture pour Dupont"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())

	assert.Empty(t, e.assistant.got)
	assert.Equal(t, []string{msgNotAllowed}, e.messenger.sent())

	_, total, err := e.invoices.List(context.Background(), e.tenant.ID, repositories.InvoiceFilter{}, repositories.FindOptions{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestTelegram_WrongSecretIsRejected(t *testing.T) {
	e := newHTTPEnv(t, 20)

	w := e.do(t, http.MethodPost, "/api/telegram/webhook/acme",
		map[string]any{"update_id": 1, "message": textFrom(allowedUser, "bonjour")},
		map[string]string{SecretTokenHeader: "nope"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, e.assistant.got)
	assert.Empty(t, e.messenger.sent())
}

func TestTelegram_UnknownTenantIsAcknowledged(t *testing.T) {
	e := newHTTPEnv(t, 20)

	w := e.do(t, http.MethodPost, "/api/telegram/webhook/ghost",
		map[string]any{"update_id": 1, "message": textFrom(allowedUser, "bonjour")}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, e.messenger.sent())
}

func TestTelegram_AssistantFailureStillAcknowledged(t *testing.T) {
	e := newHTTPEnv(t, 20)
	e.assistant.err = errors.New("boom")

	w := e.webhook(t, textFrom(allowedUser, "bonjour"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{msgFailure}, e.messenger.sent())
}

func TestTelegram_ExternalFailureRepliesGenerically(t *testing.T) {
	e := newHTTPEnv(t, 20)
	e.assistant.err = apperrors.External("OpenAI", errors.New("status 401: Incorrect API key provided: sk-proj-abcd1234"))

	w := e.webhook(t, textFrom(allowedUser, "bonjour"))
	assert.Equal(t, http.StatusOK, w.Code)

	sent := e.messenger.sent()
	require.Len(t, sent, 1)
	assert.NotContains(t, sent[0], "sk-proj")
	assert.NotContains(t, sent[0], "401")
	assert.Contains(t, sent[0], "OpenAI")
}

func TestTelegram_RateLimitPerChat(t *testing.T) {
	e := newHTTPEnv(t, 1)

	e.webhook(t, textFrom(allowedUser, "un"))
	e.webhook(t, textFrom(allowedUser, "deux"))

	assert.Len(t, e.assistant.got, 1)
	assert.Equal(t, []string{"Réponse à: un", msgRateLimit}, e.messenger.sent())
}

func TestTelegram_Commands(t *testing.T) {
	e := newHTTPEnv(t, 20)

	e.webhook(t, textFrom(allowedUser, "/start"))
	e.webhook(t, textFrom(allowedUser, "/reset"))

	assert.Empty(t, e.assistant.got)
	assert.Equal(t, 1, e.assistant.resets)
	assert.Equal(t, []string{msgHelp, msgReset}, e.messenger.sent())
}

func TestTelegram_ExportUnpaidInvoices(t *testing.T) {
	e := newHTTPEnv(t, 20)
	ctx := context.Background()

	e.webhook(t, textFrom(allowedUser, "/export"))
	assert.Equal(t, []string{msgNoUnpaid}, e.messenger.sent())

	inv, err := e.invoices.Create(ctx, e.tenant.ID, services.CreateInvoiceInput{
		ClientID: e.client.ID,
		Lines:    []billing.Line{{Description: "Journée de conseil", Quantity: 10, UnitPrice: 80}},
	})
	require.NoError(t, err)
	sent := models.InvoiceSent
	_, err = e.invoices.Update(ctx, e.tenant.ID, inv.ID, services.UpdateInvoiceInput{Status: &sent})
	require.NoError(t, err)

	e.webhook(t, textFrom(allowedUser, "/export"))
	require.Len(t, e.messenger.documents, 1)
	doc := e.messenger.documents[0]
	assert.Equal(t, "factures-impayees-2026-03-10.csv", doc.Filename)
	assert.Contains(t, string(doc.Data), "FAC-2026-0001;Dupont;10/03/2026")
	assert.Contains(t, string(doc.Data), "800,00;960,00;sent")
	assert.Equal(t, "1 facture(s) impayée(s), 960.00 € TTC", doc.Caption)
}

func TestTelegram_VoiceNoteIsDownloaded(t *testing.T) {
	e := newHTTPEnv(t, 20)
	e.messenger.files["v1"] = []byte("OggS")

	msg := textFrom(allowedUser, "")
	delete(msg, "text")
	msg["voice"] = map[string]any{"file_id": "v1", "duration": 3}
	e.webhook(t, msg)

	require.Len(t, e.assistant.got, 1)
	voice := e.assistant.got[0].Voice
	require.NotNil(t, voice)
	assert.Equal(t, "v1.oga", voice.Filename)
	assert.Equal(t, []byte("OggS"), voice.Data)
	assert.Nil(t, e.assistant.got[0].Image)
}

func TestUnpaidInvoicesCSV(t *testing.T) {
	due := time.Date(2026, 4, 9, 0, 0, 0, 0, time.UTC)
	data, err := UnpaidInvoicesCSV([]models.Invoice{{
		Number:     "FAC-2026-0007",
		Status:     models.InvoiceOverdue,
		IssueDate:  time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		DueDate:    &due,
		SubtotalHT: 1234.5,
		TotalTTC:   1481.4,
		Client:     &models.Client{CompanyName: "Café; Müller"},
	}})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(strings.TrimPrefix(string(data), "\ufeff")), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Numéro;Client;Date;Échéance;Total HT;Total TTC;Statut", lines[0])
	assert.Equal(t, `FAC-2026-0007;"Café; Müller";10/03/2026;09/04/2026;1234,50;1481,40;overdue`, lines[1])
}

// ===========================================================================
// Invoices
// ===========================================================================

type invoiceJSON struct {
	ID          uuid.UUID  `json:"id"`
	Number      string     `json:"number"`
	Status      string     `json:"status"`
	SubtotalHT  float64    `json:"subtotal_ht"`
	TaxAmount   float64    `json:"tax_amount"`
	TotalTTC    float64    `json:"total_ttc"`
	DueDate     *time.Time `json:"due_date"`
	PaymentDate *time.Time `json:"payment_date"`
}

func (e *httpEnv) createInvoice(t *testing.T) invoiceJSON {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/invoices", map[string]any{
		"client_id": e.client.ID,
		"items":     []map[string]any{{"description": "Journée de conseil", "quantity": 10, "unit_price": 80}},
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var inv invoiceJSON
	decode(t, w, &inv)
	return inv
}

func TestInvoiceHandler_CreateListAndMarkPaid(t *testing.T) {
	e := newHTTPEnv(t, 20)

	inv := e.createInvoice(t)
	assert.Equal(t, "FAC-2026-0001", inv.Number)
	assert.Equal(t, "draft", inv.Status)
	assert.InDelta(t, 800, inv.SubtotalHT, 0.001)
	assert.InDelta(t, 160, inv.TaxAmount, 0.001)
	assert.InDelta(t, 960, inv.TotalTTC, 0.001)

	w := e.do(t, http.MethodPost, fmt.Sprintf("/api/invoices/%s/mark-paid", inv.ID), nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var paid invoiceJSON
	decode(t, w, &paid)
	assert.Equal(t, "paid", paid.Status)
	require.NotNil(t, paid.PaymentDate)

	w = e.do(t, http.MethodPost, fmt.Sprintf("/api/invoices/%s/mark-paid", inv.ID), nil, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = e.do(t, http.MethodGet, "/api/invoices?status=paid", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w, nil)
	require.NotNil(t, env.Meta)
	assert.Equal(t, int64(1), env.Meta.Total)
}

func TestInvoiceHandler_CreateValidates(t *testing.T) {
	e := newHTTPEnv(t, 20)

	w := e.do(t, http.MethodPost, "/api/invoices", map[string]any{"client_id": e.client.ID, "items": []any{}}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodGet, "/api/invoices?status=unknown", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInvoiceHandler_SetDueDateParsesFrenchDates(t *testing.T) {
	e := newHTTPEnv(t, 20)
	inv := e.createInvoice(t)

	w := e.do(t, http.MethodPut, fmt.Sprintf("/api/invoices/%s/due-date", inv.ID), map[string]string{"due_date": "15/04/2026"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated invoiceJSON
	decode(t, w, &updated)
	require.NotNil(t, updated.DueDate)
	assert.True(t, time.Date(2026, 4, 15, 9, 0, 0, 0, time.UTC).Equal(*updated.DueDate))

	w = e.do(t, http.MethodPut, fmt.Sprintf("/api/invoices/%s/due-date", inv.ID), map[string]string{"due_date": "un jour"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInvoiceHandler_NotFoundAndBadID(t *testing.T) {
	e := newHTTPEnv(t, 20)

	w := e.do(t, http.MethodGet, "/api/invoices/"+uuid.NewString(), nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	env := decode(t, w, nil)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	w = e.do(t, http.MethodGet, "/api/invoices/not-a-uuid", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
