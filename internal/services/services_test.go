package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"crm-gin/internal/auth"
	"crm-gin/internal/billing"
	"crm-gin/internal/cache"
	"crm-gin/internal/config"
	apperrors "crm-gin/internal/errors"
	"crm-gin/internal/integrations/gocardless"
	"crm-gin/internal/integrations/slack"
	"crm-gin/internal/mail"
	"crm-gin/internal/models"
	"crm-gin/internal/realtime"
	"crm-gin/internal/repositories"
	"crm-gin/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// countingTenants counts database reads behind the settings cache
type countingTenants struct {
	repositories.TenantRepository
	mu    sync.Mutex
	reads int
}

func (c *countingTenants) FindByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	c.mu.Lock()
	c.reads++
	c.mu.Unlock()
	return c.TenantRepository.FindByID(ctx, id)
}

func (c *countingTenants) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

// outbox records every message instead of talking to an SMTP server
type outbox struct {
	mu   sync.Mutex
	sent []*mail.Message
}

func (o *outbox) Send(_ context.Context, msg *mail.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return nil
}

func (o *outbox) Test(context.Context) error { return nil }

func (o *outbox) messages() []*mail.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*mail.Message(nil), o.sent...)
}

type env struct {
	store    *repositories.Store
	tenants  *countingTenants
	clock    *testutil.FakeClock
	settings SettingsService
	outbox   *outbox
	mailer   *mail.Mailer
	invoices InvoiceService
	quotes   QuoteService
	treasury TreasuryService
	tenant   *models.Tenant
	client   *models.Client
}

var smtpConfigured = models.TenantSettings{
	SMTP: models.SMTPSettings{Host: "smtp.example.fr", Port: 587, FromEmail: "factures@acme.fr", Password: "s3cret"},
}

func newEnv(t *testing.T, settings models.TenantSettings) *env {
	t.Helper()
	db := testutil.NewDB(t)
	store := repositories.NewStore(db)
	logger := zap.NewNop()

	e := &env{
		store:   store,
		tenants: &countingTenants{TenantRepository: store.Tenants},
		clock:   testutil.NewFakeClock(time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)),
		outbox:  &outbox{},
	}
	e.settings = NewSettingsService(e.tenants, cache.MustNew[*models.Tenant](16, 5*time.Minute, e.clock), logger)
	e.mailer = mail.NewMailer(e.settings, func(models.SMTPSettings) mail.Transport { return e.outbox }, logger)
	notifier := NewNotifier(e.settings, slack.New(), realtime.NewNoopPublisher(), logger)
	e.invoices = NewInvoiceService(store, e.settings, e.mailer, notifier, e.clock, logger)
	e.quotes = NewQuoteService(store, e.settings, e.mailer, notifier, e.clock, logger)
	e.treasury = NewTreasuryService(store, e.invoices, e.clock, logger)

	e.tenant = testutil.SeedTenant(t, db, "acme", settings)
	e.client = testutil.SeedClient(t, db, e.tenant, "Dupont")
	return e
}

func dupontLines() []billing.Line {
	return []billing.Line{{Description: "Journée de conseil", Quantity: 10, UnitPrice: 80}}
}

// ===========================================================================
// Settings
// ===========================================================================

func TestSettings_CacheHitWithinTTL(t *testing.T) {
	e := newEnv(t, smtpConfigured)
	ctx := context.Background()

	_, err := e.settings.Get(ctx, e.tenant.ID)
	require.NoError(t, err)
	_, err = e.settings.Get(ctx, e.tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, e.tenants.count())

	e.clock.Advance(5*time.Minute + time.Second)
	_, err = e.settings.Get(ctx, e.tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, e.tenants.count())
}

func TestSettings_UpdateSectionInvalidatesAndKeepsMaskedSecret(t *testing.T) {
	e := newEnv(t, smtpConfigured)
	ctx := context.Background()

	masked, err := e.settings.Masked(ctx, e.tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, SecretMask, masked[models.SectionSMTP]["password"])

	data := json.RawMessage(`{"host":"mail.acme.fr","port":465,"from_email":"factures@acme.fr","password":"********","security":"tls"}`)
	require.NoError(t, e.settings.UpdateSection(ctx, e.tenant.ID, models.SectionSMTP, data))

	got, err := e.settings.Get(ctx, e.tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, "mail.acme.fr", got.SMTP.Host)
	assert.Equal(t, "s3cret", got.SMTP.Password)
}

func TestSettings_UpdateSectionRejectsInvalidValues(t *testing.T) {
	e := newEnv(t, models.TenantSettings{})

	err := e.settings.UpdateSection(context.Background(), e.tenant.ID, models.SectionSMTP,
		json.RawMessage(`{"host":"mail.acme.fr","port":0,"from_email":"pas-un-email"}`))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
}

// ===========================================================================
// Invoices and quotes
// ===========================================================================

func TestInvoice_CreateComputesTotalsAndNumber(t *testing.T) {
	e := newEnv(t, models.TenantSettings{})

	inv, err := e.invoices.Create(context.Background(), e.tenant.ID, CreateInvoiceInput{
		ClientID: e.client.ID,
		Lines:    dupontLines(),
	})
	require.NoError(t, err)

	assert.Equal(t, "FAC-2026-0001", inv.Number)
	assert.Equal(t, models.InvoiceDraft, inv.Status)
	assert.InDelta(t, 800, inv.SubtotalHT, 0.001)
	assert.InDelta(t, 160, inv.TaxAmount, 0.001)
	assert.InDelta(t, 960, inv.TotalTTC, 0.001)
	require.NotNil(t, inv.DueDate)
	assert.Equal(t, e.clock.Now().Add(DefaultPaymentTerm), *inv.DueDate)

	second, err := e.invoices.Create(context.Background(), e.tenant.ID, CreateInvoiceInput{ClientID: e.client.ID, Lines: dupontLines()})
	require.NoError(t, err)
	assert.Equal(t, "FAC-2026-0002", second.Number)
}

func TestInvoice_CreateUnknownClient(t *testing.T) {
	e := newEnv(t, models.TenantSettings{})

	_, err := e.invoices.Create(context.Background(), e.tenant.ID, CreateInvoiceInput{ClientID: uuid.New(), Lines: dupontLines()})
	require.Error(t, err)
	assert.Equal(t, "Client non trouvé", apperrors.Message(err, ""))
}

func TestInvoice_MarkPaidLeavesUnpaidList(t *testing.T) {
	e := newEnv(t, smtpConfigured)
	ctx := context.Background()

	inv, err := e.invoices.Create(ctx, e.tenant.ID, CreateInvoiceInput{ClientID: e.client.ID, Lines: dupontLines()})
	require.NoError(t, err)
	_, err = e.invoices.SendEmail(ctx, e.tenant.ID, inv.ID)
	require.NoError(t, err)
	require.Len(t, e.outbox.messages(), 1)

	unpaid, err := e.invoices.ListUnpaid(ctx, e.tenant.ID)
	require.NoError(t, err)
	require.Len(t, unpaid, 1)

	paid, err := e.invoices.MarkPaid(ctx, e.tenant.ID, inv.ID, nil, "virement")
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePaid, paid.Status)
	require.NotNil(t, paid.PaymentDate)

	unpaid, err = e.invoices.ListUnpaid(ctx, e.tenant.ID)
	require.NoError(t, err)
	assert.Empty(t, unpaid)

	_, err = e.invoices.MarkPaid(ctx, e.tenant.ID, inv.ID, nil, "")
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
}

func TestInvoice_RefreshOverdue(t *testing.T) {
	e := newEnv(t, smtpConfigured)
	ctx := context.Background()

	inv, err := e.invoices.Create(ctx, e.tenant.ID, CreateInvoiceInput{ClientID: e.client.ID, Lines: dupontLines()})
	require.NoError(t, err)
	_, err = e.invoices.SendEmail(ctx, e.tenant.ID, inv.ID)
	require.NoError(t, err)

	e.clock.Advance(DefaultPaymentTerm + 24*time.Hour)
	n, err := e.invoices.RefreshOverdue(ctx, e.tenant.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := e.invoices.Get(ctx, e.tenant.ID, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceOverdue, got.Status)
}

func TestQuote_ConvertTwiceCreatesOneInvoice(t *testing.T) {
	e := newEnv(t, models.TenantSettings{})
	ctx := context.Background()

	q, err := e.quotes.Create(ctx, e.tenant.ID, CreateQuoteInput{ClientID: e.client.ID, Lines: dupontLines()})
	require.NoError(t, err)
	assert.Equal(t, "DEV-2026-0001", q.Number)

	inv, err := e.quotes.ConvertToInvoice(ctx, e.tenant.ID, q.ID)
	require.NoError(t, err)
	assert.InDelta(t, 960, inv.TotalTTC, 0.001)

	_, err = e.quotes.ConvertToInvoice(ctx, e.tenant.ID, q.ID)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrAlreadyConverted))

	_, total, err := e.invoices.List(ctx, e.tenant.ID, repositories.InvoiceFilter{}, repositories.FindOptions{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	got, err := e.quotes.Get(ctx, e.tenant.ID, q.ID)
	require.NoError(t, err)
	require.NotNil(t, got.InvoiceID)
	assert.Equal(t, inv.ID, *got.InvoiceID)
}

// ===========================================================================
// Treasury
// ===========================================================================

func seedCredit(t *testing.T, e *env, amount float64, label string) *models.BankTransaction {
	t.Helper()
	ctx := context.Background()
	acc, err := e.treasury.CreateAccount(ctx, e.tenant.ID, CreateBankAccountInput{Name: "Compte courant"})
	require.NoError(t, err)

	tx := models.BankTransaction{
		BankAccountID: acc.ID,
		ExternalID:    uuid.NewString(),
		BookingDate:   e.clock.Now(),
		Amount:        amount,
		Currency:      "EUR",
		Label:         label,
	}
	tx.TenantID = e.tenant.ID
	n, err := e.store.Transactions.InsertNew(ctx, []models.BankTransaction{tx})
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	list, _, err := e.treasury.ListTransactions(ctx, e.tenant.ID, repositories.TransactionFilter{AccountID: &acc.ID}, repositories.FindOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	return &list[0]
}

func TestTreasury_ReconcileMarksInvoicePaid(t *testing.T) {
	e := newEnv(t, models.TenantSettings{})
	ctx := context.Background()

	inv, err := e.invoices.Create(ctx, e.tenant.ID, CreateInvoiceInput{ClientID: e.client.ID, Lines: dupontLines()})
	require.NoError(t, err)
	credit := seedCredit(t, e, 960, "VIR DUPONT "+inv.Number)

	suggestions, err := e.invoices.ReconcileSuggestions(ctx, e.tenant.ID, inv.ID)
	require.NoError(t, err)
	require.NotEmpty(t, suggestions)
	assert.Equal(t, credit.ID, suggestions[0].ID)

	res, err := e.treasury.Reconcile(ctx, e.tenant.ID, credit.ID, inv.ID)
	require.NoError(t, err)
	assert.True(t, res.MarkedPaid)
	assert.Equal(t, models.InvoicePaid, res.Invoice.Status)

	_, err = e.treasury.Reconcile(ctx, e.tenant.ID, credit.ID, inv.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))

	summary, err := e.treasury.Summary(ctx, e.tenant.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, summary.UnreconciledCount)
	assert.InDelta(t, 960, summary.Income30Days, 0.001)
}

func TestTreasury_PartialPaymentKeepsInvoiceOpen(t *testing.T) {
	e := newEnv(t, models.TenantSettings{})
	ctx := context.Background()

	inv, err := e.invoices.Create(ctx, e.tenant.ID, CreateInvoiceInput{ClientID: e.client.ID, Lines: dupontLines()})
	require.NoError(t, err)
	credit := seedCredit(t, e, 500, "acompte")

	res, err := e.treasury.Reconcile(ctx, e.tenant.ID, credit.ID, inv.ID)
	require.NoError(t, err)
	assert.False(t, res.MarkedPaid)
	assert.Equal(t, models.InvoiceDraft, res.Invoice.Status)
}

// ===========================================================================
// Work and analytics
// ===========================================================================

func TestWork_TicketNumberingAndFirstMessage(t *testing.T) {
	e := newEnv(t, models.TenantSettings{})
	work := NewWorkService(e.store, e.clock, zap.NewNop())
	ctx := context.Background()

	ticket, err := work.CreateTicket(ctx, e.tenant.ID, TicketInput{ClientID: e.client.ID, Subject: "Site en panne", Message: "Erreur 500 sur la page d'accueil"})
	require.NoError(t, err)
	assert.Equal(t, "TCK-2026-0001", ticket.Number)
	require.Len(t, ticket.Messages, 1)

	_, err = work.UpdateTicketStatus(ctx, e.tenant.ID, ticket.ID, models.TicketClosed)
	require.NoError(t, err)
	_, err = work.AddTicketMessage(ctx, e.tenant.ID, ticket.ID, models.AuthorStaff, "relance")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
}

func TestWork_CompleteTodoOnlyForTodos(t *testing.T) {
	e := newEnv(t, models.TenantSettings{})
	work := NewWorkService(e.store, e.clock, zap.NewNop())
	ctx := context.Background()

	note, err := work.AddNote(ctx, e.tenant.ID, NoteInput{Content: "Appel client", Links: []EntityRef{{Type: models.EntityClient, ID: e.client.ID}}})
	require.NoError(t, err)
	_, err = work.CompleteTodo(ctx, e.tenant.ID, note.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))

	todo, err := work.AddNote(ctx, e.tenant.ID, NoteInput{Content: "Envoyer le devis", Type: models.NoteTypeTodo})
	require.NoError(t, err)
	done, err := work.CompleteTodo(ctx, e.tenant.ID, todo.ID)
	require.NoError(t, err)
	assert.True(t, done.IsDone)

	notes, total, err := work.ListNotes(ctx, e.tenant.ID, repositories.NoteFilter{EntityType: models.EntityClient, EntityID: &e.client.ID}, repositories.FindOptions{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, note.ID, notes[0].ID)
}

func TestAnalytics_DashboardAndRevenue(t *testing.T) {
	e := newEnv(t, models.TenantSettings{})
	analytics := NewAnalyticsService(e.store, e.clock, time.UTC, zap.NewNop())
	ctx := context.Background()

	inv, err := e.invoices.Create(ctx, e.tenant.ID, CreateInvoiceInput{ClientID: e.client.ID, Lines: dupontLines()})
	require.NoError(t, err)
	_, err = e.invoices.MarkPaid(ctx, e.tenant.ID, inv.ID, nil, "virement")
	require.NoError(t, err)

	stats, err := analytics.Dashboard(ctx, e.tenant.ID)
	require.NoError(t, err)
	assert.InDelta(t, 960, stats.RevenueThisMonth, 0.001)
	assert.InDelta(t, 960, stats.RevenueThisYear, 0.001)
	assert.Zero(t, stats.UnpaidCount)
	assert.EqualValues(t, 1, stats.ActiveClients)

	months, err := analytics.RevenueByMonth(ctx, e.tenant.ID, 3)
	require.NoError(t, err)
	require.Len(t, months, 3)
	assert.Equal(t, "2026-03", months[2].Month)
	assert.InDelta(t, 960, months[2].Revenue, 0.001)
	assert.Zero(t, months[0].Revenue)

	top, err := analytics.TopClients(ctx, e.tenant.ID, 5)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "Dupont", top[0].ClientName)
}

// ===========================================================================
// Auth
// ===========================================================================

func newAuth(t *testing.T, e *env) (AuthService, *models.User, *models.User) {
	t.Helper()
	ctx := context.Background()
	jwtSvc := auth.NewJWTService(config.JWTConfig{Secret: "test-secret", AccessDuration: 15 * time.Minute, RefreshDuration: 24 * time.Hour})

	admin := &models.User{Email: "admin@acme.fr", Name: "Alice", Role: models.RoleAdmin, IsActive: true}
	admin.TenantID = e.tenant.ID
	require.NoError(t, admin.SetPassword("motdepasse"))
	require.NoError(t, e.store.Users.Create(ctx, admin))

	member := &models.User{Email: "bob@acme.fr", Name: "Bob", Role: models.RoleMember, IsActive: true}
	member.TenantID = e.tenant.ID
	require.NoError(t, member.SetPassword("motdepasse"))
	require.NoError(t, e.store.Users.Create(ctx, member))

	svc := NewAuthService(e.store.Users, e.store.Tenants, jwtSvc, e.mailer, "https://crm.acme.fr", testutil.NewFakeClock(time.Now()), zap.NewNop())
	return svc, admin, member
}

func TestAuth_LoginAndRefreshRotation(t *testing.T) {
	e := newEnv(t, models.TenantSettings{})
	svc, _, _ := newAuth(t, e)
	ctx := context.Background()

	_, err := svc.Login(ctx, "admin@acme.fr", "mauvais")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	res, err := svc.Login(ctx, "Admin@Acme.fr", "motdepasse")
	require.NoError(t, err)
	assert.Equal(t, 900, res.ExpiresIn)

	rotated, err := svc.RefreshTokens(ctx, res.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, res.Tokens.RefreshToken, rotated.Tokens.RefreshToken)

	_, err = svc.RefreshTokens(ctx, res.Tokens.RefreshToken)
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestAuth_ImpersonateAndStop(t *testing.T) {
	e := newEnv(t, models.TenantSettings{})
	svc, admin, member := newAuth(t, e)
	ctx := context.Background()

	login, err := svc.Login(ctx, admin.Email, "motdepasse")
	require.NoError(t, err)
	adminClaims, err := svc.ValidateAccessToken(login.Tokens.AccessToken)
	require.NoError(t, err)

	imp, err := svc.Impersonate(ctx, adminClaims, member.ID)
	require.NoError(t, err)
	assert.Empty(t, imp.Tokens.RefreshToken)

	claims, err := svc.ValidateAccessToken(imp.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, member.ID, claims.UserID)
	require.NotNil(t, claims.ImpersonatorID)
	assert.Equal(t, admin.ID, *claims.ImpersonatorID)

	_, err = svc.Impersonate(ctx, claims, admin.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	back, err := svc.StopImpersonation(ctx, claims)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, back.User.ID)
	backClaims, err := svc.ValidateAccessToken(back.Tokens.AccessToken)
	require.NoError(t, err)
	assert.False(t, backClaims.IsImpersonated())
}

func TestAuth_MemberCannotImpersonate(t *testing.T) {
	e := newEnv(t, models.TenantSettings{})
	svc, admin, member := newAuth(t, e)

	claims := &auth.Claims{UserID: member.ID, TenantID: e.tenant.ID, Role: models.RoleMember}
	_, err := svc.Impersonate(context.Background(), claims, admin.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestAuth_PasswordResetFlow(t *testing.T) {
	e := newEnv(t, smtpConfigured)
	svc, admin, _ := newAuth(t, e)
	ctx := context.Background()

	require.NoError(t, svc.ForgotPassword(ctx, "inconnu@acme.fr"))
	assert.Empty(t, e.outbox.messages())

	require.NoError(t, svc.ForgotPassword(ctx, admin.Email))
	sent := e.outbox.messages()
	require.Len(t, sent, 1)

	user, err := e.store.Users.FindByID(ctx, admin.ID)
	require.NoError(t, err)
	require.NotNil(t, user.ResetTokenHash)

	err = svc.ResetPassword(ctx, "jeton-invalide", "nouveau-mot-de-passe")
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

// ===========================================================================
// Users
// ===========================================================================

func TestUser_CreateSendsInvitation(t *testing.T) {
	e := newEnv(t, smtpConfigured)
	_, admin, _ := newAuth(t, e)
	svc := NewUserService(e.store.Users, e.settings, e.mailer, "https://crm.acme.fr/", e.clock, zap.NewNop())
	ctx := context.Background()

	user, err := svc.Create(ctx, e.tenant.ID, admin.ID, CreateUserInput{Email: " Claire@Acme.fr ", Name: "Claire"})
	require.NoError(t, err)
	assert.Equal(t, "claire@acme.fr", user.Email)
	assert.Equal(t, models.RoleMember, user.Role)
	require.NotNil(t, user.ResetTokenExpiresAt)
	assert.Equal(t, e.clock.Now().Add(InvitationTTL), *user.ResetTokenExpiresAt)

	sent := e.outbox.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"claire@acme.fr"}, sent[0].To)
	assert.Contains(t, sent[0].Text, "https://crm.acme.fr/reset-password?token=")

	_, err = svc.Create(ctx, e.tenant.ID, admin.ID, CreateUserInput{Email: "claire@acme.fr", Name: "Claire"})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateEntry)

	_, err = svc.Create(ctx, e.tenant.ID, admin.ID, CreateUserInput{Email: "dan@acme.fr", Role: models.RoleOwner})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

// ===========================================================================
// GoCardless
// ===========================================================================

func bankServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/token/new/":
			_, _ = w.Write([]byte(`{"access":"tok","access_expires":86400}`))
		case "/accounts/ext-1/transactions/":
			_, _ = w.Write([]byte(`{"transactions":{"booked":[
				{"transactionId":"t1","bookingDate":"2026-03-02","transactionAmount":{"amount":"960.00","currency":"EUR"},"debtorName":"DUPONT SARL","remittanceInformationUnstructured":"FAC-2026-0001"},
				{"transactionId":"t2","bookingDate":"2026-03-03","transactionAmount":{"amount":"-42.10","currency":"EUR"},"creditorName":"OVH"}
			],"pending":[]}}`))
		case "/accounts/ext-1/balances/":
			_, _ = w.Write([]byte(`{"balances":[{"balanceAmount":{"amount":"1530.25","currency":"EUR"},"balanceType":"closingBooked"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"summary":"Not found"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGoCardless_SyncSkipsKnownTransactions(t *testing.T) {
	e := newEnv(t, models.TenantSettings{GoCardless: models.GoCardlessSettings{SecretID: "id", SecretKey: "key"}})
	srv := bankServer(t)
	notifier := NewNotifier(e.settings, slack.New(), realtime.NewNoopPublisher(), zap.NewNop())
	svc := NewGoCardlessService(e.store, e.settings, gocardless.New(srv.URL), notifier, "https://crm.acme.fr", e.clock, zap.NewNop())
	ctx := context.Background()

	acc := &models.BankAccount{Name: "Compte pro", Currency: "EUR", GoCardlessAccountID: "ext-1"}
	acc.TenantID = e.tenant.ID
	require.NoError(t, e.store.BankAccounts.Create(ctx, acc))

	res, err := svc.SyncAccount(ctx, e.tenant.ID, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.NewTransactions)
	assert.InDelta(t, 1530.25, res.Balance, 0.001)

	e.clock.Advance(time.Hour)
	res, err = svc.SyncAccount(ctx, e.tenant.ID, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.NewTransactions)

	stored, err := e.store.BankAccounts.FindByID(ctx, e.tenant.ID, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncOK, stored.SyncStatus)
	require.NotNil(t, stored.LastSyncAt)

	unlinked := &models.BankAccount{Name: "Caisse", Currency: "EUR"}
	unlinked.TenantID = e.tenant.ID
	require.NoError(t, e.store.BankAccounts.Create(ctx, unlinked))
	_, err = svc.SyncAccount(ctx, e.tenant.ID, unlinked.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestGoCardless_ReferenceCarriesTenant(t *testing.T) {
	id := uuid.New()
	got, err := tenantFromReference(referenceFor(id))
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = tenantFromReference("garbage")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
