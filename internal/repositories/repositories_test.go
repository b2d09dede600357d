package repositories

import (
	"context"
	"testing"
	"time"

	apperrors "crm-gin/internal/errors"
	"crm-gin/internal/models"
	"crm-gin/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInvoice(tenantID, clientID uuid.UUID, number string, status models.InvoiceStatus, total float64, due *time.Time) *models.Invoice {
	inv := &models.Invoice{
		ClientID:  clientID,
		Number:    number,
		Status:    status,
		IssueDate: time.Now(),
		DueDate:   due,
		TotalTTC:  total,
	}
	inv.TenantID = tenantID
	return inv
}

func TestClientRepository_FindByNameIsCaseInsensitive(t *testing.T) {
	db := testutil.NewDB(t)
	store := NewStore(db)
	ctx := context.Background()
	tenant := testutil.SeedTenant(t, db, "acme", models.TenantSettings{})
	testutil.SeedClient(t, db, tenant, "Dupont Consulting")
	testutil.SeedClient(t, db, tenant, "Dupont")

	c, err := store.Clients.FindByName(ctx, tenant.ID, "dupont")
	require.NoError(t, err)
	assert.Equal(t, "Dupont", c.CompanyName)

	c, err = store.Clients.FindByName(ctx, tenant.ID, "CONSULT")
	require.NoError(t, err)
	assert.Equal(t, "Dupont Consulting", c.CompanyName)

	_, err = store.Clients.FindByName(ctx, tenant.ID, "Martin")
	assert.True(t, IsNotFound(err))
}

func TestClientRepository_TenantIsolation(t *testing.T) {
	db := testutil.NewDB(t)
	store := NewStore(db)
	ctx := context.Background()
	a := testutil.SeedTenant(t, db, "a", models.TenantSettings{})
	b := testutil.SeedTenant(t, db, "b", models.TenantSettings{})
	client := testutil.SeedClient(t, db, a, "Dupont")

	_, err := store.Clients.FindByID(ctx, b.ID, client.ID)
	assert.True(t, IsNotFound(err))

	list, total, err := store.Clients.List(ctx, b.ID, ClientFilter{}, FindOptions{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)
}

func TestInvoiceRepository_UnpaidFilterExcludesPaid(t *testing.T) {
	db := testutil.NewDB(t)
	store := NewStore(db)
	ctx := context.Background()
	tenant := testutil.SeedTenant(t, db, "acme", models.TenantSettings{})
	client := testutil.SeedClient(t, db, tenant, "Dupont")

	require.NoError(t, store.Invoices.CreateWithItems(ctx, newInvoice(tenant.ID, client.ID, "FAC-1", models.InvoiceSent, 100, nil)))
	require.NoError(t, store.Invoices.CreateWithItems(ctx, newInvoice(tenant.ID, client.ID, "FAC-2", models.InvoicePaid, 200, nil)))
	require.NoError(t, store.Invoices.CreateWithItems(ctx, newInvoice(tenant.ID, client.ID, "FAC-3", models.InvoiceOverdue, 300, nil)))
	require.NoError(t, store.Invoices.CreateWithItems(ctx, newInvoice(tenant.ID, client.ID, "FAC-4", models.InvoiceDraft, 400, nil)))

	list, total, err := store.Invoices.List(ctx, tenant.ID, UnpaidInvoices(), FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	for _, inv := range list {
		assert.NotEqual(t, models.InvoicePaid, inv.Status)
	}

	sum, err := store.Invoices.Sum(ctx, tenant.ID, UnpaidInvoices())
	require.NoError(t, err)
	assert.Equal(t, 400.0, sum.Total)
	assert.Equal(t, int64(2), sum.Count)
}

func TestInvoiceRepository_MarkOverdue(t *testing.T) {
	db := testutil.NewDB(t)
	store := NewStore(db)
	ctx := context.Background()
	tenant := testutil.SeedTenant(t, db, "acme", models.TenantSettings{})
	client := testutil.SeedClient(t, db, tenant, "Dupont")

	past := time.Now().AddDate(0, 0, -3)
	future := time.Now().AddDate(0, 0, 3)
	require.NoError(t, store.Invoices.CreateWithItems(ctx, newInvoice(tenant.ID, client.ID, "FAC-1", models.InvoiceSent, 100, &past)))
	require.NoError(t, store.Invoices.CreateWithItems(ctx, newInvoice(tenant.ID, client.ID, "FAC-2", models.InvoiceSent, 100, &future)))

	n, err := store.Invoices.MarkOverdue(ctx, tenant.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	inv, err := store.Invoices.FindByNumber(ctx, tenant.ID, "fac-1")
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceOverdue, inv.Status)
}

func TestInvoiceRepository_NumberUniquePerTenant(t *testing.T) {
	db := testutil.NewDB(t)
	store := NewStore(db)
	ctx := context.Background()
	acme := testutil.SeedTenant(t, db, "acme", models.TenantSettings{})
	other := testutil.SeedTenant(t, db, "other", models.TenantSettings{})
	client := testutil.SeedClient(t, db, acme, "Dupont")

	require.NoError(t, store.Invoices.CreateWithItems(ctx, newInvoice(acme.ID, client.ID, "FAC-2026-0001", models.InvoiceDraft, 100, nil)))
	assert.Error(t, store.Invoices.CreateWithItems(ctx, newInvoice(acme.ID, client.ID, "FAC-2026-0001", models.InvoiceDraft, 100, nil)))
	assert.NoError(t, store.Invoices.CreateWithItems(ctx, newInvoice(other.ID, client.ID, "FAC-2026-0001", models.InvoiceDraft, 100, nil)))
}

func TestNextSequence_CountsPerTenantKindAndYear(t *testing.T) {
	db := testutil.NewDB(t)
	store := NewStore(db)
	ctx := context.Background()
	acme := testutil.SeedTenant(t, db, "acme", models.TenantSettings{})
	other := testutil.SeedTenant(t, db, "other", models.TenantSettings{})
	client := testutil.SeedClient(t, db, acme, "Dupont")
	now := time.Now()

	// numbering continues after invoices stored before the counter existed
	require.NoError(t, store.Invoices.CreateWithItems(ctx, newInvoice(acme.ID, client.ID, "FAC-A", models.InvoiceSent, 100, nil)))
	require.NoError(t, store.Invoices.CreateWithItems(ctx, newInvoice(acme.ID, client.ID, "FAC-B", models.InvoiceSent, 100, nil)))

	seq, err := store.Invoices.NextSequence(ctx, acme.ID, now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), seq)

	// a number handed out is never reused, even if no invoice was stored with it
	seq, err = store.Invoices.NextSequence(ctx, acme.ID, now)
	require.NoError(t, err)
	assert.Equal(t, int64(4), seq)

	seq, err = store.Invoices.NextSequence(ctx, other.ID, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)

	seq, err = store.Quotes.NextSequence(ctx, acme.ID, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)

	seq, err = store.Invoices.NextSequence(ctx, acme.ID, now.AddDate(1, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)
}

func TestQuoteRepository_LinkInvoiceOnlyOnce(t *testing.T) {
	db := testutil.NewDB(t)
	store := NewStore(db)
	ctx := context.Background()
	tenant := testutil.SeedTenant(t, db, "acme", models.TenantSettings{})
	client := testutil.SeedClient(t, db, tenant, "Dupont")

	quote := &models.Quote{ClientID: client.ID, Number: "DEV-1", Status: models.QuoteSent, IssueDate: time.Now()}
	quote.TenantID = tenant.ID
	require.NoError(t, store.Quotes.CreateWithItems(ctx, quote))

	require.NoError(t, store.Quotes.LinkInvoice(ctx, tenant.ID, quote.ID, uuid.New()))
	err := store.Quotes.LinkInvoice(ctx, tenant.ID, quote.ID, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrAlreadyConverted)
}

func TestStore_TransactionRollsBack(t *testing.T) {
	db := testutil.NewDB(t)
	store := NewStore(db)
	ctx := context.Background()
	tenant := testutil.SeedTenant(t, db, "acme", models.TenantSettings{})

	err := store.Transaction(ctx, func(tx *Store) error {
		c := &models.Client{CompanyName: "Temp", Status: models.ClientProspect}
		c.TenantID = tenant.ID
		require.NoError(t, tx.Clients.Create(ctx, c))
		return apperrors.ErrConflict
	})
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	n, err := store.Clients.Count(ctx, tenant.ID, ClientFilter{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNoteFilter_ByLinkedEntity(t *testing.T) {
	db := testutil.NewDB(t)
	store := NewStore(db)
	ctx := context.Background()
	tenant := testutil.SeedTenant(t, db, "acme", models.TenantSettings{})
	client := testutil.SeedClient(t, db, tenant, "Dupont")

	linked := &models.Note{Content: "Rappeler lundi", Type: models.NoteTypeNote,
		Links: []models.NoteLink{{EntityType: models.EntityClient, EntityID: client.ID}}}
	linked.TenantID = tenant.ID
	other := &models.Note{Content: "Sans lien", Type: models.NoteTypeNote}
	other.TenantID = tenant.ID
	require.NoError(t, store.Notes.CreateWithLinks(ctx, linked))
	require.NoError(t, store.Notes.CreateWithLinks(ctx, other))

	notes, total, err := store.Notes.List(ctx, tenant.ID, NoteFilter{EntityType: models.EntityClient, EntityID: &client.ID}, FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Rappeler lundi", notes[0].Content)
	require.Len(t, notes[0].Links, 1)
}

func TestBankTransactionRepository_InsertNewSkipsDuplicates(t *testing.T) {
	db := testutil.NewDB(t)
	store := NewStore(db)
	ctx := context.Background()
	tenant := testutil.SeedTenant(t, db, "acme", models.TenantSettings{})

	account := &models.BankAccount{Name: "Courant", Currency: "EUR", SyncStatus: models.SyncNever}
	account.TenantID = tenant.ID
	require.NoError(t, store.BankAccounts.Create(ctx, account))

	mk := func(ext string) models.BankTransaction {
		tx := models.BankTransaction{BankAccountID: account.ID, ExternalID: ext, BookingDate: time.Now(), Amount: 10, Currency: "EUR"}
		tx.TenantID = tenant.ID
		return tx
	}

	n, err := store.Transactions.InsertNew(ctx, []models.BankTransaction{mk("a"), mk("b")})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = store.Transactions.InsertNew(ctx, []models.BankTransaction{mk("b"), mk("c")})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, total, err := store.Transactions.List(ctx, tenant.ID, TransactionFilter{AccountID: &account.ID}, FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}
