package repositories

import (
	"context"
	"time"

	"crm-gin/internal/models"

	"github.com/google/uuid"
)

// ===========================================================================
// Repository interfaces
// Implementations live next to each aggregate (*_repo.go)
// ===========================================================================

type TenantRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	FindBySlug(ctx context.Context, slug string) (*models.Tenant, error)
	Create(ctx context.Context, tenant *models.Tenant) error
	// UpdateSettings replaces the settings blob only
	UpdateSettings(ctx context.Context, id uuid.UUID, settings models.TenantSettings) error
}

type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// FindByEmail looks up an active user across tenants (login)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByResetTokenHash(ctx context.Context, hash string) (*models.User, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, opts FindOptions) ([]models.User, int64, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
}

type ClientRepository interface {
	ListRepository[models.Client, ClientFilter]
	// FindByName returns the best case-insensitive match on company or contact name
	FindByName(ctx context.Context, tenantID uuid.UUID, name string) (*models.Client, error)
	Count(ctx context.Context, tenantID uuid.UUID, filter ClientFilter) (int64, error)
}

// InvoiceSum aggregates total_ttc over a filter
type InvoiceSum struct {
	Total float64
	Count int64
}

// ClientRevenue is one row of the top clients ranking
type ClientRevenue struct {
	ClientID uuid.UUID
	Total    float64
	Count    int64
}

type InvoiceRepository interface {
	ListRepository[models.Invoice, InvoiceFilter]
	// CreateWithItems inserts the invoice and its lines
	CreateWithItems(ctx context.Context, invoice *models.Invoice) error
	ReplaceItems(ctx context.Context, invoiceID uuid.UUID, items []models.InvoiceItem) error
	FindByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*models.Invoice, error)
	NextSequence(ctx context.Context, tenantID uuid.UUID, at time.Time) (int64, error)
	Sum(ctx context.Context, tenantID uuid.UUID, filter InvoiceFilter) (InvoiceSum, error)
	TopClients(ctx context.Context, tenantID uuid.UUID, filter InvoiceFilter, limit int) ([]ClientRevenue, error)
	// MarkOverdue flips sent invoices past due to overdue and returns how many changed
	MarkOverdue(ctx context.Context, tenantID uuid.UUID, now time.Time) (int64, error)
}

type QuoteRepository interface {
	ListRepository[models.Quote, QuoteFilter]
	CreateWithItems(ctx context.Context, quote *models.Quote) error
	FindByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*models.Quote, error)
	NextSequence(ctx context.Context, tenantID uuid.UUID, at time.Time) (int64, error)
	// LinkInvoice writes the conversion back-reference, failing with
	// ErrAlreadyConverted when the quote already has one
	LinkInvoice(ctx context.Context, tenantID, quoteID, invoiceID uuid.UUID) error
}

type NoteRepository interface {
	ListRepository[models.Note, NoteFilter]
	CreateWithLinks(ctx context.Context, note *models.Note) error
}

type TaskRepository interface {
	ListRepository[models.Task, TaskFilter]
}

type ProjectRepository interface {
	ListRepository[models.Project, ProjectFilter]
}

type TicketRepository interface {
	ListRepository[models.Ticket, TicketFilter]
	AddMessage(ctx context.Context, msg *models.TicketMessage) error
	NextSequence(ctx context.Context, tenantID uuid.UUID, at time.Time) (int64, error)
}

type SubscriptionRepository interface {
	ListRepository[models.Subscription, SubscriptionFilter]
}

type DomainRepository interface {
	ListRepository[models.Domain, DomainFilter]
	// UpsertByName creates or refreshes a domain keyed on its name
	UpsertByName(ctx context.Context, domain *models.Domain) (created bool, err error)
}

type ContractRepository interface {
	ListRepository[models.Contract, ContractFilter]
}

type ServiceRepository interface {
	ListRepository[models.Service, ServiceFilter]
}

type BankAccountRepository interface {
	Repository[models.BankAccount]
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.BankAccount, error)
	FindByRequisitionID(ctx context.Context, tenantID uuid.UUID, requisitionID string) ([]models.BankAccount, error)
	FindByExternalAccountID(ctx context.Context, tenantID uuid.UUID, externalID string) (*models.BankAccount, error)
}

type BankTransactionRepository interface {
	ListRepository[models.BankTransaction, TransactionFilter]
	// InsertNew stores transactions, skipping ones already imported
	InsertNew(ctx context.Context, txs []models.BankTransaction) (int64, error)
	// Flows sums credits and debits matching filter
	Flows(ctx context.Context, tenantID uuid.UUID, filter TransactionFilter) (CashFlow, error)
}

// CashFlow splits money in and out; Debits is negative
type CashFlow struct {
	Credits float64
	Debits  float64
	Count   int64
}

type TelegramConversationRepository interface {
	FindByChatID(ctx context.Context, chatID int64) (*models.TelegramConversation, error)
	Save(ctx context.Context, conv *models.TelegramConversation) error
	DeleteByChatID(ctx context.Context, chatID int64) error
}
