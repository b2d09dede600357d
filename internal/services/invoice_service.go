package services

import (
	"context"
	"time"

	"crm-gin/internal/billing"
	"crm-gin/internal/models"
	"crm-gin/internal/repositories"

	"github.com/google/uuid"
)

// ===========================================================================
// Invoice Service Interface
// Invoice lifecycle: draft -> sent -> paid, with overdue detection
// ===========================================================================

// DefaultPaymentTerm applies when an invoice is created without due date
const DefaultPaymentTerm = 30 * 24 * time.Hour

type CreateInvoiceInput struct {
	ClientID  uuid.UUID
	IssueDate *time.Time
	DueDate   *time.Time
	Notes     string
	Lines     []billing.Line
}

// UpdateInvoiceInput changes only non-nil fields. Lines, when non-nil,
// replace every item and recompute totals.
type UpdateInvoiceInput struct {
	DueDate *time.Time
	Notes   *string
	Status  *models.InvoiceStatus
	Lines   []billing.Line
}

type InvoiceService interface {
	Create(ctx context.Context, tenantID uuid.UUID, in CreateInvoiceInput) (*models.Invoice, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Invoice, error)
	// GetByNumber matches the number case-insensitively
	GetByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*models.Invoice, error)
	List(ctx context.Context, tenantID uuid.UUID, filter repositories.InvoiceFilter, opts repositories.FindOptions) ([]models.Invoice, int64, error)
	Update(ctx context.Context, tenantID, id uuid.UUID, in UpdateInvoiceInput) (*models.Invoice, error)
	// Delete removes any invoice that is not paid
	Delete(ctx context.Context, tenantID, id uuid.UUID) error

	// SendEmail mails the invoice to the client and marks a draft as sent
	SendEmail(ctx context.Context, tenantID, id uuid.UUID) (*models.Invoice, error)
	SetDueDate(ctx context.Context, tenantID, id uuid.UUID, due time.Time) (*models.Invoice, error)
	// MarkPaid sets status paid and the payment date (now when nil)
	MarkPaid(ctx context.Context, tenantID, id uuid.UUID, paidAt *time.Time, method string) (*models.Invoice, error)

	// ListUnpaid returns sent and overdue invoices, oldest due first
	ListUnpaid(ctx context.Context, tenantID uuid.UUID) ([]models.Invoice, error)
	ListOverdue(ctx context.Context, tenantID uuid.UUID) ([]models.Invoice, error)
	// RefreshOverdue flips sent invoices past due to overdue
	RefreshOverdue(ctx context.Context, tenantID uuid.UUID) (int64, error)
	// ReconcileSuggestions lists unreconciled credits that could pay the invoice
	ReconcileSuggestions(ctx context.Context, tenantID, id uuid.UUID) ([]models.BankTransaction, error)
}
