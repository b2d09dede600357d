package repositories

import (
	"strings"
	"time"

	"crm-gin/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ===========================================================================
// Typed filters
// Each filter only adds the conditions whose fields are set.
// ===========================================================================

func likePattern(s string) string {
	return "%" + strings.ToLower(strings.TrimSpace(s)) + "%"
}

func yearStart(year int) time.Time {
	return time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
}

// ClientFilter ---------------------------------------------------------------

type ClientFilter struct {
	// Search matches company, contact names and email, case-insensitively
	Search string
	Status models.ClientStatus
	IDs    []uuid.UUID
}

func (f ClientFilter) Apply(q *gorm.DB) *gorm.DB {
	if f.Search != "" {
		p := likePattern(f.Search)
		q = q.Where("LOWER(company_name) LIKE ? OR LOWER(contact_first_name) LIKE ? OR LOWER(contact_last_name) LIKE ? OR LOWER(email) LIKE ?", p, p, p, p)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if len(f.IDs) > 0 {
		q = q.Where("id IN ?", f.IDs)
	}
	return q
}

// InvoiceFilter --------------------------------------------------------------

type InvoiceFilter struct {
	ClientID   *uuid.UUID
	Statuses   []models.InvoiceStatus
	Number     string
	DueBefore  *time.Time
	IssuedFrom *time.Time
	IssuedTo   *time.Time
	PaidFrom   *time.Time
	PaidTo     *time.Time
}

func (f InvoiceFilter) Apply(q *gorm.DB) *gorm.DB {
	if f.ClientID != nil {
		q = q.Where("client_id = ?", *f.ClientID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.Number != "" {
		q = q.Where("LOWER(number) LIKE ?", likePattern(f.Number))
	}
	if f.DueBefore != nil {
		q = q.Where("due_date IS NOT NULL AND due_date < ?", *f.DueBefore)
	}
	if f.IssuedFrom != nil {
		q = q.Where("issue_date >= ?", *f.IssuedFrom)
	}
	if f.IssuedTo != nil {
		q = q.Where("issue_date < ?", *f.IssuedTo)
	}
	if f.PaidFrom != nil {
		q = q.Where("payment_date >= ?", *f.PaidFrom)
	}
	if f.PaidTo != nil {
		q = q.Where("payment_date < ?", *f.PaidTo)
	}
	return q
}

// UnpaidInvoices selects invoices still waiting for payment
func UnpaidInvoices() InvoiceFilter {
	return InvoiceFilter{Statuses: models.UnpaidInvoiceStatuses}
}

// OverdueInvoices selects unpaid invoices whose due date passed before now
func OverdueInvoices(now time.Time) InvoiceFilter {
	return InvoiceFilter{Statuses: models.UnpaidInvoiceStatuses, DueBefore: &now}
}

// PaidBetween selects invoices paid in [from, to)
func PaidBetween(from, to time.Time) InvoiceFilter {
	return InvoiceFilter{Statuses: []models.InvoiceStatus{models.InvoicePaid}, PaidFrom: &from, PaidTo: &to}
}

// InvoicesForClient selects every invoice of one client
func InvoicesForClient(clientID uuid.UUID) InvoiceFilter {
	return InvoiceFilter{ClientID: &clientID}
}

// QuoteFilter ----------------------------------------------------------------

type QuoteFilter struct {
	ClientID  *uuid.UUID
	Statuses  []models.QuoteStatus
	Converted *bool
}

func (f QuoteFilter) Apply(q *gorm.DB) *gorm.DB {
	if f.ClientID != nil {
		q = q.Where("client_id = ?", *f.ClientID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.Converted != nil {
		if *f.Converted {
			q = q.Where("invoice_id IS NOT NULL")
		} else {
			q = q.Where("invoice_id IS NULL")
		}
	}
	return q
}

// NoteFilter -----------------------------------------------------------------

type NoteFilter struct {
	Type       models.NoteType
	EntityType string
	EntityID   *uuid.UUID
	Done       *bool
	// WithReminder keeps only notes carrying a reminder, optionally in a window
	WithReminder bool
	ReminderFrom *time.Time
	ReminderTo   *time.Time
	Search       string
}

func (f NoteFilter) Apply(q *gorm.DB) *gorm.DB {
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.EntityType != "" && f.EntityID != nil {
		q = q.Where("id IN (SELECT note_id FROM note_links WHERE entity_type = ? AND entity_id = ? AND deleted_at IS NULL)",
			f.EntityType, *f.EntityID)
	}
	if f.Done != nil {
		q = q.Where("is_done = ?", *f.Done)
	}
	if f.WithReminder {
		q = q.Where("reminder_at IS NOT NULL")
	}
	if f.ReminderFrom != nil {
		q = q.Where("reminder_at >= ?", *f.ReminderFrom)
	}
	if f.ReminderTo != nil {
		q = q.Where("reminder_at < ?", *f.ReminderTo)
	}
	if f.Search != "" {
		q = q.Where("LOWER(content) LIKE ?", likePattern(f.Search))
	}
	return q
}

// TaskFilter -----------------------------------------------------------------

type TaskFilter struct {
	Statuses  []models.TaskStatus
	ClientID  *uuid.UUID
	ProjectID *uuid.UUID
	DueBefore *time.Time
}

func (f TaskFilter) Apply(q *gorm.DB) *gorm.DB {
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.ClientID != nil {
		q = q.Where("client_id = ?", *f.ClientID)
	}
	if f.ProjectID != nil {
		q = q.Where("project_id = ?", *f.ProjectID)
	}
	if f.DueBefore != nil {
		q = q.Where("due_date IS NOT NULL AND due_date < ?", *f.DueBefore)
	}
	return q
}

// OpenTasks selects tasks not yet done
func OpenTasks() TaskFilter {
	return TaskFilter{Statuses: []models.TaskStatus{models.TaskTodo, models.TaskInProgress}}
}

// TicketFilter ---------------------------------------------------------------

type TicketFilter struct {
	Statuses []models.TicketStatus
	ClientID *uuid.UUID
}

func (f TicketFilter) Apply(q *gorm.DB) *gorm.DB {
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.ClientID != nil {
		q = q.Where("client_id = ?", *f.ClientID)
	}
	return q
}

// OpenTickets selects tickets still needing attention
func OpenTickets() TicketFilter {
	return TicketFilter{Statuses: []models.TicketStatus{models.TicketOpen, models.TicketPending}}
}

// TransactionFilter ----------------------------------------------------------

type TransactionFilter struct {
	AccountID   *uuid.UUID
	Reconciled  *bool
	CreditsOnly bool
	From        *time.Time
	To          *time.Time
	Search      string
}

func (f TransactionFilter) Apply(q *gorm.DB) *gorm.DB {
	if f.AccountID != nil {
		q = q.Where("bank_account_id = ?", *f.AccountID)
	}
	if f.Reconciled != nil {
		q = q.Where("is_reconciled = ?", *f.Reconciled)
	}
	if f.CreditsOnly {
		q = q.Where("amount > 0")
	}
	if f.From != nil {
		q = q.Where("booking_date >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("booking_date < ?", *f.To)
	}
	if f.Search != "" {
		p := likePattern(f.Search)
		q = q.Where("LOWER(label) LIKE ? OR LOWER(counterparty_name) LIKE ?", p, p)
	}
	return q
}

// UnreconciledCredits selects incoming money not yet matched to an invoice
func UnreconciledCredits() TransactionFilter {
	no := false
	return TransactionFilter{Reconciled: &no, CreditsOnly: true}
}

// SubscriptionFilter ---------------------------------------------------------

type SubscriptionFilter struct {
	ClientID *uuid.UUID
	Status   models.SubscriptionStatus
}

func (f SubscriptionFilter) Apply(q *gorm.DB) *gorm.DB {
	if f.ClientID != nil {
		q = q.Where("client_id = ?", *f.ClientID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	return q
}

// DomainFilter ---------------------------------------------------------------

type DomainFilter struct {
	ClientID      *uuid.UUID
	Name          string
	ExpiresBefore *time.Time
}

func (f DomainFilter) Apply(q *gorm.DB) *gorm.DB {
	if f.ClientID != nil {
		q = q.Where("client_id = ?", *f.ClientID)
	}
	if f.Name != "" {
		q = q.Where("LOWER(name) LIKE ?", likePattern(f.Name))
	}
	if f.ExpiresBefore != nil {
		q = q.Where("expires_at IS NOT NULL AND expires_at < ?", *f.ExpiresBefore)
	}
	return q
}

// ContractFilter -------------------------------------------------------------

type ContractFilter struct {
	ClientID *uuid.UUID
	Status   models.ContractStatus
}

func (f ContractFilter) Apply(q *gorm.DB) *gorm.DB {
	if f.ClientID != nil {
		q = q.Where("client_id = ?", *f.ClientID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	return q
}

// ProjectFilter --------------------------------------------------------------

type ProjectFilter struct {
	ClientID *uuid.UUID
	Status   models.ProjectStatus
}

func (f ProjectFilter) Apply(q *gorm.DB) *gorm.DB {
	if f.ClientID != nil {
		q = q.Where("client_id = ?", *f.ClientID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	return q
}

// ServiceFilter --------------------------------------------------------------

type ServiceFilter struct {
	ActiveOnly bool
	Search     string
}

func (f ServiceFilter) Apply(q *gorm.DB) *gorm.DB {
	if f.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}
	if f.Search != "" {
		p := likePattern(f.Search)
		q = q.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", p, p)
	}
	return q
}

// NoFilter lists everything of the tenant
type NoFilter struct{}

func (NoFilter) Apply(q *gorm.DB) *gorm.DB { return q }
