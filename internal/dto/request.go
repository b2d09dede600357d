package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ===========================================================================
// Request DTOs
// Bound and validated by gin (binding tags run validator/v10)
// ===========================================================================

// PaginationRequest is embedded by list queries
type PaginationRequest struct {
	// Page starts at 1
	Page  int `form:"page" binding:"min=0"`
	Limit int `form:"limit" binding:"min=0,max=100"`
}

func (p *PaginationRequest) SetDefaults() {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = 20
	}
}

func (p *PaginationRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// ===========================================================================
// Auth
// ===========================================================================

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=8,max=128"`
}

// ===========================================================================
// Invoices
// ===========================================================================

type LineRequest struct {
	Description string   `json:"description" binding:"required,max=500"`
	Quantity    float64  `json:"quantity" binding:"required,gt=0"`
	UnitPrice   float64  `json:"unit_price" binding:"gte=0"`
	VATRate     *float64 `json:"vat_rate" binding:"omitempty,gte=0,lte=100"`
}

type ListInvoicesRequest struct {
	PaginationRequest

	Status   string     `form:"status" binding:"omitempty,oneof=draft sent paid overdue cancelled"`
	ClientID *uuid.UUID `form:"client_id"`
	Number   string     `form:"q" binding:"max=50"`
}

type CreateInvoiceRequest struct {
	ClientID  uuid.UUID     `json:"client_id" binding:"required"`
	IssueDate *time.Time    `json:"issue_date"`
	DueDate   *time.Time    `json:"due_date"`
	Notes     string        `json:"notes" binding:"max=5000"`
	Items     []LineRequest `json:"items" binding:"required,min=1,dive"`
}

// UpdateInvoiceRequest replaces items when given; nil fields are unchanged
type UpdateInvoiceRequest struct {
	DueDate *time.Time    `json:"due_date"`
	Notes   *string       `json:"notes" binding:"omitempty,max=5000"`
	Status  *string       `json:"status" binding:"omitempty,oneof=draft sent cancelled"`
	Items   []LineRequest `json:"items" binding:"omitempty,dive"`
}

// SetDueDateRequest accepts any format the French date parser understands
type SetDueDateRequest struct {
	DueDate string `json:"due_date" binding:"required"`
}

type MarkPaidRequest struct {
	PaymentDate   *time.Time `json:"payment_date"`
	PaymentMethod string     `json:"payment_method" binding:"max=50"`
}

// ===========================================================================
// Settings
// ===========================================================================

type UpdateSettingsRequest struct {
	Section string          `json:"section" binding:"required"`
	Data    json.RawMessage `json:"data" binding:"required"`
}

// TestSettingsRequest optionally carries unsaved values to test
type TestSettingsRequest struct {
	Data json.RawMessage `json:"data"`
}

// ===========================================================================
// Treasury
// ===========================================================================

type CreateBankAccountRequest struct {
	Name           string  `json:"name" binding:"required,max=255"`
	BankName       string  `json:"bank_name" binding:"max=255"`
	IBAN           string  `json:"iban" binding:"omitempty,max=34"`
	BIC            string  `json:"bic" binding:"omitempty,max=11"`
	Currency       string  `json:"currency" binding:"omitempty,len=3"`
	CurrentBalance float64 `json:"current_balance"`
}

type ListTransactionsRequest struct {
	PaginationRequest

	AccountID  *uuid.UUID `form:"account_id"`
	Reconciled *bool      `form:"reconciled"`
	From       *time.Time `form:"from" time_format:"2006-01-02"`
	To         *time.Time `form:"to" time_format:"2006-01-02"`
	Search     string     `form:"q" binding:"max=100"`
}

type ReconcileRequest struct {
	InvoiceID uuid.UUID `json:"invoice_id" binding:"required"`
}

// ===========================================================================
// GoCardless
// ===========================================================================

type CreateRequisitionRequest struct {
	InstitutionID string `json:"institution_id" binding:"required"`
	AccountName   string `json:"account_name" binding:"max=255"`
}

// ===========================================================================
// Users
// ===========================================================================

type CreateUserRequest struct {
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"name" binding:"required,max=255"`
	Role  string `json:"role" binding:"omitempty,oneof=admin member"`
}
