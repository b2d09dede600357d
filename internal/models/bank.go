package models

import (
	"time"

	"github.com/google/uuid"
)

// ===========================================================================
// Treasury: bank accounts and their transactions
// ===========================================================================

type SyncStatus string

const (
	SyncNever   SyncStatus = "never"
	SyncPending SyncStatus = "pending"
	SyncOK      SyncStatus = "ok"
	SyncError   SyncStatus = "error"
)

type BankAccount struct {
	BaseModel
	TenantScoped

	Name           string  `gorm:"size:255;not null" json:"name"`
	BankName       string  `gorm:"size:255" json:"bank_name,omitempty"`
	IBAN           string  `gorm:"size:34" json:"iban,omitempty"`
	BIC            string  `gorm:"size:11" json:"bic,omitempty"`
	Currency       string  `gorm:"size:3;not null;default:'EUR'" json:"currency"`
	CurrentBalance float64 `gorm:"not null;default:0" json:"current_balance"`

	// GoCardless Bank Account Data identifiers
	GoCardlessRequisitionID string `gorm:"column:gocardless_requisition_id;size:100;index" json:"gocardless_requisition_id,omitempty"`
	GoCardlessAccountID     string `gorm:"column:gocardless_account_id;size:100;index" json:"gocardless_account_id,omitempty"`

	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
	SyncStatus SyncStatus `gorm:"size:20;not null;default:'never'" json:"sync_status"`
	SyncError  string     `gorm:"type:text" json:"sync_error,omitempty"`
}

func (BankAccount) TableName() string {
	return "bank_accounts"
}

type BankTransaction struct {
	BaseModel
	TenantScoped

	BankAccountID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_bank_tx_external" json:"bank_account_id"`

	// ExternalID is the bank provider id, unique per account so syncs are idempotent
	ExternalID string `gorm:"size:191;not null;uniqueIndex:idx_bank_tx_external" json:"external_id"`

	BookingDate      time.Time `gorm:"not null;index" json:"booking_date"`
	Amount           float64   `gorm:"not null" json:"amount"`
	Currency         string    `gorm:"size:3;not null;default:'EUR'" json:"currency"`
	Label            string    `gorm:"type:text" json:"label"`
	CounterpartyName string    `gorm:"size:255" json:"counterparty_name,omitempty"`

	IsReconciled bool       `gorm:"default:false;index" json:"is_reconciled"`
	InvoiceID    *uuid.UUID `gorm:"type:uuid;index" json:"invoice_id,omitempty"`

	BankAccount *BankAccount `gorm:"foreignKey:BankAccountID" json:"bank_account,omitempty"`
}

func (BankTransaction) TableName() string {
	return "bank_transactions"
}

// IsCredit reports incoming money
func (t *BankTransaction) IsCredit() bool {
	return t.Amount > 0
}
