package models

import (
	"time"

	"github.com/google/uuid"
)

// ===========================================================================
// Invoice (facture)
// Amounts are stored pre-computed; the billing package is the only place
// that derives them from the lines.
// ===========================================================================

type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "draft"
	InvoiceSent      InvoiceStatus = "sent"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceOverdue   InvoiceStatus = "overdue"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

// UnpaidInvoiceStatuses are the statuses still waiting for money
var UnpaidInvoiceStatuses = []InvoiceStatus{InvoiceSent, InvoiceOverdue}

func IsValidInvoiceStatus(s string) bool {
	switch InvoiceStatus(s) {
	case InvoiceDraft, InvoiceSent, InvoicePaid, InvoiceOverdue, InvoiceCancelled:
		return true
	}
	return false
}

type Invoice struct {
	BaseModel
	// numbers are unique per tenant
	TenantID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_invoices_tenant_number" json:"tenant_id"`
	Number   string    `gorm:"size:30;not null;uniqueIndex:idx_invoices_tenant_number" json:"number"`

	ClientID uuid.UUID     `gorm:"type:uuid;not null;index" json:"client_id"`
	Status   InvoiceStatus `gorm:"size:20;not null;default:'draft';index" json:"status"`

	IssueDate     time.Time  `gorm:"not null" json:"issue_date"`
	DueDate       *time.Time `gorm:"index" json:"due_date,omitempty"`
	PaymentDate   *time.Time `json:"payment_date,omitempty"`
	PaymentMethod string     `gorm:"size:50" json:"payment_method,omitempty"`
	SentAt        *time.Time `json:"sent_at,omitempty"`

	SubtotalHT float64 `gorm:"not null;default:0" json:"subtotal_ht"`
	TaxAmount  float64 `gorm:"not null;default:0" json:"tax_amount"`
	TotalTTC   float64 `gorm:"not null;default:0" json:"total_ttc"`

	Notes string `gorm:"type:text" json:"notes,omitempty"`

	Items  []InvoiceItem `gorm:"foreignKey:InvoiceID" json:"items,omitempty"`
	Client *Client       `gorm:"foreignKey:ClientID" json:"client,omitempty"`
}

func (Invoice) TableName() string {
	return "invoices"
}

func (i *Invoice) IsPaid() bool {
	return i.Status == InvoicePaid
}

// IsOverdue reports whether an outstanding invoice is past its due date
func (i *Invoice) IsOverdue(now time.Time) bool {
	if i.DueDate == nil || i.Status != InvoiceSent {
		return false
	}
	return now.After(*i.DueDate)
}

type InvoiceItem struct {
	BaseModel

	InvoiceID   uuid.UUID `gorm:"type:uuid;not null;index" json:"invoice_id"`
	Position    int       `gorm:"not null;default:0" json:"position"`
	Description string    `gorm:"type:text;not null" json:"description"`
	Quantity    float64   `gorm:"not null" json:"quantity"`
	UnitPriceHT float64   `gorm:"not null" json:"unit_price_ht"`
	VATRate     float64   `gorm:"not null;default:20" json:"vat_rate"`
	TotalHT     float64   `gorm:"not null" json:"total_ht"`
	TaxAmount   float64   `gorm:"not null" json:"tax_amount"`
	TotalTTC    float64   `gorm:"not null" json:"total_ttc"`
}

func (InvoiceItem) TableName() string {
	return "invoice_items"
}
