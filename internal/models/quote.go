package models

import (
	"time"

	"github.com/google/uuid"
)

// ===========================================================================
// Quote (devis)
// InvoiceID is set once the quote was converted; a quote converts only once.
// ===========================================================================

type QuoteStatus string

const (
	QuoteDraft    QuoteStatus = "draft"
	QuoteSent     QuoteStatus = "sent"
	QuoteAccepted QuoteStatus = "accepted"
	QuoteRejected QuoteStatus = "rejected"
	QuoteExpired  QuoteStatus = "expired"
)

func IsValidQuoteStatus(s string) bool {
	switch QuoteStatus(s) {
	case QuoteDraft, QuoteSent, QuoteAccepted, QuoteRejected, QuoteExpired:
		return true
	}
	return false
}

type Quote struct {
	BaseModel
	// numbers are unique per tenant
	TenantID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_quotes_tenant_number" json:"tenant_id"`
	Number   string    `gorm:"size:30;not null;uniqueIndex:idx_quotes_tenant_number" json:"number"`

	ClientID uuid.UUID   `gorm:"type:uuid;not null;index" json:"client_id"`
	Status   QuoteStatus `gorm:"size:20;not null;default:'draft';index" json:"status"`

	IssueDate  time.Time  `gorm:"not null" json:"issue_date"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
	SentAt     *time.Time `json:"sent_at,omitempty"`

	SubtotalHT float64 `gorm:"not null;default:0" json:"subtotal_ht"`
	TaxAmount  float64 `gorm:"not null;default:0" json:"tax_amount"`
	TotalTTC   float64 `gorm:"not null;default:0" json:"total_ttc"`

	Notes string `gorm:"type:text" json:"notes,omitempty"`

	// InvoiceID back-reference written by the conversion
	InvoiceID *uuid.UUID `gorm:"type:uuid;index" json:"invoice_id,omitempty"`

	Items  []QuoteItem `gorm:"foreignKey:QuoteID" json:"items,omitempty"`
	Client *Client     `gorm:"foreignKey:ClientID" json:"client,omitempty"`
}

func (Quote) TableName() string {
	return "quotes"
}

func (q *Quote) IsConverted() bool {
	return q.InvoiceID != nil
}

type QuoteItem struct {
	BaseModel

	QuoteID     uuid.UUID `gorm:"type:uuid;not null;index" json:"quote_id"`
	Position    int       `gorm:"not null;default:0" json:"position"`
	Description string    `gorm:"type:text;not null" json:"description"`
	Quantity    float64   `gorm:"not null" json:"quantity"`
	UnitPriceHT float64   `gorm:"not null" json:"unit_price_ht"`
	VATRate     float64   `gorm:"not null;default:20" json:"vat_rate"`
	TotalHT     float64   `gorm:"not null" json:"total_ht"`
	TaxAmount   float64   `gorm:"not null" json:"tax_amount"`
	TotalTTC    float64   `gorm:"not null" json:"total_ttc"`
}

func (QuoteItem) TableName() string {
	return "quote_items"
}
