package models

import (
	"time"

	"github.com/google/uuid"
)

// ===========================================================================
// Catalogue services, recurring subscriptions, domains and contracts
// ===========================================================================

// Service is a sellable item of the catalogue
type Service struct {
	BaseModel
	TenantScoped

	Name        string  `gorm:"size:255;not null" json:"name"`
	Description string  `gorm:"type:text" json:"description,omitempty"`
	UnitPriceHT float64 `gorm:"not null" json:"unit_price_ht"`
	VATRate     float64 `gorm:"not null;default:20" json:"vat_rate"`
	Unit        string  `gorm:"size:30;default:'unité'" json:"unit"`
	IsActive    bool    `gorm:"default:true" json:"is_active"`
}

func (Service) TableName() string {
	return "services"
}

type BillingCycle string

const (
	CycleMonthly   BillingCycle = "monthly"
	CycleQuarterly BillingCycle = "quarterly"
	CycleYearly    BillingCycle = "yearly"
)

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionPaused    SubscriptionStatus = "paused"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

type Subscription struct {
	BaseModel
	TenantScoped

	ClientID        uuid.UUID          `gorm:"type:uuid;not null;index" json:"client_id"`
	Name            string             `gorm:"size:255;not null" json:"name"`
	AmountHT        float64            `gorm:"not null" json:"amount_ht"`
	BillingCycle    BillingCycle       `gorm:"size:20;not null;default:'monthly'" json:"billing_cycle"`
	Status          SubscriptionStatus `gorm:"size:20;not null;default:'active';index" json:"status"`
	NextBillingDate *time.Time         `gorm:"index" json:"next_billing_date,omitempty"`

	Client *Client `gorm:"foreignKey:ClientID" json:"client,omitempty"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}

// MonthlyAmount normalises the subscription to a monthly recurring amount
func (s *Subscription) MonthlyAmount() float64 {
	switch s.BillingCycle {
	case CycleQuarterly:
		return s.AmountHT / 3
	case CycleYearly:
		return s.AmountHT / 12
	default:
		return s.AmountHT
	}
}

type Domain struct {
	BaseModel
	TenantScoped

	ClientID  *uuid.UUID `gorm:"type:uuid;index" json:"client_id,omitempty"`
	Name      string     `gorm:"size:255;not null;index" json:"name"`
	Registrar string     `gorm:"size:50" json:"registrar,omitempty"`
	ExpiresAt *time.Time `gorm:"index" json:"expires_at,omitempty"`
	AutoRenew bool       `gorm:"default:false" json:"auto_renew"`

	Client *Client `gorm:"foreignKey:ClientID" json:"client,omitempty"`
}

func (Domain) TableName() string {
	return "domains"
}

type ContractStatus string

const (
	ContractDraft     ContractStatus = "draft"
	ContractSent      ContractStatus = "sent"
	ContractSigned    ContractStatus = "signed"
	ContractCancelled ContractStatus = "cancelled"
)

type Contract struct {
	BaseModel
	TenantScoped

	ClientID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"client_id"`
	Title     string         `gorm:"size:255;not null" json:"title"`
	Status    ContractStatus `gorm:"size:20;not null;default:'draft';index" json:"status"`
	AmountHT  float64        `gorm:"default:0" json:"amount_ht"`
	StartDate *time.Time     `json:"start_date,omitempty"`
	EndDate   *time.Time     `json:"end_date,omitempty"`
	SignedAt  *time.Time     `json:"signed_at,omitempty"`

	// SignatureRequestID and SignatureURL come from DocuSeal
	SignatureRequestID string `gorm:"size:100" json:"signature_request_id,omitempty"`
	SignatureURL       string `gorm:"size:500" json:"signature_url,omitempty"`

	Client *Client `gorm:"foreignKey:ClientID" json:"client,omitempty"`
}

func (Contract) TableName() string {
	return "contracts"
}
