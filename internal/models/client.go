package models

import "strings"

// ===========================================================================
// Client
// A company or person the tenant does business with
// ===========================================================================

type ClientStatus string

const (
	ClientProspect ClientStatus = "prospect"
	ClientActive   ClientStatus = "active"
	ClientInactive ClientStatus = "inactive"
)

type Client struct {
	BaseModel
	TenantScoped

	CompanyName      string       `gorm:"size:255;not null;index" json:"company_name"`
	ContactFirstName string       `gorm:"size:100" json:"contact_first_name,omitempty"`
	ContactLastName  string       `gorm:"size:100" json:"contact_last_name,omitempty"`
	Email            string       `gorm:"size:255" json:"email,omitempty"`
	Phone            string       `gorm:"size:50" json:"phone,omitempty"`
	Address          string       `gorm:"size:255" json:"address,omitempty"`
	PostalCode       string       `gorm:"size:20" json:"postal_code,omitempty"`
	City             string       `gorm:"size:100" json:"city,omitempty"`
	Country          string       `gorm:"size:100;default:'France'" json:"country,omitempty"`
	SIRET            string       `gorm:"size:20" json:"siret,omitempty"`
	VATNumber        string       `gorm:"size:30" json:"vat_number,omitempty"`
	Status           ClientStatus `gorm:"size:20;not null;default:'prospect';index" json:"status"`
}

func (Client) TableName() string {
	return "clients"
}

// ContactName joins first and last name of the contact person
func (c *Client) ContactName() string {
	return strings.TrimSpace(c.ContactFirstName + " " + c.ContactLastName)
}

// DisplayName is the company name, or the contact name for individuals
func (c *Client) DisplayName() string {
	if c.CompanyName != "" {
		return c.CompanyName
	}
	return c.ContactName()
}

func IsValidClientStatus(s string) bool {
	switch ClientStatus(s) {
	case ClientProspect, ClientActive, ClientInactive:
		return true
	}
	return false
}
