package models

import "github.com/google/uuid"

// ===========================================================================
// Ticket (support request) and its message thread
// ===========================================================================

type TicketStatus string

const (
	TicketOpen     TicketStatus = "open"
	TicketPending  TicketStatus = "pending"
	TicketResolved TicketStatus = "resolved"
	TicketClosed   TicketStatus = "closed"
)

func IsValidTicketStatus(s string) bool {
	switch TicketStatus(s) {
	case TicketOpen, TicketPending, TicketResolved, TicketClosed:
		return true
	}
	return false
}

type Ticket struct {
	BaseModel
	// numbers are unique per tenant
	TenantID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_tickets_tenant_number" json:"tenant_id"`
	Number   string    `gorm:"size:30;not null;uniqueIndex:idx_tickets_tenant_number" json:"number"`

	ClientID uuid.UUID    `gorm:"type:uuid;not null;index" json:"client_id"`
	Subject  string       `gorm:"size:255;not null" json:"subject"`
	Status   TicketStatus `gorm:"size:20;not null;default:'open';index" json:"status"`
	Priority Priority     `gorm:"size:20;not null;default:'normal'" json:"priority"`

	Messages []TicketMessage `gorm:"foreignKey:TicketID" json:"messages,omitempty"`
	Client   *Client         `gorm:"foreignKey:ClientID" json:"client,omitempty"`
}

func (Ticket) TableName() string {
	return "tickets"
}

type AuthorType string

const (
	AuthorClient    AuthorType = "client"
	AuthorStaff     AuthorType = "staff"
	AuthorAssistant AuthorType = "assistant"
)

type TicketMessage struct {
	BaseModel

	TicketID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"ticket_id"`
	AuthorType AuthorType `gorm:"size:20;not null" json:"author_type"`
	Content    string     `gorm:"type:text;not null" json:"content"`
}

func (TicketMessage) TableName() string {
	return "ticket_messages"
}
