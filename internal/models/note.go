package models

import (
	"time"

	"github.com/google/uuid"
)

// ===========================================================================
// Note
// Free text attached to any entity through NoteLink. A note of type todo
// can be ticked off; ReminderAt turns it into a reminder.
// ===========================================================================

type NoteType string

const (
	NoteTypeNote NoteType = "note"
	NoteTypeTodo NoteType = "todo"
)

type Note struct {
	BaseModel
	TenantScoped

	Content    string     `gorm:"type:text;not null" json:"content"`
	Type       NoteType   `gorm:"size:10;not null;default:'note';index" json:"type"`
	ReminderAt *time.Time `gorm:"index" json:"reminder_at,omitempty"`
	IsDone     bool       `gorm:"default:false" json:"is_done"`

	// CreatedBy is nil when the assistant wrote the note
	CreatedBy *uuid.UUID `gorm:"type:uuid" json:"created_by,omitempty"`

	Links []NoteLink `gorm:"foreignKey:NoteID" json:"links,omitempty"`
}

func (Note) TableName() string {
	return "notes"
}

// Entity types a note can be linked to
const (
	EntityClient   = "client"
	EntityInvoice  = "invoice"
	EntityQuote    = "quote"
	EntityProject  = "project"
	EntityTicket   = "ticket"
	EntityContract = "contract"
)

type NoteLink struct {
	BaseModel

	NoteID     uuid.UUID `gorm:"type:uuid;not null;index" json:"note_id"`
	EntityType string    `gorm:"size:30;not null;index:idx_note_links_entity" json:"entity_type"`
	EntityID   uuid.UUID `gorm:"type:uuid;not null;index:idx_note_links_entity" json:"entity_id"`
}

func (NoteLink) TableName() string {
	return "note_links"
}
