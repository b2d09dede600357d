package models

import "github.com/google/uuid"

// DocumentSequence is the last number handed out for a document kind in a
// tenant and year. The row is locked by the upsert that increments it.
type DocumentSequence struct {
	TenantID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Kind     string    `gorm:"size:20;primaryKey"`
	Year     int       `gorm:"primaryKey;autoIncrement:false"`
	Value    int64     `gorm:"not null"`
}

func (DocumentSequence) TableName() string {
	return "document_sequences"
}
