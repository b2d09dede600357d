package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ===========================================================================
// BaseModel
// Shared columns: UUID primary key, timestamps, soft delete
// ===========================================================================

type BaseModel struct {
	// ID is generated in BeforeCreate so both postgres and sqlite work
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	CreatedAt time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate assigns a UUID when none was set
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

func (b *BaseModel) GetID() uuid.UUID {
	return b.ID
}

func (b *BaseModel) IsDeleted() bool {
	return b.DeletedAt.Valid
}

// TenantScoped is embedded by every business entity
type TenantScoped struct {
	TenantID uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`
}
