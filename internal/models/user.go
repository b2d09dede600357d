package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ===========================================================================
// User
// Staff account of a tenant (not a CRM client)
// ===========================================================================

type UserRole string

const (
	RoleOwner  UserRole = "owner"
	RoleAdmin  UserRole = "admin"
	RoleMember UserRole = "member"
)

type User struct {
	BaseModel
	TenantScoped

	Email        string `gorm:"size:255;not null;uniqueIndex" json:"email"`
	PasswordHash string `gorm:"size:255;not null" json:"-"`

	// RefreshTokenHash is the SHA256 of the current refresh token, nil when logged out
	RefreshTokenHash *string `gorm:"size:255" json:"-"`

	// ResetTokenHash backs the single-use password reset link
	ResetTokenHash      *string    `gorm:"size:255;index" json:"-"`
	ResetTokenExpiresAt *time.Time `json:"-"`

	Name       string     `gorm:"size:255;not null" json:"name"`
	Role       UserRole   `gorm:"size:50;not null;default:'member'" json:"role"`
	IsActive   bool       `gorm:"default:true" json:"is_active"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`

	Tenant *Tenant `gorm:"foreignKey:TenantID" json:"tenant,omitempty"`
}

func (User) TableName() string {
	return "users"
}

// SetPassword hashes password with bcrypt default cost
func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleOwner || u.Role == RoleAdmin
}

func (u *User) UpdateLastSeen() {
	now := time.Now()
	u.LastSeenAt = &now
}
