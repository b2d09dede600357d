package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ===========================================================================
// TelegramConversation
// Rolling assistant history for one Telegram chat
// ===========================================================================

// ChatTurn is one user or assistant message kept in history
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatHistory is stored as a JSON array
type ChatHistory []ChatTurn

func (h ChatHistory) Value() (driver.Value, error) {
	if h == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(h)
}

func (h *ChatHistory) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*h = ChatHistory{}
		return nil
	case []byte:
		return json.Unmarshal(v, h)
	case string:
		return json.Unmarshal([]byte(v), h)
	default:
		return fmt.Errorf("unsupported chat history type %T", value)
	}
}

type TelegramConversation struct {
	BaseModel
	TenantScoped

	ChatID       int64       `gorm:"not null;uniqueIndex" json:"chat_id"`
	History      ChatHistory `gorm:"type:jsonb;default:'[]'" json:"history"`
	LastActivity time.Time   `gorm:"not null;index" json:"last_activity"`
}

func (TelegramConversation) TableName() string {
	return "telegram_conversations"
}

// NewTelegramConversation starts an empty history for chatID
func NewTelegramConversation(tenantID uuid.UUID, chatID int64) *TelegramConversation {
	return &TelegramConversation{
		TenantScoped: TenantScoped{TenantID: tenantID},
		ChatID:       chatID,
		History:      ChatHistory{},
		LastActivity: time.Now(),
	}
}
