package repositories

import (
	"context"

	"crm-gin/internal/models"

	"gorm.io/gorm"
)

type telegramConversationRepo struct {
	db *gorm.DB
}

func NewTelegramConversationRepository(db *gorm.DB) TelegramConversationRepository {
	return &telegramConversationRepo{db: db}
}

func (r *telegramConversationRepo) FindByChatID(ctx context.Context, chatID int64) (*models.TelegramConversation, error) {
	var conv models.TelegramConversation
	if err := r.db.WithContext(ctx).Where("chat_id = ?", chatID).First(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

// Save inserts the conversation on first use, then updates it in place
func (r *telegramConversationRepo) Save(ctx context.Context, conv *models.TelegramConversation) error {
	return r.db.WithContext(ctx).Save(conv).Error
}

// DeleteByChatID hard deletes so the unique chat_id can be reused
func (r *telegramConversationRepo) DeleteByChatID(ctx context.Context, chatID int64) error {
	return r.db.WithContext(ctx).Unscoped().Where("chat_id = ?", chatID).Delete(&models.TelegramConversation{}).Error
}
