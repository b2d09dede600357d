package bot

import (
	"context"
	"fmt"
	"strconv"

	"crm-gin/internal/cache"
	"crm-gin/internal/models"
	"crm-gin/internal/repositories"

	"github.com/google/uuid"
)

// ===========================================================================
// ConversationMemory
// The rolling history of a chat lives in the database; recent chats are
// mirrored in a bounded TTL cache so a busy chat does not reload it on
// every message.
// ===========================================================================

// DefaultMaxHistory applies when the configured cap is not positive
const DefaultMaxHistory = 20

type ConversationMemory struct {
	repo  repositories.TelegramConversationRepository
	cache *cache.TTLCache[*models.TelegramConversation]
	clock cache.Clock
	max   int
}

func NewConversationMemory(repo repositories.TelegramConversationRepository, c *cache.TTLCache[*models.TelegramConversation], clock cache.Clock, maxHistory int) *ConversationMemory {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	if clock == nil {
		clock = cache.SystemClock
	}
	return &ConversationMemory{repo: repo, cache: c, clock: clock, max: maxHistory}
}

func chatKey(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

func (m *ConversationMemory) load(ctx context.Context, tenantID uuid.UUID, chatID int64) (*models.TelegramConversation, error) {
	conv, err := m.cache.GetOrLoad(chatKey(chatID), func() (*models.TelegramConversation, error) {
		conv, err := m.repo.FindByChatID(ctx, chatID)
		if err != nil {
			if repositories.IsNotFound(err) {
				conv = models.NewTelegramConversation(tenantID, chatID)
				conv.LastActivity = m.clock.Now()
				return conv, nil
			}
			return nil, fmt.Errorf("load conversation: %w", err)
		}
		return conv, nil
	})
	if err != nil {
		return nil, err
	}
	// a chat moved to another tenant starts over
	if conv.TenantID != tenantID {
		moved := *conv
		moved.TenantID = tenantID
		moved.History = models.ChatHistory{}
		return &moved, nil
	}
	return conv, nil
}

// History returns a copy of the stored turns, oldest first
func (m *ConversationMemory) History(ctx context.Context, tenantID uuid.UUID, chatID int64) (models.ChatHistory, error) {
	conv, err := m.load(ctx, tenantID, chatID)
	if err != nil {
		return nil, err
	}
	out := make(models.ChatHistory, len(conv.History))
	copy(out, conv.History)
	return out, nil
}

// Append adds turns, keeps only the newest max of them and persists
func (m *ConversationMemory) Append(ctx context.Context, tenantID uuid.UUID, chatID int64, turns ...models.ChatTurn) error {
	conv, err := m.load(ctx, tenantID, chatID)
	if err != nil {
		return err
	}

	history := append(append(models.ChatHistory{}, conv.History...), turns...)
	if len(history) > m.max {
		history = history[len(history)-m.max:]
	}

	updated := *conv
	updated.History = history
	updated.LastActivity = m.clock.Now()
	if err := m.repo.Save(ctx, &updated); err != nil {
		m.cache.Delete(chatKey(chatID))
		return fmt.Errorf("save conversation: %w", err)
	}
	m.cache.Set(chatKey(chatID), &updated)
	return nil
}

// Reset forgets the chat
func (m *ConversationMemory) Reset(ctx context.Context, chatID int64) error {
	m.cache.Delete(chatKey(chatID))
	if err := m.repo.DeleteByChatID(ctx, chatID); err != nil {
		return fmt.Errorf("reset conversation: %w", err)
	}
	return nil
}
