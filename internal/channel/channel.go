// Package channel carries the Telegram bot transport: webhook update
// decoding on the way in and Bot API calls on the way out.
package channel

import (
	"context"
	"strings"
	"time"
)

// ===========================================================================
// Inbound
// ===========================================================================

// Update is the subset of a Telegram webhook update the assistant reads
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

type Message struct {
	MessageID int64       `json:"message_id"`
	From      *User       `json:"from,omitempty"`
	Chat      Chat        `json:"chat"`
	Date      int64       `json:"date"`
	Text      string      `json:"text,omitempty"`
	Caption   string      `json:"caption,omitempty"`
	Voice     *Voice      `json:"voice,omitempty"`
	Audio     *Voice      `json:"audio,omitempty"`
	Photo     []PhotoSize `json:"photo,omitempty"`
	Document  *Document   `json:"document,omitempty"`
}

type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username,omitempty"`
}

type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type Voice struct {
	FileID   string `json:"file_id"`
	Duration int    `json:"duration"`
	MimeType string `json:"mime_type,omitempty"`
}

type PhotoSize struct {
	FileID   string `json:"file_id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileSize int    `json:"file_size,omitempty"`
}

type Document struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

// ContentType of an inbound message
type ContentType string

const (
	ContentText  ContentType = "text"
	ContentVoice ContentType = "voice"
	ContentPhoto ContentType = "photo"
)

// InboundMessage is the normalized form handed to the assistant
type InboundMessage struct {
	UpdateID    int64
	ChatID      int64
	SenderID    int64
	SenderName  string
	ContentType ContentType
	Text        string
	// FileID is the voice note or largest photo to download
	FileID    string
	Timestamp time.Time
}

// IsCommand reports whether the text is a bot command such as /start
func (m *InboundMessage) IsCommand() bool {
	return m.ContentType == ContentText && strings.HasPrefix(m.Text, "/")
}

// Command returns the lowercased command without its @bot suffix
func (m *InboundMessage) Command() string {
	if !m.IsCommand() {
		return ""
	}
	cmd := strings.Fields(m.Text)[0]
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd)
}

// Normalize turns an update into an InboundMessage. ok is false for
// updates the assistant ignores (edits, stickers, channel posts...).
func Normalize(u *Update) (msg *InboundMessage, ok bool) {
	if u == nil || u.Message == nil || u.Message.From == nil {
		return nil, false
	}
	m := u.Message
	msg = &InboundMessage{
		UpdateID:   u.UpdateID,
		ChatID:     m.Chat.ID,
		SenderID:   m.From.ID,
		SenderName: m.From.FirstName,
		Timestamp:  time.Unix(m.Date, 0),
	}

	switch {
	case m.Voice != nil:
		msg.ContentType = ContentVoice
		msg.FileID = m.Voice.FileID
	case m.Audio != nil:
		msg.ContentType = ContentVoice
		msg.FileID = m.Audio.FileID
	case len(m.Photo) > 0:
		msg.ContentType = ContentPhoto
		msg.FileID = largestPhoto(m.Photo).FileID
		msg.Text = m.Caption
	case m.Document != nil && strings.HasPrefix(m.Document.MimeType, "image/"):
		// images sent uncompressed arrive as documents
		msg.ContentType = ContentPhoto
		msg.FileID = m.Document.FileID
		msg.Text = m.Caption
	case strings.TrimSpace(m.Text) != "":
		msg.ContentType = ContentText
		msg.Text = strings.TrimSpace(m.Text)
	default:
		return nil, false
	}
	return msg, true
}

func largestPhoto(sizes []PhotoSize) PhotoSize {
	best := sizes[0]
	for _, s := range sizes[1:] {
		if s.Width*s.Height > best.Width*best.Height {
			best = s
		}
	}
	return best
}

// ===========================================================================
// Outbound
// ===========================================================================

// Messenger sends to Telegram on behalf of a tenant bot token
type Messenger interface {
	SendMessage(ctx context.Context, token string, chatID int64, text string) error
	SendChatAction(ctx context.Context, token string, chatID int64, action string) error
	SendDocument(ctx context.Context, token string, chatID int64, filename string, data []byte, caption string) error
	// DownloadFile resolves a file id and returns its bytes and Telegram path
	DownloadFile(ctx context.Context, token, fileID string) ([]byte, string, error)
}

// KeepTyping sends the "typing" action every interval until stop is called
// or ctx is done. The first action is sent immediately.
func KeepTyping(ctx context.Context, m Messenger, token string, chatID int64, interval time.Duration) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			_ = m.SendChatAction(ctx, token, chatID, "typing")
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
