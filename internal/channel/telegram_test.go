package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"court"}, SplitMessage("court", 10))

	long := strings.Repeat("a", 9000)
	chunks := SplitMessage(long, MaxMessageLength)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 4096)
	assert.Equal(t, long, strings.Join(chunks, ""))

	text := strings.Repeat("x", 7) + "\n" + strings.Repeat("y", 5)
	assert.Equal(t, []string{strings.Repeat("x", 7) + "\n", strings.Repeat("y", 5)}, SplitMessage(text, 10))
}

func TestNormalize(t *testing.T) {
	var u Update
	require.NoError(t, json.Unmarshal([]byte(`{"update_id":1,"message":{"message_id":5,"from":{"id":42,"first_name":"Paul"},"chat":{"id":42,"type":"private"},"date":1700000000,"text":"/start@crm_bot"}}`), &u))
	msg, ok := Normalize(&u)
	require.True(t, ok)
	assert.Equal(t, int64(42), msg.SenderID)
	assert.True(t, msg.IsCommand())
	assert.Equal(t, "/start", msg.Command())

	photo := &Update{Message: &Message{From: &User{ID: 1}, Caption: "ticket", Photo: []PhotoSize{{FileID: "small", Width: 90, Height: 90}, {FileID: "big", Width: 800, Height: 600}}}}
	msg, ok = Normalize(photo)
	require.True(t, ok)
	assert.Equal(t, ContentPhoto, msg.ContentType)
	assert.Equal(t, "big", msg.FileID)
	assert.Equal(t, "ticket", msg.Text)

	doc := &Update{Message: &Message{From: &User{ID: 1}, Document: &Document{FileID: "scan", MimeType: "image/png"}}}
	msg, ok = Normalize(doc)
	require.True(t, ok)
	assert.Equal(t, ContentPhoto, msg.ContentType)
	assert.Equal(t, "scan", msg.FileID)

	_, ok = Normalize(&Update{Message: &Message{From: &User{ID: 1}, Document: &Document{FileID: "f", MimeType: "application/pdf"}}})
	assert.False(t, ok)
	_, ok = Normalize(&Update{Message: &Message{From: &User{ID: 1}}})
	assert.False(t, ok)
	_, ok = Normalize(&Update{})
	assert.False(t, ok)
}

func TestTelegramClient_MarkdownFallback(t *testing.T) {
	var mu sync.Mutex
	var bodies []sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		var req sendMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		bodies = append(bodies, req)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if req.ParseMode == "Markdown" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: can't parse entities: Can't find end of the entity"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	}))
	defer srv.Close()

	c := NewTelegramClient(srv.URL, 5*time.Second, zap.NewNop())
	require.NoError(t, c.SendMessage(context.Background(), "TOKEN", 7, "Facture *FAC_2026"))

	require.Len(t, bodies, 2)
	assert.Equal(t, "Markdown", bodies[0].ParseMode)
	assert.Empty(t, bodies[1].ParseMode)
	assert.Equal(t, int64(7), bodies[1].ChatID)
}

func TestTelegramClient_DownloadFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/botTOKEN/getFile":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"ok":true,"result":{"file_id":"f1","file_path":"voice/file_1.oga"}}`))
		case "/file/botTOKEN/voice/file_1.oga":
			_, _ = w.Write([]byte("OGGDATA"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	data, path, err := NewTelegramClient(srv.URL, 5*time.Second, zap.NewNop()).DownloadFile(context.Background(), "TOKEN", "f1")
	require.NoError(t, err)
	assert.Equal(t, "OGGDATA", string(data))
	assert.Equal(t, "voice/file_1.oga", path)
}

type countingMessenger struct {
	Messenger
	actions int32
}

func (m *countingMessenger) SendChatAction(context.Context, string, int64, string) error {
	atomic.AddInt32(&m.actions, 1)
	return nil
}

func TestKeepTyping(t *testing.T) {
	m := &countingMessenger{}
	stop := KeepTyping(context.Background(), m, "TOKEN", 1, 10*time.Millisecond)
	time.Sleep(35 * time.Millisecond)
	stop()
	n := atomic.LoadInt32(&m.actions)
	assert.GreaterOrEqual(t, n, int32(2))

	time.Sleep(25 * time.Millisecond)
	assert.Equal(t, n, atomic.LoadInt32(&m.actions))
}

func TestTelegramClient_TransportErrorHidesToken(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewTelegramClient(url, time.Second, zap.NewNop())
	_, _, err := c.DownloadFile(context.Background(), "123456:SECRET-TOKEN", "file-1")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRET-TOKEN")
	assert.Contains(t, err.Error(), "<token>")
}
