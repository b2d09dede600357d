package channel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// MaxMessageLength is the Bot API limit for one sendMessage text
const MaxMessageLength = 4096

// ===========================================================================
// Telegram Bot API client
// ===========================================================================

type TelegramClient struct {
	http    *resty.Client
	baseURL string
	logger  *zap.Logger
}

type apiResponse[T any] struct {
	OK          bool   `json:"ok"`
	Result      T      `json:"result"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

type fileInfo struct {
	FileID   string `json:"file_id"`
	FilePath string `json:"file_path"`
	FileSize int64  `json:"file_size"`
}

type sendMessageRequest struct {
	ChatID                int64  `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview,omitempty"`
}

func NewTelegramClient(baseURL string, timeout time.Duration, logger *zap.Logger) *TelegramClient {
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &TelegramClient{
		http:    resty.New().SetTimeout(timeout),
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

func (c *TelegramClient) methodURL(token, method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, token, method)
}

func call[T any](ctx context.Context, c *TelegramClient, token, method string, req *resty.Request) (T, error) {
	var out apiResponse[T]
	resp, err := req.SetContext(ctx).SetResult(&out).SetError(&out).Post(c.methodURL(token, method))
	if err != nil {
		return out.Result, fmt.Errorf("telegram %s: %w", method, redact(err, token))
	}
	if resp.IsError() || !out.OK {
		return out.Result, &APIError{Method: method, Code: out.ErrorCode, Description: out.Description}
	}
	return out.Result, nil
}

// APIError is a Bot API error reply
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// redactedError hides the bot token that transport errors echo through the
// request URL
type redactedError struct {
	err   error
	token string
}

func redact(err error, token string) error {
	if err == nil || token == "" {
		return err
	}
	return &redactedError{err: err, token: token}
}

func (e *redactedError) Error() string {
	return strings.ReplaceAll(e.err.Error(), e.token, "<token>")
}

func (e *redactedError) Unwrap() error { return e.err }

func isParseError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == 400 && strings.Contains(apiErr.Description, "parse entities")
}

// SendMessage splits text into Bot API sized chunks. Each chunk is sent as
// Markdown first and resent as plain text when Telegram rejects the markup.
func (c *TelegramClient) SendMessage(ctx context.Context, token string, chatID int64, text string) error {
	for _, chunk := range SplitMessage(text, MaxMessageLength) {
		_, err := call[map[string]any](ctx, c, token, "sendMessage",
			c.http.R().SetBody(sendMessageRequest{ChatID: chatID, Text: chunk, ParseMode: "Markdown", DisableWebPagePreview: true}))
		if isParseError(err) {
			c.logger.Debug("markdown rejected, resending as plain text", zap.Int64("chat_id", chatID))
			_, err = call[map[string]any](ctx, c, token, "sendMessage",
				c.http.R().SetBody(sendMessageRequest{ChatID: chatID, Text: chunk, DisableWebPagePreview: true}))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *TelegramClient) SendChatAction(ctx context.Context, token string, chatID int64, action string) error {
	_, err := call[bool](ctx, c, token, "sendChatAction",
		c.http.R().SetBody(map[string]any{"chat_id": chatID, "action": action}))
	return err
}

func (c *TelegramClient) SendDocument(ctx context.Context, token string, chatID int64, filename string, data []byte, caption string) error {
	req := c.http.R().
		SetFormData(map[string]string{"chat_id": fmt.Sprint(chatID), "caption": caption}).
		SetFileReader("document", filename, bytes.NewReader(data))
	_, err := call[map[string]any](ctx, c, token, "sendDocument", req)
	return err
}

func (c *TelegramClient) DownloadFile(ctx context.Context, token, fileID string) ([]byte, string, error) {
	info, err := call[fileInfo](ctx, c, token, "getFile",
		c.http.R().SetBody(map[string]string{"file_id": fileID}))
	if err != nil {
		return nil, "", err
	}
	resp, err := c.http.R().SetContext(ctx).Get(fmt.Sprintf("%s/file/bot%s/%s", c.baseURL, token, info.FilePath))
	if err != nil {
		return nil, "", fmt.Errorf("telegram download: %w", redact(err, token))
	}
	if resp.IsError() {
		return nil, "", fmt.Errorf("telegram download: status %d", resp.StatusCode())
	}
	return resp.Body(), info.FilePath, nil
}

// SplitMessage cuts text into chunks of at most limit runes, preferring to
// break on a newline in the second half of a chunk.
func SplitMessage(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	var chunks []string
	runes := []rune(text)
	for len(runes) > limit {
		cut := limit
		for i := limit - 1; i > limit/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}
