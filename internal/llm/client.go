// Package llm wraps the OpenAI API for the assistant: chat completions with
// tools, Whisper transcription and image description.
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"path"
	"sync"

	"crm-gin/internal/config"
	apperrors "crm-gin/internal/errors"
	"crm-gin/internal/models"

	lru "github.com/hashicorp/golang-lru"
	openai "github.com/sashabaranov/go-openai"
)

// Client is what the assistant needs from a language model provider
type Client interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	// Transcribe converts a voice note to text. filename carries the
	// extension Whisper uses to detect the format.
	Transcribe(ctx context.Context, filename string, audio []byte) (string, error)
	// DescribeImage asks the vision model about an image
	DescribeImage(ctx context.Context, prompt string, image []byte) (string, error)
	// Model is the chat model requests should use
	Model() string
}

type openAIClient struct {
	api                *openai.Client
	model              string
	transcriptionModel string
	visionModel        string
}

func newOpenAIClient(apiKey, baseURL, model, transcriptionModel, visionModel string) *openAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &openAIClient{
		api:                openai.NewClientWithConfig(cfg),
		model:              model,
		transcriptionModel: transcriptionModel,
		visionModel:        visionModel,
	}
}

func (c *openAIClient) Model() string { return c.model }

func (c *openAIClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if req.Model == "" {
		req.Model = c.model
	}
	return c.api.CreateChatCompletion(ctx, req)
}

func (c *openAIClient) Transcribe(ctx context.Context, filename string, audio []byte) (string, error) {
	// Telegram voice notes are .oga, which Whisper only accepts as .ogg
	if path.Ext(filename) == ".oga" {
		filename = filename[:len(filename)-4] + ".ogg"
	}
	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.transcriptionModel,
		FilePath: path.Base(filename),
		Reader:   bytes.NewReader(audio),
		Language: "fr",
	})
	if err != nil {
		return "", fmt.Errorf("transcription: %w", err)
	}
	return resp.Text, nil
}

func (c *openAIClient) DescribeImage(ctx context.Context, prompt string, image []byte) (string, error) {
	dataURI := "data:" + http.DetectContentType(image) + ";base64," + base64.StdEncoding.EncodeToString(image)
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.visionModel,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: prompt},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURI, Detail: openai.ImageURLDetailAuto}},
			},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("vision: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("vision: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

// ===========================================================================
// Provider
// ===========================================================================

// Provider hands out a client per tenant. A tenant OpenAI key takes
// precedence over the server key.
type Provider interface {
	ForTenant(settings models.OpenAISettings) (Client, error)
}

type provider struct {
	cfg     config.OpenAIConfig
	mu      sync.Mutex
	clients *lru.Cache
}

func NewProvider(cfg config.OpenAIConfig) Provider {
	clients, _ := lru.New(64)
	return &provider{cfg: cfg, clients: clients}
}

func (p *provider) ForTenant(settings models.OpenAISettings) (Client, error) {
	key, model := p.cfg.APIKey, p.cfg.Model
	if settings.APIKey != "" {
		key = settings.APIKey
	}
	if settings.Model != "" {
		model = settings.Model
	}
	if key == "" {
		return nil, apperrors.New(apperrors.ErrNotConfigured, "Aucune clé OpenAI n'est configurée")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	cacheKey := key + "|" + model
	if c, ok := p.clients.Get(cacheKey); ok {
		return c.(Client), nil
	}
	c := newOpenAIClient(key, p.cfg.BaseURL, model, p.cfg.TranscriptionModel, p.cfg.VisionModel)
	p.clients.Add(cacheKey, c)
	return c, nil
}

// StaticProvider always returns the same client. Tests use it with a fake.
type StaticProvider struct {
	Client Client
}

func (s StaticProvider) ForTenant(models.OpenAISettings) (Client, error) {
	return s.Client, nil
}
