package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"crm-gin/internal/config"
	apperrors "crm-gin/internal/errors"
	"crm-gin/internal/models"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_TenantKeyWins(t *testing.T) {
	p := NewProvider(config.OpenAIConfig{APIKey: "server", Model: "gpt-4o-mini"})

	c, err := p.ForTenant(models.OpenAISettings{})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", c.Model())

	c2, err := p.ForTenant(models.OpenAISettings{APIKey: "tenant", Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", c2.Model())

	again, _ := p.ForTenant(models.OpenAISettings{})
	assert.Same(t, c, again)
}

func TestProvider_NoKey(t *testing.T) {
	_, err := NewProvider(config.OpenAIConfig{}).ForTenant(models.OpenAISettings{})
	assert.ErrorIs(t, err, apperrors.ErrNotConfigured)
}

func TestOpenAIClient_TranscribeRenamesOga(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/audio/transcriptions"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, header, err := r.FormFile("file")
		require.NoError(t, err)
		assert.Equal(t, "file_1.ogg", header.Filename)
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"Crée une facture pour Dupont"}`))
	}))
	defer srv.Close()

	c := newOpenAIClient("k", srv.URL+"/v1", "gpt-4o-mini", "whisper-1", "gpt-4o-mini")
	text, err := c.Transcribe(context.Background(), "voice/file_1.oga", []byte("OggS"))
	require.NoError(t, err)
	assert.Equal(t, "Crée une facture pour Dupont", text)
}

func TestOpenAIClient_DescribeImageSendsDataURI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)
		parts := req.Messages[0].MultiContent
		require.Len(t, parts, 2)
		assert.True(t, strings.HasPrefix(parts[1].ImageURL.URL, "data:image/png;base64,"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"Un ticket de caisse"}}]}`))
	}))
	defer srv.Close()

	png := []byte("\x89PNG\r\n\x1a\n0000")
	c := newOpenAIClient("k", srv.URL+"/v1", "gpt-4o-mini", "whisper-1", "gpt-4o-mini")
	out, err := c.DescribeImage(context.Background(), "Décris", png)
	require.NoError(t, err)
	assert.Equal(t, "Un ticket de caisse", out)
}
