package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExternal_MessageHidesCause(t *testing.T) {
	err := External("OpenAI", errors.New("status 401: Incorrect API key provided: sk-proj-abcd1234"))

	assert.True(t, errors.Is(err, ErrExternal))
	assert.Equal(t, http.StatusBadGateway, StatusCode(err))

	msg := Message(err, "fallback")
	assert.Contains(t, msg, "OpenAI")
	assert.NotContains(t, msg, "sk-proj")

	// logs keep the cause
	assert.Contains(t, err.Error(), "status 401")
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "Client introuvable", Message(New(ErrNotFound, "Client introuvable"), "fallback"))
	assert.Equal(t, "fallback", Message(errors.New("raw"), "fallback"))
	assert.Equal(t, "Client introuvable", New(ErrNotFound, "Client introuvable").Error())
}
