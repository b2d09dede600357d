package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTelegramSettings_IsAllowed(t *testing.T) {
	open := TelegramSettings{}
	assert.True(t, open.IsAllowed(42))

	restricted := TelegramSettings{AllowedUsers: []int64{42, 7}}
	assert.True(t, restricted.IsAllowed(7))
	assert.False(t, restricted.IsAllowed(99))
}
