// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package docstore

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractViewKey_TopLevelFields(t *testing.T) {
	data, _ := json.Marshal(map[string]any{
		"username":      "alice",
		"email":         "alice@example.com",
		"phone":         "+15551234567",
		"emailUsername": "alice@example.com",
	})

	for view, want := range map[string]string{
		"auth/username":      "alice",
		"auth/email":         "alice@example.com",
		"auth/phone":         "+15551234567",
		"auth/emailUsername": "alice@example.com",
	} {
		got, ok := ExtractViewKey(view, data)
		assert.True(t, ok, view)
		assert.Equal(t, want, got, view)
	}
}

func TestExtractViewKey_ProviderAndTokenFields(t *testing.T) {
	data, _ := json.Marshal(map[string]any{
		"github":          map[string]any{"profile": map[string]any{"id": "gh-42"}},
		"forgotPassword":  map[string]any{"token": "reset-abc"},
		"unverifiedEmail": map[string]any{"token": "verify-xyz"},
	})

	got, ok := ExtractViewKey("auth/github", data)
	assert.True(t, ok)
	assert.Equal(t, "gh-42", got)

	got, ok = ExtractViewKey("auth/passwordReset", data)
	assert.True(t, ok)
	assert.Equal(t, "reset-abc", got)

	got, ok = ExtractViewKey("auth/verifyEmail", data)
	assert.True(t, ok)
	assert.Equal(t, "verify-xyz", got)
}

func TestExtractViewKey_MissingFieldsAndUnknownView(t *testing.T) {
	data, _ := json.Marshal(map[string]any{"username": "alice"})

	_, ok := ExtractViewKey("auth/email", data)
	assert.False(t, ok)

	_, ok = ExtractViewKey("not-an-auth-view", data)
	assert.False(t, ok)
}

func TestHasSessionKey(t *testing.T) {
	data, _ := json.Marshal(map[string]any{
		"session": map[string]any{
			"session-key-1": map[string]any{"provider": "local"},
		},
	})

	assert.True(t, HasSessionKey(data, "session-key-1"))
	assert.False(t, HasSessionKey(data, "no-such-key"))

	empty, _ := json.Marshal(map[string]any{})
	assert.False(t, HasSessionKey(empty, "session-key-1"))
}
