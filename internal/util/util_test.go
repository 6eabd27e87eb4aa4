// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_VerifyPassword_RoundTrip(t *testing.T) {
	cred, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.Len(t, cred.Salt, saltLength*2)
	assert.NotEmpty(t, cred.DerivedKey)

	assert.True(t, VerifyPassword(cred, "correct horse battery staple"))
	assert.False(t, VerifyPassword(cred, "wrong password"))
}

func TestHashPassword_DistinctSaltsPerCall(t *testing.T) {
	a, err := HashPassword("same-password")
	require.NoError(t, err)
	b, err := HashPassword("same-password")
	require.NoError(t, err)

	assert.NotEqual(t, a.Salt, b.Salt)
	assert.NotEqual(t, a.DerivedKey, b.DerivedKey)
}

func TestVerifyPassword_MalformedCredentialFails(t *testing.T) {
	assert.False(t, VerifyPassword(Credential{Salt: "not-hex", DerivedKey: "also-not-hex"}, "anything"))
}

func TestURLSafeUUID_128BitEntropyNoPadding(t *testing.T) {
	id, err := URLSafeUUID()
	require.NoError(t, err)
	assert.NotContains(t, id, "=")
	assert.NotContains(t, id, "+")
	assert.NotContains(t, id, "/")

	other, err := URLSafeUUID()
	require.NoError(t, err)
	assert.NotEqual(t, id, other)
}

func TestNewHexID_Is32Hex(t *testing.T) {
	id, err := NewHexID()
	require.NoError(t, err)
	assert.Len(t, id, 32)
	for _, r := range id {
		assert.True(t, (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f'))
	}
}

func TestHashToken_Deterministic(t *testing.T) {
	assert.Equal(t, HashToken("plaintext-token"), HashToken("plaintext-token"))
	assert.NotEqual(t, HashToken("a"), HashToken("b"))
}

func TestGetSessions_And_GetExpiredSessions(t *testing.T) {
	now := time.Now()
	sessions := map[string]SessionRecord{
		"fresh":   {Expires: now.Add(time.Hour)},
		"expired": {Expires: now.Add(-time.Hour)},
	}

	assert.ElementsMatch(t, []string{"fresh", "expired"}, GetSessions(sessions))
	assert.Equal(t, []string{"expired"}, GetExpiredSessions(sessions, now))
}

func TestGetDBURL(t *testing.T) {
	withCreds := GetDBURL(DBServerConfig{Protocol: "postgres", Host: "db:5432", User: "auth", Password: "secret"})
	assert.Equal(t, "postgres://auth:secret@db:5432", withCreds)

	withoutCreds := GetDBURL(DBServerConfig{Protocol: "postgres", Host: "db:5432"})
	assert.Equal(t, "postgres://db:5432", withoutCreds)
}

func TestAddProvidersToDesignDoc(t *testing.T) {
	dd := &DesignDoc{ID: "_design/auth"}
	AddProvidersToDesignDoc([]string{"google", "github"}, dd)

	for _, view := range []string{"auth/username", "auth/email", "auth/phone", "auth/emailUsername", "auth/passwordReset", "auth/verifyEmail", "auth/session", "auth/google", "auth/github"} {
		assert.Contains(t, dd.Views, view)
	}
}
