// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package userservice_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira/internal/platform/apperr"
	"github.com/taibuivan/yomira/internal/userservice"
)

func createTestUser(t *testing.T, h *testHarness, id, password string) {
	t.Helper()
	_, err := h.service.Create(context.Background(), map[string]any{
		"username": id, "password": password, "confirmPassword": password,
	}, userservice.Request{})
	require.NoError(t, err)
}

func TestCreateSession_RoundTripsTokenAndGrantsDBAuth(t *testing.T) {
	h := newHarness(baseConfig())
	ctx := context.Background()
	createTestUser(t, h, "gina", "correcthorsebattery")

	user, token, err := h.service.CreateSession(ctx, "gina", "correcthorsebattery", userservice.Request{IP: "10.0.0.1"})
	require.NoError(t, err)

	assert.Equal(t, "gina", token.UserID)
	assert.Contains(t, user.Session, token.Key)
	assert.True(t, h.authStore.hasCredential(token.Key))

	stored, err := h.sessions.FetchToken(ctx, token.Key)
	require.NoError(t, err)
	assert.Equal(t, token.Password, stored.Password)
}

func TestCreateSession_WrongPasswordFails(t *testing.T) {
	h := newHarness(baseConfig())
	ctx := context.Background()
	createTestUser(t, h, "harry", "correcthorsebattery")

	_, _, err := h.service.CreateSession(ctx, "harry", "wrong-password", userservice.Request{})
	require.Error(t, err)
	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, "failed_login", ae.Key)
}

func TestCreateSession_LocksAfterMaxFailedLogins(t *testing.T) {
	cfg := baseConfig()
	cfg.Security.MaxFailedLogins = 2
	cfg.Security.LockoutTime = 300
	h := newHarness(cfg)
	ctx := context.Background()
	createTestUser(t, h, "irene", "correcthorsebattery")

	_, _, err := h.service.CreateSession(ctx, "irene", "wrong", userservice.Request{})
	require.Error(t, err)
	assert.Equal(t, "failed_login", apperr.As(err).Key)

	_, _, err = h.service.CreateSession(ctx, "irene", "wrong", userservice.Request{})
	require.Error(t, err)
	assert.Equal(t, "locked", apperr.As(err).Key)

	_, _, err = h.service.CreateSession(ctx, "irene", "correcthorsebattery", userservice.Request{})
	require.Error(t, err, "a correct password must not bypass an active lockout")
	assert.Equal(t, "locked", apperr.As(err).Key)
}

func TestLogoutSession_RevokesTokenAndDBAuthGrants(t *testing.T) {
	h := newHarness(baseConfig())
	ctx := context.Background()
	createTestUser(t, h, "jack", "correcthorsebattery")

	_, token, err := h.service.CreateSession(ctx, "jack", "correcthorsebattery", userservice.Request{})
	require.NoError(t, err)

	user, err := h.service.LogoutSession(ctx, "jack", token.Key, userservice.Request{})
	require.NoError(t, err)
	assert.NotContains(t, user.Session, token.Key)

	_, err = h.sessions.FetchToken(ctx, token.Key)
	require.Error(t, err, "logout must delete the token from the session store")
	assert.False(t, h.authStore.hasCredential(token.Key), "logout must remove the DBAuth credential")
}

func TestLogoutUser_RevokesEverySession(t *testing.T) {
	h := newHarness(baseConfig())
	ctx := context.Background()
	createTestUser(t, h, "karen", "correcthorsebattery")

	_, tokenA, err := h.service.CreateSession(ctx, "karen", "correcthorsebattery", userservice.Request{})
	require.NoError(t, err)
	_, tokenB, err := h.service.CreateSession(ctx, "karen", "correcthorsebattery", userservice.Request{})
	require.NoError(t, err)

	user, err := h.service.LogoutUser(ctx, "karen", userservice.Request{})
	require.NoError(t, err)
	assert.Empty(t, user.Session)

	_, err = h.sessions.FetchToken(ctx, tokenA.Key)
	assert.Error(t, err)
	_, err = h.sessions.FetchToken(ctx, tokenB.Key)
	assert.Error(t, err)
}

func TestLogoutOthers_KeepsOnlyNamedSession(t *testing.T) {
	h := newHarness(baseConfig())
	ctx := context.Background()
	createTestUser(t, h, "leo", "correcthorsebattery")

	_, keep, err := h.service.CreateSession(ctx, "leo", "correcthorsebattery", userservice.Request{})
	require.NoError(t, err)
	_, other, err := h.service.CreateSession(ctx, "leo", "correcthorsebattery", userservice.Request{})
	require.NoError(t, err)

	user, err := h.service.LogoutOthers(ctx, "leo", keep.Key, userservice.Request{})
	require.NoError(t, err)
	assert.Contains(t, user.Session, keep.Key)
	assert.NotContains(t, user.Session, other.Key)

	_, err = h.sessions.FetchToken(ctx, other.Key)
	assert.Error(t, err)
	_, err = h.sessions.FetchToken(ctx, keep.Key)
	assert.NoError(t, err)
}

func TestCreateSession_GarbageCollectsExpiredSessionOnLogin(t *testing.T) {
	h := newHarness(baseConfig())
	ctx := context.Background()
	createTestUser(t, h, "mallory", "correcthorsebattery")

	_, stale, err := h.service.CreateSession(ctx, "mallory", "correcthorsebattery", userservice.Request{})
	require.NoError(t, err)
	expireSession(t, h.store, "mallory", stale.Key)

	user, fresh, err := h.service.CreateSession(ctx, "mallory", "correcthorsebattery", userservice.Request{})
	require.NoError(t, err)

	assert.NotContains(t, user.Session, stale.Key, "the expired session must be pruned from the user document")
	assert.Contains(t, user.Session, fresh.Key)

	_, err = h.sessions.FetchToken(ctx, stale.Key)
	assert.Error(t, err, "the expired session's token must be deleted from the session store")
	assert.False(t, h.authStore.hasCredential(stale.Key), "the expired session's DBAuth credential must be revoked")
}

func TestRefreshSession_GarbageCollectsOtherExpiredSession(t *testing.T) {
	h := newHarness(baseConfig())
	ctx := context.Background()
	createTestUser(t, h, "nancy", "correcthorsebattery")

	_, stale, err := h.service.CreateSession(ctx, "nancy", "correcthorsebattery", userservice.Request{})
	require.NoError(t, err)
	_, active, err := h.service.CreateSession(ctx, "nancy", "correcthorsebattery", userservice.Request{})
	require.NoError(t, err)
	expireSession(t, h.store, "nancy", stale.Key)

	user, refreshed, err := h.service.RefreshSession(ctx, "nancy", active.Key, userservice.Request{})
	require.NoError(t, err)

	assert.NotContains(t, user.Session, stale.Key, "refresh must prune the other expired session")
	assert.Contains(t, user.Session, refreshed.Key)
	_, err = h.sessions.FetchToken(ctx, stale.Key)
	assert.Error(t, err)
}
