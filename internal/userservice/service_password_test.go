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
	"github.com/taibuivan/yomira/internal/util"
)

func TestForgotPassword_StoresHashNotPlaintext(t *testing.T) {
	h := newHarness(baseConfig())
	ctx := context.Background()
	createTestUser(t, h, "mona", "correcthorsebattery")

	_, err := h.service.ChangeEmail(ctx, "mona", "mona@example.com", userservice.Request{})
	require.NoError(t, err)

	user, err := h.service.ForgotPassword(ctx, "mona", userservice.Request{})
	require.NoError(t, err)
	require.NotNil(t, user.ForgotPassword)

	sent, ok := h.mail.last()
	require.True(t, ok)
	plaintext, _ := sent.data["token"].(string)
	require.NotEmpty(t, plaintext)

	assert.NotEqual(t, plaintext, user.ForgotPassword.Token, "the stored token must be a hash, not the mailed plaintext")
	assert.Equal(t, util.HashToken(plaintext), user.ForgotPassword.Token)
}

func TestResetPassword_SucceedsWithCorrectTokenAndRevokesSessions(t *testing.T) {
	h := newHarness(baseConfig())
	ctx := context.Background()
	createTestUser(t, h, "nora", "correcthorsebattery")
	_, err := h.service.ChangeEmail(ctx, "nora", "nora@example.com", userservice.Request{})
	require.NoError(t, err)

	_, _, err = h.service.CreateSession(ctx, "nora", "correcthorsebattery", userservice.Request{})
	require.NoError(t, err)

	_, err = h.service.ForgotPassword(ctx, "nora", userservice.Request{})
	require.NoError(t, err)
	sent, ok := h.mail.last()
	require.True(t, ok)
	plaintext := sent.data["token"].(string)

	user, err := h.service.ResetPassword(ctx, "nora", plaintext, "newcorrecthorsebattery", userservice.Request{})
	require.NoError(t, err)
	assert.Nil(t, user.ForgotPassword)
	assert.Empty(t, user.Session, "a password reset must revoke every outstanding session")

	_, _, err = h.service.CreateSession(ctx, "nora", "newcorrecthorsebattery", userservice.Request{})
	require.NoError(t, err)
}

func TestResetPassword_WrongTokenRejected(t *testing.T) {
	h := newHarness(baseConfig())
	ctx := context.Background()
	createTestUser(t, h, "oscar", "correcthorsebattery")
	_, err := h.service.ChangeEmail(ctx, "oscar", "oscar@example.com", userservice.Request{})
	require.NoError(t, err)

	_, err = h.service.ForgotPassword(ctx, "oscar", userservice.Request{})
	require.NoError(t, err)

	_, err = h.service.ResetPassword(ctx, "oscar", "not-the-real-token", "newcorrecthorsebattery", userservice.Request{})
	require.Error(t, err)
	assert.Equal(t, "invalid_token", apperr.As(err).Key)
}

func TestChangePasswordSecure_RequiresCorrectCurrentPassword(t *testing.T) {
	h := newHarness(baseConfig())
	ctx := context.Background()
	createTestUser(t, h, "paul", "correcthorsebattery")

	_, err := h.service.ChangePasswordSecure(ctx, "paul", "wrong-current", "newcorrecthorsebattery", userservice.Request{})
	require.Error(t, err)
	assert.Equal(t, "invalid_current_password", apperr.As(err).Key)

	_, err = h.service.ChangePasswordSecure(ctx, "paul", "correcthorsebattery", "newcorrecthorsebattery", userservice.Request{})
	require.NoError(t, err)

	_, _, err = h.service.CreateSession(ctx, "paul", "newcorrecthorsebattery", userservice.Request{})
	require.NoError(t, err)
}

func TestChangePasswordSecure_SkipsCurrentPasswordForFederatedOnlyAccount(t *testing.T) {
	h := newHarness(baseConfig())
	ctx := context.Background()

	profile := map[string]any{"id": "gh-secure"}
	social, err := h.service.SocialAuth(ctx, "github", map[string]any{}, profile, userservice.Request{})
	require.NoError(t, err)
	require.Nil(t, social.Local, "an account that only ever signed up via github has no local credential to verify")

	user, err := h.service.ChangePasswordSecure(ctx, social.ID, "", "newcorrecthorsebattery", userservice.Request{})
	require.NoError(t, err, "an account with no local credential must not require a current password")
	require.NotNil(t, user.Local)

	_, _, err = h.service.CreateSession(ctx, social.ID, "newcorrecthorsebattery", userservice.Request{})
	require.NoError(t, err)
}

func TestChangePasswordSecure_LogsOutOtherSessionsButKeepsCaller(t *testing.T) {
	h := newHarness(baseConfig())
	ctx := context.Background()
	createTestUser(t, h, "quentin", "correcthorsebattery")

	_, caller, err := h.service.CreateSession(ctx, "quentin", "correcthorsebattery", userservice.Request{})
	require.NoError(t, err)
	_, other, err := h.service.CreateSession(ctx, "quentin", "correcthorsebattery", userservice.Request{})
	require.NoError(t, err)

	user, err := h.service.ChangePasswordSecure(ctx, "quentin", "correcthorsebattery", "newcorrecthorsebattery", userservice.Request{SessionKey: caller.Key})
	require.NoError(t, err)

	assert.Contains(t, user.Session, caller.Key, "the caller's own session must survive its own password change")
	assert.NotContains(t, user.Session, other.Key, "every other session must be logged out")
	_, err = h.sessions.FetchToken(ctx, other.Key)
	assert.Error(t, err)
}

func TestResetPassword2_ChangesPasswordByUsernameAlone(t *testing.T) {
	h := newHarness(baseConfig())
	ctx := context.Background()
	createTestUser(t, h, "robin", "correcthorsebattery")

	user, err := h.service.ResetPassword2(ctx, "robin", "newcorrecthorsebattery", "newcorrecthorsebattery", userservice.Request{})
	require.NoError(t, err)
	assert.Equal(t, "robin", user.ID)

	_, _, err = h.service.CreateSession(ctx, "robin", "newcorrecthorsebattery", userservice.Request{})
	require.NoError(t, err)
}

func TestResetPassword2_RejectsMismatchedConfirmation(t *testing.T) {
	h := newHarness(baseConfig())
	ctx := context.Background()
	createTestUser(t, h, "sylvia", "correcthorsebattery")

	_, err := h.service.ResetPassword2(ctx, "sylvia", "newcorrecthorsebattery", "does-not-match", userservice.Request{})
	require.Error(t, err)
}

func TestResetPassword2_UnknownUsernameFails(t *testing.T) {
	h := newHarness(baseConfig())
	ctx := context.Background()

	_, err := h.service.ResetPassword2(ctx, "nobody-here", "newcorrecthorsebattery", "newcorrecthorsebattery", userservice.Request{})
	require.Error(t, err)
	assert.Equal(t, "username_not_found", apperr.As(err).Key)
}
