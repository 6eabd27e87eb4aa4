// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package userservice_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira/internal/userservice"
)

func TestLogActivity_PrependsAndCapsAtConfiguredSize(t *testing.T) {
	cfg := baseConfig()
	cfg.Security.UserActivityLogSize = 2
	h := newHarness(cfg)
	ctx := context.Background()
	createTestUser(t, h, "quinn", "correcthorsebattery")

	_, err := h.service.LogActivity(ctx, "quinn", "viewed-profile", "", userservice.Request{IP: "1.1.1.1"})
	require.NoError(t, err)
	user, err := h.service.LogActivity(ctx, "quinn", "updated-settings", "", userservice.Request{IP: "2.2.2.2"})
	require.NoError(t, err)

	require.Len(t, user.Activity, 2, "the log must be capped at security.userActivityLogSize")
	assert.Equal(t, "updated-settings", user.Activity[0].Action, "the most recent entry must come first")
	assert.Equal(t, "viewed-profile", user.Activity[1].Action)
}

func TestSocialAuth_CreatesNewUserOnFirstSignIn(t *testing.T) {
	h := newHarness(baseConfig())
	ctx := context.Background()

	profile := map[string]any{
		"id":       "google-1",
		"username": "rhea",
		"emails":   []any{map[string]any{"value": "rhea@example.com"}},
	}
	user, err := h.service.SocialAuth(ctx, "google", map[string]any{"accessToken": "tok"}, profile, userservice.Request{})
	require.NoError(t, err)

	assert.Equal(t, "rhea@example.com", user.Email)
	assert.True(t, user.HasProvider("google"))
	require.Contains(t, user.ProviderData, "google")
	assert.Equal(t, "google-1", user.ProviderData["google"].Profile["id"])
}

func TestSocialAuth_SecondSignInReusesSameUser(t *testing.T) {
	h := newHarness(baseConfig())
	ctx := context.Background()

	profile := map[string]any{"id": "google-2", "username": "sam"}
	first, err := h.service.SocialAuth(ctx, "google", map[string]any{"accessToken": "tok1"}, profile, userservice.Request{})
	require.NoError(t, err)

	second, err := h.service.SocialAuth(ctx, "google", map[string]any{"accessToken": "tok2"}, profile, userservice.Request{})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "tok2", second.ProviderData["google"].Auth["accessToken"])
}

func TestLinkSocial_ThenUnlink(t *testing.T) {
	h := newHarness(baseConfig())
	ctx := context.Background()
	createTestUser(t, h, "tina", "correcthorsebattery")

	profile := map[string]any{"id": "gh-1"}
	linked, err := h.service.LinkSocial(ctx, "tina", "github", map[string]any{"accessToken": "x"}, profile, userservice.Request{})
	require.NoError(t, err)
	assert.True(t, linked.HasProvider("github"))
	assert.ElementsMatch(t, []string{"local", "github"}, linked.Providers)

	unlinked, err := h.service.Unlink(ctx, "tina", "github", userservice.Request{})
	require.NoError(t, err)
	assert.False(t, unlinked.HasProvider("github"))
	assert.NotContains(t, unlinked.ProviderData, "github")
}

func TestSocialAuth_SynthesizesProfileFromMappedProvider(t *testing.T) {
	cfg := baseConfig()
	cfg.Session.ProfileMapping = map[string][]string{
		"avatar":      {"github", "google"},
		"displayName": {"google", "github"},
	}
	h := newHarness(cfg)
	ctx := context.Background()

	profile := map[string]any{"id": "google-3", "avatar": "https://g.example/avatar.png", "name": "Wendy"}
	user, err := h.service.SocialAuth(ctx, "google", map[string]any{}, profile, userservice.Request{})
	require.NoError(t, err)

	assert.Equal(t, "https://g.example/avatar.png", user.Profile["avatar"], "avatar has no github provider data, so google must supply it despite being second in the list")
	assert.Nil(t, user.Profile["displayName"], "google's profile carries no displayName field")
}

func TestLinkSocial_SynthesizesProfilePreferringFirstConfiguredProvider(t *testing.T) {
	cfg := baseConfig()
	cfg.Session.ProfileMapping = map[string][]string{"avatar": {"github", "google"}}
	h := newHarness(cfg)
	ctx := context.Background()
	createTestUser(t, h, "wendy", "correcthorsebattery")

	_, err := h.service.LinkSocial(ctx, "wendy", "google", map[string]any{}, map[string]any{"id": "g-1", "avatar": "google.png"}, userservice.Request{})
	require.NoError(t, err)

	linked, err := h.service.LinkSocial(ctx, "wendy", "github", map[string]any{}, map[string]any{"id": "gh-9", "avatar": "github.png"}, userservice.Request{})
	require.NoError(t, err)

	assert.Equal(t, "github.png", linked.Profile["avatar"], "github is listed first for the avatar field and must win over google")
}

func TestLinkSocial_RejectsIdentityAlreadyLinkedElsewhere(t *testing.T) {
	h := newHarness(baseConfig())
	ctx := context.Background()
	createTestUser(t, h, "uma", "correcthorsebattery")
	createTestUser(t, h, "victor", "correcthorsebattery")

	profile := map[string]any{"id": "gh-shared"}
	_, err := h.service.LinkSocial(ctx, "uma", "github", map[string]any{}, profile, userservice.Request{})
	require.NoError(t, err)

	_, err = h.service.LinkSocial(ctx, "victor", "github", map[string]any{}, profile, userservice.Request{})
	require.Error(t, err)
}
