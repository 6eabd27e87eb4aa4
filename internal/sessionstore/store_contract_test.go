// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sessionstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// adapters returns every in-process-testable [Store] adapter under a
// fresh t.TempDir for the file adapter. The Redis adapter needs a live
// connection and is not part of this suite; memory and file run
// unconditionally here against the same contract.
func adapters(t *testing.T) map[string]Store {
	t.Helper()

	fileStore, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   fileStore,
	}
}

func TestStore_ContractSuite(t *testing.T) {
	for name, store := range adapters(t) {
		t.Run(name, func(t *testing.T) {
			testTokenLifecycle(t, store)
			testConfirmToken(t, store)
			testExpiry(t, store)
			testNamedKeys(t, store)
		})
	}
}

func testTokenLifecycle(t *testing.T, store Store) {
	ctx := context.Background()
	token := Token{
		UserID:   "user-1",
		Key:      "session-key-1",
		Password: "session-password-1",
		Issued:   time.Now(),
		Expires:  time.Now().Add(time.Hour),
		Provider: "local",
		Roles:    []string{"member"},
	}

	require.NoError(t, store.StoreToken(ctx, token))

	fetched, err := store.FetchToken(ctx, token.Key)
	require.NoError(t, err)
	assert.Equal(t, token.UserID, fetched.UserID)
	assert.Equal(t, token.Password, fetched.Password)
	assert.WithinDuration(t, token.Expires, fetched.Expires, time.Second)

	require.NoError(t, store.DeleteTokens(ctx, token.Key))

	_, err = store.FetchToken(ctx, token.Key)
	assert.Error(t, err)
}

func testConfirmToken(t *testing.T, store Store) {
	ctx := context.Background()
	token := Token{
		UserID:   "user-2",
		Key:      "session-key-2",
		Password: "correct-password",
		Expires:  time.Now().Add(time.Hour),
		Roles:    []string{"member"},
	}
	require.NoError(t, store.StoreToken(ctx, token))
	defer store.DeleteTokens(ctx, token.Key)

	view, err := store.ConfirmToken(ctx, token.Key, "correct-password")
	require.NoError(t, err)
	assert.Equal(t, token.UserID, view.UserID)
	assert.Equal(t, token.Roles, view.Roles)

	_, err = store.ConfirmToken(ctx, token.Key, "wrong-password")
	assert.Error(t, err)

	_, err = store.ConfirmToken(ctx, "no-such-key", "correct-password")
	assert.Error(t, err)
}

func testExpiry(t *testing.T, store Store) {
	ctx := context.Background()
	token := Token{
		UserID:  "user-3",
		Key:     "session-key-3-expired",
		Expires: time.Now().Add(-time.Minute),
	}
	require.NoError(t, store.StoreToken(ctx, token))

	_, err := store.FetchToken(ctx, token.Key)
	assert.Error(t, err, "expired token must not be returned")

	_, err = store.ConfirmToken(ctx, token.Key, token.Password)
	assert.Error(t, err)
}

func testNamedKeys(t *testing.T, store Store) {
	ctx := context.Background()

	require.NoError(t, store.StoreKey(ctx, "invite_code:ABC123", time.Hour, "user-42"))

	value, ok, err := store.GetKey(ctx, "invite_code:ABC123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "user-42", value)

	require.NoError(t, store.DeleteKeys(ctx, "invite_code:ABC123"))

	_, ok, err = store.GetKey(ctx, "invite_code:ABC123")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.StoreKey(ctx, "invite_code:EXPIRED", time.Millisecond, "user-7"))
	time.Sleep(5 * time.Millisecond)
	_, ok, err = store.GetKey(ctx, "invite_code:EXPIRED")
	require.NoError(t, err)
	assert.False(t, ok, "expired named key must not be returned")
}
