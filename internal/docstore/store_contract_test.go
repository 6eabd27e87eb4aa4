// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package docstore

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// adapters returns every in-process-testable [Store] adapter. The
// Postgres adapter needs a real connection and is not part of this suite
// (the same way sessionstore's Redis adapter is left out of its
// in-process contract suite); memory runs unconditionally so at least
// one adapter proves out the contract on every run.
func adapters() map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(),
	}
}

func TestStore_ContractSuite(t *testing.T) {
	for name, store := range adapters() {
		t.Run(name, func(t *testing.T) {
			testCreateGetDelete(t, store)
			testOptimisticConcurrency(t, store)
			testQueryByView(t, store)
		})
	}
}

func testCreateGetDelete(t *testing.T, store Store) {
	ctx := context.Background()
	body, _ := json.Marshal(map[string]any{"username": "alice"})

	rev, err := store.Put(ctx, Doc{ID: "user-1", Data: body})
	require.NoError(t, err)
	assert.NotEmpty(t, rev)

	fetched, err := store.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, rev, fetched.Rev)
	assert.JSONEq(t, string(body), string(fetched.Data))

	require.NoError(t, store.Delete(ctx, "user-1", rev))

	_, err = store.Get(ctx, "user-1")
	assert.Error(t, err)
}

func testOptimisticConcurrency(t *testing.T, store Store) {
	ctx := context.Background()
	body, _ := json.Marshal(map[string]any{"username": "bob"})

	rev1, err := store.Put(ctx, Doc{ID: "user-2", Data: body})
	require.NoError(t, err)

	// Creating over an existing id is itself a conflict.
	_, err = store.Put(ctx, Doc{ID: "user-2", Data: body})
	assert.Error(t, err)

	updated, _ := json.Marshal(map[string]any{"username": "bobby"})
	rev2, err := store.Put(ctx, Doc{ID: "user-2", Rev: rev1, Data: updated})
	require.NoError(t, err)
	assert.NotEqual(t, rev1, rev2)

	// Stale revision is rejected.
	_, err = store.Put(ctx, Doc{ID: "user-2", Rev: rev1, Data: updated})
	assert.Error(t, err)

	require.NoError(t, store.Delete(ctx, "user-2", rev2))
}

func testQueryByView(t *testing.T, store Store) {
	ctx := context.Background()
	body, _ := json.Marshal(map[string]any{
		"username": "carol",
		"email":    "carol@example.com",
		"google":   map[string]any{"profile": map[string]any{"id": "google-id-1"}},
		"forgotPassword": map[string]any{
			"token": "reset-token-1",
		},
		"session": map[string]any{
			"session-key-1": map[string]any{"provider": "local"},
		},
	})
	_, err := store.Put(ctx, Doc{ID: "user-3", Data: body})
	require.NoError(t, err)

	byUsername, err := store.Query(ctx, "auth/username", "carol")
	require.NoError(t, err)
	require.Len(t, byUsername, 1)
	assert.Equal(t, "user-3", byUsername[0].ID)

	byProvider, err := store.Query(ctx, "auth/google", "google-id-1")
	require.NoError(t, err)
	require.Len(t, byProvider, 1)

	byReset, err := store.Query(ctx, "auth/passwordReset", "reset-token-1")
	require.NoError(t, err)
	require.Len(t, byReset, 1)

	bySession, err := store.Query(ctx, "auth/session", "session-key-1")
	require.NoError(t, err)
	require.Len(t, bySession, 1)

	noMatch, err := store.Query(ctx, "auth/username", "no-such-user")
	require.NoError(t, err)
	assert.Empty(t, noMatch)
}
