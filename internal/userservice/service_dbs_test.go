// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package userservice_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira/internal/dbauth"
	"github.com/taibuivan/yomira/internal/events"
)

func TestAddUserDB_RecordsLogicalNameAndEmitsEvent(t *testing.T) {
	h := newHarness(baseConfig())
	ctx := context.Background()
	createTestUser(t, h, "zara", "correcthorsebattery")

	user, err := h.service.AddUserDB(ctx, "zara", "notes", dbauth.Private)
	require.NoError(t, err)

	physicalName := "userdb_notes$zara"
	require.Contains(t, user.PersonalDBs, physicalName, "personalDBs must be keyed by the physical name")
	assert.Equal(t, "notes", user.PersonalDBs[physicalName].Name, "PersonalDB.Name must carry the logical name, not the physical one")
	assert.Contains(t, h.events.names(), events.UserDBAdded)
}

func TestRemoveUserDB_LeavesPhysicalDatabaseWhenNotAskedToDestroyIt(t *testing.T) {
	h := newHarness(baseConfig())
	ctx := context.Background()
	createTestUser(t, h, "yusuf", "correcthorsebattery")

	_, err := h.service.AddUserDB(ctx, "yusuf", "notes", dbauth.Private)
	require.NoError(t, err)
	physicalName := "userdb_notes$yusuf"

	user, err := h.service.RemoveUserDB(ctx, "yusuf", physicalName, false, false)
	require.NoError(t, err)

	assert.NotContains(t, user.PersonalDBs, physicalName, "the entry must always leave personalDBs")
	assert.False(t, h.provisioner.dropped[physicalName], "a private db must not be destroyed unless deletePrivate is set")
	assert.Contains(t, h.events.names(), events.UserDBRemoved, "the entry was removed from personalDBs, so the event must still fire")
}

func TestRemoveUserDB_DestroysPrivateDatabaseWhenAsked(t *testing.T) {
	h := newHarness(baseConfig())
	ctx := context.Background()
	createTestUser(t, h, "xavier", "correcthorsebattery")

	_, err := h.service.AddUserDB(ctx, "xavier", "notes", dbauth.Private)
	require.NoError(t, err)
	physicalName := "userdb_notes$xavier"

	user, err := h.service.RemoveUserDB(ctx, "xavier", physicalName, true, false)
	require.NoError(t, err)

	assert.NotContains(t, user.PersonalDBs, physicalName)
	assert.True(t, h.provisioner.dropped[physicalName], "deletePrivate=true must destroy a private db")
	assert.Contains(t, h.events.names(), events.UserDBRemoved)
}

func TestRemoveUserDB_NeverDestroysSharedDatabaseWithoutDeleteSharedFlag(t *testing.T) {
	h := newHarness(baseConfig())
	ctx := context.Background()
	createTestUser(t, h, "walt", "correcthorsebattery")

	_, err := h.service.AddUserDB(ctx, "walt", "team-notes", dbauth.Shared)
	require.NoError(t, err)

	user, err := h.service.RemoveUserDB(ctx, "walt", "team-notes", true, false)
	require.NoError(t, err)

	assert.NotContains(t, user.PersonalDBs, "team-notes")
	assert.False(t, h.provisioner.dropped["team-notes"], "deletePrivate must not gate a shared database; only deleteShared may")

	_, err = h.service.AddUserDB(ctx, "walt", "team-notes", dbauth.Shared)
	require.NoError(t, err)
	_, err = h.service.RemoveUserDB(ctx, "walt", "team-notes", false, true)
	require.NoError(t, err)
	assert.True(t, h.provisioner.dropped["team-notes"])
}
