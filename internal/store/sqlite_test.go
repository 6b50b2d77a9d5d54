package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/claims-inbox/internal/model"
	"github.com/nhle/claims-inbox/tests/testutil"
)

var base = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func notif(id int64, read bool) model.Notification {
	return model.Notification{
		ID:        id,
		UserID:    "alice",
		Title:     "Case update",
		Message:   "Something happened",
		Type:      model.TypeCaseStatusChanged,
		CreatedAt: base.Add(time.Duration(id) * time.Minute),
		Read:      read,
	}
}

func ids(ns []model.Notification) []int64 {
	return model.IDs(ns)
}

func Test_SQLiteStore_ReplaceAll_OrdersNewestFirst(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceAll(ctx, "alice", []model.Notification{
		notif(1, false), notif(3, true), notif(2, false),
	}))

	got, err := s.Active(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 2, 1}, ids(got))
	assert.Equal(t, model.TypeCaseStatusChanged, got[0].Type)
	assert.True(t, got[0].Read)
	assert.True(t, got[0].CreatedAt.Equal(notif(3, true).CreatedAt))

	// A second snapshot fully replaces the first.
	require.NoError(t, s.ReplaceAll(ctx, "alice", []model.Notification{notif(4, false)}))
	got, err = s.Active(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, ids(got))
}

func Test_SQLiteStore_ScopedPerUser(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceAll(ctx, "alice", []model.Notification{notif(1, false)}))
	require.NoError(t, s.ReplaceAll(ctx, "bob", []model.Notification{notif(1, false), notif(2, false)}))

	alice, err := s.Active(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, alice, 1)

	count, err := s.UnreadCount(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func Test_SQLiteStore_MarkRead_Idempotent(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.ReplaceAll(ctx, "alice", []model.Notification{notif(1, false)}))

	first := base.Add(time.Hour)
	changed, err := s.MarkRead(ctx, "alice", 1, first)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.MarkRead(ctx, "alice", 1, first.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, changed, "second mark must not change the record")

	got, err := s.Active(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Read)
	require.NotNil(t, got[0].ReadAt)
	assert.True(t, got[0].ReadAt.Equal(first), "read_at keeps the first transition time")

	changed, err = s.MarkRead(ctx, "alice", 99, first)
	require.NoError(t, err)
	assert.False(t, changed)
}

func Test_SQLiteStore_ReplaceAll_OverwritesLocalRead(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	snapshot := []model.Notification{notif(2, false), notif(1, false)}
	require.NoError(t, s.ReplaceAll(ctx, "alice", snapshot))

	changed, err := s.MarkRead(ctx, "alice", 1, base.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, changed)
	count, err := s.UnreadCount(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	// The platform still reports id 1 unread.
	require.NoError(t, s.ReplaceAll(ctx, "alice", snapshot))

	got, err := s.Active(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.False(t, got[1].Read)
	assert.Nil(t, got[1].ReadAt)

	count, err = s.UnreadCount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func Test_SQLiteStore_MarkAllRead(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.ReplaceAll(ctx, "alice", []model.Notification{
		notif(1, false), notif(2, true), notif(3, false), notif(4, false),
	}))

	n, err := s.MarkAllRead(ctx, "alice", []int64{1, 2, 3}, base)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := s.UnreadCount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	n, err = s.MarkAllRead(ctx, "alice", nil, base)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func Test_SQLiteStore_RemoveThenTrash_KeepsPartitionsDisjoint(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.ReplaceAll(ctx, "alice", []model.Notification{notif(1, false), notif(2, false)}))

	removed, err := s.RemoveFromActive(ctx, "alice", 1)
	require.NoError(t, err)
	require.NotNil(t, removed)
	assert.Equal(t, int64(1), removed.ID)
	assert.Equal(t, "Case update", removed.Title)

	require.NoError(t, s.AddToTrash(ctx, "alice", *removed))

	active, err := s.Active(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, ids(active))

	trash, err := s.Trash(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(trash))

	// Removing a missing id is a no-op.
	removed, err = s.RemoveFromActive(ctx, "alice", 1)
	require.NoError(t, err)
	assert.Nil(t, removed)

	// A snapshot that brings id 1 back moves it out of the trash.
	require.NoError(t, s.ReplaceAll(ctx, "alice", []model.Notification{notif(1, false), notif(2, false)}))
	trash, err = s.Trash(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, trash)
}

func Test_SQLiteStore_AddToActive_SkipsDuplicates(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	added, err := s.AddToActive(ctx, "alice", notif(5, false))
	require.NoError(t, err)
	assert.True(t, added)

	dup := notif(5, false)
	dup.Title = "changed"
	added, err = s.AddToActive(ctx, "alice", dup)
	require.NoError(t, err)
	assert.False(t, added)

	got, err := s.Active(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Case update", got[0].Title)
}

func Test_SQLiteStore_ClearActive_LeavesTrash(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.ReplaceAll(ctx, "alice", []model.Notification{notif(1, false), notif(2, false)}))
	require.NoError(t, s.ReplaceTrash(ctx, "alice", []model.Notification{notif(9, true)}))

	require.NoError(t, s.ClearActive(ctx, "alice"))

	active, err := s.Active(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, active)

	trash, err := s.Trash(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []int64{9}, ids(trash))
}
