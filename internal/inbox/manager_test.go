package inbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/claims-inbox/internal/gateway"
	"github.com/nhle/claims-inbox/internal/model"
	"github.com/nhle/claims-inbox/internal/store"
	inboxsync "github.com/nhle/claims-inbox/internal/sync"
	"github.com/nhle/claims-inbox/tests/testutil"
)

type staticIdentity string

func (s staticIdentity) UserID() string { return string(s) }

// fakeSyncer records the calls the manager makes into the sync engine.
type fakeSyncer struct {
	mu          gosync.Mutex
	refreshFunc func(ctx context.Context, quiet ...int64) error
	refreshes   [][]int64
	recounts    int
}

func (f *fakeSyncer) Refresh(ctx context.Context, quiet ...int64) error {
	f.mu.Lock()
	f.refreshes = append(f.refreshes, quiet)
	f.mu.Unlock()
	if f.refreshFunc != nil {
		return f.refreshFunc(ctx, quiet...)
	}
	return nil
}

func (f *fakeSyncer) RecountUnread(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recounts++
}

func n(id int64, read bool) model.Notification {
	return model.Notification{
		ID:        id,
		UserID:    "alice",
		Title:     "Report request",
		Message:   "Please confirm",
		Type:      model.TypeReportRequestToOwner,
		CreatedAt: time.Date(2025, 3, 1, 8, int(id), 0, 0, time.UTC),
		Read:      read,
		URL:       "/reports",
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(
	t *testing.T,
	gw *testutil.FakeGateway,
	user string,
	seed ...model.Notification,
) (*Manager, *store.SQLiteStore, *fakeSyncer) {
	t.Helper()
	st := testutil.NewTestStore(t)
	if len(seed) > 0 {
		require.NoError(t, st.ReplaceAll(context.Background(), "alice", seed))
	}
	syncer := &fakeSyncer{}
	m := NewManager(gw, st, syncer, staticIdentity(user), Options{
		MarkAllRate: 1000,
		Logger:      discardLogger(),
	})
	return m, st, syncer
}

func active(t *testing.T, st store.Store) []model.Notification {
	t.Helper()
	got, err := st.Active(context.Background(), "alice")
	require.NoError(t, err)
	return got
}

func trash(t *testing.T, st store.Store) []model.Notification {
	t.Helper()
	got, err := st.Trash(context.Background(), "alice")
	require.NoError(t, err)
	return got
}

func Test_Manager_NoUser_SkipsEveryCommand(t *testing.T) {
	gw := &testutil.FakeGateway{}
	m, _, syncer := newTestManager(t, gw, "", n(1, false))
	ctx := context.Background()

	results := []Result{
		m.MarkAsRead(ctx, 1),
		m.MarkAllAsRead(ctx),
		m.Delete(ctx, 1),
		m.DeleteAll(ctx),
		m.Restore(ctx, 1),
		m.LoadTrash(ctx),
	}
	for _, res := range results {
		assert.Equal(t, Skipped, res.Status, res.Command)
		assert.NoError(t, res.Err)
	}
	assert.Empty(t, gw.Calls())
	assert.Zero(t, syncer.recounts)

	_, err := m.ServerUnreadCount(ctx)
	assert.ErrorIs(t, err, gateway.ErrNoUser)
}

func Test_Manager_MarkAsRead_Idempotent(t *testing.T) {
	gw := &testutil.FakeGateway{}
	m, st, syncer := newTestManager(t, gw, "alice", n(1, false), n(2, false))
	ctx := context.Background()

	first := time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return first }
	res := m.MarkAsRead(ctx, 1)
	require.True(t, res.OK())
	assert.Equal(t, []int64{1}, res.IDs)

	m.now = func() time.Time { return first.Add(time.Hour) }
	res = m.MarkAsRead(ctx, 1)
	require.True(t, res.OK())

	got := active(t, st)
	require.Len(t, got, 2)
	assert.True(t, got[1].Read)
	require.NotNil(t, got[1].ReadAt)
	assert.True(t, got[1].ReadAt.Equal(first))
	assert.False(t, got[0].Read)
	assert.Equal(t, 2, syncer.recounts)
}

func Test_Manager_IsUnread(t *testing.T) {
	gw := &testutil.FakeGateway{}
	m, _, _ := newTestManager(t, gw, "alice", n(1, false), n(2, true))
	ctx := context.Background()

	assert.True(t, m.IsUnread(ctx, 1))
	assert.False(t, m.IsUnread(ctx, 2))
	assert.False(t, m.IsUnread(ctx, 99), "unknown ids are not unread")

	require.True(t, m.MarkAsRead(ctx, 1).OK())
	assert.False(t, m.IsUnread(ctx, 1))
}

func Test_Manager_MarkAsRead_FailureLeavesStore(t *testing.T) {
	gw := &testutil.FakeGateway{
		MarkReadFunc: func(context.Context, int64, string) error { return gateway.ErrRejected },
	}
	m, st, syncer := newTestManager(t, gw, "alice", n(1, false))

	res := m.MarkAsRead(context.Background(), 1)
	assert.Equal(t, Failed, res.Status)
	assert.ErrorIs(t, res.Err, gateway.ErrRejected)
	assert.False(t, active(t, st)[0].Read)
	assert.Zero(t, syncer.recounts)
	assert.Equal(t, 1, gw.CallCount("MarkRead"), "no retry")
}

func Test_Manager_MarkAllAsRead_Cases(t *testing.T) {
	boom := errors.New("timeout")

	tests := []struct {
		name       string
		failIDs    map[int64]bool
		wantStatus Status
		wantIDs    []int64
		wantFailed []int64
		wantUnread []int64
	}{
		{
			name:       "all acknowledged",
			wantStatus: Applied,
			wantIDs:    []int64{3, 2, 1},
		},
		{
			name:       "partial failure keeps failed ids unread",
			failIDs:    map[int64]bool{2: true},
			wantStatus: Partial,
			wantIDs:    []int64{3, 1},
			wantFailed: []int64{2},
			wantUnread: []int64{2},
		},
		{
			name:       "every call failed",
			failIDs:    map[int64]bool{1: true, 2: true, 3: true},
			wantStatus: Failed,
			wantFailed: []int64{3, 2, 1},
			wantUnread: []int64{3, 2, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var order []int64
			gw := &testutil.FakeGateway{
				MarkReadFunc: func(_ context.Context, id int64, _ string) error {
					order = append(order, id)
					if tt.failIDs[id] {
						return boom
					}
					return nil
				},
			}
			m, st, _ := newTestManager(t, gw, "alice",
				n(1, false), n(2, false), n(3, false), n(4, true))

			res := m.MarkAllAsRead(context.Background())

			assert.Equal(t, tt.wantStatus, res.Status)
			assert.Equal(t, tt.wantIDs, res.IDs)
			assert.Equal(t, tt.wantFailed, res.FailedIDs)
			if tt.wantFailed != nil {
				assert.ErrorIs(t, res.Err, boom)
			}
			assert.Equal(t, []int64{3, 2, 1}, order, "one call per unread id, in order")
			assert.Zero(t, gw.CallCount("MarkAllRead"))

			var unread []int64
			for _, rec := range active(t, st) {
				if rec.IsUnread() {
					unread = append(unread, rec.ID)
				}
			}
			assert.Equal(t, tt.wantUnread, unread)
		})
	}
}

func Test_Manager_MarkAllAsRead_Bulk(t *testing.T) {
	gw := &testutil.FakeGateway{}
	st := testutil.NewTestStore(t)
	require.NoError(t, st.ReplaceAll(context.Background(), "alice", []model.Notification{n(1, false), n(2, false)}))
	m := NewManager(gw, st, &fakeSyncer{}, staticIdentity("alice"), Options{
		BulkMarkAll: true,
		Logger:      discardLogger(),
	})

	res := m.MarkAllAsRead(context.Background())
	require.True(t, res.OK())
	assert.Equal(t, []string{"MarkAllRead"}, gw.Calls())

	count, err := st.UnreadCount(context.Background(), "alice")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func Test_Manager_Delete_MovesToTrash(t *testing.T) {
	gw := &testutil.FakeGateway{}
	withAction := n(2, false)
	withAction.Action = "OPEN_REPORT"
	m, st, _ := newTestManager(t, gw, "alice", n(1, false), withAction)

	res := m.Delete(context.Background(), 2)
	require.True(t, res.OK())

	assert.Equal(t, []int64{1}, model.IDs(active(t, st)))
	trashed := trash(t, st)
	require.Len(t, trashed, 1)
	assert.Equal(t, int64(2), trashed[0].ID)
	assert.Equal(t, "Report request", trashed[0].Title)
	assert.Equal(t, "/reports", trashed[0].URL)
	assert.False(t, trashed[0].Read)
	assert.Equal(t, "OPEN_REPORT", trashed[0].Action, "the move keeps every field")
}

func Test_Manager_Delete_FailureLeavesStore(t *testing.T) {
	gw := &testutil.FakeGateway{
		DeleteFunc: func(context.Context, int64, string) error { return errors.New("500") },
	}
	m, st, _ := newTestManager(t, gw, "alice", n(1, false))

	res := m.Delete(context.Background(), 1)
	assert.Equal(t, Failed, res.Status)
	assert.Len(t, active(t, st), 1)
	assert.Empty(t, trash(t, st))
}

func Test_Manager_DeleteAll(t *testing.T) {
	gw := &testutil.FakeGateway{}
	m, st, syncer := newTestManager(t, gw, "alice", n(1, false), n(2, true))
	require.NoError(t, st.ReplaceTrash(context.Background(), "alice", []model.Notification{n(9, true)}))

	res := m.DeleteAll(context.Background())
	require.True(t, res.OK())
	assert.ElementsMatch(t, []int64{1, 2}, res.IDs)
	assert.Empty(t, active(t, st))
	assert.Equal(t, []int64{9}, model.IDs(trash(t, st)), "trash is left for the next trash load")
	assert.Equal(t, 1, syncer.recounts)
}

func Test_Manager_Restore_QuietsOnlyRestoredID(t *testing.T) {
	gw := &testutil.FakeGateway{
		FetchTrashedFunc: func(context.Context, string) ([]model.Notification, error) {
			return []model.Notification{}, nil
		},
	}
	m, st, syncer := newTestManager(t, gw, "alice", n(1, false))
	require.NoError(t, st.ReplaceTrash(context.Background(), "alice", []model.Notification{n(2, false)}))

	res := m.Restore(context.Background(), 2)
	require.True(t, res.OK())
	assert.Equal(t, [][]int64{{2}}, syncer.refreshes, "only the restored id is kept quiet")
	assert.Empty(t, trash(t, st))
	assert.Equal(t, 1, gw.CallCount("Restore"))
}

func Test_Manager_Restore_ReloadFailureIsPartial(t *testing.T) {
	gw := &testutil.FakeGateway{
		FetchTrashedFunc: func(context.Context, string) ([]model.Notification, error) {
			return nil, errors.New("connection reset")
		},
	}
	m, _, _ := newTestManager(t, gw, "alice")

	res := m.Restore(context.Background(), 2)
	assert.Equal(t, Partial, res.Status)
	assert.Error(t, res.Err)
}

// platform is an in-memory stand-in for the remote notification service.
type platform struct {
	mu     gosync.Mutex
	active []model.Notification
	trash  []model.Notification
}

func (p *platform) gateway() *testutil.FakeGateway {
	return &testutil.FakeGateway{
		FetchActiveFunc: func(context.Context, string) ([]model.Notification, error) {
			p.mu.Lock()
			defer p.mu.Unlock()
			return append([]model.Notification(nil), p.active...), nil
		},
		FetchTrashedFunc: func(context.Context, string) ([]model.Notification, error) {
			p.mu.Lock()
			defer p.mu.Unlock()
			return append([]model.Notification(nil), p.trash...), nil
		},
		DeleteFunc: func(_ context.Context, id int64, _ string) error {
			p.mu.Lock()
			defer p.mu.Unlock()
			p.active, p.trash = move(p.active, p.trash, id)
			return nil
		},
		RestoreFunc: func(_ context.Context, id int64, _ string) error {
			p.mu.Lock()
			defer p.mu.Unlock()
			p.trash, p.active = move(p.trash, p.active, id)
			return nil
		},
	}
}

func move(from, to []model.Notification, id int64) ([]model.Notification, []model.Notification) {
	var kept []model.Notification
	for _, rec := range from {
		if rec.ID == id {
			to = append([]model.Notification{rec}, to...)
			continue
		}
		kept = append(kept, rec)
	}
	return kept, to
}

func Test_Manager_DeleteThenRestore_WithEngine(t *testing.T) {
	p := &platform{active: []model.Notification{n(2, false), n(1, false)}}
	gw := p.gateway()
	st := testutil.NewTestStore(t)
	ctx := context.Background()

	engine := inboxsync.New(gw, st, inboxsync.Options{
		PollInterval: time.Hour,
		Logger:       discardLogger(),
	})
	var mu gosync.Mutex
	var announced []int64
	engine.OnNewUnread(func(ns []model.Notification) {
		mu.Lock()
		defer mu.Unlock()
		announced = append(announced, model.IDs(ns)...)
	})
	engine.SetUser("alice")
	engine.Start()
	t.Cleanup(engine.Stop)
	require.NoError(t, engine.Refresh(ctx))

	m := NewManager(gw, st, engine, staticIdentity("alice"), Options{Logger: discardLogger()})

	require.True(t, m.Delete(ctx, 2).OK())
	assert.Equal(t, []int64{1}, model.IDs(active(t, st)))
	assert.Equal(t, []int64{2}, model.IDs(trash(t, st)))
	assert.Equal(t, 1, engine.UnreadCount())

	// A genuinely new record lands on the platform before the restore.
	p.mu.Lock()
	p.active = append([]model.Notification{n(9, false)}, p.active...)
	p.mu.Unlock()

	require.True(t, m.Restore(ctx, 2).OK())
	assert.Equal(t, []int64{9, 2, 1}, model.IDs(active(t, st)))
	assert.Empty(t, trash(t, st))
	assert.Equal(t, 3, engine.UnreadCount())

	// The restored id stays quiet, now and on later polls.
	require.NoError(t, engine.Refresh(ctx))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int64{9}, announced)
}
