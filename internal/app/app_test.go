package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/claims-inbox/internal/credential"
	"github.com/nhle/claims-inbox/internal/inbox"
	"github.com/nhle/claims-inbox/internal/model"
	"github.com/nhle/claims-inbox/internal/session"
	appsync "github.com/nhle/claims-inbox/internal/sync"
	"github.com/nhle/claims-inbox/internal/toast"
	"github.com/nhle/claims-inbox/internal/ui/command"
	"github.com/nhle/claims-inbox/tests/testutil"
)

type memVault map[string]string

func (v memVault) Get(key string) (string, error) {
	val, ok := v[key]
	if !ok {
		return "", credential.ErrNotFound
	}
	return val, nil
}

func (v memVault) Set(key, value string) error {
	v[key] = value
	return nil
}

func (v memVault) Delete(key string) error {
	delete(v, key)
	return nil
}

type authFunc func(ctx context.Context, username, company, password string) (*model.User, error)

func (f authFunc) Login(ctx context.Context, username, company, password string) (*model.User, error) {
	return f(ctx, username, company, password)
}

type noopTimer struct{}

func (noopTimer) Stop() bool { return true }

// newTestModel builds the root model over fakes with alice signed in.
// The engine is never started.
func newTestModel(t *testing.T, gw *testutil.FakeGateway) Model {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := testutil.NewTestStore(t)

	engine := appsync.New(gw, st, appsync.Options{PollInterval: time.Hour, Logger: logger})
	sess := session.New(authFunc(func(_ context.Context, username, _, _ string) (*model.User, error) {
		return &model.User{ID: 1, Name: username}, nil
	}), memVault{}, logger)
	_, err := sess.SignIn(context.Background(), "alice", "ACME", "pw")
	require.NoError(t, err)

	mgr := inbox.NewManager(gw, st, engine, sess, inbox.Options{MarkAllRate: 1000, Logger: logger})
	toasts := toast.NewQueue(toast.Options{
		AfterFunc: func(time.Duration, func()) toast.Timer { return noopTimer{} },
		Logger:    logger,
	})
	t.Cleanup(toasts.Close)

	cfg := model.DefaultAppConfig()
	return New(Deps{
		Store:      st,
		Engine:     engine,
		Inbox:      mgr,
		Session:    sess,
		Toasts:     toasts,
		Config:     cfg,
		ConfigPath: filepath.Join(t.TempDir(), "config.yaml"),
		Logger:     logger,
	})
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func Test_New_SignedInStartsOnInbox(t *testing.T) {
	m := newTestModel(t, &testutil.FakeGateway{})
	assert.Equal(t, ViewInbox, m.currentView)
	assert.Contains(t, m.headerTitle(), "alice")
}

func Test_Model_SyncResult_OtherUserIgnored(t *testing.T) {
	m := newTestModel(t, &testutil.FakeGateway{})

	m, _ = update(t, m, appsync.SyncResultMsg{User: "bob", Unread: 9})
	assert.Equal(t, 0, m.unreadCount)

	m, _ = update(t, m, appsync.SyncResultMsg{User: "alice", Unread: 3})
	assert.Equal(t, 3, m.unreadCount)
	assert.Contains(t, m.headerTitle(), "[3 unread]")
}

func Test_Model_SyncResult_AuthError(t *testing.T) {
	m := newTestModel(t, &testutil.FakeGateway{})

	m, _ = update(t, m, appsync.SyncResultMsg{
		User:      "alice",
		AuthError: &appsync.AuthErrorMsg{User: "alice", Message: "session expired"},
	})
	assert.Equal(t, "session expired", m.authErrorMessage)

	m, _ = update(t, m, appsync.SyncResultMsg{User: "alice"})
	assert.Empty(t, m.authErrorMessage)
}

func Test_Model_ExecuteCommand_Cases(t *testing.T) {
	tests := []struct {
		name      string
		command   string
		wantView  ViewState
		wantError bool
	}{
		{name: "trash opens the trash", command: "trash", wantView: ViewTrash},
		{name: "delete-all on an empty inbox does nothing", command: "delete-all", wantView: ViewInbox},
		{name: "unknown command", command: "explode", wantView: ViewInbox, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestModel(t, &testutil.FakeGateway{})
			m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(":")})
			require.Equal(t, ViewCommand, m.currentView)

			m, _ = update(t, m, command.CommandMsg(tt.command))
			assert.Equal(t, tt.wantView, m.currentView)
			assert.Equal(t, tt.wantError, m.statusIsError)
		})
	}
}

func Test_Model_CountCommand_ReportsServerCounter(t *testing.T) {
	gw := &testutil.FakeGateway{
		FetchUnreadCountFunc: func(context.Context, string) (int, error) { return 4, nil },
	}
	m := newTestModel(t, gw)

	m, cmd := update(t, m, command.CommandMsg("count"))
	require.NotNil(t, cmd)
	msg, ok := cmd().(serverCountMsg)
	require.True(t, ok)
	require.NoError(t, msg.err)

	m, _ = update(t, m, msg)
	assert.Equal(t, "unread: 4 on the platform, 0 here", m.statusMessage)
	assert.Equal(t, 1, gw.CallCount("FetchUnreadCount"))
}

func Test_Model_ToastKeys(t *testing.T) {
	m := newTestModel(t, &testutil.FakeGateway{})
	m.toasts.Push(
		model.Notification{ID: 1, Title: "first", Read: true},
		model.Notification{ID: 2, Title: "second", Read: true},
	)

	m, _ = update(t, m, runes("x"))
	assert.Equal(t, 1, m.toasts.Len())
	newest, ok := m.toasts.Newest()
	require.True(t, ok)
	assert.Equal(t, int64(1), newest.ID)

	_, cmd := update(t, m, runes("o"))
	require.NotNil(t, cmd)
	clicked, ok := cmd().(toastClickedMsg)
	require.True(t, ok)
	assert.NoError(t, clicked.err)
	assert.Equal(t, 0, m.toasts.Len())
}

func Test_Model_CommandResult_ErrorStatus(t *testing.T) {
	m := newTestModel(t, &testutil.FakeGateway{})

	m, _ = update(t, m, commandResultMsg{result: inbox.Result{
		Command:   inbox.CommandMarkAllRead,
		Status:    inbox.Partial,
		FailedIDs: []int64{3},
	}})
	assert.True(t, m.statusIsError)
	assert.Equal(t, "mark all read: partly applied", m.statusMessage)
}
