package app

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/claims-inbox/internal/gateway"
	"github.com/nhle/claims-inbox/internal/inbox"
	"github.com/nhle/claims-inbox/internal/model"
	"github.com/nhle/claims-inbox/internal/theme"
	"github.com/nhle/claims-inbox/internal/ui/login"
)

// toastsChangedMsg is sent whenever the toast queue gains or loses an entry.
type toastsChangedMsg struct{}

// toastClickedMsg is sent after a toast was opened.
type toastClickedMsg struct{ err error }

// commandResultMsg carries the outcome of an inbox command.
type commandResultMsg struct{ result inbox.Result }

// serverCountMsg carries the platform's own unread counter.
type serverCountMsg struct {
	count int
	err   error
}

type signedInMsg struct{ user *model.User }

type signInFailedMsg struct{ err error }

type signedOutMsg struct{ err error }

type themeSavedMsg struct {
	name string
	err  error
}

// Confirmation payloads.
type (
	deleteRequest    struct{ id int64 }
	deleteAllRequest struct{}
)

// runInbox wraps an inbox command in a tea.Cmd.
func (m Model) runInbox(fn func(ctx context.Context, mgr *inbox.Manager) inbox.Result) tea.Cmd {
	mgr := m.inbox
	return func() tea.Msg {
		return commandResultMsg{result: fn(context.Background(), mgr)}
	}
}

func (m Model) markRead(id int64) tea.Cmd {
	return m.runInbox(func(ctx context.Context, mgr *inbox.Manager) inbox.Result {
		return mgr.MarkAsRead(ctx, id)
	})
}

func (m Model) markAllRead() tea.Cmd {
	return m.runInbox(func(ctx context.Context, mgr *inbox.Manager) inbox.Result {
		return mgr.MarkAllAsRead(ctx)
	})
}

func (m Model) deleteNotification(id int64) tea.Cmd {
	return m.runInbox(func(ctx context.Context, mgr *inbox.Manager) inbox.Result {
		return mgr.Delete(ctx, id)
	})
}

func (m Model) deleteAll() tea.Cmd {
	return m.runInbox(func(ctx context.Context, mgr *inbox.Manager) inbox.Result {
		return mgr.DeleteAll(ctx)
	})
}

func (m Model) restore(id int64) tea.Cmd {
	return m.runInbox(func(ctx context.Context, mgr *inbox.Manager) inbox.Result {
		return mgr.Restore(ctx, id)
	})
}

func (m Model) loadTrash() tea.Cmd {
	return m.runInbox(func(ctx context.Context, mgr *inbox.Manager) inbox.Result {
		return mgr.LoadTrash(ctx)
	})
}

// handleCommandResult reports a finished command and reloads both lists
// from the store.
func (m *Model) handleCommandResult(res inbox.Result) tea.Cmd {
	switch {
	case res.Command == inbox.CommandLoadTrash && res.OK():
		// Opening the trash needs no confirmation line.
	case res.Status == inbox.Failed || res.Status == inbox.Partial:
		m.setStatus(res.Summary(), true)
	default:
		m.setStatus(res.Summary(), false)
	}
	return tea.Batch(m.inboxList.Load(), m.trashList.Load())
}

func (m *Model) toggleTrash() tea.Cmd {
	if m.currentView == ViewTrash {
		m.currentView = ViewInbox
		return m.inboxList.Load()
	}
	m.currentView = ViewTrash
	return tea.Batch(m.trashList.Load(), m.loadTrash())
}

func (m *Model) confirmDeleteAll() tea.Cmd {
	if m.inboxList.Len() == 0 {
		return nil
	}
	m.previousView = m.currentView
	m.currentView = ViewConfirm
	return m.confirmView.Ask(
		"Move every notification to the trash?",
		"Delete all",
		deleteAllRequest{},
	)
}

func (m Model) clickToast(id int64) tea.Cmd {
	q := m.toasts
	return func() tea.Msg {
		return toastClickedMsg{err: q.Click(context.Background(), id)}
	}
}

func (m Model) serverCount() tea.Cmd {
	mgr := m.inbox
	return func() tea.Msg {
		count, err := mgr.ServerUnreadCount(context.Background())
		return serverCountMsg{count: count, err: err}
	}
}

func (m Model) signIn(msg login.SubmitMsg) tea.Cmd {
	sess := m.session
	return func() tea.Msg {
		user, err := sess.SignIn(context.Background(), msg.Username, msg.Company, msg.Password)
		if err != nil {
			return signInFailedMsg{err: err}
		}
		return signedInMsg{user: user}
	}
}

func (m Model) signOut() tea.Cmd {
	sess := m.session
	return func() tea.Msg {
		return signedOutMsg{err: sess.SignOut()}
	}
}

// signInError turns a sign-in failure into the line shown above the form.
func signInError(err error) string {
	var authErr *gateway.AuthError
	if errors.As(err, &authErr) {
		return "Sign-in refused: " + authErr.Message
	}
	return "Sign-in failed: " + err.Error()
}

// cycleTheme applies the next theme and persists the choice.
func (m *Model) cycleTheme() tea.Cmd {
	next := theme.Next(m.config.Display.Theme)
	theme.Apply(next)
	m.config.Display.Theme = next

	cfg := *m.config
	path := m.configPath
	return func() tea.Msg {
		return themeSavedMsg{name: next, err: model.SaveConfig(path, &cfg)}
	}
}

// executeCommand handles a command string from the command palette.
func (m *Model) executeCommand(cmd string) tea.Cmd {
	switch cmd {
	case "refresh", "sync":
		m.setStatus("refreshing...", false)
		return m.engine.RefreshAll()
	case "read-all", "read all":
		m.setStatus("marking all as read...", false)
		return m.markAllRead()
	case "delete-all", "delete all":
		return m.confirmDeleteAll()
	case "trash":
		return m.toggleTrash()
	case "count":
		return m.serverCount()
	case "theme":
		return m.cycleTheme()
	case "logout", "signout":
		return m.signOut()
	case "quit", "q":
		return m.quit()
	default:
		m.setStatus("unknown command: "+cmd, true)
		return nil
	}
}
