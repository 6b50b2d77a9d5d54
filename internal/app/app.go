package app

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/claims-inbox/internal/inbox"
	"github.com/nhle/claims-inbox/internal/keys"
	"github.com/nhle/claims-inbox/internal/model"
	"github.com/nhle/claims-inbox/internal/session"
	"github.com/nhle/claims-inbox/internal/store"
	appsync "github.com/nhle/claims-inbox/internal/sync"
	"github.com/nhle/claims-inbox/internal/toast"
	"github.com/nhle/claims-inbox/internal/ui"
	"github.com/nhle/claims-inbox/internal/ui/command"
	"github.com/nhle/claims-inbox/internal/ui/confirm"
	helpview "github.com/nhle/claims-inbox/internal/ui/help"
	"github.com/nhle/claims-inbox/internal/ui/login"
	"github.com/nhle/claims-inbox/internal/ui/notiflist"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewInbox ViewState = iota
	ViewTrash
	ViewHelp
	ViewCommand
	ViewLogin
	ViewConfirm
)

// Deps are the long-lived services the UI drives. cmd/inbox builds them.
type Deps struct {
	Store      store.Store
	Engine     *appsync.Engine
	Inbox      *inbox.Manager
	Session    *session.Manager
	Toasts     *toast.Queue
	Config     *model.AppConfig
	ConfigPath string
	Logger     *slog.Logger
}

// Model is the root Bubble Tea model that manages view routing, layout
// and the toast overlay.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap

	store      store.Store
	engine     *appsync.Engine
	inbox      *inbox.Manager
	session    *session.Manager
	toasts     *toast.Queue
	config     *model.AppConfig
	configPath string
	logger     *slog.Logger

	inboxList   notiflist.Model
	trashList   notiflist.Model
	helpView    helpview.Model
	commandView command.Model
	loginView   login.Model
	confirmView confirm.Model

	// toastCh is poked by the queue's OnChange hook, which runs on timer
	// and poll goroutines.
	toastCh chan struct{}

	// loginInit starts the sign-in form built by New.
	loginInit tea.Cmd

	ready            bool
	unreadCount      int
	authErrorMessage string
	statusMessage    string
	statusIsError    bool
}

// New creates the root application model.
func New(d Deps) Model {
	k := keys.DefaultKeyMap()
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	toastCh := make(chan struct{}, 1)
	d.Toasts.OnChange(func() {
		select {
		case toastCh <- struct{}{}:
		default:
		}
	})

	m := Model{
		currentView: ViewInbox,
		keys:        k,
		store:       d.Store,
		engine:      d.Engine,
		inbox:       d.Inbox,
		session:     d.Session,
		toasts:      d.Toasts,
		config:      d.Config,
		configPath:  d.ConfigPath,
		logger:      d.Logger.With("component", "app"),
		inboxList:   notiflist.New(d.Store, k, false, 80, 24),
		trashList:   notiflist.New(d.Store, k, true, 80, 24),
		helpView:    helpview.New(k, 80, 24),
		commandView: command.New(80, 24),
		loginView:   login.New(80, 24),
		confirmView: confirm.New(80),
		toastCh:     toastCh,
	}

	user := d.Session.UserID()
	m.inboxList.SetUser(user)
	m.trashList.SetUser(user)
	if user == "" {
		m.currentView = ViewLogin
		m.loginInit = m.loginView.Start("")
	}
	return m
}

// Init starts the sync engine and loads the cached inbox, or shows the
// sign-in form when there is no stored session.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.engine.Start(), m.waitForToasts()}
	if m.currentView == ViewLogin {
		cmds = append(cmds, m.loginInit)
	} else {
		cmds = append(cmds, m.inboxList.Init())
	}
	return tea.Batch(cmds...)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentWidth := m.layout.ContentWidth()
		contentHeight := m.layout.ContentHeight()
		m.inboxList.SetSize(contentWidth, contentHeight)
		m.trashList.SetSize(contentWidth, contentHeight)
		m.helpView.SetSize(contentWidth, contentHeight)
		m.commandView.SetSize(contentWidth, contentHeight)
		m.loginView.SetSize(contentWidth, contentHeight)
		m.confirmView.SetSize(contentWidth)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case appsync.SyncResultMsg:
		waitCmd := m.engine.WaitForNextResult()
		if msg.User != m.session.UserID() {
			return m, waitCmd
		}
		switch {
		case msg.AuthError != nil:
			m.authErrorMessage = msg.AuthError.Message
		case msg.Error == nil:
			m.authErrorMessage = ""
			m.unreadCount = msg.Unread
		}
		return m, tea.Batch(m.inboxList.Load(), waitCmd)

	case appsync.UnreadCountMsg:
		waitCmd := m.engine.WaitForNextResult()
		if msg.User != m.session.UserID() {
			return m, waitCmd
		}
		m.unreadCount = msg.Count
		return m, tea.Batch(m.inboxList.Load(), waitCmd)

	case toastsChangedMsg:
		return m, m.waitForToasts()

	case toastClickedMsg:
		if msg.err != nil {
			m.setStatus("open notification: "+msg.err.Error(), true)
		}
		return m, nil

	case notiflist.LoadedMsg:
		if msg.Err != nil {
			m.logger.Warn("loading notifications", "trash", msg.Trash, "error", msg.Err)
			m.setStatus("loading notifications failed: "+msg.Err.Error(), true)
			return m, nil
		}
		var cmd tea.Cmd
		if msg.Trash {
			m.trashList, cmd = m.trashList.Update(msg)
		} else {
			m.inboxList, cmd = m.inboxList.Update(msg)
		}
		return m, cmd

	case notiflist.MarkReadMsg:
		return m, m.markRead(msg.ID)

	case notiflist.DeleteMsg:
		m.previousView = m.currentView
		m.currentView = ViewConfirm
		return m, m.confirmView.Ask(
			fmt.Sprintf("Move %q to the trash?", msg.Notification.Title),
			"Delete",
			deleteRequest{id: msg.Notification.ID},
		)

	case notiflist.RestoreMsg:
		return m, m.restore(msg.ID)

	case confirm.ResultMsg:
		m.currentView = m.previousView
		if !msg.Confirmed {
			return m, nil
		}
		switch p := msg.Payload.(type) {
		case deleteRequest:
			return m, m.deleteNotification(p.id)
		case deleteAllRequest:
			return m, m.deleteAll()
		}
		return m, nil

	case commandResultMsg:
		return m, m.handleCommandResult(msg.result)

	case serverCountMsg:
		if msg.err != nil {
			m.setStatus("unread count failed: "+msg.err.Error(), true)
			return m, nil
		}
		m.setStatus(fmt.Sprintf("unread: %d on the platform, %d here", msg.count, m.unreadCount), false)
		return m, nil

	case login.SubmitMsg:
		m.setStatus("signing in as "+msg.Username+"...", false)
		return m, m.signIn(msg)

	case login.CancelMsg:
		return m, m.quit()

	case signedInMsg:
		m.inboxList.SetUser(msg.user.Name)
		m.trashList.SetUser(msg.user.Name)
		m.currentView = ViewInbox
		m.authErrorMessage = ""
		m.setStatus("signed in as "+msg.user.DisplayName(), false)
		return m, m.inboxList.Load()

	case signInFailedMsg:
		m.statusMessage = ""
		return m, m.loginView.Start(signInError(msg.err))

	case signedOutMsg:
		if msg.err != nil {
			m.logger.Warn("signing out", "error", msg.err)
		}
		m.toasts.Clear()
		m.inboxList.SetUser("")
		m.trashList.SetUser("")
		m.unreadCount = 0
		m.authErrorMessage = ""
		m.statusMessage = ""
		m.currentView = ViewLogin
		return m, tea.Batch(
			m.inboxList.Load(),
			m.trashList.Load(),
			m.loginView.Start(""),
		)

	case themeSavedMsg:
		if msg.err != nil {
			m.setStatus("theme "+msg.name+" applied, saving failed: "+msg.err.Error(), true)
			return m, nil
		}
		m.setStatus("theme: "+msg.name, false)
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		return m, m.executeCommand(string(msg))

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, m.quit()
		}
		if cmd, handled := m.handleGlobalKey(msg); handled {
			return m, cmd
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// handleGlobalKey processes keys that act on the application rather than
// the focused view. It reports false when the key should fall through.
func (m *Model) handleGlobalKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch m.currentView {
	case ViewLogin:
		return nil, false

	case ViewConfirm:
		if key.Matches(msg, m.keys.Back) {
			m.currentView = m.previousView
			return nil, true
		}
		return nil, false

	case ViewHelp:
		if key.Matches(msg, m.keys.Help, m.keys.Back, m.keys.Quit) {
			m.currentView = m.previousView
			return nil, true
		}
		return nil, false

	case ViewCommand:
		if key.Matches(msg, m.keys.Back) {
			m.currentView = m.previousView
			return nil, true
		}
		return nil, false
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit(), true

	case key.Matches(msg, m.keys.Help):
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return nil, true

	case key.Matches(msg, m.keys.Command):
		m.previousView = m.currentView
		m.currentView = ViewCommand
		return m.commandView.Focus(), true

	case key.Matches(msg, m.keys.Refresh):
		m.setStatus("refreshing...", false)
		return m.engine.RefreshAll(), true

	case key.Matches(msg, m.keys.Trash):
		return m.toggleTrash(), true

	case m.currentView == ViewTrash && key.Matches(msg, m.keys.Back):
		m.currentView = ViewInbox
		return nil, true

	case m.currentView == ViewInbox && key.Matches(msg, m.keys.MarkAllRead):
		m.setStatus("marking all as read...", false)
		return m.markAllRead(), true

	case m.currentView == ViewInbox && key.Matches(msg, m.keys.DeleteAll):
		return m.confirmDeleteAll(), true

	case key.Matches(msg, m.keys.DismissToast):
		if n, ok := m.toasts.Newest(); ok {
			m.toasts.Dismiss(n.ID)
		}
		return nil, true

	case key.Matches(msg, m.keys.OpenToast):
		n, ok := m.toasts.Newest()
		if !ok {
			return nil, true
		}
		return m.clickToast(n.ID), true

	case key.Matches(msg, m.keys.SignOut):
		return m.signOut(), true
	}

	return nil, false
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewInbox:
		m.inboxList, cmd = m.inboxList.Update(msg)
	case ViewTrash:
		m.trashList, cmd = m.trashList.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	case ViewLogin:
		m.loginView, cmd = m.loginView.Update(msg)
	case ViewConfirm:
		m.confirmView, cmd = m.confirmView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(m.headerTitle(), m.syncStatus())

	content := m.renderContent()
	if m.currentView != ViewLogin {
		if strip := m.layout.RenderToasts(m.toasts.Visible(m.config.Toast.MaxVisible)); strip != "" {
			content = lipgloss.JoinVertical(lipgloss.Left, strip, content)
		}
	}
	content = lipgloss.NewStyle().
		Height(m.layout.ContentHeight()).
		MaxHeight(m.layout.ContentHeight()).
		Render(content)

	return m.layout.RenderWithFrame(header, content, m.statusBar())
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewInbox:
		return m.inboxList.View()
	case ViewTrash:
		return m.trashList.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	case ViewLogin:
		return m.loginView.View()
	case ViewConfirm:
		return m.confirmView.View()
	default:
		return ""
	}
}

func (m Model) headerTitle() string {
	title := "Claims Inbox"
	if u := m.session.Current(); u != nil {
		title += " — " + u.DisplayName()
	}
	if m.unreadCount > 0 {
		title += fmt.Sprintf(" [%d unread]", m.unreadCount)
	}
	return title
}

// syncStatus returns a short string describing the poll loop.
func (m Model) syncStatus() string {
	status := m.engine.Status()
	if status.User == "" {
		return "signed out"
	}

	switch status.State {
	case appsync.SyncRunning:
		return "syncing..."
	case appsync.SyncError:
		return "⚠ platform unreachable"
	}
	if status.LastSync.IsZero() {
		return "idle"
	}
	return "synced " + status.LastSync.Format("15:04:05")
}

func (m Model) statusBar() string {
	if m.authErrorMessage != "" && (m.currentView == ViewInbox || m.currentView == ViewTrash) {
		return m.layout.RenderErrorBar(m.authErrorMessage)
	}
	if m.statusMessage != "" && m.statusIsError {
		return m.layout.RenderErrorBar(m.statusMessage)
	}

	hints := m.keyHints()
	if m.statusMessage != "" {
		hints = m.statusMessage + " | " + hints
	}
	return m.layout.RenderStatusBar(hints)
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | esc back"
	case ViewLogin:
		return "enter next | ctrl+c quit"
	case ViewConfirm:
		return "←/→ choose | enter confirm | esc cancel"
	case ViewTrash:
		return "u restore | t inbox | r refresh | ? help | q quit"
	default:
		parts := []string{"enter read", "M read all", "d delete", "t trash", "? help", "q quit"}
		if m.toasts.Len() > 0 {
			parts = append([]string{"o open toast", "x dismiss"}, parts...)
		}
		return strings.Join(parts, " | ")
	}
}

func (m *Model) setStatus(message string, isError bool) {
	m.statusMessage = message
	m.statusIsError = isError
}

// quit stops the poll loop and releases toast timers before exiting.
func (m Model) quit() tea.Cmd {
	m.engine.Stop()
	m.toasts.Close()
	return tea.Quit
}

// waitForToasts returns a tea.Cmd that waits for the next toast queue
// change so the overlay is redrawn.
func (m Model) waitForToasts() tea.Cmd {
	ch := m.toastCh
	return func() tea.Msg {
		<-ch
		return toastsChangedMsg{}
	}
}
