package notiflist

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/claims-inbox/internal/keys"
	"github.com/nhle/claims-inbox/internal/model"
	"github.com/nhle/claims-inbox/internal/store"
	"github.com/nhle/claims-inbox/internal/theme"
)

// LoadedMsg carries a fresh read of one partition from the store.
type LoadedMsg struct {
	Trash         bool
	Notifications []model.Notification
	Err           error
}

// MarkReadMsg asks the app to mark the selected notification as read.
type MarkReadMsg struct{ ID int64 }

// DeleteMsg asks the app to move the selected notification to the trash.
type DeleteMsg struct{ Notification model.Notification }

// RestoreMsg asks the app to restore the selected trashed notification.
type RestoreMsg struct{ ID int64 }

// Model lists either the active inbox or the trash of the signed-in user.
type Model struct {
	list   list.Model
	store  store.Store
	keys   *keys.KeyMap
	trash  bool
	user   string
	width  int
	height int
}

// New creates a list over the active partition when trash is false, or
// over the trash otherwise.
func New(s store.Store, k *keys.KeyMap, trash bool, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{trash: trash}, width, height-2)
	l.Title = "Notifications"
	if trash {
		l.Title = "Trash"
	}
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.SetStatusBarItemName("notification", "notifications")
	l.Styles.Title = theme.HeaderStyle

	return Model{
		list:   l,
		store:  s,
		keys:   k,
		trash:  trash,
		width:  width,
		height: height,
	}
}

// SetUser scopes the list to userID. The caller reloads afterwards.
func (m *Model) SetUser(userID string) {
	m.user = userID
}

// Init returns a command that loads the list.
func (m Model) Init() tea.Cmd {
	return m.Load()
}

// Update handles messages for the list.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		if msg.Trash != m.trash || msg.Err != nil {
			return m, nil
		}
		items := make([]list.Item, len(msg.Notifications))
		for i, n := range msg.Notifications {
			items[i] = NotificationItem{Notification: n}
		}
		cmd := m.list.SetItems(items)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKeys(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) handleKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	selected, ok := m.Selected()

	switch {
	case !m.trash && key.Matches(msg, m.keys.MarkRead):
		if !ok || selected.Read {
			return m, nil
		}
		return m, func() tea.Msg { return MarkReadMsg{ID: selected.ID} }

	case !m.trash && key.Matches(msg, m.keys.Delete):
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg { return DeleteMsg{Notification: selected} }

	case m.trash && key.Matches(msg, m.keys.Restore):
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg { return RestoreMsg{ID: selected.ID} }
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// Selected returns the focused notification.
func (m Model) Selected() (model.Notification, bool) {
	item, ok := m.list.SelectedItem().(NotificationItem)
	if !ok {
		return model.Notification{}, false
	}
	return item.Notification, true
}

// Len returns the number of listed notifications.
func (m Model) Len() int {
	return len(m.list.Items())
}

// View renders the list.
func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return m.renderEmptyState()
	}
	return m.list.View()
}

func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if m.trash {
		return style.Render("Trash is empty.")
	}
	return style.Render(fmt.Sprintf(
		"No notifications.\n\nPress %s to refresh.",
		m.keys.Refresh.Help().Key,
	))
}

// Load returns a tea.Cmd that reads the list's partition from the store.
func (m Model) Load() tea.Cmd {
	s, user, trash := m.store, m.user, m.trash
	return func() tea.Msg {
		if user == "" {
			return LoadedMsg{Trash: trash}
		}
		var (
			ns  []model.Notification
			err error
		)
		if trash {
			ns, err = s.Trash(context.Background(), user)
		} else {
			ns, err = s.Active(context.Background(), user)
		}
		return LoadedMsg{Trash: trash, Notifications: ns, Err: err}
	}
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
}
