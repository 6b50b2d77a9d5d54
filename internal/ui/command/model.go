package command

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/claims-inbox/internal/theme"
)

// CommandMsg is emitted when the user executes a command.
type CommandMsg string

// Entry describes one palette command.
type Entry struct {
	Name string
	Help string
}

// Commands lists what the palette understands, in display order.
var Commands = []Entry{
	{Name: "refresh", Help: "poll the platform now"},
	{Name: "read-all", Help: "mark every notification as read"},
	{Name: "delete-all", Help: "move every notification to the trash"},
	{Name: "trash", Help: "toggle the trash view"},
	{Name: "count", Help: "show the platform's unread counter"},
	{Name: "theme", Help: "cycle default, dark and light colours"},
	{Name: "logout", Help: "sign out and forget the session"},
	{Name: "quit", Help: "exit"},
}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "type a command..."
	ti.Prompt = ": "
	ti.ShowSuggestions = true
	ti.Focus()
	ti.Width = width - 6

	names := make([]string, len(Commands))
	for i, c := range Commands {
		names[i] = c.Name
	}
	ti.SetSuggestions(names)

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "enter" {
		cmd := strings.ToLower(strings.TrimSpace(m.input.Value()))
		m.input.Reset()
		if cmd != "" {
			return m, func() tea.Msg {
				return CommandMsg(cmd)
			}
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the palette with the commands matching the current input.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	title := titleStyle.Render("Command Palette")
	input := m.input.View()

	prefix := strings.ToLower(strings.TrimSpace(m.input.Value()))
	var rows []string
	for _, c := range Commands {
		if !strings.HasPrefix(c.Name, prefix) {
			continue
		}
		rows = append(rows, lipgloss.NewStyle().Width(12).Foreground(theme.ColorBlue).Render(c.Name)+
			theme.HelpStyle.Render(c.Help))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, title, input, "", strings.Join(rows, "\n"))

	return theme.PanelStyle.
		Width(m.width - 4).
		Render(content)
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	m.input.Reset()
	return m.input.Focus()
}
