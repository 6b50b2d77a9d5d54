package confirm

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// ResultMsg is dispatched once the user answers. Payload is whatever was
// handed to Ask.
type ResultMsg struct {
	Confirmed bool
	Payload   any
}

// Model asks a single yes/no question.
type Model struct {
	form      *huh.Form
	confirmed *bool
	payload   any
	width     int
}

// New creates an idle confirmation dialog.
func New(width int) Model {
	return Model{confirmed: new(bool), width: width}
}

// Ask shows question and remembers payload until the answer arrives.
func (m *Model) Ask(question, affirmative string, payload any) tea.Cmd {
	*m.confirmed = false
	m.payload = payload
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(question).
				Affirmative(affirmative).
				Negative("Cancel").
				Value(m.confirmed),
		),
	).WithWidth(m.dialogWidth()).WithShowHelp(false)
	return m.form.Init()
}

// Update handles messages for the dialog.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		res := ResultMsg{Confirmed: *m.confirmed, Payload: m.payload}
		m.form = nil
		return m, func() tea.Msg { return res }
	case huh.StateAborted:
		res := ResultMsg{Payload: m.payload}
		m.form = nil
		return m, func() tea.Msg { return res }
	}

	return m, cmd
}

// View renders the dialog.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}
	return lipgloss.NewStyle().Padding(1, 2).Render(m.form.View())
}

// SetSize updates the dialog width.
func (m *Model) SetSize(width int) {
	m.width = width
}

func (m Model) dialogWidth() int {
	w := m.width - 4
	if w > 60 {
		w = 60
	}
	if w < 30 {
		w = 30
	}
	return w
}
