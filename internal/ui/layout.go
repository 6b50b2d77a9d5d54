package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/claims-inbox/internal/model"
	"github.com/nhle/claims-inbox/internal/theme"
)

// toastWidth is the outer width of a single toast, border included.
const toastWidth = 44

// Layout manages the multi-panel terminal layout dimensions.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
// HeaderHeight and StatusBarHeight default to 1.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height available for the main content area,
// accounting for the header and status bar.
func (l Layout) ContentHeight() int {
	return l.Height - l.HeaderHeight - l.StatusBarHeight
}

// RenderHeader renders the top header bar with a title and sync status.
func (l Layout) RenderHeader(title string, syncStatus string) string {
	titleRendered := theme.HeaderStyle.Render(title)

	statusRendered := theme.HeaderStyle.
		Align(lipgloss.Right).
		Render(syncStatus)

	gap := l.Width -
		lipgloss.Width(titleRendered) -
		lipgloss.Width(statusRendered)
	if gap < 0 {
		gap = 0
	}

	filler := theme.HeaderStyle.Render(
		lipgloss.NewStyle().
			Width(gap).
			Background(theme.HeaderStyle.GetBackground()).
			Render(""),
	)

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		titleRendered,
		filler,
		statusRendered,
	)
}

// RenderStatusBar renders the bottom status bar with keyboard hints.
func (l Layout) RenderStatusBar(hints string) string {
	return l.renderBar(theme.StatusBarStyle, hints)
}

// RenderErrorBar renders the status bar in the error colours.
func (l Layout) RenderErrorBar(message string) string {
	return l.renderBar(theme.ErrorBarStyle, message)
}

func (l Layout) renderBar(style lipgloss.Style, text string) string {
	rendered := style.Render(text)

	gap := l.Width - lipgloss.Width(rendered)
	if gap < 0 {
		gap = 0
	}

	filler := style.Render(
		lipgloss.NewStyle().
			Width(gap).
			Background(style.GetBackground()).
			Render(""),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, filler)
}

// RenderWithFrame composes a full terminal view by vertically joining
// the header, content area, and status bar.
func (l Layout) RenderWithFrame(
	header string,
	content string,
	statusBar string,
) string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		content,
		statusBar,
	)
}

// RenderToast renders one toast: type icon, title and message inside a
// border coloured by the notification type.
func RenderToast(n model.Notification) string {
	inner := toastWidth - 4
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.TypeColor(n.Type)).
		Render(truncate(theme.TypeIcon(n.Type)+" "+n.Title, inner))
	body := theme.DimmedStyle.Render(truncate(n.Message, inner))

	return theme.ToastStyle.
		Width(toastWidth - 2).
		BorderForeground(theme.TypeColor(n.Type)).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, body))
}

// RenderToasts stacks the given toasts against the right edge. It returns
// "" when there is nothing to show.
func (l Layout) RenderToasts(toasts []model.Notification) string {
	if len(toasts) == 0 {
		return ""
	}
	rendered := make([]string, len(toasts))
	for i, n := range toasts {
		rendered[i] = RenderToast(n)
	}
	return lipgloss.PlaceHorizontal(
		l.Width,
		lipgloss.Right,
		lipgloss.JoinVertical(lipgloss.Right, rendered...),
	)
}

// truncate shortens s to at most width cells, ending with an ellipsis.
func truncate(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}
