package theme

import (
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/claims-inbox/internal/model"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange  = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// Names accepted by Apply and stored under display.theme.
const (
	NameDefault = "default"
	NameDark    = "dark"
	NameLight   = "light"
)

var (
	detectOnce   sync.Once
	detectedDark bool
)

// Apply forces the adaptive palette to one side. NameDefault goes back to
// the background detected on the first call.
func Apply(name string) {
	detectOnce.Do(func() { detectedDark = lipgloss.HasDarkBackground() })

	switch name {
	case NameDark:
		lipgloss.SetHasDarkBackground(true)
	case NameLight:
		lipgloss.SetHasDarkBackground(false)
	default:
		lipgloss.SetHasDarkBackground(detectedDark)
	}
}

// Next returns the theme that follows name in the toggle cycle.
func Next(name string) string {
	switch name {
	case NameDark:
		return NameLight
	case NameLight:
		return NameDefault
	default:
		return NameDark
	}
}

// HeaderStyle is used for top-level section headers and the application title.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// ErrorBarStyle replaces StatusBarStyle while a failure is on display.
var ErrorBarStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorRed).
	Padding(0, 1)

// PanelStyle wraps overlay content such as help and the command palette.
var PanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// ListItemStyle is the base style for items in a list.
var ListItemStyle = lipgloss.NewStyle().
	PaddingLeft(2)

// SelectedItemStyle highlights the currently focused list item.
var SelectedItemStyle = lipgloss.NewStyle().
	PaddingLeft(1).
	Bold(true).
	Foreground(ColorBlue).
	Border(lipgloss.NormalBorder(), false, false, false, true).
	BorderForeground(ColorBlue)

// HelpStyle is used for keyboard shortcut hints and help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// DimmedStyle renders read notifications and secondary text.
var DimmedStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// UnreadDotStyle marks unread rows.
var UnreadDotStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorBlue)

// TrashBadgeStyle labels rows in the trash view.
var TrashBadgeStyle = lipgloss.NewStyle().
	Foreground(ColorRed).
	Padding(0, 1)

// ToastStyle is the frame of a single toast. The border takes the colour
// of the notification type.
var ToastStyle = lipgloss.NewStyle().
	Padding(0, 1).
	Border(lipgloss.RoundedBorder())

// TypeColor returns the accent colour for a notification type.
func TypeColor(t model.NotificationType) lipgloss.AdaptiveColor {
	switch t {
	case model.TypeCaseCreated, model.TypeReportDownloaded:
		return ColorBlue
	case model.TypeCaseStatusChanged:
		return ColorYellow
	case model.TypeReportCreated, model.TypeReportRequestConfirmation, model.TypeDownloadCompleted:
		return ColorGreen
	case model.TypeReportRequestToOwner:
		return ColorOrange
	case model.TypeValidationCodeGenerated:
		return ColorMagenta
	default:
		return ColorGray
	}
}

// TypeIcon returns the glyph shown next to a notification of type t.
func TypeIcon(t model.NotificationType) string {
	switch t {
	case model.TypeCaseCreated:
		return "📁"
	case model.TypeCaseStatusChanged:
		return "🔄"
	case model.TypeReportCreated:
		return "📄"
	case model.TypeReportRequestToOwner:
		return "⚠️"
	case model.TypeReportRequestConfirmation, model.TypeDownloadCompleted:
		return "✅"
	case model.TypeValidationCodeGenerated:
		return "🔐"
	case model.TypeReportDownloaded:
		return "📥"
	default:
		return "🔔"
	}
}

// TypeStyle returns a colour-coded badge style for a notification type.
func TypeStyle(t model.NotificationType) lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(TypeColor(t))
}

// TypeLabel returns a short human label for a notification type.
func TypeLabel(t model.NotificationType) string {
	switch t {
	case model.TypeCaseCreated:
		return "case"
	case model.TypeCaseStatusChanged:
		return "status"
	case model.TypeReportCreated:
		return "report"
	case model.TypeReportRequestToOwner:
		return "request"
	case model.TypeReportRequestConfirmation:
		return "confirmed"
	case model.TypeValidationCodeGenerated:
		return "code"
	case model.TypeReportDownloaded:
		return "downloaded"
	case model.TypeDownloadCompleted:
		return "download"
	default:
		return "notice"
	}
}
