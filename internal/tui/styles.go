package tui

import (
	"github.com/charmbracelet/lipgloss"

	"neembleeat/internal/notify"
	"neembleeat/internal/session"
)

// Styling
var (
	docStyle = lipgloss.NewStyle().Margin(1, 2)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#0a84ff")).
			Padding(0, 1)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#30d158")).
			Padding(0, 1)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#1c1c1e")).
			Background(lipgloss.Color("#ffd60a")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#ff453a")).
			Padding(0, 1)

	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8e8e93"))

	struckStyle = mutedStyle.Copy().Strikethrough(true)

	buttonStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 2)

	disabledButtonStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#8e8e93")).
				Background(lipgloss.Color("#3a3a3c")).
				Padding(0, 2)
)

func badgeStyle(t session.Tone) lipgloss.Style {
	switch t {
	case session.ToneSuccess:
		return successStyle
	case session.ToneInfo:
		return infoStyle
	case session.ToneWarning:
		return warningStyle
	case session.ToneDanger:
		return errorStyle
	case session.ToneMuted:
		return mutedStyle
	}
	return lipgloss.NewStyle().Padding(0, 1)
}

func toastStyle(k notify.Kind) lipgloss.Style {
	switch k {
	case notify.KindSuccess:
		return successStyle
	case notify.KindError:
		return errorStyle
	}
	return infoStyle
}
