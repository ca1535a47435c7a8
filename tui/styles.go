package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/samaelod/paesim/protocol"
	"github.com/samaelod/paesim/types"
)

var (
	colorPrimary   = lipgloss.Color("#7D56F4")
	colorSecondary = lipgloss.Color("#F4A956") // running, selection
	colorText      = lipgloss.Color("#FAFAFA")
	colorSubtext   = lipgloss.Color("#777777")
	colorSuccess   = lipgloss.Color("#43BF6D") // completed, not blocked
	colorError     = lipgloss.Color("#FF5F5F") // error, blocked, malformed
)

var (
	styleWindow = lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(colorPrimary).
			Align(lipgloss.Center)

	stylePanelTitled = lipgloss.NewStyle().
				Border(lipgloss.ThickBorder()).
				BorderForeground(colorSubtext).
				Padding(0, 1)

	styleTitle = lipgloss.NewStyle().
			Background(colorPrimary).
			Foreground(colorText).
			Padding(0, 1).
			Bold(true)

	styleAppTitle = lipgloss.NewStyle().
			Foreground(colorSecondary).
			Bold(true).
			Padding(0, 1).
			Align(lipgloss.Center)

	styleScreenTooSmall = lipgloss.NewStyle().
				Foreground(colorSecondary).
				Bold(true).
				Align(lipgloss.Center, lipgloss.Center)
)

// source menu cards
var (
	styleMenuContainer = lipgloss.NewStyle().Padding(1)

	styleMenuItem = lipgloss.NewStyle().
			Foreground(colorText).
			Border(lipgloss.ThickBorder()).
			BorderForeground(colorSubtext).
			Padding(1, 4).
			Margin(0, 1).
			Align(lipgloss.Center).
			Width(24)

	styleMenuItemSelected = styleMenuItem.
				BorderForeground(colorSecondary).
				Bold(true)
)

// list rows and detail panels
var (
	styleSelected = lipgloss.NewStyle().Foreground(colorSecondary).Bold(true)
	styleRow      = lipgloss.NewStyle().Foreground(colorText)
	styleLabel    = lipgloss.NewStyle().Foreground(colorSubtext).Width(12)
	styleValue    = lipgloss.NewStyle().Foreground(colorText)
	styleSubtext  = lipgloss.NewStyle().Foreground(colorSubtext)
	styleError    = lipgloss.NewStyle().Foreground(colorError).Bold(true)

	scrollbarTrack = lipgloss.NewStyle().Foreground(colorSubtext)
	scrollbarThumb = lipgloss.NewStyle().Foreground(colorPrimary)
)

// statusColor is the details border for a session in status s.
func statusColor(s types.SessionStatus) lipgloss.Color {
	switch s {
	case types.StatusRunning:
		return colorSecondary
	case types.StatusCompleted:
		return colorSuccess
	case types.StatusError:
		return colorError
	default:
		return colorSubtext
	}
}

// countdownColor mirrors what the AFFCAR would display for c.
func countdownColor(c protocol.DisplayColor) lipgloss.Color {
	if c == protocol.ColorBlocked {
		return colorError
	}
	return colorSuccess
}
