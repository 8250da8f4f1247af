package dashboard

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/proxmon/internal/ui"
)

// Base styles for the dashboard
var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	TitleStyle = lipgloss.NewStyle().
			Foreground(ui.ColorAccent).
			Bold(true)

	FooterStyle = lipgloss.NewStyle().
			Foreground(ui.ColorMuted).
			Padding(0, 1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ui.ColorSecondary)

	ValueStyle = lipgloss.NewStyle().
			Foreground(ui.ColorPrimary)

	MutedStyle = lipgloss.NewStyle().
			Foreground(ui.ColorMuted)
)

// Tab styles
var (
	TabStyle = lipgloss.NewStyle().
			Padding(0, 2).
			Foreground(ui.ColorPrimary)

	TabActiveStyle = TabStyle.
			Foreground(ui.ColorAccent).
			Bold(true).
			Underline(true)

	// TabPendingStyle marks a tab whose access is not yet confirmed.
	TabPendingStyle = TabStyle.
			Foreground(ui.ColorMuted).
			Faint(true)
)

// Card styles
var (
	CardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ui.ColorMuted).
			Padding(0, 1).
			MarginBottom(1)

	CardSelectedStyle = CardStyle.
				BorderForeground(ui.ColorAccent)

	NodeNameStyle = lipgloss.NewStyle().
			Bold(true)

	GuestRunningStyle = lipgloss.NewStyle().
				Foreground(ui.ColorSuccess)

	GuestStoppedStyle = lipgloss.NewStyle().
				Foreground(ui.ColorError)
)

// Alert toggle styles
var (
	AlertOnStyle = lipgloss.NewStyle().
			Foreground(ui.ColorSuccess).
			Bold(true)

	AlertOffStyle = lipgloss.NewStyle().
			Foreground(ui.ColorMuted)

	AlertPendingStyle = lipgloss.NewStyle().
				Foreground(ui.ColorWarning)
)

// Row and dialog styles
var (
	RowSelectedStyle = lipgloss.NewStyle().
				Foreground(ui.ColorAccent).
				Bold(true)

	RowLockedStyle = lipgloss.NewStyle().
			Foreground(ui.ColorMuted)

	DialogStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ui.ColorWarning).
			Padding(1, 2)
)

// Widths used when rendering node cards.
const (
	barWidth     = 20
	maxGuestRows = 8
)
