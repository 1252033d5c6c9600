package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette. Adaptive so the view reads on light and dark terminals.
var (
	colorAccent  = lipgloss.AdaptiveColor{Light: "63", Dark: "62"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "250", Dark: "240"}
	colorSubtle  = lipgloss.AdaptiveColor{Light: "245", Dark: "241"}
	colorOK      = lipgloss.AdaptiveColor{Light: "28", Dark: "42"}
	colorWarn    = lipgloss.AdaptiveColor{Light: "136", Dark: "214"}
	colorBad     = lipgloss.AdaptiveColor{Light: "124", Dark: "203"}
	colorRequeue = lipgloss.AdaptiveColor{Light: "31", Dark: "81"}
)

func paneBorder(c lipgloss.TerminalColor) lipgloss.Style {
	return lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(c)
}

var (
	StyleFocusedBorder   = paneBorder(colorAccent)
	StyleUnfocusedBorder = paneBorder(colorMuted)
)

// Task and round status colours.
var (
	StyleStatusRunning     = lipgloss.NewStyle().Foreground(colorWarn).Bold(true)
	StyleStatusComplete    = lipgloss.NewStyle().Foreground(colorOK).Bold(true)
	StyleStatusFailed      = lipgloss.NewStyle().Foreground(colorBad).Bold(true)
	StyleStatusRescheduled = lipgloss.NewStyle().Foreground(colorRequeue)
	StyleStatusPending     = lipgloss.NewStyle().Foreground(colorMuted)
)

var (
	StyleTitle    = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	StyleHelp     = lipgloss.NewStyle().Foreground(colorSubtle)
	StyleFact     = lipgloss.NewStyle().Foreground(colorOK)
	StyleSelected = lipgloss.NewStyle().Background(colorAccent).Foreground(lipgloss.Color("0"))
)
