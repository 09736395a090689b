package main

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary     = lipgloss.Color("#101F38")
	colorAccent      = lipgloss.Color("#8BC34A")
	colorMuted       = lipgloss.Color("#6b7785")
	colorDestructive = lipgloss.Color("#e53935")
	colorWarning     = lipgloss.Color("#FFC107")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Width(22)

	valueStyle = lipgloss.NewStyle().
			Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimary).
			Padding(0, 1)
)

// statusStyle colours a run status.
func statusStyle(status string) lipgloss.Style {
	switch status {
	case "complete":
		return lipgloss.NewStyle().Foreground(colorAccent)
	case "aborted":
		return lipgloss.NewStyle().Foreground(colorDestructive)
	default:
		return lipgloss.NewStyle().Foreground(colorWarning)
	}
}
