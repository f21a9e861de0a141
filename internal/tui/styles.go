package tui

import "github.com/charmbracelet/lipgloss"

// Catppuccin Mocha colors used by the views.
var (
	Surface0 = lipgloss.Color("#313244")
	Surface1 = lipgloss.Color("#45475a")
	Subtext0 = lipgloss.Color("#a6adc8")
	Text     = lipgloss.Color("#cdd6f4")
	Green    = lipgloss.Color("#a6e3a1")
	Yellow   = lipgloss.Color("#f9e2af")
	Red      = lipgloss.Color("#f38ba8")
	Mauve    = lipgloss.Color("#cba6f7")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Mauve).
			Background(Surface0).
			Padding(0, 1)

	RunningStyle = lipgloss.NewStyle().
			Foreground(Green).
			Bold(true)

	PausedStyle = lipgloss.NewStyle().
			Foreground(Yellow).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Red).
			Bold(true)

	TableBorderStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(Surface1)
)
