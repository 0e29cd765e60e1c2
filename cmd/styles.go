package cmd

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	ColorAccent = lipgloss.Color("#A8D8EA")
	ColorMuted  = lipgloss.Color("#596E79")
	ColorWarn   = lipgloss.Color("#FFE66D")
)

var (
	StyleTitle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)

	StyleTableHeader = lipgloss.NewStyle().
				Foreground(ColorAccent).
				Bold(true).
				Padding(0, 1)

	StyleTableRow = lipgloss.NewStyle().
			Padding(0, 1)

	StyleTableBorder = lipgloss.NewStyle().
				Foreground(ColorMuted)

	StyleWarn = lipgloss.NewStyle().
			Foreground(ColorWarn)
)
