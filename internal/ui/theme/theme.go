package theme

import (
	"image/color"

	"charm.land/lipgloss/v2"
)

// Color palette, muted for clinic terminals
var (
	Primary  = lipgloss.Color("#2563EB") // Blue
	Success  = lipgloss.Color("#16A34A") // Green
	Warning  = lipgloss.Color("#D97706") // Amber
	Danger   = lipgloss.Color("#EA580C") // Orange
	Critical = lipgloss.Color("#DC2626") // Red
	Text     = lipgloss.Color("#F8FAFC") // White
	TextDim  = lipgloss.Color("#94A3B8") // Slate
	Border   = lipgloss.Color("#334155") // Slate
)

// Typography
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary)

	Label = lipgloss.NewStyle().
		Foreground(TextDim).
		Width(14)

	Body = lipgloss.NewStyle().
		Foreground(Text)

	Hint = lipgloss.NewStyle().
		Foreground(TextDim).
		Italic(true)

	Card = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Border).
		Padding(0, 1)
)

// Badge renders s as a bold label in c.
func Badge(s string, c color.Color) string {
	return lipgloss.NewStyle().Bold(true).Foreground(c).Render(s)
}

// Level colors a risk level or alert severity.
func Level(s string) string {
	switch s {
	case "critical":
		return Badge("CRITICAL", Critical)
	case "high":
		return Badge("HIGH", Danger)
	case "moderate":
		return Badge("MODERATE", Warning)
	case "low":
		return Badge("LOW", Success)
	}
	return s
}

// Status colors an alert status.
func Status(s string) string {
	switch s {
	case "open":
		return Badge(s, Critical)
	case "acknowledged":
		return Badge(s, Warning)
	case "resolved":
		return Badge(s, TextDim)
	}
	return s
}

// Field renders one "label value" line.
func Field(label, value string) string {
	return Label.Render(label) + Body.Render(value)
}
