// Package theme holds the terminal styles of the chat client.
package theme

import "github.com/charmbracelet/lipgloss"

// Colors is a color palette
type Colors struct {
	Primary   lipgloss.Color
	Accent    lipgloss.Color
	Text      lipgloss.Color
	TextMuted lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color
}

// CurrentTheme is the palette used by Styles
var CurrentTheme = Colors{
	Primary:   lipgloss.Color("#00ff00"),
	Accent:    lipgloss.Color("#5fafff"),
	Text:      lipgloss.Color("#ffffff"),
	TextMuted: lipgloss.Color("#808080"),
	Warning:   lipgloss.Color("#ffaf00"),
	Error:     lipgloss.Color("#ff5f5f"),
}

// SetTheme sets the current theme
func SetTheme(colors Colors) {
	CurrentTheme = colors
}

// Styles groups the styles used when printing chat output
type Styles struct {
	User      lipgloss.Style
	Assistant lipgloss.Style
	Muted     lipgloss.Style
	Info      lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Title     lipgloss.Style
	Active    lipgloss.Style
}

// NewStyles builds styles from the current theme
func NewStyles() Styles {
	c := CurrentTheme
	return Styles{
		User:      lipgloss.NewStyle().Foreground(c.Accent).Bold(true),
		Assistant: lipgloss.NewStyle().Foreground(c.Primary).Bold(true),
		Muted:     lipgloss.NewStyle().Foreground(c.TextMuted),
		Info:      lipgloss.NewStyle().Foreground(c.Text),
		Warning:   lipgloss.NewStyle().Foreground(c.Warning),
		Error:     lipgloss.NewStyle().Foreground(c.Error).Bold(true),
		Title:     lipgloss.NewStyle().Foreground(c.Text).Bold(true),
		Active:    lipgloss.NewStyle().Foreground(c.Primary),
	}
}
