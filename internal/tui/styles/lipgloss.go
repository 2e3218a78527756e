// Package styles holds the console color theme.
package styles

import "github.com/charmbracelet/lipgloss"

// Styles contains lipgloss styles derived from theme tokens.
type Styles struct {
	Theme     Theme
	Title     lipgloss.Style
	Text      lipgloss.Style
	Muted     lipgloss.Style
	Accent    lipgloss.Style
	Panel     lipgloss.Style
	Key       lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Idle      lipgloss.Style
	Recording lipgloss.Style
	Executing lipgloss.Style
	Relaxed   lipgloss.Style
	Frozen    lipgloss.Style
}

// DefaultStyles builds styles from the default theme.
func DefaultStyles() Styles {
	return BuildStyles(DefaultTheme)
}

// ForTheme builds styles for a named theme, falling back to the default.
func ForTheme(name string) Styles {
	if theme, ok := Themes[name]; ok {
		return BuildStyles(theme)
	}
	return DefaultStyles()
}

// BuildStyles converts theme tokens into lipgloss styles.
func BuildStyles(theme Theme) Styles {
	t := theme.Tokens
	fg := func(color string) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
	}

	return Styles{
		Theme:     theme,
		Title:     fg(t.Text).Bold(true),
		Text:      fg(t.Text),
		Muted:     fg(t.TextMuted),
		Accent:    fg(t.Accent),
		Panel:     lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color(t.Border)).Padding(0, 1),
		Key:       fg(t.Accent).Bold(true),
		Success:   fg(t.Success),
		Warning:   fg(t.Warning),
		Error:     fg(t.Error),
		Idle:      fg(t.Success).Bold(true),
		Recording: fg(t.Recording).Bold(true),
		Executing: fg(t.Warning).Bold(true),
		Relaxed:   fg(t.Accent),
		Frozen:    fg(t.TextMuted),
	}
}
