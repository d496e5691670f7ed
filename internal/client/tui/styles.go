package tui

import "github.com/charmbracelet/lipgloss"

// Color palette. Soft paper-and-ink tones; a diary shouldn't look like a
// dashboard.
var (
	ColorAccent = lipgloss.Color("#8BB8E8") // washed blue
	ColorMuted  = lipgloss.Color("#6b7280")
	ColorError  = lipgloss.Color("#e53935")
	ColorBorder = lipgloss.Color("#4b5563")
)

// Styles bundles the lipgloss styles used across views, so every view
// draws from the same definitions.
type Styles struct {
	Header    lipgloss.Style
	DateLabel lipgloss.Style
	Selected  lipgloss.Style
	Normal    lipgloss.Style
	Muted     lipgloss.Style
	Error     lipgloss.Style
	FormBox   lipgloss.Style
	Help      lipgloss.Style
}

// DefaultStyles returns the standard theme.
func DefaultStyles() Styles {
	return Styles{
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent).
			Padding(0, 1),
		DateLabel: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent),
		Selected: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(ColorAccent),
		Normal: lipgloss.NewStyle(),
		Muted: lipgloss.NewStyle().
			Foreground(ColorMuted),
		Error: lipgloss.NewStyle().
			Foreground(ColorError),
		FormBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(1, 2),
		Help: lipgloss.NewStyle().
			Foreground(ColorMuted).
			Padding(1, 1, 0, 1),
	}
}
