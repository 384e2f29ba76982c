package console

import "github.com/charmbracelet/lipgloss"

// Semantic colors
var (
	Destructive = lipgloss.Color("#e53935") // Red
	Success     = lipgloss.Color("#8BC34A") // Lime Green
	Warning     = lipgloss.Color("#FFC107") // Yellow
	Info        = lipgloss.Color("#2196F3") // Blue
	Muted       = lipgloss.Color("#6b7280")
	Primary     = lipgloss.Color("#101F38") // Dark Blue
)

// Styles holds the console styles, bound to one renderer so color output
// follows the destination writer (plain text when it is not a terminal).
type Styles struct {
	Title   lipgloss.Style
	Prompt  lipgloss.Style
	Success lipgloss.Style
	Failure lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style
	Label   lipgloss.Style
	Plan    lipgloss.Style
	Muted   lipgloss.Style
}

// NewStyles builds styles for renderer r.
func NewStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Title:   r.NewStyle().Bold(true).Foreground(Success),
		Prompt:  r.NewStyle().Bold(true).Foreground(Info),
		Success: r.NewStyle().Bold(true).Foreground(Success),
		Failure: r.NewStyle().Bold(true).Foreground(Destructive),
		Warning: r.NewStyle().Bold(true).Foreground(Warning),
		Info:    r.NewStyle().Foreground(Info),
		Label:   r.NewStyle().Bold(true),
		Plan: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Muted).
			Padding(0, 1),
		Muted: r.NewStyle().Foreground(Muted),
	}
}
