// Package styles holds the lipgloss styles shared by TUI views.
package styles

import "github.com/charmbracelet/lipgloss"

// Palette.
var (
	ColorPrimary = lipgloss.Color("#0078D4")
	ColorSuccess = lipgloss.Color("#107C10")
	ColorError   = lipgloss.Color("#D13438")
	ColorMuted   = lipgloss.Color("#8A8886")
)

// Styles is the set of styles a view renders with.
type Styles struct {
	Title   lipgloss.Style
	Body    lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Help    lipgloss.Style
	Spinner lipgloss.Style
	Box     lipgloss.Style
}

// DefaultStyles returns the default styles.
func DefaultStyles() *Styles {
	return &Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary).MarginBottom(1),
		Body:    lipgloss.NewStyle(),
		Success: lipgloss.NewStyle().Bold(true).Foreground(ColorSuccess),
		Error:   lipgloss.NewStyle().Foreground(ColorError),
		Help:    lipgloss.NewStyle().Foreground(ColorMuted).MarginTop(1),
		Spinner: lipgloss.NewStyle().Foreground(ColorPrimary),
		Box:     lipgloss.NewStyle().Padding(1, 2),
	}
}
