package cmd

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// styles holds the lipgloss styles used for terminal output.
type styles struct {
	Title    lipgloss.Style
	Time     lipgloss.Style
	Task     lipgloss.Style
	Category lipgloss.Style
	Duration lipgloss.Style
	Index    lipgloss.Style
	Muted    lipgloss.Style
	Prompt   lipgloss.Style
	Error    lipgloss.Style
	Warning  lipgloss.Style
	Success  lipgloss.Style
}

// newStyles returns the styles rendered for w. Writers that are not
// terminals get plain text.
func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)

	// Color palette
	primary := lipgloss.Color("99")     // Purple
	secondary := lipgloss.Color("39")   // Cyan
	accent := lipgloss.Color("212")     // Pink
	muted := lipgloss.Color("240")      // Gray
	success := lipgloss.Color("82")     // Green
	warning := lipgloss.Color("214")    // Orange
	errorColor := lipgloss.Color("196") // Red

	return styles{
		Title:    r.NewStyle().Foreground(primary).Bold(true),
		Time:     r.NewStyle().Foreground(secondary),
		Task:     r.NewStyle().Foreground(lipgloss.Color("252")),
		Category: r.NewStyle().Foreground(primary),
		Duration: r.NewStyle().Foreground(accent),
		Index:    r.NewStyle().Foreground(muted),
		Muted:    r.NewStyle().Foreground(muted),
		Prompt:   r.NewStyle().Foreground(secondary).Bold(true),
		Error:    r.NewStyle().Foreground(errorColor),
		Warning:  r.NewStyle().Foreground(warning),
		Success:  r.NewStyle().Foreground(success),
	}
}
