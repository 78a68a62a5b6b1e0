// Package styles provides shared lipgloss styles for CLI output.
package styles

import "github.com/charmbracelet/lipgloss"

var (
	Primary = lipgloss.Color("#7aa2f7")
	Muted   = lipgloss.Color("#565f89")
	Success = lipgloss.Color("#9ece6a")
	Warning = lipgloss.Color("#e0af68")
	Error   = lipgloss.Color("#f7768e")
)

var (
	// Header styles section titles such as the row count line.
	Header = lipgloss.NewStyle().Bold(true).Foreground(Primary)

	// Dim styles secondary detail like field names and counters.
	Dim = lipgloss.NewStyle().Foreground(Muted)

	// Ok and Fail prefix status lines.
	Ok   = lipgloss.NewStyle().Bold(true).Foreground(Success)
	Warn = lipgloss.NewStyle().Bold(true).Foreground(Warning)
	Fail = lipgloss.NewStyle().Bold(true).Foreground(Error)
)

// Status renders a one-line status message with a colored marker.
func Status(ok bool, msg string) string {
	if ok {
		return Ok.Render("✓") + " " + msg
	}
	return Fail.Render("✗") + " " + msg
}
