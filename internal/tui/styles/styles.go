// ABOUTME: Shared lipgloss styles for consistent TUI appearance
// ABOUTME: Defines colors, badges, and text styles used by the watch screen

package styles

import "github.com/charmbracelet/lipgloss"

var (
	// Colors - Core palette
	Primary = lipgloss.Color("#7C3AED") // Purple
	Good    = lipgloss.Color("#10B981") // Green
	Warning = lipgloss.Color("#F59E0B") // Amber
	Danger  = lipgloss.Color("#EF4444") // Red
	Muted   = lipgloss.Color("#6B7280") // Gray
	Text    = lipgloss.Color("#F9FAFB") // Light

	// Base styles
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary).
		MarginBottom(1)

	Subtitle = lipgloss.NewStyle().
			Foreground(Muted).
			MarginBottom(1)

	// Panels
	Panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Muted).
		Padding(1, 2)

	// Labels and values
	Label = lipgloss.NewStyle().
		Foreground(Muted)

	Value = lipgloss.NewStyle().
		Foreground(Text).
		Bold(true)

	// Help text
	Help = lipgloss.NewStyle().
		Foreground(Muted).
		MarginTop(1)

	// Event log timestamps
	EventTime = lipgloss.NewStyle().
			Foreground(Muted)

	// Session state badges
	StateAuthenticated = lipgloss.NewStyle().
				Foreground(Good).
				Bold(true)

	StatePending = lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true)

	StateLoggedOut = lipgloss.NewStyle().
			Foreground(Muted).
			Bold(true)

	StateExpired = lipgloss.NewStyle().
			Foreground(Danger).
			Bold(true)
)

// StateBadge renders a session state name with its status color.
func StateBadge(state string) string {
	switch state {
	case "authenticated":
		return StateAuthenticated.Render(state)
	case "restoring", "authenticating", "expiry_pending":
		return StatePending.Render(state)
	case "expired":
		return StateExpired.Render(state)
	default:
		return StateLoggedOut.Render(state)
	}
}
