package tui

import "github.com/charmbracelet/lipgloss"

// styles contains all lipgloss styles used by the TUI.
var styles = struct {
	// Layout styles
	Container lipgloss.Style
	Divider   lipgloss.Style

	// Header styles
	Meta lipgloss.Style

	// Current-view card styles
	CardTitle   lipgloss.Style
	Rank        lipgloss.Style
	Score       lipgloss.Style
	Address     lipgloss.Style
	Placeholder lipgloss.Style
	CardError   lipgloss.Style

	// Playlist styles
	PaneTitle    lipgloss.Style
	PlaylistRow  lipgloss.Style
	ActiveRow    lipgloss.Style
	PlaylistKind lipgloss.Style

	// Footer style
	Footer lipgloss.Style

	// Event styles
	EventView  lipgloss.Style
	EventCycle lipgloss.Style
	EventFeed  lipgloss.Style
	EventWarn  lipgloss.Style
	Error      lipgloss.Style

	// Status colors
	StatusIdle    lipgloss.Style
	StatusRunning lipgloss.Style
	StatusWaiting lipgloss.Style
	StatusHeld    lipgloss.Style
	StatusStopped lipgloss.Style
}{
	// Layout styles
	Container: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")),

	Divider: lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")),

	// Header styles
	Meta: lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")),

	// Current-view card styles
	CardTitle: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("39")),

	Rank: lipgloss.NewStyle().
		Foreground(lipgloss.Color("250")),

	Score: lipgloss.NewStyle().
		Foreground(lipgloss.Color("220")),

	Address: lipgloss.NewStyle().
		Underline(true).
		Foreground(lipgloss.Color("75")),

	Placeholder: lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")),

	CardError: lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")),

	// Playlist styles
	PaneTitle: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("245")),

	PlaylistRow: lipgloss.NewStyle().
		Foreground(lipgloss.Color("250")),

	ActiveRow: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("82")),

	PlaylistKind: lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")),

	// Footer style
	Footer: lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")),

	// Event styles
	EventView: lipgloss.NewStyle().
		Foreground(lipgloss.Color("250")),

	EventCycle: lipgloss.NewStyle().
		Foreground(lipgloss.Color("177")),

	EventFeed: lipgloss.NewStyle().
		Foreground(lipgloss.Color("114")),

	EventWarn: lipgloss.NewStyle().
		Foreground(lipgloss.Color("214")),

	Error: lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")),

	// Status colors
	StatusIdle: lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")),

	StatusRunning: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("82")),

	StatusWaiting: lipgloss.NewStyle().
		Foreground(lipgloss.Color("214")),

	StatusHeld: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("220")),

	StatusStopped: lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")),
}
