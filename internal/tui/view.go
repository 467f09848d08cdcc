package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/awidmer/marquee/internal/events"
	"github.com/awidmer/marquee/internal/surface"
)

const (
	minWidth  = 60
	minHeight = 20

	// cardHeight is the line count of the current-view row, card and
	// playlist included.
	cardHeight = 9

	// playlistWidthPercent is the share of the width given to the playlist.
	playlistWidthPercent = 32
	minPlaylistCols      = 20
)

// View implements tea.Model. This renders the full TUI display.
func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	// Handle too small terminal
	if m.width < minWidth || m.height < minHeight {
		return m.renderTooSmall()
	}

	var sections []string
	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderDivider())
	sections = append(sections, m.renderMain())
	sections = append(sections, m.renderDivider())
	sections = append(sections, m.renderEvents())
	sections = append(sections, m.renderDivider())
	sections = append(sections, m.renderFooter())

	content := strings.Join(sections, "\n")

	// Render content in container without setting Height
	// Height() can cause clipping issues; let content determine size
	rendered := styles.Container.
		Width(safeWidth(m.width - 2)).
		Render(content)

	// Place container at top-left of terminal
	return lipgloss.Place(m.width, m.height, lipgloss.Left, lipgloss.Top, rendered)
}

// renderTooSmall renders a minimal message for terminals that are too small.
func (m model) renderTooSmall() string {
	return fmt.Sprintf("Terminal too small (%dx%d). Need %dx%d minimum.",
		m.width, m.height, minWidth, minHeight)
}

// renderHeader renders the status line: rotation state on the left,
// position and activation counters on the right.
func (m model) renderHeader() string {
	w := safeWidth(m.width - 4) // Account for container borders

	status := m.renderStatus()

	var meta string
	if m.status.Views > 0 {
		meta = fmt.Sprintf("view %d/%d · %d activations",
			m.status.Position+1, m.status.Views, m.status.Activations)
	} else {
		meta = "no views configured"
	}
	right := styles.Meta.Render(meta)

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		status,
		strings.Repeat(" ", max(1, w-lipgloss.Width(status)-lipgloss.Width(right))),
		right,
	)
}

// renderStatus renders the rotation state token. Held and waiting override
// the plain running label.
func (m model) renderStatus() string {
	var label string
	var style lipgloss.Style

	switch {
	case m.status.State == "stopped" || m.status.State == "stopping":
		label, style = strings.ToUpper(m.status.State), styles.StatusStopped
	case m.status.Held:
		label, style = "HELD", styles.StatusHeld
	case m.status.Waiting:
		label, style = "LOADING VIEW", styles.StatusWaiting
	case m.status.State == "running":
		label, style = "RUNNING", styles.StatusRunning
	default:
		label, style = strings.ToUpper(m.status.State), styles.StatusIdle
	}

	return style.Render(label)
}

// renderDivider renders a horizontal divider line.
func (m model) renderDivider() string {
	w := safeWidth(m.width - 4) // Account for container borders
	return styles.Divider.Render(strings.Repeat("─", w))
}

// renderMain renders the current-view card next to the playlist sidebar.
func (m model) renderMain() string {
	w := safeWidth(m.width - 4)

	playlistWidth := w * playlistWidthPercent / 100
	if playlistWidth < minPlaylistCols {
		playlistWidth = minPlaylistCols
	}
	cardWidth := safeWidth(w - playlistWidth - 2)

	card := fitLines(m.cardLines(cardWidth), cardHeight)
	playlist := fitLines(m.playlistLines(playlistWidth), cardHeight)

	return lipgloss.JoinHorizontal(lipgloss.Top,
		strings.Join(card, "\n"),
		"  ",
		strings.Join(playlist, "\n"),
	)
}

// cardLines renders the current-view card for the given width, one string
// per line. fitLines pads the result to the card height.
func (m model) cardLines(w int) []string {
	if m.cardID == "" {
		return []string{
			styles.CardTitle.Render("current view"),
			"",
			m.spinner.View() + " " + styles.Placeholder.Render("waiting for the first view..."),
		}
	}

	title := m.card.Title
	if title == "" {
		title = m.cardID
	}
	lines := []string{styles.CardTitle.Render(truncateLine(title, w)), ""}

	switch m.card.Kind {
	case surface.ContentLoading:
		lines = append(lines, m.spinner.View()+" "+styles.Placeholder.Render("loading..."))

	case surface.ContentLeaderboard:
		lines = append(lines, m.leaderboardLines(w)...)

	case surface.ContentEmpty:
		lines = append(lines, styles.Placeholder.Render("no entries yet"))

	case surface.ContentError:
		lines = append(lines, styles.CardError.Render(truncateLine(m.errorText(), w)))
		if m.card.Err != nil && m.card.Err.Attempts > 0 {
			lines = append(lines, styles.Placeholder.Render(
				fmt.Sprintf("gave up after %d attempts", m.card.Err.Attempts)))
		}

	case surface.ContentEmbed:
		lines = append(lines,
			styles.Address.Render(truncateLine(m.card.Address, w)),
			"",
			styles.Placeholder.Render("embedded page opens on the kiosk display"))
	}

	return lines
}

// leaderboardLines renders scored rows, rank and name left, score right.
func (m model) leaderboardLines(w int) []string {
	rows := m.card.Rows
	maxRows := cardHeight - 2
	if len(rows) > maxRows {
		rows = rows[:maxRows]
	}

	var lines []string
	for i, entry := range rows {
		score := fmt.Sprintf("%.0f", entry.Score)
		rank := fmt.Sprintf("%2d. %s", i+1, entry.Name)
		rank = truncateLine(rank, max(10, w-len(score)-2))

		gap := strings.Repeat(" ", max(1, w-lipgloss.Width(rank)-len(score)))
		lines = append(lines, styles.Rank.Render(rank)+gap+styles.Score.Render(score))
	}
	return lines
}

// errorText describes the classified failure behind an error placeholder.
func (m model) errorText() string {
	if m.card.Err == nil {
		return "feed unavailable"
	}
	return fmt.Sprintf("feed unavailable: %s", m.card.Err.Kind)
}

// playlistLines renders the sidebar: one line per view, the current one
// marked. When the playlist is longer than the pane, the window slides to
// keep the current view visible.
func (m model) playlistLines(w int) []string {
	lines := []string{styles.PaneTitle.Render("playlist")}

	if len(m.playlist) == 0 {
		return append(lines, styles.Placeholder.Render("(empty)"))
	}

	maxRows := cardHeight - 1
	start := 0
	for i, row := range m.playlist {
		if row.Active && i >= maxRows {
			start = i - maxRows + 1
			break
		}
	}

	end := min(start+maxRows, len(m.playlist))
	for _, row := range m.playlist[start:end] {
		marker := "  "
		style := styles.PlaylistRow
		if row.Active {
			marker = "▸ "
			style = styles.ActiveRow
		}

		kind := styles.PlaylistKind.Render("[" + row.Kind + "]")
		text := fmt.Sprintf("%s%d. %s", marker, row.Position+1, row.Title)
		text = truncateLine(text, max(8, w-lipgloss.Width(kind)-1))

		lines = append(lines, style.Render(text)+" "+kind)
	}
	return lines
}

// renderEvents renders the scrollable event feed.
func (m model) renderEvents() string {
	visible := m.visibleLines()
	w := safeWidth(m.width - 4) // Account for container borders

	if len(m.eventLines) == 0 {
		// Center a placeholder message
		placeholder := "Waiting for events..."
		padding := strings.Repeat("\n", visible/2)
		return padding + lipgloss.PlaceHorizontal(w, lipgloss.Center, placeholder)
	}

	// Calculate scroll bounds
	scrollPos := safeScroll(m.scrollPos, len(m.eventLines), visible)

	// Get visible slice of events
	endPos := min(scrollPos+visible, len(m.eventLines))
	visibleEvents := m.eventLines[scrollPos:endPos]

	// Render each event line
	var lines []string
	for _, el := range visibleEvents {
		lines = append(lines, m.renderEventLine(el, w))
	}

	// Pad with empty lines if needed
	for len(lines) < visible {
		lines = append(lines, "")
	}

	return strings.Join(lines, "\n")
}

// renderEventLine renders a single event with timestamp and styling.
func (m model) renderEventLine(el eventLine, maxWidth int) string {
	// Format timestamp as HH:MM:SS
	prefix := el.Time.Format("15:04:05") + " "

	// Calculate available width for text
	textWidth := maxWidth - len(prefix)
	if textWidth < 10 {
		textWidth = 10
	}

	text := truncateLine(el.Text, textWidth)
	return styles.Meta.Render(prefix) + el.Style.Render(text)
}

// renderFooter renders keyboard shortcuts help text.
func (m model) renderFooter() string {
	var help string
	if m.status.Held {
		help = "space: resume  n: next  q: quit  ↑/↓: scroll  g/G: top/bottom"
	} else {
		help = "space: hold  n: next  q: quit  ↑/↓: scroll  g/G: top/bottom"
	}
	return styles.Footer.Render(help)
}

// fitLines pads or trims a line slice to exactly n lines.
func fitLines(lines []string, n int) []string {
	if len(lines) > n {
		return lines[:n]
	}
	for len(lines) < n {
		lines = append(lines, "")
	}
	return lines
}

// truncateLine shortens a line to maxLen runes, adding an ellipsis when cut.
func truncateLine(s string, maxLen int) string {
	if maxLen < 4 {
		maxLen = 4
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

// safeWidth returns a width that is at least 1 to prevent negative values.
func safeWidth(w int) int {
	if w < 1 {
		return 1
	}
	return w
}

// safeScroll clamps scroll position to valid bounds.
func safeScroll(pos, totalLines, visibleLines int) int {
	if pos < 0 {
		return 0
	}
	maxScroll := totalLines - visibleLines
	if maxScroll < 0 {
		return 0
	}
	if pos > maxScroll {
		return maxScroll
	}
	return pos
}

// StyleForEvent returns the appropriate style for an event type.
func StyleForEvent(event events.Event) lipgloss.Style {
	if event == nil {
		return styles.EventView
	}

	switch event.(type) {
	case *events.ViewActivateEvent, *events.ViewReadyEvent, *events.ViewRenderEvent:
		return styles.EventView
	case *events.ViewLoadTimeoutEvent, *events.FetchRetryEvent, *events.WatchdogRecoveredEvent:
		return styles.EventWarn
	case *events.FetchOKEvent:
		return styles.EventFeed
	case *events.FetchFailedEvent, *events.ErrorEvent:
		return styles.Error
	case *events.CycleStartEvent, *events.CycleStopEvent, *events.StateChangedEvent,
		*events.RotationHeldEvent, *events.RotationResumedEvent, *events.ConfigReloadedEvent:
		return styles.EventCycle
	default:
		return styles.EventView
	}
}
