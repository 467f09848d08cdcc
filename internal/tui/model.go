package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/awidmer/marquee/internal/events"
	"github.com/awidmer/marquee/internal/surface"
	"github.com/awidmer/marquee/internal/viewmodel"
)

// eventLine is a formatted event in the feed.
type eventLine struct {
	Time  time.Time
	Text  string
	Style lipgloss.Style
}

// eventMsg wraps an event received from the event channel.
type eventMsg events.Event

// contentMsg carries content rendered by a loader into the current-view card.
type contentMsg struct {
	ViewID  string
	Content surface.Content
}

// model is the bubbletea model for the preview TUI.
type model struct {
	// Event channel from the router
	eventChan <-chan events.Event

	// Rotation state, synced from the engine on each tick and nudged by
	// events in between
	status   viewmodel.RotationStatus
	playlist []viewmodel.PlaylistRow

	// What the current-view card shows
	cardID string
	card   surface.Content

	// Event feed
	eventLines []eventLine

	// Display state
	width      int
	height     int
	scrollPos  int
	autoScroll bool
	spinner    spinner.Model

	// Control callbacks
	onHold    func()
	onResume  func()
	onAdvance func()
	onQuit    func()

	// Engine state provider; nil in tests that drive the model directly
	rotation Rotation
}

// newModel creates the initial model state.
func newModel(eventChan <-chan events.Event, rotation Rotation, onHold, onResume, onAdvance, onQuit func()) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.StatusWaiting

	m := model{
		eventChan:  eventChan,
		autoScroll: true,
		spinner:    sp,
		onHold:     onHold,
		onResume:   onResume,
		onAdvance:  onAdvance,
		onQuit:     onQuit,
		rotation:   rotation,
	}
	m.status.State = "idle"
	m.syncFromRotation()
	return m
}

// syncFromRotation replaces the displayed rotation state with a fresh engine
// snapshot. The snapshot is authoritative; events only bridge the gap
// between ticks.
func (m *model) syncFromRotation() {
	if m.rotation == nil {
		return
	}
	m.status, m.playlist = viewmodel.FromSnapshot(m.rotation.Snapshot(), m.rotation.Playlist())
}

// Init implements tea.Model. Starts event listening and periodic ticks.
func (m model) Init() tea.Cmd {
	return tea.Batch(
		waitForEvent(m.eventChan),
		doTick(),
		m.spinner.Tick,
		tea.EnterAltScreen,
	)
}

// visibleLines returns how many event lines fit in the feed pane.
// Height minus: container borders (2), header (1), dividers (3), the
// current-view row (cardHeight), footer (1).
func (m model) visibleLines() int {
	return max(1, m.height-cardHeight-7)
}
