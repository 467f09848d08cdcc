package tui

import (
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/awidmer/marquee/internal/events"
	"github.com/awidmer/marquee/internal/surface"
)

const (
	// maxEventLines is the maximum number of event lines to keep in the buffer.
	maxEventLines = 1000
	// trimEventLines is the number of lines to remove when buffer exceeds max.
	trimEventLines = 100
	// tickInterval is the interval for periodic engine state sync.
	tickInterval = time.Second
)

// channelClosedMsg signals that the event channel was closed.
type channelClosedMsg struct{}

// tickMsg signals a periodic tick for engine state synchronization.
type tickMsg time.Time

// waitForEvent creates a command that waits for the next event from the channel.
// Returns channelClosedMsg if the channel is closed.
func waitForEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return channelClosedMsg{}
		}
		return eventMsg(event)
	}
}

// doTick creates a command that waits for the tick interval and sends a tickMsg.
func doTick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model. It handles all message types and updates the model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case contentMsg:
		m.cardID = msg.ViewID
		m.card = msg.Content
		if m.card.Kind == surface.ContentLoading {
			// Restart the spinner; its tick chain stopped with the last
			// non-loading card. Duplicate ticks are deduped by tag.
			return m, m.spinner.Tick
		}
		return m, nil

	case spinner.TickMsg:
		if m.cardID == "" || m.card.Kind == surface.ContentLoading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case eventMsg:
		m.handleEvent(events.Event(msg))
		return m, waitForEvent(m.eventChan)

	case channelClosedMsg:
		// Event channel closed - clean exit
		slog.Info("event channel closed, exiting TUI")
		return m, tea.Quit

	case tickMsg:
		m.syncFromRotation()
		return m, doTick()

	default:
		return m, nil
	}
}

// handleKey processes keyboard input and returns the updated model and command.
func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.onQuit != nil {
			m.onQuit()
		}
		return m, tea.Quit

	case " ":
		// Toggle the operator hold. The flip here is optimistic; the next
		// tick or hold/resume event confirms it.
		if m.status.Held {
			if m.onResume != nil {
				m.onResume()
			}
			m.status.Held = false
		} else {
			if m.onHold != nil {
				m.onHold()
			}
			m.status.Held = true
		}
		return m, nil

	case "n":
		if m.onAdvance != nil {
			m.onAdvance()
		}
		return m, nil

	case "up", "k":
		m.autoScroll = false
		if m.scrollPos > 0 {
			m.scrollPos--
		}
		return m, nil

	case "down", "j":
		maxScroll := len(m.eventLines) - m.visibleLines()
		if m.scrollPos < maxScroll {
			m.scrollPos++
		}
		if m.scrollPos >= maxScroll {
			m.autoScroll = true
		}
		return m, nil

	case "home", "g":
		m.autoScroll = false
		m.scrollPos = 0
		return m, nil

	case "end", "G":
		m.autoScroll = true
		m.scrollPos = max(0, len(m.eventLines)-m.visibleLines())
		return m, nil

	default:
		return m, nil
	}
}

// handleEvent processes an event and updates model state.
func (m *model) handleEvent(event events.Event) {
	switch e := event.(type) {
	case *events.StateChangedEvent:
		m.status.State = e.To

	case *events.CycleStopEvent:
		m.status.State = "stopped"

	case *events.RotationHeldEvent:
		m.status.Held = true

	case *events.RotationResumedEvent:
		m.status.Held = false

	case *events.ViewActivateEvent:
		m.status.Position = e.Position
		m.status.CurrentID = e.ViewID
		m.status.Activations = e.Activation
		// Embed activations pause the rotation until the view is ready
		m.status.Waiting = e.Kind == "embed"
		for i := range m.playlist {
			m.playlist[i].Active = i == e.Position
			if i == e.Position {
				m.status.CurrentName = m.playlist[i].Title
			}
		}

	case *events.ViewReadyEvent:
		m.status.Waiting = false

	case *events.ViewLoadTimeoutEvent:
		m.status.Waiting = false
	}

	// Add to event log with formatting
	text := events.Format(event)
	if text != "" {
		el := eventLine{
			Time:  event.Timestamp(),
			Text:  text,
			Style: StyleForEvent(event),
		}
		m.eventLines = append(m.eventLines, el)

		// Trim buffer if over max lines
		if len(m.eventLines) > maxEventLines {
			m.eventLines = m.eventLines[trimEventLines:]
			// Adjust scroll position after trimming
			m.scrollPos = max(0, m.scrollPos-trimEventLines)
		}

		// Auto-scroll to bottom if enabled
		if m.autoScroll {
			maxScroll := len(m.eventLines) - m.visibleLines()
			if maxScroll > 0 {
				m.scrollPos = maxScroll
			}
		}
	}
}
