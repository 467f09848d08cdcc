// Package tui provides the terminal preview surface for marquee using
// bubbletea: a live card for the current view, the playlist with a position
// marker, and a scrolling event feed.
package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/awidmer/marquee/internal/engine"
	"github.com/awidmer/marquee/internal/events"
	"github.com/awidmer/marquee/internal/surface"
	"github.com/awidmer/marquee/internal/view"
)

// Rotation provides the engine state the TUI syncs from on each tick.
type Rotation interface {
	Snapshot() engine.Snapshot
	Playlist() []view.Descriptor
}

// TUI is the terminal preview for a rotation running in the same process.
// It implements surface.Renderer, so the loaders paint the current-view
// card directly.
type TUI struct {
	eventChan <-chan events.Event
	rotation  Rotation
	onHold    func()
	onResume  func()
	onAdvance func()
	onQuit    func()

	mu      sync.Mutex
	program *tea.Program
}

// Option configures the TUI.
type Option func(*TUI)

// New creates a new TUI reading from the given event channel.
func New(eventChan <-chan events.Event, opts ...Option) *TUI {
	t := &TUI{
		eventChan: eventChan,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// WithRotation sets the engine state provider for the header and playlist.
func WithRotation(rot Rotation) Option {
	return func(t *TUI) {
		t.rotation = rot
	}
}

// SetRotation wires the engine state provider after construction. The preview
// builds the TUI before the engine, because the loaders render into it.
func (t *TUI) SetRotation(rot Rotation) {
	t.mu.Lock()
	t.rotation = rot
	t.mu.Unlock()
}

// WithOnHold sets the callback invoked when the user holds the rotation.
func WithOnHold(fn func()) Option {
	return func(t *TUI) {
		t.onHold = fn
	}
}

// WithOnResume sets the callback invoked when the user resumes the rotation.
func WithOnResume(fn func()) Option {
	return func(t *TUI) {
		t.onResume = fn
	}
}

// WithOnAdvance sets the callback invoked when the user presses 'n'.
func WithOnAdvance(fn func()) Option {
	return func(t *TUI) {
		t.onAdvance = fn
	}
}

// WithOnQuit sets the callback invoked when the user quits.
func WithOnQuit(fn func()) Option {
	return func(t *TUI) {
		t.onQuit = fn
	}
}

// Run starts the TUI and blocks until it exits. Without a TTY it falls back
// to plain line-by-line event output.
func (t *TUI) Run() error {
	if !isTerminal() {
		return t.runSimple()
	}

	t.mu.Lock()
	rot := t.rotation
	t.mu.Unlock()

	m := newModel(t.eventChan, rot, t.onHold, t.onResume, t.onAdvance, t.onQuit)

	p := tea.NewProgram(m, tea.WithAltScreen())

	t.mu.Lock()
	t.program = p
	t.mu.Unlock()

	_, err := p.Run()

	t.mu.Lock()
	t.program = nil
	t.mu.Unlock()

	return err
}

// Render implements surface.Renderer by forwarding content into the running
// program. Content rendered before Run starts or after it returns is
// dropped; the next activation repaints the card anyway.
func (t *TUI) Render(viewID string, c surface.Content) error {
	t.mu.Lock()
	p := t.program
	t.mu.Unlock()

	if p == nil {
		return nil
	}
	p.Send(contentMsg{ViewID: viewID, Content: c})
	return nil
}
