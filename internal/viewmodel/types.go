// Package viewmodel provides shared display models for the TUI and the
// status command.
package viewmodel

import (
	"time"

	"github.com/awidmer/marquee/internal/engine"
	"github.com/awidmer/marquee/internal/view"
)

// PlaylistRow is one playlist line as rendered by the TUI sidebar and the
// status command.
type PlaylistRow struct {
	Position int    // zero-based slot in the rotation
	ID       string // view identifier
	Title    string // display title, falls back to ID
	Kind     string // embed or leaderboard
	Active   bool   // currently shown on the kiosk
}

// RotationStatus summarizes the rotation for display.
type RotationStatus struct {
	State       string    // idle, running, stopping, stopped
	Position    int       // current slot
	Views       int       // playlist length
	CurrentID   string    // active view ID (empty when idle)
	CurrentName string    // active view display title
	Held        bool      // operator hold in effect
	Waiting     bool      // paused for an embed view load
	Activations uint64    // total view activations this run
	StartedAt   time.Time // when the rotation started
}

// FromSnapshot converts an engine snapshot and playlist into display models.
func FromSnapshot(snap engine.Snapshot, playlist []view.Descriptor) (RotationStatus, []PlaylistRow) {
	status := RotationStatus{
		State:       string(snap.State),
		Position:    snap.Position,
		Views:       snap.Views,
		CurrentID:   snap.Current.ID,
		CurrentName: snap.Current.DisplayTitle(),
		Held:        snap.Held,
		Waiting:     snap.Waiting,
		Activations: snap.Activations,
		StartedAt:   snap.StartedAt,
	}

	rows := make([]PlaylistRow, len(playlist))
	for i, v := range playlist {
		rows[i] = PlaylistRow{
			Position: i,
			ID:       v.ID,
			Title:    v.DisplayTitle(),
			Kind:     string(v.Kind),
			Active:   i == snap.Position && snap.State == engine.StateRunning,
		}
	}
	return status, rows
}
