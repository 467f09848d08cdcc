package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// StatusBufferSize is the recommended buffer size for status sink subscriptions.
const StatusBufferSize = 1000

// CurrentStatusVersion is the current status file format version.
// Increment this when making incompatible changes to the RotationState struct.
const CurrentStatusVersion = 1

// RotationState is the persisted rotation snapshot. External monitors and the
// status command (when the daemon socket is unreachable) read this file.
type RotationState struct {
	Version            int                     `json:"version"`
	Status             string                  `json:"status"`
	Held               bool                    `json:"held"`
	Position           int                     `json:"position"`
	CurrentView        string                  `json:"current_view,omitempty"`
	Activations        uint64                  `json:"activations"`
	WatchdogRecoveries int                     `json:"watchdog_recoveries"`
	History            map[string]*ViewHistory `json:"history"`
	UpdatedAt          time.Time               `json:"updated_at"`
}

// ViewHistory accumulates per-view outcomes across the daemon's lifetime.
type ViewHistory struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind,omitempty"`
	Activations   int       `json:"activations"`
	LastOutcome   string    `json:"last_outcome,omitempty"`
	LastErrorKind string    `json:"last_error_kind,omitempty"`
	LastActivated time.Time `json:"last_activated,omitempty"`
}

// DefaultMinSaveDelay is the minimum time between saves.
const DefaultMinSaveDelay = 5 * time.Second

// StatusSink persists the rotation snapshot to a JSON file.
type StatusSink struct {
	path     string
	state    *RotationState
	dirty    bool
	mu       sync.Mutex
	done     chan struct{}
	lastSave time.Time
	minDelay time.Duration
}

// NewStatusSink creates a StatusSink writing to the specified path.
func NewStatusSink(path string) *StatusSink {
	return &StatusSink{
		path: path,
		state: &RotationState{
			Version: CurrentStatusVersion,
			History: make(map[string]*ViewHistory),
		},
		done:     make(chan struct{}),
		minDelay: DefaultMinSaveDelay,
	}
}

// Start ensures the directory exists, loads prior state, and begins
// processing events.
func (s *StatusSink) Start(ctx context.Context, events <-chan Event) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create status directory: %w", err)
	}

	if err := s.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load status: %w", err)
	}

	go s.run(ctx, events)
	return nil
}

func (s *StatusSink) run(ctx context.Context, events <-chan Event) {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			s.flushIfDirty()
			return
		case event, ok := <-events:
			if !ok {
				s.flushIfDirty()
				return
			}
			s.handleEvent(event)
		}
	}
}

func (s *StatusSink) handleEvent(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e := event.(type) {
	case *CycleStartEvent:
		s.state.Status = "running"
		s.dirty = true

	case *StateChangedEvent:
		s.state.Status = e.To
		s.dirty = true

	case *CycleStopEvent:
		s.state.Status = "stopped"
		s.state.CurrentView = ""
		s.dirty = true
		// Always save immediately on stop
		s.saveUnlocked()
		return

	case *ViewActivateEvent:
		s.state.Position = e.Position
		s.state.CurrentView = e.ViewID
		s.state.Activations = e.Activation
		h := s.history(e.ViewID)
		h.Kind = e.Kind
		h.Activations++
		h.LastActivated = event.Timestamp()
		s.dirty = true

	case *ViewReadyEvent:
		h := s.history(e.ViewID)
		h.LastOutcome = "ready"
		s.dirty = true

	case *ViewLoadTimeoutEvent:
		h := s.history(e.ViewID)
		h.LastOutcome = "load_timeout"
		s.dirty = true

	case *ViewRenderEvent:
		// Loading placeholders are transient; record only final renders.
		if e.Content == "loading" {
			return
		}
		h := s.history(e.ViewID)
		h.LastOutcome = e.Content
		h.LastErrorKind = e.ErrorKind
		s.dirty = true

	case *RotationHeldEvent:
		s.state.Held = true
		s.dirty = true

	case *RotationResumedEvent:
		s.state.Held = false
		s.dirty = true

	case *WatchdogRecoveredEvent:
		s.state.WatchdogRecoveries++
		s.dirty = true
	}

	// Debounced save
	if s.dirty && time.Since(s.lastSave) >= s.minDelay {
		s.saveUnlocked()
	}
}

// history returns the entry for a view, creating it if needed.
// Must be called with s.mu held.
func (s *StatusSink) history(viewID string) *ViewHistory {
	h := s.state.History[viewID]
	if h == nil {
		h = &ViewHistory{ID: viewID}
		s.state.History[viewID] = h
	}
	return h
}

func (s *StatusSink) saveUnlocked() {
	s.state.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "status sink: marshal error: %v\n", err)
		return
	}

	// Atomic write: temp file + rename
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "status sink: write error: %v\n", err)
		return
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		fmt.Fprintf(os.Stderr, "status sink: rename error: %v\n", err)
		return
	}

	s.dirty = false
	s.lastSave = time.Now()
}

func (s *StatusSink) flushIfDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dirty {
		s.saveUnlocked()
	}
}

// Stop waits for the run goroutine to finish and performs a final save if needed.
func (s *StatusSink) Stop() error {
	<-s.done
	return nil
}

// Load reads the status file from disk.
// If the version is missing or incompatible, the old file is backed up and a
// fresh state is used.
func (s *StatusSink) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var state RotationState
	if err := json.Unmarshal(data, &state); err != nil {
		if backupErr := s.backupStatusFile(); backupErr != nil {
			slog.Warn("status file corrupted, failed to backup",
				"path", s.path,
				"error", err,
				"backup_error", backupErr)
		} else {
			slog.Warn("status file corrupted, backed up and starting fresh",
				"path", s.path,
				"error", err)
		}
		s.resetState()
		return nil
	}

	if state.Version == 0 || state.Version != CurrentStatusVersion {
		if backupErr := s.backupStatusFile(); backupErr != nil {
			slog.Warn("incompatible status version, failed to backup",
				"path", s.path,
				"file_version", state.Version,
				"current_version", CurrentStatusVersion,
				"backup_error", backupErr)
		} else {
			slog.Warn("incompatible status version, backed up and starting fresh",
				"path", s.path,
				"file_version", state.Version,
				"current_version", CurrentStatusVersion)
		}
		s.resetState()
		return nil
	}

	if state.History == nil {
		state.History = make(map[string]*ViewHistory)
	}

	s.state = &state
	return nil
}

// backupStatusFile moves the current status file to a .backup file.
// Must be called with s.mu held.
func (s *StatusSink) backupStatusFile() error {
	backupPath := s.path + ".backup"
	return os.Rename(s.path, backupPath)
}

// resetState initializes a fresh state.
// Must be called with s.mu held.
func (s *StatusSink) resetState() {
	s.state = &RotationState{
		Version: CurrentStatusVersion,
		History: make(map[string]*ViewHistory),
	}
}

// State returns a copy of the current rotation state.
func (s *StatusSink) State() RotationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.state
}

// ReadStatusFile loads a rotation snapshot without a sink, for the status
// command's socketless fallback.
func ReadStatusFile(path string) (*RotationState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var state RotationState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal status file: %w", err)
	}
	return &state, nil
}

// Path returns the status file path.
func (s *StatusSink) Path() string {
	return s.path
}

// SetMinDelay sets the minimum delay between saves (for testing).
func (s *StatusSink) SetMinDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.minDelay = d
}
