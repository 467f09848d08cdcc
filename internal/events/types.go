// Package events defines the event taxonomy and base structures for the
// marquee event system. All component-to-observer communication (TUI, sinks,
// journal) flows through these types.
package events

import "time"

// EventType identifies the category and nature of an event.
type EventType string

const (
	// Cycle lifecycle events
	EventCycleStart   EventType = "cycle.start"
	EventCycleStop    EventType = "cycle.stop"
	EventStateChanged EventType = "cycle.state_changed"

	// View activation events
	EventViewActivate    EventType = "view.activate"
	EventViewReady       EventType = "view.ready"
	EventViewLoadTimeout EventType = "view.load_timeout"
	EventViewRender      EventType = "view.render"

	// Feed fetch events
	EventFetchRetry  EventType = "fetch.retry"
	EventFetchFailed EventType = "fetch.failed"
	EventFetchOK     EventType = "fetch.ok"

	// Operator rotation control
	EventRotationHeld    EventType = "rotation.held"
	EventRotationResumed EventType = "rotation.resumed"

	// Watchdog events
	EventWatchdogRecovered EventType = "watchdog.recovered"

	// Config events
	EventConfigReloaded EventType = "config.reloaded"

	// Error events
	EventError EventType = "error"
)

// Source constants identify the origin of events.
const (
	SourceEngine   = "engine"
	SourceFeed     = "feed"
	SourceWatchdog = "watchdog"
	SourceInternal = "marquee"
)

// Event is the base interface for all events in the system.
type Event interface {
	Type() EventType
	Timestamp() time.Time
	Source() string
}

// BaseEvent provides the common fields for all events.
type BaseEvent struct {
	EventType EventType `json:"type"`
	Time      time.Time `json:"timestamp"`
	Src       string    `json:"source"`
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.Time
}

// Source returns the origin of the event.
func (e BaseEvent) Source() string {
	return e.Src
}

// CycleStartEvent is emitted when the rotation starts.
type CycleStartEvent struct {
	BaseEvent
	Views      int   `json:"views"`
	IntervalMs int64 `json:"interval_ms"`
}

// CycleStopEvent is emitted when the rotation stops.
type CycleStopEvent struct {
	BaseEvent
	Reason string `json:"reason,omitempty"`
}

// StateChangedEvent is emitted on engine state transitions so the TUI and
// sinks can track them.
type StateChangedEvent struct {
	BaseEvent
	From string `json:"from"`
	To   string `json:"to"`
}

// ViewActivateEvent is emitted when a view becomes current.
type ViewActivateEvent struct {
	BaseEvent
	ViewID     string `json:"view_id"`
	Kind       string `json:"kind"`
	Position   int    `json:"position"`
	Activation uint64 `json:"activation"`
}

// ViewReadyEvent is emitted when an embed view finishes loading. Reason names
// the heuristic that resolved first.
type ViewReadyEvent struct {
	BaseEvent
	ViewID string `json:"view_id"`
	Reason string `json:"reason"`
	WaitMs int64  `json:"wait_ms"`
}

// ViewLoadTimeoutEvent is emitted when the safety timer resumes a rotation
// whose view never signaled readiness.
type ViewLoadTimeoutEvent struct {
	BaseEvent
	ViewID   string `json:"view_id"`
	WaitedMs int64  `json:"waited_ms"`
}

// ViewRenderEvent is emitted when content lands on the surface for a view.
type ViewRenderEvent struct {
	BaseEvent
	ViewID    string `json:"view_id"`
	Content   string `json:"content"` // loading, leaderboard, empty, error, embed
	Rows      int    `json:"rows,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
}

// FetchRetryEvent is emitted before a fetch attempt is retried.
type FetchRetryEvent struct {
	BaseEvent
	FeedSource string `json:"feed_source"`
	Attempt    int    `json:"attempt"`
	ErrorKind  string `json:"error_kind"`
	DelayMs    int64  `json:"delay_ms"`
}

// FetchFailedEvent is emitted when a fetch exhausts its attempts or hits a
// non-recoverable failure.
type FetchFailedEvent struct {
	BaseEvent
	FeedSource string `json:"feed_source"`
	ErrorKind  string `json:"error_kind"`
	Attempts   int    `json:"attempts"`
}

// FetchOKEvent is emitted on a successful fetch.
type FetchOKEvent struct {
	BaseEvent
	FeedSource string `json:"feed_source"`
	Entries    int    `json:"entries"`
	DurationMs int64  `json:"duration_ms"`
}

// RotationHeldEvent is emitted when an operator holds the rotation.
type RotationHeldEvent struct {
	BaseEvent
	By string `json:"by,omitempty"`
}

// RotationResumedEvent is emitted when a held rotation resumes.
type RotationResumedEvent struct {
	BaseEvent
	By string `json:"by,omitempty"`
}

// WatchdogRecoveredEvent is emitted when the watchdog force-resumes a stuck
// rotation.
type WatchdogRecoveredEvent struct {
	BaseEvent
	Position int `json:"position"`
	Stuck    int `json:"stuck"`
}

// ConfigReloadedEvent is emitted when a playlist change is applied.
type ConfigReloadedEvent struct {
	BaseEvent
	Views int `json:"views"`
}

// Severity constants for error events.
const (
	SeverityWarning = "warning"
	SeverityError   = "error"
	SeverityFatal   = "fatal"
)

// ErrorEvent is emitted for any error condition.
type ErrorEvent struct {
	BaseEvent
	Message  string            `json:"message"`
	Severity string            `json:"severity"`
	ViewID   string            `json:"view_id,omitempty"`
	Context  map[string]string `json:"context,omitempty"`
}

// NewEvent creates a BaseEvent with the given type and source.
func NewEvent(eventType EventType, source string) BaseEvent {
	return BaseEvent{
		EventType: eventType,
		Time:      time.Now(),
		Src:       source,
	}
}

// NewEngineEvent creates a BaseEvent with the engine as the source.
func NewEngineEvent(eventType EventType) BaseEvent {
	return NewEvent(eventType, SourceEngine)
}

// NewFeedEvent creates a BaseEvent with the feed client as the source.
func NewFeedEvent(eventType EventType) BaseEvent {
	return NewEvent(eventType, SourceFeed)
}

// NewWatchdogEvent creates a BaseEvent with the watchdog as the source.
func NewWatchdogEvent(eventType EventType) BaseEvent {
	return NewEvent(eventType, SourceWatchdog)
}

// NewInternalEvent creates a BaseEvent with marquee itself as the source.
func NewInternalEvent(eventType EventType) BaseEvent {
	return NewEvent(eventType, SourceInternal)
}
