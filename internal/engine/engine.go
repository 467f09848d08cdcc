// Package engine orchestrates the view rotation: advancing through the
// playlist on an interval, pausing for embedded documents until they load,
// and containing whatever the loader strategies throw at it.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/awidmer/marquee/internal/events"
	"github.com/awidmer/marquee/internal/loader"
	"github.com/awidmer/marquee/internal/metrics"
	"github.com/awidmer/marquee/internal/view"
)

// State represents the engine's current state.
type State string

// Engine states.
const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
)

// Options carry the externally configured rotation timing.
type Options struct {
	Interval    time.Duration // Time each view stays up once ready
	MaxViewLoad time.Duration // Safety cap on waiting for an embed view
}

// DefaultOptions returns the rotation timing used when the config leaves it
// unset.
func DefaultOptions() Options {
	return Options{
		Interval:    15 * time.Second,
		MaxViewLoad: 20 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Interval <= 0 {
		o.Interval = def.Interval
	}
	if o.MaxViewLoad <= 0 {
		o.MaxViewLoad = def.MaxViewLoad
	}
	return o
}

// Snapshot is a consistent copy of rotation state for status reporting.
type Snapshot struct {
	State       State           `json:"state"`
	Position    int             `json:"position"`
	Views       int             `json:"views"`
	Current     view.Descriptor `json:"current"`
	Held        bool            `json:"held"`
	Waiting     bool            `json:"waiting"` // paused for an embed view load
	Activations uint64          `json:"activations"`
	StartedAt   time.Time       `json:"started_at"`
}

// Engine drives the rotation. One loop goroutine owns all mutable rotation
// state; the public API communicates through buffered signal channels and
// reads through Snapshot.
type Engine struct {
	opts    Options
	loaders loader.Set
	router  *events.Router
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu          sync.RWMutex
	state       State
	playlist    []view.Descriptor
	position    int
	paused      bool // waiting on an embed view
	held        bool // operator hold
	activations uint64
	startedAt   time.Time

	ctx    context.Context
	cancel context.CancelFunc

	// Control signals, all buffered at 1 with non-blocking sends.
	advanceSignal chan struct{}
	holdSignal    chan struct{}
	resumeSignal  chan struct{}
	kickSignal    chan struct{}
	stopSignal    chan struct{}
	replaceSignal chan []view.Descriptor
	readySignal   chan uint64

	// Loop-owned timers.
	intervalTimer *time.Timer
	safetyTimer   *time.Timer
	pausedSince   time.Time
}

// New creates an Engine for the playlist. Router and metrics may be nil.
func New(opts Options, playlist []view.Descriptor, loaders loader.Set, logger *slog.Logger, router *events.Router, m *metrics.Metrics) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		opts:          opts.withDefaults(),
		playlist:      playlist,
		loaders:       loaders,
		router:        router,
		logger:        logger.With("component", "engine"),
		metrics:       m,
		state:         StateIdle,
		advanceSignal: make(chan struct{}, 1),
		holdSignal:    make(chan struct{}, 1),
		resumeSignal:  make(chan struct{}, 1),
		kickSignal:    make(chan struct{}, 1),
		stopSignal:    make(chan struct{}, 1),
		replaceSignal: make(chan []view.Descriptor, 1),
		readySignal:   make(chan uint64, 1),
	}
}

// Run starts the rotation loop. It blocks until the context is cancelled or
// Stop is called. Calling Run while already running is a no-op returning nil.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.state == StateRunning || e.state == StateStopping {
		e.mu.Unlock()
		e.logger.Debug("run ignored: already running")
		return nil
	}
	if len(e.playlist) == 0 {
		e.mu.Unlock()
		return fmt.Errorf("empty playlist")
	}
	prev := e.state
	e.state = StateRunning
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.startedAt = time.Now()
	e.mu.Unlock()
	defer e.cancel()

	e.drainSignals()
	e.emit(&events.StateChangedEvent{
		BaseEvent: events.NewEngineEvent(events.EventStateChanged),
		From:      string(prev),
		To:        string(StateRunning),
	})
	e.metrics.SetRunning(true)
	e.emit(&events.CycleStartEvent{
		BaseEvent:  events.NewEngineEvent(events.EventCycleStart),
		Views:      len(e.Playlist()),
		IntervalMs: e.opts.Interval.Milliseconds(),
	})
	e.logger.Info("rotation started",
		"views", len(e.Playlist()),
		"interval", e.opts.Interval,
		"max_view_load", e.opts.MaxViewLoad,
	)

	e.intervalTimer = time.NewTimer(e.opts.Interval)
	e.safetyTimer = time.NewTimer(e.opts.MaxViewLoad)
	stopTimer(e.safetyTimer)
	defer stopTimer(e.intervalTimer)
	defer stopTimer(e.safetyTimer)

	// The current view goes up immediately; ticking starts from now.
	e.activate()

	for {
		select {
		case <-e.ctx.Done():
			return e.shutdown("context cancelled")
		case <-e.stopSignal:
			return e.shutdown("stop requested")
		case <-e.intervalTimer.C:
			e.step("interval")
		case <-e.advanceSignal:
			e.step("manual")
		case token := <-e.readySignal:
			e.onReady(token)
		case <-e.safetyTimer.C:
			e.onSafetyTimeout()
		case <-e.kickSignal:
			e.onForceResume()
		case <-e.holdSignal:
			e.onHold()
		case <-e.resumeSignal:
			e.onResume()
		case playlist := <-e.replaceSignal:
			e.onReplace(playlist)
		}
	}
}

// step advances to the next view and activates it. No-op unless the
// engine is running and neither waiting on a view nor held.
func (e *Engine) step(trigger string) {
	if e.getState() != StateRunning {
		return
	}
	e.mu.Lock()
	if e.paused || e.held {
		paused, held := e.paused, e.held
		e.mu.Unlock()
		e.logger.Debug("advance suppressed", "trigger", trigger, "waiting", paused, "held", held)
		return
	}
	e.position = (e.position + 1) % len(e.playlist)
	e.mu.Unlock()

	e.metrics.RecordRotation()
	e.rearmInterval()
	e.activate()
}

// activate brings the current view up through its loader. Blocking loaders
// pause the rotation and arm the safety timer; panics are contained so a
// broken strategy can never stall the cycle.
func (e *Engine) activate() {
	e.mu.Lock()
	v := e.playlist[e.position]
	pos := e.position
	e.activations++
	token := e.activations
	e.mu.Unlock()

	l, ok := e.loaders.For(v)
	if !ok {
		e.logger.Error("no loader for view kind", "view", v.ID, "kind", v.Kind)
		e.emit(&events.ErrorEvent{
			BaseEvent: events.NewEngineEvent(events.EventError),
			Message:   fmt.Sprintf("no loader for kind %q", v.Kind),
			Severity:  events.SeverityError,
			ViewID:    v.ID,
		})
		return
	}

	e.emit(&events.ViewActivateEvent{
		BaseEvent:  events.NewEngineEvent(events.EventViewActivate),
		ViewID:     v.ID,
		Kind:       string(v.Kind),
		Position:   pos,
		Activation: token,
	})
	e.metrics.RecordActivation(v.ID, string(v.Kind), pos)
	e.logger.Info("activating view", "view", v.ID, "kind", v.Kind, "position", pos, "activation", token)

	if l.BlocksRotation() {
		e.setPaused(true)
		e.pausedSince = time.Now()
		stopTimer(e.intervalTimer)
		stopTimer(e.safetyTimer)
		e.safetyTimer.Reset(e.opts.MaxViewLoad)
	}

	e.begin(l, v, e.readyFunc(token))
}

// begin calls the loader inside a recover guard. A panicking strategy is
// logged, counted, and treated as immediately ready.
func (e *Engine) begin(l loader.Loader, v view.Descriptor, ready func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("loader panicked", "view", v.ID, "panic", r)
			e.metrics.RecordStrategyPanic()
			e.emit(&events.ErrorEvent{
				BaseEvent: events.NewEngineEvent(events.EventError),
				Message:   fmt.Sprintf("loader for %s panicked: %v", v.ID, r),
				Severity:  events.SeverityError,
				ViewID:    v.ID,
			})
			ready()
		}
	}()
	l.Begin(e.ctx, v, ready)
}

// readyFunc binds the activation token into the ready callback handed to a
// loader. Signals re-enter the loop through readySignal.
func (e *Engine) readyFunc(token uint64) func() {
	return func() {
		select {
		case e.readySignal <- token:
		default:
		}
	}
}

// onReady handles a readiness signal. Stale tokens, duplicates and signals
// from non-blocking loaders are dropped.
func (e *Engine) onReady(token uint64) {
	if e.getState() != StateRunning {
		return
	}
	e.mu.RLock()
	paused := e.paused
	current := e.activations
	e.mu.RUnlock()

	if !paused {
		return
	}
	if token != current {
		e.logger.Debug("stale ready signal dropped", "token", token, "current", current)
		return
	}
	e.resumeRotation()
	e.logger.Debug("view ready, rotation resumed", "waited", time.Since(e.pausedSince))
}

// onSafetyTimeout resumes a rotation whose embed view never signalled.
func (e *Engine) onSafetyTimeout() {
	if e.getState() != StateRunning || !e.isPaused() {
		return
	}
	waited := time.Since(e.pausedSince)
	v := e.currentView()
	e.logger.Warn("view load timed out, resuming rotation", "view", v.ID, "waited", waited)
	e.emit(&events.ViewLoadTimeoutEvent{
		BaseEvent: events.NewEngineEvent(events.EventViewLoadTimeout),
		ViewID:    v.ID,
		WaitedMs:  waited.Milliseconds(),
	})
	e.metrics.RecordLoadTimeout(v.ID)
	e.resumeRotation()
}

// onForceResume is the watchdog path: unconditionally clear the waiting
// state and restart the interval, whatever the loop thinks it is doing.
func (e *Engine) onForceResume() {
	if e.getState() != StateRunning {
		return
	}
	e.resumeRotation()
	e.logger.Info("rotation force-resumed")
}

// resumeRotation clears the waiting flag, disarms the safety timer and
// restarts a full interval, unless an operator hold keeps the cycle parked.
func (e *Engine) resumeRotation() {
	e.setPaused(false)
	stopTimer(e.safetyTimer)
	if !e.isHeld() {
		e.rearmInterval()
	}
}

func (e *Engine) onHold() {
	if e.getState() != StateRunning || e.isHeld() {
		return
	}
	e.setHeld(true)
	stopTimer(e.intervalTimer)
	e.emit(&events.RotationHeldEvent{BaseEvent: events.NewEngineEvent(events.EventRotationHeld)})
	e.logger.Info("rotation held")
}

// onResume ends an operator hold. Unless a view load is still pending the
// rotation advances immediately so the operator sees movement.
func (e *Engine) onResume() {
	if e.getState() != StateRunning || !e.isHeld() {
		return
	}
	e.setHeld(false)
	e.emit(&events.RotationResumedEvent{BaseEvent: events.NewEngineEvent(events.EventRotationResumed)})
	e.logger.Info("rotation resumed")
	if e.isPaused() {
		return
	}
	e.step("resume")
}

// onReplace swaps the playlist, clamping the position. The new playlist
// takes effect at the next activation.
func (e *Engine) onReplace(playlist []view.Descriptor) {
	if len(playlist) == 0 {
		e.logger.Error("playlist replace rejected: empty")
		return
	}
	e.mu.Lock()
	e.playlist = playlist
	if e.position >= len(playlist) {
		e.position = 0
	}
	e.mu.Unlock()

	e.emit(&events.ConfigReloadedEvent{
		BaseEvent: events.NewEngineEvent(events.EventConfigReloaded),
		Views:     len(playlist),
	})
	e.logger.Info("playlist replaced", "views", len(playlist))
}

// shutdown performs the stop transition and emits cycle.stop.
func (e *Engine) shutdown(reason string) error {
	e.setState(StateStopping)
	stopTimer(e.intervalTimer)
	stopTimer(e.safetyTimer)
	e.setPaused(false)
	e.metrics.SetRunning(false)
	e.emit(&events.CycleStopEvent{
		BaseEvent: events.NewEngineEvent(events.EventCycleStop),
		Reason:    reason,
	})
	e.logger.Info("rotation stopped", "reason", reason)
	e.setState(StateStopped)
	return nil
}

// rearmInterval restarts the interval timer from a clean slate.
func (e *Engine) rearmInterval() {
	stopTimer(e.intervalTimer)
	e.intervalTimer.Reset(e.opts.Interval)
}

// drainSignals clears control signals left over from a previous run so a
// restart does not act on stale requests.
func (e *Engine) drainSignals() {
	select {
	case <-e.stopSignal:
	default:
	}
	select {
	case <-e.advanceSignal:
	default:
	}
	select {
	case <-e.holdSignal:
	default:
	}
	select {
	case <-e.resumeSignal:
	default:
	}
	select {
	case <-e.kickSignal:
	default:
	}
	select {
	case <-e.readySignal:
	default:
	}
	select {
	case <-e.replaceSignal:
	default:
	}
}

// Stop requests shutdown. Idempotent; returns immediately. Use Run's return
// to wait for completion.
func (e *Engine) Stop() {
	select {
	case e.stopSignal <- struct{}{}:
	default:
	}
	e.mu.RLock()
	cancel := e.cancel
	e.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

// Advance requests a manual advance. No-op while waiting, held or stopped.
func (e *Engine) Advance() {
	select {
	case e.advanceSignal <- struct{}{}:
	default:
	}
}

// Hold parks the rotation on the current view until Resume.
func (e *Engine) Hold() {
	select {
	case e.holdSignal <- struct{}{}:
	default:
	}
}

// Resume ends a Hold.
func (e *Engine) Resume() {
	select {
	case e.resumeSignal <- struct{}{}:
	default:
	}
}

// ForceResume unconditionally clears a stuck waiting state. The watchdog
// calls this; it is safe to call when the rotation is healthy.
func (e *Engine) ForceResume() {
	select {
	case e.kickSignal <- struct{}{}:
	default:
	}
}

// ReplaceViews hands a new playlist to the loop, applied between
// activations. The previous pending replacement is superseded.
func (e *Engine) ReplaceViews(playlist []view.Descriptor) {
	views := make([]view.Descriptor, len(playlist))
	copy(views, playlist)
	select {
	case e.replaceSignal <- views:
	default:
		// Drain the stale pending playlist and queue the newest one.
		select {
		case <-e.replaceSignal:
		default:
		}
		select {
		case e.replaceSignal <- views:
		default:
		}
	}
}

// State returns the current engine state.
func (e *Engine) State() State {
	return e.getState()
}

// Running reports whether the rotation loop is active.
func (e *Engine) Running() bool {
	return e.getState() == StateRunning
}

// Held reports whether an operator hold is in effect.
func (e *Engine) Held() bool {
	return e.isHeld()
}

// Position returns the current playlist position.
func (e *Engine) Position() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.position
}

// Activations returns the monotonic activation counter.
func (e *Engine) Activations() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.activations
}

// Playlist returns a copy of the current playlist.
func (e *Engine) Playlist() []view.Descriptor {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]view.Descriptor, len(e.playlist))
	copy(out, e.playlist)
	return out
}

// Snapshot returns a consistent copy of the rotation state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	snap := Snapshot{
		State:       e.state,
		Position:    e.position,
		Views:       len(e.playlist),
		Held:        e.held,
		Waiting:     e.paused,
		Activations: e.activations,
		StartedAt:   e.startedAt,
	}
	if e.position < len(e.playlist) {
		snap.Current = e.playlist[e.position]
	}
	return snap
}

func (e *Engine) currentView() view.Descriptor {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.playlist[e.position]
}

func (e *Engine) getState() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	old := e.state
	e.state = s
	e.mu.Unlock()

	if old != s {
		e.emit(&events.StateChangedEvent{
			BaseEvent: events.NewEngineEvent(events.EventStateChanged),
			From:      string(old),
			To:        string(s),
		})
	}
}

func (e *Engine) isPaused() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.paused
}

func (e *Engine) setPaused(p bool) {
	e.mu.Lock()
	e.paused = p
	e.mu.Unlock()
}

func (e *Engine) isHeld() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.held
}

func (e *Engine) setHeld(h bool) {
	e.mu.Lock()
	e.held = h
	e.mu.Unlock()
}

func (e *Engine) emit(ev events.Event) {
	if e.router != nil {
		e.router.Emit(ev)
	}
}

// stopTimer stops a timer and drains its channel if it already fired.
func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
