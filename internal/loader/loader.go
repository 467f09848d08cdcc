// Package loader implements the per-kind strategies the rotation engine
// uses to bring a view onto its surface. Strategies report readiness
// through a callback and never touch engine state directly.
package loader

import (
	"context"
	"log/slog"

	"github.com/awidmer/marquee/internal/events"
	"github.com/awidmer/marquee/internal/surface"
	"github.com/awidmer/marquee/internal/view"
)

// Ready reasons carried by view.ready events, naming the heuristic that
// resolved first.
const (
	ReadyLoadEvent      = "load_event"
	ReadyStableAddress  = "stable_address"
	ReadyDocComplete    = "document_complete"
	ReadyDetectTimeout  = "detect_timeout"
	ReadyNavigateFailed = "navigate_failed"
)

// Loader starts loading a view and reports readiness through ready.
// Begin never blocks beyond scheduling and never lets a panic escape.
// ready is invoked at most once per Begin call.
type Loader interface {
	Kind() view.Kind
	BlocksRotation() bool
	Begin(ctx context.Context, v view.Descriptor, ready func())
}

// Set maps view kinds to their loaders.
type Set map[view.Kind]Loader

// NewSet builds a Set from the given loaders, keyed by kind.
func NewSet(loaders ...Loader) Set {
	s := make(Set, len(loaders))
	for _, l := range loaders {
		s[l.Kind()] = l
	}
	return s
}

// For returns the loader for the view's kind.
func (s Set) For(v view.Descriptor) (Loader, bool) {
	l, ok := s[v.Kind]
	return l, ok
}

// render pushes content to the surface and emits a view.render event.
// Render failures are logged and swallowed so a broken surface never
// disturbs the rotation.
func render(r surface.Renderer, router *events.Router, logger *slog.Logger, viewID string, c surface.Content) {
	if r == nil {
		return
	}
	if err := r.Render(viewID, c); err != nil {
		logger.Warn("render failed", "view", viewID, "content", c.Kind.String(), "error", err)
		return
	}
	ev := &events.ViewRenderEvent{
		BaseEvent: events.NewEngineEvent(events.EventViewRender),
		ViewID:    viewID,
		Content:   c.Kind.String(),
	}
	switch c.Kind {
	case surface.ContentLeaderboard:
		ev.Rows = len(c.Rows)
	case surface.ContentError:
		if c.Err != nil {
			ev.ErrorKind = string(c.Err.Kind)
		}
	}
	if router != nil {
		router.Emit(ev)
	}
}
