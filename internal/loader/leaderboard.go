package loader

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/awidmer/marquee/internal/events"
	"github.com/awidmer/marquee/internal/fetch"
	"github.com/awidmer/marquee/internal/metrics"
	"github.com/awidmer/marquee/internal/surface"
	"github.com/awidmer/marquee/internal/view"
)

// LeaderboardLoader drives data-backed views: entries fetched from the
// aggregate feed and rendered locally. Rotation does not pause for this
// kind; a slow or failing feed only affects what the view shows.
type LeaderboardLoader struct {
	client   *fetch.Client
	renderer surface.Renderer
	logger   *slog.Logger
	router   *events.Router
	metrics  *metrics.Metrics
}

// NewLeaderboard creates a leaderboard loader. Router and metrics may be nil.
func NewLeaderboard(client *fetch.Client, renderer surface.Renderer, logger *slog.Logger, router *events.Router, m *metrics.Metrics) *LeaderboardLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &LeaderboardLoader{
		client:   client,
		renderer: renderer,
		logger:   logger.With("component", "leaderboard"),
		router:   router,
		metrics:  m,
	}
}

func (l *LeaderboardLoader) Kind() view.Kind { return view.KindLeaderboard }

func (l *LeaderboardLoader) BlocksRotation() bool { return false }

// Begin renders the loading placeholder synchronously, then fetches fresh
// rows in the background. Whatever the feed does, exactly one of rows,
// empty state or typed error placeholder lands on the surface, and ready
// fires afterwards.
func (l *LeaderboardLoader) Begin(ctx context.Context, v view.Descriptor, ready func()) {
	var once sync.Once
	signal := func() { once.Do(ready) }

	render(l.renderer, l.router, l.logger, v.ID, surface.Loading(v.DisplayTitle()))
	go l.loadRows(ctx, v, signal)
}

func (l *LeaderboardLoader) loadRows(ctx context.Context, v view.Descriptor, signal func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("leaderboard load panicked", "view", v.ID, "panic", r)
			l.metrics.RecordStrategyPanic()
		}
		signal()
	}()

	rows, err := l.client.Aggregate(ctx, v.Source)
	switch {
	case err != nil:
		var ferr *fetch.Error
		if !errors.As(err, &ferr) {
			ferr = &fetch.Error{Kind: fetch.KindUnknown, Recoverable: true, Err: err}
		}
		l.logger.Warn("feed fetch failed, rendering error placeholder",
			"view", v.ID, "source", v.Source, "kind", ferr.Kind, "attempts", ferr.Attempts)
		render(l.renderer, l.router, l.logger, v.ID, surface.ErrorState(v.DisplayTitle(), ferr))
	case len(rows) == 0:
		render(l.renderer, l.router, l.logger, v.ID, surface.Empty(v.DisplayTitle()))
	default:
		render(l.renderer, l.router, l.logger, v.ID, surface.Leaderboard(v.DisplayTitle(), rows))
	}
}
