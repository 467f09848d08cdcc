// Package watchdog observes the rotation from outside the engine loop and
// force-resumes it when the activation counter stops moving. It is the
// backstop for whatever the safety timer misses.
package watchdog

import (
	"context"
	"log/slog"
	"time"

	"github.com/awidmer/marquee/internal/events"
	"github.com/awidmer/marquee/internal/metrics"
)

// Target is the rotation surface the watchdog samples and kicks. The
// activation counter rather than the position is what matters: a healthy
// single-view rotation re-activates every interval while its position
// never changes.
type Target interface {
	Running() bool
	Held() bool
	Position() int
	Activations() uint64
	ForceResume()
}

// Options tune the sampling period and the stuck threshold.
type Options struct {
	Period    time.Duration // Sampling period; keep it above the rotation interval
	Threshold int           // Consecutive stale samples before forcing a resume
}

// DefaultThreshold is the number of stale samples tolerated before recovery.
const DefaultThreshold = 3

// PeriodFor resolves the effective sampling period: the configured one, or
// 1.5 times the rotation interval when unset.
func PeriodFor(configured, rotationInterval time.Duration) time.Duration {
	if configured > 0 {
		return configured
	}
	return rotationInterval + rotationInterval/2
}

// Watchdog samples a rotation target on a ticker and recovers it when it
// looks wedged.
type Watchdog struct {
	target  Target
	period  time.Duration
	limit   int
	logger  *slog.Logger
	router  *events.Router
	metrics *metrics.Metrics

	// Loop-owned sampling state.
	lastSeen uint64
	stuck    int
}

// New creates a Watchdog for target. Router and metrics may be nil.
func New(target Target, opts Options, logger *slog.Logger, router *events.Router, m *metrics.Metrics) *Watchdog {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Period <= 0 {
		opts.Period = PeriodFor(0, 15*time.Second)
	}
	return &Watchdog{
		target:  target,
		period:  opts.Period,
		limit:   opts.Threshold,
		logger:  logger.With("component", "watchdog"),
		router:  router,
		metrics: m,
	}
}

// Run samples the target until the context is cancelled.
func (w *Watchdog) Run(ctx context.Context) {
	w.logger.Debug("watchdog started", "period", w.period, "threshold", w.limit)
	ticker := time.NewTicker(w.period)
	defer ticker.Stop()

	w.lastSeen = w.target.Activations()
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("watchdog stopped")
			return
		case <-ticker.C:
			w.check()
		}
	}
}

// check takes one sample. A held or stopped rotation is not stuck; neither
// is one whose activation counter moved since the last sample.
func (w *Watchdog) check() {
	if !w.target.Running() || w.target.Held() {
		w.stuck = 0
		w.lastSeen = w.target.Activations()
		return
	}

	seen := w.target.Activations()
	if seen != w.lastSeen {
		w.lastSeen = seen
		w.stuck = 0
		return
	}

	w.stuck++
	w.logger.Debug("rotation not moving", "stale_samples", w.stuck, "threshold", w.limit)
	if w.stuck < w.limit {
		return
	}

	pos := w.target.Position()
	w.logger.Warn("rotation stuck, forcing resume", "position", pos, "stale_samples", w.stuck)
	w.target.ForceResume()
	if w.router != nil {
		w.router.Emit(&events.WatchdogRecoveredEvent{
			BaseEvent: events.NewWatchdogEvent(events.EventWatchdogRecovered),
			Position:  pos,
			Stuck:     w.stuck,
		})
	}
	w.metrics.RecordWatchdogRecovery()
	w.stuck = 0
}
