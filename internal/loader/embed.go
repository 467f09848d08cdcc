package loader

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/awidmer/marquee/internal/events"
	"github.com/awidmer/marquee/internal/metrics"
	"github.com/awidmer/marquee/internal/surface"
	"github.com/awidmer/marquee/internal/view"
)

// EmbedOptions tune the readiness detection for embedded documents.
type EmbedOptions struct {
	PollInterval  time.Duration // How often to sample location and ready state
	StableSamples int           // Consecutive identical locations that count as loaded
	DetectTimeout time.Duration // Give up detecting and assume ready after this long
}

// DefaultEmbedOptions returns the detection timings used when the config
// leaves them unset.
func DefaultEmbedOptions() EmbedOptions {
	return EmbedOptions{
		PollInterval:  500 * time.Millisecond,
		StableSamples: 3,
		DetectTimeout: 10 * time.Second,
	}
}

func (o EmbedOptions) withDefaults() EmbedOptions {
	def := DefaultEmbedOptions()
	if o.PollInterval <= 0 {
		o.PollInterval = def.PollInterval
	}
	if o.StableSamples <= 0 {
		o.StableSamples = def.StableSamples
	}
	if o.DetectTimeout <= 0 {
		o.DetectTimeout = def.DetectTimeout
	}
	return o
}

// EmbedLoader drives embedded-document views: it navigates the surface to a
// cache-busted address and races readiness heuristics until one resolves.
// Rotation pauses for this kind until ready fires.
type EmbedLoader struct {
	embedder surface.Embedder
	renderer surface.Renderer
	opts     EmbedOptions
	logger   *slog.Logger
	router   *events.Router
	metrics  *metrics.Metrics
}

// NewEmbed creates an embed loader. Renderer, router and metrics may be nil.
func NewEmbed(embedder surface.Embedder, renderer surface.Renderer, opts EmbedOptions, logger *slog.Logger, router *events.Router, m *metrics.Metrics) *EmbedLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbedLoader{
		embedder: embedder,
		renderer: renderer,
		opts:     opts.withDefaults(),
		logger:   logger.With("component", "embed"),
		router:   router,
		metrics:  m,
	}
}

func (l *EmbedLoader) Kind() view.Kind { return view.KindEmbed }

func (l *EmbedLoader) BlocksRotation() bool { return true }

// Begin renders the embed card, navigates to a cache-busted address and
// starts readiness detection. ready fires exactly once, from whichever
// heuristic resolves first.
func (l *EmbedLoader) Begin(ctx context.Context, v view.Descriptor, ready func()) {
	address := cacheBust(v.URL)
	start := time.Now()

	var once sync.Once
	signal := func(reason string) {
		once.Do(func() {
			wait := time.Since(start)
			ready()
			l.metrics.RecordViewReady(reason, wait)
			l.emit(&events.ViewReadyEvent{
				BaseEvent: events.NewEngineEvent(events.EventViewReady),
				ViewID:    v.ID,
				Reason:    reason,
				WaitMs:    wait.Milliseconds(),
			})
			l.logger.Debug("view ready", "view", v.ID, "reason", reason, "wait", wait)
		})
	}

	render(l.renderer, l.router, l.logger, v.ID, surface.Embed(v.DisplayTitle(), v.URL))
	go l.load(ctx, v, address, signal)
}

func (l *EmbedLoader) load(ctx context.Context, v view.Descriptor, address string, signal func(string)) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("embed load panicked", "view", v.ID, "panic", r)
			l.metrics.RecordStrategyPanic()
			signal(ReadyDetectTimeout)
		}
	}()

	if err := l.embedder.Navigate(ctx, address); err != nil {
		// A dead surface must not wedge the rotation. Report and move on.
		l.logger.Warn("navigate failed, treating view as ready", "view", v.ID, "error", err)
		l.emit(&events.ErrorEvent{
			BaseEvent: events.NewEngineEvent(events.EventError),
			Message:   fmt.Sprintf("navigate %s: %v", v.ID, err),
			Severity:  events.SeverityWarning,
			ViewID:    v.ID,
		})
		signal(ReadyNavigateFailed)
		return
	}

	l.detect(ctx, v, signal)
}

// detect races the readiness heuristics in a single goroutine: the native
// load event, a stable reported location, a complete document ready state,
// and finally the detection timeout. Inspection errors keep the heuristic
// silent rather than failing the view.
func (l *EmbedLoader) detect(ctx context.Context, v view.Descriptor, signal func(string)) {
	deadline := time.NewTimer(l.opts.DetectTimeout)
	defer deadline.Stop()
	poll := time.NewTicker(l.opts.PollInterval)
	defer poll.Stop()

	var lastLocation string
	stable := 0

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.embedder.LoadEvents():
			signal(ReadyLoadEvent)
			return
		case <-deadline.C:
			l.logger.Warn("readiness detection timed out, assuming loaded",
				"view", v.ID, "after", l.opts.DetectTimeout)
			signal(ReadyDetectTimeout)
			return
		case <-poll.C:
			if loc, err := l.embedder.Location(ctx); err == nil && loc != "" {
				if loc == lastLocation {
					stable++
					if stable >= l.opts.StableSamples {
						signal(ReadyStableAddress)
						return
					}
				} else {
					lastLocation = loc
					stable = 1
				}
			}
			if state, err := l.embedder.ReadyState(ctx); err == nil && state == "complete" {
				signal(ReadyDocComplete)
				return
			}
		}
	}
}

func (l *EmbedLoader) emit(ev events.Event) {
	if l.router != nil {
		l.router.Emit(ev)
	}
}

// cacheBust appends a unique _mq query parameter so every activation loads
// fresh instead of serving a stale document from the surface cache.
func cacheBust(address string) string {
	u, err := url.Parse(address)
	if err != nil {
		return address
	}
	q := u.Query()
	q.Set("_mq", uuid.NewString())
	u.RawQuery = q.Encode()
	return u.String()
}
