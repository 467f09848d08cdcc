// Package integration provides end-to-end tests for the marquee rotation.
// These tests exercise the full engine with fake surfaces and a scripted
// feed server.
package integration

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/awidmer/marquee/internal/engine"
	"github.com/awidmer/marquee/internal/events"
	"github.com/awidmer/marquee/internal/fetch"
	"github.com/awidmer/marquee/internal/loader"
	"github.com/awidmer/marquee/internal/surface"
	"github.com/awidmer/marquee/internal/testutil"
	"github.com/awidmer/marquee/internal/view"
)

// testAPIKey is the feed credential used in integration tests.
const testAPIKey = "integration-key"

// testEnv holds the test environment for integration tests.
type testEnv struct {
	t         *testing.T
	opts      engine.Options
	playlist  []view.Descriptor
	renderer  *testutil.FakeRenderer
	embedder  *testutil.FakeEmbedder
	feed      *testutil.FeedServer
	router    *events.Router
	loaders   loader.Set
	eng       *engine.Engine
	cancel    context.CancelFunc
	done      chan error
	sub       <-chan events.Event
	collected []events.Event
}

// newTestEnv wires loaders, a feed client and fake surfaces around the given
// playlist. The feed server answers per script. Tests may adjust env.opts
// before calling start.
func newTestEnv(t *testing.T, playlist []view.Descriptor, script func(int, http.ResponseWriter, *http.Request)) *testEnv {
	t.Helper()

	renderer := &testutil.FakeRenderer{}
	embedder := testutil.NewFakeEmbedder()
	feed := testutil.NewFeedServer(script)

	// Embed readiness in these tests comes from explicit FireLoad calls;
	// the location heuristic is parked so it cannot race the load event.
	embedder.LocationFunc = func() (string, error) { return "", nil }

	router := events.NewRouter(1000)
	sub := router.SubscribeBuffered(1000)

	client := fetch.NewClient(fetch.Options{
		BaseURL:    feed.URL,
		AuthHeader: "X-Api-Key",
		APIKey:     testAPIKey,
		Timeout:    2 * time.Second,
		Policy: fetch.RetryPolicy{
			MaxAttempts: 2,
			Initial:     5 * time.Millisecond,
			Max:         20 * time.Millisecond,
			Multiplier:  2.0,
		},
	}, nil, router, nil)

	loaders := loader.NewSet(
		loader.NewEmbed(embedder, renderer, loader.EmbedOptions{
			PollInterval:  10 * time.Millisecond,
			StableSamples: 3,
			DetectTimeout: 5 * time.Second,
		}, nil, router, nil),
		loader.NewLeaderboard(client, renderer, nil, router, nil),
	)

	return &testEnv{
		t:        t,
		opts:     engine.Options{Interval: 40 * time.Millisecond, MaxViewLoad: 2 * time.Second},
		playlist: playlist,
		renderer: renderer,
		embedder: embedder,
		feed:     feed,
		router:   router,
		loaders:  loaders,
		done:     make(chan error, 1),
		sub:      sub,
	}
}

// start builds the engine from the current options and launches the
// rotation loop.
func (e *testEnv) start() {
	e.t.Helper()
	e.eng = engine.New(e.opts, e.playlist, e.loaders, nil, e.router, nil)
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	go func() {
		e.done <- e.eng.Run(ctx)
	}()
}

// stop shuts the rotation down and waits for the loop to exit.
func (e *testEnv) stop() {
	e.t.Helper()
	e.eng.Stop()
	select {
	case err := <-e.done:
		if err != nil {
			e.t.Errorf("unexpected run error: %v", err)
		}
	case <-time.After(3 * time.Second):
		e.t.Fatal("timeout waiting for rotation to stop")
	}
}

// cleanup releases the feed server and event router.
func (e *testEnv) cleanup() {
	if e.cancel != nil {
		e.cancel()
	}
	e.router.Close()
	e.feed.Close()
}

// collectEvents drains events from the subscription until timeout.
func (e *testEnv) collectEvents(timeout time.Duration) {
	deadline := time.After(timeout)
	for {
		select {
		case evt, ok := <-e.sub:
			if !ok {
				return
			}
			e.collected = append(e.collected, evt)
		case <-deadline:
			return
		}
	}
}

// findEvent returns the first collected event of the specified type.
func (e *testEnv) findEvent(eventType events.EventType) events.Event {
	for _, evt := range e.collected {
		if evt.Type() == eventType {
			return evt
		}
	}
	return nil
}

// countEvents returns the number of collected events of the specified type.
func (e *testEnv) countEvents(eventType events.EventType) int {
	count := 0
	for _, evt := range e.collected {
		if evt.Type() == eventType {
			count++
		}
	}
	return count
}

// rendered reports whether content of the given kind has landed on the
// surface for the view.
func (e *testEnv) rendered(viewID string, kind surface.ContentKind) bool {
	for _, k := range e.renderer.Kinds(viewID) {
		if k == kind {
			return true
		}
	}
	return false
}

// lastContent returns the most recent content of the given kind rendered
// for the view.
func (e *testEnv) lastContent(viewID string, kind surface.ContentKind) (surface.Content, bool) {
	var out surface.Content
	found := false
	for _, call := range e.renderer.CallsFor(viewID) {
		if call.Content.Kind == kind {
			out = call.Content
			found = true
		}
	}
	return out, found
}

func TestEmbedViewPausesRotationUntilLoad(t *testing.T) {
	playlist := []view.Descriptor{
		testutil.EmbedView("promo"),
		testutil.LeaderboardView("weekly", "weekly"),
	}
	env := newTestEnv(t, playlist, testutil.ServeJSON(testutil.FeedThreeEntries))
	defer env.cleanup()

	env.start()

	testutil.WaitFor(t, time.Second, func() bool {
		return env.embedder.NavigationCount() == 1
	}, "embed navigation")

	nav := env.embedder.LastNavigation()
	if !strings.HasPrefix(nav, "https://signage.test/promo") {
		t.Errorf("unexpected navigation address: %s", nav)
	}
	if !strings.Contains(nav, "_mq=") {
		t.Errorf("expected cache-busted address, got %s", nav)
	}
	if kinds := env.renderer.Kinds("promo"); len(kinds) == 0 || kinds[0] != surface.ContentEmbed {
		t.Errorf("expected embed card for promo, got %v", kinds)
	}

	snap := env.eng.Snapshot()
	if !snap.Waiting {
		t.Error("expected rotation to wait for the embed view")
	}
	if snap.Position != 0 {
		t.Errorf("expected position 0 while waiting, got %d", snap.Position)
	}

	// The interval must not advance a waiting rotation.
	time.Sleep(4 * env.opts.Interval)
	if pos := env.eng.Position(); pos != 0 {
		t.Errorf("rotation advanced while waiting: position %d", pos)
	}

	env.embedder.FireLoad()

	testutil.WaitFor(t, 2*time.Second, func() bool {
		return env.eng.Position() == 1
	}, "advance past the embed view")

	env.stop()
	env.collectEvents(100 * time.Millisecond)

	evt := env.findEvent(events.EventViewReady)
	if evt == nil {
		t.Fatal("expected ViewReadyEvent")
	}
	ready := evt.(*events.ViewReadyEvent)
	if ready.ViewID != "promo" {
		t.Errorf("expected promo ready, got %s", ready.ViewID)
	}
	if ready.Reason != loader.ReadyLoadEvent {
		t.Errorf("expected reason %s, got %s", loader.ReadyLoadEvent, ready.Reason)
	}
	if count := env.countEvents(events.EventViewActivate); count < 2 {
		t.Errorf("expected at least 2 activations, got %d", count)
	}
}

func TestLeaderboardViewRendersWithoutPausing(t *testing.T) {
	playlist := []view.Descriptor{
		testutil.LeaderboardView("weekly", "weekly"),
		testutil.LeaderboardView("alltime", "alltime"),
	}

	var mu sync.Mutex
	var paths, keys []string
	script := func(call int, w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		keys = append(keys, r.Header.Get("X-Api-Key"))
		mu.Unlock()
		testutil.ServeJSON(testutil.FeedThreeEntries)(call, w, r)
	}

	env := newTestEnv(t, playlist, script)
	defer env.cleanup()

	env.start()

	testutil.WaitFor(t, 2*time.Second, func() bool {
		return env.rendered("weekly", surface.ContentLeaderboard)
	}, "weekly rows rendered")

	if kinds := env.renderer.Kinds("weekly"); kinds[0] != surface.ContentLoading {
		t.Errorf("expected loading placeholder first, got %v", kinds[0])
	}
	board, ok := env.lastContent("weekly", surface.ContentLeaderboard)
	if !ok {
		t.Fatal("expected leaderboard content for weekly")
	}
	if len(board.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(board.Rows))
	}
	if board.Rows[0].Name != "Ada" || board.Rows[0].Score != 420 {
		t.Errorf("unexpected first row: %+v", board.Rows[0])
	}

	if env.eng.Snapshot().Waiting {
		t.Error("leaderboard view must not pause the rotation")
	}

	testutil.WaitFor(t, 2*time.Second, func() bool {
		return env.eng.Activations() >= 2
	}, "rotation advancing on schedule")

	env.stop()

	mu.Lock()
	if len(paths) == 0 || paths[0] != "/weekly/aggregate" {
		t.Errorf("unexpected aggregate path: %v", paths)
	}
	for _, key := range keys {
		if key != testAPIKey {
			t.Errorf("expected credential header on every request, got %q", key)
		}
	}
	mu.Unlock()

	env.collectEvents(100 * time.Millisecond)

	evt := env.findEvent(events.EventFetchOK)
	if evt == nil {
		t.Fatal("expected FetchOKEvent")
	}
	if ok := evt.(*events.FetchOKEvent); ok.Entries != 3 {
		t.Errorf("expected 3 entries, got %d", ok.Entries)
	}

	found := false
	for _, evt := range env.collected {
		if evt.Type() != events.EventViewRender {
			continue
		}
		render := evt.(*events.ViewRenderEvent)
		if render.ViewID == "weekly" && render.Content == "leaderboard" && render.Rows == 3 {
			found = true
		}
	}
	if !found {
		t.Error("expected a leaderboard render event with 3 rows")
	}
}

func TestFeedFailureKeepsRotationOnSchedule(t *testing.T) {
	playlist := []view.Descriptor{
		testutil.LeaderboardView("weekly", "weekly"),
		testutil.LeaderboardView("alltime", "alltime"),
	}
	env := newTestEnv(t, playlist, testutil.FailStatus(http.StatusInternalServerError))
	defer env.cleanup()

	env.start()

	testutil.WaitFor(t, 2*time.Second, func() bool {
		return env.rendered("weekly", surface.ContentError)
	}, "error placeholder rendered")

	placeholder, ok := env.lastContent("weekly", surface.ContentError)
	if !ok {
		t.Fatal("expected error content for weekly")
	}
	if placeholder.Err == nil {
		t.Fatal("expected a classified error on the placeholder")
	}
	if placeholder.Err.Kind != fetch.KindServer {
		t.Errorf("expected kind %s, got %s", fetch.KindServer, placeholder.Err.Kind)
	}
	if placeholder.Err.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", placeholder.Err.Attempts)
	}

	// A failing feed never stalls the rotation.
	testutil.WaitFor(t, 2*time.Second, func() bool {
		return env.eng.Activations() >= 3
	}, "rotation advancing past the failure")

	env.stop()

	if env.feed.Calls() < 2 {
		t.Errorf("expected retries against the feed, got %d calls", env.feed.Calls())
	}

	env.collectEvents(100 * time.Millisecond)

	if env.countEvents(events.EventFetchRetry) < 1 {
		t.Error("expected at least one FetchRetryEvent")
	}
	evt := env.findEvent(events.EventFetchFailed)
	if evt == nil {
		t.Fatal("expected FetchFailedEvent")
	}
	failed := evt.(*events.FetchFailedEvent)
	if failed.ErrorKind != string(fetch.KindServer) {
		t.Errorf("expected error kind %s, got %s", fetch.KindServer, failed.ErrorKind)
	}
	if failed.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", failed.Attempts)
	}
}

func TestFeedRecoversAfterRetry(t *testing.T) {
	playlist := []view.Descriptor{testutil.LeaderboardView("weekly", "weekly")}
	env := newTestEnv(t, playlist, testutil.FailThenServe(1, http.StatusBadGateway, testutil.FeedThreeEntries))
	defer env.cleanup()

	env.start()

	testutil.WaitFor(t, 2*time.Second, func() bool {
		return env.rendered("weekly", surface.ContentLeaderboard)
	}, "rows rendered after retry")

	env.stop()

	if env.feed.Calls() < 2 {
		t.Errorf("expected a retried fetch, got %d calls", env.feed.Calls())
	}
	if env.rendered("weekly", surface.ContentError) {
		t.Error("expected no error placeholder when the retry recovered")
	}

	env.collectEvents(100 * time.Millisecond)

	if env.countEvents(events.EventFetchRetry) < 1 {
		t.Error("expected at least one FetchRetryEvent")
	}
	if env.findEvent(events.EventFetchOK) == nil {
		t.Error("expected FetchOKEvent after recovery")
	}
}

func TestEmptyFeedRendersEmptyState(t *testing.T) {
	playlist := []view.Descriptor{testutil.LeaderboardView("weekly", "weekly")}
	env := newTestEnv(t, playlist, testutil.ServeJSON(testutil.FeedEmpty))
	defer env.cleanup()

	env.start()

	testutil.WaitFor(t, 2*time.Second, func() bool {
		return env.rendered("weekly", surface.ContentEmpty)
	}, "empty state rendered")

	env.stop()

	if env.rendered("weekly", surface.ContentError) {
		t.Error("expected an empty feed to render as empty, not as an error")
	}
}

func TestMixedPlaylistWrapsAround(t *testing.T) {
	env := newTestEnv(t, testutil.MixedPlaylist(), testutil.ServeJSON(testutil.FeedThreeEntries))
	defer env.cleanup()
	env.opts.Interval = 30 * time.Millisecond

	env.start()

	testutil.WaitFor(t, time.Second, func() bool {
		return env.embedder.NavigationCount() == 1
	}, "first embed navigation")
	env.embedder.FireLoad()

	// One full cycle brings the embed view back up.
	testutil.WaitFor(t, 3*time.Second, func() bool {
		return env.embedder.NavigationCount() == 2
	}, "second embed navigation")
	env.embedder.FireLoad()

	testutil.WaitFor(t, 2*time.Second, func() bool {
		return env.eng.Activations() >= 5
	}, "rotation past the second cycle")

	navs := env.embedder.Navigations()
	if navs[0] == navs[1] {
		t.Error("expected a fresh cache-busted address per activation")
	}

	env.stop()
	env.collectEvents(100 * time.Millisecond)

	if env.findEvent(events.EventCycleStart) == nil {
		t.Error("expected CycleStartEvent")
	}
	if count := env.countEvents(events.EventViewActivate); count < 5 {
		t.Errorf("expected at least 5 activations, got %d", count)
	}
}

func TestOperatorHoldParksRotation(t *testing.T) {
	playlist := []view.Descriptor{
		testutil.LeaderboardView("weekly", "weekly"),
		testutil.LeaderboardView("alltime", "alltime"),
	}
	env := newTestEnv(t, playlist, testutil.ServeJSON(testutil.FeedThreeEntries))
	defer env.cleanup()

	env.start()

	testutil.WaitFor(t, time.Second, func() bool {
		return env.eng.Running()
	}, "rotation running")

	env.eng.Hold()
	testutil.WaitFor(t, time.Second, func() bool {
		return env.eng.Held()
	}, "hold to take effect")

	held := env.eng.Activations()
	time.Sleep(4 * env.opts.Interval)
	if got := env.eng.Activations(); got != held {
		t.Errorf("rotation advanced while held: %d -> %d", held, got)
	}

	env.eng.Resume()
	testutil.WaitFor(t, time.Second, func() bool {
		return env.eng.Activations() > held
	}, "advance after resume")

	env.stop()
	env.collectEvents(100 * time.Millisecond)

	if env.findEvent(events.EventRotationHeld) == nil {
		t.Error("expected RotationHeldEvent")
	}
	if env.findEvent(events.EventRotationResumed) == nil {
		t.Error("expected RotationResumedEvent")
	}
}

func TestManualAdvanceMovesImmediately(t *testing.T) {
	playlist := []view.Descriptor{
		testutil.LeaderboardView("weekly", "weekly"),
		testutil.LeaderboardView("alltime", "alltime"),
	}
	env := newTestEnv(t, playlist, testutil.ServeJSON(testutil.FeedThreeEntries))
	defer env.cleanup()
	// An interval far beyond the test keeps the clock out of the picture.
	env.opts.Interval = time.Minute

	env.start()

	testutil.WaitFor(t, time.Second, func() bool {
		return env.eng.Activations() == 1
	}, "first activation")

	env.eng.Advance()
	testutil.WaitFor(t, time.Second, func() bool {
		return env.eng.Position() == 1
	}, "manual advance")

	env.eng.Advance()
	testutil.WaitFor(t, time.Second, func() bool {
		return env.eng.Position() == 0 && env.eng.Activations() == 3
	}, "wrap-around on manual advance")

	env.stop()
}

func TestSafetyTimerResumesSilentEmbed(t *testing.T) {
	playlist := []view.Descriptor{
		testutil.EmbedView("promo"),
		testutil.LeaderboardView("weekly", "weekly"),
	}
	env := newTestEnv(t, playlist, testutil.ServeJSON(testutil.FeedThreeEntries))
	defer env.cleanup()
	env.opts.MaxViewLoad = 60 * time.Millisecond

	env.start()

	// No load event ever fires; the safety cap has to step in.
	testutil.WaitFor(t, 2*time.Second, func() bool {
		return env.eng.Position() == 1
	}, "safety timer to resume the rotation")

	env.stop()
	env.collectEvents(100 * time.Millisecond)

	evt := env.findEvent(events.EventViewLoadTimeout)
	if evt == nil {
		t.Fatal("expected ViewLoadTimeoutEvent")
	}
	timeout := evt.(*events.ViewLoadTimeoutEvent)
	if timeout.ViewID != "promo" {
		t.Errorf("expected promo to time out, got %s", timeout.ViewID)
	}
	if timeout.WaitedMs <= 0 {
		t.Errorf("expected a positive wait, got %dms", timeout.WaitedMs)
	}
}

func TestGracefulShutdown(t *testing.T) {
	env := newTestEnv(t, testutil.MixedPlaylist(), testutil.ServeJSON(testutil.FeedThreeEntries))
	defer env.cleanup()

	env.start()

	testutil.WaitFor(t, time.Second, func() bool {
		return env.embedder.NavigationCount() == 1
	}, "first activation")

	// Stop while the rotation is waiting on the embed view.
	start := time.Now()
	env.eng.Stop()

	select {
	case err := <-env.done:
		elapsed := time.Since(start)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if elapsed > 3*time.Second {
			t.Errorf("shutdown took too long: %v", elapsed)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for graceful shutdown")
	}

	if env.eng.State() != engine.StateStopped {
		t.Errorf("expected state %s, got %s", engine.StateStopped, env.eng.State())
	}

	env.collectEvents(100 * time.Millisecond)

	evt := env.findEvent(events.EventCycleStop)
	if evt == nil {
		t.Fatal("expected CycleStopEvent")
	}
	if stop := evt.(*events.CycleStopEvent); stop.Reason == "" {
		t.Error("expected non-empty stop reason")
	}
}
