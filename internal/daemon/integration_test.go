package daemon

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/awidmer/marquee/internal/config"
	"github.com/awidmer/marquee/internal/engine"
	"github.com/awidmer/marquee/internal/loader"
	"github.com/awidmer/marquee/internal/testutil"
	"github.com/awidmer/marquee/internal/view"
)

// autoLoader signals ready as soon as a view activates, standing in for
// both strategies so rotation control can be exercised end to end.
type autoLoader struct {
	kind view.Kind
}

func (l autoLoader) Kind() view.Kind      { return l.kind }
func (l autoLoader) BlocksRotation() bool { return false }

func (l autoLoader) Begin(ctx context.Context, v view.Descriptor, ready func()) {
	ready()
}

// testDaemonEnv wires a real engine behind a daemon plus a client.
type testDaemonEnv struct {
	t      *testing.T
	cfg    *config.Config
	eng    *engine.Engine
	daemon *Daemon
	client *Client
}

func newTestDaemonEnv(t *testing.T) *testDaemonEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Paths.Socket = shortSocketPath(t)

	playlist := []view.Descriptor{
		testutil.LeaderboardView("weekly", "weekly"),
		testutil.LeaderboardView("monthly", "monthly"),
		testutil.LeaderboardView("alltime", "alltime"),
	}
	loaders := loader.NewSet(
		autoLoader{kind: view.KindLeaderboard},
		autoLoader{kind: view.KindEmbed},
	)

	// An hour-long interval keeps the rotation still unless driven by RPC.
	eng := engine.New(engine.Options{Interval: time.Hour, MaxViewLoad: time.Hour}, playlist, loaders, nil, nil, nil)

	d := New(cfg, eng, nil)
	client := NewClient(cfg.Paths.Socket)

	return &testDaemonEnv{
		t:      t,
		cfg:    cfg,
		eng:    eng,
		daemon: d,
		client: client,
	}
}

// start runs the engine and daemon and waits for the socket.
// Returns the daemon's exit channel.
func (e *testDaemonEnv) start(ctx context.Context) <-chan error {
	go func() {
		_ = e.eng.Run(ctx)
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.daemon.Start(ctx)
	}()

	waitForSocket(e.t, e.cfg.Paths.Socket, 2*time.Second)
	return errCh
}

// waitStatus polls the client until cond accepts a status response.
func (e *testDaemonEnv) waitStatus(cond func(*StatusResponse) bool, what string) *StatusResponse {
	e.t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		status, err := e.client.Status()
		if err == nil && cond(status) {
			return status
		}
		select {
		case <-deadline:
			e.t.Fatalf("timeout waiting for %s (last: %+v, err: %v)", what, status, err)
			return nil
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func TestDaemonLifecycle_WithEngine(t *testing.T) {
	env := newTestDaemonEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := env.start(ctx)

	if !env.daemon.Running() {
		t.Error("daemon should be running after start")
	}
	if !env.client.IsRunning() {
		t.Error("client.IsRunning() should return true")
	}

	status := env.waitStatus(func(s *StatusResponse) bool {
		return s.Status == string(engine.StateRunning)
	}, "running rotation")

	if status.Rotation.Views != 3 {
		t.Errorf("views = %d, want 3", status.Rotation.Views)
	}
	if status.Rotation.Position != 0 {
		t.Errorf("position = %d, want 0", status.Rotation.Position)
	}
	if status.Rotation.Current.ID != "weekly" {
		t.Errorf("current = %q, want weekly", status.Rotation.Current.ID)
	}
	if status.Uptime == "" {
		t.Error("expected non-empty uptime")
	}
	if status.StartTime == "" {
		t.Error("expected non-empty start time")
	}
	if status.PID != os.Getpid() {
		t.Errorf("PID = %d, want %d", status.PID, os.Getpid())
	}

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("daemon Start() returned error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for daemon to stop")
	}

	if env.daemon.Running() {
		t.Error("daemon should not be running after stop")
	}
	if _, err := os.Stat(env.cfg.Paths.Socket); !os.IsNotExist(err) {
		t.Error("socket file should be removed after stop")
	}
}

func TestDaemonAdvance_WithEngine(t *testing.T) {
	env := newTestDaemonEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env.start(ctx)
	env.waitStatus(func(s *StatusResponse) bool {
		return s.Status == string(engine.StateRunning)
	}, "running rotation")

	if err := env.client.Advance(); err != nil {
		t.Fatalf("Advance() error: %v", err)
	}

	status := env.waitStatus(func(s *StatusResponse) bool {
		return s.Rotation.Position == 1
	}, "position 1 after advance")

	if status.Rotation.Current.ID != "monthly" {
		t.Errorf("current = %q, want monthly", status.Rotation.Current.ID)
	}
}

func TestDaemonHoldResume_WithEngine(t *testing.T) {
	env := newTestDaemonEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env.start(ctx)
	env.waitStatus(func(s *StatusResponse) bool {
		return s.Status == string(engine.StateRunning)
	}, "running rotation")

	if err := env.client.Hold(); err != nil {
		t.Fatalf("Hold() error: %v", err)
	}
	env.waitStatus(func(s *StatusResponse) bool {
		return s.Rotation.Held
	}, "held rotation")

	if err := env.client.Resume(); err != nil {
		t.Fatalf("Resume() error: %v", err)
	}
	env.waitStatus(func(s *StatusResponse) bool {
		return !s.Rotation.Held
	}, "released hold")
}

func TestDaemonReload_WithEngine(t *testing.T) {
	env := newTestDaemonEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Reload swaps in a four-view playlist, as a config re-read would.
	env.daemon.SetReloadFunc(func() error {
		env.eng.ReplaceViews([]view.Descriptor{
			testutil.LeaderboardView("weekly", "weekly"),
			testutil.LeaderboardView("monthly", "monthly"),
			testutil.LeaderboardView("alltime", "alltime"),
			testutil.EmbedView("promo"),
		})
		return nil
	})

	env.start(ctx)
	env.waitStatus(func(s *StatusResponse) bool {
		return s.Status == string(engine.StateRunning)
	}, "running rotation")

	if err := env.client.Reload(); err != nil {
		t.Fatalf("Reload() error: %v", err)
	}

	env.waitStatus(func(s *StatusResponse) bool {
		return s.Rotation.Views == 4
	}, "four views after reload")
}

func TestDaemonStopRPC_WithEngine(t *testing.T) {
	env := newTestDaemonEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := env.start(ctx)
	env.waitStatus(func(s *StatusResponse) bool {
		return s.Status == string(engine.StateRunning)
	}, "running rotation")

	if err := env.client.Stop(false); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("daemon Start() returned error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("stop RPC did not shut the daemon down")
	}

	testutil.WaitFor(t, 2*time.Second, func() bool {
		return env.eng.State() == engine.StateStopped
	}, "engine stop")
}

func TestDaemonForceStopRPC_WithEngine(t *testing.T) {
	env := newTestDaemonEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := env.start(ctx)
	env.waitStatus(func(s *StatusResponse) bool {
		return s.Status == string(engine.StateRunning)
	}, "running rotation")

	start := time.Now()
	if err := env.client.Stop(true); err != nil {
		t.Fatalf("Stop(force=true) error: %v", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("daemon Start() returned error: %v", err)
		}
		if elapsed := time.Since(start); elapsed > time.Second {
			t.Errorf("force stop took %v", elapsed)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for daemon to stop")
	}
}
