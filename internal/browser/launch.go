package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// DefaultBinary is the browser binary used when none is configured.
const DefaultBinary = "chromium"

// stopGrace is how long Stop waits after SIGTERM before escalating.
const stopGrace = 3 * time.Second

// LaunchOptions configures the kiosk browser process.
type LaunchOptions struct {
	Binary    string   // browser executable, DefaultBinary when empty
	DebugPort int      // remote debugging port
	StartURL  string   // initial page
	ExtraArgs []string // appended after the standard kiosk flags
}

// kioskArgs builds the browser command line. Extra args come after the
// standard flags so a deployment can override them.
func kioskArgs(opts LaunchOptions) []string {
	args := []string{
		"--kiosk",
		"--no-first-run",
		"--noerrdialogs",
		"--disable-infobars",
		"--disable-session-crashed-bubble",
		fmt.Sprintf("--remote-debugging-port=%d", opts.DebugPort),
		"--remote-allow-origins=*",
	}
	args = append(args, opts.ExtraArgs...)
	if opts.StartURL != "" {
		args = append(args, opts.StartURL)
	}
	return args
}

// Process is a supervised browser child. The browser runs in its own process
// group so that Stop can take down the renderer children it spawns.
type Process struct {
	opts   LaunchOptions
	logger *slog.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	started bool
	waitErr error

	done chan struct{}
}

// Launch starts the browser and begins supervising it. The returned Process
// reports exit through Done and Err.
func Launch(opts LaunchOptions, logger *slog.Logger) (*Process, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Binary == "" {
		opts.Binary = DefaultBinary
	}

	p := &Process{
		opts:   opts,
		logger: logger.With("component", "browser"),
		done:   make(chan struct{}),
	}

	args := kioskArgs(opts)
	p.cmd = exec.Command(opts.Binary, args...)
	p.cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := p.cmd.Start(); err != nil {
		return nil, fmt.Errorf("start browser: %w", err)
	}
	p.started = true
	p.logger.Info("browser started", "binary", opts.Binary, "pid", p.cmd.Process.Pid, "debug_port", opts.DebugPort)

	go p.wait()
	return p, nil
}

// wait reaps the child and publishes its exit.
func (p *Process) wait() {
	err := p.cmd.Wait()

	p.mu.Lock()
	p.waitErr = err
	p.mu.Unlock()

	if err != nil {
		p.logger.Warn("browser exited", "error", err)
	} else {
		p.logger.Info("browser exited")
	}
	close(p.done)
}

// DebugURL returns the http root of the browser's debug endpoint.
func (p *Process) DebugURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", p.opts.DebugPort)
}

// Done returns a channel closed when the browser exits.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Err returns the exit error once Done is closed.
func (p *Process) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waitErr
}

// Running reports whether the browser is still alive.
func (p *Process) Running() bool {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()

	if !started {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Stop terminates the browser's process group, asking politely first and
// escalating to SIGKILL after a grace period. Safe to call when the browser
// has already exited.
func (p *Process) Stop() error {
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	select {
	case <-p.done:
		return nil
	default:
	}

	pgid := cmd.Process.Pid
	if err := syscall.Kill(-pgid, syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal browser: %w", err)
	}

	select {
	case <-p.done:
		return nil
	case <-time.After(stopGrace):
	}

	p.logger.Warn("browser ignored SIGTERM, killing", "pid", pgid)
	if err := syscall.Kill(-pgid, syscall.SIGKILL); err != nil {
		return fmt.Errorf("kill browser: %w", err)
	}
	<-p.done
	return nil
}

// Attach launches the browser, waits for its debug endpoint to come up, and
// dials the first page target. On any failure the browser is stopped again.
func Attach(ctx context.Context, opts LaunchOptions, logger *slog.Logger) (*Process, *DevTools, error) {
	proc, err := Launch(opts, logger)
	if err != nil {
		return nil, nil, err
	}

	wsURL, err := WaitForPage(ctx, proc.DebugURL())
	if err != nil {
		_ = proc.Stop()
		return nil, nil, err
	}

	dt, err := Dial(ctx, wsURL, logger)
	if err != nil {
		_ = proc.Stop()
		return nil, nil, err
	}
	return proc, dt, nil
}
