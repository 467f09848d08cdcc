// Package daemon runs marquee in the background and exposes rotation
// control over a Unix socket RPC interface.
package daemon

import (
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/awidmer/marquee/internal/config"
	"github.com/awidmer/marquee/internal/engine"
)

// Rotation is the slice of the engine the daemon exposes over RPC.
type Rotation interface {
	Snapshot() engine.Snapshot
	Advance()
	Hold()
	Resume()
	Stop()
}

// Daemon serves rotation control requests on a Unix socket.
type Daemon struct {
	config    *config.Config
	rotation  Rotation
	reload    func() error
	panelURL  string
	sockPath  string
	startTime time.Time
	logger    *slog.Logger

	running  bool
	listener net.Listener
	mu       sync.RWMutex
	stopOnce sync.Once
	stopCh   chan struct{}
}

// New creates a Daemon controlling the given rotation.
func New(cfg *config.Config, rot Rotation, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}
	return &Daemon{
		config:   cfg,
		rotation: rot,
		sockPath: cfg.Paths.Socket,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// SetReloadFunc installs the function the reload RPC invokes. The function
// re-reads the deployment config and hands the new playlist to the engine.
func (d *Daemon) SetReloadFunc(fn func() error) {
	d.mu.Lock()
	d.reload = fn
	d.mu.Unlock()
}

// SetPanelURL records the bound panel address for status responses.
func (d *Daemon) SetPanelURL(url string) {
	d.mu.Lock()
	d.panelURL = url
	d.mu.Unlock()
}

// Running reports whether the daemon is accepting connections.
func (d *Daemon) Running() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

// StartTime returns when the daemon started serving.
func (d *Daemon) StartTime() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.startTime
}

// SocketPath returns the Unix socket path.
func (d *Daemon) SocketPath() string {
	return d.sockPath
}
