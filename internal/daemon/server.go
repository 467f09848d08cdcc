package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"time"
)

const (
	// maxMessageSize caps a single RPC message at 1MB.
	maxMessageSize = 1024 * 1024
	// readTimeout bounds how long a client may take to send its request.
	readTimeout = 30 * time.Second
	// socketPermissions restrict the control socket to the owning user.
	socketPermissions = 0600
)

// Start listens on the Unix socket and serves control requests. It blocks
// until the context is cancelled or a stop request arrives. A Daemon serves
// once; create a new one to serve again.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon already running")
	}
	d.mu.Unlock()

	// Remove a stale socket left behind by a crashed instance.
	_ = os.Remove(d.sockPath)

	listener, err := net.Listen("unix", d.sockPath)
	if err != nil {
		return fmt.Errorf("listen on socket: %w", err)
	}

	if err := os.Chmod(d.sockPath, socketPermissions); err != nil {
		_ = listener.Close()
		return fmt.Errorf("set socket permissions: %w", err)
	}

	d.mu.Lock()
	d.listener = listener
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	d.logger.Info("daemon started", "socket", d.sockPath)

	go d.serve(ctx, listener)

	// A stop RPC must unblock this wait too, not just context cancellation.
	select {
	case <-ctx.Done():
	case <-d.stopCh:
	}

	return d.Stop()
}

// Stop closes the listener and removes the socket. Idempotent.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	listener := d.listener
	d.listener = nil
	d.mu.Unlock()

	if listener != nil {
		if err := listener.Close(); err != nil {
			d.logger.Error("error closing listener", "error", err)
		}
	}

	_ = os.Remove(d.sockPath)

	d.stopOnce.Do(func() { close(d.stopCh) })
	d.logger.Info("daemon stopped")
	return nil
}

// serve accepts connections and dispatches them to handlers.
func (d *Daemon) serve(ctx context.Context, listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				d.mu.RLock()
				running := d.running
				d.mu.RUnlock()
				if !running {
					return
				}
				d.logger.Error("accept error", "error", err)
				continue
			}
		}

		go d.handleConnection(ctx, conn)
	}
}

// handleConnection reads one request, dispatches it, and writes the response.
func (d *Daemon) handleConnection(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()

	if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		d.logger.Error("set read deadline error", "error", err)
		return
	}

	// Bound the request size so a misbehaving client cannot exhaust memory.
	limitedReader := io.LimitReader(conn, maxMessageSize)
	decoder := json.NewDecoder(limitedReader)
	encoder := json.NewEncoder(conn)

	var req Request
	if err := decoder.Decode(&req); err != nil {
		_ = encoder.Encode(Response{Error: fmt.Sprintf("decode error: %v", err)})
		return
	}

	resp := d.handleRequest(ctx, &req)
	resp.ID = req.ID
	_ = encoder.Encode(resp)
}
