package daemon

import (
	"context"
	"fmt"
	"os"
	"time"
)

// handleRequest dispatches the request to the matching handler.
func (d *Daemon) handleRequest(ctx context.Context, req *Request) Response {
	switch req.Method {
	case "status":
		return d.handleStatus()
	case "advance":
		return d.handleAdvance()
	case "hold":
		return d.handleHold()
	case "resume":
		return d.handleResume()
	case "reload":
		return d.handleReload()
	case "stop":
		return d.handleStop(req)
	default:
		return Response{Error: fmt.Sprintf("unknown method: %s", req.Method)}
	}
}

// handleStatus reports the daemon and rotation state.
func (d *Daemon) handleStatus() Response {
	if d.rotation == nil {
		return Response{Error: "no rotation available"}
	}

	snap := d.rotation.Snapshot()

	d.mu.RLock()
	startTime := d.startTime
	panelURL := d.panelURL
	d.mu.RUnlock()

	return Response{
		Result: StatusResponse{
			Status:    string(snap.State),
			Uptime:    time.Since(startTime).Truncate(time.Second).String(),
			StartTime: startTime.Format(time.RFC3339),
			PID:       os.Getpid(),
			PanelURL:  panelURL,
			Rotation:  snap,
		},
	}
}

// handleAdvance skips to the next view.
func (d *Daemon) handleAdvance() Response {
	if d.rotation == nil {
		return Response{Error: "no rotation available"}
	}

	d.rotation.Advance()
	return Response{Result: "advancing"}
}

// handleHold parks the rotation on the current view.
func (d *Daemon) handleHold() Response {
	if d.rotation == nil {
		return Response{Error: "no rotation available"}
	}

	d.rotation.Hold()
	return Response{Result: "holding"}
}

// handleResume releases an operator hold.
func (d *Daemon) handleResume() Response {
	if d.rotation == nil {
		return Response{Error: "no rotation available"}
	}

	d.rotation.Resume()
	return Response{Result: "resuming"}
}

// handleReload re-reads the deployment config and applies the new playlist.
func (d *Daemon) handleReload() Response {
	d.mu.RLock()
	reload := d.reload
	d.mu.RUnlock()

	if reload == nil {
		return Response{Error: "reload not available"}
	}

	if err := reload(); err != nil {
		return Response{Error: fmt.Sprintf("reload failed: %v", err)}
	}
	return Response{Result: "reloaded"}
}

// handleStop stops the rotation and schedules daemon shutdown.
func (d *Daemon) handleStop(req *Request) Response {
	if d.rotation == nil {
		return Response{Error: "no rotation available"}
	}

	force := false
	if params, ok := req.Params.(map[string]interface{}); ok {
		if f, ok := params["force"].(bool); ok {
			force = f
		}
	}

	d.rotation.Stop()

	// Shut down after the response has been written.
	go func() {
		if force {
			time.Sleep(50 * time.Millisecond)
		} else {
			time.Sleep(100 * time.Millisecond)
		}
		_ = d.Stop()
	}()

	return Response{Result: "stopping"}
}
