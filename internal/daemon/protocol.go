package daemon

import "github.com/awidmer/marquee/internal/engine"

// Request is a JSON-RPC request from a client.
type Request struct {
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
	ID     int    `json:"id,omitempty"`
}

// Response is a JSON-RPC response to a client.
type Response struct {
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	ID     int    `json:"id,omitempty"`
}

// StatusResponse describes the daemon and the rotation it drives.
type StatusResponse struct {
	Status    string          `json:"status"`
	Uptime    string          `json:"uptime"`
	StartTime string          `json:"start_time"`
	PID       int             `json:"pid"`
	PanelURL  string          `json:"panel_url,omitempty"`
	Rotation  engine.Snapshot `json:"rotation"`
}

// StopParams carries options for the stop method.
type StopParams struct {
	Force bool `json:"force,omitempty"`
}
