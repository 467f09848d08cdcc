package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"
)

// DefaultClientTimeout bounds each client RPC round trip.
const DefaultClientTimeout = 5 * time.Second

// Client talks to a running daemon over its Unix socket.
type Client struct {
	sockPath string
	timeout  time.Duration
}

// NewClient creates a client for the daemon at the given socket path.
func NewClient(sockPath string) *Client {
	return &Client{
		sockPath: sockPath,
		timeout:  DefaultClientTimeout,
	}
}

// SetTimeout sets the timeout for client operations.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// call sends one JSON-RPC request and returns the decoded response.
func (c *Client) call(method string, params any) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.sockPath, c.timeout)
	if err != nil {
		return nil, c.wrapConnError(err)
	}
	defer func() { _ = conn.Close() }()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	req := Request{Method: method, Params: params}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.Error != "" {
		return nil, fmt.Errorf("daemon error: %s", resp.Error)
	}

	return &resp, nil
}

// wrapConnError converts connection errors into actionable messages.
func (c *Client) wrapConnError(err error) error {
	var sysErr syscall.Errno
	if errors.As(err, &sysErr) {
		switch sysErr {
		case syscall.ENOENT:
			return errors.New("marquee daemon not running (socket not found)")
		case syscall.ECONNREFUSED:
			return errors.New("marquee daemon not running (connection refused)")
		}
	}

	if os.IsNotExist(err) {
		return errors.New("marquee daemon not running (socket not found)")
	}

	if errors.Is(err, os.ErrDeadlineExceeded) {
		return errors.New("daemon request timed out")
	}

	return fmt.Errorf("connect to daemon: %w", err)
}

// Status returns the daemon and rotation status.
func (c *Client) Status() (*StatusResponse, error) {
	resp, err := c.call("status", nil)
	if err != nil {
		return nil, err
	}

	// The result arrived as map[string]any; round-trip it into the typed form.
	data, err := json.Marshal(resp.Result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}

	var status StatusResponse
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("unmarshal status: %w", err)
	}

	return &status, nil
}

// Advance asks the daemon to skip to the next view.
func (c *Client) Advance() error {
	_, err := c.call("advance", nil)
	return err
}

// Hold asks the daemon to park the rotation on the current view.
func (c *Client) Hold() error {
	_, err := c.call("hold", nil)
	return err
}

// Resume asks the daemon to release an operator hold.
func (c *Client) Resume() error {
	_, err := c.call("resume", nil)
	return err
}

// Reload asks the daemon to re-read its config and apply the new playlist.
func (c *Client) Reload() error {
	_, err := c.call("reload", nil)
	return err
}

// Stop asks the daemon to shut down. Force skips the grace delay.
func (c *Client) Stop(force bool) error {
	params := StopParams{Force: force}
	_, err := c.call("stop", params)
	return err
}

// IsRunning checks whether the daemon accepts connections.
func (c *Client) IsRunning() bool {
	conn, err := net.DialTimeout("unix", c.sockPath, time.Second)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
