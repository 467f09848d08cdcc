// Package browser drives a kiosk browser over the Chrome DevTools protocol.
// It provides the websocket client used to navigate the screen surface, the
// HTTP discovery of debuggable page targets, and a supervised launcher for
// the browser process itself.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// command is a DevTools protocol request.
type command struct {
	ID     int64          `json:"id"`
	Method string         `json:"method"`
	Params map[string]any `json:"params,omitempty"`
}

// envelope is a DevTools protocol message from the browser. Replies carry an
// ID matching a command; events carry a Method and no ID.
type envelope struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *protocolError  `json:"error,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
}

type protocolError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *protocolError) Error() string {
	return fmt.Sprintf("devtools error %d: %s", e.Code, e.Message)
}

type callResult struct {
	result json.RawMessage
	err    error
}

// DevTools is a client for a single debuggable page target. It satisfies the
// embed surface contract: navigation, load event delivery, and inspection of
// the page's address and document readiness.
//
// All command methods are safe for concurrent use. Replies are correlated to
// commands by ID in a single reader goroutine.
type DevTools struct {
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex // serializes websocket writes

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan callResult
	closed  bool
	connErr error

	loadCh chan struct{}
	done   chan struct{}
}

// Dial connects to a page target's websocket debugger URL and enables page
// event delivery. The caller owns the returned client and must Close it.
func Dial(ctx context.Context, wsURL string, logger *slog.Logger) (*DevTools, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial devtools: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	c := &DevTools{
		conn:    conn,
		logger:  logger.With("component", "devtools"),
		pending: make(map[int64]chan callResult),
		loadCh:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go c.readLoop()

	// Page.enable turns on lifecycle events, including loadEventFired.
	if _, err := c.call(ctx, "Page.enable", nil); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("enable page events: %w", err)
	}

	c.logger.Debug("devtools attached", "url", wsURL)
	return c, nil
}

// readLoop consumes messages until the connection dies, routing replies to
// their waiting callers and load events to the load channel.
func (c *DevTools) readLoop() {
	for {
		var msg envelope
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.failPending(fmt.Errorf("devtools connection lost: %w", err))
			return
		}

		if msg.ID != 0 {
			c.dispatch(msg)
			continue
		}

		if msg.Method == "Page.loadEventFired" {
			select {
			case c.loadCh <- struct{}{}:
			default:
				// Signal already pending
			}
		}
	}
}

func (c *DevTools) dispatch(msg envelope) {
	c.mu.Lock()
	ch, ok := c.pending[msg.ID]
	if ok {
		delete(c.pending, msg.ID)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("reply for unknown command", "id", msg.ID)
		return
	}

	if msg.Error != nil {
		ch <- callResult{err: msg.Error}
		return
	}
	ch <- callResult{result: msg.Result}
}

// failPending closes the client state after a read failure, delivering the
// error to every in-flight call.
func (c *DevTools) failPending(err error) {
	c.mu.Lock()
	if c.connErr == nil {
		c.connErr = err
	}
	stale := c.pending
	c.pending = make(map[int64]chan callResult)
	c.mu.Unlock()

	for _, ch := range stale {
		ch <- callResult{err: err}
	}
	close(c.done)
}

// call sends one command and waits for its reply, the context, or the
// connection going away, whichever comes first.
func (c *DevTools) call(ctx context.Context, method string, params map[string]any) (json.RawMessage, error) {
	c.mu.Lock()
	if c.closed {
		err := c.connErr
		c.mu.Unlock()
		if err == nil {
			err = fmt.Errorf("devtools client closed")
		}
		return nil, err
	}
	c.nextID++
	id := c.nextID
	ch := make(chan callResult, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	err := c.conn.WriteJSON(command{ID: id, Method: method, Params: params})
	c.writeMu.Unlock()
	if err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, fmt.Errorf("send %s: %w", method, err)
	}

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("%s: %w", method, res.err)
		}
		return res.result, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, ctx.Err()
	case <-c.done:
		c.mu.Lock()
		err := c.connErr
		c.mu.Unlock()
		if err == nil {
			err = fmt.Errorf("devtools connection closed")
		}
		return nil, err
	}
}

// Navigate points the page at the given address.
func (c *DevTools) Navigate(ctx context.Context, address string) error {
	res, err := c.call(ctx, "Page.navigate", map[string]any{"url": address})
	if err != nil {
		return err
	}

	var nav struct {
		ErrorText string `json:"errorText"`
	}
	if err := json.Unmarshal(res, &nav); err != nil {
		return fmt.Errorf("parse navigate reply: %w", err)
	}
	if nav.ErrorText != "" {
		return fmt.Errorf("navigate to %s: %s", address, nav.ErrorText)
	}
	return nil
}

// LoadEvents returns the channel that receives a token each time the page
// fires its load event. The channel is never closed and drops tokens while
// one is already pending.
func (c *DevTools) LoadEvents() <-chan struct{} {
	return c.loadCh
}

// Location reports the page's current address.
func (c *DevTools) Location(ctx context.Context) (string, error) {
	return c.evaluate(ctx, "location.href")
}

// ReadyState reports the page's document.readyState.
func (c *DevTools) ReadyState(ctx context.Context) (string, error) {
	return c.evaluate(ctx, "document.readyState")
}

// evaluate runs a JavaScript expression in the page and returns its string
// value.
func (c *DevTools) evaluate(ctx context.Context, expr string) (string, error) {
	res, err := c.call(ctx, "Runtime.evaluate", map[string]any{
		"expression":    expr,
		"returnByValue": true,
	})
	if err != nil {
		return "", err
	}

	var eval struct {
		Result struct {
			Value string `json:"value"`
		} `json:"result"`
		ExceptionDetails *struct {
			Text string `json:"text"`
		} `json:"exceptionDetails"`
	}
	if err := json.Unmarshal(res, &eval); err != nil {
		return "", fmt.Errorf("parse evaluate reply: %w", err)
	}
	if eval.ExceptionDetails != nil {
		return "", fmt.Errorf("evaluate %s: %s", expr, eval.ExceptionDetails.Text)
	}
	return eval.Result.Value, nil
}

// Close tears down the websocket. In-flight calls fail with a connection
// error. Safe to call more than once.
func (c *DevTools) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.conn.Close()
	<-c.done
	return err
}
