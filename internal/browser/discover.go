package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// discoverTimeout bounds a single target-list request.
const discoverTimeout = 3 * time.Second

// target is one entry from the browser's /json/list endpoint.
type target struct {
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// DiscoverPage asks the browser's debug endpoint for its targets and returns
// the websocket debugger URL of the first page target. The debug URL is the
// http root, for example http://127.0.0.1:9222.
func DiscoverPage(ctx context.Context, debugURL string) (string, error) {
	listURL := strings.TrimSuffix(debugURL, "/") + "/json/list"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return "", fmt.Errorf("build target list request: %w", err)
	}

	client := &http.Client{Timeout: discoverTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("list targets: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("list targets: unexpected status %d", resp.StatusCode)
	}

	var targets []target
	if err := json.NewDecoder(resp.Body).Decode(&targets); err != nil {
		return "", fmt.Errorf("parse target list: %w", err)
	}

	for _, t := range targets {
		if t.Type == "page" && t.WebSocketDebuggerURL != "" {
			return t.WebSocketDebuggerURL, nil
		}
	}
	return "", fmt.Errorf("no debuggable page target at %s", debugURL)
}

// WaitForPage polls the debug endpoint until a page target appears or the
// context ends. A freshly launched browser takes a moment to open its debug
// port, so the first attempts are expected to fail.
func WaitForPage(ctx context.Context, debugURL string) (string, error) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		wsURL, err := DiscoverPage(ctx, debugURL)
		if err == nil {
			return wsURL, nil
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("waiting for page target: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
