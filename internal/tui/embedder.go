package tui

import (
	"context"
	"sync"
	"time"
)

// DefaultPreviewDelay is how long the preview embedder takes to "load" a
// page when no delay is configured.
const DefaultPreviewDelay = 400 * time.Millisecond

// PreviewEmbedder stands in for the kiosk browser when marquee runs in a
// terminal. It acknowledges each navigation with a load event after a short
// delay, so embed views exercise the real pause and ready path against the
// preview surface.
type PreviewEmbedder struct {
	delay time.Duration

	mu       sync.Mutex
	address  string
	loadedAt time.Time
	loadCh   chan struct{}
}

// NewPreviewEmbedder creates a preview embedder. A delay of 0 or below
// selects DefaultPreviewDelay.
func NewPreviewEmbedder(delay time.Duration) *PreviewEmbedder {
	if delay <= 0 {
		delay = DefaultPreviewDelay
	}
	return &PreviewEmbedder{
		delay:  delay,
		loadCh: make(chan struct{}, 1),
	}
}

// Navigate records the address and schedules the load event.
func (p *PreviewEmbedder) Navigate(ctx context.Context, address string) error {
	p.mu.Lock()
	p.address = address
	p.loadedAt = time.Now().Add(p.delay)
	p.mu.Unlock()

	time.AfterFunc(p.delay, func() {
		select {
		case p.loadCh <- struct{}{}:
		default:
			// Signal already pending
		}
	})
	return nil
}

// LoadEvents returns the channel the delayed load event fires on.
func (p *PreviewEmbedder) LoadEvents() <-chan struct{} {
	return p.loadCh
}

// Location reports the last navigated address.
func (p *PreviewEmbedder) Location(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.address, nil
}

// ReadyState reports "loading" until the delay elapses, then "complete".
func (p *PreviewEmbedder) ReadyState(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.address == "" || time.Now().Before(p.loadedAt) {
		return "loading", nil
	}
	return "complete", nil
}
