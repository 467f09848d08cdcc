package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/awidmer/marquee/internal/surface"
)

// navTimeout bounds the navigation issued for a render.
const navTimeout = 5 * time.Second

var (
	_ surface.Renderer = (*Display)(nil)
	_ surface.Embedder = (*DevTools)(nil)
)

// Sink receives rendered content, keyed by view. The panel store implements
// this.
type Sink interface {
	Set(viewID string, c surface.Content)
}

// Navigator is the slice of the embed surface the display needs.
type Navigator interface {
	Navigate(ctx context.Context, address string) error
}

// Display paints views onto a physical screen. Content goes into the panel
// sink, and for data-backed views the browser is pointed at that view's
// panel page.
//
// Navigation happens only for loading renders. Those are issued
// synchronously at activation, so a slow fetch finishing after rotation has
// moved on can update the sink but never drag the browser back to a stale
// view. The loading page refreshes itself until a terminal state is in the
// sink. Embed renders never navigate here; the embed strategy steers the
// browser to the external address itself.
type Display struct {
	sink    Sink
	nav     Navigator
	baseURL string
	logger  *slog.Logger
}

// NewDisplay builds a Display serving pages from baseURL, for example
// http://127.0.0.1:8089.
func NewDisplay(sink Sink, nav Navigator, baseURL string, logger *slog.Logger) *Display {
	if logger == nil {
		logger = slog.Default()
	}
	return &Display{
		sink:    sink,
		nav:     nav,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger.With("component", "display"),
	}
}

// PageURL returns the panel address for a view.
func (d *Display) PageURL(viewID string) string {
	return d.baseURL + "/view/" + url.PathEscape(viewID)
}

// Render stores the content and, for a loading render, steers the browser to
// the view's panel page.
func (d *Display) Render(viewID string, c surface.Content) error {
	d.sink.Set(viewID, c)

	if c.Kind != surface.ContentLoading {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), navTimeout)
	defer cancel()

	page := d.PageURL(viewID)
	if err := d.nav.Navigate(ctx, page); err != nil {
		return fmt.Errorf("show %s: %w", viewID, err)
	}
	d.logger.Debug("showing panel page", "view_id", viewID, "url", page)
	return nil
}
