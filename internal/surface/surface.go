// Package surface defines the display-side contracts: what a view surface
// can render and how an embedded-document surface reports readiness.
package surface

import (
	"context"

	"github.com/awidmer/marquee/internal/fetch"
)

// ContentKind discriminates what a rendered view currently shows.
type ContentKind int

const (
	ContentLoading ContentKind = iota
	ContentLeaderboard
	ContentEmpty
	ContentError
	ContentEmbed
)

// String returns a stable lowercase name for logs and templates.
func (k ContentKind) String() string {
	switch k {
	case ContentLoading:
		return "loading"
	case ContentLeaderboard:
		return "leaderboard"
	case ContentEmpty:
		return "empty"
	case ContentError:
		return "error"
	case ContentEmbed:
		return "embed"
	default:
		return "unknown"
	}
}

// Content is a renderable snapshot for a single view. Exactly one of the
// payload fields is meaningful, selected by Kind.
type Content struct {
	Kind    ContentKind
	Title   string        // Display title for the view
	Rows    []fetch.Entry // Leaderboard rows (ContentLeaderboard)
	Err     *fetch.Error  // Classified failure (ContentError)
	Address string        // Embedded document address (ContentEmbed)
}

// Renderer displays content for a view. Implementations are synchronous,
// must not panic across the call boundary, and report failure only through
// the returned error.
type Renderer interface {
	Render(viewID string, c Content) error
}

// Embedder is an embedded-document surface. Navigate points it at an
// address; the remaining methods expose the readiness signals a loader
// races: the native load event, the current location, and the document
// ready state.
type Embedder interface {
	Navigate(ctx context.Context, address string) error
	LoadEvents() <-chan struct{}
	Location(ctx context.Context) (string, error)
	ReadyState(ctx context.Context) (string, error)
}
