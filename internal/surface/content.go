package surface

import "github.com/awidmer/marquee/internal/fetch"

// Loading returns the placeholder shown while a view's data is in flight.
func Loading(title string) Content {
	return Content{Kind: ContentLoading, Title: title}
}

// Leaderboard returns scored rows ready for display.
func Leaderboard(title string, rows []fetch.Entry) Content {
	return Content{Kind: ContentLeaderboard, Title: title, Rows: rows}
}

// Empty returns the no-entries state for a feed that answered with nothing.
func Empty(title string) Content {
	return Content{Kind: ContentEmpty, Title: title}
}

// ErrorState returns the typed failure placeholder for a view whose fetch
// was exhausted or non-recoverable.
func ErrorState(title string, err *fetch.Error) Content {
	return Content{Kind: ContentError, Title: title, Err: err}
}

// Embed returns the marker content for an embedded-document view. Surfaces
// that cannot host a document render it as an address card.
func Embed(title, address string) Content {
	return Content{Kind: ContentEmbed, Title: title, Address: address}
}
