package testutil

import "github.com/awidmer/marquee/internal/view"

// EmbedView returns an embed descriptor pointing at a stable test address.
func EmbedView(id string) view.Descriptor {
	return view.Descriptor{
		ID:    id,
		Kind:  view.KindEmbed,
		Title: "Embed " + id,
		URL:   "https://signage.test/" + id,
	}
}

// LeaderboardView returns a leaderboard descriptor backed by source.
func LeaderboardView(id, source string) view.Descriptor {
	return view.Descriptor{
		ID:     id,
		Kind:   view.KindLeaderboard,
		Title:  "Board " + id,
		Source: source,
	}
}

// MixedPlaylist returns the canonical three-view test rotation: one embed
// view followed by two leaderboard views.
func MixedPlaylist() []view.Descriptor {
	return []view.Descriptor{
		EmbedView("promo"),
		LeaderboardView("weekly", "weekly"),
		LeaderboardView("alltime", "alltime"),
	}
}
