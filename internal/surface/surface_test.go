package surface

import (
	"testing"

	"github.com/awidmer/marquee/internal/fetch"
)

func TestContentKindString(t *testing.T) {
	cases := map[ContentKind]string{
		ContentLoading:     "loading",
		ContentLeaderboard: "leaderboard",
		ContentEmpty:       "empty",
		ContentError:       "error",
		ContentEmbed:       "embed",
		ContentKind(99):    "unknown",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("ContentKind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}

func TestConstructors(t *testing.T) {
	rows := []fetch.Entry{{ID: "p1", Name: "Ada", Score: 10}}
	ferr := &fetch.Error{Kind: fetch.KindServer, Recoverable: true}

	t.Run("loading", func(t *testing.T) {
		c := Loading("Weekly")
		if c.Kind != ContentLoading || c.Title != "Weekly" {
			t.Errorf("Loading = %+v", c)
		}
	})

	t.Run("leaderboard", func(t *testing.T) {
		c := Leaderboard("Weekly", rows)
		if c.Kind != ContentLeaderboard || len(c.Rows) != 1 {
			t.Errorf("Leaderboard = %+v", c)
		}
	})

	t.Run("empty", func(t *testing.T) {
		c := Empty("Weekly")
		if c.Kind != ContentEmpty {
			t.Errorf("Empty = %+v", c)
		}
	})

	t.Run("error", func(t *testing.T) {
		c := ErrorState("Weekly", ferr)
		if c.Kind != ContentError || c.Err != ferr {
			t.Errorf("ErrorState = %+v", c)
		}
	})

	t.Run("embed", func(t *testing.T) {
		c := Embed("Promo", "https://example.com/promo")
		if c.Kind != ContentEmbed || c.Address != "https://example.com/promo" {
			t.Errorf("Embed = %+v", c)
		}
	})
}
