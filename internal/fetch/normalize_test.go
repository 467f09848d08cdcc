package fetch

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizeTopLevelArray(t *testing.T) {
	raw := []byte(`[
		{"id": "p1", "name": "Alice", "score": 100},
		{"id": "p2", "name": "Bob", "score": 85.5}
	]`)

	entries, err := Normalize(raw, nil)
	if err != nil {
		t.Fatalf("Normalize() = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].ID != "p1" || entries[0].Name != "Alice" || entries[0].Score != 100 {
		t.Errorf("entry 0 = %+v", entries[0])
	}
	if entries[1].Score != 85.5 {
		t.Errorf("entry 1 score = %v", entries[1].Score)
	}
}

func TestNormalizeWrappedList(t *testing.T) {
	for _, key := range []string{"entries", "data", "items", "results", "leaderboard", "rows"} {
		t.Run(key, func(t *testing.T) {
			raw := []byte(`{"` + key + `": [{"id": "x", "score": 1}]}`)
			entries, err := Normalize(raw, nil)
			if err != nil {
				t.Fatalf("Normalize() = %v", err)
			}
			if len(entries) != 1 {
				t.Errorf("got %d entries, want 1", len(entries))
			}
		})
	}
}

func TestNormalizeAliasOrder(t *testing.T) {
	t.Run("id beats playerId", func(t *testing.T) {
		raw := []byte(`[{"id": "primary", "playerId": "secondary", "score": 1}]`)
		entries, err := Normalize(raw, nil)
		if err != nil {
			t.Fatal(err)
		}
		if entries[0].ID != "primary" {
			t.Errorf("ID = %q, want primary", entries[0].ID)
		}
	})

	t.Run("fallback aliases", func(t *testing.T) {
		raw := []byte(`[{"user_id": "u9", "display_name": "Niner", "points": 42}]`)
		entries, err := Normalize(raw, nil)
		if err != nil {
			t.Fatal(err)
		}
		e := entries[0]
		if e.ID != "u9" || e.Name != "Niner" || e.Score != 42 {
			t.Errorf("entry = %+v", e)
		}
	})

	t.Run("score beats points", func(t *testing.T) {
		raw := []byte(`[{"id": "x", "score": 7, "points": 9}]`)
		entries, _ := Normalize(raw, nil)
		if entries[0].Score != 7 {
			t.Errorf("Score = %v, want 7", entries[0].Score)
		}
	})
}

func TestNormalizeCoercionAndClamping(t *testing.T) {
	t.Run("numeric string score", func(t *testing.T) {
		raw := []byte(`[{"id": "x", "score": "123.5"}]`)
		entries, err := Normalize(raw, nil)
		if err != nil {
			t.Fatal(err)
		}
		if entries[0].Score != 123.5 {
			t.Errorf("Score = %v", entries[0].Score)
		}
	})

	t.Run("numeric id", func(t *testing.T) {
		raw := []byte(`[{"id": 42, "score": 1}]`)
		entries, err := Normalize(raw, nil)
		if err != nil {
			t.Fatal(err)
		}
		if entries[0].ID != "42" {
			t.Errorf("ID = %q", entries[0].ID)
		}
	})

	t.Run("negative clamped to zero", func(t *testing.T) {
		raw := []byte(`[{"id": "x", "score": -50}]`)
		entries, _ := Normalize(raw, nil)
		if entries[0].Score != 0 {
			t.Errorf("Score = %v, want 0", entries[0].Score)
		}
	})

	t.Run("huge clamped to max", func(t *testing.T) {
		raw := []byte(`[{"id": "x", "score": 1e15}]`)
		entries, _ := Normalize(raw, nil)
		if entries[0].Score != maxScore {
			t.Errorf("Score = %v, want %v", entries[0].Score, float64(maxScore))
		}
	})

	t.Run("non-numeric score string invalid", func(t *testing.T) {
		raw := []byte(`[{"id": "x", "score": "lots"}]`)
		entries, _ := Normalize(raw, nil)
		if len(entries) != 0 {
			t.Errorf("got %d entries, want 0", len(entries))
		}
	})
}

func TestNormalizeSalvage(t *testing.T) {
	raw := []byte(`[
		{"id": "good", "score": 10},
		{"name": "no identifier", "score": 5},
		{"id": "no score"},
		"not an object",
		{"id": "also-good", "points": 3}
	]`)

	entries, err := Normalize(raw, nil)
	if err != nil {
		t.Fatalf("Normalize() = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2 salvaged", len(entries))
	}
	if entries[0].ID != "good" || entries[1].ID != "also-good" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestNormalizeSanitization(t *testing.T) {
	raw := []byte(`[{"id": "p1", "name": "Eve\n\u0007  B", "score": 1}]`)
	entries, err := Normalize(raw, nil)
	if err != nil {
		t.Fatal(err)
	}
	if entries[0].Name != "Eve B" {
		t.Errorf("Name = %q, want %q", entries[0].Name, "Eve B")
	}

	t.Run("long name truncated", func(t *testing.T) {
		long := strings.Repeat("a", 200)
		raw := []byte(`[{"id": "p", "name": "` + long + `", "score": 1}]`)
		entries, err := Normalize(raw, nil)
		if err != nil {
			t.Fatal(err)
		}
		if got := len([]rune(entries[0].Name)); got != maxNameRunes {
			t.Errorf("name length = %d, want %d", got, maxNameRunes)
		}
	})

	t.Run("empty name falls back to id", func(t *testing.T) {
		raw := []byte(`[{"id": "p7", "score": 2}]`)
		entries, _ := Normalize(raw, nil)
		if entries[0].Name != "p7" {
			t.Errorf("Name = %q, want id fallback", entries[0].Name)
		}
	})
}

func TestNormalizeBadShape(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"scalar", `42`},
		{"object without list", `{"message": "hi"}`},
		{"invalid json", `{nope`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize([]byte(tt.raw), nil)
			if err == nil {
				t.Fatal("expected error")
			}
			var ce *Error
			if !errors.As(err, &ce) || ce.Kind != KindParse {
				t.Errorf("err = %v, want parse_error kind", err)
			}
		})
	}
}

func TestNormalizeEmptyIsSuccess(t *testing.T) {
	entries, err := Normalize([]byte(`[]`), nil)
	if err != nil {
		t.Fatalf("Normalize() = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d entries", len(entries))
	}

	// All-invalid payload is also success with zero entries.
	entries, err = Normalize([]byte(`[{"junk": true}]`), nil)
	if err != nil {
		t.Fatalf("Normalize() = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d entries", len(entries))
	}
}
