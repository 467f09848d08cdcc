package fetch

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Entry is one normalized leaderboard row. Downstream code sees only this
// shape regardless of which feed version produced the payload.
type Entry struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Alias lists for the feed's field drift, applied in order: the first
// present key wins. Extend here, nowhere else.
var (
	listAliases  = []string{"entries", "data", "items", "results", "leaderboard", "rows"}
	idAliases    = []string{"id", "playerId", "player_id", "userId", "user_id", "uid"}
	nameAliases  = []string{"name", "displayName", "display_name", "label", "title", "player"}
	scoreAliases = []string{"score", "points", "value", "total", "count"}
)

const (
	maxNameRunes = 64
	maxScore     = 1e9
)

// Normalize decodes an aggregate payload and salvages what it can. Invalid
// entries are skipped, never fatal; an unusable payload shape is a parse
// error. Zero valid entries is success with an empty slice.
func Normalize(raw []byte, logger *slog.Logger) ([]Entry, error) {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, newError(KindParse, 0, fmt.Errorf("decode payload: %w", err))
	}

	list, err := entryList(decoded)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(list))
	for i, item := range list {
		fields, ok := item.(map[string]any)
		if !ok {
			if logger != nil {
				logger.Debug("skipping non-object entry", "index", i)
			}
			continue
		}
		entry, ok := normalizeEntry(fields)
		if !ok {
			if logger != nil {
				logger.Debug("skipping entry without id/score", "index", i)
			}
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// entryList locates the row array: a top-level array, or the first list
// alias holding one.
func entryList(decoded any) ([]any, error) {
	switch v := decoded.(type) {
	case []any:
		return v, nil
	case map[string]any:
		for _, key := range listAliases {
			if list, ok := v[key].([]any); ok {
				return list, nil
			}
		}
		return nil, newError(KindParse, 0, fmt.Errorf("payload has no entry list (keys tried: %s)", strings.Join(listAliases, ", ")))
	default:
		return nil, newError(KindParse, 0, fmt.Errorf("payload is %T, want array or object", decoded))
	}
}

func normalizeEntry(fields map[string]any) (Entry, bool) {
	id := sanitizeText(pickString(fields, idAliases))
	score, scoreOK := pickScore(fields)
	if id == "" || !scoreOK {
		return Entry{}, false
	}
	name := sanitizeText(pickString(fields, nameAliases))
	if name == "" {
		name = id
	}
	return Entry{ID: id, Name: name, Score: clampScore(score)}, true
}

// pickString returns the first alias present with a usable string value.
// Numeric identifiers are accepted and formatted.
func pickString(fields map[string]any, aliases []string) string {
	for _, key := range aliases {
		switch v := fields[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

// pickScore returns the first alias holding a finite number, coercing
// numeric strings.
func pickScore(fields map[string]any) (float64, bool) {
	for _, key := range scoreAliases {
		switch v := fields[key].(type) {
		case float64:
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				return v, true
			}
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
				return f, true
			}
		}
	}
	return 0, false
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > maxScore {
		return maxScore
	}
	return v
}

// ansiRegex matches ANSI escape sequences.
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// sanitizeText makes feed-supplied text safe for terminal and page display:
// strips escape sequences and control runes, collapses whitespace, bounds
// length.
func sanitizeText(s string) string {
	s = ansiRegex.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")

	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if r == ' ' || (!unicode.IsControl(r) && unicode.IsPrint(r)) {
			sb.WriteRune(r)
		}
	}

	result := sb.String()
	for strings.Contains(result, "  ") {
		result = strings.ReplaceAll(result, "  ", " ")
	}
	result = strings.TrimSpace(result)

	if utf8.RuneCountInString(result) > maxNameRunes {
		runes := []rune(result)
		result = string(runes[:maxNameRunes])
	}
	return result
}
