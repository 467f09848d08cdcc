package events

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
)

const (
	maxMessageLength  = 200
	truncateIndicator = "..."
)

// Format converts an event to a human-readable string for display.
// Returns empty string for nil or unknown event types.
func Format(event Event) string {
	if event == nil {
		return ""
	}

	switch e := event.(type) {
	case *CycleStartEvent:
		return fmt.Sprintf("rotation started: %d views, interval %s",
			e.Views, time.Duration(e.IntervalMs)*time.Millisecond)
	case *CycleStopEvent:
		if e.Reason != "" {
			return fmt.Sprintf("rotation stopped: %s", SafeString(e.Reason))
		}
		return "rotation stopped"
	case *StateChangedEvent:
		return fmt.Sprintf("state %s -> %s", e.From, e.To)
	case *ViewActivateEvent:
		return fmt.Sprintf("showing %s [%s] (position %d)", e.ViewID, e.Kind, e.Position)
	case *ViewReadyEvent:
		return fmt.Sprintf("%s ready via %s after %s",
			e.ViewID, e.Reason, time.Duration(e.WaitMs)*time.Millisecond)
	case *ViewLoadTimeoutEvent:
		return fmt.Sprintf("%s never signaled ready, resumed after %s",
			e.ViewID, time.Duration(e.WaitedMs)*time.Millisecond)
	case *ViewRenderEvent:
		return formatRender(e)
	case *FetchRetryEvent:
		return fmt.Sprintf("fetch %s attempt %d failed (%s), retrying in %s",
			e.FeedSource, e.Attempt, e.ErrorKind, time.Duration(e.DelayMs)*time.Millisecond)
	case *FetchFailedEvent:
		return fmt.Sprintf("fetch %s failed after %d attempts: %s",
			e.FeedSource, e.Attempts, e.ErrorKind)
	case *FetchOKEvent:
		return fmt.Sprintf("fetch %s ok: %d entries in %s",
			e.FeedSource, e.Entries, time.Duration(e.DurationMs)*time.Millisecond)
	case *RotationHeldEvent:
		if e.By != "" {
			return fmt.Sprintf("rotation held by %s", SafeString(e.By))
		}
		return "rotation held"
	case *RotationResumedEvent:
		if e.By != "" {
			return fmt.Sprintf("rotation resumed by %s", SafeString(e.By))
		}
		return "rotation resumed"
	case *WatchdogRecoveredEvent:
		return fmt.Sprintf("watchdog recovered stuck rotation at position %d (%d stale samples)",
			e.Position, e.Stuck)
	case *ConfigReloadedEvent:
		return fmt.Sprintf("playlist reloaded: %d views", e.Views)
	case *ErrorEvent:
		return formatError(e)
	default:
		return ""
	}
}

func formatRender(e *ViewRenderEvent) string {
	switch e.Content {
	case "leaderboard":
		return fmt.Sprintf("%s rendered %d rows", e.ViewID, e.Rows)
	case "empty":
		return fmt.Sprintf("%s rendered empty state", e.ViewID)
	case "error":
		return fmt.Sprintf("%s rendered error placeholder (%s)", e.ViewID, e.ErrorKind)
	case "loading":
		return fmt.Sprintf("%s loading...", e.ViewID)
	case "embed":
		return fmt.Sprintf("%s embedded page shown", e.ViewID)
	default:
		return fmt.Sprintf("%s rendered %s", e.ViewID, e.Content)
	}
}

func formatError(e *ErrorEvent) string {
	msg := Truncate(e.Message, maxMessageLength)
	if e.ViewID != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Severity, e.ViewID, msg)
	}
	return fmt.Sprintf("[%s] %s", e.Severity, msg)
}

// FormatWithTimestamp formats an event with a timestamp prefix.
// Used for the events command and log display.
func FormatWithTimestamp(event Event) string {
	if event == nil {
		return ""
	}
	ts := event.Timestamp().Format("15:04:05")
	detail := Format(event)
	if detail == "" {
		return fmt.Sprintf("[%s] %s", ts, event.Type())
	}
	return fmt.Sprintf("[%s] %s", ts, detail)
}

// Truncate shortens a string to maxLen, appending an indicator when cut.
func Truncate(s string, maxLen int) string {
	s = SafeString(s)
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= len(truncateIndicator) {
		return truncateIndicator
	}
	return s[:maxLen-len(truncateIndicator)] + truncateIndicator
}

// ansiRegex matches ANSI escape sequences.
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// StripANSI removes ANSI escape sequences from a string.
func StripANSI(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

// SafeString makes a string safe for single-line terminal display:
// no escapes, no control characters, collapsed whitespace.
func SafeString(s string) string {
	s = StripANSI(s)

	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")

	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if r == ' ' || !unicode.IsControl(r) {
			sb.WriteRune(r)
		}
	}

	result := sb.String()
	for strings.Contains(result, "  ") {
		result = strings.ReplaceAll(result, "  ", " ")
	}
	return strings.TrimSpace(result)
}
