package events

import (
	"strings"
	"testing"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{
			name:  "cycle start",
			event: &CycleStartEvent{BaseEvent: NewEngineEvent(EventCycleStart), Views: 3, IntervalMs: 15000},
			want:  "rotation started: 3 views, interval 15s",
		},
		{
			name:  "view activate",
			event: &ViewActivateEvent{BaseEvent: NewEngineEvent(EventViewActivate), ViewID: "promo", Kind: "embed", Position: 1},
			want:  "showing promo [embed] (position 1)",
		},
		{
			name:  "view ready",
			event: &ViewReadyEvent{BaseEvent: NewEngineEvent(EventViewReady), ViewID: "promo", Reason: "stable-address", WaitMs: 1500},
			want:  "promo ready via stable-address after 1.5s",
		},
		{
			name:  "load timeout",
			event: &ViewLoadTimeoutEvent{BaseEvent: NewEngineEvent(EventViewLoadTimeout), ViewID: "promo", WaitedMs: 20000},
			want:  "promo never signaled ready, resumed after 20s",
		},
		{
			name:  "render rows",
			event: &ViewRenderEvent{BaseEvent: NewEngineEvent(EventViewRender), ViewID: "scores", Content: "leaderboard", Rows: 7},
			want:  "scores rendered 7 rows",
		},
		{
			name:  "render error",
			event: &ViewRenderEvent{BaseEvent: NewEngineEvent(EventViewRender), ViewID: "scores", Content: "error", ErrorKind: "rate_limited"},
			want:  "scores rendered error placeholder (rate_limited)",
		},
		{
			name:  "fetch retry",
			event: &FetchRetryEvent{BaseEvent: NewFeedEvent(EventFetchRetry), FeedSource: "weekly", Attempt: 2, ErrorKind: "server_error", DelayMs: 1000},
			want:  "fetch weekly attempt 2 failed (server_error), retrying in 1s",
		},
		{
			name:  "fetch failed",
			event: &FetchFailedEvent{BaseEvent: NewFeedEvent(EventFetchFailed), FeedSource: "weekly", ErrorKind: "timeout", Attempts: 3},
			want:  "fetch weekly failed after 3 attempts: timeout",
		},
		{
			name:  "watchdog recovered",
			event: &WatchdogRecoveredEvent{BaseEvent: NewWatchdogEvent(EventWatchdogRecovered), Position: 2, Stuck: 3},
			want:  "watchdog recovered stuck rotation at position 2 (3 stale samples)",
		},
		{
			name:  "held without operator",
			event: &RotationHeldEvent{BaseEvent: NewEngineEvent(EventRotationHeld)},
			want:  "rotation held",
		},
		{
			name:  "error with view",
			event: &ErrorEvent{BaseEvent: NewInternalEvent(EventError), Message: "navigate failed", Severity: SeverityWarning, ViewID: "promo"},
			want:  "[warning] promo: navigate failed",
		},
		{
			name:  "nil event",
			event: nil,
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Format(tt.event); got != tt.want {
				t.Errorf("Format() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatWithTimestamp(t *testing.T) {
	ev := &CycleStopEvent{BaseEvent: NewEngineEvent(EventCycleStop)}
	got := FormatWithTimestamp(ev)
	if !strings.Contains(got, "rotation stopped") {
		t.Errorf("FormatWithTimestamp() = %q", got)
	}
	if !strings.HasPrefix(got, "[") {
		t.Errorf("missing timestamp prefix: %q", got)
	}
}

func TestSafeString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello", "hello"},
		{"newlines", "a\nb\r\nc", "a b c"},
		{"ansi", "\x1b[31mred\x1b[0m text", "red text"},
		{"control", "a\x00b\x07c", "abc"},
		{"collapse", "a    b", "a b"},
		{"trim", "  padded  ", "padded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SafeString(tt.in); got != tt.want {
				t.Errorf("SafeString(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate() = %q", got)
	}
	long := strings.Repeat("x", 50)
	got := Truncate(long, 10)
	if len(got) != 10 || !strings.HasSuffix(got, "...") {
		t.Errorf("Truncate() = %q (len %d)", got, len(got))
	}
}
