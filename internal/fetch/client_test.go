package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Initial:     5 * time.Millisecond,
		Max:         20 * time.Millisecond,
		Multiplier:  2,
	}
}

func newTestClient(baseURL string) *Client {
	return NewClient(Options{
		BaseURL:    baseURL,
		AuthHeader: "X-Api-Key",
		APIKey:     "secret",
		Timeout:    500 * time.Millisecond,
		Policy:     testPolicy(),
	}, nil, nil, nil)
}

func TestAggregateSuccess(t *testing.T) {
	var gotPath, gotKey, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-Api-Key")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"entries": [{"id": "p1", "score": 10}, {"id": "p2", "score": 7}]}`))
	}))
	defer srv.Close()

	entries, err := newTestClient(srv.URL).Aggregate(context.Background(), "weekly")
	if err != nil {
		t.Fatalf("Aggregate() = %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("got %d entries", len(entries))
	}
	if gotPath != "/weekly/aggregate" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "secret" {
		t.Errorf("credential header = %q", gotKey)
	}
	if gotAccept != "application/json" {
		t.Errorf("accept = %q", gotAccept)
	}
}

func TestAggregateRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`[{"id": "p1", "score": 1}]`))
	}))
	defer srv.Close()

	entries, err := newTestClient(srv.URL).Aggregate(context.Background(), "weekly")
	if err != nil {
		t.Fatalf("Aggregate() = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("got %d entries", len(entries))
	}
	if calls.Load() != 3 {
		t.Errorf("server saw %d calls, want 3", calls.Load())
	}
}

func TestRetryDelayFloorsOnlyRateLimits(t *testing.T) {
	c := newTestClient("http://feed.local")

	limited := newError(KindRateLimited, 429, nil)
	limited.RetryAfter = 2 * time.Second
	if got := c.retryDelay(1, limited); got != 2*time.Second {
		t.Errorf("rate_limited delay = %v, want server-stated 2s", got)
	}

	server := newError(KindServer, 500, nil)
	if got := c.retryDelay(1, server); got != testPolicy().Initial {
		t.Errorf("server_error delay = %v, want policy backoff %v", got, testPolicy().Initial)
	}
}

func TestAggregateNotFoundStopsImmediately(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Aggregate(context.Background(), "ghost")
	var ce *Error
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want classified", err)
	}
	if ce.Kind != KindNotFound {
		t.Errorf("Kind = %s", ce.Kind)
	}
	if ce.Recoverable {
		t.Error("not_found marked recoverable")
	}
	if ce.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", ce.Attempts)
	}
	if calls.Load() != 1 {
		t.Errorf("server saw %d calls, want 1", calls.Load())
	}
}

func TestAggregateExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Aggregate(context.Background(), "weekly")
	var ce *Error
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v", err)
	}
	if ce.Kind != KindServer {
		t.Errorf("Kind = %s, want server_error (last classified)", ce.Kind)
	}
	if ce.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", ce.Attempts)
	}
	if calls.Load() != 3 {
		t.Errorf("server saw %d calls, want 3", calls.Load())
	}
}

func TestAggregateFreshFetchPerCall(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`[{"id": "p", "score": 1}]`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	for i := 0; i < 4; i++ {
		if _, err := c.Aggregate(context.Background(), "weekly"); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if calls.Load() != 4 {
		t.Errorf("server saw %d calls, want 4 (no caching)", calls.Load())
	}
}

func TestAggregatePerAttemptTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(Options{
		BaseURL: srv.URL,
		Timeout: 30 * time.Millisecond,
		Policy:  RetryPolicy{MaxAttempts: 1, Initial: time.Millisecond, Max: time.Millisecond, Multiplier: 1},
	}, nil, nil, nil)

	_, err := c.Aggregate(context.Background(), "slow")
	var ce *Error
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v", err)
	}
	if ce.Kind != KindTimeout {
		t.Errorf("Kind = %s, want timeout", ce.Kind)
	}
}

func TestAggregateCanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(srv.URL).Aggregate(ctx, "weekly")
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
}

func TestAggregateParseFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message": "no list here"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Aggregate(context.Background(), "weekly")
	var ce *Error
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v", err)
	}
	if ce.Kind != KindParse {
		t.Errorf("Kind = %s, want parse_error", ce.Kind)
	}
}
