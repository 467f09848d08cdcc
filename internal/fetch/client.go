// Package fetch retrieves and normalizes aggregate feed data. Failures are
// classified into a fixed taxonomy so every caller renders and retries them
// the same way.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/awidmer/marquee/internal/events"
	"github.com/awidmer/marquee/internal/metrics"
)

// maxBodyBytes caps how much of a feed response is read.
const maxBodyBytes = 4 << 20 // 4MB

// Options configures the feed client.
type Options struct {
	BaseURL    string
	AuthHeader string        // header carrying the credential, e.g. X-Api-Key
	APIKey     string        // static credential; empty disables the header
	Timeout    time.Duration // per-attempt timeout
	Policy     RetryPolicy
	RateLimit  float64 // requests per second across all sources; 0 disables
	Burst      int
}

// Client fetches aggregate leaderboard data. Every Aggregate call performs a
// fresh round trip; the client caches nothing between calls.
type Client struct {
	opts    Options
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
	router  *events.Router
	metrics *metrics.Metrics
}

// NewClient creates a feed client. Router and metrics may be nil.
func NewClient(opts Options, logger *slog.Logger, router *events.Router, m *metrics.Metrics) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Policy.MaxAttempts <= 0 {
		opts.Policy = DefaultRetryPolicy()
	}
	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return &Client{
		opts: opts,
		http: &http.Client{
			// The per-attempt context deadline is the real bound; this is a
			// backstop against a missing deadline.
			Timeout: opts.Timeout + 5*time.Second,
		},
		limiter: limiter,
		logger:  logger.With("component", "fetch"),
		router:  router,
		metrics: m,
	}
}

// Aggregate fetches and normalizes the aggregate payload for a source.
// It retries per the policy with exponential backoff, honoring the
// classified RetryAfter as a floor, and gives up immediately on
// non-recoverable kinds. The returned error is always a classified *Error
// carrying the last kind and the attempts consumed.
func (c *Client) Aggregate(ctx context.Context, source string) ([]Entry, error) {
	start := time.Now()
	var lastErr *Error

	attempts := 0
	for attempt := 1; attempt <= c.opts.Policy.MaxAttempts; attempt++ {
		attempts = attempt

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				lastErr = Classify(err)
				break
			}
		}

		entries, err := c.attempt(ctx, source)
		if err == nil {
			d := time.Since(start)
			c.metrics.RecordFetch(source, "ok", d)
			c.metrics.SetFeedEntries(source, len(entries))
			c.emit(&events.FetchOKEvent{
				BaseEvent:  events.NewFeedEvent(events.EventFetchOK),
				FeedSource: source,
				Entries:    len(entries),
				DurationMs: d.Milliseconds(),
			})
			return entries, nil
		}

		lastErr = Classify(err)
		c.logger.Warn("fetch attempt failed",
			"source", source,
			"attempt", attempt,
			"kind", lastErr.Kind,
			"error", err)

		if !lastErr.Recoverable || attempt == c.opts.Policy.MaxAttempts {
			break
		}

		delay := c.retryDelay(attempt, lastErr)
		c.metrics.RecordFetchRetry(source, string(lastErr.Kind))
		c.emit(&events.FetchRetryEvent{
			BaseEvent:  events.NewFeedEvent(events.EventFetchRetry),
			FeedSource: source,
			Attempt:    attempt,
			ErrorKind:  string(lastErr.Kind),
			DelayMs:    delay.Milliseconds(),
		})

		if err := sleep(ctx, delay); err != nil {
			lastErr = Classify(err)
			break
		}
	}

	lastErr.Attempts = attempts
	c.metrics.RecordFetch(source, string(lastErr.Kind), time.Since(start))
	c.emit(&events.FetchFailedEvent{
		BaseEvent:  events.NewFeedEvent(events.EventFetchFailed),
		FeedSource: source,
		ErrorKind:  string(lastErr.Kind),
		Attempts:   attempts,
	})
	return nil, lastErr
}

// attempt performs one request with its own deadline.
func (c *Client) attempt(ctx context.Context, source string) ([]Entry, error) {
	timeout := c.opts.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/%s/aggregate",
		strings.TrimRight(c.opts.BaseURL, "/"), url.PathEscape(source))
	req, err := http.NewRequestWithContext(actx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.opts.APIKey != "" {
		header := c.opts.AuthHeader
		if header == "" {
			header = "X-Api-Key"
		}
		req.Header.Set(header, c.opts.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if cerr := ClassifyStatus(resp.StatusCode, resp.Header); cerr != nil {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, cerr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	return Normalize(body, c.logger)
}

// retryDelay computes the wait before the next attempt. Rate limiting is the
// one kind where the server names its own pace, so its RetryAfter floors the
// policy backoff. Other kinds carry RetryAfter as an advisory hint for
// placeholders and outer scheduling, not as an in-loop wait.
func (c *Client) retryDelay(attempt int, lastErr *Error) time.Duration {
	delay := c.opts.Policy.Backoff(attempt)
	if lastErr.Kind == KindRateLimited && lastErr.RetryAfter > delay {
		delay = lastErr.RetryAfter
	}
	return delay
}

func (c *Client) emit(ev events.Event) {
	if c.router != nil {
		c.router.Emit(ev)
	}
}

// sleep waits for d or until the context is canceled.
func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
