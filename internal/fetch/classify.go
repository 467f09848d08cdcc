package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"syscall"
	"time"
)

// Kind buckets a fetch failure into the fixed taxonomy every caller can
// switch on. The set is closed: classification always lands on exactly one.
type Kind string

const (
	KindTimeout     Kind = "timeout"
	KindNetwork     Kind = "network"
	KindOffline     Kind = "offline"
	KindNotFound    Kind = "not_found"
	KindAuth        Kind = "auth_required"
	KindRateLimited Kind = "rate_limited"
	KindServer      Kind = "server_error"
	KindParse       Kind = "parse_error"
	KindUnknown     Kind = "unknown"
)

// Recoverable reports whether failures of this kind may succeed on a later
// attempt. Only a missing source and rejected credentials are final.
func (k Kind) Recoverable() bool {
	switch k {
	case KindNotFound, KindAuth:
		return false
	}
	return true
}

// defaultRetryAfter is the advisory wait per kind when the server supplies
// nothing better. Unknown gets the most conservative value.
var defaultRetryAfter = map[Kind]time.Duration{
	KindTimeout:     5 * time.Second,
	KindNetwork:     10 * time.Second,
	KindOffline:     30 * time.Second,
	KindRateLimited: 60 * time.Second,
	KindServer:      30 * time.Second,
	KindParse:       60 * time.Second,
	KindUnknown:     60 * time.Second,
}

// Error is a classified fetch failure.
type Error struct {
	Kind        Kind
	Status      int           // HTTP status when the failure came from a response, else 0
	Recoverable bool
	RetryAfter  time.Duration // advisory wait before the next attempt
	Attempts    int           // attempts consumed; filled on aggregate failure
	Err         error
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("fetch: %s (status %d)", e.Kind, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("fetch: %s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("fetch: %s", e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Message returns a short operator-facing description.
func (e *Error) Message() string {
	switch e.Kind {
	case KindTimeout:
		return "feed timed out"
	case KindNetwork:
		return "network error reaching feed"
	case KindOffline:
		return "no connectivity"
	case KindNotFound:
		return "source not found"
	case KindAuth:
		return "feed credentials rejected"
	case KindRateLimited:
		return "rate limited by feed"
	case KindServer:
		return "feed server error"
	case KindParse:
		return "feed payload unusable"
	default:
		return "feed unavailable"
	}
}

func newError(kind Kind, status int, err error) *Error {
	return &Error{
		Kind:        kind,
		Status:      status,
		Recoverable: kind.Recoverable(),
		RetryAfter:  defaultRetryAfter[kind],
		Err:         err,
	}
}

// Classify maps an arbitrary fetch-path failure onto the taxonomy. Already
// classified errors pass through unchanged. Order matters: timeouts before
// generic network failures, connectivity before transport.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return newError(KindTimeout, 0, err)
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return newError(KindTimeout, 0, err)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return newError(KindOffline, 0, err)
	}
	switch {
	case errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, syscall.ENETDOWN),
		errors.Is(err, syscall.EHOSTUNREACH):
		return newError(KindOffline, 0, err)
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return newError(KindNetwork, 0, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return newError(KindNetwork, 0, err)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return newError(KindParse, 0, err)
	}

	return newError(KindUnknown, 0, err)
}

// ClassifyStatus maps a non-success HTTP status onto the taxonomy. Returns
// nil for statuses below 400. A parseable Retry-After header overrides the
// rate-limit default.
func ClassifyStatus(status int, header http.Header) *Error {
	switch {
	case status < 400:
		return nil
	case status == http.StatusNotFound || status == http.StatusGone:
		return newError(KindNotFound, status, nil)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return newError(KindAuth, status, nil)
	case status == http.StatusTooManyRequests:
		e := newError(KindRateLimited, status, nil)
		if d, ok := parseRetryAfter(header.Get("Retry-After")); ok {
			e.RetryAfter = d
		}
		return e
	case status >= 500:
		return newError(KindServer, status, nil)
	default:
		return newError(KindUnknown, status, nil)
	}
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d, true
		}
	}
	return 0, false
}

// KindOf extracts the classified kind, or KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

// IsRecoverable reports whether the error is worth another attempt. Foreign
// errors are treated as recoverable.
func IsRecoverable(err error) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Recoverable
	}
	return true
}
