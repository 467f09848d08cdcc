package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
)

// Canned aggregate feed payloads.
const (
	// FeedThreeEntries is a well-formed aggregate response with three rows.
	FeedThreeEntries = `{"entries": [
		{"id": "p1", "name": "Ada", "score": 420},
		{"id": "p2", "name": "Grace", "score": 310},
		{"id": "p3", "name": "Edsger", "score": 150}
	]}`

	// FeedEmpty is a well-formed aggregate response with no rows.
	FeedEmpty = `{"entries": []}`

	// FeedMalformed has no recognizable entry list.
	FeedMalformed = `{"message": "nothing to see here"}`
)

// FeedServer is an httptest server scripted per call for aggregate fetches.
// The script receives the 1-based call number so tests can fail the first
// attempts and then recover.
type FeedServer struct {
	*httptest.Server

	mu    sync.Mutex
	calls int
}

// NewFeedServer starts a feed server driven by script. Close it with the
// embedded Server's Close.
func NewFeedServer(script func(call int, w http.ResponseWriter, r *http.Request)) *FeedServer {
	fs := &FeedServer{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		fs.calls++
		n := fs.calls
		fs.mu.Unlock()
		script(n, w, r)
	}))
	return fs
}

// Calls returns how many requests the server has seen.
func (fs *FeedServer) Calls() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.calls
}

// ServeJSON returns a script that answers every call with 200 and body.
func ServeJSON(body string) func(int, http.ResponseWriter, *http.Request) {
	return func(_ int, w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

// FailStatus returns a script that answers every call with the status code.
func FailStatus(status int) func(int, http.ResponseWriter, *http.Request) {
	return func(_ int, w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	}
}

// FailThenServe returns a script that fails the first n calls with status,
// then answers 200 with body.
func FailThenServe(n, status int, body string) func(int, http.ResponseWriter, *http.Request) {
	return func(call int, w http.ResponseWriter, _ *http.Request) {
		if call <= n {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}
