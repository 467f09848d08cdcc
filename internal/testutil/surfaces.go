// Package testutil provides test infrastructure for unit and integration
// testing. It includes fake surfaces, feed servers, and helpers that other
// packages use for testing.
package testutil

import (
	"context"
	"sync"

	"github.com/awidmer/marquee/internal/surface"
)

// RenderCall records a Render invocation for assertion purposes.
type RenderCall struct {
	ViewID  string
	Content surface.Content
}

// FakeRenderer records everything rendered to it. The zero value is usable.
type FakeRenderer struct {
	mu    sync.Mutex
	calls []RenderCall

	// Err, when set, is returned from every Render call.
	Err error
	// OnRender, when set, is invoked after each call is recorded.
	OnRender func(viewID string, c surface.Content)
}

// Render records the call and returns Err.
func (r *FakeRenderer) Render(viewID string, c surface.Content) error {
	r.mu.Lock()
	r.calls = append(r.calls, RenderCall{ViewID: viewID, Content: c})
	hook := r.OnRender
	r.mu.Unlock()

	if hook != nil {
		hook(viewID, c)
	}
	return r.Err
}

// Calls returns a copy of all recorded calls.
func (r *FakeRenderer) Calls() []RenderCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RenderCall, len(r.calls))
	copy(out, r.calls)
	return out
}

// CallsFor returns the recorded calls for one view.
func (r *FakeRenderer) CallsFor(viewID string) []RenderCall {
	var out []RenderCall
	for _, call := range r.Calls() {
		if call.ViewID == viewID {
			out = append(out, call)
		}
	}
	return out
}

// Kinds returns the sequence of content kinds rendered for one view.
func (r *FakeRenderer) Kinds(viewID string) []surface.ContentKind {
	var out []surface.ContentKind
	for _, call := range r.CallsFor(viewID) {
		out = append(out, call.Content.Kind)
	}
	return out
}

// Last returns the most recent call, if any.
func (r *FakeRenderer) Last() (RenderCall, bool) {
	calls := r.Calls()
	if len(calls) == 0 {
		return RenderCall{}, false
	}
	return calls[len(calls)-1], true
}

// Reset clears all recorded calls.
func (r *FakeRenderer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// FakeEmbedder is a scriptable embedded-document surface. Tests drive
// readiness by firing load events or scripting Location and ReadyState.
type FakeEmbedder struct {
	mu          sync.Mutex
	navigations []string
	loadCh      chan struct{}

	// NavigateErr, when set, is returned from every Navigate call.
	NavigateErr error
	// LocationFunc overrides Location; the default reports the last
	// navigated address.
	LocationFunc func() (string, error)
	// ReadyStateFunc overrides ReadyState; the default reports "loading".
	ReadyStateFunc func() (string, error)
}

// NewFakeEmbedder creates a FakeEmbedder with a buffered load channel.
func NewFakeEmbedder() *FakeEmbedder {
	return &FakeEmbedder{loadCh: make(chan struct{}, 1)}
}

// Navigate records the address and returns NavigateErr.
func (e *FakeEmbedder) Navigate(ctx context.Context, address string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.navigations = append(e.navigations, address)
	return e.NavigateErr
}

// LoadEvents returns the channel FireLoad signals on.
func (e *FakeEmbedder) LoadEvents() <-chan struct{} {
	return e.loadCh
}

// Location reports the scripted or last navigated address.
func (e *FakeEmbedder) Location(ctx context.Context) (string, error) {
	e.mu.Lock()
	fn := e.LocationFunc
	var last string
	if len(e.navigations) > 0 {
		last = e.navigations[len(e.navigations)-1]
	}
	e.mu.Unlock()

	if fn != nil {
		return fn()
	}
	return last, nil
}

// ReadyState reports the scripted document ready state.
func (e *FakeEmbedder) ReadyState(ctx context.Context) (string, error) {
	e.mu.Lock()
	fn := e.ReadyStateFunc
	e.mu.Unlock()

	if fn != nil {
		return fn()
	}
	return "loading", nil
}

// FireLoad signals one native load event. Non-blocking.
func (e *FakeEmbedder) FireLoad() {
	select {
	case e.loadCh <- struct{}{}:
	default:
	}
}

// Navigations returns a copy of all navigated addresses.
func (e *FakeEmbedder) Navigations() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.navigations))
	copy(out, e.navigations)
	return out
}

// LastNavigation returns the most recent navigated address, or "".
func (e *FakeEmbedder) LastNavigation() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.navigations) == 0 {
		return ""
	}
	return e.navigations[len(e.navigations)-1]
}

// NavigationCount returns how many times Navigate was called.
func (e *FakeEmbedder) NavigationCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.navigations)
}
