// Package panel serves rendered views as web pages for the kiosk browser.
// The rotation writes content into the store; the browser reads it back as
// HTML. Loading pages refresh themselves until a terminal state lands, so
// the browser needs exactly one navigation per activation.
package panel

import (
	"sync"

	"github.com/awidmer/marquee/internal/surface"
)

// Store holds the most recent content per view. It is the panel's side of
// the render path and safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	contents map[string]surface.Content
}

func NewStore() *Store {
	return &Store{contents: make(map[string]surface.Content)}
}

// Set replaces the content for a view.
func (s *Store) Set(viewID string, c surface.Content) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contents[viewID] = c
}

// Get returns the content for a view.
func (s *Store) Get(viewID string) (surface.Content, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contents[viewID]
	return c, ok
}

// Len reports how many views have content.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contents)
}
