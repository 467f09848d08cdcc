package view

import (
	"fmt"
	"strings"
)

// Kind identifies which loader strategy drives a view.
type Kind string

const (
	// KindEmbed loads an external page in the kiosk surface and waits for
	// readiness before rotation resumes.
	KindEmbed Kind = "embed"
	// KindLeaderboard fetches aggregate feed data and renders it locally.
	// Rotation does not pause for this kind.
	KindLeaderboard Kind = "leaderboard"
)

// Valid reports whether k names a known strategy.
func (k Kind) Valid() bool {
	switch k {
	case KindEmbed, KindLeaderboard:
		return true
	}
	return false
}

// Descriptor is one entry in the rotation playlist.
type Descriptor struct {
	ID     string `yaml:"id" mapstructure:"id" json:"id"`
	Kind   Kind   `yaml:"kind" mapstructure:"kind" json:"kind"`
	Title  string `yaml:"title,omitempty" mapstructure:"title" json:"title,omitempty"`
	URL    string `yaml:"url,omitempty" mapstructure:"url" json:"url,omitempty"`
	Source string `yaml:"source,omitempty" mapstructure:"source" json:"source,omitempty"`
}

// DisplayTitle returns the configured title, falling back to the ID.
func (d Descriptor) DisplayTitle() string {
	if d.Title != "" {
		return d.Title
	}
	return d.ID
}

// Validate checks a single descriptor.
func (d Descriptor) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("missing id")
	}
	if !d.Kind.Valid() {
		return fmt.Errorf("unknown kind %q", d.Kind)
	}
	switch d.Kind {
	case KindEmbed:
		if !strings.HasPrefix(d.URL, "http://") && !strings.HasPrefix(d.URL, "https://") {
			return fmt.Errorf("embed view requires a http(s) url, got %q", d.URL)
		}
	case KindLeaderboard:
		if strings.TrimSpace(d.Source) == "" {
			return fmt.Errorf("leaderboard view requires a source")
		}
	}
	return nil
}

// ValidatePlaylist checks the full rotation playlist: at least one view,
// unique IDs, each descriptor valid.
func ValidatePlaylist(views []Descriptor) error {
	if len(views) == 0 {
		return fmt.Errorf("playlist is empty")
	}
	seen := make(map[string]bool, len(views))
	for i, v := range views {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("view %d (%s): %w", i, v.ID, err)
		}
		if seen[v.ID] {
			return fmt.Errorf("view %d: duplicate id %q", i, v.ID)
		}
		seen[v.ID] = true
	}
	return nil
}

// Find returns the descriptor with the given ID, or false.
func Find(views []Descriptor, id string) (Descriptor, bool) {
	for _, v := range views {
		if v.ID == id {
			return v, true
		}
	}
	return Descriptor{}, false
}
