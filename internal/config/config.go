// Package config provides configuration types and defaults for marquee.
package config

import (
	"fmt"
	"time"

	"github.com/awidmer/marquee/internal/fetch"
	"github.com/awidmer/marquee/internal/view"
)

// Config holds all configuration for marquee.
type Config struct {
	Rotation    RotationConfig    `yaml:"rotation" mapstructure:"rotation"`
	Watchdog    WatchdogConfig    `yaml:"watchdog" mapstructure:"watchdog"`
	Feed        FeedConfig        `yaml:"feed" mapstructure:"feed"`
	Embed       EmbedConfig       `yaml:"embed" mapstructure:"embed"`
	Browser     BrowserConfig     `yaml:"browser" mapstructure:"browser"`
	Panel       PanelConfig       `yaml:"panel" mapstructure:"panel"`
	Paths       PathsConfig       `yaml:"paths" mapstructure:"paths"`
	LogRotation LogRotationConfig `yaml:"log_rotation" mapstructure:"log_rotation"`
	Views       []view.Descriptor `yaml:"views" mapstructure:"views"`
}

// RotationConfig holds the cycle timings.
type RotationConfig struct {
	Interval    time.Duration `yaml:"interval" mapstructure:"interval"`           // dwell time per view
	MaxViewLoad time.Duration `yaml:"max_view_load" mapstructure:"max_view_load"` // safety cap on an embed load pause
}

// WatchdogConfig holds stall detection settings.
type WatchdogConfig struct {
	Period    time.Duration `yaml:"period" mapstructure:"period"` // 0 = one and a half rotation intervals
	Threshold int           `yaml:"threshold" mapstructure:"threshold"`
}

// FeedConfig holds the aggregate feed client settings.
type FeedConfig struct {
	Endpoint   string            `yaml:"endpoint" mapstructure:"endpoint"`
	AuthHeader string            `yaml:"auth_header" mapstructure:"auth_header"`
	APIKey     string            `yaml:"api_key" mapstructure:"api_key"`
	Timeout    time.Duration     `yaml:"timeout" mapstructure:"timeout"` // per attempt
	Retry      fetch.RetryPolicy `yaml:"retry" mapstructure:"retry"`
	RateLimit  float64           `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second, 0 disables
	Burst      int               `yaml:"burst" mapstructure:"burst"`
}

// Options bridges the feed settings to the fetch client.
func (f FeedConfig) Options() fetch.Options {
	return fetch.Options{
		BaseURL:    f.Endpoint,
		AuthHeader: f.AuthHeader,
		APIKey:     f.APIKey,
		Timeout:    f.Timeout,
		Policy:     f.Retry,
		RateLimit:  f.RateLimit,
		Burst:      f.Burst,
	}
}

// EmbedConfig holds readiness detection settings for embedded pages.
type EmbedConfig struct {
	PollInterval  time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	StableSamples int           `yaml:"stable_samples" mapstructure:"stable_samples"`
	DetectTimeout time.Duration `yaml:"detect_timeout" mapstructure:"detect_timeout"`
}

// BrowserConfig holds kiosk browser settings. When DebugURL is set marquee
// attaches to an already running browser; otherwise, with Launch on, it
// starts its own.
type BrowserConfig struct {
	Launch    bool     `yaml:"launch" mapstructure:"launch"`
	Binary    string   `yaml:"binary" mapstructure:"binary"`
	DebugPort int      `yaml:"debug_port" mapstructure:"debug_port"`
	DebugURL  string   `yaml:"debug_url" mapstructure:"debug_url"`
	ExtraArgs []string `yaml:"extra_args" mapstructure:"extra_args"`
}

// PanelConfig holds the view server settings.
type PanelConfig struct {
	Listen  string `yaml:"listen" mapstructure:"listen"`
	Metrics bool   `yaml:"metrics" mapstructure:"metrics"`
}

// PathsConfig holds file paths for logs, journals, and the control socket.
type PathsConfig struct {
	Log    string `yaml:"log" mapstructure:"log"`
	Events string `yaml:"events" mapstructure:"events"`
	Status string `yaml:"status" mapstructure:"status"`
	Socket string `yaml:"socket" mapstructure:"socket"`
	PID    string `yaml:"pid" mapstructure:"pid"`
}

// LogRotationConfig holds settings for log file rotation
// (lumberjack-based automatic rotation).
type LogRotationConfig struct {
	MaxSizeMB  int  `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool `yaml:"compress" mapstructure:"compress"`
}

// Default returns a Config with workable defaults for everything except the
// playlist and the feed endpoint, which a deployment must provide.
func Default() *Config {
	return &Config{
		Rotation: RotationConfig{
			Interval:    15 * time.Second,
			MaxViewLoad: 20 * time.Second,
		},
		Watchdog: WatchdogConfig{
			Period:    0,
			Threshold: 3,
		},
		Feed: FeedConfig{
			AuthHeader: "X-Api-Key",
			Timeout:    8 * time.Second,
			Retry:      fetch.DefaultRetryPolicy(),
			RateLimit:  5,
			Burst:      5,
		},
		Embed: EmbedConfig{
			PollInterval:  500 * time.Millisecond,
			StableSamples: 3,
			DetectTimeout: 10 * time.Second,
		},
		Browser: BrowserConfig{
			Launch:    true,
			Binary:    "chromium",
			DebugPort: 9222,
			ExtraArgs: []string{},
		},
		Panel: PanelConfig{
			Listen:  "127.0.0.1:8089",
			Metrics: true,
		},
		Paths: PathsConfig{
			Log:    ".marquee/marquee.log",
			Events: ".marquee/events.jsonl",
			Status: ".marquee/status.json",
			Socket: ".marquee/marquee.sock",
			PID:    ".marquee/marquee.pid",
		},
		LogRotation: LogRotationConfig{
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   true,
		},
		Views: []view.Descriptor{},
	}
}

// Validate checks the whole configuration, playlist included.
func (c *Config) Validate() error {
	if c.Rotation.Interval <= 0 {
		return fmt.Errorf("rotation.interval must be positive, got %v", c.Rotation.Interval)
	}
	if c.Rotation.MaxViewLoad <= 0 {
		return fmt.Errorf("rotation.max_view_load must be positive, got %v", c.Rotation.MaxViewLoad)
	}
	if c.Watchdog.Period < 0 {
		return fmt.Errorf("watchdog.period must not be negative, got %v", c.Watchdog.Period)
	}
	// A watchdog sampling faster than the rotation advances would count a
	// healthy idle gap as stuck. Zero means auto (1.5x the interval).
	if c.Watchdog.Period > 0 && c.Watchdog.Period <= c.Rotation.Interval {
		return fmt.Errorf("watchdog.period must exceed rotation.interval (%v), got %v",
			c.Rotation.Interval, c.Watchdog.Period)
	}
	if c.Watchdog.Threshold < 1 {
		return fmt.Errorf("watchdog.threshold must be at least 1, got %d", c.Watchdog.Threshold)
	}

	if c.Feed.Timeout <= 0 {
		return fmt.Errorf("feed.timeout must be positive, got %v", c.Feed.Timeout)
	}
	if err := c.Feed.Retry.Validate(); err != nil {
		return fmt.Errorf("feed.retry: %w", err)
	}
	if c.Feed.RateLimit < 0 {
		return fmt.Errorf("feed.rate_limit must not be negative, got %v", c.Feed.RateLimit)
	}

	if c.Embed.PollInterval <= 0 {
		return fmt.Errorf("embed.poll_interval must be positive, got %v", c.Embed.PollInterval)
	}
	if c.Embed.StableSamples < 1 {
		return fmt.Errorf("embed.stable_samples must be at least 1, got %d", c.Embed.StableSamples)
	}
	if c.Embed.DetectTimeout <= 0 {
		return fmt.Errorf("embed.detect_timeout must be positive, got %v", c.Embed.DetectTimeout)
	}

	if c.Browser.Launch && c.Browser.DebugURL == "" {
		if c.Browser.DebugPort < 1 || c.Browser.DebugPort > 65535 {
			return fmt.Errorf("browser.debug_port out of range, got %d", c.Browser.DebugPort)
		}
	}
	if c.Panel.Listen == "" {
		return fmt.Errorf("panel.listen must not be empty")
	}

	if err := view.ValidatePlaylist(c.Views); err != nil {
		return fmt.Errorf("views: %w", err)
	}
	if c.hasLeaderboardView() && c.Feed.Endpoint == "" {
		return fmt.Errorf("feed.endpoint is required for leaderboard views")
	}
	return nil
}

func (c *Config) hasLeaderboardView() bool {
	for _, v := range c.Views {
		if v.Kind == view.KindLeaderboard {
			return true
		}
	}
	return false
}
