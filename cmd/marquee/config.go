package main

// Flag names for viper binding
const (
	// Global flags
	FlagVerbose    = "verbose"
	FlagConfig     = "config"
	FlagSocketPath = "socket-path"

	// Start command flags
	FlagTUI           = "tui"
	FlagInterval      = "interval"
	FlagFeedEndpoint  = "feed-endpoint"
	FlagFeedKey       = "feed-key"
	FlagPanelListen   = "panel-listen"
	FlagBrowserLaunch = "browser-launch"
	FlagBrowserURL    = "browser-url"
	FlagWatchConfig   = "watch-config"

	// Start command daemon mode flags
	FlagDaemon = "daemon"

	// Stop and init command flags
	FlagForce = "force"

	// Events command flags
	FlagFollow = "follow"
	FlagCount  = "count"

	// Output format flags
	FlagJSON = "json"
)
