package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/awidmer/marquee/internal/browser"
	"github.com/awidmer/marquee/internal/config"
	"github.com/awidmer/marquee/internal/daemon"
	"github.com/awidmer/marquee/internal/engine"
	"github.com/awidmer/marquee/internal/events"
	"github.com/awidmer/marquee/internal/fetch"
	"github.com/awidmer/marquee/internal/loader"
	"github.com/awidmer/marquee/internal/metrics"
	"github.com/awidmer/marquee/internal/panel"
	"github.com/awidmer/marquee/internal/shutdown"
	"github.com/awidmer/marquee/internal/tui"
	"github.com/awidmer/marquee/internal/watchdog"
)

var version = "dev"

// browserAttachTimeout bounds launching the kiosk browser and dialing its
// debug endpoint.
const browserAttachTimeout = 30 * time.Second

// rotationStatus hands the panel a snapshot source that can be wired after
// the engine exists. The panel starts listening before the engine is built.
type rotationStatus struct {
	mu  sync.Mutex
	eng *engine.Engine
}

func (r *rotationStatus) set(eng *engine.Engine) {
	r.mu.Lock()
	r.eng = eng
	r.mu.Unlock()
}

func (r *rotationStatus) Snapshot() engine.Snapshot {
	r.mu.Lock()
	eng := r.eng
	r.mu.Unlock()

	if eng == nil {
		return engine.Snapshot{}
	}
	return eng.Snapshot()
}

// getDaemonClient creates a daemon client from the socket-path flag or by
// finding daemon.json in the deployment.
func getDaemonClient() (*daemon.Client, error) {
	if sock := viper.GetString(FlagSocketPath); sock != "" {
		return daemon.NewClient(sock), nil
	}
	info, err := daemon.FindDaemonInfo("")
	if err != nil {
		return nil, fmt.Errorf("marquee not running: %w", err)
	}
	return daemon.NewClient(info.SocketPath), nil
}

// embedOptions bridges the embed config to the loader.
func embedOptions(cfg *config.Config) loader.EmbedOptions {
	return loader.EmbedOptions{
		PollInterval:  cfg.Embed.PollInterval,
		StableSamples: cfg.Embed.StableSamples,
		DetectTimeout: cfg.Embed.DetectTimeout,
	}
}

// reloadConfig re-reads the deployment config for a live playlist swap. A
// config that fails validation is rejected, keeping the running one.
func reloadConfig() (*config.Config, error) {
	fresh, err := config.LoadConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if err := fresh.Validate(); err != nil {
		return nil, err
	}
	return fresh, nil
}

// eventsJournalPath resolves the event journal location, preferring a running
// daemon's recorded path.
func eventsJournalPath() string {
	if info, err := daemon.FindDaemonInfo(""); err == nil && info.EventsPath != "" {
		return info.EventsPath
	}
	projectRoot := daemon.FindProjectRoot("")
	resolved, err := daemon.ResolvePaths(config.Default().Paths, projectRoot)
	if err != nil {
		return config.Default().Paths.Events
	}
	return resolved.Events
}

// readStatusFallback loads the persisted rotation snapshot for when the
// control socket is unreachable.
func readStatusFallback() (*events.RotationState, error) {
	if info, err := daemon.FindDaemonInfo(""); err == nil && info.StatusPath != "" {
		return events.ReadStatusFile(info.StatusPath)
	}
	projectRoot := daemon.FindProjectRoot("")
	resolved, err := daemon.ResolvePaths(config.Default().Paths, projectRoot)
	if err != nil {
		return nil, err
	}
	return events.ReadStatusFile(resolved.Status)
}

// printStatus renders a live daemon status response.
func printStatus(status *daemon.StatusResponse) error {
	if viper.GetBool(FlagJSON) {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal status: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	snap := status.Rotation
	fmt.Printf("Status: %s\n", status.Status)
	if snap.Current.ID != "" {
		fmt.Printf("Current view: %s [%s] (position %d of %d)\n",
			snap.Current.ID, snap.Current.Kind, snap.Position+1, snap.Views)
	}
	if snap.Held {
		fmt.Println("Held: yes")
	}
	if snap.Waiting {
		fmt.Println("Waiting: embed view loading")
	}
	fmt.Printf("Activations: %d\n", snap.Activations)
	fmt.Printf("Uptime: %s\n", status.Uptime)
	fmt.Printf("Started: %s\n", status.StartTime)
	if status.PanelURL != "" {
		fmt.Printf("Panel: %s\n", status.PanelURL)
	}
	fmt.Printf("PID: %d\n", status.PID)
	return nil
}

// printStatusFile renders the persisted snapshot when no daemon answers.
func printStatusFile(state *events.RotationState) error {
	if viper.GetBool(FlagJSON) {
		data, err := json.MarshalIndent(state, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal status: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Status: %s (from status file, daemon not reachable)\n", state.Status)
	if state.CurrentView != "" {
		fmt.Printf("Current view: %s (position %d)\n", state.CurrentView, state.Position)
	}
	if state.Held {
		fmt.Println("Held: yes")
	}
	fmt.Printf("Activations: %d\n", state.Activations)
	if state.WatchdogRecoveries > 0 {
		fmt.Printf("Watchdog recoveries: %d\n", state.WatchdogRecoveries)
	}
	fmt.Printf("Updated: %s\n", state.UpdatedAt.Format(time.RFC3339))
	return nil
}

// tailLast reads and prints the last n events from the journal.
func tailLast(path string, n int) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("No events yet (journal does not exist)")
			return nil
		}
		return fmt.Errorf("open journal: %w", err)
	}
	defer func() { _ = file.Close() }()

	// Read all lines into a buffer (simple approach for reasonable journal sizes)
	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read journal: %w", err)
	}

	if len(lines) == 0 {
		fmt.Println("No events yet")
		return nil
	}

	start := 0
	if len(lines) > n {
		start = len(lines) - n
	}

	for _, line := range lines[start:] {
		printEventLine(line)
	}
	return nil
}

// waitForFile waits for a file to be created and returns the opened file.
func waitForFile(ctx context.Context, path string) (*os.File, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(500 * time.Millisecond):
			file, err := os.Open(path)
			if err == nil {
				return file, nil
			}
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("open file: %w", err)
			}
			// File still doesn't exist, continue waiting
		}
	}
}

// tailFollow follows the journal and prints new events as they appear.
func tailFollow(ctx context.Context, path string) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("Waiting for the event journal to be created...")
			file, err = waitForFile(ctx, path)
			if err != nil {
				return err
			}
		} else {
			return fmt.Errorf("open journal: %w", err)
		}
	}
	defer func() { _ = file.Close() }()

	// Seek to end
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek to end: %w", err)
	}

	fmt.Println("Following events (Ctrl+C to stop)...")
	reader := bufio.NewReader(file)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			line, err := reader.ReadString('\n')
			if err != nil {
				if err == io.EOF {
					// No more data, wait a bit
					time.Sleep(100 * time.Millisecond)
					continue
				}
				return fmt.Errorf("read journal: %w", err)
			}
			printEventLine(strings.TrimSuffix(line, "\n"))
		}
	}
}

// printEventLine prints a single journal line in a human-readable format.
func printEventLine(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	event, err := events.ParseEvent([]byte(line))
	if err != nil || event == nil {
		// Not a known event; show the raw line
		fmt.Println(line)
		return
	}
	fmt.Println(events.FormatWithTimestamp(event))
}

// starterConfig is the deployment config written by the init command.
const starterConfig = `# marquee deployment configuration

# Rotation timing.
rotation:
  interval: 15s
  max_view_load: 20s

# Aggregate feed backing the leaderboard views.
feed:
  endpoint: https://scores.example.com/api
  api_key: changeme
  # auth_header: X-Api-Key

# Web panel the kiosk browser renders from.
panel:
  listen: 127.0.0.1:8089
  metrics: true

# Kiosk browser. Set debug_url instead of launch to attach to a browser
# that is already running.
browser:
  launch: true
  binary: chromium
  debug_port: 9222

# The rotation playlist.
views:
  - id: welcome
    kind: embed
    title: Welcome
    url: https://example.com/welcome
  - id: weekly
    kind: leaderboard
    title: Weekly Top Scores
    source: weekly
`

// runInit writes the starter config into the deployment's .marquee directory.
func runInit(force bool) error {
	dir := config.ProjectConfigDir
	path := filepath.Join(dir, config.ProjectConfigFile)

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	if err := os.WriteFile(path, []byte(starterConfig), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	fmt.Printf("Wrote %s\n", path)
	fmt.Println("Edit the feed endpoint and playlist, then run: marquee start")
	return nil
}

func main() {
	logLevel := &slog.LevelVar{}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	viper.SetEnvPrefix("MARQUEE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:   "marquee",
		Short: "Rotating signage for kiosk screens",
		Long: `marquee drives a rotating signage display: a fixed playlist of views
cycles on a kiosk screen, pausing for embedded pages to finish loading and
rendering leaderboard data pulled from an aggregate feed.

Run it in a terminal for a live preview, or with --daemon on the kiosk
itself, where it launches the browser and serves the rendered views.`,
		SilenceUsage: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().Bool(FlagVerbose, false, "Enable verbose (debug) logging")
	rootCmd.PersistentFlags().String(FlagConfig, "", "Config file path (default: .marquee/config.yaml)")
	rootCmd.PersistentFlags().String(FlagSocketPath, "", "Unix socket path for rotation control")

	// Bind all flags to viper
	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})

	// Version command
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("marquee %s\n", version)
		},
	}

	// Start command
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the rotation",
		Long: `Start the marquee rotation.

In a terminal this runs the live preview: the playlist cycles against a
simulated browser surface and renders into the TUI. With --daemon it runs
the kiosk for real: the browser is launched (or attached), views are served
from the web panel, and a control socket accepts status/hold/advance/stop.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			daemonMode := viper.GetBool(FlagDaemon)

			// Determine TUI mode: explicit flag > auto-detect from TTY
			tuiEnabled := viper.GetBool(FlagTUI)
			if !cmd.Flags().Changed(FlagTUI) && !daemonMode {
				tuiEnabled = term.IsTerminal(int(os.Stdout.Fd()))
			}

			if tuiEnabled && daemonMode {
				return fmt.Errorf("--tui and --daemon flags are incompatible")
			}

			if viper.GetBool(FlagVerbose) {
				logLevel.Set(slog.LevelDebug)
				logger.Debug("verbose logging enabled")
			}

			// Load config from files with defaults
			cfg, err := config.LoadConfig(viper.GetViper())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			// Apply CLI flag overrides (only if explicitly set)
			if cmd.Flags().Changed(FlagInterval) {
				cfg.Rotation.Interval = viper.GetDuration(FlagInterval)
			}
			if cmd.Flags().Changed(FlagFeedEndpoint) {
				cfg.Feed.Endpoint = viper.GetString(FlagFeedEndpoint)
			}
			if cmd.Flags().Changed(FlagFeedKey) {
				cfg.Feed.APIKey = viper.GetString(FlagFeedKey)
			}
			if cmd.Flags().Changed(FlagPanelListen) {
				cfg.Panel.Listen = viper.GetString(FlagPanelListen)
			}
			if cmd.Flags().Changed(FlagBrowserLaunch) {
				cfg.Browser.Launch = viper.GetBool(FlagBrowserLaunch)
			}
			if cmd.Flags().Changed(FlagBrowserURL) {
				cfg.Browser.DebugURL = viper.GetString(FlagBrowserURL)
			}
			if cmd.Flags().Changed(FlagSocketPath) {
				cfg.Paths.Socket = viper.GetString(FlagSocketPath)
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			// Find the deployment root for path resolution
			projectRoot := daemon.FindProjectRoot("")

			cfg.Paths, err = daemon.ResolvePaths(cfg.Paths, projectRoot)
			if err != nil {
				return fmt.Errorf("resolve paths: %w", err)
			}

			// Check if the daemon is already running
			if daemonMode {
				client := daemon.NewClient(cfg.Paths.Socket)
				if client.IsRunning() {
					return fmt.Errorf("marquee already running (socket: %s)", cfg.Paths.Socket)
				}

				// Daemonize: fork and let the parent exit
				shouldExit, _, err := daemon.Daemonize(cfg)
				if err != nil {
					return fmt.Errorf("daemonize: %w", err)
				}
				if shouldExit {
					return nil // Parent exits cleanly
				}
				// Child continues below
			}

			// Ensure the .marquee state directory exists
			infoPath := daemon.DaemonInfoPath(projectRoot)
			if err := os.MkdirAll(filepath.Dir(infoPath), 0755); err != nil {
				return fmt.Errorf("create state directory: %w", err)
			}

			// One instance per deployment: the pid file stays locked for the
			// life of the process
			pidFile := daemon.NewPIDFile(cfg.Paths.PID)
			pidFile.CleanupStale(cfg.Paths.Socket, infoPath)
			if err := pidFile.Acquire(); err != nil {
				return err
			}
			defer func() { _ = pidFile.Release() }()

			logger.Info("marquee starting",
				"version", version,
				"views", len(cfg.Views),
				"interval", cfg.Rotation.Interval,
				"daemon_mode", daemonMode,
			)

			// Create the event router
			router := events.NewRouter(events.DefaultBufferSize)

			// Create and start sinks
			logSink := events.NewLogSink(cfg.Paths.Events)
			statusSink := events.NewStatusSink(cfg.Paths.Status)

			ctx := cmd.Context()
			sinkCtx, sinkCancel := context.WithCancel(ctx)

			journalEvents := router.Subscribe()
			if err := logSink.Start(sinkCtx, journalEvents); err != nil {
				sinkCancel()
				return fmt.Errorf("start event journal: %w", err)
			}

			statusEvents := router.SubscribeBuffered(events.StatusBufferSize)
			if err := statusSink.Start(sinkCtx, statusEvents); err != nil {
				sinkCancel()
				router.Close()
				_ = logSink.Stop()
				return fmt.Errorf("start status sink: %w", err)
			}

			cleanupSinks := func() {
				sinkCancel()
				router.Close()
				_ = logSink.Stop()
				_ = statusSink.Stop()
			}

			// The scrape endpoint lives on the panel, which only the kiosk runs
			m := metrics.New(cfg.Panel.Metrics && !tuiEnabled)

			engineOpts := engine.Options{
				Interval:    cfg.Rotation.Interval,
				MaxViewLoad: cfg.Rotation.MaxViewLoad,
			}
			watchdogOpts := watchdog.Options{
				Period:    watchdog.PeriodFor(cfg.Watchdog.Period, cfg.Rotation.Interval),
				Threshold: cfg.Watchdog.Threshold,
			}
			configPath := filepath.Join(projectRoot, config.ProjectConfigDir, config.ProjectConfigFile)

			// TUI mode: preview the rotation against a simulated browser,
			// rendering into the terminal
			if tuiEnabled {
				tuiLogResult, err := SetupTUILogger(filepath.Dir(cfg.Paths.Log), logLevel, cfg.LogRotation)
				if err != nil {
					cleanupSinks()
					return err
				}
				defer func() { _ = tuiLogResult.Close() }()
				runLogger := tuiLogResult.Logger
				slog.SetDefault(runLogger)

				daemonInfo := &daemon.DaemonInfo{
					SocketPath: cfg.Paths.Socket,
					PIDPath:    cfg.Paths.PID,
					LogPath:    cfg.Paths.Log,
					EventsPath: cfg.Paths.Events,
					StatusPath: cfg.Paths.Status,
					StartTime:  time.Now(),
					PID:        os.Getpid(),
				}
				if err := daemon.WriteDaemonInfo(infoPath, daemonInfo); err != nil {
					runLogger.Warn("failed to write daemon info", "error", err)
				}

				tuiEvents := router.SubscribeBuffered(5000)
				defer router.Unsubscribe(tuiEvents)

				feedClient := fetch.NewClient(cfg.Feed.Options(), runLogger, router, m)
				embedder := tui.NewPreviewEmbedder(0)

				// The TUI is the render surface, so it exists before the
				// engine; the control callbacks close over eng, assigned below
				var eng *engine.Engine
				tuiApp := tui.New(tuiEvents,
					tui.WithOnHold(func() { eng.Hold() }),
					tui.WithOnResume(func() { eng.Resume() }),
					tui.WithOnAdvance(func() { eng.Advance() }),
					tui.WithOnQuit(func() { eng.Stop() }),
				)

				loaders := loader.NewSet(
					loader.NewEmbed(embedder, tuiApp, embedOptions(cfg), runLogger, router, m),
					loader.NewLeaderboard(feedClient, tuiApp, runLogger, router, m),
				)
				eng = engine.New(engineOpts, cfg.Views, loaders, runLogger, router, m)
				tuiApp.SetRotation(eng)

				bgCtx, bgCancel := context.WithCancel(ctx)
				defer bgCancel()

				wd := watchdog.New(eng, watchdogOpts, runLogger, router, m)
				go wd.Run(bgCtx)

				if viper.GetBool(FlagWatchConfig) {
					go func() {
						if werr := config.Watch(bgCtx, configPath, reloadConfig, func(fresh *config.Config) {
							eng.ReplaceViews(fresh.Views)
						}, runLogger); werr != nil {
							runLogger.Warn("config watch stopped", "error", werr)
						}
					}()
				}

				// Run the engine in the background; the TUI owns the terminal
				engDone := make(chan error, 1)
				go func() {
					engDone <- eng.Run(ctx)
				}()

				tuiErr := tuiApp.Run()

				// Ensure the rotation stops when the TUI exits
				eng.Stop()
				engErr := <-engDone

				cleanupSinks()
				_ = daemon.RemoveDaemonInfo(infoPath)

				if tuiErr != nil {
					return tuiErr
				}
				return engErr
			}

			// Kiosk mode: the real browser renders views served by the panel
			store := panel.NewStore()
			status := &rotationStatus{}
			panelSrv := panel.New(store, status, m, logger, panel.Options{
				Listen:  cfg.Panel.Listen,
				Metrics: cfg.Panel.Metrics,
			})
			if err := panelSrv.Start(); err != nil {
				cleanupSinks()
				return err
			}
			shutdownPanel := func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if serr := panelSrv.Shutdown(shutdownCtx); serr != nil {
					logger.Warn("panel shutdown", "error", serr)
				}
			}

			// Write daemon info for CLI discovery
			daemonInfo := &daemon.DaemonInfo{
				SocketPath: cfg.Paths.Socket,
				PIDPath:    cfg.Paths.PID,
				LogPath:    cfg.Paths.Log,
				EventsPath: cfg.Paths.Events,
				StatusPath: cfg.Paths.Status,
				PanelURL:   panelSrv.BaseURL(),
				StartTime:  time.Now(),
				PID:        os.Getpid(),
			}
			if err := daemon.WriteDaemonInfo(infoPath, daemonInfo); err != nil {
				logger.Warn("failed to write daemon info", "error", err)
			}

			// Browser: attach to an existing debug endpoint or launch our own
			attachCtx, attachCancel := context.WithTimeout(ctx, browserAttachTimeout)
			var proc *browser.Process
			var dt *browser.DevTools
			switch {
			case cfg.Browser.DebugURL != "":
				var wsURL string
				wsURL, err = browser.WaitForPage(attachCtx, cfg.Browser.DebugURL)
				if err == nil {
					dt, err = browser.Dial(attachCtx, wsURL, logger)
				}
			case cfg.Browser.Launch:
				proc, dt, err = browser.Attach(attachCtx, browser.LaunchOptions{
					Binary:    cfg.Browser.Binary,
					DebugPort: cfg.Browser.DebugPort,
					StartURL:  panelSrv.BaseURL(),
					ExtraArgs: cfg.Browser.ExtraArgs,
				}, logger)
			default:
				err = fmt.Errorf("browser.launch is disabled and no browser.debug_url is configured")
			}
			attachCancel()
			if err != nil {
				shutdownPanel()
				cleanupSinks()
				_ = daemon.RemoveDaemonInfo(infoPath)
				return fmt.Errorf("browser: %w", err)
			}

			display := browser.NewDisplay(store, dt, panelSrv.BaseURL(), logger)
			feedClient := fetch.NewClient(cfg.Feed.Options(), logger, router, m)

			loaders := loader.NewSet(
				loader.NewEmbed(dt, display, embedOptions(cfg), logger, router, m),
				loader.NewLeaderboard(feedClient, display, logger, router, m),
			)
			eng := engine.New(engineOpts, cfg.Views, loaders, logger, router, m)
			status.set(eng)

			bgCtx, bgCancel := context.WithCancel(ctx)
			defer bgCancel()

			wd := watchdog.New(eng, watchdogOpts, logger, router, m)
			go wd.Run(bgCtx)

			if viper.GetBool(FlagWatchConfig) {
				go func() {
					if werr := config.Watch(bgCtx, configPath, reloadConfig, func(fresh *config.Config) {
						eng.ReplaceViews(fresh.Views)
					}, logger); werr != nil {
						logger.Warn("config watch stopped", "error", werr)
					}
				}()
			}

			// A kiosk without its browser shows nothing; stop so the service
			// manager can restart the pair
			if proc != nil {
				go func() {
					select {
					case <-proc.Done():
						logger.Error("browser exited, stopping rotation", "error", proc.Err())
						eng.Stop()
					case <-bgCtx.Done():
					}
				}()
			}

			// Control socket for status/hold/advance/stop
			dmn := daemon.New(cfg, eng, logger)
			dmn.SetPanelURL(panelSrv.BaseURL())
			dmn.SetReloadFunc(func() error {
				fresh, rerr := reloadConfig()
				if rerr != nil {
					return rerr
				}
				eng.ReplaceViews(fresh.Views)
				return nil
			})

			daemonCtx, daemonCancel := context.WithCancel(ctx)
			defer daemonCancel()
			daemonDone := make(chan struct{})
			go func() {
				defer close(daemonDone)
				if derr := dmn.Start(daemonCtx); derr != nil {
					logger.Error("daemon server error", "error", derr)
				}
			}()

			// Run with graceful shutdown handling
			err = shutdown.RunWithGracefulShutdown(
				ctx,
				logger,
				30*time.Second,
				func(runCtx context.Context) error {
					return eng.Run(runCtx)
				},
				func(shutdownCtx context.Context) error {
					eng.Stop()
					daemonCancel()
					<-daemonDone
					return nil
				},
			)

			// Tear down in reverse order: daemon, browser, panel, sinks
			daemonCancel()
			<-daemonDone

			_ = dt.Close()
			if proc != nil {
				if serr := proc.Stop(); serr != nil {
					logger.Warn("browser stop", "error", serr)
				}
			}

			shutdownPanel()
			cleanupSinks()
			_ = daemon.RemoveDaemonInfo(infoPath)

			return err
		},
	}

	// Start command specific flags
	startCmd.Flags().Bool(FlagDaemon, false, "Run as a background daemon")
	startCmd.Flags().Bool(FlagTUI, false, "Run the terminal preview")
	startCmd.Flags().Duration(FlagInterval, 0, "Rotation interval (for example 15s)")
	startCmd.Flags().String(FlagFeedEndpoint, "", "Aggregate feed base URL")
	startCmd.Flags().String(FlagFeedKey, "", "Feed API key")
	startCmd.Flags().String(FlagPanelListen, "", "Panel listen address")
	startCmd.Flags().Bool(FlagBrowserLaunch, true, "Launch the kiosk browser")
	startCmd.Flags().String(FlagBrowserURL, "", "Attach to a browser debug endpoint instead of launching")
	startCmd.Flags().Bool(FlagWatchConfig, true, "Reload the playlist when the config file changes")

	startCmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})

	// Status command
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show rotation status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cerr := getDaemonClient()
			if cerr == nil {
				st, serr := client.Status()
				if serr == nil {
					return printStatus(st)
				}
				cerr = serr
			}

			// Socket unreachable: fall back to the persisted snapshot
			state, ferr := readStatusFallback()
			if ferr != nil {
				return cerr
			}
			return printStatusFile(state)
		},
	}
	statusCmd.Flags().Bool(FlagJSON, false, "Output status as JSON")
	_ = viper.BindPFlag(FlagJSON, statusCmd.Flags().Lookup(FlagJSON))

	// Advance command
	advanceCmd := &cobra.Command{
		Use:   "advance",
		Short: "Skip to the next view",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getDaemonClient()
			if err != nil {
				return err
			}
			if err := client.Advance(); err != nil {
				return err
			}
			fmt.Println("Advancing to the next view")
			return nil
		},
	}

	// Hold command
	holdCmd := &cobra.Command{
		Use:   "hold",
		Short: "Hold the rotation on the current view",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getDaemonClient()
			if err != nil {
				return err
			}
			if err := client.Hold(); err != nil {
				return err
			}
			fmt.Println("Rotation held - the current view stays up until resume")
			return nil
		},
	}

	// Resume command
	resumeCmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume a held rotation",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getDaemonClient()
			if err != nil {
				return err
			}
			if err := client.Resume(); err != nil {
				return err
			}
			fmt.Println("Rotation resuming")
			return nil
		},
	}

	// Reload command
	reloadCmd := &cobra.Command{
		Use:   "reload",
		Short: "Reload the deployment config and playlist",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getDaemonClient()
			if err != nil {
				return err
			}
			if err := client.Reload(); err != nil {
				return err
			}
			fmt.Println("Config reloaded")
			return nil
		},
	}

	// Stop command
	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the rotation and the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getDaemonClient()
			if err != nil {
				return err
			}

			force := viper.GetBool(FlagForce)
			if err := client.Stop(force); err != nil {
				return err
			}

			fmt.Println("Stop requested - marquee is shutting down")
			return nil
		},
	}

	stopCmd.Flags().Bool(FlagForce, false, "Stop immediately without finishing the current view")
	stopCmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})

	// Events command
	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "View recent rotation events",
		RunE: func(cmd *cobra.Command, args []string) error {
			journalPath := eventsJournalPath()

			count := viper.GetInt(FlagCount)
			follow := viper.GetBool(FlagFollow)

			if follow {
				return tailFollow(cmd.Context(), journalPath)
			}
			return tailLast(journalPath, count)
		},
	}

	eventsCmd.Flags().Bool(FlagFollow, false, "Follow the event stream (like tail -f)")
	eventsCmd.Flags().Int(FlagCount, 20, "Number of recent events to show")
	eventsCmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})

	// Init command
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create a starter deployment config",
		Long: `Create .marquee/config.yaml with a commented starter configuration.

The starter playlist has one embed view and one leaderboard view; edit it to
match the deployment, then run "marquee start".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(viper.GetBool(FlagForce))
		},
	}

	initCmd.Flags().Bool(FlagForce, false, "Overwrite an existing config file")
	initCmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})

	// Register all commands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(advanceCmd)
	rootCmd.AddCommand(holdCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(reloadCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(initCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
