package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the event bursts editors produce on save.
const reloadDebounce = 500 * time.Millisecond

// Watch observes a config file and calls apply for every successful reload.
// A reload that fails keeps the previous configuration in effect. The parent
// directory is watched rather than the file, so the write-then-rename save
// pattern still triggers. Watch blocks until the context ends.
func Watch(ctx context.Context, path string, reload func() (*Config, error), apply func(*Config), logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "configwatch")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	base := filepath.Base(path)
	var reloadTimer *time.Timer
	defer func() {
		if reloadTimer != nil {
			reloadTimer.Stop()
		}
	}()

	logger.Info("watching config", "path", path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			logger.Debug("config file changed", "op", event.Op.String())

			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(reloadDebounce, func() {
				cfg, err := reload()
				if err != nil {
					logger.Warn("config reload failed, keeping previous", "error", err)
					return
				}
				apply(cfg)
				logger.Info("config reloaded", "views", len(cfg.Views))
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("config watcher error", "error", err)
		}
	}
}
