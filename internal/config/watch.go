package config

import (
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads path into cfg (via ReplaceFrom, then re-applying env
// overrides) whenever the file changes on disk, until stop is closed.
// Reload errors are logged and otherwise leave the current Config
// untouched.
func Watch(path string, cfg *Config, logger *slog.Logger, stop <-chan struct{}) error {
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-stop:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				reloaded, err := Load(path)
				if err != nil {
					logger.Warn("config: reload failed, keeping previous config", "path", path, "error", err)
					continue
				}
				cfg.ReplaceFrom(reloaded)
				cfg.ApplyEnvOverrides()
				logger.Info("config: reloaded from disk", "path", path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("config: watch error", "error", err)
			}
		}
	}()

	return nil
}
