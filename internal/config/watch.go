package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"alarm-planner/internal/logx"
)

const watchDebounce = 250 * time.Millisecond

// Watch reloads the configuration whenever the YAML file changes and passes
// the result to apply. Invalid edits are logged and ignored. Watch blocks
// until ctx is done.
func Watch(ctx context.Context, path string, log logx.Logger, apply func(Config)) error {
	if path == "" {
		return fmt.Errorf("watch config: no file configured")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace the file, so watch the directory.
	dir := filepath.Dir(path)
	file := filepath.Base(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %q: %w", dir, err)
	}

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != file {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			log.Debug("config change detected", logx.String("path", path), logx.String("op", ev.Op.String()))
			timer.Reset(watchDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watcher error", logx.Err(err))
		case <-timer.C:
			cfg, err := load(path)
			if err != nil {
				log.Warn("config reload rejected", logx.String("path", path), logx.Err(err))
				continue
			}
			log.Info("config reloaded", logx.String("path", path))
			apply(cfg)
		}
	}
}
