// Package watch reloads configuration while the daemon is running.
// Editors replace files on save, so the watcher tracks the parent
// directory and filters events down to the configured file name.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceInterval = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the directory holding path and
// calls onChange after each settled burst of writes to that file. It
// blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, logger *slog.Logger, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if err := w.Add(dir); err != nil {
		return err
	}

	logger.Info("watch: started", slog.String("path", path))

	// debounceTimer coalesces editor write bursts into one reload.
	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time

	schedule := func() {
		if debounceTimer == nil {
			debounceTimer = time.NewTimer(debounceInterval)
			debounceCh = debounceTimer.C
		} else {
			debounceTimer.Reset(debounceInterval)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			logger.Info("watch: stopped")
			return nil

		case <-debounceCh:
			logger.Debug("watch: config changed", slog.String("path", path))
			onChange()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				schedule()
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch: watcher error", slog.String("error", err.Error()))
		}
	}
}
