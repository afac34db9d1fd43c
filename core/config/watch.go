package config

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses editor save bursts into one reload.
const DefaultDebounce = 100 * time.Millisecond

// Watch reloads the configuration whenever one of Paths changes, until ctx is
// done or Close is called. Directories that do not exist yet are skipped.
func (m *Manager) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	targets := make(map[string]struct{})
	for _, path := range m.Paths() {
		abs, err := filepath.Abs(path)
		if err != nil {
			continue
		}
		targets[abs] = struct{}{}
		dir := filepath.Dir(abs)
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			m.logger.Warn("config watch skipped directory", "dir", dir, "error", err)
		}
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.stopWatch:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event, targets) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(DefaultDebounce)
			} else {
				timer.Reset(DefaultDebounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			if err := m.Reload(); err != nil {
				m.logger.Error("config reload failed", "error", err)
				continue
			}
			m.logger.Info("config reloaded")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.logger.Warn("config watch error", "error", err)
		}
	}
}

func relevant(event fsnotify.Event, targets map[string]struct{}) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	_, ok := targets[abs]
	return ok
}
