package assets

import (
	"context"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watch marks the library dirty whenever an mp4 lands in the raw
// folder, so the next sweep's Maintain call picks it up without
// rescanning on every sweep. Blocks until the context is cancelled.
func (l *Library) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(l.rawDir); err != nil {
		return err
	}
	l.log.Debug("watching raw video folder", "dir", l.rawDir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(event.Name, ".mp4") {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				l.mu.Lock()
				l.dirty = true
				l.mu.Unlock()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.log.Warn("raw folder watch error", "error", err)
		}
	}
}
