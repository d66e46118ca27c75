package build

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Event kinds passed to EventCallback.
const (
	EventBuilt     = "built"
	EventRemoved   = "removed"
	EventCompleted = "completed"
)

const (
	entryExt        = ".md"
	rebuildDebounce = 200 * time.Millisecond
)

// EventCallback is called after a watcher-driven rebuild: once per written
// entry ("built"), once per pruned output ("removed"), then once with
// "completed" and an empty path.
type EventCallback func(kind string, path string)

// Watch starts an fsnotify watcher on vaultRoot and rebuilds whenever a
// markdown entry changes, until ctx is cancelled. Bursts of events are
// debounced into one rebuild, since any entry's front matter can change the
// links of every other entry.
//
// New directories created at runtime are automatically added to the watch list.
func (s *Service) Watch(ctx context.Context, vaultRoot string, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, vaultRoot); err != nil {
		return err
	}

	s.logger.Info("watcher: started", slog.String("root", vaultRoot))

	var rebuildTimer *time.Timer
	var rebuildCh <-chan time.Time

	scheduleRebuild := func() {
		if rebuildTimer == nil {
			rebuildTimer = time.NewTimer(rebuildDebounce)
			rebuildCh = rebuildTimer.C
		} else {
			rebuildTimer.Reset(rebuildDebounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if rebuildTimer != nil {
				rebuildTimer.Stop()
			}
			s.logger.Info("watcher: stopped")
			return nil

		case <-rebuildCh:
			s.rebuild(ctx, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						s.logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					} else {
						s.logger.Debug("watcher: watching new dir", slog.String("path", ev.Name))
					}
					scheduleRebuild()
					continue
				}
			}

			if !strings.HasSuffix(ev.Name, entryExt) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				s.logger.Debug("watcher: change", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
				scheduleRebuild()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func (s *Service) rebuild(ctx context.Context, cb EventCallback) {
	summary, err := s.Build(ctx)
	if err != nil {
		s.logger.Warn("watcher: rebuild failed", slog.String("error", err.Error()))
		return
	}
	if cb == nil {
		return
	}
	for _, p := range summary.Written {
		cb(EventBuilt, p)
	}
	for _, p := range summary.Removed {
		cb(EventRemoved, p)
	}
	cb(EventCompleted, "")
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
