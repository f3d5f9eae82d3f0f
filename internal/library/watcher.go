package library

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

// RebuildCallback is called after a watcher-driven index rebuild.
type RebuildCallback func(generation uint64)

// Watch starts an fsnotify watcher on the library root and schedules a
// debounced full rebuild whenever a weight file changes on disk. External
// changes therefore bump the index generation, which invalidates any rename
// plans derived before the change. Paths announced through filter are the
// coordinator's own moves and do not trigger a rebuild; ApplyRename already
// keeps the index current for those. filter may be nil.
//
// New directories created at runtime are automatically added to the watch
// list. The debounce coalesces bursts (downloads, bulk moves) into a single
// rebuild.
func Watch(ctx context.Context, s *Scanner, ix *Index, root string, filter *ChangeFilter, logger *slog.Logger, cb RebuildCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	var rebuildTimer *time.Timer
	var rebuildCh <-chan time.Time

	scheduleRebuild := func() {
		if rebuildTimer == nil {
			rebuildTimer = time.NewTimer(500 * time.Millisecond)
			rebuildCh = rebuildTimer.C
		} else {
			rebuildTimer.Reset(500 * time.Millisecond)
		}
	}

	relevant := func(name string) bool {
		ext := strings.ToLower(filepath.Ext(name))
		for _, e := range s.exts {
			if ext == e {
				return true
			}
		}
		return false
	}

	for {
		select {
		case <-ctx.Done():
			if rebuildTimer != nil {
				rebuildTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-rebuildCh:
			if err := s.Rebuild(ctx, ix); err != nil {
				if ctx.Err() != nil {
					continue
				}
				logger.Warn("watcher: rebuild failed", slog.String("error", err.Error()))
				continue
			}
			if cb != nil {
				cb(ix.Generation())
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			// Watch new directories as they appear.
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					scheduleRebuild()
					continue
				}
			}

			if !relevant(ev.Name) {
				continue
			}
			if filter != nil {
				if rel, relErr := filepath.Rel(root, ev.Name); relErr == nil && filter.Ignore(rel) {
					logger.Debug("watcher: planned move, skipping", slog.String("path", rel))
					continue
				}
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				logger.Debug("watcher: change", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
				scheduleRebuild()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
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
