package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/notecheck/internal/checksum"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted"; path is relative to the
// results root and slash-separated.
type EventCallback func(kind string, path string)

// Watch starts an fsnotify watcher on the results root and processes file
// change events until ctx is cancelled. It calls cb (if non-nil) after
// each successful index mutation.
//
// Run directories created at runtime are added to the watch list. Renames
// trigger a debounced reconciliation pass, which also catches the atomic
// tmp-then-rename writes used by the artifact store.
func Watch(ctx context.Context, db *DB, root string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := os.MkdirAll(root, 0o755); err != nil {
		return err
	}
	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(db, root, logger, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					indexNewDir(db, root, absPath, logger, cb)
					continue
				}
			}

			// Renames land as a Create on the final name, so a temp file
			// renamed into place is picked up here too.
			rel, isArtifact := relArtifact(root, absPath)

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				if !isArtifact {
					continue
				}
				data, readErr := os.ReadFile(absPath)
				if readErr != nil {
					logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", readErr.Error()))
					continue
				}
				prev, _ := db.GetChecksum(rel)
				if idxErr := indexFile(db, rel, data); idxErr != nil {
					logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", idxErr.Error()))
					continue
				}
				indexedTotal.Inc()
				refreshGauge(db)
				kind := "updated"
				if prev == "" {
					kind = "created"
				}
				logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind))
				if cb != nil {
					cb(kind, rel)
				}

			case ev.Op&fsnotify.Remove != 0:
				if !isArtifact {
					// A removed run directory takes its artifacts with it.
					scheduleReconcile()
					continue
				}
				if delErr := db.DeleteArtifact(rel); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
					continue
				}
				removedTotal.Inc()
				refreshGauge(db)
				logger.Debug("watcher: deleted", slog.String("path", rel))
				if cb != nil {
					cb("deleted", rel)
				}

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify fires Rename on the old path only; the new path
				// arrives as a separate Create.
				if isArtifact {
					if delErr := db.DeleteArtifact(rel); delErr != nil {
						logger.Warn("watcher: rename delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
					} else {
						removedTotal.Inc()
						logger.Debug("watcher: rename old deleted", slog.String("path", rel))
						if cb != nil {
							cb("deleted", rel)
						}
					}
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile removes catalog entries without a file on disk and indexes
// on-disk artifacts that are missing or stale.
func reconcile(db *DB, root string, logger *slog.Logger, cb EventCallback) {
	checksums, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string)
	err = walkArtifacts(root, func(rel, abs string) {
		data, readErr := os.ReadFile(abs)
		if readErr != nil {
			return
		}
		disk[rel] = string(data)
	})
	if err != nil {
		logger.Warn("reconcile: walk failed", slog.String("error", err.Error()))
		return
	}

	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if delErr := db.DeleteArtifact(p); delErr == nil {
			removedTotal.Inc()
			logger.Debug("reconcile: removed stale", slog.String("path", p))
			if cb != nil {
				cb("deleted", p)
			}
		}
	}

	for p, data := range disk {
		prev, known := checksums[p]
		if known && prev == checksum.SumString(data) {
			continue
		}
		if idxErr := indexFile(db, p, []byte(data)); idxErr == nil {
			indexedTotal.Inc()
			logger.Debug("reconcile: indexed", slog.String("path", p))
			if cb != nil {
				kind := "updated"
				if !known {
					kind = "created"
				}
				cb(kind, p)
			}
		}
	}
	refreshGauge(db)
}

// indexNewDir indexes any artifacts already present in a newly created
// directory.
func indexNewDir(db *DB, root, dirPath string, logger *slog.Logger, cb EventCallback) {
	_ = walkArtifactsFrom(root, dirPath, func(rel, abs string) {
		data, readErr := os.ReadFile(abs)
		if readErr != nil {
			return
		}
		if idxErr := indexFile(db, rel, data); idxErr == nil {
			indexedTotal.Inc()
			logger.Debug("watcher: indexed from new dir", slog.String("path", rel))
			if cb != nil {
				cb("created", rel)
			}
		}
	})
	refreshGauge(db)
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
