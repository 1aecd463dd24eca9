// Package watcher triggers analysis automatically: a filesystem watcher on
// the inbox root and a udev monitor for removable camera media.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"skysort/internal/logging"
)

// FolderHandler is invoked once a new inbox folder has settled.
type FolderHandler func(ctx context.Context, folderPath string)

type pendingFolder struct {
	size      int64
	files     int
	lastGrew  time.Time
	firstSeen time.Time
}

// FolderWatcher observes the inbox root for newly created directories and
// hands each one to the handler after its contents stop changing. Card
// offloads copy files for a while, so a folder only counts as ready once its
// total size has held still for the settle interval.
type FolderWatcher struct {
	root    string
	settle  time.Duration
	handler FolderHandler
	logger  *slog.Logger

	tick time.Duration

	mu      sync.Mutex
	pending map[string]*pendingFolder
}

func NewFolderWatcher(root string, settle time.Duration, handler FolderHandler, logger *slog.Logger) *FolderWatcher {
	if settle <= 0 {
		settle = 5 * time.Second
	}
	return &FolderWatcher{
		root:    root,
		settle:  settle,
		handler: handler,
		logger:  logging.NewComponentLogger(logger, "folder-watcher"),
		tick:    time.Second,
		pending: make(map[string]*pendingFolder),
	}
}

// Start blocks until ctx is canceled, dispatching settled folders as they
// appear. Folders already present under the root when Start is called are
// picked up as well, so a daemon restart does not strand an offload.
func (w *FolderWatcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.root); err != nil {
		return err
	}
	w.trackExisting()

	w.logger.Info("folder watcher started", logging.String("root", w.root))

	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("folder watcher stopping")
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("fsnotify error", logging.Error(err))
		case <-ticker.C:
			w.dispatchSettled(ctx)
		}
	}
}

func (w *FolderWatcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) {
		return
	}
	if filepath.Dir(event.Name) != w.root {
		return
	}
	info, err := os.Stat(event.Name)
	if err != nil || !info.IsDir() {
		return
	}
	w.track(event.Name)
}

func (w *FolderWatcher) trackExisting() {
	entries, err := os.ReadDir(w.root)
	if err != nil {
		w.logger.Warn("inbox scan failed", logging.Error(err))
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			w.track(filepath.Join(w.root, entry.Name()))
		}
	}
}

func (w *FolderWatcher) track(path string) {
	size, files := folderFootprint(path)
	now := time.Now()
	w.mu.Lock()
	if _, exists := w.pending[path]; !exists {
		w.pending[path] = &pendingFolder{size: size, files: files, lastGrew: now, firstSeen: now}
		w.logger.Info("new folder detected, waiting for settle", logging.String("path", path))
	}
	w.mu.Unlock()
}

// dispatchSettled re-measures every pending folder and fires the handler for
// those that have stopped changing.
func (w *FolderWatcher) dispatchSettled(ctx context.Context) {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for path := range w.pending {
		paths = append(paths, path)
	}
	w.mu.Unlock()

	now := time.Now()
	for _, path := range paths {
		size, files := folderFootprint(path)
		if size < 0 {
			// Folder vanished before it settled.
			w.mu.Lock()
			delete(w.pending, path)
			w.mu.Unlock()
			continue
		}

		w.mu.Lock()
		state := w.pending[path]
		if state == nil {
			w.mu.Unlock()
			continue
		}
		if size != state.size || files != state.files {
			state.size = size
			state.files = files
			state.lastGrew = now
			w.mu.Unlock()
			continue
		}
		ready := now.Sub(state.lastGrew) >= w.settle
		if ready {
			delete(w.pending, path)
		}
		w.mu.Unlock()

		if ready {
			w.logger.Info("folder settled, dispatching",
				logging.String("path", path),
				logging.Int("files", files))
			w.handler(ctx, path)
		}
	}
}

// folderFootprint returns the cumulative size and file count under path, or
// (-1, 0) when the folder cannot be read.
func folderFootprint(path string) (int64, int) {
	var size int64
	var files int
	err := filepath.WalkDir(path, func(_ string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		size += info.Size()
		files++
		return nil
	})
	if err != nil {
		return -1, 0
	}
	return size, files
}
