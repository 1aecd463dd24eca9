// Package daemon coordinates the background services: the event hub bridge
// to notifications, the inbox folder watcher, and the removable-media
// monitor. A lock file enforces single-instance execution.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"skysort/internal/analyzer"
	"skysort/internal/catalog"
	"skysort/internal/config"
	"skysort/internal/events"
	"skysort/internal/logging"
	"skysort/internal/notifications"
	"skysort/internal/watcher"
)

type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *catalog.Store
	analyzer *analyzer.Analyzer
	hub      *events.Hub
	notifier notifications.Service

	lockPath string
	lock     *flock.Flock

	folderWatcher *watcher.FolderWatcher
	mediaMonitor  *watcher.MediaMonitor

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	MediaMonitor  bool
	DatabasePath  string
	LockFilePath  string
	WatchedFolder string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *catalog.Store, a *analyzer.Analyzer, hub *events.Hub, notifier notifications.Service, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || a == nil || hub == nil {
		return nil, errors.New("daemon requires config, store, analyzer, and hub")
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "skysortd.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		analyzer: a,
		hub:      hub,
		notifier: notifier,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.folderWatcher = watcher.NewFolderWatcher(cfg.Paths.InboxDir, cfg.SettleDuration(), d.handleFolder, logger)
	d.mediaMonitor = watcher.NewMediaMonitor(logger, cfg.MountPollDuration(), d.handleMedia)
	return d, nil
}

// Start acquires the daemon lock and launches the background services.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another skysort daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.bridgeEvents(runCtx)
	}()

	if d.cfg.Watcher.Enabled {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := d.folderWatcher.Start(runCtx); err != nil {
				d.logger.Warn("folder watcher failed", logging.Error(err))
			}
		}()
		if err := d.mediaMonitor.Start(runCtx); err != nil {
			d.logger.Warn("media monitor failed", logging.Error(err))
		}
	}

	logging.CleanupOldLogs(d.logger, d.cfg.Logging.RetentionDays, d.cfg.Paths.LogDir, "*.log", "skysort.log")

	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.String("inbox", d.cfg.Paths.InboxDir),
		logging.Bool("watcher", d.cfg.Watcher.Enabled))
	return nil
}

// Stop halts the background services and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
	}
	d.mediaMonitor.Stop()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("release lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Close stops the daemon and the event hub.
func (d *Daemon) Close() {
	d.Stop()
	d.hub.Close()
}

// Status reports runtime information.
func (d *Daemon) Status() Status {
	return Status{
		Running:       d.running.Load(),
		MediaMonitor:  d.mediaMonitor.Running(),
		DatabasePath:  d.cfg.DatabasePath(),
		LockFilePath:  d.lockPath,
		WatchedFolder: d.cfg.Paths.InboxDir,
	}
}

// handleFolder is invoked by the folder watcher once an inbox folder settles.
func (d *Daemon) handleFolder(ctx context.Context, folderPath string) {
	if _, err := d.analyzer.AnalyzeFolder(ctx, folderPath); err != nil {
		d.logger.Warn("folder analysis failed",
			logging.String("folder", folderPath),
			logging.Error(err))
	}
}

// handleMedia is invoked by the media monitor when camera media mounts. Each
// capture folder on the card is analyzed in place; resolved files move off
// the card into the library.
func (d *Daemon) handleMedia(ctx context.Context, mountPath string) {
	_ = d.notifier.Publish(ctx, notifications.EventMediaDetected, notifications.Payload{
		"mount": mountPath,
	})
	for _, folder := range watcher.CameraFolders(mountPath) {
		if _, err := d.analyzer.AnalyzeMountedFolder(ctx, folder, mountPath); err != nil {
			d.logger.Warn("media folder analysis failed",
				logging.String("folder", folder),
				logging.Error(err))
		}
	}
}
