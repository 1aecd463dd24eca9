// Package analyzer orchestrates analysis of an import folder: a bounded
// worker pool runs the per-file pipeline, then jump resolution assigns files
// to workloads and reorganizes them on disk.
package analyzer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"skysort/internal/catalog"
	"skysort/internal/classifier"
	"skysort/internal/config"
	"skysort/internal/events"
	"skysort/internal/fsutil"
	"skysort/internal/logging"
	"skysort/internal/resolver"
	"skysort/internal/segment"
	"skysort/internal/services"
)

var videoExtensions = map[string]struct{}{
	".mp4": {},
	".mov": {},
	".avi": {},
	".mkv": {},
}

// Classifier is the slice of the inference client the analyzer needs.
type Classifier interface {
	EnsureLoaded(ctx context.Context) error
	Classify(ctx context.Context, framePaths []string) ([]classifier.Prediction, error)
}

// Analyzer runs folder analysis end to end.
type Analyzer struct {
	cfg        *config.Config
	store      *catalog.Store
	classifier Classifier
	probe      MediaProbe
	decoder    MarkerDecoder
	hub        *events.Hub
	resolver   *resolver.Resolver
	detector   *segment.Detector
	logger     *slog.Logger
}

func New(cfg *config.Config, store *catalog.Store, cls Classifier, hub *events.Hub, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		cfg:        cfg,
		store:      store,
		classifier: cls,
		probe:      newExecProbe(cfg),
		decoder:    newExecDecoder(cfg),
		hub:        hub,
		resolver:   resolver.New(store, cfg.Paths.LibraryDir, logger),
		detector: segment.NewDetector(segment.Config{
			SmoothingWindow:   cfg.Analyzer.SmoothingWindow,
			MinSegmentSeconds: cfg.Analyzer.MinSegmentSeconds,
		}),
		logger: logging.NewComponentLogger(logger, "analyzer"),
	}
}

// AnalyzeFolder analyzes one import folder and resolves it. The returned
// batch reflects the terminal state; the error covers batch-level failures
// only, individual file failures are recorded on their rows.
func (a *Analyzer) AnalyzeFolder(ctx context.Context, folderPath string) (*catalog.Batch, error) {
	return a.analyze(ctx, folderPath, "")
}

// AnalyzeMountedFolder analyzes a folder that lives on removable media,
// recording the mount point on the batch.
func (a *Analyzer) AnalyzeMountedFolder(ctx context.Context, folderPath, mountPath string) (*catalog.Batch, error) {
	return a.analyze(ctx, folderPath, mountPath)
}

func (a *Analyzer) analyze(ctx context.Context, folderPath, mountPath string) (*catalog.Batch, error) {
	folderPath = filepath.Clean(folderPath)
	logger := a.logger.With(logging.String("folder", folderPath))

	info, err := os.Stat(folderPath)
	if err != nil || !info.IsDir() {
		a.publish(events.AnalysisError{FolderPath: folderPath, Err: err})
		return nil, services.Wrap(services.ErrValidation, "analyze", "open folder", folderPath, err)
	}

	// The lock is held for the entire run so moves serialize against a
	// re-analysis of the same folder. It lives under the data dir, not the
	// folder itself, so an imported folder can be removed once empty.
	lockPath := a.lockPath(folderPath)
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, services.Wrap(services.ErrTransient, "analyze", "create lock dir", lockPath, err)
	}
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "analyze", "acquire folder lock", lockPath, err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrValidation, "analyze", "acquire folder lock",
			"folder is already being analyzed", nil)
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(lockPath)
	}()

	a.preflightFreeSpace(logger)

	batch, err := a.store.NewBatch(ctx, folderPath, mountPath)
	if err != nil {
		return nil, err
	}
	ctx = services.WithBatchID(ctx, batch.ID)
	logger = logger.With(logging.Int64(logging.FieldBatchID, batch.ID))

	files, err := listVideoFiles(folderPath)
	if err != nil {
		return a.failBatch(ctx, batch, err)
	}
	if len(files) == 0 {
		return a.failBatch(ctx, batch,
			services.Wrap(services.ErrValidation, "analyze", "scan folder", "no video files found in folder", nil))
	}

	batch.Status = catalog.BatchAnalyzing
	batch.TotalFiles = len(files)
	if err := a.store.UpdateBatch(ctx, batch); err != nil {
		return nil, err
	}
	a.publish(events.BatchStarted{BatchID: batch.ID, FolderPath: folderPath, TotalFiles: len(files)})
	logger.Info("batch started", logging.Int("files", len(files)))

	records := make([]*catalog.File, 0, len(files))
	for _, path := range files {
		record, err := a.store.AddFile(ctx, &catalog.File{
			BatchID:  batch.ID,
			Path:     path,
			Filename: filepath.Base(path),
		})
		if err != nil {
			return a.failBatch(ctx, batch, err)
		}
		records = append(records, record)
	}

	if err := a.classifier.EnsureLoaded(ctx); err != nil {
		return a.failBatch(ctx, batch, err)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(a.cfg.Analyzer.Workers)
	for _, record := range records {
		record := record
		group.Go(func() error {
			a.analyzeOne(groupCtx, batch, record)
			return nil
		})
	}
	_ = group.Wait()

	return a.resolveBatch(ctx, batch, logger)
}

// analyzeOne runs the per-file pipeline; failures land on the file row and
// never abort the batch.
func (a *Analyzer) analyzeOne(ctx context.Context, batch *catalog.Batch, file *catalog.File) {
	ctx = services.WithFile(ctx, file.Filename)
	logger := logging.WithContext(ctx, a.logger)

	segmentCount, err := a.analyzeFile(ctx, file)
	if err != nil {
		file.Status = catalog.FileFailed
		file.ErrorMessage = err.Error()
		if updateErr := a.store.UpdateFile(ctx, file); updateErr != nil {
			logger.Error("failed to record file error", logging.Error(updateErr))
		}
		logger.Warn("file analysis failed", logging.Error(err))
	}
	if incErr := a.store.IncrementProcessed(ctx, batch.ID, err != nil); incErr != nil {
		logger.Error("failed to update batch counters", logging.Error(incErr))
	}

	if err != nil {
		a.publish(events.FileFailed{BatchID: batch.ID, Filename: file.Filename, Err: err})
		return
	}
	a.publish(events.FileAnalyzed{
		BatchID:      batch.ID,
		Filename:     file.Filename,
		Dominant:     file.DominantCategory,
		SegmentCount: segmentCount,
		WorkloadID:   file.MarkerWorkloadID,
	})
	logger.Info("file analyzed",
		logging.String(logging.FieldCategory, file.DominantCategory),
		logging.String(logging.FieldWorkloadID, file.MarkerWorkloadID))
}

// resolveBatch runs after the join barrier: re-read the files, apply the
// decision table, and execute moves for resolved batches.
func (a *Analyzer) resolveBatch(ctx context.Context, batch *catalog.Batch, logger *slog.Logger) (*catalog.Batch, error) {
	files, err := a.store.ListFiles(ctx, batch.ID)
	if err != nil {
		return a.failBatch(ctx, batch, err)
	}

	result := a.resolver.Resolve(files)
	folderName := ""
	if result.Status == catalog.BatchResolved {
		folderName, err = a.resolver.Execute(ctx, batch, &result)
		if err != nil {
			// Files already moved stay moved; the message says so.
			moveErr := fmt.Errorf("import aborted, already-moved files stay in the library: %w", err)
			return a.failBatch(ctx, batch, moveErr)
		}
	}

	if err := a.resolver.CompleteBatch(ctx, batch, &result, folderName); err != nil {
		return nil, err
	}

	refreshed, err := a.store.GetBatchByID(ctx, batch.ID)
	if err != nil {
		return nil, err
	}
	a.publish(events.BatchCompleted{
		BatchID:     refreshed.ID,
		Status:      refreshed.Status,
		Resolution:  refreshed.ResolutionMethod,
		Total:       refreshed.TotalFiles,
		Analyzed:    refreshed.ProcessedFiles - refreshed.FailedFiles,
		Failed:      refreshed.FailedFiles,
		MarkerCount: refreshed.IdentifierCount,
		JumpCount:   refreshed.JumpCount,
		FolderName:  folderName,
	})
	logger.Info("batch completed",
		logging.String("status", string(refreshed.Status)),
		logging.String("resolution", string(refreshed.ResolutionMethod)),
		logging.String("folder_name", folderName))
	return refreshed, nil
}

func (a *Analyzer) failBatch(ctx context.Context, batch *catalog.Batch, cause error) (*catalog.Batch, error) {
	batch.Status = catalog.BatchFailed
	batch.ErrorMessage = cause.Error()
	if err := a.store.UpdateBatch(ctx, batch); err != nil {
		a.logger.Error("failed to record batch error", logging.Error(err))
	}
	a.publish(events.AnalysisError{BatchID: batch.ID, FolderPath: batch.FolderPath, Err: cause})
	a.publish(events.BatchCompleted{
		BatchID: batch.ID,
		Status:  catalog.BatchFailed,
		Total:   batch.TotalFiles,
	})
	return batch, cause
}

func (a *Analyzer) preflightFreeSpace(logger *slog.Logger) {
	minBytes := uint64(a.cfg.Analyzer.MinFreeGiB) * 1 << 30
	if minBytes == 0 {
		return
	}
	free, err := fsutil.FreeSpace(a.cfg.Paths.LibraryDir)
	if err != nil {
		logger.Warn("free space check failed", logging.Error(err))
		return
	}
	if free < minBytes {
		logger.Warn("library volume is low on space",
			logging.Int64("free_bytes", int64(free)),
			logging.Int("min_free_gib", a.cfg.Analyzer.MinFreeGiB),
			logging.String(logging.FieldErrorHint, "free up space before importing large batches"))
	}
}

func (a *Analyzer) publish(event events.Event) {
	if a.hub != nil {
		a.hub.Publish(event)
	}
}

// lockPath derives a per-folder lock file under the data dir. The hash keeps
// distinct folders with the same base name apart.
func (a *Analyzer) lockPath(folderPath string) string {
	sum := sha256.Sum256([]byte(folderPath))
	name := fmt.Sprintf("%s-%s.lock", fsutil.SanitizeName(filepath.Base(folderPath)), hex.EncodeToString(sum[:4]))
	return filepath.Join(a.cfg.Paths.DataDir, "locks", name)
}

// listVideoFiles enumerates video files under the folder, sorted by name.
// Camera sidecar files (`._*` metadata, `.lrv` proxies) are skipped.
func listVideoFiles(folderPath string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(folderPath, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		name := entry.Name()
		if strings.HasPrefix(name, "._") {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(name))
		if ext == ".lrv" {
			return nil
		}
		if _, ok := videoExtensions[ext]; ok {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "analyze", "scan folder", folderPath, err)
	}
	sort.Strings(files)
	return files, nil
}
