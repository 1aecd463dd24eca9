// Package resolver assigns analyzed files to jump workloads and reorganizes
// them into per-client folders.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"skysort/internal/catalog"
	"skysort/internal/fsutil"
	"skysort/internal/logging"
	"skysort/internal/segment"
	"skysort/internal/services"
)

// Mapping assigns a group of files to one workload.
type Mapping struct {
	WorkloadID string
	Files      []*catalog.File
	// FolderName is filled in during Execute.
	FolderName string
}

// Result is the outcome of the resolution decision.
type Result struct {
	Status    catalog.BatchStatus
	Method    catalog.ResolutionMethod
	Reason    catalog.ManualReason
	Message   string
	Mappings  []Mapping
	MarkerIDs []string
	JumpCount int
}

// Resolver decides workload assignment and carries out the file moves.
type Resolver struct {
	store      *catalog.Store
	libraryDir string
	logger     *slog.Logger
}

// New builds a resolver that moves resolved files under libraryDir.
func New(store *catalog.Store, libraryDir string, logger *slog.Logger) *Resolver {
	return &Resolver{
		store:      store,
		libraryDir: libraryDir,
		logger:     logging.NewComponentLogger(logger, "resolver"),
	}
}

// Resolve applies the decision table to a batch's analyzed files. With Q
// distinct decoded marker identifiers and J freefall runs:
//
//	Q=1, J=1     -> resolved, auto_single
//	Q=J, Q>1     -> resolved, auto_multi
//	Q=0, J=1     -> needs_manual, missing marker
//	otherwise    -> needs_manual, ambiguous
func (r *Resolver) Resolve(files []*catalog.File) Result {
	markerIDs := distinctMarkerIDs(files)
	jumpCount := countFreefallRuns(files)
	markerCount := len(markerIDs)

	switch {
	case markerCount == 1 && jumpCount == 1:
		return Result{
			Status:    catalog.BatchResolved,
			Method:    catalog.ResolutionAutoSingle,
			Mappings:  []Mapping{{WorkloadID: markerIDs[0], Files: files}},
			MarkerIDs: markerIDs,
			JumpCount: jumpCount,
		}
	case markerCount == jumpCount && markerCount > 1:
		return Result{
			Status:    catalog.BatchResolved,
			Method:    catalog.ResolutionAutoMulti,
			Mappings:  mapMarkersToRuns(files),
			MarkerIDs: markerIDs,
			JumpCount: jumpCount,
		}
	case markerCount == 0 && jumpCount == 1:
		return Result{
			Status:    catalog.BatchNeedsManual,
			Reason:    catalog.ReasonMissingMarker,
			Message:   "single jump detected but no identity marker found; manual workload assignment needed",
			JumpCount: jumpCount,
		}
	default:
		return Result{
			Status:    catalog.BatchNeedsManual,
			Reason:    catalog.ReasonAmbiguous,
			Message:   fmt.Sprintf("found %d identity markers but %d freefall runs; manual splitting required", markerCount, jumpCount),
			MarkerIDs: markerIDs,
			JumpCount: jumpCount,
		}
	}
}

// distinctMarkerIDs collects decoded workload identifiers in first-seen
// file order, so results do not depend on map iteration.
func distinctMarkerIDs(files []*catalog.File) []string {
	seen := make(map[string]struct{}, 2)
	var out []string
	for _, file := range files {
		id := file.MarkerWorkloadID
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// countFreefallRuns counts maximal consecutive groups of freefall-dominant
// files in capture order. A run ends when a canopy- or ground_after-dominant
// file follows it.
func countFreefallRuns(files []*catalog.File) int {
	sorted := sortByCapture(files)

	runs := 0
	inRun := false
	for _, file := range sorted {
		switch file.DominantCategory {
		case segment.CategoryFreefall:
			if !inRun {
				runs++
				inRun = true
			}
		case segment.CategoryCanopy, segment.CategoryGroundAfter:
			inRun = false
		}
	}
	return runs
}

// mapMarkersToRuns partitions files in capture order: each decoded marker
// claims its own file and every following file until the next marker.
func mapMarkersToRuns(files []*catalog.File) []Mapping {
	sorted := sortByCapture(files)

	var mappings []Mapping
	currentID := ""
	var group []*catalog.File

	flush := func() {
		if currentID != "" && len(group) > 0 {
			mappings = append(mappings, Mapping{WorkloadID: currentID, Files: group})
		}
	}

	for _, file := range sorted {
		if file.MarkerWorkloadID != "" && file.MarkerWorkloadID != currentID {
			flush()
			currentID = file.MarkerWorkloadID
			group = []*catalog.File{file}
			continue
		}
		group = append(group, file)
	}
	flush()
	return mappings
}

func sortByCapture(files []*catalog.File) []*catalog.File {
	sorted := append([]*catalog.File(nil), files...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SortTime().Before(sorted[j].SortTime())
	})
	return sorted
}

// FolderName returns the library folder for a workload: the sanitized
// client name joined with the identifier, or the bare identifier when no
// client is on record.
func (r *Resolver) FolderName(ctx context.Context, workloadID string) string {
	if r.store != nil {
		workload, err := r.store.GetWorkload(ctx, workloadID)
		if err != nil {
			r.logger.Warn("workload lookup failed, using bare identifier",
				logging.String(logging.FieldWorkloadID, workloadID),
				logging.Error(err))
		} else if workload != nil {
			if sanitized := fsutil.SanitizeName(workload.ClientName); sanitized != "" {
				return sanitized + "_" + workloadID
			}
		}
	}
	return workloadID
}

// Execute carries out a resolved result: every mapping's files move into the
// workload's library folder, file records are updated, and workloads are
// marked imported. The first failure aborts; files already moved stay moved
// so a re-run can pick up where it stopped. The returned name is the first
// created folder.
func (r *Resolver) Execute(ctx context.Context, batch *catalog.Batch, result *Result) (string, error) {
	if result.Status != catalog.BatchResolved {
		return "", services.Wrap(services.ErrValidation, "resolve", "execute", "batch is not resolved", nil)
	}

	firstFolder := ""
	for i := range result.Mappings {
		mapping := &result.Mappings[i]
		folderName, err := r.moveMapping(ctx, mapping)
		if err != nil {
			return "", err
		}
		mapping.FolderName = folderName
		if firstFolder == "" {
			firstFolder = folderName
		}
	}

	if batch != nil {
		if err := fsutil.RemoveDirIfEmpty(batch.FolderPath); err != nil {
			r.logger.Warn("source folder cleanup failed",
				logging.String("path", batch.FolderPath),
				logging.Error(err))
		}
	}
	return firstFolder, nil
}

func (r *Resolver) moveMapping(ctx context.Context, mapping *Mapping) (string, error) {
	folderName := r.FolderName(ctx, mapping.WorkloadID)
	targetDir := filepath.Join(r.libraryDir, folderName)

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrTransient, "resolve", "create folder", targetDir, err)
	}
	if err := os.Chmod(targetDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrTransient, "resolve", "chmod folder", targetDir, err)
	}

	for _, file := range mapping.Files {
		targetPath := filepath.Join(targetDir, file.Filename)
		if err := fsutil.MoveFile(file.Path, targetPath); err != nil {
			return "", services.Wrap(services.ErrTransient, "resolve", "move file", file.Filename, err)
		}
		if err := os.Chmod(targetPath, 0o644); err != nil {
			return "", services.Wrap(services.ErrTransient, "resolve", "chmod file", file.Filename, err)
		}

		file.Path = targetPath
		file.WorkloadID = mapping.WorkloadID
		file.Status = catalog.FileImported
		if err := r.store.UpdateFile(ctx, file); err != nil {
			return "", services.Wrap(services.ErrTransient, "resolve", "update file record", file.Filename, err)
		}
		r.logger.Info("file imported",
			logging.String(logging.FieldFile, file.Filename),
			logging.String(logging.FieldWorkloadID, mapping.WorkloadID),
			logging.String("folder", folderName))
	}

	if _, err := r.store.UpsertWorkload(ctx, mapping.WorkloadID, ""); err != nil {
		return "", services.Wrap(services.ErrTransient, "resolve", "record workload", mapping.WorkloadID, err)
	}
	if err := r.store.MarkWorkloadImported(ctx, mapping.WorkloadID); err != nil {
		return "", services.Wrap(services.ErrTransient, "resolve", "mark workload imported", mapping.WorkloadID, err)
	}
	return folderName, nil
}

// CompleteBatch finalizes a batch after resolution, persisting the decision
// and, for resolved batches, the import completion.
func (r *Resolver) CompleteBatch(ctx context.Context, batch *catalog.Batch, result *Result, folderName string) error {
	batch.Status = result.Status
	batch.ResolutionMethod = result.Method
	batch.ManualReason = result.Reason
	batch.ResolutionNote = result.Message
	batch.JumpCount = result.JumpCount
	batch.IdentifierCount = len(result.MarkerIDs)
	if result.Status == catalog.BatchResolved {
		batch.Status = catalog.BatchImported
		if folderName != "" {
			batch.ResolutionNote = folderName
		}
		now := time.Now().UTC()
		batch.CompletedAt = &now
	}
	return r.store.UpdateBatch(ctx, batch)
}
