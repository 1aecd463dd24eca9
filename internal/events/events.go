// Package events carries typed progress events from the analyzer to
// interested listeners (CLI progress, notifications, logs).
package events

import "skysort/internal/catalog"

// Event is the closed set of progress events the analyzer emits. The
// unexported method keeps the set closed to this package.
type Event interface {
	Kind() string
	sealed()
}

// BatchStarted fires once analysis of a folder begins, after the file scan.
type BatchStarted struct {
	BatchID    int64
	FolderPath string
	TotalFiles int
}

// FileAnalyzed fires for every file that completes the per-file pipeline.
type FileAnalyzed struct {
	BatchID      int64
	Filename     string
	Dominant     string
	SegmentCount int
	WorkloadID   string
}

// FileFailed fires when a file's pipeline fails; the batch keeps going.
type FileFailed struct {
	BatchID  int64
	Filename string
	Err      error
}

// BatchCompleted fires after resolution, whatever the outcome.
type BatchCompleted struct {
	BatchID     int64
	Status      catalog.BatchStatus
	Resolution  catalog.ResolutionMethod
	Total       int
	Analyzed    int
	Failed      int
	MarkerCount int
	JumpCount   int
	FolderName  string
}

// AnalysisError fires when a batch-level precondition fails before any
// per-file work happens.
type AnalysisError struct {
	BatchID    int64
	FolderPath string
	Err        error
}

func (BatchStarted) Kind() string   { return "batch_started" }
func (FileAnalyzed) Kind() string   { return "file_analyzed" }
func (FileFailed) Kind() string     { return "file_failed" }
func (BatchCompleted) Kind() string { return "batch_completed" }
func (AnalysisError) Kind() string  { return "analysis_error" }

func (BatchStarted) sealed()   {}
func (FileAnalyzed) sealed()   {}
func (FileFailed) sealed()     {}
func (BatchCompleted) sealed() {}
func (AnalysisError) sealed()  {}
