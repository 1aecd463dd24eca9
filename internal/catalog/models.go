package catalog

import "time"

// BatchStatus represents the lifecycle of an imported footage folder.
type BatchStatus string

const (
	BatchPending     BatchStatus = "pending"
	BatchAnalyzing   BatchStatus = "analyzing"
	BatchResolved    BatchStatus = "resolved"
	BatchNeedsManual BatchStatus = "needs_manual"
	BatchImported    BatchStatus = "imported"
	BatchFailed      BatchStatus = "failed"
)

// ResolutionMethod records how a batch's files were assigned to jumps.
type ResolutionMethod string

const (
	ResolutionAutoSingle ResolutionMethod = "auto_single"
	ResolutionAutoMulti  ResolutionMethod = "auto_multi"
	ResolutionManual     ResolutionMethod = "manual"
)

// ManualReason explains why automatic resolution was not possible.
type ManualReason string

const (
	ReasonMissingMarker ManualReason = "missing_qr"
	ReasonAmbiguous     ManualReason = "ambiguous"
)

// Batch is one folder of offloaded footage moving through the pipeline.
type Batch struct {
	ID               int64
	FolderPath       string
	MountPath        string
	Status           BatchStatus
	TotalFiles       int
	ProcessedFiles   int
	FailedFiles      int
	JumpCount        int
	IdentifierCount  int
	ResolutionMethod ResolutionMethod
	ManualReason     ManualReason
	ResolutionNote   string
	ErrorMessage     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CompletedAt      *time.Time
}

// FileStatus represents the lifecycle of a single video file.
type FileStatus string

const (
	FilePending   FileStatus = "pending"
	FileAnalyzing FileStatus = "analyzing"
	FileAnalyzed  FileStatus = "analyzed"
	FileFailed    FileStatus = "failed"
	FileImported  FileStatus = "imported"
)

// File is one video file inside a batch.
type File struct {
	ID              int64
	BatchID         int64
	Path            string
	Filename        string
	SizeBytes       int64
	DurationSeconds float64
	Width           int
	Height          int
	Codec           string
	FPS             float64
	RecordedAt      *time.Time
	Status          FileStatus
	// DominantCategory is the file's overall activity label; Confidence is
	// the mean classifier confidence over the sampled frames.
	DominantCategory string
	Confidence       float64
	// WorkloadID is the jump identifier assigned during resolution.
	WorkloadID string
	// MarkerWorkloadID is the identifier decoded from an on-screen code in
	// this file, if any. MarkerEndSeconds bounds the code segment.
	MarkerWorkloadID string
	MarkerEndSeconds float64
	ErrorMessage     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	AnalyzedAt       *time.Time
}

// Segment is a contiguous span of a file sharing one activity category.
type Segment struct {
	ID           int64
	FileID       int64
	Sequence     int
	Category     string
	StartSeconds float64
	EndSeconds   float64
	Confidence   float64
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 {
	return s.EndSeconds - s.StartSeconds
}

// WorkloadStatus represents the lifecycle of a booked jump.
type WorkloadStatus string

const (
	WorkloadPending  WorkloadStatus = "pending"
	WorkloadImported WorkloadStatus = "imported"
)

// Workload is a booked jump that footage can be attributed to.
type Workload struct {
	ID         string
	ClientName string
	Status     WorkloadStatus
	CreatedAt  time.Time
	ImportedAt *time.Time
}

// SortTime returns the timestamp used to order files chronologically:
// the recording time when known, otherwise the catalog insertion time.
func (f *File) SortTime() time.Time {
	if f.RecordedAt != nil {
		return *f.RecordedAt
	}
	return f.CreatedAt
}
