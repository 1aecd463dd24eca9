package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const fileColumns = "id, batch_id, path, filename, size_bytes, duration_seconds, width, height, codec, fps, recorded_at, status, dominant_category, confidence, workload_id, marker_workload_id, marker_end_seconds, error_message, created_at, updated_at, analyzed_at"

func scanFile(scanner interface{ Scan(dest ...any) error }) (*File, error) {
	var (
		id               int64
		batchID          int64
		path             string
		filename         string
		sizeBytes        int64
		duration         float64
		width            int
		height           int
		codec            sql.NullString
		fps              float64
		recordedRaw      sql.NullString
		statusStr        string
		dominantCategory sql.NullString
		confidence       float64
		workloadID       sql.NullString
		markerWorkload   sql.NullString
		markerEnd        float64
		errorMessage     sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
		analyzedRaw      sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&batchID,
		&path,
		&filename,
		&sizeBytes,
		&duration,
		&width,
		&height,
		&codec,
		&fps,
		&recordedRaw,
		&statusStr,
		&dominantCategory,
		&confidence,
		&workloadID,
		&markerWorkload,
		&markerEnd,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&analyzedRaw,
	); err != nil {
		return nil, err
	}

	file := &File{
		ID:               id,
		BatchID:          batchID,
		Path:             path,
		Filename:         filename,
		SizeBytes:        sizeBytes,
		DurationSeconds:  duration,
		Width:            width,
		Height:           height,
		Codec:            codec.String,
		FPS:              fps,
		Status:           FileStatus(statusStr),
		DominantCategory: dominantCategory.String,
		Confidence:       confidence,
		WorkloadID:       workloadID.String,
		MarkerWorkloadID: markerWorkload.String,
		MarkerEndSeconds: markerEnd,
		ErrorMessage:     errorMessage.String,
	}
	file.RecordedAt = parseOptionalTime(recordedRaw)
	if created, err := parseTimeString(createdRaw.String); err == nil {
		file.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		file.UpdatedAt = updated
	}
	file.AnalyzedAt = parseOptionalTime(analyzedRaw)
	return file, nil
}

// AddFile inserts a file into a batch and returns it with its identifier set.
func (s *Store) AddFile(ctx context.Context, file *File) (*File, error) {
	if file == nil {
		return nil, errors.New("file is nil")
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	status := file.Status
	if status == "" {
		status = FilePending
	}
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO files (
            batch_id, path, filename, size_bytes, duration_seconds, recorded_at,
            status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		file.BatchID,
		file.Path,
		file.Filename,
		file.SizeBytes,
		file.DurationSeconds,
		nullableTime(file.RecordedAt),
		status,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetFileByID(ctx, id)
}

// GetFileByID fetches a file by identifier. A missing file yields nil.
func (s *Store) GetFileByID(ctx context.Context, id int64) (*File, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+fileColumns+` FROM files WHERE id = ?`, id)
	file, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	return file, nil
}

// ListFiles returns a batch's files ordered by filename.
func (s *Store) ListFiles(ctx context.Context, batchID int64) ([]*File, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+fileColumns+` FROM files WHERE batch_id = ? ORDER BY filename`,
		batchID,
	)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var files []*File
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

// UpdateFile persists changes to an existing file.
func (s *Store) UpdateFile(ctx context.Context, file *File) error {
	if file == nil {
		return errors.New("file is nil")
	}
	file.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE files
         SET path = ?, filename = ?, size_bytes = ?, duration_seconds = ?,
             width = ?, height = ?, codec = ?, fps = ?,
             recorded_at = ?, status = ?, dominant_category = ?, confidence = ?,
             workload_id = ?, marker_workload_id = ?, marker_end_seconds = ?,
             error_message = ?, updated_at = ?, analyzed_at = ?
         WHERE id = ?`,
		file.Path,
		file.Filename,
		file.SizeBytes,
		file.DurationSeconds,
		file.Width,
		file.Height,
		nullableString(file.Codec),
		file.FPS,
		nullableTime(file.RecordedAt),
		file.Status,
		nullableString(file.DominantCategory),
		file.Confidence,
		nullableString(file.WorkloadID),
		nullableString(file.MarkerWorkloadID),
		file.MarkerEndSeconds,
		nullableString(file.ErrorMessage),
		file.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(file.AnalyzedAt),
		file.ID,
	); err != nil {
		return fmt.Errorf("update file: %w", err)
	}
	return nil
}

// ReplaceSegments swaps a file's segment rows for the provided set in one
// transaction. Sequence numbers are taken from slice order.
func (s *Store) ReplaceSegments(ctx context.Context, fileID int64, segments []Segment) error {
	ctx = ensureContext(ctx)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin segments tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM segments WHERE file_id = ?`, fileID); err != nil {
		return fmt.Errorf("delete segments: %w", err)
	}
	for i, segment := range segments {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO segments (file_id, sequence, category, start_seconds, end_seconds, confidence)
             VALUES (?, ?, ?, ?, ?, ?)`,
			fileID,
			i,
			segment.Category,
			segment.StartSeconds,
			segment.EndSeconds,
			segment.Confidence,
		); err != nil {
			return fmt.Errorf("insert segment %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit segments: %w", err)
	}
	return nil
}

// ListSegments returns a file's segments in sequence order.
func (s *Store) ListSegments(ctx context.Context, fileID int64) ([]Segment, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT id, file_id, sequence, category, start_seconds, end_seconds, confidence
         FROM segments WHERE file_id = ? ORDER BY sequence`,
		fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()

	var segments []Segment
	for rows.Next() {
		var segment Segment
		if err := rows.Scan(
			&segment.ID,
			&segment.FileID,
			&segment.Sequence,
			&segment.Category,
			&segment.StartSeconds,
			&segment.EndSeconds,
			&segment.Confidence,
		); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		segments = append(segments, segment)
	}
	return segments, rows.Err()
}
