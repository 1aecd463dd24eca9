package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const batchColumns = "id, folder_path, mount_path, status, total_files, processed_files, failed_files, jump_count, identifier_count, resolution_method, manual_reason, resolution_note, error_message, created_at, updated_at, completed_at"

func scanBatch(scanner interface{ Scan(dest ...any) error }) (*Batch, error) {
	var (
		id               int64
		folderPath       string
		mountPath        sql.NullString
		statusStr        string
		totalFiles       int
		processedFiles   int
		failedFiles      int
		jumpCount        int
		identifierCount  int
		resolutionMethod sql.NullString
		manualReason     sql.NullString
		resolutionNote   sql.NullString
		errorMessage     sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
		completedRaw     sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&folderPath,
		&mountPath,
		&statusStr,
		&totalFiles,
		&processedFiles,
		&failedFiles,
		&jumpCount,
		&identifierCount,
		&resolutionMethod,
		&manualReason,
		&resolutionNote,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	batch := &Batch{
		ID:               id,
		FolderPath:       folderPath,
		MountPath:        mountPath.String,
		Status:           BatchStatus(statusStr),
		TotalFiles:       totalFiles,
		ProcessedFiles:   processedFiles,
		FailedFiles:      failedFiles,
		JumpCount:        jumpCount,
		IdentifierCount:  identifierCount,
		ResolutionMethod: ResolutionMethod(resolutionMethod.String),
		ManualReason:     ManualReason(manualReason.String),
		ResolutionNote:   resolutionNote.String,
		ErrorMessage:     errorMessage.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		batch.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		batch.UpdatedAt = updated
	}
	batch.CompletedAt = parseOptionalTime(completedRaw)
	return batch, nil
}

// NewBatch inserts a batch for a footage folder. If a batch already exists
// for the folder it is reset instead: analysis results are discarded and the
// batch returns to pending so a re-run starts clean.
func (s *Store) NewBatch(ctx context.Context, folderPath, mountPath string) (*Batch, error) {
	existing, err := s.GetBatchByFolder(ctx, folderPath)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := s.ResetBatch(ctx, existing.ID); err != nil {
			return nil, err
		}
		return s.GetBatchByID(ctx, existing.ID)
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO batches (folder_path, mount_path, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)`,
		folderPath,
		nullableString(mountPath),
		BatchPending,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert batch: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetBatchByID(ctx, id)
}

// GetBatchByID fetches a batch by identifier. A missing batch yields nil.
func (s *Store) GetBatchByID(ctx context.Context, id int64) (*Batch, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+batchColumns+` FROM batches WHERE id = ?`, id)
	batch, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return batch, nil
}

// GetBatchByFolder fetches a batch by its folder path.
func (s *Store) GetBatchByFolder(ctx context.Context, folderPath string) (*Batch, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+batchColumns+` FROM batches WHERE folder_path = ?`,
		folderPath,
	)
	batch, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get batch by folder: %w", err)
	}
	return batch, nil
}

// ListBatches returns batches in the given statuses, newest first. With no
// statuses it returns every batch.
func (s *Store) ListBatches(ctx context.Context, statuses ...BatchStatus) ([]*Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY id DESC`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var batches []*Batch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		batches = append(batches, batch)
	}
	return batches, rows.Err()
}

// UpdateBatch persists changes to an existing batch.
func (s *Store) UpdateBatch(ctx context.Context, batch *Batch) error {
	if batch == nil {
		return errors.New("batch is nil")
	}
	batch.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE batches
         SET folder_path = ?, mount_path = ?, status = ?, total_files = ?,
             processed_files = ?, failed_files = ?, jump_count = ?,
             identifier_count = ?, resolution_method = ?, manual_reason = ?,
             resolution_note = ?, error_message = ?, updated_at = ?, completed_at = ?
         WHERE id = ?`,
		batch.FolderPath,
		nullableString(batch.MountPath),
		batch.Status,
		batch.TotalFiles,
		batch.ProcessedFiles,
		batch.FailedFiles,
		batch.JumpCount,
		batch.IdentifierCount,
		nullableString(string(batch.ResolutionMethod)),
		nullableString(string(batch.ManualReason)),
		nullableString(batch.ResolutionNote),
		nullableString(batch.ErrorMessage),
		batch.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(batch.CompletedAt),
		batch.ID,
	); err != nil {
		return fmt.Errorf("update batch: %w", err)
	}
	return nil
}

// IncrementProcessed bumps a batch's processed counter, also counting the
// file as failed when failed is true.
func (s *Store) IncrementProcessed(ctx context.Context, batchID int64, failed bool) error {
	failedDelta := 0
	if failed {
		failedDelta = 1
	}
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE batches
         SET processed_files = processed_files + 1,
             failed_files = failed_files + ?,
             updated_at = ?
         WHERE id = ?`,
		failedDelta,
		time.Now().UTC().Format(time.RFC3339Nano),
		batchID,
	); err != nil {
		return fmt.Errorf("increment processed: %w", err)
	}
	return nil
}

// ResetBatch discards all analysis state for a batch: files and segments are
// deleted, counters are zeroed, and the batch returns to pending.
func (s *Store) ResetBatch(ctx context.Context, batchID int64) error {
	ctx = ensureContext(ctx)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM segments WHERE file_id IN (SELECT id FROM files WHERE batch_id = ?)`, batchID); err != nil {
		return fmt.Errorf("delete segments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE batch_id = ?`, batchID); err != nil {
		return fmt.Errorf("delete files: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE batches
         SET status = ?, total_files = 0, processed_files = 0, failed_files = 0,
             jump_count = 0, identifier_count = 0, resolution_method = NULL,
             manual_reason = NULL, resolution_note = NULL, error_message = NULL,
             completed_at = NULL, updated_at = ?
         WHERE id = ?`,
		BatchPending,
		time.Now().UTC().Format(time.RFC3339Nano),
		batchID,
	); err != nil {
		return fmt.Errorf("reset batch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reset: %w", err)
	}
	return nil
}
