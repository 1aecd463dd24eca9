package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UpsertWorkload records a jump workload, updating the client name when the
// identifier is already known.
func (s *Store) UpsertWorkload(ctx context.Context, id, clientName string) (*Workload, error) {
	if id == "" {
		return nil, errors.New("workload id is empty")
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO workloads (id, client_name, status, created_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             client_name = CASE WHEN excluded.client_name IS NOT NULL THEN excluded.client_name ELSE workloads.client_name END`,
		id,
		nullableString(clientName),
		WorkloadPending,
		timestamp,
	); err != nil {
		return nil, fmt.Errorf("upsert workload: %w", err)
	}
	return s.GetWorkload(ctx, id)
}

// GetWorkload fetches a workload by identifier. A missing workload yields nil.
func (s *Store) GetWorkload(ctx context.Context, id string) (*Workload, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT id, client_name, status, created_at, imported_at FROM workloads WHERE id = ?`,
		id,
	)
	workload, err := scanWorkload(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get workload: %w", err)
	}
	return workload, nil
}

// MarkWorkloadImported transitions a workload to imported with a timestamp.
func (s *Store) MarkWorkloadImported(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE workloads SET status = ?, imported_at = ? WHERE id = ?`,
		WorkloadImported,
		now,
		id,
	); err != nil {
		return fmt.Errorf("mark workload imported: %w", err)
	}
	return nil
}

func scanWorkload(scanner interface{ Scan(dest ...any) error }) (*Workload, error) {
	var (
		id          string
		clientName  sql.NullString
		statusStr   string
		createdRaw  sql.NullString
		importedRaw sql.NullString
	)
	if err := scanner.Scan(&id, &clientName, &statusStr, &createdRaw, &importedRaw); err != nil {
		return nil, err
	}
	workload := &Workload{
		ID:         id,
		ClientName: clientName.String,
		Status:     WorkloadStatus(statusStr),
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		workload.CreatedAt = created
	}
	workload.ImportedAt = parseOptionalTime(importedRaw)
	return workload, nil
}
