package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ashita-ai/kotae/internal/model"
)

// SaveResult archives a terminal run result. Saving the same workflow ID
// again overwrites the previous row, so activity retries stay idempotent.
func (s *Store) SaveResult(ctx context.Context, workflowID string, result model.RunResult) error {
	if workflowID == "" {
		return errors.New("storage: workflow id required")
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (workflow_id, success, files_found, files_processed, token_count, model, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (workflow_id) DO UPDATE SET
			success = excluded.success,
			files_found = excluded.files_found,
			files_processed = excluded.files_processed,
			token_count = excluded.token_count,
			model = excluded.model,
			error = excluded.error`,
		workflowID, result.Success, result.FilesFound, result.FilesProcessed,
		result.TokenCount, result.Model, result.Error, now,
	)
	if err != nil {
		return fmt.Errorf("storage: save run %s: %w", workflowID, err)
	}

	s.logger.Debug("run archived", "workflow_id", workflowID, "success", result.Success)
	return nil
}

// GetRun returns one archived run, or ErrNotFound.
func (s *Store) GetRun(ctx context.Context, workflowID string) (model.RunRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT workflow_id, success, files_found, files_processed, token_count, model, error, created_at
		 FROM runs WHERE workflow_id = ?`, workflowID)

	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RunRecord{}, ErrNotFound
	}
	if err != nil {
		return model.RunRecord{}, fmt.Errorf("storage: get run %s: %w", workflowID, err)
	}
	return rec, nil
}

// ListRuns returns archived runs newest first, at most limit entries.
// limit <= 0 uses a default of 50.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT workflow_id, success, files_found, files_processed, token_count, model, error, created_at
		 FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: list runs: %w", err)
	}
	defer rows.Close()

	records := make([]model.RunRecord, 0, limit)
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan run: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: list runs: %w", err)
	}
	return records, nil
}

// DeleteRun removes one archived run. Deleting a missing run returns
// ErrNotFound.
func (s *Store) DeleteRun(ctx context.Context, workflowID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE workflow_id = ?`, workflowID)
	if err != nil {
		return fmt.Errorf("storage: delete run %s: %w", workflowID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage: delete run %s: %w", workflowID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (model.RunRecord, error) {
	var (
		rec     model.RunRecord
		created string
	)
	if err := row.Scan(&rec.WorkflowID, &rec.Success, &rec.FilesFound, &rec.FilesProcessed,
		&rec.TokenCount, &rec.Model, &rec.Error, &created); err != nil {
		return model.RunRecord{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return model.RunRecord{}, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	rec.CreatedAt = ts
	return rec, nil
}
