// ABOUTME: SQL implementation of SyncRunRepository
// ABOUTME: Records one row per account sync cycle and prunes old rows

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"greader-sync/models"
)

// SQLSyncRunRepository implements SyncRunRepository for postgres and sqlite
type SQLSyncRunRepository struct {
	db         *sql.DB
	driverName string
	logger     *slog.Logger
}

// NewSQLSyncRunRepository creates a sync run repository
func NewSQLSyncRunRepository(db *sql.DB, driverName string, logger *slog.Logger) *SQLSyncRunRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLSyncRunRepository{db: db, driverName: driverName, logger: logger}
}

// Record stores a finished cycle; a zero ID is replaced by a new UUID
func (r *SQLSyncRunRepository) Record(ctx context.Context, run *models.SyncRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}

	_, err := r.db.ExecContext(ctx, rebind(r.driverName, `
		INSERT INTO greader_sync_runs (
			id, account_id, cycle_id, started_at, finished_at, global_fetch,
			feeds_total, feeds_failed, messages_saved, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		run.ID.String(), run.AccountID, run.CycleID, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.GlobalFetch,
		run.FeedsTotal, run.FeedsFailed, run.MessagesSaved, run.Status, run.Error)
	if err != nil {
		r.logger.Error("Failed to record sync run", "account_id", run.AccountID, "error", err)
		return fmt.Errorf("failed to record sync run: %w", err)
	}

	r.logger.Debug("Recorded sync run",
		"account_id", run.AccountID,
		"cycle_id", run.CycleID,
		"messages_saved", run.MessagesSaved)
	return nil
}

// ListRecent returns up to limit runs of accountID, newest first
func (r *SQLSyncRunRepository) ListRecent(ctx context.Context, accountID string, limit int) ([]*models.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, rebind(r.driverName, `
		SELECT id, account_id, cycle_id, started_at, finished_at, global_fetch,
			feeds_total, feeds_failed, messages_saved, status, error
		FROM greader_sync_runs
		WHERE account_id = ?
		ORDER BY started_at DESC
		LIMIT ?`), accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.SyncRun
	for rows.Next() {
		run := &models.SyncRun{}
		if err := rows.Scan(
			&run.ID, &run.AccountID, &run.CycleID, &run.StartedAt, &run.FinishedAt, &run.GlobalFetch,
			&run.FeedsTotal, &run.FeedsFailed, &run.MessagesSaved, &run.Status, &run.Error,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// CleanupStale deletes runs that started more than retentionDays ago
func (r *SQLSyncRunRepository) CleanupStale(ctx context.Context, retentionDays int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays).UTC()

	result, err := r.db.ExecContext(ctx, rebind(r.driverName,
		`DELETE FROM greader_sync_runs WHERE started_at < ?`), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup stale sync runs: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted sync runs: %w", err)
	}

	r.logger.Info("Sync run cleanup completed",
		"deleted_count", deleted,
		"retention_days", retentionDays)
	return int(deleted), nil
}
