package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"staybooking/internal/models"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertGeoSyncTask(ctx context.Context, ex execer, task *models.GeoSyncTask) error {
	query := `INSERT INTO geo_sync_queue (task_type, stay_id, payload, status, retry_count, last_error, created_at, next_retry_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if task.Status == "" {
		task.Status = models.TaskStatusPending
	}
	now := time.Now()
	result, err := ex.ExecContext(ctx, query,
		task.TaskType,
		task.StayID,
		task.Payload,
		task.Status,
		task.RetryCount,
		task.LastError,
		now,
		task.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create geo sync task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	task.ID = id
	task.CreatedAt = now
	return nil
}

// CreateGeoSyncTask enqueues a standalone task outside any stay write (stayctl geo reindex).
func (db *DB) CreateGeoSyncTask(ctx context.Context, task *models.GeoSyncTask) error {
	return insertGeoSyncTask(ctx, db, task)
}

const selectGeoSyncTask = `SELECT id, task_type, stay_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at FROM geo_sync_queue`

func (db *DB) queryGeoSyncTasks(ctx context.Context, query string, args ...any) ([]models.GeoSyncTask, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []models.GeoSyncTask
	for rows.Next() {
		var t models.GeoSyncTask
		err := rows.Scan(
			&t.ID, &t.TaskType, &t.StayID, &t.Payload, &t.Status, &t.RetryCount, &t.LastError, &t.CreatedAt, &t.ProcessedAt, &t.NextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan geo sync task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// GetPendingGeoSyncTasks returns pending tasks and retries whose backoff has elapsed, oldest first.
func (db *DB) GetPendingGeoSyncTasks(ctx context.Context, limit int) ([]models.GeoSyncTask, error) {
	tasks, err := db.queryGeoSyncTasks(ctx,
		selectGeoSyncTask+` WHERE status IN (?, ?) AND (next_retry_at IS NULL OR next_retry_at <= ?) ORDER BY id ASC LIMIT ?`,
		models.TaskStatusPending, models.TaskStatusRetry, time.Now(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending geo sync tasks: %w", err)
	}
	return tasks, nil
}

func (db *DB) GetFailedGeoSyncTasks(ctx context.Context) ([]models.GeoSyncTask, error) {
	tasks, err := db.queryGeoSyncTasks(ctx,
		selectGeoSyncTask+` WHERE status = ? ORDER BY id DESC`, models.TaskStatusFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to get failed geo sync tasks: %w", err)
	}
	return tasks, nil
}

func (db *DB) GetGeoSyncTask(ctx context.Context, id int64) (*models.GeoSyncTask, error) {
	tasks, err := db.queryGeoSyncTasks(ctx, selectGeoSyncTask+` WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get geo sync task: %w", err)
	}
	if len(tasks) == 0 {
		return nil, errors.New("geo sync task not found")
	}
	return &tasks[0], nil
}

func (db *DB) UpdateGeoSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var query string
	var args []any
	now := time.Now()

	var lastError *string
	if errMsg != "" {
		lastError = &errMsg
	}

	switch status {
	case models.TaskStatusRetry:
		query = `UPDATE geo_sync_queue SET status = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + 1 WHERE id = ?`
		args = []any{status, lastError, nextRetryAt, id}
	case models.TaskStatusCompleted, models.TaskStatusFailed:
		query = `UPDATE geo_sync_queue SET status = ?, last_error = ?, next_retry_at = ?, processed_at = ? WHERE id = ?`
		args = []any{status, lastError, nextRetryAt, &now, id}
	default:
		query = `UPDATE geo_sync_queue SET status = ?, last_error = ?, next_retry_at = ? WHERE id = ?`
		args = []any{status, lastError, nextRetryAt, id}
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update geo sync task status: %w", err)
	}
	return nil
}

// RequeueGeoSyncTask resets a task to pending with a fresh retry budget.
func (db *DB) RequeueGeoSyncTask(ctx context.Context, id int64) error {
	res, err := db.ExecContext(ctx,
		`UPDATE geo_sync_queue SET status = ?, retry_count = 0, last_error = NULL, next_retry_at = NULL, processed_at = NULL WHERE id = ?`,
		models.TaskStatusPending, id)
	if err != nil {
		return fmt.Errorf("failed to requeue geo sync task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New("geo sync task not found")
	}
	return nil
}
