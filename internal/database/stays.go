package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"staybooking/internal/models"
)

const selectStay = `SELECT id, host_id, name, description, address, guest_number, latitude, longitude, created_at, updated_at FROM stays`

func scanStay(row rowScanner) (*models.Stay, error) {
	var s models.Stay
	err := row.Scan(
		&s.ID,
		&s.HostID,
		&s.Name,
		&s.Description,
		&s.Address,
		&s.GuestNumber,
		&s.Location.Latitude,
		&s.Location.Longitude,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Images = []string{}
	return &s, nil
}

// CreateStay inserts the stay, its images and an index task for the geo outbox
// in one transaction. The returned task is already persisted as pending.
func (db *DB) CreateStay(ctx context.Context, stay *models.Stay) (*models.GeoSyncTask, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO stays (host_id, name, description, address, guest_number, latitude, longitude, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stay.HostID,
		stay.Name,
		stay.Description,
		stay.Address,
		stay.GuestNumber,
		stay.Location.Latitude,
		stay.Location.Longitude,
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert stay: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	for i, url := range stay.Images {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO stay_images (stay_id, position, url) VALUES (?, ?, ?)`, id, i, url); err != nil {
			return nil, fmt.Errorf("failed to insert stay image: %w", err)
		}
	}

	task, err := newGeoTask(models.GeoTaskIndex, id, &stay.Location)
	if err != nil {
		return nil, err
	}
	if err := insertGeoSyncTask(ctx, tx, task); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit stay: %w", err)
	}

	stay.ID = id
	stay.CreatedAt = now
	stay.UpdatedAt = now
	if stay.Images == nil {
		stay.Images = []string{}
	}
	return task, nil
}

// GetStay returns a stay with its images.
func (db *DB) GetStay(ctx context.Context, id int64) (*models.Stay, error) {
	stay, err := scanStay(db.QueryRowContext(ctx, selectStay+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStayNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stay: %w", err)
	}
	if err := db.attachImages(ctx, []*models.Stay{stay}); err != nil {
		return nil, err
	}
	return stay, nil
}

// GetStayByHost returns a stay only if it belongs to hostID.
func (db *DB) GetStayByHost(ctx context.Context, id int64, hostID string) (*models.Stay, error) {
	stay, err := scanStay(db.QueryRowContext(ctx, selectStay+` WHERE id = ? AND host_id = ?`, id, hostID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStayNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stay: %w", err)
	}
	if err := db.attachImages(ctx, []*models.Stay{stay}); err != nil {
		return nil, err
	}
	return stay, nil
}

func (db *DB) ListStaysByHost(ctx context.Context, hostID string) ([]models.Stay, error) {
	stays, err := db.queryStays(ctx, selectStay+` WHERE host_id = ? ORDER BY id`, hostID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stays by host: %w", err)
	}
	return stays, nil
}

// FindStaysByIDsAndCapacity returns the stays among ids that can host at least guests people.
func (db *DB) FindStaysByIDsAndCapacity(ctx context.Context, ids []int64, guests int) ([]models.Stay, error) {
	result := []models.Stay{}
	for start := 0; start < len(ids); start += collisionChunk {
		end := start + collisionChunk
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		args := make([]any, 0, len(chunk)+1)
		for _, id := range chunk {
			args = append(args, id)
		}
		args = append(args, guests)

		stays, err := db.queryStays(ctx,
			selectStay+` WHERE id IN (`+placeholders(len(chunk))+`) AND guest_number >= ? ORDER BY id`, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to find stays by ids: %w", err)
		}
		result = append(result, stays...)
	}
	return result, nil
}

// StayLocations returns every stay's coordinates, used to warm an in-memory geo index.
func (db *DB) StayLocations(ctx context.Context) (map[int64]models.GeoPoint, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, latitude, longitude FROM stays`)
	if err != nil {
		return nil, fmt.Errorf("failed to get stay locations: %w", err)
	}
	defer rows.Close()

	points := make(map[int64]models.GeoPoint)
	for rows.Next() {
		var (
			id int64
			p  models.GeoPoint
		)
		if err := rows.Scan(&id, &p.Latitude, &p.Longitude); err != nil {
			return nil, fmt.Errorf("failed to scan stay location: %w", err)
		}
		points[id] = p
	}
	return points, rows.Err()
}

func (db *DB) CountStays(ctx context.Context) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM stays`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count stays: %w", err)
	}
	return n, nil
}

// DeleteStay removes a host's stay with its images, past reservations and their
// occupancy rows, and enqueues a geo removal task, all in one transaction.
// Index tasks of the stay that have not been applied yet are closed so a late
// retry cannot put the stay back into the geo index.
// A reservation whose checkout is after today blocks the deletion.
func (db *DB) DeleteStay(ctx context.Context, hostID string, stayID int64, today time.Time) (*models.GeoSyncTask, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM stays WHERE id = ? AND host_id = ?`, stayID, hostID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStayNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up stay in tx: %w", err)
	}

	var active int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE stay_id = ? AND checkout_date > ?`,
		stayID, models.Day(today).Format(models.DateLayout)).Scan(&active)
	if err != nil {
		return nil, fmt.Errorf("failed to count active reservations: %w", err)
	}
	if active > 0 {
		return nil, ErrStayHasActiveReservations
	}

	for _, q := range []string{
		`DELETE FROM stay_reserved_dates WHERE stay_id = ?`,
		`DELETE FROM reservations WHERE stay_id = ?`,
		`DELETE FROM stay_images WHERE stay_id = ?`,
		`DELETE FROM stays WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, stayID); err != nil {
			return nil, fmt.Errorf("failed to delete stay: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE geo_sync_queue SET status = ?, last_error = ?, next_retry_at = NULL, processed_at = ?
		 WHERE stay_id = ? AND task_type = ? AND status IN (?, ?)`,
		models.TaskStatusCompleted, "superseded by stay deletion", time.Now(),
		stayID, models.GeoTaskIndex, models.TaskStatusPending, models.TaskStatusRetry)
	if err != nil {
		return nil, fmt.Errorf("failed to close pending geo tasks: %w", err)
	}

	task, err := newGeoTask(models.GeoTaskRemove, stayID, nil)
	if err != nil {
		return nil, err
	}
	if err := insertGeoSyncTask(ctx, tx, task); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit stay delete: %w", err)
	}
	return task, nil
}

func (db *DB) queryStays(ctx context.Context, query string, args ...any) ([]models.Stay, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	var ptrs []*models.Stay
	for rows.Next() {
		s, err := scanStay(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		ptrs = append(ptrs, s)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// release the connection before querying images (:memory: runs on a single one)
	rows.Close()

	if err := db.attachImages(ctx, ptrs); err != nil {
		return nil, err
	}

	stays := make([]models.Stay, 0, len(ptrs))
	for _, s := range ptrs {
		stays = append(stays, *s)
	}
	return stays, nil
}

func (db *DB) attachImages(ctx context.Context, stays []*models.Stay) error {
	if len(stays) == 0 {
		return nil
	}

	byID := make(map[int64]*models.Stay, len(stays))
	args := make([]any, 0, len(stays))
	for _, s := range stays {
		byID[s.ID] = s
		args = append(args, s.ID)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT stay_id, url FROM stay_images WHERE stay_id IN (`+placeholders(len(args))+`) ORDER BY stay_id, position`,
		args...)
	if err != nil {
		return fmt.Errorf("failed to get stay images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			stayID int64
			url    string
		)
		if err := rows.Scan(&stayID, &url); err != nil {
			return fmt.Errorf("failed to scan stay image: %w", err)
		}
		if s, ok := byID[stayID]; ok {
			s.Images = append(s.Images, url)
		}
	}
	return rows.Err()
}

// NewGeoIndexTask builds a pending task that (re)indexes a stay at point.
func NewGeoIndexTask(stayID int64, point models.GeoPoint) (*models.GeoSyncTask, error) {
	return newGeoTask(models.GeoTaskIndex, stayID, &point)
}

func newGeoTask(taskType string, stayID int64, point *models.GeoPoint) (*models.GeoSyncTask, error) {
	payload := models.GeoTaskPayload{StayID: stayID}
	if point != nil {
		payload.Latitude = point.Latitude
		payload.Longitude = point.Longitude
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode geo task payload: %w", err)
	}
	return &models.GeoSyncTask{
		TaskType: taskType,
		StayID:   stayID,
		Payload:  string(raw),
		Status:   models.TaskStatusPending,
	}, nil
}
