package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"staybooking/internal/models"
)

// collisionChunk caps the number of bound stay ids per collision query.
const collisionChunk = 500

// ReservedStayIDs returns the subset of stayIDs that have at least one occupied
// day in [from, to] (both inclusive). Callers pass checkout minus one day as to.
func (db *DB) ReservedStayIDs(ctx context.Context, stayIDs []int64, from, to time.Time) (map[int64]struct{}, error) {
	return reservedStayIDs(ctx, db, stayIDs, from, to)
}

func reservedStayIDs(ctx context.Context, q queryer, stayIDs []int64, from, to time.Time) (map[int64]struct{}, error) {
	reserved := make(map[int64]struct{})
	if len(stayIDs) == 0 {
		return reserved, nil
	}

	fromStr := models.Day(from).Format(models.DateLayout)
	toStr := models.Day(to).Format(models.DateLayout)

	for start := 0; start < len(stayIDs); start += collisionChunk {
		end := start + collisionChunk
		if end > len(stayIDs) {
			end = len(stayIDs)
		}
		chunk := stayIDs[start:end]

		query := `SELECT DISTINCT stay_id FROM stay_reserved_dates
                  WHERE stay_id IN (` + placeholders(len(chunk)) + `) AND date BETWEEN ? AND ?`
		args := make([]any, 0, len(chunk)+2)
		for _, id := range chunk {
			args = append(args, id)
		}
		args = append(args, fromStr, toStr)

		if err := collectIDs(ctx, q, query, args, reserved); err != nil {
			return nil, fmt.Errorf("failed to check reserved dates: %w", err)
		}
	}

	return reserved, nil
}

func collectIDs(ctx context.Context, q queryer, query string, args []any, into map[int64]struct{}) error {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		into[id] = struct{}{}
	}
	return rows.Err()
}

// CreateReservation atomically checks the stay's occupancy over the requested nights
// and writes the reservation together with one occupancy row per night.
// Any overlap, detected either by the check or by the (stay_id, date) primary key,
// is reported as ErrReservationCollision.
func (db *DB) CreateReservation(ctx context.Context, r *models.Reservation) error {
	rng := r.Range()
	if !rng.Valid() {
		return ErrInvalidDateRange
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM stays WHERE id = ?`, r.StayID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrStayNotExist
	}
	if err != nil {
		return fmt.Errorf("failed to look up stay in tx: %w", err)
	}

	// 1. Collision check inside the transaction
	reserved, err := reservedStayIDs(ctx, tx, []int64{r.StayID}, rng.Checkin, rng.LastNight())
	if err != nil {
		return err
	}
	if len(reserved) > 0 {
		return ErrReservationCollision
	}

	// 2. Reservation row
	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO reservations (guest_id, stay_id, checkin_date, checkout_date, created_at) VALUES (?, ?, ?, ?, ?)`,
		r.GuestID,
		r.StayID,
		rng.Checkin.Format(models.DateLayout),
		rng.Checkout.Format(models.DateLayout),
		now,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrStayNotExist
		}
		return fmt.Errorf("failed to insert reservation in tx: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id in tx: %w", err)
	}

	// 3. Occupancy rows
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO stay_reserved_dates (stay_id, date) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare reserved date insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range rng.Dates() {
		if _, err := stmt.ExecContext(ctx, r.StayID, d.Format(models.DateLayout)); err != nil {
			if isUniqueViolation(err) {
				return ErrReservationCollision
			}
			return fmt.Errorf("failed to insert reserved date in tx: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return ErrReservationCollision
		}
		return fmt.Errorf("failed to commit reservation: %w", err)
	}

	r.ID = id
	r.CheckinDate = rng.Checkin
	r.CheckoutDate = rng.Checkout
	r.CreatedAt = now

	db.logger.Debug().
		Int64("reservation_id", id).
		Int64("stay_id", r.StayID).
		Str("range", rng.String()).
		Msg("reservation created")

	return nil
}

// DeleteReservation removes a guest's reservation and frees its nights.
// A reservation owned by another guest is indistinguishable from a missing one.
func (db *DB) DeleteReservation(ctx context.Context, id int64, guestID string) (*models.Reservation, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	row := tx.QueryRowContext(ctx, selectReservation+` WHERE id = ? AND guest_id = ?`, id, guestID)
	r, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation in tx: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM stay_reserved_dates WHERE stay_id = ? AND date >= ? AND date < ?`,
		r.StayID,
		r.CheckinDate.Format(models.DateLayout),
		r.CheckoutDate.Format(models.DateLayout),
	); err != nil {
		return nil, fmt.Errorf("failed to delete reserved dates: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, r.ID); err != nil {
		return nil, fmt.Errorf("failed to delete reservation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reservation delete: %w", err)
	}

	return r, nil
}

const selectReservation = `SELECT id, guest_id, stay_id, checkin_date, checkout_date, created_at FROM reservations`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*models.Reservation, error) {
	var (
		r                 models.Reservation
		checkin, checkout string
	)
	if err := row.Scan(&r.ID, &r.GuestID, &r.StayID, &checkin, &checkout, &r.CreatedAt); err != nil {
		return nil, err
	}

	var err error
	if r.CheckinDate, err = models.ParseDate(checkin); err != nil {
		return nil, err
	}
	if r.CheckoutDate, err = models.ParseDate(checkout); err != nil {
		return nil, err
	}
	return &r, nil
}

func (db *DB) queryReservations(ctx context.Context, query string, args ...any) ([]models.Reservation, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reservations := []models.Reservation{}
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		reservations = append(reservations, *r)
	}
	return reservations, rows.Err()
}

// GetReservation returns a reservation by id.
func (db *DB) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	r, err := scanReservation(db.QueryRowContext(ctx, selectReservation+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return r, nil
}

func (db *DB) ListReservationsByGuest(ctx context.Context, guestID string) ([]models.Reservation, error) {
	res, err := db.queryReservations(ctx, selectReservation+` WHERE guest_id = ? ORDER BY checkin_date, id`, guestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations by guest: %w", err)
	}
	return res, nil
}

func (db *DB) ListReservationsByStay(ctx context.Context, stayID int64) ([]models.Reservation, error) {
	res, err := db.queryReservations(ctx, selectReservation+` WHERE stay_id = ? ORDER BY checkin_date, id`, stayID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations by stay: %w", err)
	}
	return res, nil
}

// ReservedDates returns the occupied days of a stay in ascending order.
func (db *DB) ReservedDates(ctx context.Context, stayID int64) ([]time.Time, error) {
	rows, err := db.QueryContext(ctx, `SELECT date FROM stay_reserved_dates WHERE stay_id = ? ORDER BY date`, stayID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reserved dates: %w", err)
	}
	defer rows.Close()

	dates := []time.Time{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan reserved date: %w", err)
		}
		d, err := models.ParseDate(raw)
		if err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}
