package database

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

var (
	ErrStayNotExist              = errors.New("stay does not exist")
	ErrStayHasActiveReservations = errors.New("stay has active reservations")
	ErrReservationCollision      = errors.New("stay is already reserved for some of the requested dates")
	ErrReservationNotFound       = errors.New("reservation not found")
	ErrInvalidDateRange          = errors.New("checkin date must be before checkout date")
)

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func isForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
}
