package service

import "errors"

var (
	ErrInvalidSearchDate      = errors.New("invalid date range for search")
	ErrInvalidReservationDate = errors.New("invalid date range for reservation")
	ErrInvalidDistance        = errors.New("invalid search distance")
	ErrInvalidGuestNumber     = errors.New("guest number must be positive")
	ErrInvalidLocation        = errors.New("invalid search location")
	ErrInvalidStay            = errors.New("invalid stay")
	ErrMissingIdentity        = errors.New("caller identity is required")
)
