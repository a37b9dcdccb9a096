package api

import (
	"errors"
	"net/http"

	"staybooking/internal/database"
	"staybooking/internal/geocode"
	"staybooking/internal/service"

	"github.com/rs/zerolog"
)

var (
	errInvalidID       = errors.New("invalid id")
	errInvalidJSONBody = errors.New("invalid JSON body")
)

// statusFor maps domain errors to HTTP status codes. Anything unknown is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidSearchDate),
		errors.Is(err, service.ErrInvalidReservationDate),
		errors.Is(err, service.ErrInvalidDistance),
		errors.Is(err, service.ErrInvalidGuestNumber),
		errors.Is(err, service.ErrInvalidLocation),
		errors.Is(err, service.ErrInvalidStay),
		errors.Is(err, geocode.ErrInvalidAddress),
		errors.Is(err, database.ErrInvalidDateRange),
		errors.Is(err, errInvalidID),
		errors.Is(err, errInvalidJSONBody):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrMissingIdentity):
		return http.StatusUnauthorized
	case errors.Is(err, database.ErrReservationNotFound),
		errors.Is(err, database.ErrStayNotExist):
		return http.StatusNotFound
	case errors.Is(err, database.ErrReservationCollision),
		errors.Is(err, database.ErrStayHasActiveReservations):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, logger *zerolog.Logger, requestID string, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		logger.Error().Err(err).Str("request_id", requestID).Msg("request failed")
		writeError(w, code, "internal error")
		return
	}
	writeError(w, code, err.Error())
}
