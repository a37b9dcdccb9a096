package geocode

import "errors"

var (
	// ErrGeocodingFailure means the geocoder could not be reached or answered garbage.
	ErrGeocodingFailure = errors.New("geocoding failed")
	// ErrInvalidAddress means the address resolved to no usable location.
	ErrInvalidAddress = errors.New("invalid stay address")
)
