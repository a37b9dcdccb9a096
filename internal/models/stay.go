package models

import "time"

// Stay is a listing owned by a host. Location is derived from Address by the geocoder.
type Stay struct {
	ID          int64     `json:"id" yaml:"id"`
	HostID      string    `json:"host_id" yaml:"host_id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description" yaml:"description"`
	Address     string    `json:"address" yaml:"address"`
	GuestNumber int       `json:"guest_number" yaml:"guest_number"`
	Images      []string  `json:"images" yaml:"images"`
	Location    GeoPoint  `json:"location" yaml:"-"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"-"`
}

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// Valid reports whether the point lies within coordinate bounds.
func (p GeoPoint) Valid() bool {
	return p.Latitude >= -90 && p.Latitude <= 90 && p.Longitude >= -180 && p.Longitude <= 180
}
