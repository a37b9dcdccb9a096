package geocode

import (
	"context"
	"fmt"
	"strings"
	"time"

	"staybooking/internal/config"
	"staybooking/internal/domain"
	"staybooking/internal/models"
)

// StaticGeocoder resolves addresses from a fixed table. Lookups ignore case and surrounding spaces.
type StaticGeocoder struct {
	table map[string]models.GeoPoint
}

func NewStaticGeocoder(entries []config.StaticAddress) *StaticGeocoder {
	table := make(map[string]models.GeoPoint, len(entries))
	for _, e := range entries {
		table[normalizeAddress(e.Address)] = models.GeoPoint{Latitude: e.Latitude, Longitude: e.Longitude}
	}
	return &StaticGeocoder{table: table}
}

func (g *StaticGeocoder) Geocode(_ context.Context, address string) (models.GeoPoint, error) {
	p, ok := g.table[normalizeAddress(address)]
	if !ok {
		return models.GeoPoint{}, fmt.Errorf("%w: unknown address %q", ErrInvalidAddress, address)
	}
	return p, nil
}

func normalizeAddress(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// New builds the geocoder selected by cfg.Provider.
func New(cfg config.GeocodingConfig) (domain.Geocoder, error) {
	switch cfg.Provider {
	case "", "static":
		return NewStaticGeocoder(cfg.Static), nil
	case "nominatim":
		g := NewNominatimGeocoder(cfg.BaseURL, cfg.UserAgent, time.Duration(cfg.TimeoutSeconds)*time.Second)
		g.MinPlaceRank = cfg.MinPlaceRank
		return g, nil
	default:
		return nil, fmt.Errorf("unknown geocoding provider %q", cfg.Provider)
	}
}
