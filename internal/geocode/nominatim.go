package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"staybooking/internal/models"
	"staybooking/internal/repository"
)

// Two candidates closer than this in importance are treated as the same confidence.
const ambiguityImportanceDelta = 0.05

// Candidates further apart than this are different places, not duplicates of one.
const ambiguityDistanceKm = 5.0

// NominatimGeocoder resolves addresses with an OpenStreetMap Nominatim compatible endpoint.
// A match coarser than MinPlaceRank (e.g. only the city of a street address) is partial;
// two equally ranked, equally important candidates far apart are ambiguous. Both are
// reported as ErrInvalidAddress. MinPlaceRank 0 disables the partial check.
type NominatimGeocoder struct {
	BaseURL      string
	UserAgent    string
	MinPlaceRank int
	HTTP         *http.Client
}

type nominatimPlace struct {
	Lat        string  `json:"lat"`
	Lon        string  `json:"lon"`
	PlaceRank  int     `json:"place_rank"`
	Importance float64 `json:"importance"`
}

func (p nominatimPlace) point() (models.GeoPoint, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return models.GeoPoint{}, fmt.Errorf("%w: bad latitude %q", ErrGeocodingFailure, p.Lat)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return models.GeoPoint{}, fmt.Errorf("%w: bad longitude %q", ErrGeocodingFailure, p.Lon)
	}
	point := models.GeoPoint{Latitude: lat, Longitude: lon}
	if !point.Valid() {
		return models.GeoPoint{}, fmt.Errorf("%w: coordinates out of range", ErrGeocodingFailure)
	}
	return point, nil
}

func NewNominatimGeocoder(baseURL, userAgent string, timeout time.Duration) *NominatimGeocoder {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NominatimGeocoder{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		UserAgent: userAgent,
		HTTP:      &http.Client{Timeout: timeout},
	}
}

func (g *NominatimGeocoder) Geocode(ctx context.Context, address string) (models.GeoPoint, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return models.GeoPoint{}, fmt.Errorf("%w: empty address", ErrInvalidAddress)
	}

	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("limit", "2")
	q.Set("q", address)
	urlStr := g.BaseURL + "/search?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return models.GeoPoint{}, fmt.Errorf("%w: %v", ErrGeocodingFailure, err)
	}
	req.Header.Set("User-Agent", g.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := g.HTTP.Do(req)
	if err != nil {
		return models.GeoPoint{}, fmt.Errorf("%w: %v", ErrGeocodingFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.GeoPoint{}, fmt.Errorf("%w: %s: %s", ErrGeocodingFailure, resp.Status, strings.TrimSpace(string(body)))
	}

	var results []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return models.GeoPoint{}, fmt.Errorf("%w: decode response: %v", ErrGeocodingFailure, err)
	}
	if len(results) == 0 {
		return models.GeoPoint{}, fmt.Errorf("%w: no results for %q", ErrInvalidAddress, address)
	}

	best := results[0]
	if g.MinPlaceRank > 0 && best.PlaceRank < g.MinPlaceRank {
		return models.GeoPoint{}, fmt.Errorf("%w: partial match for %q (place rank %d)", ErrInvalidAddress, address, best.PlaceRank)
	}
	point, err := best.point()
	if err != nil {
		return models.GeoPoint{}, err
	}

	if len(results) > 1 {
		second := results[1]
		if second.PlaceRank == best.PlaceRank && best.Importance-second.Importance < ambiguityImportanceDelta {
			other, err := second.point()
			if err == nil && repository.DistanceKm(point, other) > ambiguityDistanceKm {
				return models.GeoPoint{}, fmt.Errorf("%w: ambiguous address %q", ErrInvalidAddress, address)
			}
		}
	}
	return point, nil
}
