package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"staybooking/internal/domain"
	"staybooking/internal/metrics"
	"staybooking/internal/models"

	"github.com/rs/zerolog"
)

type SearchQuery struct {
	GuestNumber int
	Checkin     time.Time
	Checkout    time.Time
	Location    models.GeoPoint
	// Distance is the raw radius, e.g. "10" or "10km". Empty means the default radius.
	Distance string
}

type SearchService struct {
	geo             domain.GeoIndex
	checker         domain.CollisionChecker
	stays           domain.StayRepository
	defaultRadiusKm float64
	maxRadiusKm     float64
	logger          *zerolog.Logger
}

func NewSearchService(
	geo domain.GeoIndex,
	checker domain.CollisionChecker,
	stays domain.StayRepository,
	defaultRadiusKm, maxRadiusKm float64,
	logger *zerolog.Logger,
) *SearchService {
	if defaultRadiusKm <= 0 {
		defaultRadiusKm = models.DefaultSearchRadiusKm
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &SearchService{
		geo:             geo,
		checker:         checker,
		stays:           stays,
		defaultRadiusKm: defaultRadiusKm,
		maxRadiusKm:     maxRadiusKm,
		logger:          logger,
	}
}

// ParseDistance reads a radius in kilometres; an optional "km" suffix is accepted.
func ParseDistance(raw string, def float64) (float64, error) {
	v := strings.TrimSpace(strings.ToLower(raw))
	if v == "" {
		return def, nil
	}
	v = strings.TrimSpace(strings.TrimSuffix(v, "km"))
	d, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDistance, raw)
	}
	if d <= 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return 0, fmt.Errorf("%w: %q must be positive", ErrInvalidDistance, raw)
	}
	return d, nil
}

// Search returns stays near q.Location that fit q.GuestNumber guests and are free for
// every night of [Checkin, Checkout), nearest first.
func (s *SearchService) Search(ctx context.Context, q SearchQuery) ([]models.Stay, error) {
	dates := models.NewDateRange(q.Checkin, q.Checkout)
	if !dates.Valid() {
		return nil, fmt.Errorf("%w: checkin must be before checkout", ErrInvalidSearchDate)
	}
	if q.GuestNumber < 1 {
		return nil, ErrInvalidGuestNumber
	}
	if !q.Location.Valid() {
		return nil, ErrInvalidLocation
	}
	radius, err := ParseDistance(q.Distance, s.defaultRadiusKm)
	if err != nil {
		return nil, err
	}
	if s.maxRadiusKm > 0 && radius > s.maxRadiusKm {
		return nil, fmt.Errorf("%w: %.1f km exceeds the %.1f km limit", ErrInvalidDistance, radius, s.maxRadiusKm)
	}

	candidates, err := s.geo.QueryRadius(ctx, q.Location, radius)
	if err != nil {
		return nil, fmt.Errorf("geo query: %w", err)
	}
	if len(candidates) == 0 {
		metrics.ObserveSearchResults(0)
		return []models.Stay{}, nil
	}

	reserved, err := s.checker.ReservedStayIDs(ctx, candidates, dates.Checkin, dates.LastNight())
	if err != nil {
		return nil, fmt.Errorf("collision check: %w", err)
	}

	free := make([]int64, 0, len(candidates))
	for _, id := range candidates {
		if _, busy := reserved[id]; !busy {
			free = append(free, id)
		}
	}
	if len(free) == 0 {
		metrics.ObserveSearchResults(0)
		return []models.Stay{}, nil
	}

	found, err := s.stays.FindStaysByIDsAndCapacity(ctx, free, q.GuestNumber)
	if err != nil {
		return nil, fmt.Errorf("load stays: %w", err)
	}

	// порядок как у гео-индекса: ближайшие первыми
	byID := make(map[int64]models.Stay, len(found))
	for _, st := range found {
		byID[st.ID] = st
	}
	result := make([]models.Stay, 0, len(found))
	for _, id := range free {
		if st, ok := byID[id]; ok {
			result = append(result, st)
		}
	}

	metrics.ObserveSearchResults(len(result))
	s.logger.Debug().
		Int("candidates", len(candidates)).
		Int("reserved", len(reserved)).
		Int("results", len(result)).
		Float64("radius_km", radius).
		Msg("search")
	return result, nil
}
