package repository

import (
	"context"
	"math"
	"sort"
	"sync"

	"staybooking/internal/models"
)

const earthRadiusKm = 6371.0

// DistanceKm is the great-circle (haversine) distance between two points.
func DistanceKm(a, b models.GeoPoint) float64 {
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLng := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Latitude*math.Pi/180)*math.Cos(b.Latitude*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// MemoryGeoIndex is a process-local geo index scanned linearly on every query.
type MemoryGeoIndex struct {
	mu     sync.RWMutex
	points map[int64]models.GeoPoint
}

func NewMemoryGeoIndex() *MemoryGeoIndex {
	return &MemoryGeoIndex{points: make(map[int64]models.GeoPoint)}
}

// Warm replaces the index content, typically with the locations stored in the database.
func (m *MemoryGeoIndex) Warm(points map[int64]models.GeoPoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points = make(map[int64]models.GeoPoint, len(points))
	for id, p := range points {
		m.points[id] = p
	}
}

func (m *MemoryGeoIndex) Index(_ context.Context, stayID int64, point models.GeoPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points[stayID] = point
	return nil
}

func (m *MemoryGeoIndex) Remove(_ context.Context, stayID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.points, stayID)
	return nil
}

func (m *MemoryGeoIndex) QueryRadius(_ context.Context, center models.GeoPoint, radiusKm float64) ([]int64, error) {
	type hit struct {
		id   int64
		dist float64
	}

	m.mu.RLock()
	hits := make([]hit, 0)
	for id, p := range m.points {
		if d := DistanceKm(center, p); d <= radiusKm {
			hits = append(hits, hit{id: id, dist: d})
		}
	}
	m.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].dist == hits[j].dist {
			return hits[i].id < hits[j].id
		}
		return hits[i].dist < hits[j].dist
	})

	ids := make([]int64, len(hits))
	for i, h := range hits {
		ids[i] = h.id
	}
	return ids, nil
}

func (m *MemoryGeoIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.points)
}
