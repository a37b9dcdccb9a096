package repository

import (
	"context"
	"testing"

	"staybooking/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceKm(t *testing.T) {
	assert.InDelta(t, 0, DistanceKm(sfCenter, sfCenter), 1e-9)
	assert.InDelta(t, 13.0, DistanceKm(sfCenter, oakland), 1.0)
	assert.InDelta(t, DistanceKm(sfCenter, sanJose), DistanceKm(sanJose, sfCenter), 1e-9)
}

func TestMemoryGeoIndex(t *testing.T) {
	idx := NewMemoryGeoIndex()
	ctx := context.Background()

	idx.Warm(map[int64]models.GeoPoint{1: sfMission, 2: oakland, 3: sanJose})
	assert.Equal(t, 3, idx.Len())

	ids, err := idx.QueryRadius(ctx, sfCenter, 50)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)

	require.NoError(t, idx.Index(ctx, 4, sfCenter))
	ids, err = idx.QueryRadius(ctx, sfCenter, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 1}, ids)

	require.NoError(t, idx.Remove(ctx, 4))
	ids, err = idx.QueryRadius(ctx, sfCenter, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids)

	ids, err = idx.QueryRadius(ctx, models.GeoPoint{Latitude: 0, Longitude: 0}, 10)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
