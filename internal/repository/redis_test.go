package repository

import (
	"context"
	"testing"

	"staybooking/internal/config"
	"staybooking/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sfCenter  = models.GeoPoint{Latitude: 37.7749, Longitude: -122.4194}
	sfMission = models.GeoPoint{Latitude: 37.7599, Longitude: -122.4148} // ~1.7 km
	oakland   = models.GeoPoint{Latitude: 37.8044, Longitude: -122.2712} // ~13 km
	sanJose   = models.GeoPoint{Latitude: 37.3382, Longitude: -121.8863} // ~68 km
)

func TestRedisGeoIndex(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
	defer client.Close()

	idx := NewRedisGeoIndex(client, "test:geo")
	ctx := context.Background()

	require.NoError(t, idx.Ping(ctx))
	require.NoError(t, idx.Index(ctx, 1, sfMission))
	require.NoError(t, idx.Index(ctx, 2, oakland))
	require.NoError(t, idx.Index(ctx, 3, sanJose))

	t.Run("RadiusNearestFirst", func(t *testing.T) {
		ids, err := idx.QueryRadius(ctx, sfCenter, 50)
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2}, ids)
	})

	t.Run("SmallRadius", func(t *testing.T) {
		ids, err := idx.QueryRadius(ctx, sfCenter, 5)
		require.NoError(t, err)
		assert.Equal(t, []int64{1}, ids)
	})

	t.Run("Upsert", func(t *testing.T) {
		require.NoError(t, idx.Index(ctx, 3, sfCenter))
		ids, err := idx.QueryRadius(ctx, sfCenter, 5)
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{1, 3}, ids)
	})

	t.Run("Remove", func(t *testing.T) {
		require.NoError(t, idx.Remove(ctx, 1))
		require.NoError(t, idx.Remove(ctx, 404))
		ids, err := idx.QueryRadius(ctx, sfCenter, 5)
		require.NoError(t, err)
		assert.Equal(t, []int64{3}, ids)
	})

	t.Run("ForeignMemberIgnored", func(t *testing.T) {
		require.NoError(t, client.GeoAdd(ctx, "test:geo", &redis.GeoLocation{
			Name: "not-a-stay", Longitude: sfCenter.Longitude, Latitude: sfCenter.Latitude,
		}).Err())
		ids, err := idx.QueryRadius(ctx, sfCenter, 5)
		require.NoError(t, err)
		assert.Equal(t, []int64{3}, ids)
	})

	t.Run("EmptyKey", func(t *testing.T) {
		empty := NewRedisGeoIndex(client, "other:geo")
		ids, err := empty.QueryRadius(ctx, sfCenter, 50)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})
}

func TestRedisGeoIndex_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("NilClient", func(t *testing.T) {
		idx := NewRedisGeoIndex(nil, "")
		assert.Error(t, idx.Index(ctx, 1, sfCenter))
		assert.Error(t, idx.Remove(ctx, 1))
		_, err := idx.QueryRadius(ctx, sfCenter, 1)
		assert.Error(t, err)
		assert.Error(t, idx.Ping(ctx))
	})

	t.Run("ServerDown", func(t *testing.T) {
		s, err := miniredis.Run()
		require.NoError(t, err)
		client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
		defer client.Close()
		s.Close()

		idx := NewRedisGeoIndex(client, "")
		assert.Error(t, idx.Index(ctx, 1, sfCenter))
		_, err = idx.QueryRadius(ctx, sfCenter, 1)
		assert.Error(t, err)
	})
}
