package repository

import (
	"context"
	"fmt"
	"strconv"

	"staybooking/internal/config"
	"staybooking/internal/models"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// RedisGeoIndex keeps stay coordinates in a Redis GEO sorted set.
type RedisGeoIndex struct {
	client *redis.Client
	key    string
}

func NewRedisGeoIndex(client *redis.Client, key string) *RedisGeoIndex {
	if key == "" {
		key = "stays:geo"
	}
	return &RedisGeoIndex{client: client, key: key}
}

func (r *RedisGeoIndex) Index(ctx context.Context, stayID int64, point models.GeoPoint) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	err := r.client.GeoAdd(ctx, r.key, &redis.GeoLocation{
		Name:      strconv.FormatInt(stayID, 10),
		Longitude: point.Longitude,
		Latitude:  point.Latitude,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to index stay %d in redis: %w", stayID, err)
	}
	return nil
}

func (r *RedisGeoIndex) Remove(ctx context.Context, stayID int64) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.ZRem(ctx, r.key, strconv.FormatInt(stayID, 10)).Err(); err != nil {
		return fmt.Errorf("failed to remove stay %d from redis: %w", stayID, err)
	}
	return nil
}

func (r *RedisGeoIndex) QueryRadius(ctx context.Context, center models.GeoPoint, radiusKm float64) ([]int64, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	locations, err := r.client.GeoRadius(ctx, r.key, center.Longitude, center.Latitude, &redis.GeoRadiusQuery{
		Radius: radiusKm,
		Unit:   "km",
		Sort:   "ASC",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query redis geo index: %w", err)
	}

	ids := make([]int64, 0, len(locations))
	for _, loc := range locations {
		id, err := strconv.ParseInt(loc.Name, 10, 64)
		if err != nil {
			// foreign member in the set
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *RedisGeoIndex) Ping(ctx context.Context) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	return r.client.Ping(ctx).Err()
}
