// Package cache keeps serialized public result snapshots close to the API.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/Dosada05/tournament-manager/models"
)

type ResultsCache interface {
	// Get returns (nil, false, nil) on a miss.
	Get(ctx context.Context, tournamentID int) (*models.PublicResults, bool, error)
	Set(ctx context.Context, tournamentID int, results *models.PublicResults) error
	Invalidate(ctx context.Context, tournamentID int) error
}

func resultsKey(tournamentID int) string {
	return fmt.Sprintf("tournament:%d:results", tournamentID)
}

type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type RedisResultsCache struct {
	client redisClient
	ttl    time.Duration
}

// NewRedisClient parses a redis:// URL and checks the connection.
func NewRedisClient(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func NewRedisResultsCache(client redisClient, ttl time.Duration) *RedisResultsCache {
	return &RedisResultsCache{client: client, ttl: ttl}
}

func (c *RedisResultsCache) Get(ctx context.Context, tournamentID int) (*models.PublicResults, bool, error) {
	raw, err := c.client.Get(ctx, resultsKey(tournamentID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cached results for tournament %d: %w", tournamentID, err)
	}
	var res models.PublicResults
	if err := json.Unmarshal(raw, &res); err != nil {
		// Битую запись считаем промахом, следующий Set её перезапишет.
		return nil, false, nil
	}
	return &res, true, nil
}

func (c *RedisResultsCache) Set(ctx context.Context, tournamentID int, results *models.PublicResults) error {
	raw, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to encode results for tournament %d: %w", tournamentID, err)
	}
	if err := c.client.Set(ctx, resultsKey(tournamentID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache results for tournament %d: %w", tournamentID, err)
	}
	return nil
}

func (c *RedisResultsCache) Invalidate(ctx context.Context, tournamentID int) error {
	if err := c.client.Del(ctx, resultsKey(tournamentID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate results for tournament %d: %w", tournamentID, err)
	}
	return nil
}

// NopCache always misses.
type NopCache struct{}

func (NopCache) Get(ctx context.Context, tournamentID int) (*models.PublicResults, bool, error) {
	return nil, false, nil
}

func (NopCache) Set(ctx context.Context, tournamentID int, results *models.PublicResults) error {
	return nil
}

func (NopCache) Invalidate(ctx context.Context, tournamentID int) error { return nil }
