package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mspr-sante/backend/config"
)

// NewRedisClient creates a Redis client for the KPI response cache.
// Returns nil when no Redis address is configured; callers treat a nil
// client as "caching disabled".
func NewRedisClient(cfg *config.Config) (*redis.Client, error) {
	if !cfg.CacheEnabled() {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}
