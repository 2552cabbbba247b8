// Package redisx builds the shared Redis client used for locks, the registry and rate limits.
package redisx

import (
	"context"
	"strings"

	"github.com/md-rashed-zaman/timely/libs/config"
	"github.com/redis/go-redis/v9"
)

// FromEnv returns nil when REDIS_ADDR is unset so callers can fall back to in-process variants.
func FromEnv() *redis.Client {
	addr := strings.TrimSpace(config.String("REDIS_ADDR", ""))
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: config.String("REDIS_PASSWORD", ""),
		DB:       config.Int("REDIS_DB", 0),
	})
}

func ReadyCheck(rdb *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}
