package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/futureecho/futureecho/internal/config"
)

// NewClient connects to Redis. The client backs the rate limiter and the
// chat history cache; both degrade gracefully when Redis later becomes unavailable.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	slog.Info("connected to Redis", "addr", cfg.Addr(), "db", cfg.DB)
	return client, nil
}

// HealthCheck backs the readiness probe.
func HealthCheck(ctx context.Context, client redis.UniversalClient) error {
	return client.Ping(ctx).Err()
}
