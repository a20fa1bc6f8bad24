package database

import (
	"context"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/ticket-checkin/internal/config"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient creates a pooled Redis client and checks it can be reached.
func NewRedisClient(ctx context.Context, cfg config.Redis) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		// Fall back to a plain host:port address.
		opts = &redis.Options{Addr: cfg.URL}
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}

	// Authorization lookups sit on the scan path; keep them short.
	opts.PoolSize = 50
	opts.MinIdleConns = 5
	opts.MaxRetries = 1
	opts.ReadTimeout = 200 * time.Millisecond
	opts.WriteTimeout = 200 * time.Millisecond

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}
