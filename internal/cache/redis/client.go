// Package redis backs the hot-path concerns of the service with go-redis:
// the latest oracle quotes, the per-position liquidation locks, API rate
// limiting, and the pub/sub signal bus feeding the WebSocket hub.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ClientConfig holds connection parameters for the Redis client.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
}

// Client wraps a go-redis Client. The cache, lock, limiter and bus types
// in this package all share one Client so the service holds a single
// connection pool.
type Client struct {
	rdb *redis.Client
}

// New connects to Redis and verifies the connection with a ping. Quote
// caching and locking are load-bearing for liquidation execution, so a
// Redis that cannot be reached at boot is a startup failure, not a
// degraded mode.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

// Ping checks the Redis connection. The health endpoint reports the result
// per dependency.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Underlying returns the raw *redis.Client for the sibling types in this
// package that need direct driver access.
func (c *Client) Underlying() *redis.Client {
	return c.rdb
}
