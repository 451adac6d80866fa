package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PriceCache exposes the most recent quote per symbol for dashboards and
// metrics. The oracle never reads from it; every evaluation uses a fresh
// quote.
type PriceCache interface {
	SetQuote(ctx context.Context, quote PriceQuote) error
	GetQuote(ctx context.Context, symbol string) (PriceQuote, error)
	GetPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error)
}

// RateLimiter provides distributed rate limiting for the API middleware.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
