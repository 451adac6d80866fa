package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/cdpguard/internal/domain"
)

// PriceCache implements domain.PriceCache using Redis hashes. The latest
// quote per symbol is stored at "price:{symbol}" with fields "price",
// "source" and "ts" (Unix nanosecond timestamp). The oracle itself never
// reads from here; this cache feeds dashboards and the websocket hub.
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying()}
}

func priceKey(symbol string) string {
	return "price:" + symbol
}

// SetQuote stores the latest quote for a symbol.
func (pc *PriceCache) SetQuote(ctx context.Context, quote domain.PriceQuote) error {
	key := priceKey(quote.Symbol)
	fields := map[string]interface{}{
		"price":  quote.Price.String(),
		"source": string(quote.Source),
		"ts":     strconv.FormatInt(quote.Timestamp.UnixNano(), 10),
	}
	if err := pc.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("redis: set quote %s: %w", quote.Symbol, err)
	}
	return nil
}

// GetQuote retrieves the latest quote for a symbol. It returns
// domain.ErrNotFound when the key does not exist.
func (pc *PriceCache) GetQuote(ctx context.Context, symbol string) (domain.PriceQuote, error) {
	key := priceKey(symbol)
	vals, err := pc.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("redis: get quote %s: %w", symbol, err)
	}
	if len(vals) == 0 {
		return domain.PriceQuote{}, domain.ErrNotFound
	}

	priceStr, ok := vals["price"]
	if !ok {
		return domain.PriceQuote{}, domain.ErrNotFound
	}
	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("redis: parse price %s: %w", symbol, err)
	}

	tsStr, ok := vals["ts"]
	if !ok {
		return domain.PriceQuote{}, domain.ErrNotFound
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("redis: parse ts %s: %w", symbol, err)
	}

	return domain.PriceQuote{
		Symbol:    symbol,
		Price:     price,
		Source:    domain.PriceSource(vals["source"]),
		Timestamp: time.Unix(0, tsNano),
	}, nil
}

// GetPrices retrieves the latest prices for multiple symbols using a
// pipeline. Symbols whose keys do not exist are silently omitted from the
// result map.
func (pc *PriceCache) GetPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	if len(symbols) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	pipe := pc.rdb.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(symbols))
	for _, sym := range symbols {
		cmds[sym] = pipe.HGetAll(ctx, priceKey(sym))
	}

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get prices pipeline: %w", err)
	}

	result := make(map[string]decimal.Decimal, len(symbols))
	for sym, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil {
			continue
		}
		priceStr, ok := vals["price"]
		if !ok {
			continue
		}
		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			continue
		}
		result[sym] = price
	}

	return result, nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
