// Package oracle implements the simulated price feed. Each quote starts
// from a fixed base price per symbol and applies a uniformly distributed
// perturbation within the configured volatility bound. An optional external
// source can be consulted first; any failure there degrades to the
// simulated value, never to a hard error.
package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/cdpguard/internal/domain"
)

// Config holds the feed parameters. Seed 0 means time-seeded randomness;
// any other value makes the perturbation sequence deterministic for tests.
type Config struct {
	BasePrices map[string]float64
	Volatility float64
	Seed       int64
}

// Feed is the simulated price oracle.
type Feed struct {
	base     map[string]decimal.Decimal
	vol      float64
	external *ExternalSource

	mu  sync.Mutex
	rng *rand.Rand

	logger *slog.Logger
}

// New creates a Feed from the given configuration. external may be nil, in
// which case every quote is simulated.
func New(cfg Config, external *ExternalSource, logger *slog.Logger) *Feed {
	base := make(map[string]decimal.Decimal, len(cfg.BasePrices))
	for sym, price := range cfg.BasePrices {
		base[strings.ToUpper(strings.TrimSpace(sym))] = decimal.NewFromFloat(price)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Feed{
		base:     base,
		vol:      cfg.Volatility,
		external: external,
		rng:      rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1)),
		logger:   logger,
	}
}

// Quote returns the current price for a supported symbol. Symbols are
// case-insensitive. Unsupported symbols fail with domain.ErrUnknownSymbol.
func (f *Feed) Quote(ctx context.Context, symbol string) (domain.PriceQuote, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))

	base, ok := f.base[sym]
	if !ok {
		return domain.PriceQuote{}, fmt.Errorf("oracle: quote %s: %w", sym, domain.ErrUnknownSymbol)
	}

	if f.external != nil {
		price, err := f.external.Quote(ctx, sym)
		if err == nil {
			return domain.PriceQuote{
				Symbol:    sym,
				Price:     price,
				Source:    domain.PriceSourceExternal,
				Timestamp: time.Now().UTC(),
			}, nil
		}
		f.logger.WarnContext(ctx, "oracle: external source failed, using simulated price",
			slog.String("symbol", sym),
			slog.String("error", err.Error()),
		)
	}

	return domain.PriceQuote{
		Symbol:    sym,
		Price:     f.perturb(base),
		Source:    domain.PriceSourceSimulated,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Quotes returns quotes for every symbol in the list. Duplicate symbols are
// quoted once; the first unsupported symbol fails the whole call.
func (f *Feed) Quotes(ctx context.Context, symbols []string) (map[string]domain.PriceQuote, error) {
	out := make(map[string]domain.PriceQuote, len(symbols))
	for _, symbol := range symbols {
		sym := strings.ToUpper(strings.TrimSpace(symbol))
		if _, ok := out[sym]; ok {
			continue
		}
		q, err := f.Quote(ctx, sym)
		if err != nil {
			return nil, err
		}
		out[sym] = q
	}
	return out, nil
}

// Symbols returns the supported symbol set in sorted order.
func (f *Feed) Symbols() []string {
	syms := make([]string, 0, len(f.base))
	for sym := range f.base {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	return syms
}

// Supported reports whether the symbol is in the supported set.
func (f *Feed) Supported(symbol string) bool {
	_, ok := f.base[strings.ToUpper(strings.TrimSpace(symbol))]
	return ok
}

// perturb multiplies the base price by a random factor uniformly drawn
// from [1-vol, 1+vol). The rng is shared across request goroutines.
func (f *Feed) perturb(base decimal.Decimal) decimal.Decimal {
	f.mu.Lock()
	u := f.rng.Float64()
	f.mu.Unlock()

	factor := 1 + (2*u-1)*f.vol
	return base.Mul(decimal.NewFromFloat(factor))
}

// Compile-time interface check.
var _ domain.PriceOracle = (*Feed)(nil)
