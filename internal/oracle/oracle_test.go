package oracle

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/cdpguard/internal/domain"
)

func testFeed(t *testing.T, seed int64) *Feed {
	t.Helper()
	return New(Config{
		BasePrices: map[string]float64{
			"ETH":  3000,
			"WBTC": 65000,
			"USDC": 1,
		},
		Volatility: 0.02,
		Seed:       seed,
	}, nil, slog.Default())
}

func TestQuoteUnknownSymbol(t *testing.T) {
	f := testFeed(t, 1)

	_, err := f.Quote(context.Background(), "DOGE")
	if !errors.Is(err, domain.ErrUnknownSymbol) {
		t.Fatalf("expected ErrUnknownSymbol, got %v", err)
	}
}

func TestQuoteCaseInsensitive(t *testing.T) {
	f := testFeed(t, 1)

	q, err := f.Quote(context.Background(), " eth ")
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if q.Symbol != "ETH" {
		t.Fatalf("expected normalized symbol ETH, got %q", q.Symbol)
	}
	if q.Source != domain.PriceSourceSimulated {
		t.Fatalf("expected simulated source, got %q", q.Source)
	}
}

func TestQuoteStaysWithinVolatilityBound(t *testing.T) {
	f := testFeed(t, 42)

	base := decimal.NewFromInt(3000)
	lo := base.Mul(decimal.NewFromFloat(0.98))
	hi := base.Mul(decimal.NewFromFloat(1.02))

	for i := 0; i < 1000; i++ {
		q, err := f.Quote(context.Background(), "ETH")
		if err != nil {
			t.Fatalf("Quote: %v", err)
		}
		if q.Price.LessThan(lo) || q.Price.GreaterThan(hi) {
			t.Fatalf("price %s outside [%s, %s] on call %d", q.Price, lo, hi, i)
		}
	}
}

func TestQuoteDeterministicWithSeed(t *testing.T) {
	a := testFeed(t, 7)
	b := testFeed(t, 7)

	for i := 0; i < 10; i++ {
		qa, err := a.Quote(context.Background(), "WBTC")
		if err != nil {
			t.Fatalf("Quote: %v", err)
		}
		qb, err := b.Quote(context.Background(), "WBTC")
		if err != nil {
			t.Fatalf("Quote: %v", err)
		}
		if !qa.Price.Equal(qb.Price) {
			t.Fatalf("same seed diverged on call %d: %s vs %s", i, qa.Price, qb.Price)
		}
	}
}

func TestQuotesDeduplicatesAndPropagatesUnknown(t *testing.T) {
	f := testFeed(t, 3)

	quotes, err := f.Quotes(context.Background(), []string{"ETH", "USDC", "eth"})
	if err != nil {
		t.Fatalf("Quotes: %v", err)
	}
	if len(quotes) != 2 {
		t.Fatalf("expected 2 quotes, got %d", len(quotes))
	}

	if _, err := f.Quotes(context.Background(), []string{"ETH", "SHIB"}); !errors.Is(err, domain.ErrUnknownSymbol) {
		t.Fatalf("expected ErrUnknownSymbol, got %v", err)
	}
}

func TestSymbolsSorted(t *testing.T) {
	f := testFeed(t, 1)

	syms := f.Symbols()
	want := []string{"ETH", "USDC", "WBTC"}
	if len(syms) != len(want) {
		t.Fatalf("expected %d symbols, got %d", len(want), len(syms))
	}
	for i := range want {
		if syms[i] != want[i] {
			t.Fatalf("symbol %d: expected %s, got %s", i, want[i], syms[i])
		}
	}
}
