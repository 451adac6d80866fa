package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PriceSource identifies where a quote came from.
type PriceSource string

const (
	PriceSourceSimulated PriceSource = "simulated"
	PriceSourceExternal  PriceSource = "external"
)

// PriceQuote is a point-in-time price for a token symbol. Quotes are
// ephemeral; they are produced per request and never persisted.
type PriceQuote struct {
	Symbol    string
	Price     decimal.Decimal
	Source    PriceSource
	Timestamp time.Time
}

// PriceOracle supplies current prices for token symbols. Unsupported
// symbols fail with ErrUnknownSymbol.
type PriceOracle interface {
	Quote(ctx context.Context, symbol string) (PriceQuote, error)
	Quotes(ctx context.Context, symbols []string) (map[string]PriceQuote, error)
	Symbols() []string
	Supported(symbol string) bool
}
