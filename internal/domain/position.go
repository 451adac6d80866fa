package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionStatus tracks whether a position is still open or has been
// liquidated.
type PositionStatus string

const (
	PositionStatusOpen       PositionStatus = "open"
	PositionStatusLiquidated PositionStatus = "liquidated"
)

// Position is a collateralized debt position. Amounts are arbitrary
// precision decimals; both are always >= 0. A position with zero debt is
// never liquidatable.
type Position struct {
	ID               string
	OwnerAddress     string
	CollateralSymbol string
	CollateralAmount decimal.Decimal
	DebtSymbol       string
	DebtAmount       decimal.Decimal
	Status           PositionStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
