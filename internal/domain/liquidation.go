package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LiquidationStatus is the outcome classification of a liquidation plan or
// execution. Insufficient collateral is an expected outcome reported via
// status, not an error.
type LiquidationStatus string

const (
	LiquidationStatusLiquidated             LiquidationStatus = "liquidated"
	LiquidationStatusInsufficientCollateral LiquidationStatus = "insufficient_collateral"
	LiquidationStatusNotLiquidatable        LiquidationStatus = "not_liquidatable"
)

// LiquidationResult describes the outcome of simulating or executing a
// full liquidation. Simulations are ephemeral; executions are persisted.
type LiquidationResult struct {
	PositionID       string
	CollateralSeized decimal.Decimal
	DebtRepaid       decimal.Decimal
	Bonus            decimal.Decimal
	CollateralPrice  decimal.Decimal
	DebtPrice        decimal.Decimal
	HealthFactor     decimal.Decimal
	Status           LiquidationStatus
	TxHash           string
	ExecutedAt       time.Time
}
