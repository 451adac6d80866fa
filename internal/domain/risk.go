package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxHealthFactor is the sentinel health factor reported for positions
// with zero debt value, where the real ratio would divide by zero.
var MaxHealthFactor = decimal.NewFromInt(1_000_000_000)

// HealthAssessment is the result of evaluating a position against current
// prices. It is computed on demand and not persisted; RiskSnapshot is the
// persisted form.
type HealthAssessment struct {
	PositionID      string
	CollateralValue decimal.Decimal
	DebtValue       decimal.Decimal
	HealthFactor    decimal.Decimal
	Liquidatable    bool
	EvaluatedAt     time.Time
}

// RiskSnapshot is a persisted point-in-time health record for a position,
// written by the monitoring loop and the analytics endpoints.
type RiskSnapshot struct {
	ID              int64
	PositionID      string
	HealthFactor    decimal.Decimal
	CollateralValue decimal.Decimal
	DebtValue       decimal.Decimal
	Liquidatable    bool
	CreatedAt       time.Time
}
