// Package liquidation computes full-liquidation outcomes. The engine is
// pure math; the transactional execute path lives in the service layer.
package liquidation

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/cdpguard/internal/domain"
)

// seizePrecision is the number of decimal places kept when converting debt
// value into collateral units.
const seizePrecision = 8

// Engine plans liquidations with a fixed bonus rate.
type Engine struct {
	bonus decimal.Decimal
}

// NewEngine creates an Engine. bonus is the liquidator incentive as a
// fraction of the base seizure, e.g. 0.05.
func NewEngine(bonus float64) *Engine {
	return &Engine{bonus: decimal.NewFromFloat(bonus)}
}

// Plan computes the liquidation outcome for a position given its current
// assessment and prices. The full outstanding debt is repaid; seized
// collateral is the debt value converted at the collateral price plus the
// bonus, capped at the available collateral. A capped seizure is reported
// via the insufficient_collateral status, not an error. Plan never mutates
// the position.
func (e *Engine) Plan(pos domain.Position, assessment domain.HealthAssessment, collateralPrice, debtPrice decimal.Decimal) domain.LiquidationResult {
	res := domain.LiquidationResult{
		PositionID:      pos.ID,
		CollateralPrice: collateralPrice,
		DebtPrice:       debtPrice,
		HealthFactor:    assessment.HealthFactor,
		ExecutedAt:      time.Now().UTC(),
	}

	if !assessment.Liquidatable {
		res.Status = domain.LiquidationStatusNotLiquidatable
		res.CollateralSeized = decimal.Zero
		res.DebtRepaid = decimal.Zero
		res.Bonus = decimal.Zero
		return res
	}

	seizedBase := assessment.DebtValue.DivRound(collateralPrice, seizePrecision)
	bonus := seizedBase.Mul(e.bonus)
	seized := seizedBase.Add(bonus)

	res.DebtRepaid = pos.DebtAmount
	res.Status = domain.LiquidationStatusLiquidated

	if seized.GreaterThan(pos.CollateralAmount) {
		seized = pos.CollateralAmount
		bonus = seized.Sub(seizedBase)
		if bonus.IsNegative() {
			bonus = decimal.Zero
		}
		res.Status = domain.LiquidationStatusInsufficientCollateral
	}

	res.CollateralSeized = seized
	res.Bonus = bonus
	return res
}

// Apply mutates a copy of the position according to a planned result:
// debt drops to zero, collateral is reduced by exactly the seized amount,
// and the position is marked liquidated. Collateral never goes below zero.
func Apply(pos domain.Position, res domain.LiquidationResult) domain.Position {
	pos.DebtAmount = decimal.Zero
	pos.CollateralAmount = pos.CollateralAmount.Sub(res.CollateralSeized)
	if pos.CollateralAmount.IsNegative() {
		pos.CollateralAmount = decimal.Zero
	}
	pos.Status = domain.PositionStatusLiquidated
	pos.UpdatedAt = res.ExecutedAt
	return pos
}
