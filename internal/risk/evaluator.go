// Package risk computes position health factors. The evaluator is a pure
// function of a position and two prices; it never touches the store.
package risk

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/cdpguard/internal/domain"
)

// healthPrecision is the number of decimal places kept when dividing
// collateral value by debt value.
const healthPrecision = 8

var one = decimal.NewFromInt(1)

// Evaluator computes health assessments against a fixed liquidation
// threshold.
type Evaluator struct {
	threshold decimal.Decimal
}

// NewEvaluator creates an Evaluator. threshold is the fraction of
// collateral value counted toward solvency, e.g. 0.825.
func NewEvaluator(threshold float64) *Evaluator {
	return &Evaluator{threshold: decimal.NewFromFloat(threshold)}
}

// Threshold returns the configured liquidation threshold.
func (e *Evaluator) Threshold() decimal.Decimal {
	return e.threshold
}

// Evaluate computes the health assessment for a position at the given
// prices. A zero debt value yields the max-sentinel health factor and is
// never liquidatable; otherwise the health factor is
// collateralValue * threshold / debtValue and the position is liquidatable
// exactly when that ratio is below 1.
func (e *Evaluator) Evaluate(pos domain.Position, collateralPrice, debtPrice decimal.Decimal) domain.HealthAssessment {
	collateralValue := pos.CollateralAmount.Mul(collateralPrice)
	debtValue := pos.DebtAmount.Mul(debtPrice)

	assessment := domain.HealthAssessment{
		PositionID:      pos.ID,
		CollateralValue: collateralValue,
		DebtValue:       debtValue,
		EvaluatedAt:     time.Now().UTC(),
	}

	if debtValue.IsZero() {
		assessment.HealthFactor = domain.MaxHealthFactor
		assessment.Liquidatable = false
		return assessment
	}

	hf := collateralValue.Mul(e.threshold).DivRound(debtValue, healthPrecision)
	assessment.HealthFactor = hf
	assessment.Liquidatable = hf.LessThan(one)
	return assessment
}
