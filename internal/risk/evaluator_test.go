package risk

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/cdpguard/internal/domain"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func position(collateral, debt string) domain.Position {
	return domain.Position{
		ID:               "pos-1",
		CollateralSymbol: "ETH",
		CollateralAmount: dec(collateral),
		DebtSymbol:       "USDC",
		DebtAmount:       dec(debt),
		Status:           domain.PositionStatusOpen,
	}
}

func TestEvaluateZeroDebtIsMaxSentinel(t *testing.T) {
	e := NewEvaluator(0.825)

	got := e.Evaluate(position("10", "0"), dec("2000"), dec("1"))

	if !got.HealthFactor.Equal(domain.MaxHealthFactor) {
		t.Fatalf("expected sentinel health factor %s, got %s", domain.MaxHealthFactor, got.HealthFactor)
	}
	if got.Liquidatable {
		t.Fatal("zero-debt position must never be liquidatable")
	}
}

func TestEvaluateZeroDebtPriceIsMaxSentinel(t *testing.T) {
	e := NewEvaluator(0.825)

	got := e.Evaluate(position("10", "500"), dec("2000"), dec("0"))

	if !got.HealthFactor.Equal(domain.MaxHealthFactor) {
		t.Fatalf("expected sentinel health factor, got %s", got.HealthFactor)
	}
	if got.Liquidatable {
		t.Fatal("zero debt value must never be liquidatable")
	}
}

func TestEvaluateWorkedExample(t *testing.T) {
	// 10 ETH at 2000 = 20000 collateral value; 17000 USDC at 1 = 17000
	// debt value; threshold 0.825 -> HF = 16500/17000 ~= 0.9706.
	e := NewEvaluator(0.825)

	got := e.Evaluate(position("10", "17000"), dec("2000"), dec("1"))

	if !got.CollateralValue.Equal(dec("20000")) {
		t.Fatalf("collateral value: got %s", got.CollateralValue)
	}
	if !got.DebtValue.Equal(dec("17000")) {
		t.Fatalf("debt value: got %s", got.DebtValue)
	}
	if want := dec("0.97058824"); !got.HealthFactor.Equal(want) {
		t.Fatalf("health factor: expected %s, got %s", want, got.HealthFactor)
	}
	if !got.Liquidatable {
		t.Fatal("expected liquidatable")
	}
}

func TestEvaluateLiquidatableBoundary(t *testing.T) {
	e := NewEvaluator(0.825)

	tests := []struct {
		name         string
		collateral   string
		debt         string
		liquidatable bool
	}{
		// 10 * 2000 * 0.825 = 16500 exactly.
		{"health exactly one", "10", "16500", false},
		{"just above one", "10", "16499", false},
		{"just below one", "10", "16501", true},
		{"healthy", "10", "1000", false},
		{"deeply underwater", "1", "10000", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Evaluate(position(tt.collateral, tt.debt), dec("2000"), dec("1"))
			if got.Liquidatable != tt.liquidatable {
				t.Fatalf("hf=%s: expected liquidatable=%v, got %v",
					got.HealthFactor, tt.liquidatable, got.Liquidatable)
			}
		})
	}
}

func TestEvaluateThresholdInForce(t *testing.T) {
	// The same position flips eligibility under a different threshold.
	pos := position("10", "17000")

	strict := NewEvaluator(0.825).Evaluate(pos, dec("2000"), dec("1"))
	loose := NewEvaluator(0.90).Evaluate(pos, dec("2000"), dec("1"))

	if !strict.Liquidatable {
		t.Fatal("expected liquidatable at threshold 0.825")
	}
	if loose.Liquidatable {
		t.Fatalf("expected healthy at threshold 0.90, hf=%s", loose.HealthFactor)
	}
}
