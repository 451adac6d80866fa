package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/cdpguard/internal/domain"
	"github.com/alanyoungcy/cdpguard/internal/metrics"
	"github.com/alanyoungcy/cdpguard/internal/risk"
)

func newAnalyticsFixture(t *testing.T) (*AnalyticsService, *memPositionStore, *memSnapshotStore) {
	t.Helper()
	store := newMemPositionStore()
	snaps := &memSnapshotStore{}
	svc := NewAnalyticsService(
		store,
		snaps,
		newStubOracle(testPrices()),
		risk.NewEvaluator(0.825),
		metrics.New(),
		testLogger(),
	)
	return svc, store, snaps
}

func TestAnalyticsSnapshotPosition(t *testing.T) {
	svc, store, snaps := newAnalyticsFixture(t)
	seedPosition(t, store, "snap-1", 10, 17000)
	ctx := context.Background()

	snap, err := svc.SnapshotPosition(ctx, "snap-1")
	if err != nil {
		t.Fatalf("SnapshotPosition: %v", err)
	}
	if want := decimal.RequireFromString("0.97058824"); !snap.HealthFactor.Equal(want) {
		t.Errorf("health factor = %s, want %s", snap.HealthFactor, want)
	}
	if !snap.Liquidatable {
		t.Error("snapshot should be liquidatable")
	}

	stored, err := snaps.ListByPosition(ctx, "snap-1", domain.ListOpts{})
	if err != nil {
		t.Fatalf("ListByPosition: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("got %d stored snapshots, want 1", len(stored))
	}
}

func TestAnalyticsSnapshotPositionNotFound(t *testing.T) {
	svc, _, _ := newAnalyticsFixture(t)
	_, err := svc.SnapshotPosition(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("SnapshotPosition error = %v, want ErrNotFound", err)
	}
}

func TestAnalyticsSystemMetrics(t *testing.T) {
	svc, store, _ := newAnalyticsFixture(t)
	ctx := context.Background()

	// Critical: HF 0.97; warning: HF 0.825 * 20000 / 12000 = 1.375;
	// safe: HF 0.825 * 20000 / 1000 = 16.5; zero debt: sentinel, safe.
	seedPosition(t, store, "m-critical", 10, 17000)
	seedPosition(t, store, "m-warning", 10, 12000)
	seedPosition(t, store, "m-safe", 10, 1000)
	seedPosition(t, store, "m-nodebt", 10, 0)

	m, err := svc.SystemMetrics(ctx)
	if err != nil {
		t.Fatalf("SystemMetrics: %v", err)
	}
	if m.TotalPositions != 4 || m.OpenPositions != 4 {
		t.Errorf("totals = %d/%d, want 4/4", m.TotalPositions, m.OpenPositions)
	}
	if m.LiquidatableCount != 1 {
		t.Errorf("liquidatable = %d, want 1", m.LiquidatableCount)
	}
	if m.CriticalCount != 1 || m.WarningCount != 1 || m.SafeCount != 2 {
		t.Errorf("distribution = critical %d / warning %d / safe %d, want 1/1/2",
			m.CriticalCount, m.WarningCount, m.SafeCount)
	}

	// Average over the three finite health factors only.
	want := decimal.RequireFromString("0.97058824").
		Add(decimal.RequireFromString("1.375")).
		Add(decimal.RequireFromString("16.5")).
		DivRound(decimal.NewFromInt(3), 8)
	if !m.AverageHealthFactor.Equal(want) {
		t.Errorf("average health = %s, want %s", m.AverageHealthFactor, want)
	}

	if want := decimal.NewFromInt(80000); !m.TotalCollateralValue.Equal(want) {
		t.Errorf("total collateral value = %s, want %s", m.TotalCollateralValue, want)
	}
	if want := decimal.NewFromInt(30000); !m.TotalDebtValue.Equal(want) {
		t.Errorf("total debt value = %s, want %s", m.TotalDebtValue, want)
	}
}

func TestAnalyticsSystemMetricsEmpty(t *testing.T) {
	svc, _, _ := newAnalyticsFixture(t)

	m, err := svc.SystemMetrics(context.Background())
	if err != nil {
		t.Fatalf("SystemMetrics empty: %v", err)
	}
	if m.OpenPositions != 0 || m.LiquidatableCount != 0 {
		t.Errorf("empty store produced counts: %+v", m)
	}
	if !m.AverageHealthFactor.IsZero() {
		t.Errorf("average over no positions = %s, want 0", m.AverageHealthFactor)
	}
}
