package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/cdpguard/internal/domain"
	"github.com/alanyoungcy/cdpguard/internal/metrics"
	"github.com/alanyoungcy/cdpguard/internal/risk"
)

// Health distribution thresholds for the system-wide view.
var (
	safeFloor    = decimal.NewFromFloat(1.5)
	criticalCeil = decimal.NewFromInt(1)
)

// systemMetricsPageSize bounds each page of open positions scanned while
// aggregating system metrics.
const systemMetricsPageSize = 500

// SystemMetrics is an aggregate view over all open positions at current
// prices.
type SystemMetrics struct {
	TotalPositions       int64
	OpenPositions        int
	LiquidatableCount    int
	SafeCount            int
	WarningCount         int
	CriticalCount        int
	AverageHealthFactor  decimal.Decimal
	TotalCollateralValue decimal.Decimal
	TotalDebtValue       decimal.Decimal
}

// AnalyticsService persists risk snapshots and aggregates system-wide
// health.
type AnalyticsService struct {
	positions domain.PositionStore
	snapshots domain.SnapshotStore
	oracle    domain.PriceOracle
	evaluator *risk.Evaluator
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewAnalyticsService creates an AnalyticsService.
func NewAnalyticsService(
	positions domain.PositionStore,
	snapshots domain.SnapshotStore,
	oracle domain.PriceOracle,
	evaluator *risk.Evaluator,
	m *metrics.Metrics,
	logger *slog.Logger,
) *AnalyticsService {
	return &AnalyticsService{
		positions: positions,
		snapshots: snapshots,
		oracle:    oracle,
		evaluator: evaluator,
		metrics:   m,
		logger:    logger.With(slog.String("component", "analytics_service")),
	}
}

// SnapshotPosition evaluates a position at current prices and persists
// the result as a risk snapshot.
func (s *AnalyticsService) SnapshotPosition(ctx context.Context, id string) (domain.RiskSnapshot, error) {
	pos, err := s.positions.GetByID(ctx, id)
	if err != nil {
		return domain.RiskSnapshot{}, fmt.Errorf("analytics_service: get %s: %w", id, err)
	}

	quotes, err := s.oracle.Quotes(ctx, []string{pos.CollateralSymbol, pos.DebtSymbol})
	if err != nil {
		return domain.RiskSnapshot{}, fmt.Errorf("analytics_service: quotes for %s: %w", id, err)
	}

	assessment := s.evaluator.Evaluate(pos,
		quotes[pos.CollateralSymbol].Price,
		quotes[pos.DebtSymbol].Price,
	)
	s.metrics.EvaluationsTotal.Inc()

	snap := domain.RiskSnapshot{
		PositionID:      pos.ID,
		HealthFactor:    assessment.HealthFactor,
		CollateralValue: assessment.CollateralValue,
		DebtValue:       assessment.DebtValue,
		Liquidatable:    assessment.Liquidatable,
		CreatedAt:       assessment.EvaluatedAt,
	}
	if err := s.snapshots.Insert(ctx, snap); err != nil {
		return domain.RiskSnapshot{}, fmt.Errorf("analytics_service: insert snapshot %s: %w", id, err)
	}
	return snap, nil
}

// ListSnapshots returns persisted snapshots for a position, newest first.
func (s *AnalyticsService) ListSnapshots(ctx context.Context, positionID string, opts domain.ListOpts) ([]domain.RiskSnapshot, error) {
	snaps, err := s.snapshots.ListByPosition(ctx, positionID, opts)
	if err != nil {
		return nil, fmt.Errorf("analytics_service: list snapshots %s: %w", positionID, err)
	}
	return snaps, nil
}

// SystemMetrics evaluates every open position at current prices and
// aggregates counts, value totals and the health distribution. Positions
// with zero debt carry the sentinel max health factor; they count as safe
// and are excluded from the average.
func (s *AnalyticsService) SystemMetrics(ctx context.Context) (SystemMetrics, error) {
	total, err := s.positions.Count(ctx)
	if err != nil {
		return SystemMetrics{}, fmt.Errorf("analytics_service: count: %w", err)
	}

	out := SystemMetrics{
		TotalPositions:       total,
		AverageHealthFactor:  decimal.Zero,
		TotalCollateralValue: decimal.Zero,
		TotalDebtValue:       decimal.Zero,
	}

	var (
		finiteSum   = decimal.Zero
		finiteCount int64
		offset      int
	)
	for {
		page, err := s.positions.ListOpen(ctx, domain.ListOpts{Limit: systemMetricsPageSize, Offset: offset})
		if err != nil {
			return SystemMetrics{}, fmt.Errorf("analytics_service: list open: %w", err)
		}
		if len(page) == 0 {
			break
		}

		for _, pos := range page {
			quotes, err := s.oracle.Quotes(ctx, []string{pos.CollateralSymbol, pos.DebtSymbol})
			if err != nil {
				s.logger.WarnContext(ctx, "skipping position in system metrics",
					slog.String("position_id", pos.ID),
					slog.String("error", err.Error()),
				)
				continue
			}
			assessment := s.evaluator.Evaluate(pos,
				quotes[pos.CollateralSymbol].Price,
				quotes[pos.DebtSymbol].Price,
			)

			out.OpenPositions++
			out.TotalCollateralValue = out.TotalCollateralValue.Add(assessment.CollateralValue)
			out.TotalDebtValue = out.TotalDebtValue.Add(assessment.DebtValue)

			if assessment.Liquidatable {
				out.LiquidatableCount++
			}
			switch {
			case assessment.HealthFactor.LessThan(criticalCeil):
				out.CriticalCount++
			case assessment.HealthFactor.LessThan(safeFloor):
				out.WarningCount++
			default:
				out.SafeCount++
			}
			if !assessment.HealthFactor.Equal(domain.MaxHealthFactor) {
				finiteSum = finiteSum.Add(assessment.HealthFactor)
				finiteCount++
			}
		}

		offset += len(page)
		if len(page) < systemMetricsPageSize {
			break
		}
	}

	if finiteCount > 0 {
		out.AverageHealthFactor = finiteSum.DivRound(decimal.NewFromInt(finiteCount), 8)
	}
	return out, nil
}
