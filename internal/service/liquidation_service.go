package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/cdpguard/internal/domain"
	"github.com/alanyoungcy/cdpguard/internal/liquidation"
	"github.com/alanyoungcy/cdpguard/internal/metrics"
	"github.com/alanyoungcy/cdpguard/internal/risk"
)

const (
	// MaxBatchSimulate caps the number of positions per batch simulate.
	MaxBatchSimulate = 50

	// MaxBatchExecute caps the number of positions per batch execute.
	MaxBatchExecute = 20

	// simulateParallelism bounds concurrent oracle lookups during batch
	// simulation.
	simulateParallelism = 8

	// channelLiquidations is the pub/sub channel for executed liquidations.
	channelLiquidations = "liquidation.executed"

	// streamLiquidations is the durable stream for executed liquidations.
	streamLiquidations = "events:liquidations"
)

// BatchLiquidationItem is the per-item outcome of a batch simulate or
// execute. Exactly one of Result and Err is set; Index matches the input
// order.
type BatchLiquidationItem struct {
	Index      int
	PositionID string
	Result     *domain.LiquidationResult
	Err        error
}

// LiquidationService simulates and executes full liquidations.
type LiquidationService struct {
	positions    domain.PositionStore
	liquidations domain.LiquidationStore
	oracle       domain.PriceOracle
	evaluator    *risk.Evaluator
	engine       *liquidation.Engine
	locks        domain.LockManager
	lockTTL      time.Duration
	bus          domain.SignalBus
	audit        domain.AuditStore
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// NewLiquidationService creates a LiquidationService. locks may be nil, in
// which case execution relies solely on the store's row locking.
func NewLiquidationService(
	positions domain.PositionStore,
	liquidations domain.LiquidationStore,
	oracle domain.PriceOracle,
	evaluator *risk.Evaluator,
	engine *liquidation.Engine,
	locks domain.LockManager,
	lockTTL time.Duration,
	bus domain.SignalBus,
	audit domain.AuditStore,
	m *metrics.Metrics,
	logger *slog.Logger,
) *LiquidationService {
	return &LiquidationService{
		positions:    positions,
		liquidations: liquidations,
		oracle:       oracle,
		evaluator:    evaluator,
		engine:       engine,
		locks:        locks,
		lockTTL:      lockTTL,
		bus:          bus,
		audit:        audit,
		metrics:      m,
		logger:       logger.With(slog.String("component", "liquidation_service")),
	}
}

// Simulate computes the liquidation outcome for a position without
// mutating anything. A healthy position yields a not_liquidatable result,
// not an error.
func (s *LiquidationService) Simulate(ctx context.Context, id string) (domain.LiquidationResult, error) {
	pos, err := s.positions.GetByID(ctx, id)
	if err != nil {
		return domain.LiquidationResult{}, fmt.Errorf("liquidation_service: get %s: %w", id, err)
	}

	quotes, err := s.oracle.Quotes(ctx, []string{pos.CollateralSymbol, pos.DebtSymbol})
	if err != nil {
		return domain.LiquidationResult{}, fmt.Errorf("liquidation_service: quotes for %s: %w", id, err)
	}
	collateralPrice := quotes[pos.CollateralSymbol].Price
	debtPrice := quotes[pos.DebtSymbol].Price

	assessment := s.evaluator.Evaluate(pos, collateralPrice, debtPrice)
	s.metrics.EvaluationsTotal.Inc()

	return s.engine.Plan(pos, assessment, collateralPrice, debtPrice), nil
}

// Execute performs a full liquidation. Eligibility is re-checked against
// fresh prices inside the store transaction, with the row locked, so two
// concurrent executes on the same position produce exactly one success.
// The loser fails with domain.ErrNotLiquidatable (its debt is already
// zero) or domain.ErrLockHeld (fast-path rejection).
func (s *LiquidationService) Execute(ctx context.Context, id string) (domain.LiquidationResult, error) {
	if s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, "liquidate:"+id, s.lockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				return domain.LiquidationResult{}, fmt.Errorf("liquidation_service: execute %s: %w", id, domain.ErrLockHeld)
			}
			// Lock infrastructure failure: proceed on the store's row lock
			// alone rather than refusing service.
			s.logger.WarnContext(ctx, "lock acquire failed, relying on row lock",
				slog.String("position_id", id),
				slog.String("error", err.Error()),
			)
		} else {
			defer unlock()
		}
	}

	_, res, err := s.positions.Liquidate(ctx, id, func(pos domain.Position) (domain.Position, domain.LiquidationResult, error) {
		if pos.Status != domain.PositionStatusOpen || pos.DebtAmount.IsZero() {
			return domain.Position{}, domain.LiquidationResult{},
				fmt.Errorf("liquidation_service: execute %s: %w", id, domain.ErrNotLiquidatable)
		}

		quotes, err := s.oracle.Quotes(ctx, []string{pos.CollateralSymbol, pos.DebtSymbol})
		if err != nil {
			return domain.Position{}, domain.LiquidationResult{},
				fmt.Errorf("liquidation_service: quotes for %s: %w", id, err)
		}
		collateralPrice := quotes[pos.CollateralSymbol].Price
		debtPrice := quotes[pos.DebtSymbol].Price

		assessment := s.evaluator.Evaluate(pos, collateralPrice, debtPrice)
		s.metrics.EvaluationsTotal.Inc()
		if !assessment.Liquidatable {
			return domain.Position{}, domain.LiquidationResult{},
				fmt.Errorf("liquidation_service: execute %s at health %s: %w",
					id, assessment.HealthFactor, domain.ErrNotLiquidatable)
		}

		res := s.engine.Plan(pos, assessment, collateralPrice, debtPrice)
		res.TxHash = liquidationTxHash(pos.ID, res.ExecutedAt)
		return liquidation.Apply(pos, res), res, nil
	})
	if err != nil {
		return domain.LiquidationResult{}, err
	}

	s.metrics.LiquidationsTotal.WithLabelValues(string(res.Status)).Inc()
	s.publishExecuted(ctx, res)

	s.logger.InfoContext(ctx, "liquidation executed",
		slog.String("position_id", id),
		slog.String("status", string(res.Status)),
		slog.String("collateral_seized", res.CollateralSeized.String()),
		slog.String("debt_repaid", res.DebtRepaid.String()),
		slog.String("tx_hash", res.TxHash),
	)
	return res, nil
}

// BatchSimulate runs Simulate over each position independently with
// bounded parallelism. Output order and count match the input; per-item
// failures never abort the batch.
func (s *LiquidationService) BatchSimulate(ctx context.Context, ids []string) ([]BatchLiquidationItem, error) {
	if len(ids) > MaxBatchSimulate {
		return nil, fmt.Errorf("liquidation_service: batch of %d exceeds limit %d: %w",
			len(ids), MaxBatchSimulate, domain.ErrValidation)
	}

	items := make([]BatchLiquidationItem, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(simulateParallelism)
	for i, id := range ids {
		items[i] = BatchLiquidationItem{Index: i, PositionID: id}
		g.Go(func() error {
			res, err := s.Simulate(gctx, id)
			if err != nil {
				items[i].Err = err
				return nil
			}
			items[i].Result = &res
			return nil
		})
	}
	// Workers never return errors; Wait only observes context cancellation.
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("liquidation_service: batch simulate: %w", err)
	}
	return items, nil
}

// BatchExecute runs Execute over each position sequentially so lock and
// transaction ordering stays simple. Output order and count match the
// input.
func (s *LiquidationService) BatchExecute(ctx context.Context, ids []string) ([]BatchLiquidationItem, error) {
	if len(ids) > MaxBatchExecute {
		return nil, fmt.Errorf("liquidation_service: batch of %d exceeds limit %d: %w",
			len(ids), MaxBatchExecute, domain.ErrValidation)
	}

	items := make([]BatchLiquidationItem, len(ids))
	for i, id := range ids {
		items[i] = BatchLiquidationItem{Index: i, PositionID: id}
		res, err := s.Execute(ctx, id)
		if err != nil {
			items[i].Err = err
			continue
		}
		items[i].Result = &res
	}
	return items, nil
}

// ListRecent returns the most recently executed liquidations.
func (s *LiquidationService) ListRecent(ctx context.Context, limit int) ([]domain.LiquidationResult, error) {
	results, err := s.liquidations.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("liquidation_service: list recent: %w", err)
	}
	return results, nil
}

// publishExecuted fans an executed liquidation out to the audit log, the
// pub/sub channel and the durable stream. All three are best-effort.
func (s *LiquidationService) publishExecuted(ctx context.Context, res domain.LiquidationResult) {
	if err := s.audit.Log(ctx, "liquidation.executed", map[string]any{
		"position_id":       res.PositionID,
		"collateral_seized": res.CollateralSeized.String(),
		"debt_repaid":       res.DebtRepaid.String(),
		"bonus":             res.Bonus.String(),
		"status":            string(res.Status),
		"tx_hash":           res.TxHash,
	}); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("position_id", res.PositionID),
			slog.String("error", err.Error()),
		)
	}

	payload, err := json.Marshal(map[string]any{
		"type":              "liquidation_executed",
		"position_id":       res.PositionID,
		"collateral_seized": res.CollateralSeized.String(),
		"debt_repaid":       res.DebtRepaid.String(),
		"status":            string(res.Status),
		"tx_hash":           res.TxHash,
		"executed_at":       res.ExecutedAt.Format(time.RFC3339),
	})
	if err != nil {
		return
	}

	if err := s.bus.Publish(ctx, channelLiquidations, payload); err != nil {
		s.logger.WarnContext(ctx, "bus publish failed",
			slog.String("position_id", res.PositionID),
			slog.String("error", err.Error()),
		)
	}
	if err := s.bus.StreamAppend(ctx, streamLiquidations, payload); err != nil {
		s.logger.WarnContext(ctx, "stream append failed",
			slog.String("position_id", res.PositionID),
			slog.String("error", err.Error()),
		)
	}
}

// liquidationTxHash derives a deterministic simulated transaction hash for
// an executed liquidation.
func liquidationTxHash(positionID string, executedAt time.Time) string {
	return ethcrypto.Keccak256Hash(
		[]byte(positionID),
		[]byte(executedAt.UTC().Format(time.RFC3339Nano)),
	).Hex()
}
