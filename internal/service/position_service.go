package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/cdpguard/internal/domain"
	"github.com/alanyoungcy/cdpguard/internal/metrics"
	"github.com/alanyoungcy/cdpguard/internal/risk"
)

// MaxBatchCreate caps the number of positions accepted by a single batch
// create call.
const MaxBatchCreate = 100

// CreatePositionInput carries the caller-supplied fields for a new
// position.
type CreatePositionInput struct {
	ID               string
	OwnerAddress     string
	CollateralSymbol string
	CollateralAmount decimal.Decimal
	DebtSymbol       string
	DebtAmount       decimal.Decimal
}

// BatchCreateItem is the per-item outcome of a batch create. Exactly one
// of Position and Err is set; Index matches the input order.
type BatchCreateItem struct {
	Index      int
	PositionID string
	Position   *domain.Position
	Err        error
}

// PositionService manages position lifecycle and on-demand health
// evaluation.
type PositionService struct {
	positions domain.PositionStore
	oracle    domain.PriceOracle
	evaluator *risk.Evaluator
	metrics   *metrics.Metrics
	audit     domain.AuditStore
	logger    *slog.Logger
}

// NewPositionService creates a PositionService with all required
// dependencies.
func NewPositionService(
	positions domain.PositionStore,
	oracle domain.PriceOracle,
	evaluator *risk.Evaluator,
	m *metrics.Metrics,
	audit domain.AuditStore,
	logger *slog.Logger,
) *PositionService {
	return &PositionService{
		positions: positions,
		oracle:    oracle,
		evaluator: evaluator,
		metrics:   m,
		audit:     audit,
		logger:    logger.With(slog.String("component", "position_service")),
	}
}

// Create validates and persists a new position. The owner address must be
// a 0x-prefixed hex address (stored lowercase); symbols must be in the
// oracle's supported set (stored uppercase); both amounts must be >= 0.
func (s *PositionService) Create(ctx context.Context, in CreatePositionInput) (domain.Position, error) {
	pos, err := s.buildPosition(in)
	if err != nil {
		return domain.Position{}, err
	}

	if err := s.positions.Create(ctx, pos); err != nil {
		return domain.Position{}, fmt.Errorf("position_service: create %s: %w", pos.ID, err)
	}

	if err := s.audit.Log(ctx, "position.created", map[string]any{
		"position_id":       pos.ID,
		"owner_address":     pos.OwnerAddress,
		"collateral_symbol": pos.CollateralSymbol,
		"debt_symbol":       pos.DebtSymbol,
	}); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("position_id", pos.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "position created",
		slog.String("position_id", pos.ID),
		slog.String("owner", pos.OwnerAddress),
	)

	created, err := s.positions.GetByID(ctx, pos.ID)
	if err != nil {
		// The insert succeeded; fall back to the input view.
		return pos, nil
	}
	return created, nil
}

// BatchCreate applies Create to each input independently. Per-item
// failures are reported alongside successes; output order and count match
// the input.
func (s *PositionService) BatchCreate(ctx context.Context, inputs []CreatePositionInput) ([]BatchCreateItem, error) {
	if len(inputs) > MaxBatchCreate {
		return nil, fmt.Errorf("position_service: batch of %d exceeds limit %d: %w",
			len(inputs), MaxBatchCreate, domain.ErrValidation)
	}

	items := make([]BatchCreateItem, len(inputs))
	for i, in := range inputs {
		items[i] = BatchCreateItem{Index: i, PositionID: in.ID}
		pos, err := s.Create(ctx, in)
		if err != nil {
			items[i].Err = err
			continue
		}
		items[i].Position = &pos
	}
	return items, nil
}

// Get returns a single position by ID.
func (s *PositionService) Get(ctx context.Context, id string) (domain.Position, error) {
	pos, err := s.positions.GetByID(ctx, id)
	if err != nil {
		return domain.Position{}, fmt.Errorf("position_service: get %s: %w", id, err)
	}
	return pos, nil
}

// List returns positions with pagination.
func (s *PositionService) List(ctx context.Context, opts domain.ListOpts) ([]domain.Position, error) {
	positions, err := s.positions.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("position_service: list: %w", err)
	}
	return positions, nil
}

// EvaluateHealth computes the current health assessment for a position
// using fresh oracle quotes.
func (s *PositionService) EvaluateHealth(ctx context.Context, id string) (domain.HealthAssessment, error) {
	pos, err := s.positions.GetByID(ctx, id)
	if err != nil {
		return domain.HealthAssessment{}, fmt.Errorf("position_service: get %s: %w", id, err)
	}

	quotes, err := s.oracle.Quotes(ctx, []string{pos.CollateralSymbol, pos.DebtSymbol})
	if err != nil {
		return domain.HealthAssessment{}, fmt.Errorf("position_service: quotes for %s: %w", id, err)
	}

	assessment := s.evaluator.Evaluate(pos,
		quotes[pos.CollateralSymbol].Price,
		quotes[pos.DebtSymbol].Price,
	)
	s.metrics.EvaluationsTotal.Inc()
	return assessment, nil
}

// buildPosition validates the input and normalizes it into a Position.
func (s *PositionService) buildPosition(in CreatePositionInput) (domain.Position, error) {
	id := strings.TrimSpace(in.ID)
	if id == "" {
		return domain.Position{}, fmt.Errorf("position_service: position id must not be empty: %w", domain.ErrValidation)
	}

	owner := strings.TrimSpace(in.OwnerAddress)
	if !common.IsHexAddress(owner) {
		return domain.Position{}, fmt.Errorf("position_service: owner address %q is not a valid hex address: %w",
			owner, domain.ErrValidation)
	}

	collateralSym := strings.ToUpper(strings.TrimSpace(in.CollateralSymbol))
	debtSym := strings.ToUpper(strings.TrimSpace(in.DebtSymbol))
	if !s.oracle.Supported(collateralSym) {
		return domain.Position{}, fmt.Errorf("position_service: collateral symbol %q: %w", collateralSym, domain.ErrUnknownSymbol)
	}
	if !s.oracle.Supported(debtSym) {
		return domain.Position{}, fmt.Errorf("position_service: debt symbol %q: %w", debtSym, domain.ErrUnknownSymbol)
	}

	if in.CollateralAmount.IsNegative() {
		return domain.Position{}, fmt.Errorf("position_service: collateral amount must be >= 0: %w", domain.ErrValidation)
	}
	if in.DebtAmount.IsNegative() {
		return domain.Position{}, fmt.Errorf("position_service: debt amount must be >= 0: %w", domain.ErrValidation)
	}

	return domain.Position{
		ID:               id,
		OwnerAddress:     strings.ToLower(owner),
		CollateralSymbol: collateralSym,
		CollateralAmount: in.CollateralAmount,
		DebtSymbol:       debtSym,
		DebtAmount:       in.DebtAmount,
		Status:           domain.PositionStatusOpen,
	}, nil
}
