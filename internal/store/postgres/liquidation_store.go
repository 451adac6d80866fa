package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/cdpguard/internal/domain"
)

// LiquidationStore implements domain.LiquidationStore using PostgreSQL.
type LiquidationStore struct {
	pool *pgxpool.Pool
}

// NewLiquidationStore creates a new LiquidationStore backed by the given
// connection pool.
func NewLiquidationStore(pool *pgxpool.Pool) *LiquidationStore {
	return &LiquidationStore{pool: pool}
}

// Insert records an executed liquidation. The execute path normally writes
// the record inside the position transaction; Insert exists for replaying
// externally observed liquidations.
func (s *LiquidationStore) Insert(ctx context.Context, res domain.LiquidationResult) error {
	const query = `
		INSERT INTO liquidations (
			position_id, collateral_seized, debt_repaid, bonus,
			collateral_price, debt_price, health_factor, status, tx_hash, executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.pool.Exec(ctx, query,
		res.PositionID, res.CollateralSeized, res.DebtRepaid, res.Bonus,
		res.CollateralPrice, res.DebtPrice, res.HealthFactor,
		string(res.Status), res.TxHash, res.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert liquidation %s: %w", res.PositionID, classifyErr(err))
	}
	return nil
}

// ListRecent returns the most recently executed liquidations.
func (s *LiquidationStore) ListRecent(ctx context.Context, limit int) ([]domain.LiquidationResult, error) {
	if limit <= 0 {
		limit = 50
	}

	const query = `
		SELECT position_id, collateral_seized, debt_repaid, bonus,
		       collateral_price, debt_price, health_factor, status, tx_hash, executed_at
		FROM liquidations
		ORDER BY executed_at DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list liquidations: %w", classifyErr(err))
	}
	defer rows.Close()

	var results []domain.LiquidationResult
	for rows.Next() {
		var res domain.LiquidationResult
		var status string

		if err := rows.Scan(
			&res.PositionID, &res.CollateralSeized, &res.DebtRepaid, &res.Bonus,
			&res.CollateralPrice, &res.DebtPrice, &res.HealthFactor,
			&status, &res.TxHash, &res.ExecutedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan liquidation: %w", classifyErr(err))
		}
		res.Status = domain.LiquidationStatus(status)
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list liquidations rows: %w", classifyErr(err))
	}
	return results, nil
}

// Compile-time interface check.
var _ domain.LiquidationStore = (*LiquidationStore)(nil)
