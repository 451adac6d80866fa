package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/cdpguard/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a new PositionStore backed by the given connection pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const positionSelectCols = `id, owner_address, collateral_symbol, collateral_amount,
	debt_symbol, debt_amount, status, created_at, updated_at`

func scanPositionRow(row pgx.Row) (domain.Position, error) {
	var p domain.Position
	var status string

	err := row.Scan(
		&p.ID, &p.OwnerAddress,
		&p.CollateralSymbol, &p.CollateralAmount,
		&p.DebtSymbol, &p.DebtAmount,
		&status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return domain.Position{}, err
	}
	p.Status = domain.PositionStatus(status)
	return p, nil
}

func scanPositionRows(rows pgx.Rows) ([]domain.Position, error) {
	var positions []domain.Position
	for rows.Next() {
		var p domain.Position
		var status string

		if err := rows.Scan(
			&p.ID, &p.OwnerAddress,
			&p.CollateralSymbol, &p.CollateralAmount,
			&p.DebtSymbol, &p.DebtAmount,
			&status, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		p.Status = domain.PositionStatus(status)
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// uniqueViolation is the PostgreSQL error code for duplicate keys.
const uniqueViolation = "23505"

// Create inserts a new position. A duplicate ID fails with
// domain.ErrAlreadyExists.
func (s *PositionStore) Create(ctx context.Context, p domain.Position) error {
	const query = `
		INSERT INTO positions (
			id, owner_address, collateral_symbol, collateral_amount,
			debt_symbol, debt_amount, status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, NOW(), NOW()
		)`

	_, err := s.pool.Exec(ctx, query,
		p.ID, p.OwnerAddress,
		p.CollateralSymbol, p.CollateralAmount,
		p.DebtSymbol, p.DebtAmount,
		string(p.Status),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("postgres: create position %s: %w", p.ID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: create position %s: %w", p.ID, classifyErr(err))
	}
	return nil
}

// GetByID retrieves a single position by its ID.
func (s *PositionStore) GetByID(ctx context.Context, id string) (domain.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionSelectCols+` FROM positions WHERE id = $1`, id)

	p, err := scanPositionRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("postgres: get position %s: %w", id, classifyErr(err))
	}
	return p, nil
}

// List returns positions with pagination and optional time filtering.
func (s *PositionStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Position, error) {
	return s.list(ctx, "", opts)
}

// ListOpen returns open positions only, for monitoring sweeps.
func (s *PositionStore) ListOpen(ctx context.Context, opts domain.ListOpts) ([]domain.Position, error) {
	return s.list(ctx, string(domain.PositionStatusOpen), opts)
}

func (s *PositionStore) list(ctx context.Context, status string, opts domain.ListOpts) ([]domain.Position, error) {
	query := `SELECT ` + positionSelectCols + ` FROM positions WHERE 1=1`
	args := []any{}
	argIdx := 1

	if status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, status)
		argIdx++
	}
	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at ASC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions: %w", classifyErr(err))
	}
	defer rows.Close()

	positions, err := scanPositionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan positions: %w", classifyErr(err))
	}
	return positions, nil
}

// Update replaces all mutable fields of a position.
func (s *PositionStore) Update(ctx context.Context, p domain.Position) error {
	const query = `
		UPDATE positions SET
			owner_address     = $2,
			collateral_symbol = $3,
			collateral_amount = $4,
			debt_symbol       = $5,
			debt_amount       = $6,
			status            = $7,
			updated_at        = NOW()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		p.ID, p.OwnerAddress,
		p.CollateralSymbol, p.CollateralAmount,
		p.DebtSymbol, p.DebtAmount,
		string(p.Status),
	)
	if err != nil {
		return fmt.Errorf("postgres: update position %s: %w", p.ID, classifyErr(err))
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Count returns the total number of positions.
func (s *PositionStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM positions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count positions: %w", classifyErr(err))
	}
	return count, nil
}

// Liquidate runs fn against the position inside a single transaction with
// the row locked (SELECT ... FOR UPDATE), then writes the mutated position
// and the liquidation record back atomically. Concurrent calls serialize
// on the row lock, so fn always sees the latest committed state and a
// stale eligibility check cannot seize twice.
func (s *PositionStore) Liquidate(ctx context.Context, id string, fn func(domain.Position) (domain.Position, domain.LiquidationResult, error)) (domain.Position, domain.LiquidationResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Position{}, domain.LiquidationResult{}, fmt.Errorf("postgres: begin liquidate %s: %w", id, classifyErr(err))
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT `+positionSelectCols+` FROM positions WHERE id = $1 FOR UPDATE`, id)

	pos, err := scanPositionRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, domain.LiquidationResult{}, domain.ErrNotFound
		}
		return domain.Position{}, domain.LiquidationResult{}, fmt.Errorf("postgres: lock position %s: %w", id, classifyErr(err))
	}

	updated, res, err := fn(pos)
	if err != nil {
		return domain.Position{}, domain.LiquidationResult{}, err
	}

	const updateQuery = `
		UPDATE positions SET
			collateral_amount = $2,
			debt_amount       = $3,
			status            = $4,
			updated_at        = NOW()
		WHERE id = $1`

	if _, err := tx.Exec(ctx, updateQuery,
		updated.ID, updated.CollateralAmount, updated.DebtAmount, string(updated.Status),
	); err != nil {
		return domain.Position{}, domain.LiquidationResult{}, fmt.Errorf("postgres: liquidate update %s: %w", id, classifyErr(err))
	}

	const insertQuery = `
		INSERT INTO liquidations (
			position_id, collateral_seized, debt_repaid, bonus,
			collateral_price, debt_price, health_factor, status, tx_hash, executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	if _, err := tx.Exec(ctx, insertQuery,
		res.PositionID, res.CollateralSeized, res.DebtRepaid, res.Bonus,
		res.CollateralPrice, res.DebtPrice, res.HealthFactor,
		string(res.Status), res.TxHash, res.ExecutedAt,
	); err != nil {
		return domain.Position{}, domain.LiquidationResult{}, fmt.Errorf("postgres: liquidate record %s: %w", id, classifyErr(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Position{}, domain.LiquidationResult{}, fmt.Errorf("postgres: commit liquidate %s: %w", id, classifyErr(err))
	}
	return updated, res, nil
}

// Compile-time interface check.
var _ domain.PositionStore = (*PositionStore)(nil)
