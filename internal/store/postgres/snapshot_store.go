package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/cdpguard/internal/domain"
)

// SnapshotStore implements domain.SnapshotStore using PostgreSQL.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

// NewSnapshotStore creates a new SnapshotStore backed by the given
// connection pool.
func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

const snapshotSelectCols = `id, position_id, health_factor, collateral_value,
	debt_value, liquidatable, created_at`

// Insert appends a risk snapshot.
func (s *SnapshotStore) Insert(ctx context.Context, snap domain.RiskSnapshot) error {
	const query = `
		INSERT INTO risk_snapshots (
			position_id, health_factor, collateral_value, debt_value, liquidatable, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`

	createdAt := snap.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, query,
		snap.PositionID, snap.HealthFactor,
		snap.CollateralValue, snap.DebtValue,
		snap.Liquidatable, createdAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert snapshot for %s: %w", snap.PositionID, classifyErr(err))
	}
	return nil
}

// ListByPosition returns snapshots for a position, newest first.
func (s *SnapshotStore) ListByPosition(ctx context.Context, positionID string, opts domain.ListOpts) ([]domain.RiskSnapshot, error) {
	query := `SELECT ` + snapshotSelectCols + ` FROM risk_snapshots WHERE position_id = $1`
	args := []any{positionID}
	argIdx := 2

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

	query += " ORDER BY created_at DESC"

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
		return nil, fmt.Errorf("postgres: list snapshots for %s: %w", positionID, classifyErr(err))
	}
	defer rows.Close()

	return scanSnapshotRows(rows)
}

// ListBefore returns all snapshots created strictly before the cutoff, for
// archival.
func (s *SnapshotStore) ListBefore(ctx context.Context, before time.Time) ([]domain.RiskSnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+snapshotSelectCols+` FROM risk_snapshots WHERE created_at < $1 ORDER BY created_at ASC`,
		before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list snapshots before %s: %w", before, classifyErr(err))
	}
	defer rows.Close()

	return scanSnapshotRows(rows)
}

// DeleteBefore removes snapshots created strictly before the cutoff and
// returns the number deleted. Called after a verified archive upload.
func (s *SnapshotStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM risk_snapshots WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete snapshots before %s: %w", before, classifyErr(err))
	}
	return tag.RowsAffected(), nil
}

func scanSnapshotRows(rows pgx.Rows) ([]domain.RiskSnapshot, error) {
	var snaps []domain.RiskSnapshot
	for rows.Next() {
		var snap domain.RiskSnapshot
		if err := rows.Scan(
			&snap.ID, &snap.PositionID, &snap.HealthFactor,
			&snap.CollateralValue, &snap.DebtValue,
			&snap.Liquidatable, &snap.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan snapshot: %w", classifyErr(err))
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list snapshots rows: %w", classifyErr(err))
	}
	return snaps, nil
}

// Compile-time interface check.
var _ domain.SnapshotStore = (*SnapshotStore)(nil)
