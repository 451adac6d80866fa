package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/cdpguard/internal/domain"
)

// ChainEventStore implements domain.ChainEventStore using PostgreSQL.
type ChainEventStore struct {
	pool *pgxpool.Pool
}

// NewChainEventStore creates a new ChainEventStore backed by the given
// connection pool.
func NewChainEventStore(pool *pgxpool.Pool) *ChainEventStore {
	return &ChainEventStore{pool: pool}
}

// InsertBatch inserts a batch of events. Blocks already indexed are skipped
// via ON CONFLICT, making re-indexing a range idempotent.
func (s *ChainEventStore) InsertBatch(ctx context.Context, events []domain.ChainEvent) error {
	if len(events) == 0 {
		return nil
	}

	const query = `
		INSERT INTO chain_events (block_number, tx_hash, kind, payload, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (block_number) DO NOTHING`

	for _, e := range events {
		payloadJSON, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("postgres: marshal event payload block %d: %w", e.BlockNumber, err)
		}
		if _, err := s.pool.Exec(ctx, query,
			int64(e.BlockNumber), e.TxHash, e.Kind, payloadJSON,
		); err != nil {
			return fmt.Errorf("postgres: insert event block %d: %w", e.BlockNumber, classifyErr(err))
		}
	}
	return nil
}

// List returns events with pagination, newest blocks first.
func (s *ChainEventStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.ChainEvent, error) {
	query := `SELECT id, block_number, tx_hash, kind, payload, created_at
		FROM chain_events WHERE 1=1`
	args := []any{}
	argIdx := 1

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

	query += " ORDER BY block_number DESC"

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
		return nil, fmt.Errorf("postgres: list events: %w", classifyErr(err))
	}
	defer rows.Close()

	var events []domain.ChainEvent
	for rows.Next() {
		var e domain.ChainEvent
		var blockNumber int64
		var payloadJSON []byte

		if err := rows.Scan(&e.ID, &blockNumber, &e.TxHash, &e.Kind, &payloadJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan event: %w", classifyErr(err))
		}
		e.BlockNumber = uint64(blockNumber)
		if payloadJSON != nil {
			if err := json.Unmarshal(payloadJSON, &e.Payload); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal event payload: %w", err)
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list events rows: %w", classifyErr(err))
	}
	return events, nil
}

// MaxBlockNumber returns the highest indexed block, or 0 when the table is
// empty.
func (s *ChainEventStore) MaxBlockNumber(ctx context.Context) (uint64, error) {
	var max int64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(block_number), 0) FROM chain_events`).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("postgres: max block number: %w", classifyErr(err))
	}
	return uint64(max), nil
}

// Compile-time interface check.
var _ domain.ChainEventStore = (*ChainEventStore)(nil)
