package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// PositionStore persists collateralized debt positions.
type PositionStore interface {
	Create(ctx context.Context, pos Position) error
	GetByID(ctx context.Context, id string) (Position, error)
	List(ctx context.Context, opts ListOpts) ([]Position, error)
	ListOpen(ctx context.Context, opts ListOpts) ([]Position, error)
	Update(ctx context.Context, pos Position) error
	Count(ctx context.Context) (int64, error)

	// Liquidate runs fn against the current row inside a single
	// transaction with the row locked, then writes the mutated position
	// back. Concurrent calls on the same ID serialize; fn sees the latest
	// committed state, so a stale eligibility check cannot double-seize.
	Liquidate(ctx context.Context, id string, fn func(Position) (Position, LiquidationResult, error)) (Position, LiquidationResult, error)
}

// LiquidationStore persists executed liquidations.
type LiquidationStore interface {
	Insert(ctx context.Context, res LiquidationResult) error
	ListRecent(ctx context.Context, limit int) ([]LiquidationResult, error)
}

// SnapshotStore persists risk snapshots.
type SnapshotStore interface {
	Insert(ctx context.Context, snap RiskSnapshot) error
	ListByPosition(ctx context.Context, positionID string, opts ListOpts) ([]RiskSnapshot, error)
	ListBefore(ctx context.Context, before time.Time) ([]RiskSnapshot, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// ChainEventStore persists simulated chain events.
type ChainEventStore interface {
	InsertBatch(ctx context.Context, events []ChainEvent) error
	List(ctx context.Context, opts ListOpts) ([]ChainEvent, error)
	MaxBlockNumber(ctx context.Context) (uint64, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
	ListBefore(ctx context.Context, before time.Time) ([]AuditEntry, error)
}
