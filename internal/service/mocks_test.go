package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/cdpguard/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memPositionStore is an in-memory PositionStore. Liquidate serializes on
// the store mutex the way the real store serializes on the row lock.
type memPositionStore struct {
	mu        sync.Mutex
	positions map[string]domain.Position
	createErr error
	getErr    error
}

func newMemPositionStore() *memPositionStore {
	return &memPositionStore{positions: make(map[string]domain.Position)}
}

func (m *memPositionStore) Create(_ context.Context, pos domain.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.positions[pos.ID]; ok {
		return domain.ErrAlreadyExists
	}
	now := time.Now().UTC()
	pos.CreatedAt = now
	pos.UpdatedAt = now
	m.positions[pos.ID] = pos
	return nil
}

func (m *memPositionStore) GetByID(_ context.Context, id string) (domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return domain.Position{}, m.getErr
	}
	pos, ok := m.positions[id]
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	return pos, nil
}

func (m *memPositionStore) List(_ context.Context, opts domain.ListOpts) ([]domain.Position, error) {
	return m.listFiltered(opts, "")
}

func (m *memPositionStore) ListOpen(_ context.Context, opts domain.ListOpts) ([]domain.Position, error) {
	return m.listFiltered(opts, domain.PositionStatusOpen)
}

func (m *memPositionStore) listFiltered(opts domain.ListOpts, status domain.PositionStatus) ([]domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []domain.Position
	for _, pos := range m.positions {
		if status != "" && pos.Status != status {
			continue
		}
		all = append(all, pos)
	}
	if opts.Offset >= len(all) {
		return nil, nil
	}
	all = all[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(all) {
		all = all[:opts.Limit]
	}
	return all, nil
}

func (m *memPositionStore) Update(_ context.Context, pos domain.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.positions[pos.ID]; !ok {
		return domain.ErrNotFound
	}
	m.positions[pos.ID] = pos
	return nil
}

func (m *memPositionStore) Count(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.positions)), nil
}

func (m *memPositionStore) Liquidate(_ context.Context, id string, fn func(domain.Position) (domain.Position, domain.LiquidationResult, error)) (domain.Position, domain.LiquidationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.positions[id]
	if !ok {
		return domain.Position{}, domain.LiquidationResult{}, domain.ErrNotFound
	}
	updated, res, err := fn(pos)
	if err != nil {
		return domain.Position{}, domain.LiquidationResult{}, err
	}
	m.positions[id] = updated
	return updated, res, nil
}

type memLiquidationStore struct {
	mu      sync.Mutex
	results []domain.LiquidationResult
}

func (m *memLiquidationStore) Insert(_ context.Context, res domain.LiquidationResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, res)
	return nil
}

func (m *memLiquidationStore) ListRecent(_ context.Context, limit int) ([]domain.LiquidationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.LiquidationResult, len(m.results))
	copy(out, m.results)
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

type memAuditStore struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
	logErr  error
}

func (m *memAuditStore) Log(_ context.Context, event string, detail map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.logErr != nil {
		return m.logErr
	}
	m.entries = append(m.entries, domain.AuditEntry{
		ID:        int64(len(m.entries) + 1),
		Event:     event,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (m *memAuditStore) List(_ context.Context, _ domain.ListOpts) ([]domain.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.AuditEntry, len(m.entries))
	copy(out, m.entries)
	return out, nil
}

func (m *memAuditStore) ListBefore(_ context.Context, before time.Time) ([]domain.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AuditEntry
	for _, e := range m.entries {
		if e.CreatedAt.Before(before) {
			out = append(out, e)
		}
	}
	return out, nil
}

type memSnapshotStore struct {
	mu    sync.Mutex
	snaps []domain.RiskSnapshot
}

func (m *memSnapshotStore) Insert(_ context.Context, snap domain.RiskSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap.ID = int64(len(m.snaps) + 1)
	m.snaps = append(m.snaps, snap)
	return nil
}

func (m *memSnapshotStore) ListByPosition(_ context.Context, positionID string, _ domain.ListOpts) ([]domain.RiskSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.RiskSnapshot
	for _, s := range m.snaps {
		if s.PositionID == positionID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSnapshotStore) ListBefore(_ context.Context, before time.Time) ([]domain.RiskSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.RiskSnapshot
	for _, s := range m.snaps {
		if s.CreatedAt.Before(before) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSnapshotStore) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []domain.RiskSnapshot
	var deleted int64
	for _, s := range m.snaps {
		if s.CreatedAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, s)
	}
	m.snaps = kept
	return deleted, nil
}

type memEventStore struct {
	mu     sync.Mutex
	byNum  map[uint64]domain.ChainEvent
	nextID int64
}

func newMemEventStore() *memEventStore {
	return &memEventStore{byNum: make(map[uint64]domain.ChainEvent), nextID: 1}
}

func (m *memEventStore) InsertBatch(_ context.Context, events []domain.ChainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range events {
		if _, ok := m.byNum[ev.BlockNumber]; ok {
			continue
		}
		ev.ID = m.nextID
		m.nextID++
		m.byNum[ev.BlockNumber] = ev
	}
	return nil
}

func (m *memEventStore) List(_ context.Context, opts domain.ListOpts) ([]domain.ChainEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ChainEvent
	for _, ev := range m.byNum {
		out = append(out, ev)
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *memEventStore) MaxBlockNumber(_ context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var max uint64
	for num := range m.byNum {
		if num > max {
			max = num
		}
	}
	return max, nil
}

// stubBus records published payloads.
type stubBus struct {
	mu        sync.Mutex
	published map[string][][]byte
	streamed  map[string][][]byte
}

func newStubBus() *stubBus {
	return &stubBus{
		published: make(map[string][][]byte),
		streamed:  make(map[string][][]byte),
	}
}

func (b *stubBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *stubBus) Subscribe(_ context.Context, _ string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (b *stubBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streamed[stream] = append(b.streamed[stream], payload)
	return nil
}

func (b *stubBus) StreamRead(_ context.Context, _ string, _ string, _ int) ([]domain.StreamMessage, error) {
	return nil, nil
}

// stubLocks is an in-process LockManager. A held key fails with
// ErrLockHeld until released.
type stubLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func newStubLocks() *stubLocks {
	return &stubLocks{held: make(map[string]bool)}
}

func (l *stubLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, domain.ErrLockHeld
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}, nil
}

// stubOracle serves fixed prices so assessments are deterministic.
type stubOracle struct {
	prices map[string]decimal.Decimal
}

func newStubOracle(prices map[string]float64) *stubOracle {
	o := &stubOracle{prices: make(map[string]decimal.Decimal, len(prices))}
	for sym, p := range prices {
		o.prices[strings.ToUpper(sym)] = decimal.NewFromFloat(p)
	}
	return o
}

func (o *stubOracle) Quote(_ context.Context, symbol string) (domain.PriceQuote, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	price, ok := o.prices[sym]
	if !ok {
		return domain.PriceQuote{}, fmt.Errorf("oracle: quote %s: %w", sym, domain.ErrUnknownSymbol)
	}
	return domain.PriceQuote{
		Symbol:    sym,
		Price:     price,
		Source:    domain.PriceSourceSimulated,
		Timestamp: time.Now().UTC(),
	}, nil
}

func (o *stubOracle) Quotes(ctx context.Context, symbols []string) (map[string]domain.PriceQuote, error) {
	out := make(map[string]domain.PriceQuote, len(symbols))
	for _, sym := range symbols {
		q, err := o.Quote(ctx, sym)
		if err != nil {
			return nil, err
		}
		out[q.Symbol] = q
	}
	return out, nil
}

func (o *stubOracle) Symbols() []string {
	out := make([]string, 0, len(o.prices))
	for sym := range o.prices {
		out = append(out, sym)
	}
	return out
}

func (o *stubOracle) Supported(symbol string) bool {
	_, ok := o.prices[strings.ToUpper(strings.TrimSpace(symbol))]
	return ok
}

var (
	_ domain.PositionStore    = (*memPositionStore)(nil)
	_ domain.LiquidationStore = (*memLiquidationStore)(nil)
	_ domain.AuditStore       = (*memAuditStore)(nil)
	_ domain.SnapshotStore    = (*memSnapshotStore)(nil)
	_ domain.ChainEventStore  = (*memEventStore)(nil)
	_ domain.SignalBus        = (*stubBus)(nil)
	_ domain.LockManager      = (*stubLocks)(nil)
	_ domain.PriceOracle      = (*stubOracle)(nil)
)
