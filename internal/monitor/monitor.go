// Package monitor runs the background risk sweep: page through open
// positions on a ticker, evaluate each against fresh prices, persist
// snapshots and alert on liquidatable positions.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/cdpguard/internal/domain"
	"github.com/alanyoungcy/cdpguard/internal/metrics"
	"github.com/alanyoungcy/cdpguard/internal/risk"
)

const (
	channelRiskAlert   = "risk.alert"
	channelPriceUpdate = "price.update"
)

// Notifier is the subset of the notification system the monitor needs.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Status is a point-in-time view of the monitoring loop.
type Status struct {
	Running           bool
	StartedAt         time.Time
	LastTick          time.Time
	TicksCompleted    int64
	PositionsChecked  int64
	LiquidatableFound int64
}

// Monitor owns the sweep loop. Start and Stop are safe for concurrent use;
// a second Start while running fails with ErrMonitorRunning and Stop while
// idle fails with ErrMonitorNotRunning.
type Monitor struct {
	positions domain.PositionStore
	snapshots domain.SnapshotStore
	oracle    domain.PriceOracle
	evaluator *risk.Evaluator
	prices    domain.PriceCache
	bus       domain.SignalBus
	notifier  Notifier
	metrics   *metrics.Metrics
	interval  time.Duration
	pageSize  int
	logger    *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	status Status
}

// New creates a Monitor. prices, bus and notifier may be nil; the sweep
// then skips the corresponding side effects.
func New(
	positions domain.PositionStore,
	snapshots domain.SnapshotStore,
	oracle domain.PriceOracle,
	evaluator *risk.Evaluator,
	prices domain.PriceCache,
	bus domain.SignalBus,
	notifier Notifier,
	m *metrics.Metrics,
	interval time.Duration,
	pageSize int,
	logger *slog.Logger,
) *Monitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if pageSize <= 0 {
		pageSize = 200
	}
	return &Monitor{
		positions: positions,
		snapshots: snapshots,
		oracle:    oracle,
		evaluator: evaluator,
		prices:    prices,
		bus:       bus,
		notifier:  notifier,
		metrics:   m,
		interval:  interval,
		pageSize:  pageSize,
		logger:    logger.With(slog.String("component", "monitor")),
	}
}

// Start launches the sweep loop. The loop is detached from the caller's
// cancellation so an HTTP-triggered start outlives its request; it stops
// via Stop or when the parent's values context is done.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status.Running {
		return domain.ErrMonitorRunning
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancel = cancel
	m.done = make(chan struct{})
	m.status = Status{Running: true, StartedAt: time.Now().UTC()}

	go m.run(loopCtx, m.done)

	m.logger.InfoContext(ctx, "monitor started",
		slog.Duration("interval", m.interval),
		slog.Int("page_size", m.pageSize),
	)
	return nil
}

// Stop halts the sweep loop and waits for the in-flight tick to finish.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	if !m.status.Running {
		m.mu.Unlock()
		return domain.ErrMonitorNotRunning
	}
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	cancel()
	<-done

	m.mu.Lock()
	m.status.Running = false
	m.cancel = nil
	m.done = nil
	m.mu.Unlock()

	m.logger.Info("monitor stopped")
	return nil
}

// Status returns the current loop state and counters.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	// Sweep once immediately so a fresh start is observable without
	// waiting a full interval.
	m.tick(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

// tick performs one full sweep. Per-position failures are logged and
// skipped; the sweep itself never aborts short of context cancellation.
func (m *Monitor) tick(ctx context.Context) {
	started := time.Now()

	quotes, err := m.oracle.Quotes(ctx, m.oracle.Symbols())
	if err != nil {
		m.logger.ErrorContext(ctx, "sweep aborted, quotes unavailable",
			slog.String("error", err.Error()),
		)
		return
	}
	m.cachePrices(ctx, quotes)

	var checked, liquidatable int64
	offset := 0
	for {
		if ctx.Err() != nil {
			return
		}
		page, err := m.positions.ListOpen(ctx, domain.ListOpts{Limit: m.pageSize, Offset: offset})
		if err != nil {
			m.logger.ErrorContext(ctx, "sweep aborted, list failed",
				slog.String("error", err.Error()),
			)
			return
		}
		if len(page) == 0 {
			break
		}

		for _, pos := range page {
			collateral, okC := quotes[pos.CollateralSymbol]
			debt, okD := quotes[pos.DebtSymbol]
			if !okC || !okD {
				m.logger.WarnContext(ctx, "skipping position with unquoted symbol",
					slog.String("position_id", pos.ID),
				)
				continue
			}

			assessment := m.evaluator.Evaluate(pos, collateral.Price, debt.Price)
			m.metrics.EvaluationsTotal.Inc()
			checked++

			if err := m.snapshots.Insert(ctx, domain.RiskSnapshot{
				PositionID:      pos.ID,
				HealthFactor:    assessment.HealthFactor,
				CollateralValue: assessment.CollateralValue,
				DebtValue:       assessment.DebtValue,
				Liquidatable:    assessment.Liquidatable,
				CreatedAt:       assessment.EvaluatedAt,
			}); err != nil {
				m.logger.WarnContext(ctx, "snapshot insert failed",
					slog.String("position_id", pos.ID),
					slog.String("error", err.Error()),
				)
			}

			if assessment.Liquidatable {
				liquidatable++
				m.alert(ctx, pos, assessment)
			}
		}

		offset += len(page)
		if len(page) < m.pageSize {
			break
		}
	}

	m.metrics.MonitorTicksTotal.Inc()
	m.metrics.MonitorTickDuration.Observe(time.Since(started).Seconds())
	m.metrics.LiquidatablePositions.Set(float64(liquidatable))

	m.mu.Lock()
	m.status.LastTick = time.Now().UTC()
	m.status.TicksCompleted++
	m.status.PositionsChecked += checked
	m.status.LiquidatableFound += liquidatable
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "sweep completed",
		slog.Int64("positions_checked", checked),
		slog.Int64("liquidatable", liquidatable),
		slog.Duration("took", time.Since(started)),
	)
}

// cachePrices writes the latest quotes to the price cache and publishes a
// price.update payload. Both are best-effort.
func (m *Monitor) cachePrices(ctx context.Context, quotes map[string]domain.PriceQuote) {
	prices := make(map[string]decimal.Decimal, len(quotes))
	for sym, q := range quotes {
		prices[sym] = q.Price
		if m.prices == nil {
			continue
		}
		if err := m.prices.SetQuote(ctx, q); err != nil {
			m.logger.WarnContext(ctx, "price cache write failed",
				slog.String("symbol", sym),
				slog.String("error", err.Error()),
			)
		}
	}

	if m.bus == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"type":   "price_update",
		"prices": prices,
		"ts":     time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	if err := m.bus.Publish(ctx, channelPriceUpdate, payload); err != nil {
		m.logger.WarnContext(ctx, "price update publish failed",
			slog.String("error", err.Error()),
		)
	}
}

// alert fans a liquidatable finding out to the signal bus and the
// notifier. Both are best-effort.
func (m *Monitor) alert(ctx context.Context, pos domain.Position, assessment domain.HealthAssessment) {
	if m.bus != nil {
		payload, err := json.Marshal(map[string]any{
			"type":          "risk_alert",
			"position_id":   pos.ID,
			"owner_address": pos.OwnerAddress,
			"health_factor": assessment.HealthFactor.String(),
			"evaluated_at":  assessment.EvaluatedAt.Format(time.RFC3339),
		})
		if err == nil {
			if err := m.bus.Publish(ctx, channelRiskAlert, payload); err != nil {
				m.logger.WarnContext(ctx, "risk alert publish failed",
					slog.String("position_id", pos.ID),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	if m.notifier != nil {
		msg := fmt.Sprintf("Position %s (owner %s) is liquidatable at health factor %s.",
			pos.ID, pos.OwnerAddress, assessment.HealthFactor)
		if err := m.notifier.Notify(ctx, "risk.alert", "Liquidatable position", msg); err != nil {
			m.logger.WarnContext(ctx, "risk alert notify failed",
				slog.String("position_id", pos.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}
