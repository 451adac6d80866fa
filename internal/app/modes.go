package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/cdpguard/internal/domain"
	"github.com/alanyoungcy/cdpguard/internal/server"
	"github.com/alanyoungcy/cdpguard/internal/server/handler"
	"github.com/alanyoungcy/cdpguard/internal/server/ws"
)

// ServerMode runs the HTTP + WebSocket API. The monitor is available
// through its control endpoints but does not start automatically unless
// configured to.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	srv, hub := a.buildServer(deps)
	a.runServer(ctx, g, srv, hub)
	a.autoStartMonitor(ctx, g, deps)

	return waitGroup(g, a.logger)
}

// MonitorMode runs the background risk sweep without the HTTP API.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	if err := deps.Monitor.Start(ctx); err != nil {
		return fmt.Errorf("app: start monitor: %w", err)
	}
	<-ctx.Done()
	if err := deps.Monitor.Stop(); err != nil && !errors.Is(err, domain.ErrMonitorNotRunning) {
		a.logger.Warn("monitor stop failed", slog.String("error", err.Error()))
	}
	return nil
}

// FullMode runs the API server, the monitoring loop and, when S3 is
// configured, the periodic cold-storage archiver.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	srv, hub := a.buildServer(deps)
	a.runServer(ctx, g, srv, hub)

	if err := deps.Monitor.Start(ctx); err != nil {
		return fmt.Errorf("app: start monitor: %w", err)
	}
	g.Go(func() error {
		<-ctx.Done()
		if err := deps.Monitor.Stop(); err != nil && !errors.Is(err, domain.ErrMonitorNotRunning) {
			a.logger.Warn("monitor stop failed", slog.String("error", err.Error()))
		}
		return nil
	})

	if a.cfg.Archive.Enabled && deps.Archiver != nil {
		g.Go(func() error {
			a.runArchiver(ctx, deps.Archiver)
			return nil
		})
	}

	return waitGroup(g, a.logger)
}

// buildServer assembles the HTTP server and its WebSocket hub from wired
// dependencies.
func (a *App) buildServer(deps *Dependencies) (*server.Server, *ws.Hub) {
	handlers := server.Handlers{
		Health:       handler.NewHealthHandler(deps.Postgres, deps.Redis, a.logger),
		Positions:    handler.NewPositionHandler(deps.Positions, a.logger),
		Liquidations: handler.NewLiquidationHandler(deps.Liquidations, a.logger),
		Batch:        handler.NewBatchHandler(deps.Positions, deps.Liquidations, a.logger),
		Monitor:      handler.NewMonitorHandler(deps.Monitor, a.logger),
		Analytics:    handler.NewAnalyticsHandler(deps.Analytics, a.logger),
		Events:       handler.NewEventsHandler(deps.Indexer, a.logger),
	}
	if deps.BlobReader != nil {
		handlers.Archives = handler.NewArchiveHandler(deps.BlobReader, a.logger)
	}

	var hub *ws.Hub
	if a.cfg.Server.WebsocketEnabled {
		hub = ws.NewHub(deps.SignalBus, a.logger, ws.Config{
			Mode:      a.cfg.Mode,
			StartedAt: time.Now().UTC(),
		})
	}

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		RateLimitPerMin: a.cfg.Server.RateLimitPerMin,
		ReadTimeout:     a.cfg.Server.ReadTimeout.Duration,
		WriteTimeout:    a.cfg.Server.WriteTimeout.Duration,
	}, handlers, hub, deps.RateLimiter, deps.Metrics, a.logger)

	return srv, hub
}

// runServer starts the HTTP listener and, when present, the WebSocket hub
// on the errgroup, and shuts the listener down on context cancellation.
func (a *App) runServer(ctx context.Context, g *errgroup.Group, srv *server.Server, hub *ws.Hub) {
	if hub != nil {
		g.Go(func() error {
			err := hub.Run(ctx)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("ws hub: %w", err)
		})
	}

	g.Go(func() error {
		err := srv.Start()
		if ctx.Err() != nil {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Duration)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// autoStartMonitor starts the monitor at boot when configured and stops it
// when the mode winds down.
func (a *App) autoStartMonitor(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Monitor.AutoStart {
		return
	}
	if err := deps.Monitor.Start(ctx); err != nil {
		a.logger.Warn("monitor auto-start failed", slog.String("error", err.Error()))
		return
	}
	g.Go(func() error {
		<-ctx.Done()
		if err := deps.Monitor.Stop(); err != nil && !errors.Is(err, domain.ErrMonitorNotRunning) {
			a.logger.Warn("monitor stop failed", slog.String("error", err.Error()))
		}
		return nil
	})
}

// runArchiver moves aged snapshots and audit entries to cold storage on a
// fixed interval, starting with one immediate run.
func (a *App) runArchiver(ctx context.Context, archiver domain.Archiver) {
	interval := a.cfg.Archive.Interval.Duration
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour

	archive := func() {
		cutoff := time.Now().UTC().Add(-retention)

		snaps, err := archiver.ArchiveSnapshots(ctx, cutoff)
		if err != nil {
			a.logger.Error("snapshot archival failed", slog.String("error", err.Error()))
		} else if snaps > 0 {
			a.logger.Info("snapshots archived", slog.Int64("count", snaps))
		}

		entries, err := archiver.ArchiveAuditLog(ctx, cutoff)
		if err != nil {
			a.logger.Error("audit archival failed", slog.String("error", err.Error()))
		} else if entries > 0 {
			a.logger.Info("audit entries archived", slog.Int64("count", entries))
		}
	}

	archive()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			archive()
		}
	}
}

// waitGroup waits for all mode goroutines and normalizes shutdown logging.
func waitGroup(g *errgroup.Group, logger *slog.Logger) error {
	if err := g.Wait(); err != nil {
		logger.Error("mode stopped with error", slog.String("error", err.Error()))
		return err
	}
	logger.Info("mode stopped cleanly")
	return nil
}
