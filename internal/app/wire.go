package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/cdpguard/internal/blob/s3"
	"github.com/alanyoungcy/cdpguard/internal/cache/redis"
	"github.com/alanyoungcy/cdpguard/internal/config"
	"github.com/alanyoungcy/cdpguard/internal/domain"
	"github.com/alanyoungcy/cdpguard/internal/liquidation"
	"github.com/alanyoungcy/cdpguard/internal/metrics"
	"github.com/alanyoungcy/cdpguard/internal/monitor"
	"github.com/alanyoungcy/cdpguard/internal/notify"
	"github.com/alanyoungcy/cdpguard/internal/oracle"
	"github.com/alanyoungcy/cdpguard/internal/risk"
	"github.com/alanyoungcy/cdpguard/internal/service"
	"github.com/alanyoungcy/cdpguard/internal/store/postgres"
)

// Dependencies bundles everything the application modes need to operate.
// It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	// Stores
	Postgres         *postgres.Client
	PositionStore    domain.PositionStore
	LiquidationStore domain.LiquidationStore
	SnapshotStore    *postgres.SnapshotStore
	ChainEventStore  domain.ChainEventStore
	AuditStore       domain.AuditStore

	// Caches
	Redis       *redis.Client
	PriceCache  domain.PriceCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Blob storage
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	// Core components
	Oracle    domain.PriceOracle
	Evaluator *risk.Evaluator
	Engine    *liquidation.Engine
	Metrics   *metrics.Metrics
	Notifier  *notify.Notifier

	// Services
	Positions    *service.PositionService
	Liquidations *service.LiquidationService
	Analytics    *service.AnalyticsService
	Indexer      *service.IndexerService
	Monitor      *monitor.Monitor
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.Postgres = pgClient
	deps.PositionStore = postgres.NewPositionStore(pool)
	deps.LiquidationStore = postgres.NewLiquidationStore(pool)
	deps.SnapshotStore = postgres.NewSnapshotStore(pool)
	deps.ChainEventStore = postgres.NewChainEventStore(pool)
	deps.AuditStore = postgres.NewAuditStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.Redis = redisClient
	deps.PriceCache = redis.NewPriceCache(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- S3 blob storage (optional) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.Archiver = s3blob.NewArchiver(
			deps.BlobWriter,
			deps.SnapshotStore,
			deps.AuditStore,
			deps.AuditStore,
		)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Core components ---
	var external *oracle.ExternalSource
	if cfg.Oracle.ExternalURL != "" {
		external = oracle.NewExternalSource(cfg.Oracle.ExternalURL, cfg.Oracle.ExternalTimeout.Duration)
	}
	deps.Oracle = oracle.New(oracle.Config{
		BasePrices: cfg.Oracle.BasePrices,
		Volatility: cfg.Oracle.Volatility,
		Seed:       cfg.Oracle.Seed,
	}, external, logger)
	deps.Evaluator = risk.NewEvaluator(cfg.Risk.LiquidationThreshold)
	deps.Engine = liquidation.NewEngine(cfg.Risk.LiquidationBonus)
	deps.Metrics = metrics.New()

	// --- Services ---
	deps.Positions = service.NewPositionService(
		deps.PositionStore,
		deps.Oracle,
		deps.Evaluator,
		deps.Metrics,
		deps.AuditStore,
		logger,
	)
	deps.Liquidations = service.NewLiquidationService(
		deps.PositionStore,
		deps.LiquidationStore,
		deps.Oracle,
		deps.Evaluator,
		deps.Engine,
		deps.LockManager,
		cfg.Risk.LockTTL.Duration,
		deps.SignalBus,
		deps.AuditStore,
		deps.Metrics,
		logger,
	)
	deps.Analytics = service.NewAnalyticsService(
		deps.PositionStore,
		deps.SnapshotStore,
		deps.Oracle,
		deps.Evaluator,
		deps.Metrics,
		logger,
	)
	deps.Indexer = service.NewIndexerService(deps.ChainEventStore, cfg.Indexer.MaxBlockSpan, logger)
	deps.Monitor = monitor.New(
		deps.PositionStore,
		deps.SnapshotStore,
		deps.Oracle,
		deps.Evaluator,
		deps.PriceCache,
		deps.SignalBus,
		deps.Notifier,
		deps.Metrics,
		cfg.Monitor.Interval.Duration,
		cfg.Monitor.PageSize,
		logger,
	)

	return deps, cleanup, nil
}
