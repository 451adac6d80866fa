// Package config defines the top-level configuration for the CDP guard
// service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by CDPGUARD_* environment variables.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Oracle   OracleConfig   `toml:"oracle"`
	Risk     RiskConfig     `toml:"risk"`
	Monitor  MonitorConfig  `toml:"monitor"`
	Archive  ArchiveConfig  `toml:"archive"`
	Indexer  IndexerConfig  `toml:"indexer"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled          bool     `toml:"enabled"`
	Port             int      `toml:"port"`
	CORSOrigins      []string `toml:"cors_origins"`
	APIKey           string   `toml:"api_key"`
	RateLimitPerMin  int      `toml:"rate_limit_per_min"`
	ReadTimeout      duration `toml:"read_timeout"`
	WriteTimeout     duration `toml:"write_timeout"`
	ShutdownTimeout  duration `toml:"shutdown_timeout"`
	WebsocketEnabled bool     `toml:"websocket_enabled"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// OracleConfig holds the simulated price feed parameters. BasePrices maps a
// token symbol to its USD base price; each quote perturbs the base within
// +/- Volatility. Seed 0 means time-seeded randomness.
type OracleConfig struct {
	BasePrices      map[string]float64 `toml:"base_prices"`
	Volatility      float64            `toml:"volatility"`
	Seed            int64              `toml:"seed"`
	ExternalURL     string             `toml:"external_url"`
	ExternalTimeout duration           `toml:"external_timeout"`
}

// RiskConfig holds the risk evaluation and liquidation constants.
type RiskConfig struct {
	LiquidationThreshold float64  `toml:"liquidation_threshold"`
	LiquidationBonus     float64  `toml:"liquidation_bonus"`
	LockTTL              duration `toml:"lock_ttl"`
}

// MonitorConfig holds the monitoring loop parameters.
type MonitorConfig struct {
	Interval  duration `toml:"interval"`
	PageSize  int      `toml:"page_size"`
	AutoStart bool     `toml:"auto_start"`
}

// ArchiveConfig holds cold-storage archival parameters.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`
}

// IndexerConfig holds the chain-event indexer parameters.
type IndexerConfig struct {
	MaxBlockSpan int `toml:"max_block_span"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Enabled:          true,
			Port:             8000,
			CORSOrigins:      []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimitPerMin:  300,
			ReadTimeout:      duration{15 * time.Second},
			WriteTimeout:     duration{30 * time.Second},
			ShutdownTimeout:  duration{10 * time.Second},
			WebsocketEnabled: true,
		},
		Postgres: PostgresConfig{
			DSN:           "",
			Host:          "localhost",
			Port:          5432,
			Database:      "cdp_demo",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "cdpguard-archive",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Oracle: OracleConfig{
			BasePrices: map[string]float64{
				"ETH":  3000,
				"WBTC": 65000,
				"USDC": 1,
				"USDT": 1,
				"DAI":  1,
				"LINK": 15,
				"UNI":  8,
				"AAVE": 95,
			},
			Volatility:      0.02,
			Seed:            0,
			ExternalURL:     "",
			ExternalTimeout: duration{2 * time.Second},
		},
		Risk: RiskConfig{
			LiquidationThreshold: 0.825,
			LiquidationBonus:     0.05,
			LockTTL:              duration{10 * time.Second},
		},
		Monitor: MonitorConfig{
			Interval:  duration{15 * time.Second},
			PageSize:  200,
			AutoStart: false,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
			Interval:      duration{24 * time.Hour},
		},
		Indexer: IndexerConfig{
			MaxBlockSpan: 1000,
		},
		Notify: NotifyConfig{
			Events: []string{"liquidation.executed", "risk.alert", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":  true,
	"monitor": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, monitor, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimitPerMin < 0 {
			errs = append(errs, "server: rate_limit_per_min must be >= 0")
		}
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 settings only matter when the backend is enabled.
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}
	if c.Archive.Enabled && !c.S3.Enabled {
		errs = append(errs, "archive: s3 must be enabled when archive is enabled")
	}
	if c.Archive.RetentionDays < 1 {
		errs = append(errs, "archive: retention_days must be >= 1")
	}

	// Oracle
	if len(c.Oracle.BasePrices) == 0 {
		errs = append(errs, "oracle: base_prices must not be empty")
	}
	for sym, price := range c.Oracle.BasePrices {
		if price <= 0 {
			errs = append(errs, fmt.Sprintf("oracle: base price for %s must be > 0, got %v", sym, price))
		}
	}
	if c.Oracle.Volatility < 0 || c.Oracle.Volatility >= 1 {
		errs = append(errs, fmt.Sprintf("oracle: volatility must be in [0, 1), got %v", c.Oracle.Volatility))
	}

	// Risk
	if c.Risk.LiquidationThreshold <= 0 || c.Risk.LiquidationThreshold > 1 {
		errs = append(errs, fmt.Sprintf("risk: liquidation_threshold must be in (0, 1], got %v", c.Risk.LiquidationThreshold))
	}
	if c.Risk.LiquidationBonus < 0 || c.Risk.LiquidationBonus >= 1 {
		errs = append(errs, fmt.Sprintf("risk: liquidation_bonus must be in [0, 1), got %v", c.Risk.LiquidationBonus))
	}
	if c.Risk.LockTTL.Duration <= 0 {
		errs = append(errs, "risk: lock_ttl must be > 0")
	}

	// Monitor
	if c.Monitor.Interval.Duration < time.Second {
		errs = append(errs, "monitor: interval must be >= 1s")
	}
	if c.Monitor.PageSize < 1 {
		errs = append(errs, "monitor: page_size must be >= 1")
	}

	// Indexer
	if c.Indexer.MaxBlockSpan < 1 {
		errs = append(errs, "indexer: max_block_span must be >= 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
