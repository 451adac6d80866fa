package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies CDPGUARD_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known CDPGUARD_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setBool(&cfg.Server.Enabled, "CDPGUARD_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "CDPGUARD_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "CDPGUARD_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "CDPGUARD_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimitPerMin, "CDPGUARD_SERVER_RATE_LIMIT_PER_MIN")
	setDuration(&cfg.Server.ReadTimeout, "CDPGUARD_SERVER_READ_TIMEOUT")
	setDuration(&cfg.Server.WriteTimeout, "CDPGUARD_SERVER_WRITE_TIMEOUT")
	setDuration(&cfg.Server.ShutdownTimeout, "CDPGUARD_SERVER_SHUTDOWN_TIMEOUT")
	setBool(&cfg.Server.WebsocketEnabled, "CDPGUARD_SERVER_WEBSOCKET_ENABLED")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "CDPGUARD_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "CDPGUARD_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "CDPGUARD_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "CDPGUARD_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "CDPGUARD_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "CDPGUARD_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "CDPGUARD_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "CDPGUARD_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "CDPGUARD_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "CDPGUARD_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "CDPGUARD_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "CDPGUARD_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "CDPGUARD_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "CDPGUARD_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "CDPGUARD_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "CDPGUARD_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "CDPGUARD_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "CDPGUARD_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "CDPGUARD_S3_REGION")
	setStr(&cfg.S3.Bucket, "CDPGUARD_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "CDPGUARD_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "CDPGUARD_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "CDPGUARD_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "CDPGUARD_S3_FORCE_PATH_STYLE")

	// ── Oracle ──
	setFloat64(&cfg.Oracle.Volatility, "CDPGUARD_ORACLE_VOLATILITY")
	setInt64(&cfg.Oracle.Seed, "CDPGUARD_ORACLE_SEED")
	setStr(&cfg.Oracle.ExternalURL, "CDPGUARD_ORACLE_EXTERNAL_URL")
	setDuration(&cfg.Oracle.ExternalTimeout, "CDPGUARD_ORACLE_EXTERNAL_TIMEOUT")

	// ── Risk ──
	setFloat64(&cfg.Risk.LiquidationThreshold, "CDPGUARD_RISK_LIQUIDATION_THRESHOLD")
	setFloat64(&cfg.Risk.LiquidationBonus, "CDPGUARD_RISK_LIQUIDATION_BONUS")
	setDuration(&cfg.Risk.LockTTL, "CDPGUARD_RISK_LOCK_TTL")

	// ── Monitor ──
	setDuration(&cfg.Monitor.Interval, "CDPGUARD_MONITOR_INTERVAL")
	setInt(&cfg.Monitor.PageSize, "CDPGUARD_MONITOR_PAGE_SIZE")
	setBool(&cfg.Monitor.AutoStart, "CDPGUARD_MONITOR_AUTO_START")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "CDPGUARD_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "CDPGUARD_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "CDPGUARD_ARCHIVE_INTERVAL")

	// ── Indexer ──
	setInt(&cfg.Indexer.MaxBlockSpan, "CDPGUARD_INDEXER_MAX_BLOCK_SPAN")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "CDPGUARD_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "CDPGUARD_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "CDPGUARD_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "CDPGUARD_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "CDPGUARD_MODE")
	setStr(&cfg.LogLevel, "CDPGUARD_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
