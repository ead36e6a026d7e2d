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
// built-in defaults, applies VERIVO_* environment variable overrides, and
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

// applyEnvOverrides reads well-known VERIVO_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Auth ──
	setStr(&cfg.Auth.TokenSecret, "VERIVO_AUTH_TOKEN_SECRET")

	// ── Supabase ──
	setStr(&cfg.Supabase.DSN, "VERIVO_SUPABASE_DSN")
	setStr(&cfg.Supabase.DSN, "VERIVO_SUPABASE_URL") // compatibility alias
	setStr(&cfg.Supabase.Host, "VERIVO_SUPABASE_HOST")
	setInt(&cfg.Supabase.Port, "VERIVO_SUPABASE_PORT")
	setStr(&cfg.Supabase.Database, "VERIVO_SUPABASE_DATABASE")
	setStr(&cfg.Supabase.User, "VERIVO_SUPABASE_USER")
	setStr(&cfg.Supabase.Password, "VERIVO_SUPABASE_PASSWORD")
	setStr(&cfg.Supabase.SSLMode, "VERIVO_SUPABASE_SSL_MODE")
	setInt(&cfg.Supabase.PoolMaxConns, "VERIVO_SUPABASE_POOL_MAX_CONNS")
	setInt(&cfg.Supabase.PoolMinConns, "VERIVO_SUPABASE_POOL_MIN_CONNS")
	setBool(&cfg.Supabase.RunMigrations, "VERIVO_SUPABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "VERIVO_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "VERIVO_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "VERIVO_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "VERIVO_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "VERIVO_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "VERIVO_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "VERIVO_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "VERIVO_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "VERIVO_S3_REGION")
	setStr(&cfg.S3.Bucket, "VERIVO_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "VERIVO_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "VERIVO_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "VERIVO_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "VERIVO_S3_FORCE_PATH_STYLE")

	// ── Quotes ──
	setStr(&cfg.Quotes.CoinbaseURL, "VERIVO_QUOTES_COINBASE_URL")
	setStr(&cfg.Quotes.FXURL, "VERIVO_QUOTES_FX_URL")
	setStr(&cfg.Quotes.YahooURL, "VERIVO_QUOTES_YAHOO_URL")
	setDuration(&cfg.Quotes.Timeout, "VERIVO_QUOTES_TIMEOUT")
	setDuration(&cfg.Quotes.CacheTTL, "VERIVO_QUOTES_CACHE_TTL")

	// ── Validator ──
	setDuration(&cfg.Validator.Interval, "VERIVO_VALIDATOR_INTERVAL")
	setInt(&cfg.Validator.BatchSize, "VERIVO_VALIDATOR_BATCH_SIZE")
	setInt(&cfg.Validator.RetentionDays, "VERIVO_VALIDATOR_RETENTION_DAYS")
	setDuration(&cfg.Validator.ArchiveInterval, "VERIVO_VALIDATOR_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "VERIVO_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "VERIVO_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "VERIVO_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "VERIVO_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "VERIVO_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "VERIVO_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "VERIVO_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "VERIVO_MODE")
	setStr(&cfg.LogLevel, "VERIVO_LOG_LEVEL")
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
