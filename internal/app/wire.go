package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/verivolabs/verivo-engine/internal/blob/s3"
	"github.com/verivolabs/verivo-engine/internal/cache/redis"
	"github.com/verivolabs/verivo-engine/internal/config"
	"github.com/verivolabs/verivo-engine/internal/crypto"
	"github.com/verivolabs/verivo-engine/internal/markethours"
	"github.com/verivolabs/verivo-engine/internal/notify"
	"github.com/verivolabs/verivo-engine/internal/platform/coinbase"
	"github.com/verivolabs/verivo-engine/internal/platform/openexchange"
	"github.com/verivolabs/verivo-engine/internal/platform/yahoo"
	"github.com/verivolabs/verivo-engine/internal/service"
	"github.com/verivolabs/verivo-engine/internal/store/postgres"
	"github.com/verivolabs/verivo-engine/internal/validator"
)

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Store    *postgres.PredictionStore
	Bus      *redis.EventBus
	Signer   *crypto.TokenSigner // nil when auth is disabled
	Hours    *markethours.Oracle
	Quotes   *service.QuoteService
	Service  *service.PredictionService
	Engine   *validator.Engine
	Archiver *s3blob.Archiver // nil when S3 is disabled
	Notifier *notify.Notifier
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
		DSN:      cfg.Supabase.DSN,
		Host:     cfg.Supabase.Host,
		Port:     cfg.Supabase.Port,
		Database: cfg.Supabase.Database,
		User:     cfg.Supabase.User,
		Password: cfg.Supabase.Password,
		SSLMode:  cfg.Supabase.SSLMode,
		MaxConns: cfg.Supabase.PoolMaxConns,
		MinConns: cfg.Supabase.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Supabase.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}
	deps.Store = postgres.NewPredictionStore(pgClient.Pool())

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

	quoteCache := redis.NewQuoteCache(redisClient, cfg.Quotes.CacheTTL.Duration)
	deps.Bus = redis.NewEventBus(redisClient)

	// --- Auth ---
	if cfg.Auth.TokenSecret != "" {
		signer, err := crypto.NewTokenSigner(cfg.Auth.TokenSecret)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: auth: %w", err)
		}
		deps.Signer = signer
	}

	// --- Market hours and price sources ---
	deps.Hours = markethours.New()

	timeout := cfg.Quotes.Timeout.Duration
	spot := coinbase.NewClient(cfg.Quotes.CoinbaseURL, timeout)
	fx := openexchange.NewClient(cfg.Quotes.FXURL, timeout)
	charts := yahoo.NewClient(cfg.Quotes.YahooURL, timeout)

	deps.Quotes = service.NewQuoteService(spot, fx, charts, deps.Hours, quoteCache, logger)
	deps.Service = service.NewPredictionService(deps.Store, deps.Quotes, deps.Hours, logger)

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

	// --- Validation engine, one evaluator per category ---
	engine := validator.NewEngine(deps.Store, deps.Bus, deps.Notifier, cfg.Validator.BatchSize, logger)
	engine.Register(validator.NewCryptoEvaluator(deps.Quotes))
	engine.Register(validator.NewForexEvaluator(deps.Quotes))
	engine.Register(validator.NewCommoditiesEvaluator(deps.Quotes))
	engine.Register(validator.NewIndicesEvaluator(deps.Quotes))
	engine.Register(validator.NewStocksEvaluator(deps.Quotes))
	deps.Engine = engine

	// --- S3 archive (optional) ---
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

		retention := time.Duration(cfg.Validator.RetentionDays) * 24 * time.Hour
		deps.Archiver = s3blob.NewArchiver(s3Client, deps.Store, retention, logger)
	}

	return deps, cleanup, nil
}
