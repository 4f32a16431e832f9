package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/mmsignal/internal/blob/s3"
	"github.com/alanyoungcy/mmsignal/internal/cache/redis"
	"github.com/alanyoungcy/mmsignal/internal/config"
	"github.com/alanyoungcy/mmsignal/internal/domain"
	"github.com/alanyoungcy/mmsignal/internal/metrics"
	"github.com/alanyoungcy/mmsignal/internal/notify"
	"github.com/alanyoungcy/mmsignal/internal/platform"
	"github.com/alanyoungcy/mmsignal/internal/store/postgres"
)

// Dependencies bundles every infrastructure-level dependency the modes need.
// Optional backends are left nil when they are not configured. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	Postgres         *postgres.Client
	OpportunityStore domain.OpportunityStore
	SignalStore      domain.SignalStore
	BacktestStore    domain.BacktestStore

	// Caches
	Redis         *redis.Client
	SnapshotCache domain.SnapshotCache
	AlertThrottle domain.AlertThrottle
	SignalBus     domain.SignalBus

	// Blob storage
	S3         *s3blob.Client
	BlobReader domain.BlobReader
	Archiver   *s3blob.ArchiveImpl

	// Exchange adapters, in config order.
	Exchanges []domain.Exchange

	Notifier *notify.Notifier
	Metrics  *metrics.Metrics
}

// needsRedis reports whether the mode connects to Redis. Backtest mode is a
// one-shot run and never needs the bus.
func needsRedis(cfg *config.Config) bool {
	return cfg.Mode != config.ModeBacktest && cfg.Redis.Enabled()
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled() {
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

		deps.Postgres = pgClient
		pool := pgClient.Pool()
		deps.OpportunityStore = postgres.NewOpportunityStore(pool)
		deps.SignalStore = postgres.NewSignalStore(pool)
		deps.BacktestStore = postgres.NewBacktestStore(pool)
	}

	// --- Redis ---
	if needsRedis(cfg) {
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
		deps.SnapshotCache = redis.NewSnapshotCache(redisClient, cfg.Redis.SnapshotTTL.Duration)
		deps.AlertThrottle = redis.NewAlertThrottle(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient, cfg.Redis.StreamMaxLen)
	}

	// --- S3 blob storage ---
	if cfg.S3.Enabled() {
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

		deps.S3 = s3Client
		deps.BlobReader = s3Client
		// A nil OpportunityStore converts to a nil archive store, which
		// turns opportunity archiving into a no-op.
		deps.Archiver = s3blob.NewArchiver(s3Client, s3Client, deps.OpportunityStore)
	}

	// --- Exchanges ---
	if cfg.NeedsFeed() {
		for _, ex := range cfg.EnabledExchanges() {
			adapter, err := platform.New(ex.Name, platform.Options{
				BaseURL:           ex.BaseURL,
				RequestsPerSecond: ex.RequestsPerSecond,
				Burst:             ex.Burst,
				Timeout:           ex.Timeout.Duration,
			})
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: exchange %s: %w", ex.Name, err)
			}
			closers = append(closers, func() { _ = adapter.Close() })
			deps.Exchanges = append(deps.Exchanges, adapter)
		}
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

	if cfg.Metrics.Enabled {
		deps.Metrics = metrics.New(cfg.Metrics.Namespace)
	}

	return deps, cleanup, nil
}
