package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/crossarb/internal/blob/s3"
	"github.com/alanyoungcy/crossarb/internal/cache/redis"
	"github.com/alanyoungcy/crossarb/internal/config"
	"github.com/alanyoungcy/crossarb/internal/crypto"
	"github.com/alanyoungcy/crossarb/internal/domain"
	"github.com/alanyoungcy/crossarb/internal/notify"
	"github.com/alanyoungcy/crossarb/internal/platform/kalshi"
	"github.com/alanyoungcy/crossarb/internal/platform/polymarket"
	"github.com/alanyoungcy/crossarb/internal/server/handler"
	"github.com/alanyoungcy/crossarb/internal/store/postgres"
)

// Dependencies bundles the venue clients and the optional backends. Every
// interface field is left nil when its backend is disabled.
type Dependencies struct {
	// Venues
	Sources []domain.MarketSource
	Clob    *polymarket.ClobClient
	Wallet  crypto.Wallet

	// Stores
	OpportunityStore domain.OpportunityStore
	AuditStore       domain.AuditStore

	// Caches
	SnapshotCache domain.SnapshotCache
	BookCache     domain.BookCache
	RateLimiter   domain.RateLimiter
	LockManager   domain.LockManager

	// Blob storage
	Archiver       domain.SnapshotArchiver
	SnapshotLoader handler.SnapshotLoader

	// Notifications
	Notifier *notify.Notifier

	// HealthChecks holds one check per enabled backend.
	HealthChecks map[string]handler.HealthCheck
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
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{HealthChecks: make(map[string]handler.HealthCheck)}

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
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
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}

		pool := pgClient.Pool()
		deps.OpportunityStore = postgres.NewOpportunityStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
		deps.HealthChecks["postgres"] = pgClient.Ping
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.SnapshotCache = redis.NewSnapshotCache(redisClient, cfg.Redis.SnapshotTTL.Duration)
		deps.BookCache = redis.NewBookCache(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.HealthChecks["redis"] = redisClient.Ping
	}

	// --- S3 snapshot archive ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
			MaxAttempts:    cfg.S3.MaxAttempts,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}

		archiver := s3blob.NewSnapshotArchiver(s3blob.NewWriter(s3Client), s3blob.NewReader(s3Client))
		deps.Archiver = archiver
		deps.SnapshotLoader = archiver
		deps.HealthChecks["s3"] = s3Client.Health
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			notify.DefaultTelegramAPI,
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, cfg.Notify.MinSpread, logger)
	}

	// --- Wallet ---
	if cfg.HasWalletKey() {
		w, err := crypto.LoadWallet(crypto.KeyConfig{
			RawPrivateKey:    cfg.Wallet.PrivateKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: wallet: %w", err))
		}
		deps.Wallet = w
		logger.Info("wire: server wallet loaded", slog.String("address", w.Address()))
	}

	// --- Venues ---
	timeout := cfg.Polymarket.RequestTimeout.Duration
	deps.Sources = append(deps.Sources, polymarket.NewGammaClient(cfg.Polymarket.GammaHost, timeout, logger))

	if cfg.Kalshi.Enabled {
		kc := kalshi.NewClient(cfg.Kalshi.BaseURL, cfg.Kalshi.ApiKey, timeout, logger)
		if cfg.Kalshi.RsaPrivateKeyPath != "" {
			if err := kc.LoadRSAPrivateKeyFile(cfg.Kalshi.RsaPrivateKeyPath); err != nil {
				return fail(fmt.Errorf("wire: kalshi key: %w", err))
			}
		}
		deps.Sources = append(deps.Sources, kc)
	}

	clobCfg := polymarket.ClobConfig{
		BaseURL: cfg.Polymarket.ClobHost,
		Timeout: timeout,
		Wallet:  deps.Wallet,
		ChainID: int64(cfg.Polymarket.ChainID),
		Logger:  logger,
	}
	if creds := (&crypto.HMACAuth{Key: cfg.API.Key, Secret: cfg.API.Secret, Passphrase: cfg.API.Passphrase}); creds.Complete() {
		clobCfg.Creds = creds
	}
	deps.Clob = polymarket.NewClobClient(clobCfg)

	if clobCfg.Creds == nil && deps.Wallet != nil && cfg.API.DeriveOnStartup {
		if _, err := deps.Clob.DeriveAPIKey(ctx); err != nil {
			// Public reads and prepare still work; submissions will be
			// rejected until credentials are configured.
			logger.Warn("wire: derive api credentials failed", slog.String("error", err.Error()))
		}
	}

	return deps, cleanup, nil
}
