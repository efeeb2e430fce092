package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	s3blob "github.com/EthanAlgoX/Polymarket-TradeBot/internal/blob/s3"
	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/cache/redis"
	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/config"
	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/notify"
	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/store/postgres"
)

// Dependencies bundles the infrastructure shared by every mode: Redis-backed
// caches and coordination primitives, the PostgreSQL stores, optional cold
// storage, and the notifier.
type Dependencies struct {
	Redis   *redis.Client
	Prices  domain.PriceCache
	Books   domain.OrderbookCache
	Markets domain.MarketCache
	Bus     domain.SignalBus
	Locks   domain.LockManager
	Limiter domain.RateLimiter

	PG               *postgres.Client
	MarketStore      *postgres.MarketStore
	TradeStore       *postgres.TradeStore
	RoundStore       *postgres.RoundStore
	PositionStore    *postgres.PositionStore
	OpportunityStore *postgres.OpportunityStore
	DailyStatsStore  *postgres.DailyStatsStore
	AuditStore       *postgres.AuditStore
	OrderStore       *postgres.OrderStore

	Blob     *s3blob.Client
	Archiver *s3blob.Archiver

	Notifier *notify.Notifier
}

// Wire connects to Redis and PostgreSQL, runs migrations when configured,
// and builds the caches, stores, optional S3 archiver, and notifier. The
// returned cleanup closes everything opened so far; callers run it exactly
// once, also when Wire itself fails partway.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	rdb, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("app: connect redis: %w", err)
	}
	closers = append(closers, func() { _ = rdb.Close() })

	pg, err := postgres.New(ctx, postgres.ClientConfig{
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
		return nil, nil, fmt.Errorf("app: connect postgres: %w", err)
	}
	closers = append(closers, pg.Close)

	if cfg.Postgres.RunMigrations {
		if err := pg.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("app: run migrations: %w", err)
		}
	}

	pool := pg.Pool()
	d := &Dependencies{
		Redis:   rdb,
		Prices:  redis.NewPriceCache(rdb),
		Books:   redis.NewOrderbookCache(rdb),
		Markets: redis.NewMarketCache(rdb),
		Bus:     redis.NewSignalBus(rdb),
		Locks:   redis.NewLockManager(rdb),
		Limiter: redis.NewRateLimiter(rdb, 20, time.Second),

		PG:               pg,
		MarketStore:      postgres.NewMarketStore(pool),
		TradeStore:       postgres.NewTradeStore(pool),
		RoundStore:       postgres.NewRoundStore(pool),
		PositionStore:    postgres.NewPositionStore(pool),
		OpportunityStore: postgres.NewOpportunityStore(pool),
		DailyStatsStore:  postgres.NewDailyStatsStore(pool),
		AuditStore:       postgres.NewAuditStore(pool),
		OrderStore:       postgres.NewOrderStore(pool),
	}

	if cfg.S3.Enabled {
		blob, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         !strings.HasPrefix(cfg.S3.Endpoint, "http://"),
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("app: connect s3: %w", err)
		}
		d.Blob = blob
		d.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(blob),
			d.TradeStore, d.RoundStore, d.DailyStatsStore,
			d.AuditStore,
			logger,
		)
	}

	d.Notifier = buildNotifier(cfg.Notify, logger)

	return d, cleanup, nil
}

// buildNotifier assembles the configured notification senders. With none
// configured it returns nil and callers skip notifications.
func buildNotifier(cfg config.NotifyConfig, logger *slog.Logger) *notify.Notifier {
	var senders []notify.Sender
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.TelegramToken, cfg.TelegramChatID))
	}
	if cfg.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.DiscordWebhookURL))
	}
	if len(senders) == 0 {
		return nil
	}
	return notify.NewNotifier(senders, cfg.Events, logger)
}
