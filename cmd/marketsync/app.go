package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/market-sync/internal/audit"
	"github.com/rickgao/market-sync/internal/cache"
	"github.com/rickgao/market-sync/internal/config"
	"github.com/rickgao/market-sync/internal/database"
	"github.com/rickgao/market-sync/internal/lock"
	"github.com/rickgao/market-sync/internal/market"
	"github.com/rickgao/market-sync/internal/model"
	"github.com/rickgao/market-sync/internal/provider"
	"github.com/rickgao/market-sync/internal/scheduler"
	"github.com/rickgao/market-sync/internal/store"
)

// app holds the wired components shared by the subcommands.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	store     store.Store
	pool      *pgxpool.Pool // nil for the memory backend
	redisLock *lock.Redis   // nil unless lock.backend is redis

	cache     *cache.Cache[model.Snapshot]
	audit     *audit.Log
	scheduler *scheduler.Scheduler
	accessor  *market.Accessor
}

// openStore connects the configured durable store.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, *pgxpool.Pool, error) {
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		logger.Info("database connected")
		return store.NewPostgres(pool, logger), pool, nil
	case config.BackendMemory:
		logger.Warn("using in-memory storage, state is lost on exit")
		return store.NewMemory(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// newApp wires every component from cfg.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	st, pool, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, store: st, pool: pool}

	var locker lock.Locker = st
	if cfg.Lock.Backend == config.BackendRedis {
		r := cfg.Lock.Redis
		redisLock, err := lock.NewRedis(ctx, r.Addr, r.Password, r.DB, r.KeyPrefix, cfg.Instance.ID)
		if err != nil {
			st.Close()
			return nil, err
		}
		logger.Info("redis lock connected", "addr", r.Addr)
		a.redisLock = redisLock
		locker = redisLock
	}

	client := provider.NewClient(
		cfg.Provider.BaseURL,
		cfg.Provider.APIKey,
		provider.WithLogger(logger),
		provider.WithTimeout(cfg.Provider.Timeout),
		provider.WithBackoff(cfg.Provider.Backoff...),
		provider.WithMaxRetryAfter(cfg.Provider.MaxRetryAfter),
		provider.WithCurrency(cfg.Provider.Currency),
		provider.WithAPIKeyHeader(cfg.Provider.APIKeyHeader),
	)

	a.cache = cache.New[model.Snapshot](cache.WithCapacity(cfg.Cache.Capacity))
	a.audit = audit.New(st, st, logger)
	a.scheduler = scheduler.New(schedulerConfig(cfg), scheduler.Deps{
		Fetcher: client,
		Cache:   a.cache,
		Store:   st,
		Locker:  locker,
		Flags:   lock.NewFlags(st, logger),
		Auditor: a.audit,
	}, logger)
	a.accessor = market.NewAccessor(a.cache, st, logger)

	return a, nil
}

func schedulerConfig(cfg *config.Config) scheduler.Config {
	s := cfg.Scheduler
	return scheduler.Config{
		Name:            s.JobName,
		TopN:            s.TopN,
		Interval:        s.Interval,
		Jitter:          s.JitterDuration(),
		MinCallInterval: s.MinCallInterval,
		CacheTTL:        cfg.Cache.TTL,
		HistoryMax:      s.HistoryMax,
		LockName:        s.LockName,
		LockLease:       s.LockLease,
		FlagName:        s.FlagName,
	}
}

// Close releases connections. The scheduler must already be stopped.
func (a *app) Close() {
	if a.redisLock != nil {
		if err := a.redisLock.Close(); err != nil {
			a.logger.Warn("failed to close redis", "error", err)
		}
	}
	a.store.Close()
}

// setup loads config and wires the app for a subcommand.
func setup(ctx context.Context) (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, logger)
}
