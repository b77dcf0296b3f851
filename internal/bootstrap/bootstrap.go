// Package bootstrap wires infrastructure shared by the api and worker processes:
// logger, store, Redis, leaderboard cache and event bus.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/impact-hub/partner-portal/config"
	"github.com/impact-hub/partner-portal/internal/application/port"
	"github.com/impact-hub/partner-portal/internal/domain/leaderboard"
	"github.com/impact-hub/partner-portal/internal/domain/shared"
	"github.com/impact-hub/partner-portal/internal/infrastructure/messaging"
	"github.com/impact-hub/partner-portal/internal/infrastructure/persistence/memory"
	"github.com/impact-hub/partner-portal/internal/infrastructure/persistence/postgres"
	"github.com/impact-hub/partner-portal/internal/infrastructure/persistence/redis"
	"github.com/impact-hub/partner-portal/internal/interface/http/handlers"
	"github.com/impact-hub/partner-portal/pkg/circuitbreaker"
	"github.com/impact-hub/partner-portal/pkg/logger"
)

// ErrDatabaseRequired is returned when a process cannot run on the in-memory store.
var ErrDatabaseRequired = errors.New("bootstrap: DATABASE_URL is required")

// NewLogger builds the process logger from the observability settings.
func NewLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Output = os.Stdout
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	opts.Pretty = strings.EqualFold(cfg.Observability.LogFormat, "text")
	return logger.New(opts).With(
		logger.String("app", cfg.App.Name),
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
	)
}

// EventBus is the bus both processes publish to and subscribe on.
type EventBus interface {
	shared.EventBus
	Close() error
}

// Infra holds opened infrastructure. Optional parts are nil when not configured.
type Infra struct {
	Store    port.Store
	Postgres *postgres.Connection
	Redis    *redis.Cache

	// Leaderboard is nil when Redis is off; kept as an interface so callers
	// never see a typed nil.
	Leaderboard leaderboard.Cache
	Bus         EventBus

	log     *logger.Logger
	closers []func()
}

// Options tunes Open.
type Options struct {
	// RequireDatabase refuses the in-memory fallback.
	RequireDatabase bool

	// Migrate applies migrations and seeds the rank table.
	Migrate bool
}

// Open connects the store, Redis and the event bus.
// Without DATABASE_URL the in-memory store is used, development only.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger, opts Options) (*Infra, error) {
	in := &Infra{log: log}

	if err := in.openStore(ctx, cfg, opts); err != nil {
		in.Close()
		return nil, err
	}
	if err := in.openRedis(cfg); err != nil {
		in.Close()
		return nil, err
	}
	if err := in.openBus(); err != nil {
		in.Close()
		return nil, err
	}
	return in, nil
}

func (in *Infra) openStore(ctx context.Context, cfg *config.Config, opts Options) error {
	if cfg.Database.URL == "" {
		if opts.RequireDatabase || cfg.IsProduction() {
			return ErrDatabaseRequired
		}
		in.log.Warn("DATABASE_URL not set, using the in-memory store")
		in.Store = memory.NewStore()
		return nil
	}

	pgCfg := postgres.DefaultConfig()
	pgCfg.URL = cfg.Database.URL
	pgCfg.MaxConns = int32(cfg.Database.MaxConns)
	pgCfg.MinConns = int32(cfg.Database.MinConns)
	pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	pgCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
	pgCfg.QueryTimeout = cfg.Database.QueryTimeout
	pgCfg.TxTimeout = cfg.Database.TxTimeout

	in.log.Info("connecting to database...")
	conn, err := postgres.NewConnection(ctx, pgCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	in.Postgres = conn
	in.closers = append(in.closers, func() {
		in.log.Info("closing database connection...")
		conn.Close()
	})

	store := postgres.NewStore(conn, shared.SystemClock)
	in.Store = store

	if !opts.Migrate {
		return nil
	}
	applied, err := postgres.NewMigrator(conn).Migrate(ctx)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	in.log.Info("migrations completed", logger.Int("applied", applied))

	if err := store.SeedRanks(ctx, cfg.Ranks.Table); err != nil {
		return fmt.Errorf("failed to seed ranks: %w", err)
	}
	return nil
}

func (in *Infra) openRedis(cfg *config.Config) error {
	if !cfg.Redis.Enabled() {
		in.log.Info("Redis not configured, leaderboard cache disabled")
		return nil
	}

	rc := redis.DefaultConfig()
	rc.URL = cfg.Redis.URL
	if cfg.Redis.Host != "" {
		rc.Host = cfg.Redis.Host
	}
	rc.Port = cfg.Redis.Port
	rc.Password = cfg.Redis.Password
	rc.DB = cfg.Redis.DB
	rc.PoolSize = cfg.Redis.PoolSize
	rc.MinIdleConns = cfg.Redis.MinIdleConns
	rc.DialTimeout = cfg.Redis.DialTimeout
	rc.ReadTimeout = cfg.Redis.ReadTimeout
	rc.WriteTimeout = cfg.Redis.WriteTimeout

	cache, err := redis.NewCache(rc)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	in.Redis = cache
	in.closers = append(in.closers, func() { _ = cache.Close() })

	in.Leaderboard = redis.NewLeaderboardCache(cache).WithBreaker(
		circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
			in.log.Warn("circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		}),
	)
	in.log.Info("Redis connection established")
	return nil
}

// openBus fans events out over Redis Pub/Sub when Redis is on, so approvals
// made by one replica reach handlers in every process.
func (in *Infra) openBus() error {
	local := messaging.DefaultInMemoryEventBusConfig()
	local.AsyncMode = true
	local.Logger = in.log

	var bus EventBus
	if in.Redis != nil {
		rb, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         messaging.NewGoRedisPubSub(in.Redis.Client()),
			LocalBusConfig: local,
			Logger:         in.log,
		})
		if err != nil {
			return fmt.Errorf("failed to start event bus: %w", err)
		}
		bus = rb
	} else {
		bus = messaging.NewInMemoryEventBus(local)
	}

	in.Bus = bus
	in.closers = append(in.closers, func() {
		in.log.Info("closing event bus...")
		_ = bus.Close()
	})
	return nil
}

// HealthChecks registers dependency checks: Postgres is critical, Redis is not.
func (in *Infra) HealthChecks(checker *handlers.CompositeHealthChecker) {
	if in.Postgres != nil {
		checker.AddCheck("postgres", handlers.PingCheck(in.Postgres), true)
	}
	if in.Redis != nil {
		checker.AddCheck("redis", handlers.PingCheck(in.Redis), false)
	}
}

// Close releases everything in reverse order of opening.
func (in *Infra) Close() {
	for i := len(in.closers) - 1; i >= 0; i-- {
		in.closers[i]()
	}
	in.closers = nil
}
