// Package bootstrap connects the configured backends and hands the services
// the collaborators for the selected store driver.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"service-auction/internal/config"
	"service-auction/internal/domain"
	"service-auction/internal/infrastructure/leader"
	"service-auction/internal/infrastructure/memory"
	"service-auction/internal/infrastructure/mysql"
	"service-auction/internal/infrastructure/redis"
	"service-auction/internal/services"
	"service-auction/pkg/logger"

	redisClient "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
)

var ErrSharedStoreRequired = errors.New("a shared store driver (redis or mysql) is required")

func OpenRedis(ctx context.Context, cfg *config.Config, log logger.Logger) (*redisClient.Client, error) {
	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", cfg.Redis.Address, err)
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address)
	return rdb, nil
}

func OpenMySQL(ctx context.Context, cfg *config.Config, log logger.Logger) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	log.Info("Connected to MySQL")
	return db, nil
}

// Backend is the set of storage collaborators for one store driver.
//
// memory keeps everything in process. redis shares auctions through Redis
// while jobs stay local, so every instance finalizes the auctions it
// scheduled. mysql shares auctions, agents, audit and jobs through MySQL and
// elects one scheduler leader through Redis.
type Backend struct {
	Driver    string
	Store     domain.AuctionStore
	Directory domain.AgentDirectory
	Audit     domain.AuditRepository
	Jobs      domain.SchedulerRepository
	Leader    domain.LeaderElection
	Limiter   domain.RateLimiter

	// auditSink receives events in the store's own audit log; publisher
	// fans them out to other services. Either may be nil.
	auditSink domain.Emitter
	publisher domain.Emitter

	Redis *redisClient.Client
	DB    *sql.DB
	log   logger.Logger
}

func NewBackend(ctx context.Context, cfg *config.Config, log logger.Logger) (*Backend, error) {
	b := &Backend{Driver: cfg.Store.Driver, log: log}

	switch cfg.Store.Driver {
	case config.StoreMemory:
		audit := memory.NewAuditRepository()
		b.Store = memory.NewAuctionStore()
		b.Directory = memory.NewAgentDirectory(Agents(cfg)...)
		b.Audit = audit
		b.auditSink = audit
		b.Jobs = memory.NewSchedulerRepository()
		b.Leader = memory.NewLeaderElection()

	case config.StoreRedis:
		rdb, err := OpenRedis(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		audit := memory.NewAuditRepository()
		b.Redis = rdb
		b.Store = redis.NewRedisAuctionStore(rdb)
		b.Directory = memory.NewAgentDirectory(Agents(cfg)...)
		b.Audit = audit
		b.auditSink = audit
		b.Jobs = memory.NewSchedulerRepository()
		b.Leader = memory.NewLeaderElection()

	case config.StoreMySQL:
		rdb, err := OpenRedis(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		db, err := OpenMySQL(ctx, cfg, log)
		if err != nil {
			_ = rdb.Close()
			return nil, err
		}
		audit := mysql.NewMySQLAuditRepository(db)
		b.Redis = rdb
		b.DB = db
		b.Store = mysql.NewMySQLAuctionRepository(db)
		b.Directory = mysql.NewMySQLAgentDirectory(db)
		b.Audit = audit
		b.auditSink = audit
		b.Jobs = mysql.NewMySQLSchedulerRepository(db)
		b.Leader = leader.NewRedisLeaderElection(rdb, cfg.Leader.Key, cfg.Leader.TTL)

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	b.Limiter = services.NoopLimiter{}
	if b.Redis != nil {
		if cfg.RateLimit.Enabled {
			b.Limiter = redis.NewRedisRateLimiter(b.Redis, cfg.RateLimit.Limit, cfg.RateLimit.Window)
		}
		b.publisher = redis.NewRedisEventPublisher(b.Redis, cfg.Events.Channel)
	}

	log.Info("Storage backend ready", "driver", b.Driver)
	return b, nil
}

// Emitter builds the asynchronous audit pipeline: service log, the store's
// audit log and the pub/sub channel. Close it before closing the backend.
func (b *Backend) Emitter(cfg *config.Config) *services.AsyncEmitter {
	sinks := services.MultiEmitter{services.NewLogEmitter(b.log)}
	if b.auditSink != nil {
		sinks = append(sinks, b.auditSink)
	}
	if b.publisher != nil {
		sinks = append(sinks, b.publisher)
	}
	return services.NewAsyncEmitter(sinks, cfg.Events.BufferSize, b.log)
}

// Shared reports whether other processes can see this backend's auctions.
func (b *Backend) Shared() bool {
	return b.Driver != config.StoreMemory
}

func (b *Backend) Close() {
	if b.DB != nil {
		if err := b.DB.Close(); err != nil {
			b.log.Error("Failed to close MySQL connection", "error", err)
		}
	}
	if b.Redis != nil {
		if err := b.Redis.Close(); err != nil {
			b.log.Error("Failed to close Redis connection", "error", err)
		}
	}
}

// Agents converts the configured agents for the in-memory directory.
func Agents(cfg *config.Config) []domain.AgentInfo {
	agents := make([]domain.AgentInfo, 0, len(cfg.Agents))
	for _, a := range cfg.Agents {
		agents = append(agents, domain.AgentInfo{ID: a.ID, Owner: a.Owner, IsActive: a.Active})
	}
	return agents
}
