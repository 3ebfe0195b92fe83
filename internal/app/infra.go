package app

import (
	"context"
	"fmt"

	"kalpe/internal/config"
	"kalpe/internal/events"
	"kalpe/internal/repositories"
	"kalpe/internal/repositories/cache"

	"github.com/sirupsen/logrus"
)

// Closer releases a resource opened by one of the Open functions.
type Closer func() error

// Check pings a backing service.
type Check func(ctx context.Context) error

// OpenStore returns the store selected by cfg.StoreDriver. For postgres it
// connects, migrates the schema and returns a ping check.
func OpenStore(cfg *config.Config, log *logrus.Logger) (repositories.Store, Check, Closer, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		log.Warn("using in-memory store; data is lost on restart")
		store := repositories.NewMemoryStore(cfg.Wallet.LockTimeout)
		return store, nil, func() error { return nil }, nil
	}

	db, err := repositories.OpenPostgres(repositories.DBConfig{
		Host:            cfg.DB.Host,
		Port:            cfg.DB.Port,
		User:            cfg.DB.User,
		Password:        cfg.DB.Password,
		Name:            cfg.DB.Name,
		SSLMode:         cfg.DB.SSLMode,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.DB.ConnMaxIdleTime,
	}, log)
	if err != nil {
		return nil, nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	if err := repositories.Migrate(db); err != nil {
		_ = sqlDB.Close()
		return nil, nil, nil, err
	}
	log.Info("connected to database")
	return repositories.NewGormStore(db, cfg.Wallet.LockTimeout), sqlDB.PingContext, sqlDB.Close, nil
}

// OpenCache returns the Redis cache when one is configured and a no-op
// cache otherwise.
func OpenCache(ctx context.Context, cfg *config.Config, log *logrus.Logger) (Cache, Check, Closer) {
	if !cfg.Redis.Enabled() {
		log.Info("redis not configured; caching disabled")
		return cache.NoopCache{}, nil, func() error { return nil }
	}
	client := cache.NewRedisClient(&cache.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	svc := cache.NewCacheService(client, cfg.Redis.TTL)
	if err := svc.HealthCheck(ctx); err != nil {
		log.WithError(err).Warn("redis unreachable at startup; cache calls will fail soft")
	}
	return svc, svc.HealthCheck, svc.Close
}

// OpenPublisher returns a Kafka publisher when brokers are configured and
// a log publisher otherwise.
func OpenPublisher(cfg *config.Config, log *logrus.Logger) events.Publisher {
	if !cfg.Kafka.Enabled() {
		return events.NewLogPublisher(log)
	}
	log.WithField("topic", cfg.Kafka.Topic).Info("publishing events to kafka")
	return events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
}
