package storage

import (
	"context"
	"errors"
	"fmt"

	"taskdash/internal/config"
	"taskdash/internal/database"

	"gorm.io/gorm/logger"
)

var (
	ErrNotFound    = errors.New("key not found")
	ErrStoreClosed = errors.New("store closed")
)

// KeyValueStore holds opaque string-keyed blobs. Writes always replace the
// whole value stored under a key.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Health(ctx context.Context) error
	Close() error
}

// Open builds the backend selected by STORAGE_DRIVER.
func Open(cfg *config.Config) (KeyValueStore, error) {
	switch cfg.Storage.Driver {
	case config.StorageMemory, "":
		return NewMemoryStore(), nil
	case config.StorageRedis:
		store := NewRedisStore(&RedisConfig{
			Addr:         cfg.GetRedisAddr(),
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			KeyPrefix:    cfg.Storage.KeyPrefix,
		})
		return store, nil
	case config.StorageSQLite:
		return openSQL(&database.PoolConfig{
			Driver:       database.DriverSQLite,
			DSN:          cfg.Storage.SQLitePath,
			MaxOpenConns: 1,
			MaxIdleConns: 1,
			LogLevel:     logger.Warn,
		})
	case config.StoragePostgres:
		return openSQL(&database.PoolConfig{
			Driver:          database.DriverPostgres,
			DSN:             cfg.GetDatabaseDSN(),
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
			LogLevel:        logger.Warn,
		})
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}

func openSQL(poolConfig *database.PoolConfig) (KeyValueStore, error) {
	pool, err := database.NewDatabasePool(poolConfig)
	if err != nil {
		return nil, err
	}
	store, err := NewSQLStore(pool)
	if err != nil {
		_ = pool.Close()
		return nil, err
	}
	return store, nil
}
