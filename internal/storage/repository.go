package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/terra-clan/breach-sim/internal/config"
	"github.com/terra-clan/breach-sim/internal/models"
)

// Read failures of a persisted record
var (
	ErrMalformedRecord    = errors.New("malformed progress record")
	ErrUnsupportedVersion = errors.New("unsupported progress record version")
)

// Repository defines the interface for progress persistence.
// Records are stored whole under a single key; catalog content is never persisted.
type Repository interface {
	// Load returns the record stored under key, or nil if there is none
	Load(ctx context.Context, key string) (*models.ProgressRecord, error)
	Save(ctx context.Context, key string, rec *models.ProgressRecord) error
	Delete(ctx context.Context, key string) error

	// Health
	Ping(ctx context.Context) error
	Close() error
}

// Open creates the repository selected by the storage configuration
func Open(ctx context.Context, cfg *config.Config) (Repository, error) {
	slog.Info("opening progress storage", "backend", cfg.Storage.Backend)

	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return NewMemoryRepository(), nil
	case config.BackendFile:
		return NewFileRepository(cfg.Storage.DataDir)
	case config.BackendSQLite:
		return NewSQLiteRepository(ctx, cfg.Storage.SQLitePath)
	case config.BackendPostgres:
		return NewPostgresRepository(ctx, postgresConfig(cfg))
	case config.BackendRedis:
		return NewRedisRepository(ctx, RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend: %q", cfg.Storage.Backend)
	}
}

func postgresConfig(cfg *config.Config) PostgresConfig {
	return PostgresConfig{
		DSN:          cfg.Database.DSN,
		Table:        cfg.Database.Table,
		MaxOpenConns: int32(cfg.Database.MaxOpenConns),
		MaxIdleConns: int32(cfg.Database.MaxIdleConns),
		MaxLifetime:  cfg.Database.MaxConnLifetime,
	}
}
