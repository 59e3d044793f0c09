package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// DefaultStorageKey is the name of the persisted progress record
const DefaultStorageKey = "cybersec-sim-storage"

// Config holds all configuration for breach-sim
type Config struct {
	Catalog   CatalogConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	AutoReset AutoResetConfig
	Log       LogConfig
}

// CatalogConfig holds content catalog configuration
type CatalogConfig struct {
	Dir string // empty selects the built-in content
}

// StorageConfig holds progress persistence configuration
type StorageConfig struct {
	Backend    string
	Key        string
	DataDir    string
	SQLitePath string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	DSN             string
	Table           string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string
}

// AutoResetConfig holds the auto-restart worker configuration
type AutoResetConfig struct {
	After time.Duration // 0 disables
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  slog.Level
	Format string // json | text
}

// Load loads configuration from environment variables.
// A .env file in the working directory is applied first if present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	dataDir := getEnv("SIM_DATA_DIR", defaultDataDir())

	cfg := &Config{
		Catalog: CatalogConfig{
			Dir: getEnv("SIM_CATALOG_DIR", ""),
		},
		Storage: StorageConfig{
			Backend:    strings.ToLower(getEnv("SIM_STORAGE_BACKEND", BackendFile)),
			Key:        getEnv("SIM_STORAGE_KEY", DefaultStorageKey),
			DataDir:    dataDir,
			SQLitePath: getEnv("SIM_SQLITE_PATH", filepath.Join(dataDir, "breach-sim.db")),
		},
		Database: DatabaseConfig{
			DSN:             getEnv("DATABASE_DSN", ""),
			Table:           getEnv("DATABASE_TABLE", "sim_progress"),
			MaxOpenConns:    getEnvAsInt("DATABASE_MAX_OPEN_CONNS", 4),
			MaxIdleConns:    getEnvAsInt("DATABASE_MAX_IDLE_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DATABASE_MAX_CONN_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Prefix:   getEnv("REDIS_PREFIX", "breach-sim:"),
		},
		AutoReset: AutoResetConfig{
			After: getEnvAsDuration("SIM_AUTORESET_AFTER", 30*time.Second),
		},
		Log: LogConfig{
			Level:  getEnvAsLevel("SIM_LOG_LEVEL", slog.LevelInfo),
			Format: strings.ToLower(getEnv("SIM_LOG_FORMAT", "json")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Storage.Key == "" {
		return fmt.Errorf("storage key is required")
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Storage.DataDir == "" {
			return fmt.Errorf("data dir is required for the file backend")
		}
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required for the sqlite backend")
		}
	case BackendPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database DSN is required for the postgres backend")
		}
		if c.Database.Table == "" {
			return fmt.Errorf("database table is required for the postgres backend")
		}
		if c.Database.MaxConnLifetime < 0 {
			return fmt.Errorf("invalid database connection lifetime: %s", c.Database.MaxConnLifetime)
		}
	case BackendRedis:
		if c.Redis.Address == "" {
			return fmt.Errorf("redis address is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown storage backend: %q", c.Storage.Backend)
	}

	if c.AutoReset.After < 0 {
		return fmt.Errorf("invalid auto-reset delay: %s", c.AutoReset.After)
	}

	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("invalid log format: %q", c.Log.Format)
	}

	return nil
}

// Helper functions

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "breach-sim")
	}
	return ".breach-sim"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsLevel(key string, defaultValue slog.Level) slog.Level {
	if value, exists := os.LookupEnv(key); exists {
		var level slog.Level
		if err := level.UnmarshalText([]byte(value)); err == nil {
			return level
		}
	}
	return defaultValue
}
