package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/terra-clan/breach-sim/internal/models"
)

// SQLiteRepository stores progress records in a local SQLite database
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens the database at path and applies migrations
func NewSQLiteRepository(ctx context.Context, path string) (*SQLiteRepository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sqlite dir: %w", err)
	}

	dsn := cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	if err := applySQLiteMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteRepository{db: db}, nil
}

// Load reads the record stored under key
func (r *SQLiteRepository) Load(ctx context.Context, key string) (*models.ProgressRecord, error) {
	var payload string
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM progress WHERE key = ?`, key).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	return DecodeRecord([]byte(payload))
}

// Save upserts the record under key
func (r *SQLiteRepository) Save(ctx context.Context, key string, rec *models.ProgressRecord) error {
	data, err := EncodeRecord(rec)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO progress (key, version, payload, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			version = excluded.version,
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, key, rec.Version, string(data), rec.UpdatedAt.UnixMilli()); err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}

// Delete removes the record stored under key
func (r *SQLiteRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM progress WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete progress: %w", err)
	}
	return nil
}

// Ping checks database connectivity
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
