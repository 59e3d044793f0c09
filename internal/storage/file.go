package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/terra-clan/breach-sim/internal/models"
)

// FileRepository stores each record as a JSON file in a data directory
type FileRepository struct {
	dir string
}

// NewFileRepository creates the data directory if needed
func NewFileRepository(dir string) (*FileRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	return &FileRepository{dir: dir}, nil
}

// Load reads and decodes the record file for key
func (r *FileRepository) Load(ctx context.Context, key string) (*models.ProgressRecord, error) {
	path, err := r.path(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read progress file: %w", err)
	}

	return DecodeRecord(data)
}

// Save writes the record to a temp file and renames it over the old one
func (r *FileRepository) Save(ctx context.Context, key string, rec *models.ProgressRecord) error {
	path, err := r.path(key)
	if err != nil {
		return err
	}

	data, err := EncodeRecord(rec)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(r.dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write progress file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync progress file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close progress file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace progress file: %w", err)
	}

	return nil
}

// Delete removes the record file for key
func (r *FileRepository) Delete(ctx context.Context, key string) error {
	path, err := r.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete progress file: %w", err)
	}
	return nil
}

// Ping checks the data directory is still there
func (r *FileRepository) Ping(ctx context.Context) error {
	info, err := os.Stat(r.dir)
	if err != nil {
		return fmt.Errorf("data dir unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("data dir %s is not a directory", r.dir)
	}
	return nil
}

// Close is a no-op
func (r *FileRepository) Close() error {
	return nil
}

func (r *FileRepository) path(key string) (string, error) {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return "", fmt.Errorf("invalid storage key: %q", key)
	}
	return filepath.Join(r.dir, key+".json"), nil
}
