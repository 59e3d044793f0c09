package storage

import (
	"context"
	"sync"

	"github.com/terra-clan/breach-sim/internal/models"
)

// MemoryRepository keeps encoded records in process memory
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string][]byte)}
}

// Load decodes the record stored under key
func (r *MemoryRepository) Load(ctx context.Context, key string) (*models.ProgressRecord, error) {
	r.mu.RLock()
	data, ok := r.records[key]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return DecodeRecord(data)
}

// Save encodes and stores the record under key
func (r *MemoryRepository) Save(ctx context.Context, key string, rec *models.ProgressRecord) error {
	data, err := EncodeRecord(rec)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.records[key] = data
	r.mu.Unlock()
	return nil
}

// Put stores raw bytes under key, bypassing encoding
func (r *MemoryRepository) Put(key string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[key] = append([]byte(nil), data...)
}

// Delete removes the record stored under key
func (r *MemoryRepository) Delete(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, key)
	return nil
}

// Ping always succeeds
func (r *MemoryRepository) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (r *MemoryRepository) Close() error {
	return nil
}
