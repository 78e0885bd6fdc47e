// Package storage defines persistence for memories and their embedding vectors.
package storage

import (
	"context"
	"errors"

	"github.com/xiy/claude-memory-server/internal/models"
)

// ErrMemoryNotFound is returned when no memory exists for an ID.
var ErrMemoryNotFound = errors.New("memory not found")

// ErrNoEmbedding is returned when no vector is stored for a
// (memory, provider, model) triple.
var ErrNoEmbedding = errors.New("no stored embedding")

// Store defines memory and embedding persistence operations.
//
// The store is the single source of truth for persisted vectors: a memory has
// at most one vector per (provider, model) pair, written with transactional
// upsert, and vectors for different pairs coexist independently.
type Store interface {
	// Memory operations
	CreateMemory(ctx context.Context, mem *models.Memory) error
	GetMemory(ctx context.Context, id string) (*models.Memory, error)
	UpdateMemory(ctx context.Context, mem *models.Memory) error
	DeleteMemory(ctx context.Context, id string) error
	ListMemories(ctx context.Context, category string, offset, limit int) ([]*models.Memory, error)
	CountMemories(ctx context.Context) (int64, error)

	// Embedding operations (vector store contract)
	StoreEmbedding(ctx context.Context, memoryID string, vec []float32, provider, model string, dimensions int) error
	GetEmbedding(ctx context.Context, memoryID, provider, model string) ([]float32, error)
	// GetAllEmbeddings returns all vectors for (provider, model) in storage
	// insertion order, optionally filtered to a memory category.
	GetAllEmbeddings(ctx context.Context, provider, model, category string) ([]*models.StoredVector, error)
	DeleteEmbeddings(ctx context.Context, memoryID string) error
	EmbeddingStats(ctx context.Context) (map[string]*models.ProviderStats, error)

	Close() error
}
