// Package memory provides the write path for memory records: persistence,
// keyword indexing, and embedding generation in one place.
package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xiy/claude-memory-server/internal/keyword"
	"github.com/xiy/claude-memory-server/internal/models"
	"github.com/xiy/claude-memory-server/internal/search"
	"github.com/xiy/claude-memory-server/internal/storage"
)

// Manager coordinates memory writes across the store, the keyword index, and
// the embedding pipeline.
type Manager struct {
	store    storage.Store
	keywords keyword.KeywordIndex
	engine   *search.Engine
	logger   *zap.Logger
}

// NewManager creates a manager with the given dependencies.
func NewManager(store storage.Store, keywords keyword.KeywordIndex, engine *search.Engine, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:    store,
		keywords: keywords,
		engine:   engine,
		logger:   logger,
	}
}

// Remember persists a new memory, indexes it for keyword search, and
// generates its embedding. An embedding failure never fails the write: the
// memory is kept without a vector and a warning is the only visible effect.
func (m *Manager) Remember(ctx context.Context, input *models.MemoryInput) (*models.Memory, error) {
	if strings.TrimSpace(input.Content) == "" {
		return nil, fmt.Errorf("memory content cannot be empty")
	}
	if input.ID == "" {
		input.ID = uuid.New().String()
	}
	mem := &models.Memory{
		ID:       input.ID,
		Content:  input.Content,
		Category: input.Category,
		Tags:     input.Tags,
		Metadata: input.Metadata,
	}
	if err := m.store.CreateMemory(ctx, mem); err != nil {
		return nil, fmt.Errorf("failed to store memory: %w", err)
	}
	if err := m.keywords.Index(ctx, mem.ID, mem); err != nil {
		return nil, fmt.Errorf("failed to index memory: %w", err)
	}
	if err := m.engine.GenerateAndStoreEmbedding(ctx, mem); err != nil {
		m.logger.Warn("memory stored without embedding", zap.String("memory_id", mem.ID), zap.Error(err))
	}
	return mem, nil
}

// Update rewrites a memory's content and metadata, refreshes the keyword
// index, and re-embeds. As with Remember, embedding failure is non-fatal.
func (m *Manager) Update(ctx context.Context, input *models.MemoryInput) (*models.Memory, error) {
	if input.ID == "" {
		return nil, fmt.Errorf("memory id is required")
	}
	if strings.TrimSpace(input.Content) == "" {
		return nil, fmt.Errorf("memory content cannot be empty")
	}
	mem, err := m.store.GetMemory(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	mem.Content = input.Content
	mem.Category = input.Category
	mem.Tags = input.Tags
	if input.Metadata != nil {
		mem.Metadata = input.Metadata
	}
	if err := m.store.UpdateMemory(ctx, mem); err != nil {
		return nil, err
	}
	if err := m.keywords.Index(ctx, mem.ID, mem); err != nil {
		return nil, fmt.Errorf("failed to re-index memory: %w", err)
	}
	if err := m.engine.GenerateAndStoreEmbedding(ctx, mem); err != nil {
		m.logger.Warn("memory updated without fresh embedding", zap.String("memory_id", mem.ID), zap.Error(err))
	}
	return mem, nil
}

// Forget removes a memory, its keyword entry, and all its stored vectors.
func (m *Manager) Forget(ctx context.Context, id string) error {
	if err := m.store.DeleteEmbeddings(ctx, id); err != nil {
		return fmt.Errorf("failed to delete embeddings: %w", err)
	}
	if err := m.keywords.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to remove from keyword index: %w", err)
	}
	if err := m.store.DeleteMemory(ctx, id); err != nil {
		return err
	}
	return nil
}

// Backfill generates embeddings for all stored memories that have none under
// the active provider. Returns the number of vectors stored.
func (m *Manager) Backfill(ctx context.Context) (int, error) {
	const pageSize = 500
	total := 0
	for offset := 0; ; offset += pageSize {
		mems, err := m.store.ListMemories(ctx, "", offset, pageSize)
		if err != nil {
			return total, err
		}
		if len(mems) == 0 {
			return total, nil
		}
		n, err := m.engine.EnsureEmbeddingsExist(ctx, mems)
		if err != nil {
			return total, err
		}
		total += n
		if len(mems) < pageSize {
			return total, nil
		}
	}
}
