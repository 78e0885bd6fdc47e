package search

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xiy/claude-memory-server/internal/embedding"
	"github.com/xiy/claude-memory-server/internal/models"
	"github.com/xiy/claude-memory-server/internal/storage"
)

// GenerateAndStoreEmbedding embeds a memory's content and persists the vector
// under the active (provider, model). Callers on the record write path treat
// a failure here as non-fatal: the memory stays persisted without a vector.
func (e *Engine) GenerateAndStoreEmbedding(ctx context.Context, mem *models.Memory) error {
	vec, err := e.embedder.Embed(ctx, mem.Content)
	if err != nil {
		return fmt.Errorf("embed memory %s: %w", mem.ID, err)
	}
	info := e.embedder.Info()
	if err := e.store.StoreEmbedding(ctx, mem.ID, vec, embedding.ProviderID(info.Name), info.Model, info.Dimensions); err != nil {
		return fmt.Errorf("store embedding for memory %s: %w", mem.ID, err)
	}
	return nil
}

// EnsureEmbeddingsExist backfills vectors for memories that have none stored
// under the active (provider, model). Missing texts are embedded in one batch
// call; if the batch fails (including a batch length mismatch) each text falls
// back to individual generation. Failures on a subset are logged and do not
// fail the backfill. Returns the number of vectors stored.
func (e *Engine) EnsureEmbeddingsExist(ctx context.Context, mems []*models.Memory) (int, error) {
	info := e.embedder.Info()
	provider := embedding.ProviderID(info.Name)

	var missing []*models.Memory
	for _, mem := range mems {
		_, err := e.store.GetEmbedding(ctx, mem.ID, provider, info.Model)
		if err == nil {
			continue
		}
		if !errors.Is(err, storage.ErrNoEmbedding) {
			return 0, err
		}
		missing = append(missing, mem)
	}
	if len(missing) == 0 {
		return 0, nil
	}

	texts := make([]string, len(missing))
	for i, mem := range missing {
		texts[i] = mem.Content
	}

	stored := 0
	vectors, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		e.logger.Warn("batch backfill failed, falling back to per-memory generation",
			zap.Int("missing", len(missing)), zap.Error(err))
		for _, mem := range missing {
			if genErr := e.GenerateAndStoreEmbedding(ctx, mem); genErr != nil {
				e.logger.Warn("backfill failed for memory",
					zap.String("memory_id", mem.ID), zap.Error(genErr))
				continue
			}
			stored++
		}
		return stored, nil
	}

	for i, mem := range missing {
		if err := e.store.StoreEmbedding(ctx, mem.ID, vectors[i], provider, info.Model, info.Dimensions); err != nil {
			e.logger.Warn("backfill store failed for memory",
				zap.String("memory_id", mem.ID), zap.Error(err))
			continue
		}
		stored++
	}
	return stored, nil
}

// EmbeddingStatistics reports stored vector counts and models per provider.
func (e *Engine) EmbeddingStatistics(ctx context.Context) (map[string]*models.ProviderStats, error) {
	return e.store.EmbeddingStats(ctx)
}

// SemanticSearchEnabled reports whether the embedding provider can currently
// serve requests. A failed probe downgrades to false, never an error, so
// callers can fall back to lexical-only operation.
func (e *Engine) SemanticSearchEnabled(ctx context.Context) bool {
	return e.embedder.Available(ctx)
}

// ProviderInfo describes the active embedding provider.
func (e *Engine) ProviderInfo() embedding.Info {
	return e.embedder.Info()
}
