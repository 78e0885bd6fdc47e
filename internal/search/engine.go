// Package search ranks stored memories against queries: semantic (cosine),
// hybrid (semantic + lexical), nearest-neighbor, and greedy clustering.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/xiy/claude-memory-server/internal/embedding"
	"github.com/xiy/claude-memory-server/internal/keyword"
	"github.com/xiy/claude-memory-server/internal/models"
	"github.com/xiy/claude-memory-server/internal/storage"
	"github.com/xiy/claude-memory-server/internal/vector"
)

// ErrEmbeddingNotFound is returned when a similarity lookup targets a memory
// with no stored vector for the active provider.
var ErrEmbeddingNotFound = errors.New("embedding not found")

// Options tunes semantic and nearest-neighbor searches.
type Options struct {
	Limit          int
	MinSimilarity  float64
	Category       string
	IncludeVectors bool
}

func (o *Options) normalize() {
	if o.Limit <= 0 {
		o.Limit = 10
	}
}

// Engine runs similarity ranking over the vector store and blends in lexical
// results from the keyword index.
type Engine struct {
	store    storage.Store
	keywords keyword.KeywordIndex
	embedder *embedding.Service
	logger   *zap.Logger
}

// NewEngine creates an engine with the given dependencies.
func NewEngine(store storage.Store, keywords keyword.KeywordIndex, embedder *embedding.Service, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:    store,
		keywords: keywords,
		embedder: embedder,
		logger:   logger,
	}
}

// SemanticSearch embeds the query, scores every stored vector for the active
// (provider, model) by cosine similarity, discards scores below
// opts.MinSimilarity, and returns up to opts.Limit results in descending
// score order. Ties keep storage insertion order.
func (e *Engine) SemanticSearch(ctx context.Context, query string, opts Options) ([]*models.SearchResult, error) {
	opts.normalize()
	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	scored, err := e.scoreAgainst(ctx, queryVec, opts.Category, opts.MinSimilarity, "")
	if err != nil {
		return nil, err
	}
	return e.collectResults(ctx, scored, opts)
}

// FindSimilarMemories ranks stored memories by similarity to the vector of an
// existing memory, excluding the memory itself. Returns ErrEmbeddingNotFound
// when the source memory has no stored vector.
func (e *Engine) FindSimilarMemories(ctx context.Context, memoryID string, opts Options) ([]*models.SearchResult, error) {
	opts.normalize()
	info := e.embedder.Info()
	sourceVec, err := e.store.GetEmbedding(ctx, memoryID, embedding.ProviderID(info.Name), info.Model)
	if err != nil {
		if errors.Is(err, storage.ErrNoEmbedding) {
			return nil, fmt.Errorf("%w: memory %s", ErrEmbeddingNotFound, memoryID)
		}
		return nil, err
	}
	scored, err := e.scoreAgainst(ctx, sourceVec, opts.Category, opts.MinSimilarity, memoryID)
	if err != nil {
		return nil, err
	}
	return e.collectResults(ctx, scored, opts)
}

// KeywordSearch ranks memories by the lexical index alone. Scores carry over
// as both TextScore and CombinedScore; Similarity stays zero.
func (e *Engine) KeywordSearch(ctx context.Context, query string, opts Options) ([]*models.SearchResult, error) {
	opts.normalize()
	lexical, err := e.keywords.Search(ctx, query, opts.Limit, opts.Category)
	if err != nil {
		return nil, err
	}
	results := make([]*models.SearchResult, 0, len(lexical))
	for _, hit := range lexical {
		mem, err := e.store.GetMemory(ctx, hit.ID)
		if err != nil {
			e.logger.Warn("keyword hit without memory record", zap.String("memory_id", hit.ID), zap.Error(err))
			continue
		}
		results = append(results, &models.SearchResult{
			Memory:        mem,
			TextScore:     hit.Score,
			CombinedScore: hit.Score,
		})
	}
	return results, nil
}

// scoredVector pairs a stored vector with its similarity to the query.
type scoredVector struct {
	memoryID   string
	similarity float64
	vec        []float32
}

// scoreAgainst fetches all candidate vectors in storage order and scores them
// against queryVec. Candidates below minSimilarity or matching excludeID are
// dropped. The returned slice is sorted descending by similarity with a
// stable sort, so ties keep storage order.
func (e *Engine) scoreAgainst(ctx context.Context, queryVec []float32, category string, minSimilarity float64, excludeID string) ([]*scoredVector, error) {
	info := e.embedder.Info()
	stored, err := e.store.GetAllEmbeddings(ctx, embedding.ProviderID(info.Name), info.Model, category)
	if err != nil {
		return nil, fmt.Errorf("fetch candidate vectors: %w", err)
	}

	scored := make([]*scoredVector, 0, len(stored))
	for _, sv := range stored {
		if sv.MemoryID == excludeID {
			continue
		}
		sim := vector.Cosine(queryVec, sv.Vector)
		if sim < minSimilarity {
			continue
		}
		scored = append(scored, &scoredVector{memoryID: sv.MemoryID, similarity: sim, vec: sv.Vector})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].similarity > scored[j].similarity })
	return scored, nil
}

// collectResults truncates to the limit and loads the memory record for each
// hit. Memories deleted since their vector was stored are skipped.
func (e *Engine) collectResults(ctx context.Context, scored []*scoredVector, opts Options) ([]*models.SearchResult, error) {
	results := make([]*models.SearchResult, 0, opts.Limit)
	for _, sv := range scored {
		if len(results) >= opts.Limit {
			break
		}
		mem, err := e.store.GetMemory(ctx, sv.memoryID)
		if err != nil {
			e.logger.Warn("vector without memory record", zap.String("memory_id", sv.memoryID), zap.Error(err))
			continue
		}
		result := &models.SearchResult{
			Memory:        mem,
			Similarity:    sv.similarity,
			CombinedScore: sv.similarity,
		}
		if opts.IncludeVectors {
			result.Vector = sv.vec
		}
		results = append(results, result)
	}
	return results, nil
}
