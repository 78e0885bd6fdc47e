package search

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/xiy/claude-memory-server/internal/keyword"
	"github.com/xiy/claude-memory-server/internal/models"
)

const (
	// DefaultTextWeight weights the normalized lexical rank score.
	DefaultTextWeight = 0.3
	// DefaultSemanticWeight weights the cosine similarity score.
	DefaultSemanticWeight = 0.7
	// combinedScoreFloor drops hybrid results at or below this combined score.
	combinedScoreFloor = 0.1
	// recencyBoostMax is the maximum additive boost for recently updated memories.
	recencyBoostMax = 0.1
	// recencyWindowDays is the window over which the recency boost decays to zero.
	recencyWindowDays = 30.0
)

// HybridOptions tunes hybrid search. Weights may be any non-negative values
// and are not required to sum to 1.
type HybridOptions struct {
	Limit          int
	MinSimilarity  float64
	Category       string
	TextWeight     float64
	SemanticWeight float64
	BoostRecent    bool
}

// hybridCandidate accumulates the per-source scores for one memory.
type hybridCandidate struct {
	memoryID   string
	similarity float64
	textScore  float64
}

// HybridSearch blends semantic similarity with normalized lexical rank.
//
// Both sources are queried with an expanded candidate pool (limit*2); the
// semantic threshold is relaxed to MinSimilarity*0.8 so near-misses can still
// win on lexical evidence. Lexical rank i of N normalizes to (N-i)/N. Each
// candidate scores similarity*SemanticWeight + textScore*TextWeight, plus a
// recency boost of up to 0.1 decaying over 30 days when BoostRecent is set.
// Results at or below 0.1 combined are dropped.
//
// When the embedding path fails, hybrid search degrades to pure lexical
// results with similarity 0 and combined score 1 rather than returning an
// error.
func (e *Engine) HybridSearch(ctx context.Context, query string, opts HybridOptions) ([]*models.SearchResult, bool, error) {
	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	poolSize := opts.Limit * 2

	queryVec, embedErr := e.embedder.Embed(ctx, query)
	var semantic []*scoredVector
	if embedErr == nil {
		var err error
		semantic, err = e.scoreAgainst(ctx, queryVec, opts.Category, opts.MinSimilarity*0.8, "")
		if err != nil {
			return nil, false, err
		}
		if len(semantic) > poolSize {
			semantic = semantic[:poolSize]
		}
	} else {
		e.logger.Warn("semantic search unavailable, degrading to lexical only", zap.Error(embedErr))
	}

	lexical, err := e.keywords.Search(ctx, query, poolSize, opts.Category)
	if err != nil {
		return nil, false, err
	}

	if embedErr != nil {
		results, err := e.lexicalOnlyResults(ctx, lexical, opts.Limit)
		return results, true, err
	}

	// Union candidates: semantic hits first (already in score-then-storage
	// order), then lexical-only hits in rank order, for deterministic ties.
	byID := make(map[string]*hybridCandidate)
	ordered := make([]*hybridCandidate, 0, len(semantic)+len(lexical))
	for _, sv := range semantic {
		c := &hybridCandidate{memoryID: sv.memoryID, similarity: sv.similarity}
		byID[sv.memoryID] = c
		ordered = append(ordered, c)
	}
	n := len(lexical)
	for i, hit := range lexical {
		textScore := float64(n-i) / float64(n)
		if textScore < 0 {
			textScore = 0
		}
		if c, ok := byID[hit.ID]; ok {
			c.textScore = textScore
			continue
		}
		c := &hybridCandidate{memoryID: hit.ID, textScore: textScore}
		byID[hit.ID] = c
		ordered = append(ordered, c)
	}

	now := time.Now()
	results := make([]*models.SearchResult, 0, len(ordered))
	for _, c := range ordered {
		mem, err := e.store.GetMemory(ctx, c.memoryID)
		if err != nil {
			e.logger.Warn("search hit without memory record", zap.String("memory_id", c.memoryID), zap.Error(err))
			continue
		}
		combined := c.similarity*opts.SemanticWeight + c.textScore*opts.TextWeight
		if opts.BoostRecent {
			days := now.Sub(mem.UpdatedAt).Hours() / 24
			boost := (1 - days/recencyWindowDays) * recencyBoostMax
			if boost > 0 {
				combined += boost
			}
		}
		if combined <= combinedScoreFloor {
			continue
		}
		results = append(results, &models.SearchResult{
			Memory:        mem,
			Similarity:    c.similarity,
			TextScore:     c.textScore,
			CombinedScore: combined,
		})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].CombinedScore > results[j].CombinedScore })
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, false, nil
}

// lexicalOnlyResults is the graceful-degradation path: lexical hits in rank
// order with similarity 0 and combined score 1.
func (e *Engine) lexicalOnlyResults(ctx context.Context, lexical []*keyword.KeywordResult, limit int) ([]*models.SearchResult, error) {
	results := make([]*models.SearchResult, 0, limit)
	for _, hit := range lexical {
		if len(results) >= limit {
			break
		}
		mem, err := e.store.GetMemory(ctx, hit.ID)
		if err != nil {
			continue
		}
		results = append(results, &models.SearchResult{
			Memory:        mem,
			TextScore:     hit.Score,
			CombinedScore: 1,
		})
	}
	return results, nil
}
