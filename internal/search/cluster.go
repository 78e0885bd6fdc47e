package search

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/xiy/claude-memory-server/internal/embedding"
	"github.com/xiy/claude-memory-server/internal/models"
	"github.com/xiy/claude-memory-server/internal/vector"
)

// ClusterMemories groups stored memories by single-pass greedy clustering.
//
// Vectors are visited in storage insertion order. Each unprocessed vector
// seeds a new cluster with self-similarity 1.0; every later unprocessed vector
// with similarity >= threshold to the seed joins the cluster and is marked
// processed. Clusters smaller than minClusterSize are discarded. The average
// similarity is the mean of the similarities recorded as members joined, seed
// included. Output clusters are sorted descending by average similarity.
//
// The algorithm is intentionally single-link and order-sensitive: it does not
// chase transitive closure and makes no optimality claim. Callers depend on it
// being deterministic and cheap, so the storage iteration order is the
// tie-breaker at the threshold boundary.
func (e *Engine) ClusterMemories(ctx context.Context, threshold float64, minClusterSize int) ([]*models.Cluster, error) {
	if minClusterSize < 1 {
		minClusterSize = 2
	}
	info := e.embedder.Info()
	stored, err := e.store.GetAllEmbeddings(ctx, embedding.ProviderID(info.Name), info.Model, "")
	if err != nil {
		return nil, fmt.Errorf("fetch vectors for clustering: %w", err)
	}

	processed := make([]bool, len(stored))
	var clusters []*models.Cluster

	for i := range stored {
		if processed[i] {
			continue
		}
		seed := stored[i]
		memberIdx := []int{i}
		sims := []float64{1.0}

		for j := i + 1; j < len(stored); j++ {
			if processed[j] {
				continue
			}
			sim := vector.Cosine(seed.Vector, stored[j].Vector)
			if sim >= threshold {
				memberIdx = append(memberIdx, j)
				sims = append(sims, sim)
				processed[j] = true
			}
		}
		processed[i] = true

		if len(memberIdx) < minClusterSize {
			continue
		}

		var sum float64
		for _, s := range sims {
			sum += s
		}
		cluster := &models.Cluster{AvgSimilarity: sum / float64(len(sims))}
		for k, idx := range memberIdx {
			mem, err := e.store.GetMemory(ctx, stored[idx].MemoryID)
			if err != nil {
				e.logger.Warn("clustered vector without memory record",
					zap.String("memory_id", stored[idx].MemoryID), zap.Error(err))
				continue
			}
			cluster.Members = append(cluster.Members, &models.SearchResult{
				Memory:        mem,
				Similarity:    sims[k],
				CombinedScore: sims[k],
			})
		}
		if len(cluster.Members) >= minClusterSize {
			clusters = append(clusters, cluster)
		}
	}

	sort.SliceStable(clusters, func(i, j int) bool { return clusters[i].AvgSimilarity > clusters[j].AvgSimilarity })
	return clusters, nil
}
