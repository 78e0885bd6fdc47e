package search

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/xiy/claude-memory-server/internal/embedding"
	"github.com/xiy/claude-memory-server/internal/keyword"
	"github.com/xiy/claude-memory-server/internal/models"
	"github.com/xiy/claude-memory-server/internal/storage"
)

// controlledProvider returns preset vectors per text so tests can place
// memories at exact angles to each other.
type controlledProvider struct {
	dimensions int
	vectors    map[string][]float32
	mu         sync.Mutex
	failEmbed  error
	failBatch  error
	batchCalls int
}

func (p *controlledProvider) Name() string    { return "test:unit" }
func (p *controlledProvider) Model() string   { return "unit" }
func (p *controlledProvider) Dimensions() int { return p.dimensions }

func (p *controlledProvider) vectorFor(text string) []float32 {
	if v, ok := p.vectors[text]; ok {
		return v
	}
	v := make([]float32, p.dimensions)
	h := embedding.HashString(text)
	for i := range v {
		v[i] = float32((h+i)%13) / 13.0
	}
	return v
}

func (p *controlledProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	fail := p.failEmbed
	p.mu.Unlock()
	if fail != nil {
		return nil, fail
	}
	return p.vectorFor(text), nil
}

func (p *controlledProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	p.batchCalls++
	failBatch := p.failBatch
	failEmbed := p.failEmbed
	p.mu.Unlock()
	if failBatch != nil && len(texts) > 1 {
		return nil, failBatch
	}
	if failEmbed != nil {
		return nil, failEmbed
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.vectorFor(t)
	}
	return out, nil
}

func (p *controlledProvider) Available(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failEmbed == nil && p.failBatch == nil
}

func (p *controlledProvider) Close() error { return nil }

type testEnv struct {
	store    *storage.SQLiteStore
	keywords *keyword.BleveIndex
	engine   *Engine
	provider *controlledProvider
}

func newTestEnv(t *testing.T, dimensions int) *testEnv {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStore(filepath.Join(dir, "memories.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	kw, err := keyword.NewBleveIndex(filepath.Join(dir, "bleve"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = kw.Close() })

	provider := &controlledProvider{dimensions: dimensions, vectors: make(map[string][]float32)}
	svc := embedding.NewService(provider, embedding.ServiceConfig{
		Debounce:   time.Millisecond,
		DrainDelay: time.Millisecond,
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
	})
	t.Cleanup(func() { _ = svc.Close() })

	return &testEnv{
		store:    store,
		keywords: kw,
		engine:   NewEngine(store, kw, svc, nil),
		provider: provider,
	}
}

// addMemory stores a memory and, when vec is non-nil, its vector under the
// test provider.
func (env *testEnv) addMemory(t *testing.T, id, content, category string, vec []float32) {
	t.Helper()
	ctx := context.Background()
	mem := &models.Memory{ID: id, Content: content, Category: category}
	if err := env.store.CreateMemory(ctx, mem); err != nil {
		t.Fatal(err)
	}
	if err := env.keywords.Index(ctx, id, mem); err != nil {
		t.Fatal(err)
	}
	if vec != nil {
		if err := env.store.StoreEmbedding(ctx, id, vec, "test", "unit", len(vec)); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSemanticSearch_RanksAndFilters(t *testing.T) {
	env := newTestEnv(t, 3)
	env.provider.vectors["query"] = []float32{1, 0, 0}
	env.addMemory(t, "exact", "exact match", "", []float32{1, 0, 0})
	env.addMemory(t, "close", "close match", "", []float32{0.9, 0.1, 0})
	env.addMemory(t, "unrelated", "unrelated", "", []float32{0, 1, 0})

	results, err := env.engine.SemanticSearch(context.Background(), "query", Options{Limit: 10, MinSimilarity: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Memory.ID != "exact" || results[1].Memory.ID != "close" {
		t.Errorf("unexpected order: %s, %s", results[0].Memory.ID, results[1].Memory.ID)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Similarity > results[i-1].Similarity {
			t.Error("similarities not non-increasing")
		}
	}
}

func TestSemanticSearch_IdenticalVectors(t *testing.T) {
	env := newTestEnv(t, 768)
	unit := make([]float32, 768)
	unit[0] = 1
	env.provider.vectors["the query"] = unit
	env.addMemory(t, "a", "record a", "", unit)
	env.addMemory(t, "b", "record b", "", unit)

	results, err := env.engine.SemanticSearch(context.Background(), "the query", Options{Limit: 10, MinSimilarity: 0.99})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for _, r := range results {
		if r.Similarity < 0.999999 {
			t.Errorf("identical vectors scored %v, want 1.0", r.Similarity)
		}
	}
	// Ties keep storage insertion order.
	if results[0].Memory.ID != "a" || results[1].Memory.ID != "b" {
		t.Errorf("tie order not stable: %s, %s", results[0].Memory.ID, results[1].Memory.ID)
	}
}

func TestSemanticSearch_CategoryFilter(t *testing.T) {
	env := newTestEnv(t, 3)
	env.provider.vectors["q"] = []float32{1, 0, 0}
	env.addMemory(t, "w", "work note", "work", []float32{1, 0, 0})
	env.addMemory(t, "h", "home note", "home", []float32{1, 0, 0})

	results, err := env.engine.SemanticSearch(context.Background(), "q", Options{Limit: 10, Category: "work"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Memory.ID != "w" {
		t.Errorf("category filter failed: %+v", results)
	}
}

func TestFindSimilarMemories_ExcludesSource(t *testing.T) {
	env := newTestEnv(t, 3)
	env.addMemory(t, "src", "source", "", []float32{1, 0, 0})
	env.addMemory(t, "near", "nearby", "", []float32{0.95, 0.05, 0})

	results, err := env.engine.FindSimilarMemories(context.Background(), "src", Options{Limit: 10, MinSimilarity: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Memory.ID != "near" {
		t.Fatalf("unexpected results: %+v", results)
	}
	for _, r := range results {
		if r.Memory.ID == "src" {
			t.Error("source memory included in its own neighbors")
		}
	}
}

func TestFindSimilarMemories_NoVector(t *testing.T) {
	env := newTestEnv(t, 3)
	env.addMemory(t, "bare", "no vector stored", "", nil)

	_, err := env.engine.FindSimilarMemories(context.Background(), "bare", Options{Limit: 10})
	if !errors.Is(err, ErrEmbeddingNotFound) {
		t.Fatalf("expected ErrEmbeddingNotFound, got %v", err)
	}

	_, err = env.engine.FindSimilarMemories(context.Background(), "missing-entirely", Options{Limit: 10})
	if !errors.Is(err, ErrEmbeddingNotFound) {
		t.Fatalf("expected ErrEmbeddingNotFound for unknown id, got %v", err)
	}
}

func TestHybridSearch_PureLexicalWeights(t *testing.T) {
	env := newTestEnv(t, 3)
	// Vectors present but semantically irrelevant under zero semantic weight.
	env.provider.vectors["alpha beta"] = []float32{1, 0, 0}
	env.addMemory(t, "both", "alpha beta together", "", []float32{0, 1, 0})
	env.addMemory(t, "one", "alpha alone here", "", []float32{0, 1, 0})
	env.addMemory(t, "none", "gamma delta", "", []float32{0, 1, 0})

	lexical, err := env.keywords.Search(context.Background(), "alpha beta", 20, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(lexical) < 2 {
		t.Fatalf("lexical baseline too small: %d", len(lexical))
	}

	results, degraded, err := env.engine.HybridSearch(context.Background(), "alpha beta", HybridOptions{
		Limit:          10,
		TextWeight:     1,
		SemanticWeight: 0,
		BoostRecent:    false,
	})
	if err != nil {
		t.Fatal(err)
	}
	if degraded {
		t.Fatal("unexpected degradation")
	}
	if len(results) != len(lexical) {
		t.Fatalf("got %d results, want %d", len(results), len(lexical))
	}
	for i := range lexical {
		if results[i].Memory.ID != lexical[i].ID {
			t.Errorf("rank %d: hybrid %s != lexical %s", i, results[i].Memory.ID, lexical[i].ID)
		}
	}
}

func TestHybridSearch_BlendsScores(t *testing.T) {
	env := newTestEnv(t, 3)
	env.provider.vectors["deploy pipeline"] = []float32{1, 0, 0}
	// Semantically strong, lexically absent.
	env.addMemory(t, "sem", "release train automation", "", []float32{0.98, 0.1, 0})
	// Lexically strong, semantically weak.
	env.addMemory(t, "lex", "deploy pipeline broke", "", []float32{0, 1, 0})

	results, degraded, err := env.engine.HybridSearch(context.Background(), "deploy pipeline", HybridOptions{
		Limit:          10,
		MinSimilarity:  0.3,
		TextWeight:     DefaultTextWeight,
		SemanticWeight: DefaultSemanticWeight,
	})
	if err != nil {
		t.Fatal(err)
	}
	if degraded {
		t.Fatal("unexpected degradation")
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	ids := map[string]bool{}
	for _, r := range results {
		ids[r.Memory.ID] = true
		if r.CombinedScore <= combinedScoreFloor {
			t.Errorf("result %s under combined floor: %v", r.Memory.ID, r.CombinedScore)
		}
	}
	if !ids["sem"] || !ids["lex"] {
		t.Errorf("union lost a source: %v", ids)
	}
}

func TestHybridSearch_DegradesToLexical(t *testing.T) {
	env := newTestEnv(t, 3)
	env.addMemory(t, "a", "searchable text here", "", []float32{1, 0, 0})
	env.provider.mu.Lock()
	env.provider.failEmbed = embedding.ErrProviderUnavailable
	env.provider.mu.Unlock()

	results, degraded, err := env.engine.HybridSearch(context.Background(), "searchable", HybridOptions{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if !degraded {
		t.Fatal("expected degraded result set")
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Similarity != 0 {
		t.Errorf("degraded similarity=%v, want 0", results[0].Similarity)
	}
	if results[0].CombinedScore != 1 {
		t.Errorf("degraded combined score=%v, want 1", results[0].CombinedScore)
	}
}

func TestClusterMemories_GreedyScenario(t *testing.T) {
	env := newTestEnv(t, 3)
	// Four mutually similar records and one isolated outlier.
	group := [][]float32{
		{1, 0.01, 0},
		{1, 0.02, 0},
		{1, 0.03, 0},
		{1, 0.04, 0},
	}
	for i, v := range group {
		env.addMemory(t, fmt.Sprintf("g%d", i), fmt.Sprintf("grouped %d", i), "", v)
	}
	env.addMemory(t, "iso", "isolated", "", []float32{0, 0.1, 1})

	clusters, err := env.engine.ClusterMemories(context.Background(), 0.8, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(clusters) != 1 {
		t.Fatalf("got %d clusters, want exactly 1", len(clusters))
	}
	if len(clusters[0].Members) != 4 {
		t.Fatalf("cluster size=%d, want 4", len(clusters[0].Members))
	}
	seen := map[string]bool{}
	for _, m := range clusters[0].Members {
		if m.Memory.ID == "iso" {
			t.Error("isolated record assigned to a cluster")
		}
		if seen[m.Memory.ID] {
			t.Errorf("record %s appears twice", m.Memory.ID)
		}
		seen[m.Memory.ID] = true
	}
	if clusters[0].AvgSimilarity <= 0.8 || clusters[0].AvgSimilarity > 1.0 {
		t.Errorf("avg similarity out of expected range: %v", clusters[0].AvgSimilarity)
	}
	// Seed contributes 1.0; members contribute their seed similarity.
	if clusters[0].Members[0].Similarity != 1.0 {
		t.Errorf("seed similarity=%v, want 1.0", clusters[0].Members[0].Similarity)
	}
}

func TestClusterMemories_MinSizeFiltersSingletons(t *testing.T) {
	env := newTestEnv(t, 3)
	env.addMemory(t, "a", "alone a", "", []float32{1, 0, 0})
	env.addMemory(t, "b", "alone b", "", []float32{0, 1, 0})

	clusters, err := env.engine.ClusterMemories(context.Background(), 0.9, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(clusters) != 0 {
		t.Errorf("got %d clusters, want 0", len(clusters))
	}
}

func TestEnsureEmbeddingsExist_BatchesMissing(t *testing.T) {
	env := newTestEnv(t, 3)
	ctx := context.Background()
	env.addMemory(t, "has", "already embedded", "", []float32{1, 0, 0})
	env.addMemory(t, "m1", "needs one", "", nil)
	env.addMemory(t, "m2", "needs two", "", nil)

	mems, err := env.store.ListMemories(ctx, "", 0, 100)
	if err != nil {
		t.Fatal(err)
	}
	stored, err := env.engine.EnsureEmbeddingsExist(ctx, mems)
	if err != nil {
		t.Fatal(err)
	}
	if stored != 2 {
		t.Errorf("stored=%d, want 2", stored)
	}
	if env.provider.batchCalls != 1 {
		t.Errorf("batchCalls=%d, want 1", env.provider.batchCalls)
	}
	for _, id := range []string{"m1", "m2"} {
		if _, err := env.store.GetEmbedding(ctx, id, "test", "unit"); err != nil {
			t.Errorf("memory %s still missing vector: %v", id, err)
		}
	}
}

func TestEnsureEmbeddingsExist_FallsBackPerMemory(t *testing.T) {
	env := newTestEnv(t, 3)
	ctx := context.Background()
	env.addMemory(t, "m1", "first", "", nil)
	env.addMemory(t, "m2", "second", "", nil)

	env.provider.mu.Lock()
	env.provider.failBatch = fmt.Errorf("%w: 1 vectors for 2 texts", embedding.ErrBatchLengthMismatch)
	env.provider.mu.Unlock()

	mems, err := env.store.ListMemories(ctx, "", 0, 100)
	if err != nil {
		t.Fatal(err)
	}
	stored, err := env.engine.EnsureEmbeddingsExist(ctx, mems)
	if err != nil {
		t.Fatal(err)
	}
	if stored != 2 {
		t.Errorf("stored=%d, want 2 via per-memory fallback", stored)
	}
}

func TestGenerateAndStoreEmbedding(t *testing.T) {
	env := newTestEnv(t, 3)
	ctx := context.Background()
	env.addMemory(t, "m1", "some content", "", nil)

	mem, err := env.store.GetMemory(ctx, "m1")
	if err != nil {
		t.Fatal(err)
	}
	if err := env.engine.GenerateAndStoreEmbedding(ctx, mem); err != nil {
		t.Fatal(err)
	}
	vec, err := env.store.GetEmbedding(ctx, "m1", "test", "unit")
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != 3 {
		t.Errorf("stored vector dimensions=%d, want 3", len(vec))
	}
}

func TestProviderInfoAndAvailability(t *testing.T) {
	env := newTestEnv(t, 3)
	info := env.engine.ProviderInfo()
	if info.Name != "test:unit" || info.Dimensions != 3 {
		t.Errorf("unexpected info: %+v", info)
	}
	if !env.engine.SemanticSearchEnabled(context.Background()) {
		t.Error("expected semantic search enabled")
	}
	env.provider.mu.Lock()
	env.provider.failEmbed = embedding.ErrProviderUnavailable
	env.provider.mu.Unlock()
	if env.engine.SemanticSearchEnabled(context.Background()) {
		t.Error("expected semantic search disabled when provider fails")
	}
}
