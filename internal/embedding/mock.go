package embedding

import (
	"context"
	"math"
)

// MockProvider is a deterministic provider for tests and offline operation.
// The same text always produces the same unit-length vector, derived from the
// text hash, so similarity comparisons behave consistently.
type MockProvider struct {
	dimensions int
}

// NewMockProvider returns a provider producing deterministic embeddings of the
// given dimensionality (default 384 when non-positive).
func NewMockProvider(dimensions int) *MockProvider {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockProvider{dimensions: dimensions}
}

// Name returns "mock:deterministic".
func (p *MockProvider) Name() string { return "mock:" + p.Model() }

// Model returns the model identifier.
func (p *MockProvider) Model() string { return "deterministic" }

// Dimensions returns the embedding dimension.
func (p *MockProvider) Dimensions() int { return p.dimensions }

// Embed returns a deterministic embedding based on the text hash.
func (p *MockProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	h := HashString(text)
	emb := make([]float32, p.dimensions)
	for i := 0; i < p.dimensions; i++ {
		emb[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
	}
	// Normalize to unit length for cosine similarity
	var sum float64
	for _, v := range emb {
		sum += float64(v * v)
	}
	if sum > 0 {
		norm := 1.0 / math.Sqrt(sum)
		for i := range emb {
			emb[i] *= float32(norm)
		}
	}
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (p *MockProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := p.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Available always reports true.
func (p *MockProvider) Available(ctx context.Context) bool { return true }

// Close is a no-op for MockProvider.
func (p *MockProvider) Close() error { return nil }
