package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Service is the long-lived coordinator that owns the cache and coalescer for
// one provider. All embedding acquisition goes through it: single-text calls
// are cached and coalesced; explicit multi-text calls bypass the coalescer and
// hit the provider's batch endpoint directly.
type Service struct {
	provider  Provider
	cache     *Cache
	coalescer *Coalescer
	retry     RetryPolicy
	logger    *zap.Logger
}

// ServiceConfig configures a Service. Zero values use the defaults.
type ServiceConfig struct {
	CacheTTL   time.Duration
	CacheSize  int
	BatchSize  int
	Debounce   time.Duration
	DrainDelay time.Duration
	MaxRetries int
	BaseDelay  time.Duration
	Logger     *zap.Logger
}

// NewService creates the embedding coordinator for provider.
func NewService(provider Provider, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cache := NewCache(cfg.CacheTTL, cfg.CacheSize)
	retry := NewRetryPolicy(cfg.MaxRetries, cfg.BaseDelay)
	coalescer := NewCoalescer(provider, cache, CoalescerConfig{
		BatchSize:  cfg.BatchSize,
		Debounce:   cfg.Debounce,
		DrainDelay: cfg.DrainDelay,
		Retry:      retry,
		Logger:     logger,
	})
	return &Service{
		provider:  provider,
		cache:     cache,
		coalescer: coalescer,
		retry:     retry,
		logger:    logger,
	}
}

// Embed returns the embedding for text: cache lookup first, then the
// coalesced batch path on a miss. The coalescer fills the cache on success.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	key := CacheKey(s.provider.Name(), s.provider.Model(), text)
	if v, ok := s.cache.Get(key); ok {
		return v, nil
	}
	return s.coalescer.Embed(ctx, text)
}

// EmbedBatch embeds multiple texts in one provider call, bypassing the
// coalescer. Cached texts are not resubmitted. A count mismatch from the
// provider fails with ErrBatchLengthMismatch without retrying the batch;
// callers degrade to per-text generation via Embed.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	var (
		missing    []string
		missingIdx []int
	)
	for i, text := range texts {
		key := CacheKey(s.provider.Name(), s.provider.Model(), text)
		if v, ok := s.cache.Get(key); ok {
			results[i] = v
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return results, nil
	}

	var vectors [][]float32
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		vs, err := s.provider.EmbedBatch(ctx, missing)
		if err != nil {
			return err
		}
		if len(vs) != len(missing) {
			return fmt.Errorf("%w: %d vectors for %d texts", ErrBatchLengthMismatch, len(vs), len(missing))
		}
		vectors = vs
		return nil
	})
	if err != nil {
		return nil, err
	}
	for j, i := range missingIdx {
		s.cache.Set(CacheKey(s.provider.Name(), s.provider.Model(), texts[i]), vectors[j])
		results[i] = vectors[j]
	}
	return results, nil
}

// Available reports whether the provider can serve requests.
func (s *Service) Available(ctx context.Context) bool {
	return s.provider.Available(ctx)
}

// Provider returns the active provider.
func (s *Service) Provider() Provider {
	return s.provider
}

// Info describes the active provider.
func (s *Service) Info() Info {
	return Info{
		Name:       s.provider.Name(),
		Model:      s.provider.Model(),
		Dimensions: s.provider.Dimensions(),
	}
}

// ClearCache drops all cached embeddings.
func (s *Service) ClearCache() {
	s.cache.Clear()
}

// Close stops the coalescer worker and releases the provider.
func (s *Service) Close() error {
	s.coalescer.Close()
	return s.provider.Close()
}
