// Package embedding provides text embedding acquisition: a pluggable provider
// contract, a TTL cache, bounded retry, and batch coalescing of concurrent
// single-text requests.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// probeTimeout bounds the availability probe issued by providers.
const probeTimeout = 5 * time.Second

// Provider converts text to fixed-size embedding vectors.
type Provider interface {
	// Name returns a stable identifier, conventionally "<provider>:<model>".
	Name() string
	// Model returns the model identifier.
	Model() string
	// Dimensions returns the fixed vector length for this provider/model.
	Dimensions() int
	// Embed returns the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns one embedding per input text, position-aligned.
	// A result count differing from the input count is an integrity error.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Available reports whether the provider can serve requests. It issues a
	// lightweight probe bounded by a short timeout and never returns an error;
	// any probe failure reports false.
	Available(ctx context.Context) bool
	Close() error
}

// Info describes the active provider for status reporting.
type Info struct {
	Name       string `json:"name"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
}

// ProviderID returns the provider part of a "<provider>:<model>" name.
func ProviderID(name string) string {
	for i := 0; i < len(name); i++ {
		if name[i] == ':' {
			return name[:i]
		}
	}
	return name
}

// CacheKey derives the cache key for a (provider, model, text) triple.
// Provider and model are part of the key so that switching providers never
// serves a vector from a different embedding space.
func CacheKey(providerName, model, text string) string {
	h := sha256.New()
	h.Write([]byte(providerName))
	h.Write([]byte{0})
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}
