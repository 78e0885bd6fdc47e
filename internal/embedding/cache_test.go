package embedding

import (
	"testing"
	"time"
)

func TestCache_GetSet(t *testing.T) {
	c := NewCache(time.Hour, 10)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected miss on empty cache")
	}
	v := []float32{1, 2, 3}
	c.Set("k", v)
	got, ok := c.Get("k")
	if !ok {
		t.Fatal("expected hit")
	}
	if len(got) != 3 || got[0] != 1 {
		t.Errorf("unexpected vector: %v", got)
	}
	if c.Len() != 1 {
		t.Errorf("Len=%d, want 1", c.Len())
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	c := NewCache(time.Hour, 10)
	now := time.Now()
	c.now = func() time.Time { return now }
	c.Set("k", []float32{1})

	now = now.Add(30 * time.Minute)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("expected hit within TTL")
	}

	now = now.Add(31 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected miss past TTL")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry not removed, Len=%d", c.Len())
	}
}

func TestCache_CapacityEvictsOldest(t *testing.T) {
	c := NewCache(time.Hour, 2)
	c.Set("a", []float32{1})
	c.Set("b", []float32{2})
	c.Set("c", []float32{3})

	if _, ok := c.Get("a"); ok {
		t.Error("oldest entry should have been evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("entry b should survive")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("entry c should survive")
	}
}

func TestCache_SetRefreshesInsertionOrder(t *testing.T) {
	c := NewCache(time.Hour, 2)
	c.Set("a", []float32{1})
	c.Set("b", []float32{2})
	// Re-setting a makes b the oldest.
	c.Set("a", []float32{10})
	c.Set("c", []float32{3})

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted after a was refreshed")
	}
	got, ok := c.Get("a")
	if !ok || got[0] != 10 {
		t.Errorf("a should hold refreshed value, got %v ok=%v", got, ok)
	}
}

func TestCache_Clear(t *testing.T) {
	c := NewCache(time.Hour, 10)
	c.Set("a", []float32{1})
	c.Set("b", []float32{2})
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len=%d after Clear", c.Len())
	}
	if _, ok := c.Get("a"); ok {
		t.Error("expected miss after Clear")
	}
}

func TestCacheKey_IncludesProviderAndModel(t *testing.T) {
	k1 := CacheKey("openai", "text-embedding-3-small", "hello")
	k2 := CacheKey("openai", "text-embedding-3-large", "hello")
	k3 := CacheKey("ollama", "text-embedding-3-small", "hello")
	if k1 == k2 {
		t.Error("different models must produce different keys")
	}
	if k1 == k3 {
		t.Error("different providers must produce different keys")
	}
	if k1 != CacheKey("openai", "text-embedding-3-small", "hello") {
		t.Error("cache key must be deterministic")
	}
}
