package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/xiy/claude-memory-server/internal/embedding"
	"github.com/xiy/claude-memory-server/internal/vector"
)

func BenchmarkCosine(b *testing.B) {
	x := make([]float32, 384)
	y := make([]float32, 384)
	for i := range x {
		x[i] = float32(i) / 384
		y[i] = float32(384-i) / 384
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = vector.Cosine(x, y)
	}
}

func BenchmarkVectorCodec(b *testing.B) {
	v := make([]float32, 384)
	for i := range v {
		v[i] = float32(i) / 384
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		blob := vector.Encode(v)
		_, _ = vector.Decode(blob, 384)
	}
}

func BenchmarkMockProvider_Embed(b *testing.B) {
	p := embedding.NewMockProvider(384)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = p.Embed(ctx, "benchmark query text for embedding")
	}
}

func BenchmarkMockProvider_EmbedBatch(b *testing.B) {
	p := embedding.NewMockProvider(384)
	ctx := context.Background()
	texts := make([]string, 32)
	for i := range texts {
		texts[i] = fmt.Sprintf("batched memory content %d", i)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = p.EmbedBatch(ctx, texts)
	}
}
