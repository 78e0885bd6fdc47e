// Package keyword provides lexical (full-text) indexing and search over memories.
package keyword

import (
	"context"

	"github.com/xiy/claude-memory-server/internal/models"
)

// KeywordIndex defines lexical search operations. Search results are
// rank-ordered best first; hybrid search consumes only that ordering.
type KeywordIndex interface {
	Index(ctx context.Context, id string, mem *models.Memory) error
	Search(ctx context.Context, query string, limit int, category string) ([]*KeywordResult, error)
	Delete(ctx context.Context, id string) error
	DocCount() (uint64, error)
	Close() error
}

// KeywordResult is a single lexical search hit.
type KeywordResult struct {
	ID    string
	Score float64
}
