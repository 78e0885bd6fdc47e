// Package keyword provides the Bleve implementation of KeywordIndex.
package keyword

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/xiy/claude-memory-server/internal/models"
)

// indexedMemory is the document shape stored in Bleve.
type indexedMemory struct {
	Content  string `json:"content"`
	Category string `json:"category"`
	Tags     string `json:"tags"`
}

// BleveIndex implements KeywordIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path. An existing index is
// opened and reused; remove the directory to force a full re-index after a
// mapping change.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	memMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so short memory
	// texts match the exact words a client queries for.
	textFieldMapping.Analyzer = standard.Name
	memMapping.AddFieldMappingsAt("content", textFieldMapping)
	memMapping.AddFieldMappingsAt("tags", textFieldMapping)
	categoryFieldMapping := bleve.NewKeywordFieldMapping()
	memMapping.AddFieldMappingsAt("category", categoryFieldMapping)
	im.AddDocumentMapping("memory", memMapping)
	im.DefaultType = "memory"
	im.DefaultMapping = memMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Index indexes a memory by id. Re-indexing an existing id replaces it.
func (b *BleveIndex) Index(ctx context.Context, id string, mem *models.Memory) error {
	return b.index.Index(id, &indexedMemory{
		Content:  mem.Content,
		Category: mem.Category,
		Tags:     strings.Join(mem.Tags, " "),
	})
}

// Search runs a match query over content and tags and returns up to limit
// hits, best first. A non-empty category restricts results to that category.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, category string) ([]*KeywordResult, error) {
	match := bleve.NewMatchQuery(query)
	var q blevequery.Query = match
	if category != "" {
		catQuery := bleve.NewTermQuery(category)
		catQuery.SetField("category")
		q = bleve.NewConjunctionQuery(match, catQuery)
	}
	search := bleve.NewSearchRequest(q)
	search.Size = limit
	results, err := b.index.Search(search)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*KeywordResult, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &KeywordResult{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// Delete removes a memory from the index.
func (b *BleveIndex) Delete(ctx context.Context, id string) error {
	return b.index.Delete(id)
}

// DocCount returns the number of indexed memories.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
