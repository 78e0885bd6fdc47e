// Package models defines core data structures for memories, queries, and search results.
package models

import "time"

// Memory represents a stored text record with metadata.
type Memory struct {
	ID        string                 `json:"id" db:"id"`
	Content   string                 `json:"content" db:"content"`
	Category  string                 `json:"category,omitempty" db:"category"`
	Tags      []string               `json:"tags,omitempty" db:"tags"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt time.Time              `json:"updated_at" db:"updated_at"`
}

// MemoryInput is the input for creating or updating a memory.
type MemoryInput struct {
	ID       string                 `json:"id,omitempty"`
	Content  string                 `json:"content"`
	Category string                 `json:"category,omitempty"`
	Tags     []string               `json:"tags,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// StoredVector is a persisted embedding joined with its memory ID,
// in storage insertion order.
type StoredVector struct {
	MemoryID string
	Vector   []float32
}

// ProviderStats summarizes stored embeddings for one provider.
type ProviderStats struct {
	Count  int      `json:"count"`
	Models []string `json:"models"`
}
