// Package storage provides the SQLite implementation of the Store interface.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/xiy/claude-memory-server/internal/models"
	"github.com/xiy/claude-memory-server/internal/vector"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		tags TEXT,
		metadata TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_memories_category ON memories(category);
	CREATE INDEX IF NOT EXISTS idx_memories_updated_at ON memories(updated_at);

	CREATE TABLE IF NOT EXISTS memory_embeddings (
		memory_id TEXT NOT NULL,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		dimensions INTEGER NOT NULL,
		vector BLOB NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (memory_id, provider, model),
		FOREIGN KEY (memory_id) REFERENCES memories(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_embeddings_provider_model ON memory_embeddings(provider, model);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateMemory inserts a memory.
func (s *SQLiteStore) CreateMemory(ctx context.Context, mem *models.Memory) error {
	tagsJSON, err := json.Marshal(mem.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	metadataJSON, err := json.Marshal(mem.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	now := time.Now()
	mem.CreatedAt = now
	mem.UpdatedAt = now

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO memories (id, content, category, tags, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		mem.ID, mem.Content, mem.Category, string(tagsJSON), string(metadataJSON), mem.CreatedAt, mem.UpdatedAt,
	)
	return err
}

// GetMemory returns a memory by ID.
func (s *SQLiteStore) GetMemory(ctx context.Context, id string) (*models.Memory, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, content, category, tags, metadata, created_at, updated_at
		 FROM memories WHERE id = ?`, id)
	mem, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrMemoryNotFound, id)
	}
	return mem, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMemory(row rowScanner) (*models.Memory, error) {
	var mem models.Memory
	var tagsJSON, metadataJSON sql.NullString
	err := row.Scan(&mem.ID, &mem.Content, &mem.Category, &tagsJSON, &metadataJSON, &mem.CreatedAt, &mem.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &mem.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &mem.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &mem, nil
}

// UpdateMemory updates a memory's content, category, tags, and metadata.
func (s *SQLiteStore) UpdateMemory(ctx context.Context, mem *models.Memory) error {
	tagsJSON, err := json.Marshal(mem.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	metadataJSON, err := json.Marshal(mem.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	mem.UpdatedAt = time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET content = ?, category = ?, tags = ?, metadata = ?, updated_at = ?
		 WHERE id = ?`,
		mem.Content, mem.Category, string(tagsJSON), string(metadataJSON), mem.UpdatedAt, mem.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrMemoryNotFound, mem.ID)
	}
	return nil
}

// DeleteMemory removes a memory; its embeddings cascade.
func (s *SQLiteStore) DeleteMemory(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrMemoryNotFound, id)
	}
	return nil
}

// ListMemories returns memories in insertion order, optionally filtered by
// category.
func (s *SQLiteStore) ListMemories(ctx context.Context, category string, offset, limit int) ([]*models.Memory, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, content, category, tags, metadata, created_at, updated_at
		 FROM memories`
	args := []interface{}{}
	if category != "" {
		query += ` WHERE category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY rowid LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Memory
	for rows.Next() {
		mem, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, mem)
	}
	return out, rows.Err()
}

// CountMemories returns the total number of memories.
func (s *SQLiteStore) CountMemories(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&n)
	return n, err
}

// StoreEmbedding upserts the vector for (memoryID, provider, model). The blob
// is consecutive little-endian float32 values, dimensions*4 bytes.
func (s *SQLiteStore) StoreEmbedding(ctx context.Context, memoryID string, vec []float32, provider, model string, dimensions int) error {
	if len(vec) != dimensions {
		return fmt.Errorf("vector length %d does not match dimensions %d", len(vec), dimensions)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO memory_embeddings (memory_id, provider, model, dimensions, vector, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		memoryID, provider, model, dimensions, vector.Encode(vec), time.Now(),
	)
	return err
}

// GetEmbedding returns the stored vector for (memoryID, provider, model).
// Returns ErrNoEmbedding when absent; a blob whose length does not match the
// recorded dimensions fails loudly.
func (s *SQLiteStore) GetEmbedding(ctx context.Context, memoryID, provider, model string) ([]float32, error) {
	var blob []byte
	var dimensions int
	err := s.db.QueryRowContext(ctx,
		`SELECT vector, dimensions FROM memory_embeddings
		 WHERE memory_id = ? AND provider = ? AND model = ?`,
		memoryID, provider, model,
	).Scan(&blob, &dimensions)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: memory %s (%s/%s)", ErrNoEmbedding, memoryID, provider, model)
	}
	if err != nil {
		return nil, err
	}
	return vector.Decode(blob, dimensions)
}

// GetAllEmbeddings returns all vectors for (provider, model) in storage
// insertion order, optionally filtered by the memory's category.
func (s *SQLiteStore) GetAllEmbeddings(ctx context.Context, provider, model, category string) ([]*models.StoredVector, error) {
	query := `SELECT e.memory_id, e.vector, e.dimensions
		 FROM memory_embeddings e`
	args := []interface{}{}
	if category != "" {
		query += ` JOIN memories m ON m.id = e.memory_id
		 WHERE e.provider = ? AND e.model = ? AND m.category = ?`
		args = append(args, provider, model, category)
	} else {
		query += ` WHERE e.provider = ? AND e.model = ?`
		args = append(args, provider, model)
	}
	query += ` ORDER BY e.rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.StoredVector
	for rows.Next() {
		var memoryID string
		var blob []byte
		var dimensions int
		if err := rows.Scan(&memoryID, &blob, &dimensions); err != nil {
			return nil, err
		}
		vec, err := vector.Decode(blob, dimensions)
		if err != nil {
			return nil, fmt.Errorf("embedding for memory %s: %w", memoryID, err)
		}
		out = append(out, &models.StoredVector{MemoryID: memoryID, Vector: vec})
	}
	return out, rows.Err()
}

// DeleteEmbeddings removes all vectors for a memory across providers.
func (s *SQLiteStore) DeleteEmbeddings(ctx context.Context, memoryID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM memory_embeddings WHERE memory_id = ?`, memoryID)
	return err
}

// EmbeddingStats returns, per provider, the vector count and the distinct
// models stored.
func (s *SQLiteStore) EmbeddingStats(ctx context.Context) (map[string]*models.ProviderStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT provider, model, COUNT(*) FROM memory_embeddings
		 GROUP BY provider, model ORDER BY provider, model`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make(map[string]*models.ProviderStats)
	for rows.Next() {
		var provider, model string
		var count int
		if err := rows.Scan(&provider, &model, &count); err != nil {
			return nil, err
		}
		ps, ok := stats[provider]
		if !ok {
			ps = &models.ProviderStats{}
			stats[provider] = ps
		}
		ps.Count += count
		ps.Models = append(ps.Models, model)
	}
	return stats, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
