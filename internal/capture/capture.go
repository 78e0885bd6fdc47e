package capture

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xiy/claude-memory-server/internal/memory"
	"github.com/xiy/claude-memory-server/internal/models"
	"github.com/xiy/claude-memory-server/internal/storage"
)

// Capturer turns note files under watched directories into memory records.
// A note's memory ID is derived from its path, so an edited note updates its
// memory in place and a deleted note removes it.
type Capturer struct {
	manager  *memory.Manager
	watcher  *Watcher
	category string
	logger   *zap.Logger
}

// Config configures a Capturer.
type Config struct {
	Directories []string
	Extensions  []string
	Recursive   bool
	Category    string
	Debounce    time.Duration
	Logger      *zap.Logger
}

// NewCapturer creates a capturer writing through manager.
func NewCapturer(manager *memory.Manager, cfg Config) *Capturer {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Capturer{
		manager:  manager,
		category: cfg.Category,
		logger:   logger,
	}
	c.watcher = NewWatcher(WatcherConfig{
		Roots:      cfg.Directories,
		Extensions: cfg.Extensions,
		Recursive:  cfg.Recursive,
		Debounce:   cfg.Debounce,
		OnNote:     c.ingest,
		OnRemove:   c.forget,
		Logger:     logger,
	})
	return c
}

// Start begins watching and ingests notes already present under the
// configured directories.
func (c *Capturer) Start(ctx context.Context) error {
	if err := c.watcher.Start(ctx); err != nil {
		return err
	}
	c.watcher.CaptureExistingFiles()
	return nil
}

// Stop stops the watcher.
func (c *Capturer) Stop() {
	c.watcher.Stop()
}

// Directories returns the watched note directories.
func (c *Capturer) Directories() []string {
	return c.watcher.Directories()
}

// ingest creates or updates the memory for a note file. Empty notes are
// skipped; a note that empties out keeps its previous content.
func (c *Capturer) ingest(path string) {
	ctx := context.Background()
	text, err := ExtractText(path)
	if err != nil {
		c.logger.Warn("failed to extract note", zap.String("path", path), zap.Error(err))
		return
	}
	if strings.TrimSpace(text) == "" {
		c.logger.Debug("skipping empty note", zap.String("path", path))
		return
	}
	input := &models.MemoryInput{
		ID:       NoteID(path),
		Content:  text,
		Category: c.category,
		Metadata: map[string]interface{}{"source_path": path},
	}
	if _, err := c.manager.Update(ctx, input); err != nil {
		if !errors.Is(err, storage.ErrMemoryNotFound) {
			c.logger.Warn("failed to update captured note", zap.String("path", path), zap.Error(err))
			return
		}
		if _, err := c.manager.Remember(ctx, input); err != nil {
			c.logger.Warn("failed to capture note", zap.String("path", path), zap.Error(err))
			return
		}
	}
	c.logger.Info("captured note", zap.String("path", path))
}

// forget removes the memory for a deleted note file.
func (c *Capturer) forget(path string) {
	err := c.manager.Forget(context.Background(), NoteID(path))
	if err != nil && !errors.Is(err, storage.ErrMemoryNotFound) {
		c.logger.Warn("failed to forget removed note", zap.String("path", path), zap.Error(err))
		return
	}
	if err == nil {
		c.logger.Info("forgot removed note", zap.String("path", path))
	}
}
