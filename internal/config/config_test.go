package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, "debug: true\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug not parsed")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port=%d, want 8080", cfg.Server.Port)
	}
	if cfg.Embedding.Provider != "mock" {
		t.Errorf("provider=%q, want mock", cfg.Embedding.Provider)
	}
	if cfg.Embedding.CacheTTL.Std() != time.Hour {
		t.Errorf("cache ttl=%v, want 1h", cfg.Embedding.CacheTTL)
	}
	if cfg.Embedding.CacheSize != 1000 {
		t.Errorf("cache size=%d, want 1000", cfg.Embedding.CacheSize)
	}
	if cfg.Embedding.BatchSize != 32 {
		t.Errorf("batch size=%d, want 32", cfg.Embedding.BatchSize)
	}
	if cfg.Embedding.Debounce.Std() != 50*time.Millisecond {
		t.Errorf("debounce=%v, want 50ms", cfg.Embedding.Debounce)
	}
	if cfg.Embedding.MaxRetries != 3 {
		t.Errorf("max retries=%d, want 3", cfg.Embedding.MaxRetries)
	}
	if cfg.Search.MinSimilarity != 0.3 {
		t.Errorf("min similarity=%v, want 0.3", cfg.Search.MinSimilarity)
	}
	if cfg.Search.TextWeight != 0.3 || cfg.Search.SemanticWeight != 0.7 {
		t.Errorf("weights=%v/%v, want 0.3/0.7", cfg.Search.TextWeight, cfg.Search.SemanticWeight)
	}
	if !cfg.Search.BoostRecentOrDefault() {
		t.Error("boost_recent should default to true")
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
embedding:
  provider: ollama
  model: nomic-embed-text
  dimensions: 768
  cache_ttl: 10m
search:
  min_similarity: 0.5
  boost_recent: false
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port=%d, want 9090", cfg.Server.Port)
	}
	if cfg.Embedding.Provider != "ollama" || cfg.Embedding.Model != "nomic-embed-text" {
		t.Errorf("provider=%q model=%q", cfg.Embedding.Provider, cfg.Embedding.Model)
	}
	if cfg.Embedding.Dimensions != 768 {
		t.Errorf("dimensions=%d, want 768", cfg.Embedding.Dimensions)
	}
	if cfg.Embedding.CacheTTL.Std() != 10*time.Minute {
		t.Errorf("cache ttl=%v, want 10m", cfg.Embedding.CacheTTL)
	}
	if cfg.Search.MinSimilarity != 0.5 {
		t.Errorf("min similarity=%v, want 0.5", cfg.Search.MinSimilarity)
	}
	if cfg.Search.BoostRecentOrDefault() {
		t.Error("boost_recent=false not honored")
	}
}

func TestLoad_ExpandsRelativePaths(t *testing.T) {
	path := writeConfig(t, `
storage:
  database_path: ./data/memories.db
  bleve_index_path: ./data/bleve
capture:
  directories:
    - ./notes
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	configDir := filepath.Dir(path)
	if cfg.Storage.DatabasePath != filepath.Join(configDir, "data/memories.db") {
		t.Errorf("database path not expanded: %s", cfg.Storage.DatabasePath)
	}
	if cfg.Capture.Directories[0] != filepath.Join(configDir, "notes") {
		t.Errorf("capture dir not expanded: %s", cfg.Capture.Directories[0])
	}
}

func TestLoad_CaptureDefaults(t *testing.T) {
	path := writeConfig(t, `
capture:
  directories:
    - /tmp/notes
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Capture.RecursiveOrDefault() {
		t.Error("recursive should default to true when directories are set")
	}
	if cfg.Capture.Category != "notes" {
		t.Errorf("category=%q, want notes", cfg.Capture.Category)
	}
	if len(cfg.Capture.Extensions) == 0 {
		t.Error("extensions default missing")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Capture.Directories = []string{"/tmp/notes"}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Capture.Directories) != 1 || loaded.Capture.Directories[0] != "/tmp/notes" {
		t.Errorf("capture directories lost in round trip: %v", loaded.Capture.Directories)
	}
}
