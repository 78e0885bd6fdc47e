package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/memoryd/data/memories.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/memoryd/data/indices/bleve"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "mock"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheTTL == 0 {
		cfg.Embedding.CacheTTL = Duration(time.Hour)
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 32
	}
	if cfg.Embedding.Debounce == 0 {
		cfg.Embedding.Debounce = Duration(50 * time.Millisecond)
	}
	if cfg.Embedding.DrainDelay == 0 {
		cfg.Embedding.DrainDelay = Duration(100 * time.Millisecond)
	}
	if cfg.Embedding.MaxRetries == 0 {
		cfg.Embedding.MaxRetries = 3
	}
	if cfg.Embedding.BaseDelay == 0 {
		cfg.Embedding.BaseDelay = Duration(time.Second)
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 10
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 100
	}
	if cfg.Search.MinSimilarity == 0 {
		cfg.Search.MinSimilarity = 0.3
	}
	if cfg.Search.TextWeight == 0 && cfg.Search.SemanticWeight == 0 {
		cfg.Search.TextWeight = 0.3
		cfg.Search.SemanticWeight = 0.7
	}
	if cfg.Capture.Extensions == nil {
		cfg.Capture.Extensions = []string{".txt", ".md", ".rst", ".pdf"}
	}
	if cfg.Capture.Category == "" {
		cfg.Capture.Category = "notes"
	}
	if cfg.Capture.Debounce == 0 {
		cfg.Capture.Debounce = Duration(500 * time.Millisecond)
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Capture.Directories) > 0 && cfg.Capture.Recursive == nil {
		t := true
		cfg.Capture.Recursive = &t
	}
}
