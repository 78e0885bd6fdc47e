// Package main is the memoryd CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/xiy/claude-memory-server/internal/capture"
	"github.com/xiy/claude-memory-server/internal/cli"
	"github.com/xiy/claude-memory-server/internal/config"
	"github.com/xiy/claude-memory-server/internal/embedding"
	"github.com/xiy/claude-memory-server/internal/keyword"
	"github.com/xiy/claude-memory-server/internal/memory"
	"github.com/xiy/claude-memory-server/internal/models"
	"github.com/xiy/claude-memory-server/internal/search"
	"github.com/xiy/claude-memory-server/internal/server"
	"github.com/xiy/claude-memory-server/internal/storage"
	"github.com/xiy/claude-memory-server/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/memoryd/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used. Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "remember":
		runRemember()
	case "forget":
		runForget()
	case "similar":
		runSimilar()
	case "clusters":
		runClusters()
	case "backfill":
		runBackfill()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("memoryd version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode))

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	captureCtx, captureCancel := context.WithCancel(context.Background())
	defer captureCancel()
	var capturer *capture.Capturer
	if len(cfg.Capture.Directories) > 0 {
		capturer = capture.NewCapturer(components.Manager, capture.Config{
			Directories: cfg.Capture.Directories,
			Extensions:  cfg.Capture.Extensions,
			Recursive:   cfg.Capture.RecursiveOrDefault(),
			Category:    cfg.Capture.Category,
			Debounce:    cfg.Capture.Debounce.Std(),
			Logger:      logger,
		})
		if err := capturer.Start(captureCtx); err != nil {
			logger.Fatal("Failed to start capture watcher", zap.Error(err))
		}
	}

	srv := server.NewServer(components.Engine, components.Manager, components.Store, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if capturer != nil {
		capturer.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// buildQuery joins all positional args with spaces so multi-word queries work
// the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves any flags (and their values) that appear after positional
// arguments to the front so flag.Parse() sees them. Go's flag package stops at
// the first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", "http://localhost:8080", `server URL (empty = direct storage access)`)
	mode := fs.String("mode", "hybrid", "search mode: hybrid, semantic, or keyword")
	limit := fs.Int("limit", 10, "number of results")
	minSimilarity := fs.Float64("min-similarity", 0, "minimum cosine similarity (0 = config default)")
	category := fs.String("category", "", "restrict to category")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	query := buildQuery(fs.Args())
	if query == "" {
		fmt.Println("Usage: memoryd search [flags] <query>")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	req := &models.SearchRequest{
		Query:         query,
		Mode:          models.SearchMode(*mode),
		Limit:         *limit,
		MinSimilarity: *minSimilarity,
		Category:      *category,
	}
	if err := req.Validate(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	var response *models.SearchResponse
	if *serverURL != "" {
		response, err = searchViaHTTP(*serverURL, req)
	} else {
		response, err = searchDirect(*configPath, req)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func searchViaHTTP(serverURL string, req *models.SearchRequest) (*models.SearchResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

// searchDirect runs the query against local storage, for use when the server
// is not running.
func searchDirect(configPath string, req *models.SearchRequest) (*models.SearchResponse, error) {
	components, cfg, err := initializeFromPath(configPath)
	if err != nil {
		return nil, err
	}
	defer components.Close()

	ctx := context.Background()
	start := time.Now()
	minSimilarity := req.MinSimilarity
	if minSimilarity == 0 {
		minSimilarity = cfg.Search.MinSimilarity
	}
	var (
		results  []*models.SearchResult
		degraded bool
	)
	switch req.Mode {
	case models.ModeSemantic:
		results, err = components.Engine.SemanticSearch(ctx, req.Query, search.Options{
			Limit:         req.Limit,
			MinSimilarity: minSimilarity,
			Category:      req.Category,
		})
	case models.ModeKeyword:
		results, err = components.Engine.KeywordSearch(ctx, req.Query, search.Options{
			Limit:    req.Limit,
			Category: req.Category,
		})
	default:
		results, degraded, err = components.Engine.HybridSearch(ctx, req.Query, search.HybridOptions{
			Limit:          req.Limit,
			MinSimilarity:  minSimilarity,
			Category:       req.Category,
			TextWeight:     cfg.Search.TextWeight,
			SemanticWeight: cfg.Search.SemanticWeight,
			BoostRecent:    cfg.Search.BoostRecentOrDefault(),
		})
	}
	if err != nil {
		return nil, err
	}
	return &models.SearchResponse{
		Results:   results,
		Total:     len(results),
		Mode:      req.Mode,
		QueryTime: time.Since(start).Milliseconds(),
		Query:     req.Query,
		Degraded:  degraded,
	}, nil
}

func runRemember() {
	fs := flag.NewFlagSet("remember", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	category := fs.String("category", "", "memory category")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	content := buildQuery(fs.Args())
	if content == "" {
		fmt.Println("Usage: memoryd remember [flags] <content>")
		os.Exit(1)
	}

	components, _, err := initializeFromPath(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	mem, err := components.Manager.Remember(context.Background(), &models.MemoryInput{
		Content:  content,
		Category: *category,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Remember failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Memory stored: %s\n", mem.ID)
}

func runForget() {
	fs := flag.NewFlagSet("forget", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: memoryd forget [flags] <memory-id>")
		os.Exit(1)
	}
	id := fs.Arg(0)

	components, _, err := initializeFromPath(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	if err := components.Manager.Forget(context.Background(), id); err != nil {
		fmt.Fprintf(os.Stderr, "Forget failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Memory deleted: %s\n", id)
}

func runSimilar() {
	fs := flag.NewFlagSet("similar", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	limit := fs.Int("limit", 10, "number of results")
	minSimilarity := fs.Float64("min-similarity", 0, "minimum cosine similarity (0 = config default)")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: memoryd similar [flags] <memory-id>")
		os.Exit(1)
	}
	id := fs.Arg(0)
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	url := fmt.Sprintf("%s/api/v1/memories/%s/similar?limit=%d&min_similarity=%g",
		*serverURL, id, *limit, *minSimilarity)
	resp, err := http.Get(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var body struct {
		Results []*models.SearchResult `json:"results"`
		Total   int                    `json:"total"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}
	response := &models.SearchResponse{Results: body.Results, Total: body.Total, Mode: models.ModeSemantic, Query: id}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runClusters() {
	fs := flag.NewFlagSet("clusters", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	threshold := fs.Float64("threshold", 0.8, "similarity threshold in (0, 1]")
	minSize := fs.Int("min-size", 2, "minimum cluster size")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	body, _ := json.Marshal(map[string]interface{}{
		"threshold":        *threshold,
		"min_cluster_size": *minSize,
	})
	resp, err := http.Post(*serverURL+"/api/v1/clusters", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var out struct {
		Clusters []*models.Cluster `json:"clusters"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteClusters(os.Stdout, out.Clusters, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runBackfill() {
	fs := flag.NewFlagSet("backfill", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", "http://localhost:8080", `server URL (empty = direct storage access)`)
	_ = fs.Parse(os.Args[2:])

	if *serverURL != "" {
		resp, err := http.Post(*serverURL+"/api/v1/embeddings/backfill", "application/json", nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		var out struct {
			Stored int `json:"stored"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Backfilled %d embedding(s)\n", out.Stored)
		return
	}

	components, _, err := initializeFromPath(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()
	stored, err := components.Manager.Backfill(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Backfill failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Backfilled %d embedding(s)\n", stored)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(*serverURL + "/api/v1/status")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var status struct {
		Memories        int64 `json:"memories"`
		SemanticEnabled bool  `json:"semantic_enabled"`
		Provider        struct {
			Name       string `json:"name"`
			Model      string `json:"model"`
			Dimensions int    `json:"dimensions"`
		} `json:"provider"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(status)
	case "text":
		fmt.Printf("memories:          %d\n", status.Memories)
		fmt.Printf("semantic_enabled:  %t\n", status.SemanticEnabled)
		fmt.Printf("provider:          %s\n", status.Provider.Name)
		fmt.Printf("model:             %s\n", status.Provider.Model)
		fmt.Printf("dimensions:        %d\n", status.Provider.Dimensions)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Store    storage.Store
	Embedder *embedding.Service
	Keywords keyword.KeywordIndex
	Engine   *search.Engine
	Manager  *memory.Manager
}

func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Keywords != nil {
		_ = c.Keywords.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

// initializeFromPath loads config and builds components with a logger derived
// from the config's debug flag.
func initializeFromPath(configPath string) (*Components, *config.Config, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return components, cfg, nil
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	provider, err := newProvider(&cfg.Embedding, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}

	embedder := embedding.NewService(provider, embedding.ServiceConfig{
		CacheTTL:   cfg.Embedding.CacheTTL.Std(),
		CacheSize:  cfg.Embedding.CacheSize,
		BatchSize:  cfg.Embedding.BatchSize,
		Debounce:   cfg.Embedding.Debounce.Std(),
		DrainDelay: cfg.Embedding.DrainDelay.Std(),
		MaxRetries: cfg.Embedding.MaxRetries,
		BaseDelay:  cfg.Embedding.BaseDelay.Std(),
		Logger:     logger,
	})

	keywords, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		_ = embedder.Close()
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	engine := search.NewEngine(store, keywords, embedder, logger)
	manager := memory.NewManager(store, keywords, engine, logger)

	logger.Info("components initialized",
		zap.String("provider", provider.Name()),
		zap.Int("dimensions", provider.Dimensions()))

	return &Components{
		Store:    store,
		Embedder: embedder,
		Keywords: keywords,
		Engine:   engine,
		Manager:  manager,
	}, nil
}

// newProvider builds the configured embedding provider. The onnx provider
// falls back to the mock provider when the runtime or model is unavailable.
func newProvider(cfg *config.EmbeddingConfig, logger *zap.Logger) (embedding.Provider, error) {
	switch cfg.Provider {
	case "openai":
		return embedding.NewOpenAIProvider(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Dimensions)
	case "ollama":
		return embedding.NewOllamaProvider(cfg.BaseURL, cfg.Model, cfg.Dimensions)
	case "onnx":
		provider, err := embedding.NewONNXProvider(cfg.ModelPath, cfg.Model, cfg.Dimensions, cfg.MaxTokens)
		if err != nil {
			logger.Warn("onnx provider unavailable, falling back to mock", zap.Error(err))
			return embedding.NewMockProvider(cfg.Dimensions), nil
		}
		return provider, nil
	case "mock", "":
		return embedding.NewMockProvider(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", cfg.Provider)
	}
}

func printUsage() {
	fmt.Println(`memoryd - memory server with semantic, keyword, and hybrid recall

Usage:
  memoryd server [flags]             Start the HTTP server
  memoryd search [flags] <query>     Search memories
  memoryd remember [flags] <text>    Store a memory
  memoryd forget [flags] <id>        Delete a memory
  memoryd similar [flags] <id>       Find memories similar to an existing one
  memoryd clusters [flags]           Group similar memories
  memoryd backfill [flags]           Generate missing embeddings
  memoryd status [flags]             Show server status
  memoryd version                    Show version
  memoryd help                       Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/memoryd/config.yaml)
  --debug            Enable debug logging

Search Flags:
  --server string           Server URL (default: http://localhost:8080). Use --server "" for direct storage access.
  --mode string             hybrid, semantic, or keyword (default: hybrid)
  --limit int               Number of results (default: 10)
  --min-similarity float    Minimum cosine similarity (default from config)
  --category string         Restrict to category
  --output string           text, compact, or json (default: text)

Examples:
  memoryd server
  memoryd remember --category work "the deploy script lives in scripts/deploy.sh"
  memoryd search "deploy script"
  memoryd search --mode semantic --min-similarity 0.5 release process
  memoryd similar 4f7c2a
  memoryd clusters --threshold 0.85
  memoryd backfill
  memoryd status --output json`)
}
