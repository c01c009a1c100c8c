// Package main is the entry point for the mcp-site-index server.
// It wires together all dependencies and starts the MCP server.
//
// This file is intentionally minimal - all business logic lives in internal/.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bad33ndj3/mcp-site-index/internal/cache"
	"github.com/bad33ndj3/mcp-site-index/internal/config"
	"github.com/bad33ndj3/mcp-site-index/internal/crawler"
	"github.com/bad33ndj3/mcp-site-index/internal/embedding"
	"github.com/bad33ndj3/mcp-site-index/internal/fetcher"
	"github.com/bad33ndj3/mcp-site-index/internal/index"
	mcphandlers "github.com/bad33ndj3/mcp-site-index/internal/mcp"
	"github.com/bad33ndj3/mcp-site-index/internal/metrics"
	"github.com/bad33ndj3/mcp-site-index/internal/rerank"
	"github.com/bad33ndj3/mcp-site-index/internal/search"
)

const (
	serverName    = "mcp-site-index"
	serverVersion = "v0.1.0"
)

// setupLogger creates an slog logger that writes to a debug file in the cache directory.
// File format: debug-YYYY-MM-DD.txt
func setupLogger(cacheDir string) (*slog.Logger, *os.File, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create cache dir: %w", err)
	}

	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(cacheDir, fmt.Sprintf("debug-%s.txt", date))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	handler := slog.NewTextHandler(file, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})

	logger := slog.New(handler)
	return logger, file, nil
}

func main() {
	// IMPORTANT: MCP stdio servers must log to stderr only (for standard log package).
	log.SetOutput(os.Stderr)

	// --- 0. Parse flags ---
	configPath := flag.String("config", "", "Path to a TOML config file (optional)")
	cacheDir := flag.String("cache-dir", "", "Directory for cache and log files (overrides config)")
	embeddingsFlag := flag.Bool("embeddings", false, "Enable Ollama-based dense retrieval (overrides config)")
	rerankEndpoint := flag.String("rerank-endpoint", "", "HTTP reranker endpoint (overrides config)")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *cacheDir != "" {
		cfg.CacheDir = *cacheDir
	}
	if *embeddingsFlag {
		cfg.EmbeddingsEnabled = true
	}
	if *rerankEndpoint != "" {
		cfg.RerankEndpoint = *rerankEndpoint
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// --- 1. Setup file-based debug logger ---

	logger, logFile, err := setupLogger(cfg.CacheDir)
	if err != nil {
		log.Printf("Warning: failed to setup file logger: %v", err)
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	} else {
		defer logFile.Close()
	}

	logger.Info("server starting",
		"name", serverName,
		"version", serverVersion,
		"cache_dir", cfg.CacheDir,
		"max_pages", cfg.MaxPages,
		"concurrency", cfg.Concurrency,
	)

	// --- 2. Create all dependencies ---

	// Chunk cache: content-hash keyed, LRU in memory with a disk tier
	chunkCache, err := cache.NewLRUCache(cfg.CacheCapacity, cfg.CacheDir)
	if err != nil {
		logger.Error("failed to create chunk cache", "error", err)
		log.Fatalf("Failed to create chunk cache: %v", err)
	}

	// Fetchers: HTTP for web targets, filesystem for local docs trees
	fetch := fetcher.NewDispatcher(
		fetcher.NewHTTPFetcher(cfg.UserAgent),
		fetcher.NewFileFetcher(),
	)

	// Robots policy: per-domain cache with TTL, permissive on failure
	policy := crawler.NewRobotsCache(cfg.RobotsTTL(), cfg.UserAgent)

	// Optional dense retrieval via Ollama
	var embedder embedding.Embedder
	if cfg.EmbeddingsEnabled {
		embedder, err = embedding.NewOllamaEmbedder(embedding.Config{
			Host:  cfg.OllamaHost,
			Model: cfg.OllamaModel,
		})
		if err != nil {
			logger.Warn("failed to create embedder, retrieval stays lexical", "error", err)
			embedder = nil
		} else {
			logger.Info("embeddings enabled", "model", cfg.OllamaModel, "host", cfg.OllamaHost)
		}
	}

	collector := metrics.NewCollector()
	idx := index.New()

	// --- 3. Wire up the crawl session and the search engine ---

	session := crawler.NewSession(cfg, fetch, policy, chunkCache, idx, embedder, collector, logger)

	searchCfg := search.DefaultConfig()
	searchCfg.LexicalWeight = cfg.LexicalWeight
	searchCfg.DenseWeight = cfg.DenseWeight
	searchCfg.TypeBoost = cfg.TypeBoost

	var engineOpts []search.Option
	if embedder != nil {
		engineOpts = append(engineOpts, search.WithEmbedder(embedder))
	}
	if cfg.RerankEndpoint != "" {
		engineOpts = append(engineOpts, search.WithReranker(rerank.NewHTTPReranker(cfg.RerankEndpoint)))
		logger.Info("reranking enabled", "endpoint", cfg.RerankEndpoint)
	}

	engine := search.NewEngine(idx, searchCfg, logger, engineOpts...)

	// --- 4. Create MCP handlers ---

	handlers := mcphandlers.NewHandlers(session, engine, logger)

	// --- 5. Create and configure the MCP server ---

	server := mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, &mcp.ServerOptions{
		Instructions: "Use site_crawl to crawl and index a site or local docs tree once, then docs_query to retrieve ranked, section-linked excerpts.",
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "site_crawl",
		Description: "Crawl one or more seed URLs (or local paths) to completion, extract typed chunks, and build the retrieval index.",
	}, handlers.SiteCrawl)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "docs_query",
		Description: "Query the indexed chunks with hybrid lexical+dense retrieval. Returns ranked excerpts with section paths. Optionally prefer a chunk type (code, table, ...).",
	}, handlers.DocsQuery)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "crawl_status",
		Description: "Report the session state (idle/crawling/indexing/ready) and crawl metrics (pages, failures, retries, cache hit rate).",
	}, handlers.CrawlStatus)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "docs_list",
		Description: "List all indexed documents with doc_id, source, title and chunk count.",
	}, handlers.DocsList)

	logger.Info("server ready, waiting for requests")

	// --- 6. Run the server ---

	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		logger.Error("server error", "error", err)
		log.Fatal(err)
	}
}
