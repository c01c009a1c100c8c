// Package mcp provides MCP tool handlers for the site index server.
// These handlers parse MCP request arguments and delegate to the crawl
// session and the search engine.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bad33ndj3/mcp-site-index/internal/crawler"
	"github.com/bad33ndj3/mcp-site-index/internal/domain"
	"github.com/bad33ndj3/mcp-site-index/internal/search"
)

// CrawlArgs defines the arguments for the site_crawl tool.
type CrawlArgs struct {
	Seeds []string `json:"seeds" jsonschema_description:"Seed URLs or local paths to start crawling from"`
}

// QueryArgs defines the arguments for the docs_query tool.
type QueryArgs struct {
	Query string `json:"query" jsonschema_description:"Search query (e.g. 'how to configure retries')"`
	TopK  int    `json:"top_k,omitempty" jsonschema_description:"Number of results to return (default 10)"`
	Type  string `json:"type,omitempty" jsonschema_description:"Preferred chunk type: paragraph, code, table, list or quote"`
}

// Handlers wraps the crawl session and search engine as MCP tools.
type Handlers struct {
	session *crawler.Session
	engine  *search.Engine
	logger  *slog.Logger
}

// NewHandlers creates handlers with the given session, engine and logger.
func NewHandlers(session *crawler.Session, engine *search.Engine, logger *slog.Logger) *Handlers {
	return &Handlers{session: session, engine: engine, logger: logger}
}

// SiteCrawl handles the site_crawl tool call.
// It crawls the given seeds to completion and rebuilds the index.
func (h *Handlers) SiteCrawl(ctx context.Context, req *mcp.CallToolRequest, args CrawlArgs) (*mcp.CallToolResult, any, error) {
	seeds := make([]string, 0, len(args.Seeds))
	for _, s := range args.Seeds {
		if s = strings.TrimSpace(s); s != "" {
			seeds = append(seeds, s)
		}
	}
	if len(seeds) == 0 {
		h.logger.Error("site_crawl: seeds is required")
		return nil, nil, fmt.Errorf("seeds is required (provide at least one URL or path)")
	}

	h.logger.Debug("site_crawl: starting", "seeds", len(seeds))

	report, err := h.session.Crawl(ctx, seeds)
	if err != nil {
		h.logger.Error("site_crawl: failed", "error", err)
		return nil, nil, err
	}

	h.logger.Info("site_crawl: complete",
		"session_id", report.SessionID,
		"documents", report.Documents,
		"chunks", report.Chunks,
		"failed", report.Metrics.Failed,
	)

	msg := fmt.Sprintf("Crawl complete.\n\nsession_id: %s\ndocuments: %d\nchunks: %d\nfetched: %d\nfailed: %d\ncache hit rate: %.0f%%\n",
		report.SessionID, report.Documents, report.Chunks,
		report.Metrics.Processed, report.Metrics.Failed,
		report.Metrics.CacheHitRate*100)
	if report.Cancelled {
		msg += "\nNote: the crawl was cancelled; results are partial.\n"
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}, nil, nil
}

// DocsQuery handles the docs_query tool call.
// It runs a hybrid retrieval over the indexed chunks and returns the
// top results with their section paths.
func (h *Handlers) DocsQuery(ctx context.Context, req *mcp.CallToolRequest, args QueryArgs) (*mcp.CallToolResult, any, error) {
	query := strings.TrimSpace(args.Query)
	if query == "" {
		h.logger.Error("docs_query: query is required")
		return nil, nil, fmt.Errorf("query is required")
	}

	typeHint, err := parseContentType(args.Type)
	if err != nil {
		h.logger.Error("docs_query: bad type hint", "type", args.Type)
		return nil, nil, err
	}

	if h.session.State() != crawler.StateReady {
		return nil, nil, fmt.Errorf("index is not ready (state: %s); run site_crawl first", h.session.State())
	}

	h.logger.Debug("docs_query: searching", "query", query, "top_k", args.TopK, "type", args.Type)

	results := h.engine.Retrieve(ctx, query, args.TopK, typeHint)
	if len(results) == 0 {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: "No results found."}},
		}, nil, nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d results for %q\n\n", len(results), query))
	for _, r := range results {
		sb.WriteString(fmt.Sprintf("## [%d] %s (%s, score %.3f)\n", r.Rank, r.Chunk.Source, r.Chunk.Type, r.BoostedScore))
		if len(r.Chunk.SectionPath) > 0 {
			sb.WriteString(fmt.Sprintf("Section: %s\n", strings.Join(r.Chunk.SectionPath, " > ")))
		}
		sb.WriteString("\n")
		sb.WriteString(r.Chunk.Content)
		sb.WriteString("\n\n")
	}

	h.logger.Info("docs_query: success", "query", query, "results", len(results))

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: sb.String()}},
	}, nil, nil
}

// CrawlStatus returns the session state and metric counters.
func (h *Handlers) CrawlStatus(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, any, error) {
	snap := h.session.Metrics()

	resp := map[string]any{
		"state":            h.session.State().String(),
		"pages_processed":  snap.Processed,
		"pages_failed":     snap.Failed,
		"retries":          snap.Retried,
		"bytes_fetched":    snap.BytesFetched,
		"chunks_indexed":   snap.Chunks,
		"cache_hits":       snap.CacheHits,
		"cache_misses":     snap.CacheMisses,
		"cache_hit_rate":   snap.CacheHitRate,
		"elapsed_seconds":  snap.ElapsedSeconds,
		"pages_per_second": snap.PagesPerSecond,
	}

	jsonBytes, _ := json.MarshalIndent(resp, "", "  ")

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(jsonBytes)}},
	}, nil, nil
}

// DocsList handles the docs_list tool call.
// It returns a list of all documents collected by the session.
func (h *Handlers) DocsList(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, any, error) {
	h.logger.Debug("docs_list: listing documents")

	docs := h.session.Documents()

	if len(docs) == 0 {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: "No documents indexed. Use site_crawl first."}},
		}, nil, nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Indexed documents: %d\n\n", len(docs)))

	// Cap the list to keep the response within a usable context size
	const maxDisplay = 50
	for i, doc := range docs {
		if i >= maxDisplay {
			sb.WriteString(fmt.Sprintf("\n... and %d more documents.", len(docs)-maxDisplay))
			break
		}
		sb.WriteString(fmt.Sprintf("- doc_id: %s\n", doc.DocID))
		sb.WriteString(fmt.Sprintf("  source: %s\n", doc.Source))
		if doc.Title != "" {
			sb.WriteString(fmt.Sprintf("  title: %s\n", doc.Title))
		}
		sb.WriteString(fmt.Sprintf("  chunks: %d\n", len(doc.Chunks)))
	}

	h.logger.Info("docs_list: success", "count", len(docs))

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: sb.String()}},
	}, nil, nil
}

func parseContentType(s string) (domain.ContentType, error) {
	switch domain.ContentType(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return "", nil
	case domain.ContentParagraph:
		return domain.ContentParagraph, nil
	case domain.ContentCode:
		return domain.ContentCode, nil
	case domain.ContentTable:
		return domain.ContentTable, nil
	case domain.ContentList:
		return domain.ContentList, nil
	case domain.ContentQuote:
		return domain.ContentQuote, nil
	default:
		return "", fmt.Errorf("unknown chunk type %q (expected paragraph, code, table, list or quote)", s)
	}
}
