package mcp

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bad33ndj3/mcp-site-index/internal/config"
	"github.com/bad33ndj3/mcp-site-index/internal/crawler"
	"github.com/bad33ndj3/mcp-site-index/internal/domain"
	"github.com/bad33ndj3/mcp-site-index/internal/index"
	"github.com/bad33ndj3/mcp-site-index/internal/metrics"
	"github.com/bad33ndj3/mcp-site-index/internal/search"
	"github.com/bad33ndj3/mcp-site-index/internal/testutil"
)

const testPage = `# Docs

A reasonably sized paragraph of documentation text for testing handlers.

## Example

` + "```go" + `
client := Connect("localhost")
` + "```" + `
`

func createTestHandlers(t *testing.T) (*Handlers, *testutil.MockFetcher) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := config.Default()
	cfg.RequestsPerSecond = 1000
	cfg.RetryAttempts = 1

	mock := testutil.NewMockFetcher()
	mock.AddPage("https://example.com/", "Home", testPage)

	idx := index.New()
	session := crawler.NewSession(cfg, mock, testutil.NewMockPolicy(), testutil.NewMockChunkCache(), idx, nil, metrics.NewCollector(), logger)
	engine := search.NewEngine(idx, search.DefaultConfig(), logger)

	return NewHandlers(session, engine, logger), mock
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) == 0 {
		t.Fatal("Result has no content")
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("Content[0] is %T, want TextContent", result.Content[0])
	}
	return tc.Text
}

func TestSiteCrawl_RequiresSeeds(t *testing.T) {
	h, _ := createTestHandlers(t)

	_, _, err := h.SiteCrawl(context.Background(), nil, CrawlArgs{})
	if err == nil {
		t.Error("Expected error for missing seeds")
	}

	_, _, err = h.SiteCrawl(context.Background(), nil, CrawlArgs{Seeds: []string{"  ", ""}})
	if err == nil {
		t.Error("Expected error for blank seeds")
	}
}

func TestSiteCrawl_Success(t *testing.T) {
	h, _ := createTestHandlers(t)

	result, _, err := h.SiteCrawl(context.Background(), nil, CrawlArgs{Seeds: []string{"https://example.com/"}})
	if err != nil {
		t.Fatalf("SiteCrawl failed: %v", err)
	}

	text := resultText(t, result)
	if !strings.Contains(text, "documents: 1") {
		t.Errorf("Response missing document count: %q", text)
	}
	if !strings.Contains(text, "session_id:") {
		t.Errorf("Response missing session id: %q", text)
	}
}

func TestDocsQuery_RequiresQuery(t *testing.T) {
	h, _ := createTestHandlers(t)

	if _, _, err := h.DocsQuery(context.Background(), nil, QueryArgs{}); err == nil {
		t.Error("Expected error for empty query")
	}
}

func TestDocsQuery_RejectsUnknownType(t *testing.T) {
	h, _ := createTestHandlers(t)

	if _, _, err := h.DocsQuery(context.Background(), nil, QueryArgs{Query: "x", Type: "prose"}); err == nil {
		t.Error("Expected error for unknown chunk type")
	}
}

func TestDocsQuery_RequiresReadyIndex(t *testing.T) {
	h, _ := createTestHandlers(t)

	_, _, err := h.DocsQuery(context.Background(), nil, QueryArgs{Query: "documentation"})
	if err == nil {
		t.Error("Expected error before any crawl has run")
	}
	if !strings.Contains(err.Error(), "idle") {
		t.Errorf("Error should name the state, got: %v", err)
	}
}

func TestDocsQuery_ReturnsRankedExcerpts(t *testing.T) {
	h, _ := createTestHandlers(t)

	if _, _, err := h.SiteCrawl(context.Background(), nil, CrawlArgs{Seeds: []string{"https://example.com/"}}); err != nil {
		t.Fatalf("SiteCrawl failed: %v", err)
	}

	result, _, err := h.DocsQuery(context.Background(), nil, QueryArgs{Query: "documentation paragraph"})
	if err != nil {
		t.Fatalf("DocsQuery failed: %v", err)
	}

	text := resultText(t, result)
	if !strings.Contains(text, "documentation text") {
		t.Errorf("Response missing matching excerpt: %q", text)
	}
	if !strings.Contains(text, "Section: Docs") {
		t.Errorf("Response missing section path: %q", text)
	}
}

func TestDocsQuery_TypeHint(t *testing.T) {
	h, _ := createTestHandlers(t)

	if _, _, err := h.SiteCrawl(context.Background(), nil, CrawlArgs{Seeds: []string{"https://example.com/"}}); err != nil {
		t.Fatalf("SiteCrawl failed: %v", err)
	}

	result, _, err := h.DocsQuery(context.Background(), nil, QueryArgs{Query: "client localhost connect", Type: "code", TopK: 1})
	if err != nil {
		t.Fatalf("DocsQuery failed: %v", err)
	}

	text := resultText(t, result)
	if !strings.Contains(text, "(code") {
		t.Errorf("Code chunk should rank first with a code hint: %q", text)
	}
}

func TestCrawlStatus_ReportsStateAndCounters(t *testing.T) {
	h, _ := createTestHandlers(t)

	result, _, err := h.CrawlStatus(context.Background(), nil, struct{}{})
	if err != nil {
		t.Fatalf("CrawlStatus failed: %v", err)
	}
	text := resultText(t, result)
	if !strings.Contains(text, `"state": "idle"`) {
		t.Errorf("Status missing idle state: %q", text)
	}

	if _, _, err := h.SiteCrawl(context.Background(), nil, CrawlArgs{Seeds: []string{"https://example.com/"}}); err != nil {
		t.Fatal(err)
	}

	result, _, err = h.CrawlStatus(context.Background(), nil, struct{}{})
	if err != nil {
		t.Fatal(err)
	}
	text = resultText(t, result)
	if !strings.Contains(text, `"state": "ready"`) {
		t.Errorf("Status missing ready state: %q", text)
	}
	if !strings.Contains(text, `"pages_processed": 1`) {
		t.Errorf("Status missing processed count: %q", text)
	}
}

func TestDocsList(t *testing.T) {
	h, _ := createTestHandlers(t)

	result, _, err := h.DocsList(context.Background(), nil, struct{}{})
	if err != nil {
		t.Fatalf("DocsList failed: %v", err)
	}
	if !strings.Contains(resultText(t, result), "No documents") {
		t.Error("Empty session should report no documents")
	}

	if _, _, err := h.SiteCrawl(context.Background(), nil, CrawlArgs{Seeds: []string{"https://example.com/"}}); err != nil {
		t.Fatal(err)
	}

	result, _, err = h.DocsList(context.Background(), nil, struct{}{})
	if err != nil {
		t.Fatal(err)
	}
	text := resultText(t, result)
	if !strings.Contains(text, "https://example.com/") {
		t.Errorf("Listing missing source: %q", text)
	}
	if !strings.Contains(text, "title: Home") {
		t.Errorf("Listing missing title: %q", text)
	}
}

func TestParseContentType(t *testing.T) {
	tests := []struct {
		input   string
		want    domain.ContentType
		wantErr bool
	}{
		{"", "", false},
		{"code", domain.ContentCode, false},
		{"  Table ", domain.ContentTable, false},
		{"paragraph", domain.ContentParagraph, false},
		{"prose", "", true},
	}

	for _, tc := range tests {
		got, err := parseContentType(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseContentType(%q) expected error", tc.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseContentType(%q) failed: %v", tc.input, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parseContentType(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}
