// Package testutil provides shared test helpers and mock implementations.
// This avoids duplicating mock code across test files.
package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bad33ndj3/mcp-site-index/internal/domain"
	"github.com/bad33ndj3/mcp-site-index/internal/fetcher"
)

// ErrNotFound is returned by mocks when a resource doesn't exist.
var ErrNotFound = errors.New("not found")

// MockFetcher serves scripted pages keyed by normalized URL. A target
// can optionally fail a fixed number of times before succeeding, which
// makes retry behavior testable without a network.
type MockFetcher struct {
	mu       sync.Mutex
	Pages    map[string]*fetcher.Page
	Failures map[string]int   // target -> remaining failures before success
	FailWith map[string]error // target -> error to fail with (default ErrNotFound)
	Calls    []string         // every Fetch target, in order
}

// NewMockFetcher creates a MockFetcher with initialized maps.
func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		Pages:    make(map[string]*fetcher.Page),
		Failures: make(map[string]int),
		FailWith: make(map[string]error),
	}
}

// AddPage registers a page under the given target URL.
func (m *MockFetcher) AddPage(target, title, markdown string, links ...string) {
	m.Pages[target] = &fetcher.Page{
		URL:      target,
		Title:    title,
		Markdown: markdown,
		Links:    links,
		Bytes:    len(markdown),
	}
}

func (m *MockFetcher) Fetch(ctx context.Context, target string) (*fetcher.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, target)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n := m.Failures[target]; n > 0 {
		m.Failures[target] = n - 1
		if err := m.FailWith[target]; err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	if page, ok := m.Pages[target]; ok {
		return page, nil
	}
	err := m.FailWith[target]
	if err == nil {
		err = ErrNotFound
	}
	return nil, err
}

// CallCount returns how many times a target was fetched.
func (m *MockFetcher) CallCount(target string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, c := range m.Calls {
		if c == target {
			n++
		}
	}
	return n
}

// MockEmbedder returns deterministic vectors derived from text length.
// Set Fail to make every call error, or Down to report unavailability.
type MockEmbedder struct {
	Dim   int
	Fail  bool
	Down  bool
	Calls int
}

// NewMockEmbedder creates an embedder producing vectors of the given
// dimension (4 if zero).
func NewMockEmbedder(dim int) *MockEmbedder {
	if dim <= 0 {
		dim = 4
	}
	return &MockEmbedder{Dim: dim}
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.Calls++
	if m.Fail {
		return nil, errors.New("embed failed")
	}
	vec := make([]float32, m.Dim)
	for i := range vec {
		vec[i] = float32((len(text)+i)%7) + 1
	}
	return vec, nil
}

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		vec, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, vec)
	}
	return out, nil
}

func (m *MockEmbedder) Available(ctx context.Context) bool { return !m.Down }

// MockReranker returns scripted scores, or reverses the candidate order
// when no scores are set. Set Fail to exercise the fallback path.
type MockReranker struct {
	Scores []float64
	Fail   bool
	Calls  int
}

func (m *MockReranker) Rerank(ctx context.Context, query string, candidates []string) ([]float64, error) {
	m.Calls++
	if m.Fail {
		return nil, errors.New("rerank failed")
	}
	if m.Scores != nil {
		return m.Scores, nil
	}
	scores := make([]float64, len(candidates))
	for i := range candidates {
		scores[i] = float64(i)
	}
	return scores, nil
}

// MockPolicy denies the listed URLs and reports a fixed crawl delay.
type MockPolicy struct {
	Denied map[string]bool
	Delay  time.Duration
}

// NewMockPolicy creates a permissive policy with no delay.
func NewMockPolicy() *MockPolicy {
	return &MockPolicy{Denied: make(map[string]bool)}
}

func (m *MockPolicy) Allowed(target string) bool             { return !m.Denied[target] }
func (m *MockPolicy) CrawlDelay(target string) time.Duration { return m.Delay }

// MockChunkCache is an in-memory chunk cache with call counters.
type MockChunkCache struct {
	mu      sync.Mutex
	Entries map[string][]domain.Chunk
	Hits    int
	Misses  int
	Stores  int
	FailSet bool
}

// NewMockChunkCache creates a MockChunkCache with an initialized map.
func NewMockChunkCache() *MockChunkCache {
	return &MockChunkCache{Entries: make(map[string][]domain.Chunk)}
}

func (m *MockChunkCache) Lookup(contentHash string) ([]domain.Chunk, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if chunks, ok := m.Entries[contentHash]; ok {
		m.Hits++
		return chunks, true
	}
	m.Misses++
	return nil, false
}

func (m *MockChunkCache) Store(contentHash string, chunks []domain.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailSet {
		return errors.New("store failed")
	}
	m.Stores++
	m.Entries[contentHash] = chunks
	return nil
}
