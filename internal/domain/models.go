// Package domain contains core data types used across the mcp-site-index server.
// These are pure data structures with no behavior - making them easy to understand
// and test. Think of them as the "nouns" of our application.
package domain

import "time"

// CacheVersion is incremented when the chunk cache format changes.
// This ensures old, incompatible caches are rejected and rebuilt.
const CacheVersion = 1

// DefaultTopK is the default number of results returned by a retrieval.
const DefaultTopK = 10

// ContentType classifies what kind of structure a chunk was extracted from.
type ContentType string

const (
	// ContentParagraph is plain running text.
	ContentParagraph ContentType = "paragraph"
	// ContentCode is a fenced code block.
	ContentCode ContentType = "code"
	// ContentTable is a markdown table.
	ContentTable ContentType = "table"
	// ContentList is a bulleted or numbered list.
	ContentList ContentType = "list"
	// ContentQuote is a blockquote.
	ContentQuote ContentType = "quote"
)

// CrawlTarget is a single pending fetch, discovered from a seed or a link.
// Targets are immutable; deduplication happens on the normalized URL.
type CrawlTarget struct {
	// URL is the normalized URL or local path of the target
	URL string `json:"url"`

	// Depth is the link distance from the seed that discovered it (seeds are 0)
	Depth int `json:"depth"`

	// Parent is the normalized URL of the page that linked to this target
	Parent string `json:"parent,omitempty"`

	// Domain is the lowercased host, empty for local paths
	Domain string `json:"domain,omitempty"`
}

// FetchStatus is the terminal outcome of fetching one target.
type FetchStatus string

const (
	// FetchOK means the target was retrieved and converted successfully.
	FetchOK FetchStatus = "ok"
	// FetchError means the target failed permanently or exhausted its retries.
	FetchError FetchStatus = "error"
	// FetchTimeout means the target's deadline expired on the final attempt.
	FetchTimeout FetchStatus = "timeout"
)

// FetchResult is the outcome of the fetch pool working one target.
// The raw body only lives until extraction; chunks are what persist.
type FetchResult struct {
	// Target is the crawl target this result belongs to
	Target CrawlTarget `json:"target"`

	// Status is the terminal outcome after all retry attempts
	Status FetchStatus `json:"status"`

	// Title is the page title extracted from the markup, if any
	Title string `json:"title,omitempty"`

	// Markdown is the structure-preserving markdown conversion of the body
	Markdown string `json:"-"`

	// Links are the absolute, normalized URLs discovered in the body
	Links []string `json:"-"`

	// FetchedAt is when the final attempt completed
	FetchedAt time.Time `json:"fetched_at"`

	// Attempts is how many fetch attempts were made, including the final one
	Attempts int `json:"attempts"`

	// Err holds the final error message for failed targets
	Err string `json:"error,omitempty"`
}

// DocumentRecord is one extracted document: metadata plus its ordered chunks.
// The external storage layer persists these unchanged.
type DocumentRecord struct {
	// DocID is a stable identifier derived from the normalized source (SHA256 prefix)
	DocID string `json:"doc_id"`

	// Source is the normalized URL or path the document came from
	Source string `json:"source"`

	// Title is the document title (page title or first heading)
	Title string `json:"title,omitempty"`

	// Domain is the lowercased host the document was fetched from
	Domain string `json:"domain,omitempty"`

	// ContentHash is a SHA256 digest of the normalized text.
	// Two fetches with the same hash reuse cached chunks instead of re-extracting.
	ContentHash string `json:"content_hash"`

	// FetchedAt is when the source was last fetched
	FetchedAt time.Time `json:"fetched_at"`

	// Chunks are the document's chunks in extraction order
	Chunks []Chunk `json:"chunks"`
}

// Chunk is a typed, bounded unit of extracted text. It is the searchable
// unit of the index and the record handed to the storage collaborator.
type Chunk struct {
	// ID is a deterministic identifier like "abc123:4" (docID:orderIndex)
	ID string `json:"id"`

	// DocID identifies which document this chunk belongs to
	DocID string `json:"doc_id"`

	// Source is the URL or path of the owning document
	Source string `json:"source"`

	// Content is the chunk text
	Content string `json:"content"`

	// Type classifies the structural container the text came from
	Type ContentType `json:"type"`

	// SectionPath is the ordered heading titles above this chunk,
	// e.g. ["Configuration", "Consumer"]
	SectionPath []string `json:"section_path,omitempty"`

	// OrderIndex is the chunk's position within its document
	OrderIndex int `json:"order_index"`

	// CharCount, WordCount and TokenCount describe the content size.
	// TokenCount is an approximation (~4 bytes per token).
	CharCount  int `json:"char_count"`
	WordCount  int `json:"word_count"`
	TokenCount int `json:"token_count"`

	// Terms is a list of normalized, searchable words extracted from Content.
	// Stopwords are removed; everything is lowercased.
	Terms []string `json:"terms"`

	// Embedding is the dense vector for this chunk, if one was computed.
	// Cached chunks carry their embeddings across crawls.
	Embedding []float32 `json:"embedding,omitempty"`
}

// RetrievalResult is one ranked hit for a query. Created per query and
// discarded after the caller consumes it.
type RetrievalResult struct {
	// Chunk is the matched chunk
	Chunk Chunk `json:"chunk"`

	// LexicalScore is the raw cosine similarity in the lexical vector space
	LexicalScore float64 `json:"lexical_score"`

	// DenseScore is the cosine similarity of dense embeddings, 0 if unavailable
	DenseScore float64 `json:"dense_score"`

	// FusedScore is the weighted combination of lexical and dense scores
	FusedScore float64 `json:"fused_score"`

	// BoostedScore is the fused score after content-type boosting;
	// results are ordered by this value
	BoostedScore float64 `json:"boosted_score"`

	// Rank is the 1-based position in the final ordering
	Rank int `json:"rank"`
}
