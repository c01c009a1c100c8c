// Package search implements the retrieval and fusion engine: lexical and
// dense scoring against the hybrid index, weighted score fusion,
// content-type boosting, and an optional rerank pass over the
// short-listed candidates.
package search

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"time"

	"github.com/bad33ndj3/mcp-site-index/internal/domain"
	"github.com/bad33ndj3/mcp-site-index/internal/embedding"
	"github.com/bad33ndj3/mcp-site-index/internal/index"
	"github.com/bad33ndj3/mcp-site-index/internal/rerank"
	"github.com/bad33ndj3/mcp-site-index/internal/text"
)

// Config holds the fusion and boosting parameters. The exact weights are
// tuning configuration, not contract; only the mechanism is fixed.
type Config struct {
	// LexicalWeight and DenseWeight control score fusion. They are
	// normalized at query time; dense weight is ignored when no query
	// embedding is available, falling back to pure lexical scoring.
	LexicalWeight float64
	DenseWeight   float64

	// KeywordWeight blends in the BM25 exact-term signal when > 0.
	KeywordWeight float64

	// TypeBoost is the multiplier applied when a chunk's content type
	// matches the query's cues or an explicit hint.
	TypeBoost float64

	// ShortlistFactor sizes the rerank candidate set as a multiple of
	// top-k (default: 3).
	ShortlistFactor int
}

// DefaultConfig returns the standard fusion parameters.
func DefaultConfig() Config {
	return Config{
		LexicalWeight:   0.4,
		DenseWeight:     0.6,
		KeywordWeight:   0,
		TypeBoost:       1.2,
		ShortlistFactor: 3,
	}
}

// Engine answers queries against the hybrid index. The embedder and
// reranker are optional collaborators; the engine degrades gracefully
// when either is absent or failing.
type Engine struct {
	idx      *index.Hybrid
	cfg      Config
	embedder embedding.Embedder
	reranker rerank.Reranker
	logger   *slog.Logger
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithEmbedder lets the engine compute query embeddings itself when the
// caller does not supply one.
func WithEmbedder(e embedding.Embedder) Option {
	return func(eng *Engine) { eng.embedder = e }
}

// WithReranker enables the rerank pass over short-listed candidates.
func WithReranker(r rerank.Reranker) Option {
	return func(eng *Engine) { eng.reranker = r }
}

// NewEngine creates a retrieval engine over the given index.
func NewEngine(idx *index.Hybrid, cfg Config, logger *slog.Logger, opts ...Option) *Engine {
	if cfg.ShortlistFactor <= 0 {
		cfg.ShortlistFactor = 3
	}
	if cfg.TypeBoost < 1 {
		cfg.TypeBoost = 1
	}
	eng := &Engine{idx: idx, cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(eng)
	}
	return eng
}

// Retrieve runs the full pipeline for a query. When an embedder is
// configured and the index holds dense vectors, the query embedding is
// computed here; otherwise scoring is purely lexical.
func (e *Engine) Retrieve(ctx context.Context, query string, topK int, typeHint domain.ContentType) []domain.RetrievalResult {
	var queryEmbedding []float32
	if e.embedder != nil && e.idx.Snapshot().HasDense() {
		embedCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		emb, err := e.embedder.Embed(embedCtx, query)
		cancel()
		if err != nil {
			e.logger.Debug("query embedding failed, lexical only", "error", err)
		} else {
			queryEmbedding = emb
		}
	}
	return e.RetrieveWithEmbedding(ctx, query, queryEmbedding, topK, typeHint)
}

// RetrieveWithEmbedding runs the pipeline with a caller-supplied query
// embedding (the external embedding service's output). A nil embedding
// falls back to pure lexical scoring. An empty index, or a query with no
// vocabulary overlap when dense scoring is unavailable, returns an empty
// list - never an error.
func (e *Engine) RetrieveWithEmbedding(ctx context.Context, query string, queryEmbedding []float32, topK int, typeHint domain.ContentType) []domain.RetrievalResult {
	if topK <= 0 {
		topK = domain.DefaultTopK
	}

	snap := e.idx.Snapshot()
	if snap.Len() == 0 {
		return []domain.RetrievalResult{}
	}

	qvec := snap.QueryVector(query)
	queryTerms := text.NormalizeTerms(query)

	wLex, wDense, wKey := e.weights(queryEmbedding != nil && snap.HasDense())
	if len(qvec) == 0 && wDense == 0 && wKey == 0 {
		return []domain.RetrievalResult{}
	}

	boosted := boostTypes(query, typeHint)

	// BM25 scores are normalized by their max so the keyword channel is
	// commensurable with the cosine channels.
	var bm25 []float64
	if wKey > 0 {
		bm25 = make([]float64, snap.Len())
		maxBM25 := 0.0
		for i := 0; i < snap.Len(); i++ {
			bm25[i] = snap.BM25Score(i, queryTerms)
			if bm25[i] > maxBM25 {
				maxBM25 = bm25[i]
			}
		}
		if maxBM25 > 0 {
			for i := range bm25 {
				bm25[i] /= maxBM25
			}
		}
	}

	chunks := snap.Chunks()
	results := make([]domain.RetrievalResult, 0, snap.Len())
	for i := 0; i < snap.Len(); i++ {
		lex := snap.LexicalScore(i, qvec)
		dense := 0.0
		if wDense > 0 {
			dense = snap.DenseScore(i, queryEmbedding)
		}
		fused := wLex*lex + wDense*dense
		if wKey > 0 {
			fused += wKey * bm25[i]
		}
		if fused <= 0 {
			continue
		}

		score := fused
		if _, ok := boosted[chunks[i].Type]; ok {
			score *= e.cfg.TypeBoost
		}

		results = append(results, domain.RetrievalResult{
			Chunk:        chunks[i],
			LexicalScore: lex,
			DenseScore:   dense,
			FusedScore:   fused,
			BoostedScore: score,
		})
	}

	// Order by boosted score, ties by raw lexical score, then stable
	// insertion order.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].BoostedScore != results[j].BoostedScore {
			return results[i].BoostedScore > results[j].BoostedScore
		}
		return results[i].LexicalScore > results[j].LexicalScore
	})

	results = e.rerankShortlist(ctx, query, results, topK)

	if len(results) > topK {
		results = results[:topK]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}

// rerankShortlist reorders the top shortlist-factor × top-k candidates by
// the external reranker's scores, keeping fused order on any error.
func (e *Engine) rerankShortlist(ctx context.Context, query string, results []domain.RetrievalResult, topK int) []domain.RetrievalResult {
	if e.reranker == nil || len(results) == 0 {
		return results
	}

	n := topK * e.cfg.ShortlistFactor
	if n > len(results) {
		n = len(results)
	}
	head := results[:n]

	texts := make([]string, n)
	for i, r := range head {
		texts[i] = r.Chunk.Content
	}

	scores, err := e.reranker.Rerank(ctx, query, texts)
	if err != nil {
		e.logger.Warn("reranker failed, keeping fused order", "error", err)
		return results
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	reordered := make([]domain.RetrievalResult, n)
	for i, idx := range order {
		reordered[i] = head[idx]
	}
	copy(results[:n], reordered)
	return results
}

// weights normalizes the configured fusion weights, zeroing the dense
// channel when no query embedding is usable.
func (e *Engine) weights(denseAvailable bool) (wLex, wDense, wKey float64) {
	wLex = e.cfg.LexicalWeight
	wDense = e.cfg.DenseWeight
	wKey = e.cfg.KeywordWeight

	if !denseAvailable {
		wDense = 0
	}
	total := wLex + wDense + wKey
	if total == 0 {
		return 1, 0, 0
	}
	return wLex / total, wDense / total, wKey / total
}

// Query cues for content-type boosting. A query that looks like it wants
// code (identifiers, punctuation, certain words) boosts code chunks, and
// likewise for tables, lists and quotes.
var (
	codeCueRe  = regexp.MustCompile("[{}()\\[\\];=]|`|->|::|\\b(?i:code|func|function|snippet|command|cli|install|import)\\b")
	tableCueRe = regexp.MustCompile(`\b(?i:table|column|columns|field|fields|comparison|versus|vs)\b`)
	listCueRe  = regexp.MustCompile(`\b(?i:list|steps|options|bullet|enumerate)\b`)
	quoteCueRe = regexp.MustCompile(`\b(?i:quote|quotation|said)\b`)
)

// boostTypes returns the set of content types to boost for this query.
func boostTypes(query string, hint domain.ContentType) map[domain.ContentType]struct{} {
	types := make(map[domain.ContentType]struct{})
	if hint != "" {
		types[hint] = struct{}{}
	}
	if codeCueRe.MatchString(query) {
		types[domain.ContentCode] = struct{}{}
	}
	if tableCueRe.MatchString(query) {
		types[domain.ContentTable] = struct{}{}
	}
	if listCueRe.MatchString(query) {
		types[domain.ContentList] = struct{}{}
	}
	if quoteCueRe.MatchString(query) {
		types[domain.ContentQuote] = struct{}{}
	}
	return types
}
