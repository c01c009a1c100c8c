package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bad33ndj3/mcp-site-index/internal/cache"
	"github.com/bad33ndj3/mcp-site-index/internal/config"
	"github.com/bad33ndj3/mcp-site-index/internal/domain"
	"github.com/bad33ndj3/mcp-site-index/internal/embedding"
	"github.com/bad33ndj3/mcp-site-index/internal/extractor"
	"github.com/bad33ndj3/mcp-site-index/internal/fetcher"
	"github.com/bad33ndj3/mcp-site-index/internal/index"
	"github.com/bad33ndj3/mcp-site-index/internal/metrics"
)

// State is the crawl session's lifecycle phase.
type State int32

const (
	// StateIdle means no crawl has run yet.
	StateIdle State = iota
	// StateCrawling means fetch workers are active.
	StateCrawling
	// StateIndexing means all fetches settled and the index is rebuilding.
	StateIndexing
	// StateReady means queries are servable.
	StateReady
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCrawling:
		return "crawling"
	case StateIndexing:
		return "indexing"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Report summarizes one crawl run.
type Report struct {
	SessionID string           `json:"session_id"`
	Seeds     int              `json:"seeds"`
	Documents int              `json:"documents"`
	Chunks    int              `json:"chunks"`
	Metrics   metrics.Snapshot `json:"metrics"`
	Cancelled bool             `json:"cancelled"`
}

// Session ties the frontier, fetch pool, extractor, chunk cache and index
// together. Documents accumulate across runs, so a later Crawl call is an
// incremental re-crawl: unchanged pages hit the chunk cache and changed
// pages supersede their previous record before the index rebuilds.
type Session struct {
	cfg       config.Config
	fetch     fetcher.Fetcher
	policy    Policy
	extract   *extractor.Extractor
	chunks    cache.ChunkCache
	idx       *index.Hybrid
	embedder  embedding.Embedder
	collector *metrics.Collector
	logger    *slog.Logger

	state atomic.Int32

	mu   sync.Mutex
	docs map[string]domain.DocumentRecord // by DocID
}

// NewSession wires a session from its dependencies. The embedder may be
// nil; everything keeps working lexically without it.
func NewSession(cfg config.Config, f fetcher.Fetcher, policy Policy, chunkCache cache.ChunkCache, idx *index.Hybrid, embedder embedding.Embedder, collector *metrics.Collector, logger *slog.Logger) *Session {
	ext := extractor.New()
	ext.MaxSectionChars = cfg.MaxSectionChars
	ext.MinChunkChars = cfg.MinChunkChars

	return &Session{
		cfg:       cfg,
		fetch:     f,
		policy:    policy,
		extract:   ext,
		chunks:    chunkCache,
		idx:       idx,
		embedder:  embedder,
		collector: collector,
		logger:    logger,
		docs:      make(map[string]domain.DocumentRecord),
	}
}

// State returns the session's current lifecycle phase.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Metrics returns the session counters.
func (s *Session) Metrics() metrics.Snapshot {
	return s.collector.Snapshot()
}

// Documents returns the collected document records, ordered by source,
// ready for the storage collaborator to persist.
func (s *Session) Documents() []domain.DocumentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.DocumentRecord, 0, len(s.docs))
	for _, d := range s.docs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

// Crawl runs a full crawl from the given seeds: frontier expansion,
// bounded-concurrency fetching, extraction, caching, and finally an index
// rebuild once every in-flight fetch has settled. Cancellation is
// honored: workers stop pulling new targets, in-flight fetches finish or
// time out, and whatever chunks were collected are still indexed -
// partial results are valid, not an error.
func (s *Session) Crawl(ctx context.Context, seeds []string) (*Report, error) {
	if err := s.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if len(seeds) == 0 {
		return nil, errors.New("at least one seed is required")
	}

	s.collector.Reset()

	frontier := NewFrontier(s.cfg.MaxDepth, s.cfg.SameDomainOnly, s.policy)
	added := frontier.Enqueue(seeds)
	if added == 0 {
		return nil, errors.New("no valid seeds after normalization and policy checks")
	}

	sessionID := uuid.New().String()
	s.logger.Info("crawl starting",
		"session_id", sessionID,
		"seeds", added,
		"max_pages", s.cfg.MaxPages,
		"max_depth", s.cfg.MaxDepth,
	)

	s.state.Store(int32(StateCrawling))

	pool := NewFetchPool(s.fetch, s.cfg, s.collector, s.logger)

	var fetched atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID, frontier, pool, &fetched)
		}(i)
	}
	wg.Wait()

	// Barrier: every fetch and extraction has settled. Rebuild the index
	// over the full document set and swap it in atomically.
	s.state.Store(int32(StateIndexing))
	s.backfillEmbeddings(ctx)

	all := s.allChunks()
	s.idx.Build(all)
	s.state.Store(int32(StateReady))

	report := &Report{
		SessionID: sessionID,
		Seeds:     added,
		Documents: len(s.Documents()),
		Chunks:    len(all),
		Metrics:   s.collector.Snapshot(),
		Cancelled: ctx.Err() != nil,
	}

	s.logger.Info("crawl finished",
		"session_id", sessionID,
		"documents", report.Documents,
		"chunks", report.Chunks,
		"processed", report.Metrics.Processed,
		"failed", report.Metrics.Failed,
		"cancelled", report.Cancelled,
	)
	return report, nil
}

// worker pulls targets until the frontier is exhausted, the page budget
// is spent, or the context is cancelled.
func (s *Session) worker(ctx context.Context, workerID int, frontier *Frontier, pool *FetchPool, fetched *atomic.Int64) {
	for {
		if ctx.Err() != nil {
			return
		}

		target, ok := frontier.Next()
		if !ok {
			if frontier.Idle() {
				return
			}
			// Another worker may still discover links
			select {
			case <-ctx.Done():
				return
			case <-time.After(25 * time.Millisecond):
			}
			continue
		}

		if fetched.Add(1) > int64(s.cfg.MaxPages) {
			frontier.Done()
			return
		}

		s.processTarget(ctx, workerID, target, frontier, pool)
		frontier.Done()
	}
}

func (s *Session) processTarget(ctx context.Context, workerID int, target domain.CrawlTarget, frontier *Frontier, pool *FetchPool) {
	// Politeness hint from robots.txt
	if delay := s.policy.CrawlDelay(target.URL); delay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}

	result := pool.Fetch(ctx, target)
	if result.Status != domain.FetchOK {
		s.collector.RecordFailed()
		s.logger.Debug("fetch failed",
			"worker", workerID,
			"url", target.URL,
			"status", result.Status,
			"attempts", result.Attempts,
			"error", result.Err,
		)
		return
	}

	// Navigational targets (e.g. directories) carry links but no content
	if strings.TrimSpace(result.Markdown) == "" {
		frontier.RecordDiscovered(target, result.Links)
		return
	}

	doc, err := s.extractDocument(result)
	if err != nil {
		s.collector.RecordFailed()
		s.logger.Warn("extraction failed", "worker", workerID, "url", target.URL, "error", err)
		return
	}

	s.mu.Lock()
	s.docs[doc.DocID] = *doc
	s.mu.Unlock()

	s.collector.RecordProcessed()
	s.collector.AddChunks(len(doc.Chunks))

	discovered := frontier.RecordDiscovered(target, result.Links)
	s.logger.Debug("page processed",
		"worker", workerID,
		"url", target.URL,
		"chunks", len(doc.Chunks),
		"discovered", discovered,
	)
}

// extractDocument resolves the chunk set for a fetch result, preferring
// the content-hash cache. A hit reuses the cached chunks verbatim,
// including previously computed embeddings.
func (s *Session) extractDocument(result *domain.FetchResult) (*domain.DocumentRecord, error) {
	hash := extractor.ContentHash(result.Markdown)

	if cached, ok := s.chunks.Lookup(hash); ok {
		s.collector.RecordCacheHit()
		return &domain.DocumentRecord{
			DocID:       extractor.DocIDForSource(result.Target.URL),
			Source:      result.Target.URL,
			Title:       result.Title,
			Domain:      result.Target.Domain,
			ContentHash: hash,
			FetchedAt:   result.FetchedAt,
			Chunks:      cached,
		}, nil
	}
	s.collector.RecordCacheMiss()

	doc, err := s.extract.Extract(result)
	if err != nil {
		return nil, err
	}

	if err := s.chunks.Store(hash, doc.Chunks); err != nil {
		s.logger.Warn("chunk cache store failed", "url", result.Target.URL, "error", err)
	}
	return doc, nil
}

// backfillEmbeddings asks the embedding collaborator for vectors on
// chunks that lack one, then refreshes the cache entries so future
// crawls reuse them. Failures leave the chunks lexical-only.
func (s *Session) backfillEmbeddings(ctx context.Context) {
	if s.embedder == nil || ctx.Err() != nil {
		return
	}
	if !s.embedder.Available(ctx) {
		s.logger.Debug("embedding service unavailable, skipping backfill")
		return
	}

	s.mu.Lock()
	docs := make([]domain.DocumentRecord, 0, len(s.docs))
	for _, d := range s.docs {
		docs = append(docs, d)
	}
	s.mu.Unlock()

	for _, doc := range docs {
		var missing []int
		var texts []string
		for i, c := range doc.Chunks {
			if c.Embedding == nil {
				missing = append(missing, i)
				texts = append(texts, c.Content)
			}
		}
		if len(missing) == 0 {
			continue
		}

		embeddings, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			s.logger.Warn("embedding backfill failed", "source", doc.Source, "error", err)
			return
		}
		for j, i := range missing {
			doc.Chunks[i].Embedding = embeddings[j]
		}

		if err := s.chunks.Store(doc.ContentHash, doc.Chunks); err != nil {
			s.logger.Warn("chunk cache refresh failed", "source", doc.Source, "error", err)
		}

		s.mu.Lock()
		s.docs[doc.DocID] = doc
		s.mu.Unlock()
	}
}

// allChunks flattens the collected documents in stable source order.
func (s *Session) allChunks() []domain.Chunk {
	docs := s.Documents()
	var out []domain.Chunk
	for _, d := range docs {
		out = append(out, d.Chunks...)
	}
	return out
}
