// Package index builds the hybrid search index over a chunk set: a
// lexical vector space (sublinear TF-IDF over unigram + character-trigram
// features, L2-normalized so cosine reduces to a dot product), BM25
// keyword postings for exact-term matches, and a table of dense
// embeddings stored as-is.
//
// A build produces an immutable Snapshot that is swapped in atomically;
// queries run against a snapshot and never observe a partial build.
package index

import (
	"math"
	"sync"

	"github.com/bad33ndj3/mcp-site-index/internal/domain"
	"github.com/bad33ndj3/mcp-site-index/internal/text"
)

// BM25 tuning parameters, standard values.
const (
	defaultK1 = 1.2
	defaultB  = 0.75
)

// Hybrid owns the current index snapshot and rebuilds it as the chunk set
// changes. Safe for concurrent readers; builds take the write lock only
// for the pointer swap.
type Hybrid struct {
	mu   sync.RWMutex
	snap *Snapshot
}

// New creates an empty hybrid index.
func New() *Hybrid {
	return &Hybrid{snap: buildSnapshot(nil)}
}

// Build replaces the index with one built from the given chunk set.
// Chunks with no content are excluded rather than failing the build.
func (h *Hybrid) Build(chunks []domain.Chunk) {
	snap := buildSnapshot(chunks)
	h.mu.Lock()
	h.snap = snap
	h.mu.Unlock()
}

// Add extends the index with new chunks. Statistics (document
// frequencies, average length) are recomputed over the union so repeated
// incremental builds stay consistent with a full rebuild.
func (h *Hybrid) Add(chunks []domain.Chunk) {
	h.mu.RLock()
	existing := h.snap.chunks
	h.mu.RUnlock()

	merged := make([]domain.Chunk, 0, len(existing)+len(chunks))
	merged = append(merged, existing...)
	merged = append(merged, chunks...)
	h.Build(merged)
}

// Snapshot returns the current immutable index for querying.
func (h *Hybrid) Snapshot() *Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snap
}

// Snapshot is one fully built index generation. All fields are read-only
// after construction.
type Snapshot struct {
	chunks []domain.Chunk

	// Lexical vector space
	vocab map[string]int    // feature -> column
	idf   []float64         // per feature, smoothed
	rows  []map[int]float64 // L2-normalized sparse vector per chunk

	// BM25 keyword postings
	termFreqs   []map[string]int // per chunk: unigram -> count
	termDocFreq map[string]int   // unigram -> chunks containing it
	avgLen      float64

	hasDense bool
}

func buildSnapshot(chunks []domain.Chunk) *Snapshot {
	// Exclude unusable chunks so one bad batch never poisons the index
	kept := make([]domain.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if c.Content != "" {
			kept = append(kept, c)
		}
	}

	s := &Snapshot{
		chunks:      kept,
		vocab:       make(map[string]int),
		termDocFreq: make(map[string]int),
	}

	// First pass: feature document frequencies and BM25 statistics
	featureDF := make(map[string]int)
	features := make([][]string, len(kept))
	totalLen := 0.0

	for i, c := range kept {
		feats := text.Features(c.Terms)
		features[i] = feats

		seen := make(map[string]struct{}, len(feats))
		for _, f := range feats {
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			featureDF[f]++
		}

		tf := make(map[string]int, len(c.Terms))
		termSeen := make(map[string]struct{}, len(c.Terms))
		for _, t := range c.Terms {
			tf[t]++
			if _, ok := termSeen[t]; !ok {
				termSeen[t] = struct{}{}
				s.termDocFreq[t]++
			}
		}
		s.termFreqs = append(s.termFreqs, tf)
		totalLen += float64(len(c.Terms))

		if c.Embedding != nil {
			s.hasDense = true
		}
	}

	if len(kept) > 0 {
		s.avgLen = totalLen / float64(len(kept))
	}

	// Stable vocabulary assignment in insertion order of first pass
	s.idf = make([]float64, 0, len(featureDF))
	n := float64(len(kept))
	for i := range features {
		for _, f := range features[i] {
			if _, ok := s.vocab[f]; ok {
				continue
			}
			s.vocab[f] = len(s.idf)
			// Smoothed IDF
			s.idf = append(s.idf, math.Log((1+n)/(1+float64(featureDF[f])))+1.0)
		}
	}

	// Second pass: weighted, L2-normalized rows
	s.rows = make([]map[int]float64, len(kept))
	for i := range kept {
		s.rows[i] = s.vectorize(features[i])
	}

	return s
}

// vectorize builds an L2-normalized sparse vector from a feature list
// using sublinear term-frequency scaling.
func (s *Snapshot) vectorize(feats []string) map[int]float64 {
	counts := make(map[int]int, len(feats))
	for _, f := range feats {
		if col, ok := s.vocab[f]; ok {
			counts[col]++
		}
	}
	if len(counts) == 0 {
		return nil
	}

	vec := make(map[int]float64, len(counts))
	norm := 0.0
	for col, count := range counts {
		w := (1 + math.Log(float64(count))) * s.idf[col]
		vec[col] = w
		norm += w * w
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for col := range vec {
			vec[col] /= norm
		}
	}
	return vec
}

// Len returns the number of indexed chunks.
func (s *Snapshot) Len() int { return len(s.chunks) }

// Chunks returns the indexed chunks in build order.
func (s *Snapshot) Chunks() []domain.Chunk { return s.chunks }

// HasDense reports whether any indexed chunk carries an embedding.
func (s *Snapshot) HasDense() bool { return s.hasDense }

// QueryVector computes the query's lexical vector with the same feature
// and weighting scheme as the indexed rows. Features absent from the
// vocabulary are dropped; an empty map means no overlap.
func (s *Snapshot) QueryVector(query string) map[int]float64 {
	return s.vectorize(text.Features(text.NormalizeTerms(query)))
}

// LexicalScore returns the cosine similarity between the query vector and
// chunk i. Both sides are L2-normalized, so this is a sparse dot product.
func (s *Snapshot) LexicalScore(i int, qvec map[int]float64) float64 {
	row := s.rows[i]
	if len(row) == 0 || len(qvec) == 0 {
		return 0
	}
	// Iterate the smaller map
	a, b := qvec, row
	if len(b) < len(a) {
		a, b = b, a
	}
	dot := 0.0
	for col, w := range a {
		if w2, ok := b[col]; ok {
			dot += w * w2
		}
	}
	return dot
}

// calcIDF computes the BM25 inverse document frequency for a term.
func calcIDF(numChunks, docFreq float64) float64 {
	return math.Log(1.0 + (numChunks-docFreq+0.5)/(docFreq+0.5))
}

// calcTF computes the BM25 term frequency component with saturation and
// length normalization.
func calcTF(termCount, docLen, avgLen, k1, b float64) float64 {
	denominator := termCount + k1*(1.0-b+b*(docLen/avgLen))
	if denominator == 0 {
		return 0
	}
	return (termCount * (k1 + 1.0)) / denominator
}

// BM25Score returns the BM25 keyword score of chunk i for the given
// normalized query terms.
func (s *Snapshot) BM25Score(i int, queryTerms []string) float64 {
	if len(s.chunks) == 0 || s.avgLen == 0 {
		return 0
	}

	tf := s.termFreqs[i]
	docLen := float64(len(s.chunks[i].Terms))
	numChunks := float64(len(s.chunks))

	score := 0.0
	for _, term := range queryTerms {
		df := float64(s.termDocFreq[term])
		if df == 0 {
			continue
		}
		idf := calcIDF(numChunks, df)
		score += idf * calcTF(float64(tf[term]), docLen, s.avgLen, defaultK1, defaultB)
	}
	return score
}

// DenseScore returns the cosine similarity between a query embedding and
// chunk i's embedding, shifted from [-1, 1] to [0, 1]. Chunks without an
// embedding score 0.
func (s *Snapshot) DenseScore(i int, queryEmbedding []float32) float64 {
	emb := s.chunks[i].Embedding
	if emb == nil || len(queryEmbedding) == 0 {
		return 0
	}
	return (cosineSimilarity(queryEmbedding, emb) + 1) / 2
}

// cosineSimilarity calculates cosine similarity between two vectors.
// Returns a value between -1 (opposite) and 1 (identical).
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
