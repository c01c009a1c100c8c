// Package rerank provides the client for the external cross-encoder
// reranking service. Reranking only touches a short-listed candidate set;
// when the service errors, retrieval falls back to fused-score order.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Reranker scores (query, candidate) pairs with a relevance model.
type Reranker interface {
	// Rerank returns one relevance score per candidate text, in order.
	Rerank(ctx context.Context, query string, candidates []string) ([]float64, error)
}

// HTTPReranker calls a cross-encoder service over HTTP. The wire format
// is the common rerank shape: POST {"query": ..., "documents": [...]}
// returning {"scores": [...]}.
type HTTPReranker struct {
	endpoint string
	client   *http.Client
}

// NewHTTPReranker creates a reranker client for the given endpoint.
func NewHTTPReranker(endpoint string) *HTTPReranker {
	return &HTTPReranker{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Scores []float64 `json:"scores"`
}

// Rerank sends the candidate texts to the service and returns its scores.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, candidates []string) ([]float64, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(rerankRequest{Query: query, Documents: candidates})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call reranker: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reranker returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read rerank response: %w", err)
	}

	var parsed rerankResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse rerank response: %w", err)
	}
	if len(parsed.Scores) != len(candidates) {
		return nil, fmt.Errorf("reranker returned %d scores for %d candidates", len(parsed.Scores), len(candidates))
	}

	return parsed.Scores, nil
}
