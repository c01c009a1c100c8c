// Package embedding provides the client for the external embedding
// service. The index only stores and searches dense vectors; computing
// them is this collaborator's job, and the whole retrieval pipeline keeps
// working lexically when no embedder is configured or reachable.
package embedding

import "context"

// Config holds settings for the embedding client.
type Config struct {
	Host  string // Ollama server URL (default: "http://localhost:11434")
	Model string // Embedding model (default: "nomic-embed-text")
}

// DefaultConfig returns sensible defaults for local Ollama.
func DefaultConfig() Config {
	return Config{
		Host:  "http://localhost:11434",
		Model: "nomic-embed-text",
	}
}

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates an embedding vector for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts (more efficient).
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Available returns true if the embedding service is reachable.
	Available(ctx context.Context) bool
}
