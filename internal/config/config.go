// Package config holds the crawl and retrieval configuration.
// Settings come from built-in defaults, optionally overridden by a TOML
// file. Validation is fail-fast: a session never starts with a bad config.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the full configuration for a crawl session and the retrieval
// pipeline built from it. Duration-like settings are plain integers so the
// TOML file stays obvious; use the accessor methods for time.Duration values.
type Config struct {
	// Crawl bounds
	MaxPages       int  `toml:"max_pages"`
	MaxDepth       int  `toml:"max_depth"`
	SameDomainOnly bool `toml:"same_domain_only"`

	// Fetch pool
	Concurrency         int     `toml:"concurrency"`
	RequestsPerSecond   float64 `toml:"requests_per_second"`
	FetchTimeoutSeconds int     `toml:"fetch_timeout_seconds"`
	RetryAttempts       int     `toml:"retry_attempts"`
	RetryDelayMillis    int     `toml:"retry_delay_ms"`
	RobotsTTLSeconds    int     `toml:"robots_ttl_seconds"`
	UserAgent           string  `toml:"user_agent"`

	// Extraction
	MinChunkChars   int `toml:"min_chunk_chars"`
	MaxSectionChars int `toml:"max_section_chars"`

	// Chunk cache
	CacheDir      string `toml:"cache_dir"`
	CacheCapacity int    `toml:"cache_capacity"`

	// Retrieval fusion. Weights are normalized at query time; a dense
	// weight of 0 means pure lexical scoring.
	LexicalWeight float64 `toml:"lexical_weight"`
	DenseWeight   float64 `toml:"dense_weight"`
	TypeBoost     float64 `toml:"type_boost"`

	// External collaborators
	EmbeddingsEnabled bool   `toml:"embeddings_enabled"`
	OllamaHost        string `toml:"ollama_host"`
	OllamaModel       string `toml:"ollama_model"`
	RerankEndpoint    string `toml:"rerank_endpoint"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		MaxPages:            50,
		MaxDepth:            2,
		SameDomainOnly:      true,
		Concurrency:         4,
		RequestsPerSecond:   2,
		FetchTimeoutSeconds: 30,
		RetryAttempts:       3,
		RetryDelayMillis:    500,
		RobotsTTLSeconds:    3600,
		UserAgent:           "mcp-site-index/1.0",
		MinChunkChars:       25,
		MaxSectionChars:     1600,
		CacheDir:            ".mcp-site-cache",
		CacheCapacity:       0, // unbounded
		LexicalWeight:       0.4,
		DenseWeight:         0.6,
		TypeBoost:           1.2,
		EmbeddingsEnabled:   false,
		OllamaHost:          "http://localhost:11434",
		OllamaModel:         "nomic-embed-text",
	}
}

// Load reads a TOML file over the defaults. A missing path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration before any fetch begins.
func (c Config) Validate() error {
	var errs []error
	if c.MaxPages < 1 {
		errs = append(errs, fmt.Errorf("max_pages must be >= 1, got %d", c.MaxPages))
	}
	if c.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("max_depth must be >= 0, got %d", c.MaxDepth))
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be >= 1, got %d", c.Concurrency))
	}
	if c.RequestsPerSecond <= 0 {
		errs = append(errs, fmt.Errorf("requests_per_second must be > 0, got %g", c.RequestsPerSecond))
	}
	if c.FetchTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("fetch_timeout_seconds must be > 0, got %d", c.FetchTimeoutSeconds))
	}
	if c.RetryAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry_attempts must be >= 1, got %d", c.RetryAttempts))
	}
	if c.RetryDelayMillis < 0 {
		errs = append(errs, fmt.Errorf("retry_delay_ms must be >= 0, got %d", c.RetryDelayMillis))
	}
	if c.LexicalWeight < 0 || c.DenseWeight < 0 {
		errs = append(errs, errors.New("fusion weights must not be negative"))
	}
	if c.LexicalWeight+c.DenseWeight == 0 {
		errs = append(errs, errors.New("fusion weights must not both be zero"))
	}
	if c.TypeBoost < 1 {
		errs = append(errs, fmt.Errorf("type_boost must be >= 1, got %g", c.TypeBoost))
	}
	if c.CacheCapacity < 0 {
		errs = append(errs, fmt.Errorf("cache_capacity must be >= 0, got %d", c.CacheCapacity))
	}
	return errors.Join(errs...)
}

// FetchTimeout returns the per-fetch deadline.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// RetryDelay returns the base delay for exponential backoff.
func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMillis) * time.Millisecond
}

// RobotsTTL returns how long a cached robots policy stays valid.
func (c Config) RobotsTTL() time.Duration {
	return time.Duration(c.RobotsTTLSeconds) * time.Second
}
