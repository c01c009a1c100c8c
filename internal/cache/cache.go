// Package cache stores extracted chunk sets keyed by content hash, so a
// re-crawl of unchanged content skips extraction entirely and reuses the
// prior chunks verbatim - including any embeddings already computed.
//
// Entries are never mutated in place: a changed content hash simply
// creates a new entry and the old one ages out of the LRU.
package cache

import (
	"container/list"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bad33ndj3/mcp-site-index/internal/domain"
)

// ErrVersionMismatch is returned when a disk entry was written by an
// incompatible cache format.
var ErrVersionMismatch = errors.New("cache version mismatch (delete the cache dir and re-crawl)")

// ChunkCache is the contract between the crawl session and chunk storage.
// The interface, not the storage format, is what callers depend on.
type ChunkCache interface {
	// Lookup returns the chunk set for a content hash, if cached.
	Lookup(contentHash string) ([]domain.Chunk, bool)

	// Store saves a chunk set under its content hash.
	Store(contentHash string, chunks []domain.Chunk) error
}

// diskEntry is the JSON envelope for persisted chunk sets.
type diskEntry struct {
	Version int            `json:"version"`
	Hash    string         `json:"hash"`
	Chunks  []domain.Chunk `json:"chunks"`
}

// memEntry is the in-memory LRU payload.
type memEntry struct {
	hash   string
	chunks []domain.Chunk
}

// LRUCache keeps recent chunk sets in memory with least-recently-used
// eviction, optionally persisting every entry to a directory of JSON
// files so caches survive restarts. Capacity 0 means unbounded memory.
type LRUCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
	dir      string
}

// NewLRUCache creates a cache. An empty dir disables disk persistence.
func NewLRUCache(capacity int, dir string) (*LRUCache, error) {
	if capacity < 0 {
		return nil, fmt.Errorf("cache capacity must be >= 0, got %d", capacity)
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}
	return &LRUCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		dir:      dir,
	}, nil
}

// Lookup returns the cached chunk set for a hash. Memory is checked
// first; on a miss the disk entry, if any, is promoted into memory.
func (c *LRUCache) Lookup(contentHash string) ([]domain.Chunk, bool) {
	c.mu.Lock()
	if el, ok := c.entries[contentHash]; ok {
		c.order.MoveToFront(el)
		chunks := el.Value.(*memEntry).chunks
		c.mu.Unlock()
		return chunks, true
	}
	c.mu.Unlock()

	if c.dir == "" {
		return nil, false
	}

	chunks, err := c.loadFromDisk(contentHash)
	if err != nil {
		return nil, false
	}

	c.insert(contentHash, chunks)
	return chunks, true
}

// Store saves a chunk set in memory and, when persistence is enabled, on
// disk. Entries are immutable; storing the same hash twice replaces the
// in-memory element but the content is by construction identical.
func (c *LRUCache) Store(contentHash string, chunks []domain.Chunk) error {
	c.insert(contentHash, chunks)

	if c.dir == "" {
		return nil
	}

	entry := diskEntry{
		Version: domain.CacheVersion,
		Hash:    contentHash,
		Chunks:  chunks,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	if err := os.WriteFile(c.entryPath(contentHash), data, 0o644); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// Len returns the number of in-memory entries.
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *LRUCache) insert(contentHash string, chunks []domain.Chunk) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[contentHash]; ok {
		c.order.MoveToFront(el)
		el.Value.(*memEntry).chunks = chunks
		return
	}

	el := c.order.PushFront(&memEntry{hash: contentHash, chunks: chunks})
	c.entries[contentHash] = el

	// Evict from memory only; disk files stay as unreferenced entries
	for c.capacity > 0 && len(c.entries) > c.capacity {
		back := c.order.Back()
		if back == nil {
			break
		}
		c.order.Remove(back)
		delete(c.entries, back.Value.(*memEntry).hash)
	}
}

func (c *LRUCache) loadFromDisk(contentHash string) ([]domain.Chunk, error) {
	data, err := os.ReadFile(c.entryPath(contentHash))
	if err != nil {
		return nil, err
	}

	var entry diskEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("parse cache entry: %w", err)
	}
	if entry.Version != domain.CacheVersion {
		return nil, ErrVersionMismatch
	}
	if entry.Hash != contentHash {
		return nil, fmt.Errorf("cache entry hash mismatch: %s", entry.Hash)
	}
	return entry.Chunks, nil
}

func (c *LRUCache) entryPath(contentHash string) string {
	name := contentHash
	if len(name) > 32 {
		name = name[:32]
	}
	return filepath.Join(c.dir, name+".chunks.json")
}
