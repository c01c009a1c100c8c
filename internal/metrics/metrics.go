// Package metrics collects crawl session counters for observability.
// Counters are atomic so fetch workers can record without contention.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector accumulates counters for one crawl session.
type Collector struct {
	processed   atomic.Int64
	failed      atomic.Int64
	retried     atomic.Int64
	bytes       atomic.Int64
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
	chunks      atomic.Int64

	mu    sync.Mutex
	start time.Time
}

// NewCollector creates a collector with the session clock started.
func NewCollector() *Collector {
	return &Collector{start: time.Now()}
}

// Reset restarts the session clock and zeroes all counters.
func (c *Collector) Reset() {
	c.processed.Store(0)
	c.failed.Store(0)
	c.retried.Store(0)
	c.bytes.Store(0)
	c.cacheHits.Store(0)
	c.cacheMisses.Store(0)
	c.chunks.Store(0)
	c.mu.Lock()
	c.start = time.Now()
	c.mu.Unlock()
}

// RecordProcessed counts a successfully fetched and extracted target.
func (c *Collector) RecordProcessed() { c.processed.Add(1) }

// RecordFailed counts a target that failed permanently or exhausted retries.
func (c *Collector) RecordFailed() { c.failed.Add(1) }

// RecordRetry counts one retry attempt.
func (c *Collector) RecordRetry() { c.retried.Add(1) }

// AddBytes accumulates fetched body bytes.
func (c *Collector) AddBytes(n int) { c.bytes.Add(int64(n)) }

// RecordCacheHit counts a chunk-cache hit (extraction skipped).
func (c *Collector) RecordCacheHit() { c.cacheHits.Add(1) }

// RecordCacheMiss counts a chunk-cache miss.
func (c *Collector) RecordCacheMiss() { c.cacheMisses.Add(1) }

// AddChunks accumulates produced chunks.
func (c *Collector) AddChunks(n int) { c.chunks.Add(int64(n)) }

// Snapshot is a point-in-time view of the session counters.
type Snapshot struct {
	Processed      int64   `json:"processed"`
	Failed         int64   `json:"failed"`
	Retried        int64   `json:"retried"`
	BytesFetched   int64   `json:"bytes_fetched"`
	CacheHits      int64   `json:"cache_hits"`
	CacheMisses    int64   `json:"cache_misses"`
	Chunks         int64   `json:"chunks"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	PagesPerSecond float64 `json:"pages_per_second"`
	CacheHitRate   float64 `json:"cache_hit_rate"`
}

// Snapshot returns the current counter values with derived rates.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	elapsed := time.Since(c.start).Seconds()
	c.mu.Unlock()

	s := Snapshot{
		Processed:      c.processed.Load(),
		Failed:         c.failed.Load(),
		Retried:        c.retried.Load(),
		BytesFetched:   c.bytes.Load(),
		CacheHits:      c.cacheHits.Load(),
		CacheMisses:    c.cacheMisses.Load(),
		Chunks:         c.chunks.Load(),
		ElapsedSeconds: elapsed,
	}
	if elapsed > 0 {
		s.PagesPerSecond = float64(s.Processed) / elapsed
	}
	if lookups := s.CacheHits + s.CacheMisses; lookups > 0 {
		s.CacheHitRate = float64(s.CacheHits) / float64(lookups)
	}
	return s
}
