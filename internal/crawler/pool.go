package crawler

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"golang.org/x/time/rate"

	"github.com/bad33ndj3/mcp-site-index/internal/config"
	"github.com/bad33ndj3/mcp-site-index/internal/domain"
	"github.com/bad33ndj3/mcp-site-index/internal/fetcher"
	"github.com/bad33ndj3/mcp-site-index/internal/metrics"
)

// FetchPool turns crawl targets into fetch results under a shared rate
// limit with retry and timeout policy. The pool itself is stateless; the
// session runs one goroutine per configured worker, all calling Fetch on
// the same pool so the token bucket is shared.
type FetchPool struct {
	fetcher   fetcher.Fetcher
	limiter   *rate.Limiter
	timeout   time.Duration
	attempts  int
	baseDelay time.Duration
	metrics   *metrics.Collector
	logger    *slog.Logger
}

// NewFetchPool creates a pool honoring the config's rate, timeout and
// retry settings. Burst is 1 so fetch starts are evenly spaced at the
// configured requests-per-second ceiling.
func NewFetchPool(f fetcher.Fetcher, cfg config.Config, m *metrics.Collector, logger *slog.Logger) *FetchPool {
	return &FetchPool{
		fetcher:   f,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		timeout:   cfg.FetchTimeout(),
		attempts:  cfg.RetryAttempts,
		baseDelay: cfg.RetryDelay(),
		metrics:   m,
		logger:    logger,
	}
}

// Fetch retrieves one target, retrying transient failures (timeouts,
// connection errors, 5xx, rate-limit responses) with exponential backoff
// plus jitter. Permanent failures (other 4xx, malformed URLs) fail on the
// first attempt. The result always carries the attempt count; a target
// that exhausts its retry budget comes back with a failed status rather
// than an error, so the session can record it and move on.
func (p *FetchPool) Fetch(ctx context.Context, target domain.CrawlTarget) *domain.FetchResult {
	var lastErr error
	attempts := 0

	for attempt := 1; attempt <= p.attempts; attempt++ {
		if attempt > 1 {
			p.metrics.RecordRetry()
			if !p.sleep(ctx, backoff(p.baseDelay, attempt-1)) {
				break
			}
		}
		attempts = attempt

		fetchCtx, cancel := context.WithTimeout(ctx, p.timeout)

		// Token acquisition blocks until the bucket refills or the
		// per-fetch deadline expires.
		if err := p.limiter.Wait(fetchCtx); err != nil {
			cancel()
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		page, err := p.fetcher.Fetch(fetchCtx, target.URL)
		cancel()

		if err == nil {
			p.metrics.AddBytes(page.Bytes)
			return &domain.FetchResult{
				Target:    target,
				Status:    domain.FetchOK,
				Title:     page.Title,
				Markdown:  page.Markdown,
				Links:     page.Links,
				FetchedAt: time.Now(),
				Attempts:  attempt,
			}
		}

		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if !fetcher.IsTransient(err) {
			p.logger.Debug("permanent fetch error", "url", target.URL, "error", err)
			break
		}
		p.logger.Debug("transient fetch error", "url", target.URL, "attempt", attempt, "error", err)
	}

	status := domain.FetchError
	if fetcher.IsTimeout(lastErr) {
		status = domain.FetchTimeout
	}

	result := &domain.FetchResult{
		Target:    target,
		Status:    status,
		FetchedAt: time.Now(),
		Attempts:  attempts,
	}
	if lastErr != nil {
		result.Err = lastErr.Error()
	}
	return result
}

// sleep waits for the backoff delay, returning false if the context is
// cancelled first.
func (p *FetchPool) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// backoff computes the delay before retry n (1-based): base doubled per
// retry, plus up to 50% jitter to avoid thundering herds.
func backoff(base time.Duration, n int) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base << (n - 1)
	return d + time.Duration(rand.Int63n(int64(d)/2+1))
}
