// Package crawler implements the crawl session: the frontier of pending
// targets, the per-domain robots policy cache, the bounded fetch pool and
// the orchestration that turns seeds into an indexed chunk set.
package crawler

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bad33ndj3/mcp-site-index/internal/domain"
)

// Policy decides whether a target may be crawled and how politely.
// The robots cache implements it; tests inject stubs.
type Policy interface {
	// Allowed reports whether the target may be fetched.
	Allowed(target string) bool

	// CrawlDelay returns the politeness delay hint for the target's domain.
	CrawlDelay(target string) time.Duration
}

// allowAll is the policy used when none is configured.
type allowAll struct{}

func (allowAll) Allowed(string) bool             { return true }
func (allowAll) CrawlDelay(string) time.Duration { return 0 }

// Frontier is the queue of pending crawl targets. All mutable crawl state
// (queue, seen set, in-flight count) lives behind one mutex; workers never
// touch the raw sets directly.
type Frontier struct {
	mu          sync.Mutex
	queue       []domain.CrawlTarget
	seen        map[string]struct{}
	inFlight    int
	maxDepth    int
	sameDomain  bool
	seedDomains map[string]struct{}
	policy      Policy
}

// NewFrontier creates an empty frontier. A nil policy allows everything.
func NewFrontier(maxDepth int, sameDomainOnly bool, policy Policy) *Frontier {
	if policy == nil {
		policy = allowAll{}
	}
	return &Frontier{
		seen:        make(map[string]struct{}),
		maxDepth:    maxDepth,
		sameDomain:  sameDomainOnly,
		seedDomains: make(map[string]struct{}),
		policy:      policy,
	}
}

// Enqueue adds seed targets at depth 0 and registers their domains for
// same-domain filtering. Returns how many seeds were actually added.
func (f *Frontier) Enqueue(seeds []string) int {
	added := 0
	for _, seed := range seeds {
		normalized, host, err := NormalizeURL(seed)
		if err != nil {
			continue
		}
		if !f.claim(normalized) {
			continue
		}
		if !f.policy.Allowed(normalized) {
			continue
		}

		f.mu.Lock()
		if host != "" {
			f.seedDomains[host] = struct{}{}
		}
		f.queue = append(f.queue, domain.CrawlTarget{
			URL:    normalized,
			Depth:  0,
			Domain: host,
		})
		f.mu.Unlock()
		added++
	}
	return added
}

// Next pops the next pending target. The target counts as in flight until
// the worker calls Done, so exhaustion can be detected reliably.
func (f *Frontier) Next() (domain.CrawlTarget, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.queue) == 0 {
		return domain.CrawlTarget{}, false
	}
	target := f.queue[0]
	f.queue = f.queue[1:]
	f.inFlight++
	return target, true
}

// Done marks a target's processing as finished, successful or not.
func (f *Frontier) Done() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inFlight > 0 {
		f.inFlight--
	}
}

// Idle reports whether the queue is empty and nothing is in flight.
// Once idle, the crawl session has reached exhaustion.
func (f *Frontier) Idle() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue) == 0 && f.inFlight == 0
}

// RecordDiscovered adds links found on a parent page. A link is added only
// if it normalizes, was never seen, stays within the depth limit, matches
// the seed domains when same-domain filtering is on, and the policy allows
// it. Returns how many targets were added.
func (f *Frontier) RecordDiscovered(parent domain.CrawlTarget, links []string) int {
	depth := parent.Depth + 1
	if depth > f.maxDepth {
		return 0
	}

	added := 0
	for _, link := range links {
		normalized, host, err := NormalizeURL(link)
		if err != nil {
			continue
		}

		if f.sameDomain && host != "" {
			f.mu.Lock()
			_, ok := f.seedDomains[host]
			f.mu.Unlock()
			if !ok {
				continue
			}
		}

		if !f.claim(normalized) {
			continue
		}
		// Policy check runs outside the mutex; robots lookups can hit the
		// network. A denied URL stays claimed so it is never re-checked.
		if !f.policy.Allowed(normalized) {
			continue
		}

		f.mu.Lock()
		f.queue = append(f.queue, domain.CrawlTarget{
			URL:    normalized,
			Depth:  depth,
			Parent: parent.URL,
			Domain: host,
		})
		f.mu.Unlock()
		added++
	}
	return added
}

// claim marks a URL as seen, returning false if it already was.
func (f *Frontier) claim(normalized string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.seen[normalized]; ok {
		return false
	}
	f.seen[normalized] = struct{}{}
	return true
}

// Pending returns the number of queued targets.
func (f *Frontier) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// SeenCount returns how many distinct normalized URLs have been claimed.
func (f *Frontier) SeenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

// NormalizeURL canonicalizes a crawl target so duplicates collapse to the
// same key: lowercased scheme and host, fragment dropped, query parameters
// sorted, trailing slash trimmed. Local paths (no scheme) are cleaned with
// filepath rules and return an empty host.
func NormalizeURL(raw string) (normalized, host string, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", errors.New("empty crawl target")
	}

	if !strings.Contains(raw, "://") {
		// Local file or directory path
		return filepath.Clean(raw), "", nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", "", fmt.Errorf("unsupported scheme %q: %s", u.Scheme, raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	// Sorting the query makes parameter order irrelevant
	u.RawQuery = u.Query().Encode()

	if len(u.Path) > 1 {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	return u.String(), u.Host, nil
}
