package crawler

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// robotsFetchTimeout bounds the robots.txt fetch itself.
const robotsFetchTimeout = 10 * time.Second

// robotsRules is the parsed policy for one domain.
type robotsRules struct {
	disallow   []string
	crawlDelay time.Duration
}

// allowed reports whether a path escapes every disallow prefix.
func (r robotsRules) allowed(path string) bool {
	if path == "" {
		path = "/"
	}
	for _, prefix := range r.disallow {
		if strings.HasPrefix(path, prefix) {
			return false
		}
	}
	return true
}

type robotsEntry struct {
	rules     robotsRules
	fetchedAt time.Time
}

// RobotsCache fetches and caches per-domain robots.txt policies.
// Each domain is fetched once and reused until its TTL expires; a fetch
// failure defaults to allowing the domain.
type RobotsCache struct {
	mu        sync.Mutex
	client    *http.Client
	ttl       time.Duration
	userAgent string
	entries   map[string]*robotsEntry
}

// NewRobotsCache creates a robots policy cache.
func NewRobotsCache(ttl time.Duration, userAgent string) *RobotsCache {
	return &RobotsCache{
		client:    &http.Client{Timeout: robotsFetchTimeout},
		ttl:       ttl,
		userAgent: userAgent,
		entries:   make(map[string]*robotsEntry),
	}
}

// Allowed reports whether the target's path is permitted by its domain's
// robots policy. Local paths have no domain and are always allowed.
func (c *RobotsCache) Allowed(target string) bool {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return true
	}
	return c.rules(u).allowed(u.Path)
}

// CrawlDelay returns the crawl-delay hint for the target's domain.
func (c *RobotsCache) CrawlDelay(target string) time.Duration {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return 0
	}
	return c.rules(u).crawlDelay
}

// rules returns the cached rules for the URL's domain, fetching robots.txt
// on first use or after the TTL lapses.
func (c *RobotsCache) rules(u *url.URL) robotsRules {
	key := u.Scheme + "://" + u.Host

	c.mu.Lock()
	if e, ok := c.entries[key]; ok && time.Since(e.fetchedAt) < c.ttl {
		c.mu.Unlock()
		return e.rules
	}
	c.mu.Unlock()

	rules := c.fetch(key)

	c.mu.Lock()
	c.entries[key] = &robotsEntry{rules: rules, fetchedAt: time.Now()}
	c.mu.Unlock()

	return rules
}

// fetch retrieves and parses <domain>/robots.txt. Any failure yields the
// permissive default.
func (c *RobotsCache) fetch(base string) robotsRules {
	ctx, cancel := context.WithTimeout(context.Background(), robotsFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/robots.txt", nil)
	if err != nil {
		return robotsRules{}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return robotsRules{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return robotsRules{}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return robotsRules{}
	}

	return parseRobots(string(body), c.userAgent)
}

// parseRobots extracts the disallow prefixes and crawl-delay that apply to
// our user agent (or the wildcard group).
func parseRobots(content, userAgent string) robotsRules {
	var rules robotsRules

	agent := strings.ToLower(userAgent)
	applies := false

	for _, line := range strings.Split(content, "\n") {
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		field, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		field = strings.ToLower(strings.TrimSpace(field))
		value = strings.TrimSpace(value)

		switch field {
		case "user-agent":
			ua := strings.ToLower(value)
			applies = ua == "*" || strings.Contains(agent, ua)
		case "disallow":
			if applies && value != "" {
				rules.disallow = append(rules.disallow, value)
			}
		case "crawl-delay":
			if applies {
				if secs, err := strconv.ParseFloat(value, 64); err == nil && secs > 0 {
					rules.crawlDelay = time.Duration(secs * float64(time.Second))
				}
			}
		}
	}

	return rules
}
