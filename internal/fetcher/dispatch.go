package fetcher

import (
	"context"
	"strings"
)

// Dispatcher routes targets to the HTTP fetcher for http(s) URLs and to
// the file fetcher for everything else. This lets a crawl mix web seeds
// and local documentation trees.
type Dispatcher struct {
	HTTP Fetcher
	File Fetcher
}

// NewDispatcher creates a Dispatcher over the two concrete fetchers.
func NewDispatcher(httpFetcher, fileFetcher Fetcher) *Dispatcher {
	return &Dispatcher{HTTP: httpFetcher, File: fileFetcher}
}

// Fetch routes the target by scheme.
func (d *Dispatcher) Fetch(ctx context.Context, target string) (*Page, error) {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return d.HTTP.Fetch(ctx, target)
	}
	return d.File.Fetch(ctx, target)
}
