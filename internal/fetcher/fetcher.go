// Package fetcher retrieves raw content for crawl targets and converts it
// to structure-preserving markdown. It abstracts the transport (HTTP or
// local filesystem) behind one interface for testability.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"golang.org/x/net/html"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 8 << 20

// Page is the converted content of one fetched target.
type Page struct {
	// URL is the target that was fetched
	URL string

	// Title is the page title from the markup, if any
	Title string

	// Markdown is the structure-preserving conversion of the body
	Markdown string

	// Links are the absolute URLs discovered in the body
	Links []string

	// Bytes is the raw body size, for metrics
	Bytes int
}

// Fetcher abstracts content retrieval and conversion for testability.
type Fetcher interface {
	// Fetch retrieves the target and converts it to a Page.
	// The context carries the per-fetch deadline.
	Fetch(ctx context.Context, target string) (*Page, error)
}

// StatusError is returned for non-2xx HTTP responses so callers can
// distinguish transient server failures from permanent client errors.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.URL)
}

// IsTransient reports whether a fetch error is worth retrying:
// timeouts, connection errors, 5xx responses and rate-limit responses.
// Everything else (other 4xx, malformed URLs) is permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= 500 || statusErr.Code == http.StatusTooManyRequests
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		// Connection resets and friends arrive wrapped in *url.Error
		return urlErr.Temporary() || urlErr.Timeout() || errors.Is(urlErr.Err, io.EOF)
	}
	return false
}

// IsTimeout reports whether the error is a deadline expiry.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// HTTPFetcher is the production implementation using real HTTP requests.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher creates an HTTPFetcher. The per-fetch deadline comes from
// the context passed to Fetch, so the client itself carries no timeout.
func NewHTTPFetcher(userAgent string) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:    100,
				IdleConnTimeout: 90 * time.Second,
			},
		},
		userAgent: userAgent,
	}
}

// Fetch retrieves a URL, extracts its title and links, and converts the
// HTML body to markdown.
func (f *HTTPFetcher) Fetch(ctx context.Context, target string) (*Page, error) {
	parsedURL, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, URL: target}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	// Base URL for resolving relative links
	base := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)

	title, links := parseHTML(string(body), parsedURL)

	markdown, err := htmltomarkdown.ConvertString(
		string(body),
		converter.WithDomain(base),
	)
	if err != nil {
		return nil, fmt.Errorf("convert to markdown: %w", err)
	}

	return &Page{
		URL:      target,
		Title:    title,
		Markdown: markdown,
		Links:    links,
		Bytes:    len(body),
	}, nil
}

// parseHTML walks the parse tree once, collecting the <title> text and
// every href resolved against the page URL.
func parseHTML(body string, pageURL *url.URL) (title string, links []string) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return "", nil
	}

	seen := make(map[string]struct{})

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if title == "" && n.FirstChild != nil {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "a":
				for _, attr := range n.Attr {
					if attr.Key != "href" {
						continue
					}
					resolved, err := pageURL.Parse(attr.Val)
					if err != nil {
						break
					}
					if resolved.Scheme != "http" && resolved.Scheme != "https" {
						break
					}
					resolved.Fragment = ""
					link := resolved.String()
					if _, ok := seen[link]; !ok {
						seen[link] = struct{}{}
						links = append(links, link)
					}
					break
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return title, links
}
