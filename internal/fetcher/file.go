package fetcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// FileFetcher reads crawl targets from a local file tree. Directories
// yield no content but link to their entries, so the frontier can walk a
// tree with the same depth semantics as a site crawl.
type FileFetcher struct {
	// Extensions restricts which files are fetched. Keys include the dot,
	// e.g. ".md". Empty means markdown and HTML only.
	Extensions map[string]struct{}
}

// NewFileFetcher creates a fetcher for markdown, text and HTML files.
func NewFileFetcher() *FileFetcher {
	return &FileFetcher{
		Extensions: map[string]struct{}{
			".md":   {},
			".mdx":  {},
			".txt":  {},
			".html": {},
			".htm":  {},
		},
	}
}

// Fetch reads a file or lists a directory.
func (f *FileFetcher) Fetch(ctx context.Context, target string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}

	if info.IsDir() {
		return f.listDir(target)
	}

	ext := strings.ToLower(filepath.Ext(target))
	if _, ok := f.Extensions[ext]; !ok {
		return nil, fmt.Errorf("unsupported file type %q: %s", ext, target)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	markdown := string(data)
	if ext == ".html" || ext == ".htm" {
		markdown, err = htmltomarkdown.ConvertString(markdown)
		if err != nil {
			return nil, fmt.Errorf("convert to markdown: %w", err)
		}
	}

	return &Page{
		URL:      target,
		Title:    strings.TrimSuffix(filepath.Base(target), ext),
		Markdown: markdown,
		Bytes:    len(data),
	}, nil
}

// listDir returns the directory's entries as links so the frontier can
// discover them. Hidden entries are skipped.
func (f *FileFetcher) listDir(dir string) (*Page, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}

	var links []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		full := filepath.Join(dir, name)
		if e.IsDir() {
			links = append(links, full)
			continue
		}
		if _, ok := f.Extensions[strings.ToLower(filepath.Ext(name))]; ok {
			links = append(links, full)
		}
	}

	return &Page{
		URL:   dir,
		Title: filepath.Base(dir),
		Links: links,
	}, nil
}
