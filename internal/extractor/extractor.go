// Package extractor turns fetched markdown into a document of typed,
// section-aware chunks. It walks the markdown line by line tracking the
// heading hierarchy, so every chunk carries the path of headings above it,
// and classifies each structural container (code fence, table, list,
// quote) into its own chunk type.
package extractor

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/bad33ndj3/mcp-site-index/internal/domain"
	"github.com/bad33ndj3/mcp-site-index/internal/text"
)

// ErrEmptyContent is returned when a fetch result has nothing to extract.
var ErrEmptyContent = errors.New("no extractable content")

// headingRe matches markdown headings like "## Introduction" or "# Title".
var headingRe = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*$`)

// codeFenceRe matches the start or end of a fenced code block.
var codeFenceRe = regexp.MustCompile("^```")

// listItemRe matches bulleted and numbered list items.
var listItemRe = regexp.MustCompile(`^\s*(?:[-*+]|\d+[.)])\s+`)

// Extractor converts fetch results into document records.
type Extractor struct {
	// MaxSectionChars is the size threshold above which a section's text
	// is split into multiple chunks (default: 1600).
	MaxSectionChars int

	// MinChunkChars is the noise floor; shorter chunks are dropped
	// (default: 25).
	MinChunkChars int
}

// New creates an extractor with sensible defaults.
func New() *Extractor {
	return &Extractor{
		MaxSectionChars: 1600,
		MinChunkChars:   25,
	}
}

// DocIDForSource generates a unique, stable identifier for a source URL
// or path. Uses SHA256 of the normalized source, truncated to 16 chars.
func DocIDForSource(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])[:16]
}

// ContentHash digests the normalized text of a fetched page. Two fetches
// with the same hash carry identical content and can share cached chunks.
func ContentHash(markdown string) string {
	normalized := strings.TrimSpace(strings.ReplaceAll(markdown, "\r\n", "\n"))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// headingStack tracks the current heading hierarchy for section paths.
type headingStack struct {
	levels []int
	titles []string
}

func (h *headingStack) push(level int, title string) {
	// Pop any headings at same or lower level
	for len(h.levels) > 0 && h.levels[len(h.levels)-1] >= level {
		h.levels = h.levels[:len(h.levels)-1]
		h.titles = h.titles[:len(h.titles)-1]
	}
	h.levels = append(h.levels, level)
	h.titles = append(h.titles, title)
}

func (h *headingStack) path() []string {
	if len(h.titles) == 0 {
		return nil
	}
	// Return a copy to avoid mutation
	result := make([]string, len(h.titles))
	copy(result, h.titles)
	return result
}

// Extract converts one fetch result into a document record with typed,
// ordered chunks. Empty or unusable content yields ErrEmptyContent; the
// caller marks the target failed and the session continues.
func (e *Extractor) Extract(res *domain.FetchResult) (*domain.DocumentRecord, error) {
	markdown := strings.ReplaceAll(res.Markdown, "\r\n", "\n")
	if strings.TrimSpace(markdown) == "" {
		return nil, ErrEmptyContent
	}

	docID := DocIDForSource(res.Target.URL)

	maxSection := e.MaxSectionChars
	if maxSection <= 0 {
		maxSection = 1600
	}
	minChunk := e.MinChunkChars
	if minChunk < 0 {
		minChunk = 0
	}

	headings := &headingStack{}
	firstHeading := ""

	var chunks []domain.Chunk
	orderIndex := 0

	// emit creates a chunk unless it falls below the noise floor.
	emit := func(content string, ctype domain.ContentType, path []string) {
		content = strings.TrimSpace(content)
		if utf8.RuneCountInString(content) < minChunk {
			return
		}
		chunks = append(chunks, domain.Chunk{
			ID:          fmt.Sprintf("%s:%d", docID, orderIndex),
			DocID:       docID,
			Source:      res.Target.URL,
			Content:     content,
			Type:        ctype,
			SectionPath: path,
			OrderIndex:  orderIndex,
			CharCount:   utf8.RuneCountInString(content),
			WordCount:   text.CountWords(content),
			TokenCount:  text.ApproxTokens(content),
			Terms:       text.NormalizeTerms(content),
		})
		orderIndex++
	}

	// Paragraph lines accumulate per contiguous run and are flushed (with
	// size-based splitting) whenever a heading or typed block interrupts,
	// so chunk order always follows document order.
	var paragraphBuf []string
	flushParagraphs := func(path []string) {
		run := strings.TrimSpace(strings.Join(paragraphBuf, "\n"))
		paragraphBuf = paragraphBuf[:0]
		if run == "" {
			return
		}
		for _, piece := range splitOversized(run, maxSection) {
			emit(piece, domain.ContentParagraph, path)
		}
	}

	lines := strings.Split(markdown, "\n")
	i := 0
	for i < len(lines) {
		line := lines[i]

		// Headings close the current section
		if m := headingRe.FindStringSubmatch(line); m != nil {
			flushParagraphs(headings.path())
			level := len(m[1])
			title := m[2]
			if firstHeading == "" {
				firstHeading = title
			}
			headings.push(level, title)
			i++
			continue
		}

		// Fenced code block
		if codeFenceRe.MatchString(line) {
			flushParagraphs(headings.path())
			var code []string
			i++
			for i < len(lines) && !codeFenceRe.MatchString(lines[i]) {
				code = append(code, lines[i])
				i++
			}
			if i < len(lines) {
				i++ // consume closing fence
			}
			emit(strings.Join(code, "\n"), domain.ContentCode, headings.path())
			continue
		}

		// Table rows
		if strings.HasPrefix(strings.TrimSpace(line), "|") {
			flushParagraphs(headings.path())
			var rows []string
			for i < len(lines) && strings.HasPrefix(strings.TrimSpace(lines[i]), "|") {
				if !isSeparatorRow(lines[i]) {
					rows = append(rows, strings.TrimSpace(lines[i]))
				}
				i++
			}
			emit(strings.Join(rows, "\n"), domain.ContentTable, headings.path())
			continue
		}

		// Blockquote
		if strings.HasPrefix(strings.TrimSpace(line), ">") {
			flushParagraphs(headings.path())
			var quote []string
			for i < len(lines) && strings.HasPrefix(strings.TrimSpace(lines[i]), ">") {
				quote = append(quote, stripQuoteMarker(lines[i]))
				i++
			}
			emit(strings.Join(quote, "\n"), domain.ContentQuote, headings.path())
			continue
		}

		// List block: items plus their indented continuations
		if listItemRe.MatchString(line) {
			flushParagraphs(headings.path())
			var items []string
			for i < len(lines) {
				l := lines[i]
				if listItemRe.MatchString(l) || (len(items) > 0 && strings.HasPrefix(l, "  ") && strings.TrimSpace(l) != "") {
					items = append(items, l)
					i++
					continue
				}
				break
			}
			emit(strings.Join(items, "\n"), domain.ContentList, headings.path())
			continue
		}

		paragraphBuf = append(paragraphBuf, line)
		i++
	}
	flushParagraphs(headings.path())

	if len(chunks) == 0 {
		return nil, ErrEmptyContent
	}

	title := res.Title
	if title == "" {
		title = firstHeading
	}

	return &domain.DocumentRecord{
		DocID:       docID,
		Source:      res.Target.URL,
		Title:       title,
		Domain:      res.Target.Domain,
		ContentHash: ContentHash(res.Markdown),
		FetchedAt:   res.FetchedAt,
		Chunks:      chunks,
	}, nil
}

// splitOversized breaks section text exceeding the threshold into pieces,
// first at paragraph boundaries, then at sentence boundaries for any
// single oversized paragraph. Sentences are never split mid-way.
func splitOversized(run string, maxChars int) []string {
	if utf8.RuneCountInString(run) <= maxChars {
		return []string{run}
	}

	var pieces []string
	var cur strings.Builder
	curLen := 0

	flush := func() {
		if curLen > 0 {
			pieces = append(pieces, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	appendUnit := func(unit, sep string) {
		n := utf8.RuneCountInString(unit)
		if curLen > 0 && curLen+n > maxChars {
			flush()
		}
		if curLen > 0 {
			cur.WriteString(sep)
			curLen += utf8.RuneCountInString(sep)
		}
		cur.WriteString(unit)
		curLen += n
	}

	for _, para := range text.SplitParagraphs(run) {
		if utf8.RuneCountInString(para) <= maxChars {
			appendUnit(para, "\n\n")
			continue
		}
		// Oversized paragraph: pack whole sentences
		for _, sentence := range text.SplitSentences(para) {
			appendUnit(sentence, " ")
		}
	}
	flush()

	return pieces
}

// isSeparatorRow checks for markdown table separator rows like | --- | :---: |
func isSeparatorRow(line string) bool {
	for _, r := range strings.TrimSpace(line) {
		switch r {
		case '|', '-', ':', ' ':
		default:
			return false
		}
	}
	return true
}

func stripQuoteMarker(line string) string {
	l := strings.TrimSpace(line)
	l = strings.TrimPrefix(l, ">")
	return strings.TrimPrefix(l, " ")
}
