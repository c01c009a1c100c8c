// Package text provides shared text processing utilities.
// This avoids duplication between the extractor, index and search packages.
package text

import (
	"regexp"
	"strings"
)

// tokenRe matches alphanumeric words.
var tokenRe = regexp.MustCompile(`[a-zA-Z0-9_]+`)

// htmlTagRe matches leftover HTML tags like <a>, </p>, <div class="foo">
var htmlTagRe = regexp.MustCompile(`<[^>]+>`)

// htmlEntityRe matches HTML entities like &amp; &#39;
var htmlEntityRe = regexp.MustCompile(`&[a-zA-Z0-9#]+;`)

// sentenceRe matches one sentence including its terminator.
var sentenceRe = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?]+)`)

// Stopwords are common words filtered during term extraction.
// These don't help distinguish between chunks.
var Stopwords = map[string]struct{}{
	// Articles and prepositions
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "to": {},
	"of": {}, "in": {}, "for": {}, "with": {}, "on": {}, "at": {},
	"by": {}, "from": {}, "as": {}, "into": {}, "through": {},
	// Common verbs
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {},
	"have": {}, "has": {}, "had": {}, "do": {}, "does": {}, "did": {},
	"will": {}, "would": {}, "could": {}, "should": {}, "may": {},
	"can": {}, "must": {},
	// Pronouns
	"it": {}, "its": {}, "this": {}, "that": {}, "these": {}, "those": {},
	"which": {}, "what": {}, "who": {}, "whom": {},
	// Common doc words (appear everywhere, no discriminative power)
	"following": {}, "using": {}, "also": {},
	"when": {}, "where": {}, "how": {}, "why": {},
	"see": {}, "note": {}, "use": {}, "used": {},
	// Misc
	"over": {}, "about": {}, "above": {}, "below": {},
}

// StripHTML removes HTML tags and entities left over after markdown conversion.
// Converts "<a href='x'>link</a> &amp; more" to "link & more"
func StripHTML(text string) string {
	text = htmlTagRe.ReplaceAllString(text, "")

	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&quot;", "\"")
	text = strings.ReplaceAll(text, "&#39;", "'")
	text = strings.ReplaceAll(text, "&nbsp;", " ")

	// Remove any remaining entities
	text = htmlEntityRe.ReplaceAllString(text, "")

	return text
}

// NormalizeTerms converts text into a list of searchable terms.
// It strips HTML, lowercases, tokenizes, removes stopwords, and skips short tokens.
//
// Example: "The Consumer is configured" → ["consumer", "configured"]
func NormalizeTerms(text string) []string {
	text = StripHTML(text)
	text = strings.ToLower(text)
	raw := tokenRe.FindAllString(text, -1)

	out := make([]string, 0, len(raw))
	for _, t := range raw {
		// Skip very short tokens
		if len(t) <= 1 {
			continue
		}
		if _, isStopword := Stopwords[t]; isStopword {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Trigrams returns the character 3-shingles of a term, e.g.
// "config" → ["con", "onf", "nfi", "fig"]. Terms shorter than three
// characters produce no shingles.
func Trigrams(term string) []string {
	runes := []rune(term)
	if len(runes) < 3 {
		return nil
	}
	out := make([]string, 0, len(runes)-2)
	for i := 0; i+3 <= len(runes); i++ {
		out = append(out, string(runes[i:i+3]))
	}
	return out
}

// Features expands normalized terms into the lexical feature set used by
// the hybrid index: the unigrams themselves plus a trigram variant of each
// term, prefixed so the two feature spaces never collide.
func Features(terms []string) []string {
	out := make([]string, 0, len(terms)*3)
	for _, t := range terms {
		out = append(out, t)
		for _, g := range Trigrams(t) {
			out = append(out, "3:"+g)
		}
	}
	return out
}

// SplitSentences splits text at sentence terminators (. ! ?), keeping the
// terminator with its sentence. Trailing text without a terminator is
// returned as a final sentence.
func SplitSentences(text string) []string {
	matches := sentenceRe.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		return []string{trimmed}
	}

	var out []string
	last := 0
	for _, m := range matches {
		s := strings.TrimSpace(text[m[0]:m[1]])
		if s != "" {
			out = append(out, s)
		}
		last = m[1]
	}
	if tail := strings.TrimSpace(text[last:]); tail != "" {
		out = append(out, tail)
	}
	return out
}

// SplitParagraphs splits text on blank lines.
func SplitParagraphs(text string) []string {
	parts := strings.Split(text, "\n\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// CountWords counts whitespace-separated words.
func CountWords(s string) int {
	return len(strings.Fields(s))
}

// ApproxTokens estimates token count (~4 bytes per token).
func ApproxTokens(s string) int {
	return (len(s) + 3) / 4
}
