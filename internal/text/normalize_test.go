package text

import (
	"reflect"
	"testing"
)

func TestNormalizeTerms_Basic(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{
			input: "Hello World",
			want:  []string{"hello", "world"},
		},
		{
			input: "The consumer is configured",
			want:  []string{"consumer", "configured"},
		},
		{
			input: "Go 1.23 supports_underscores",
			want:  []string{"go", "23", "supports_underscores"},
		},
		{
			input: "a b c", // Single chars filtered
			want:  []string{},
		},
		{
			input: "", // Empty input
			want:  []string{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			got := NormalizeTerms(tc.input)
			if len(got) != len(tc.want) {
				t.Errorf("NormalizeTerms(%q) = %v, want %v", tc.input, got, tc.want)
				return
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("NormalizeTerms(%q)[%d] = %q, want %q", tc.input, i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestNormalizeTerms_StripsHTML(t *testing.T) {
	got := NormalizeTerms(`<a href="x">retry policy</a> &amp; backoff`)

	want := []string{"retry", "policy", "backoff"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeTerms = %v, want %v", got, want)
	}
}

func TestTrigrams(t *testing.T) {
	tests := []struct {
		term string
		want []string
	}{
		{"config", []string{"con", "onf", "nfi", "fig"}},
		{"abc", []string{"abc"}},
		{"ab", nil},
		{"", nil},
	}

	for _, tc := range tests {
		t.Run(tc.term, func(t *testing.T) {
			got := Trigrams(tc.term)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Trigrams(%q) = %v, want %v", tc.term, got, tc.want)
			}
		})
	}
}

func TestFeatures_PrefixesTrigrams(t *testing.T) {
	got := Features([]string{"retry"})

	want := []string{"retry", "3:ret", "3:etr", "3:try"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Features = %v, want %v", got, want)
	}
}

func TestFeatures_UnigramAndTrigramSpacesNeverCollide(t *testing.T) {
	// The term "con" must stay distinct from the trigram "con" of "config"
	feats := Features([]string{"con", "config"})

	unigrams := 0
	for _, f := range feats {
		if f == "con" {
			unigrams++
		}
	}
	if unigrams != 1 {
		t.Errorf("Expected exactly one unigram feature 'con', got %d in %v", unigrams, feats)
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "two sentences",
			input: "First sentence. Second one!",
			want:  []string{"First sentence.", "Second one!"},
		},
		{
			name:  "trailing fragment kept",
			input: "Complete sentence. dangling tail",
			want:  []string{"Complete sentence.", "dangling tail"},
		},
		{
			name:  "no terminator",
			input: "just a fragment",
			want:  []string{"just a fragment"},
		},
		{
			name:  "empty",
			input: "   ",
			want:  nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := SplitSentences(tc.input)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("SplitSentences(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestSplitParagraphs(t *testing.T) {
	got := SplitParagraphs("first para\nstill first\n\nsecond para\n\n\n\nthird")

	want := []string{"first para\nstill first", "second para", "third"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitParagraphs = %v, want %v", got, want)
	}
}

func TestCountWordsAndApproxTokens(t *testing.T) {
	if got := CountWords("one two  three"); got != 3 {
		t.Errorf("CountWords = %d, want 3", got)
	}
	if got := ApproxTokens("12345678"); got != 2 {
		t.Errorf("ApproxTokens = %d, want 2", got)
	}
	if got := ApproxTokens(""); got != 0 {
		t.Errorf("ApproxTokens(empty) = %d, want 0", got)
	}
}
