package chunking

import (
	_ "embed"
	"regexp"
	"strings"
)

//go:embed stopwords_english.txt
var englishStopwords string

// tokenPattern extracts maximal digit runs, then maximal word runs.
var tokenPattern = regexp.MustCompile(`\p{Nd}+|[\p{L}\p{N}\p{Mn}_]+`)

// EnglishStopwords returns the default English stopword list.
func EnglishStopwords() []string {
	return strings.Fields(englishStopwords)
}

// Preprocessor normalizes text for embedding and deduplication.
// The same instance must be used at ingestion and at query time.
type Preprocessor struct {
	stopwords map[string]struct{}
}

// NewPreprocessor builds a Preprocessor dropping the given stopwords.
// Stopwords are matched case-insensitively.
func NewPreprocessor(stopwords []string) *Preprocessor {
	set := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		set[strings.ToLower(w)] = struct{}{}
	}
	return &Preprocessor{stopwords: set}
}

// NewEnglishPreprocessor uses EnglishStopwords.
func NewEnglishPreprocessor() *Preprocessor {
	return NewPreprocessor(EnglishStopwords())
}

// Preprocess lowercases text, tokenizes it, removes stopwords and joins
// the remaining tokens with single spaces. The result may be empty.
func (p *Preprocessor) Preprocess(text string) string {
	tokens := tokenPattern.FindAllString(strings.ToLower(text), -1)
	kept := tokens[:0]
	for _, tok := range tokens {
		if _, stop := p.stopwords[tok]; !stop {
			kept = append(kept, tok)
		}
	}
	return strings.Join(kept, " ")
}
