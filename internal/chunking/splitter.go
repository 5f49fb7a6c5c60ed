package chunking

import (
	"fmt"
	"strings"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"

	"github.com/Chavalentas/Semantic-Search-Project/internal/storage"
)

// Splitter breaks a field value into raw chunk texts, in order.
type Splitter interface {
	Split(text string) []string
}

// SentenceSplitter splits English prose with a Punkt sentence tokenizer.
type SentenceSplitter struct {
	tokenizer *sentences.DefaultSentenceTokenizer
}

// NewSentenceSplitter loads the bundled English Punkt model.
func NewSentenceSplitter() (*SentenceSplitter, error) {
	tokenizer, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("load sentence tokenizer: %w", err)
	}
	return &SentenceSplitter{tokenizer: tokenizer}, nil
}

// Split returns the trimmed, non-blank sentences of text.
func (s *SentenceSplitter) Split(text string) []string {
	var out []string
	for _, sent := range s.tokenizer.Tokenize(text) {
		if t := strings.TrimSpace(sent.Text); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// WholeSplitter yields the whole text as a single chunk.
type WholeSplitter struct{}

func (WholeSplitter) Split(text string) []string {
	if t := strings.TrimSpace(text); t != "" {
		return []string{t}
	}
	return nil
}

// SplitterFor returns the splitter used for field: one chunk per title,
// one chunk per abstract sentence.
func SplitterFor(field storage.Field) (Splitter, error) {
	switch field {
	case storage.FieldTitle:
		return WholeSplitter{}, nil
	case storage.FieldAbstract:
		return NewSentenceSplitter()
	}
	return nil, fmt.Errorf("%w: %q", storage.ErrUnknownField, field)
}
