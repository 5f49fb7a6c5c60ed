package search

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/Chavalentas/Semantic-Search-Project/internal/storage"
)

// CountMatches returns the number of non-overlapping, case-insensitive
// occurrences of query in text. The query is matched literally.
func CountMatches(query, text string) int {
	if query == "" {
		return 0
	}
	return strings.Count(strings.ToLower(text), strings.ToLower(query))
}

// RankLexical orders the papers of corpus with at least one match of query
// in field by descending match count. Ties keep corpus order. At most
// amount papers are returned.
func RankLexical(query string, amount int, field storage.Field, corpus []storage.Paper) []storage.Paper {
	type scored struct {
		paper storage.Paper
		count int
	}

	var matches []scored
	for _, p := range corpus {
		if n := CountMatches(query, p.Text(field)); n > 0 {
			matches = append(matches, scored{paper: p, count: n})
		}
	}
	slices.SortStableFunc(matches, func(a, b scored) int { return b.count - a.count })

	if len(matches) > amount {
		matches = matches[:amount]
	}
	out := make([]storage.Paper, len(matches))
	for i, m := range matches {
		out[i] = m.paper
	}
	return out
}

// LexicalRanker ranks the stored corpus.
type LexicalRanker struct {
	store storage.Store
}

func NewLexicalRanker(store storage.Store) *LexicalRanker {
	return &LexicalRanker{store: store}
}

// Rank loads the corpus in ordinal order and ranks it with RankLexical.
func (r *LexicalRanker) Rank(ctx context.Context, query string, amount int, field storage.Field) ([]storage.Paper, error) {
	if amount == 0 {
		return []storage.Paper{}, nil
	}
	corpus, err := r.store.ListPapers(ctx)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}
	return RankLexical(query, amount, field, corpus), nil
}
