// Package prep turns raw source records into clean papers.
package prep

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Chavalentas/Semantic-Search-Project/internal/source"
	"github.com/Chavalentas/Semantic-Search-Project/internal/storage"
)

// DateLayout is the timestamp layout expected in raw publication dates.
const DateLayout = "2006-01-02T15:04:05Z"

var (
	ErrInvalidAmount = errors.New("amount to extract must be positive")
	ErrMalformedDate = errors.New("malformed publication date")
)

// Preparator filters, deduplicates, parses and truncates raw records.
type Preparator struct {
	amount                int
	excludeEmptyTitles    bool
	excludeEmptyAbstracts bool
}

// NewPreparator returns a Preparator keeping at most amount records.
func NewPreparator(amount int, excludeEmptyTitles, excludeEmptyAbstracts bool) (*Preparator, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	return &Preparator{
		amount:                amount,
		excludeEmptyTitles:    excludeEmptyTitles,
		excludeEmptyAbstracts: excludeEmptyAbstracts,
	}, nil
}

// Prepare runs the preparation steps in order: filter incomplete records,
// drop repeated ids keeping the first, parse dates, truncate. The input
// slice is not modified.
func (p *Preparator) Prepare(raw []source.RawRecord) ([]storage.Paper, error) {
	seen := make(map[string]struct{}, len(raw))
	papers := make([]storage.Paper, 0, min(len(raw), p.amount))

	for _, r := range raw {
		if p.excludeEmptyTitles && blank(r.Title) {
			continue
		}
		if p.excludeEmptyAbstracts && blank(r.Abstract) {
			continue
		}
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}

		date, err := parseDate(r.PublicationDate)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", r.ID, err)
		}

		papers = append(papers, storage.Paper{
			ID:              r.ID,
			Title:           deref(r.Title),
			Abstract:        deref(r.Abstract),
			PublicationDate: date,
			Authors:         authors(r.Authors),
		})
	}

	// Dates are validated for every surviving record before truncation.
	if len(papers) > p.amount {
		papers = papers[:p.amount]
	}
	for i := range papers {
		papers[i].Ordinal = i
	}
	return papers, nil
}

func parseDate(s *string) (*storage.Date, error) {
	if s == nil {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, *s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrMalformedDate, *s)
	}
	d := storage.DateOf(t)
	return &d, nil
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func authors(in []storage.Author) []storage.Author {
	out := make([]storage.Author, 0, len(in))
	for _, a := range in {
		if strings.TrimSpace(a.FullName) != "" {
			out = append(out, a)
		}
	}
	return out
}
