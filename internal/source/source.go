// Package source fetches raw bibliographic records from paginated APIs.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Chavalentas/Semantic-Search-Project/internal/storage"
)

var (
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrRequestRejected   = errors.New("source rejected request")
	ErrInvalidTarget     = errors.New("target count must be positive")
	ErrInvalidPaging     = errors.New("invalid paging parameters")
)

// RawRecord is a record as delivered by a source, before preparation.
// Nil pointers mark fields the source did not provide.
type RawRecord struct {
	ID              string
	PublicationDate *string
	Title           *string
	Abstract        *string
	Authors         []storage.Author
}

// Cursor addresses a page. Offset-paginated sources use Offset,
// token-paginated sources use Token.
type Cursor struct {
	Offset int
	Token  string
}

// Pager fetches one page of records. A nil cursor requests the first page;
// a nil next cursor means the source is exhausted.
type Pager interface {
	Name() string
	FetchPage(ctx context.Context, cursor *Cursor) (records []RawRecord, next *Cursor, err error)
}

// Fetch collects records from pager until at least target records were
// gathered or the source has no further pages. The last page is kept
// whole, so the result may exceed target.
func Fetch(ctx context.Context, pager Pager, target int, logger *slog.Logger) ([]RawRecord, error) {
	if target <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTarget, target)
	}
	if logger == nil {
		logger = slog.Default()
	}

	var records []RawRecord
	var cursor *Cursor
	for len(records) < target {
		page, next, err := pager.FetchPage(ctx, cursor)
		if err != nil {
			return nil, fmt.Errorf("%s page after %d records: %w", pager.Name(), len(records), err)
		}
		records = append(records, page...)
		logger.Debug("Fetched page", "source", pager.Name(), "records", len(page), "total", len(records))

		if next == nil {
			break
		}
		cursor = next
	}
	return records, nil
}

// normalize collapses newlines and runs of whitespace into single spaces.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func normalizePtr(s *string) *string {
	if s == nil {
		return nil
	}
	n := normalize(*s)
	return &n
}

func normalizeAuthors(names []string) []storage.Author {
	authors := make([]storage.Author, 0, len(names))
	for _, name := range names {
		authors = append(authors, storage.Author{FullName: normalize(name)})
	}
	return authors
}
