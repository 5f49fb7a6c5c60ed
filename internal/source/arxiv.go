package source

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strconv"
)

// DefaultArxivURL is the arXiv query API endpoint.
const DefaultArxivURL = "http://export.arxiv.org/api/query"

type atomFeed struct {
	TotalResults int         `xml:"totalResults"`
	Entries      []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string       `xml:"id"`
	Published *string      `xml:"published"`
	Title     *string      `xml:"title"`
	Summary   *string      `xml:"summary"`
	Authors   []atomAuthor `xml:"author"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

// ArxivPager pages through arXiv search results by start offset.
type ArxivPager struct {
	client    Getter
	baseURL   string
	query     string
	batchSize int
	maximum   int
}

// NewArxivPager creates a pager requesting batchSize entries per page and
// never paging past maximum entries.
func NewArxivPager(client Getter, baseURL, query string, batchSize, maximum int) (*ArxivPager, error) {
	if batchSize <= 0 || maximum <= 0 || batchSize > maximum {
		return nil, fmt.Errorf("%w: batch %d, maximum %d", ErrInvalidPaging, batchSize, maximum)
	}
	if baseURL == "" {
		baseURL = DefaultArxivURL
	}
	return &ArxivPager{
		client:    client,
		baseURL:   baseURL,
		query:     query,
		batchSize: batchSize,
		maximum:   maximum,
	}, nil
}

func (p *ArxivPager) Name() string { return "arxiv" }

// FetchPage fetches the page starting at cursor.Offset.
func (p *ArxivPager) FetchPage(ctx context.Context, cursor *Cursor) ([]RawRecord, *Cursor, error) {
	start := 0
	if cursor != nil {
		start = cursor.Offset
	}

	params := url.Values{}
	params.Set("search_query", "all:"+p.query)
	params.Set("start", strconv.Itoa(start))
	params.Set("max_results", strconv.Itoa(p.batchSize))

	body, err := p.client.Get(ctx, p.baseURL+"?"+params.Encode())
	if err != nil {
		return nil, nil, err
	}

	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, nil, fmt.Errorf("decode atom feed: %w", err)
	}

	records := make([]RawRecord, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		names := make([]string, len(e.Authors))
		for i, a := range e.Authors {
			names[i] = a.Name
		}
		records = append(records, RawRecord{
			ID:              normalize(e.ID),
			PublicationDate: normalizePtr(e.Published),
			Title:           normalizePtr(e.Title),
			Abstract:        normalizePtr(e.Summary),
			Authors:         normalizeAuthors(names),
		})
	}

	limit := p.maximum
	if feed.TotalResults > 0 && feed.TotalResults < limit {
		limit = feed.TotalResults
	}
	next := start + p.batchSize
	if len(records) == 0 || next >= limit {
		return records, nil, nil
	}
	return records, &Cursor{Offset: next}, nil
}
