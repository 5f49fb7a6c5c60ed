package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// DefaultScholarURL is the Semantic Scholar bulk search endpoint.
const DefaultScholarURL = "https://api.semanticscholar.org/graph/v1/paper/search/bulk"

const scholarFields = "title,abstract,authors,publicationDate"

type scholarResponse struct {
	Total int            `json:"total"`
	Token *string        `json:"token"`
	Data  []scholarPaper `json:"data"`
}

type scholarPaper struct {
	PaperID         string          `json:"paperId"`
	Title           *string         `json:"title"`
	Abstract        *string         `json:"abstract"`
	PublicationDate *string         `json:"publicationDate"`
	Authors         []scholarAuthor `json:"authors"`
}

type scholarAuthor struct {
	Name string `json:"name"`
}

// ScholarPager pages through Semantic Scholar bulk search results using
// the continuation token returned with each page.
type ScholarPager struct {
	client  Getter
	baseURL string
	query   string
}

// NewScholarPager creates a pager for query.
func NewScholarPager(client Getter, baseURL, query string) *ScholarPager {
	if baseURL == "" {
		baseURL = DefaultScholarURL
	}
	return &ScholarPager{client: client, baseURL: baseURL, query: query}
}

func (p *ScholarPager) Name() string { return "semanticscholar" }

// FetchPage fetches the page addressed by cursor.Token.
func (p *ScholarPager) FetchPage(ctx context.Context, cursor *Cursor) ([]RawRecord, *Cursor, error) {
	params := url.Values{}
	params.Set("query", `"`+p.query+`"`)
	params.Set("fields", scholarFields)
	if cursor != nil && cursor.Token != "" {
		params.Set("token", cursor.Token)
	}

	body, err := p.client.Get(ctx, p.baseURL+"?"+params.Encode())
	if err != nil {
		return nil, nil, err
	}

	var resp scholarResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, nil, fmt.Errorf("decode bulk search response: %w", err)
	}

	records := make([]RawRecord, 0, len(resp.Data))
	for _, d := range resp.Data {
		names := make([]string, len(d.Authors))
		for i, a := range d.Authors {
			names[i] = a.Name
		}
		records = append(records, RawRecord{
			ID:              normalize(d.PaperID),
			PublicationDate: scholarDate(d.PublicationDate),
			Title:           normalizePtr(d.Title),
			Abstract:        normalizePtr(d.Abstract),
			Authors:         normalizeAuthors(names),
		})
	}

	if resp.Token == nil || strings.TrimSpace(*resp.Token) == "" {
		return records, nil, nil
	}
	return records, &Cursor{Token: *resp.Token}, nil
}

// scholarDate lifts a YYYY-MM-DD date to the timestamp form shared with arXiv.
func scholarDate(s *string) *string {
	d := normalizePtr(s)
	if d == nil || *d == "" {
		return nil
	}
	if len(*d) == len("2006-01-02") {
		full := *d + "T00:00:00Z"
		return &full
	}
	return d
}
