// Package mcp exposes paper search as Model Context Protocol tools.
package mcp

import "github.com/Chavalentas/Semantic-Search-Project/internal/storage"

// Search modes accepted by the search tools.
const (
	ModeSemantic = "semantic"
	ModeLexical  = "lexical"
)

// SearchInput defines the input parameters for search_titles and search_abstracts.
type SearchInput struct {
	// Query is the search text.
	Query  string `json:"query" jsonschema:"The search query"`
	// Amount is the maximum number of results. Defaults to 5 when omitted.
	Amount *int   `json:"amount,omitempty" jsonschema:"Maximum number of results (default 5)"`
	// Mode is semantic (vector similarity) or lexical (occurrence count).
	Mode   string `json:"mode,omitempty" jsonschema:"Search mode: semantic (default) or lexical"`
}

// Paper is a matched paper. PublicationDate is formatted YYYY-MM-DD.
type Paper struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Abstract        string           `json:"abstract"`
	PublicationDate *string          `json:"publicationDate,omitempty"`
	Authors         []storage.Author `json:"authors"`
}

// Sentence is an abstract sentence matched by semantic search.
type Sentence struct {
	Text  string  `json:"text"`
	Score float32 `json:"score"`
}

// PaperMatch is a paper with the abstract sentences that matched.
type PaperMatch struct {
	Paper     Paper      `json:"paper"`
	Sentences []Sentence `json:"sentences"`
}

// SearchTitlesOutput contains the matched papers.
type SearchTitlesOutput struct {
	Results []Paper `json:"results"`
	// Message provides informational context (e.g., "No matching papers found").
	Message string `json:"message,omitempty"`
}

// SearchAbstractsOutput contains matched papers. In semantic mode each
// paper carries its matching abstract sentences; lexical matches have none.
type SearchAbstractsOutput struct {
	Results []PaperMatch `json:"results"`
	Message string       `json:"message,omitempty"`
}

func toPaper(p storage.Paper) Paper {
	out := Paper{ID: p.ID, Title: p.Title, Abstract: p.Abstract, Authors: p.Authors}
	if out.Authors == nil {
		out.Authors = []storage.Author{}
	}
	if p.PublicationDate != nil {
		d := p.PublicationDate.String()
		out.PublicationDate = &d
	}
	return out
}

// StatusInput takes no parameters.
type StatusInput struct{}

// StatusOutput describes the stored corpus. A field is indexed once chunk
// indexing provisioned its search index.
type StatusOutput struct {
	Papers          int  `json:"papers"`
	TitleChunks     int  `json:"title_chunks"`
	AbstractChunks  int  `json:"abstract_chunks"`
	TitleIndexed    bool `json:"title_indexed"`
	AbstractIndexed bool `json:"abstract_indexed"`
}
