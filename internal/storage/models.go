package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Field names the paper attribute a chunk collection was built from.
type Field string

const (
	FieldTitle    Field = "title"
	FieldAbstract Field = "abstract"
)

// ParseField converts a user supplied field name.
func ParseField(s string) (Field, error) {
	switch Field(s) {
	case FieldTitle, FieldAbstract:
		return Field(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
}

// Date is a calendar date without a time of day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in its own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses an ISO 8601 calendar date (2006-01-02).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Author is a single paper author.
type Author struct {
	FullName string `json:"fullName"`
}

// Paper is a bibliographic record as stored in the papers collection.
// Ordinal is the record's position in the prepared corpus and defines
// the order in which ListPapers enumerates the corpus.
type Paper struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Abstract        string   `json:"abstract"`
	PublicationDate *Date    `json:"publicationDate"`
	Authors         []Author `json:"authors"`
	Ordinal         int      `json:"-"`
}

// Text returns the paper attribute named by field.
func (p Paper) Text(field Field) string {
	if field == FieldTitle {
		return p.Title
	}
	return p.Abstract
}

// PointID is the stable storage identifier of a paper.
func (p Paper) PointID() string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("paper:"+p.ID)).String()
}

// Chunk is a sentence-level slice of a paper field with its embedding.
// Score is only set on search results; Vector is never serialized.
type Chunk struct {
	PaperID string    `json:"paperId"`
	Text    string    `json:"text"`
	Field   Field     `json:"field"`
	Vector  []float32 `json:"-"`
	Score   float32   `json:"score,omitempty"`

	// Key is the preprocessed text the chunk was deduplicated on.
	Key string `json:"-"`
}

// PointID is the stable storage identifier of a chunk.
func (c Chunk) PointID() string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(string(c.Field)+":"+c.PaperID+":"+c.Key)).String()
}

// PaperChunks pairs a paper with the chunks that matched a query.
type PaperChunks struct {
	Paper  Paper   `json:"document"`
	Chunks []Chunk `json:"chunks"`
}

// Similarity names a vector similarity function.
type Similarity string

const SimilarityCosine Similarity = "cosine"

// IndexDefinition declares an approximate nearest neighbour index over
// the vector field of a chunk collection.
type IndexDefinition struct {
	Name       string
	Field      Field
	Path       string
	Dimension  int
	Similarity Similarity
}

// VectorQuery is an approximate nearest neighbour request.
type VectorQuery struct {
	IndexName     string
	Field         Field
	Path          string
	Vector        []float32
	NumCandidates int
	Limit         int
}

const (
	// PapersCollection holds paper records without vectors.
	PapersCollection = "papers"

	// VectorPath is the name of the vector attribute of chunk records.
	VectorPath = "chunk_vector"

	// VectorDimension is the embedding size used for chunk vectors.
	VectorDimension = 384

	// DefaultNumCandidates is the candidate pool size for ANN queries.
	DefaultNumCandidates = 100
)

// ChunkCollection returns the collection name for chunks of field.
func ChunkCollection(field Field) string {
	return string(field) + "_chunks"
}

// IndexName returns the search index name for chunks of field.
func IndexName(field Field) string {
	if field == FieldTitle {
		return "TitleSearchIndex"
	}
	return "AbstractSearchIndex"
}
