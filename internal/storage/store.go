package storage

import "context"

// Store is the document store holding the papers collection and one
// chunk collection per field.
type Store interface {
	// EnsurePapers creates the papers collection if it does not exist.
	EnsurePapers(ctx context.Context) error
	InsertPapers(ctx context.Context, papers []Paper) error
	// ListPapers returns the whole corpus in ordinal order.
	ListPapers(ctx context.Context) ([]Paper, error)
	// GetPapers returns the papers with the given ids in request order.
	// Unknown ids are omitted.
	GetPapers(ctx context.Context, ids []string) ([]Paper, error)

	// PrepareChunkCollection creates the chunk collection of field for
	// vectors of the given dimension.
	PrepareChunkCollection(ctx context.Context, field Field, dimension int) error
	InsertChunks(ctx context.Context, field Field, chunks []Chunk) error
	CreateSearchIndex(ctx context.Context, def IndexDefinition) error
	// SearchChunks runs an ANN query and returns chunks by descending
	// similarity. Returned chunks carry no vector.
	SearchChunks(ctx context.Context, q VectorQuery) ([]Chunk, error)

	// Stats counts papers and chunks and reports which fields are indexed.
	Stats(ctx context.Context) (*Stats, error)
	Health(ctx context.Context) error
	// Reset drops every collection and index.
	Reset(ctx context.Context) error
	Close() error
}

// Stats summarizes the contents of a Store.
type Stats struct {
	Papers  int            `json:"papers"`
	Chunks  map[Field]int  `json:"chunks"`
	Indexed map[Field]bool `json:"indexed"`
}
