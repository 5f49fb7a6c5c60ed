// Package loader writes records to the document store in bounded batches
// and provisions the vector search indexes over chunk collections.
package loader

import (
	"context"
	"errors"
	"fmt"

	"github.com/Chavalentas/Semantic-Search-Project/internal/storage"
)

var ErrInvalidBatchSize = errors.New("batch size must be positive")

// Load inserts records through insert in ceil(len/batchSize) sequential
// calls of at most batchSize records each. It returns the number of
// records inserted before any failure.
func Load[T any](ctx context.Context, insert func(context.Context, []T) error, records []T, batchSize int) (int, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidBatchSize, batchSize)
	}

	inserted := 0
	for i := 0; i < len(records); i += batchSize {
		end := min(i+batchSize, len(records))
		if err := insert(ctx, records[i:end]); err != nil {
			return inserted, fmt.Errorf("insert batch %d-%d: %w", i, end, err)
		}
		inserted += end - i
	}
	return inserted, nil
}

// LoadPapers inserts papers into the papers collection.
func LoadPapers(ctx context.Context, store storage.Store, papers []storage.Paper, batchSize int) (int, error) {
	return Load(ctx, store.InsertPapers, papers, batchSize)
}

// LoadChunks inserts chunks into the chunk collection of field.
func LoadChunks(ctx context.Context, store storage.Store, field storage.Field, chunks []storage.Chunk, batchSize int) (int, error) {
	insert := func(ctx context.Context, batch []storage.Chunk) error {
		return store.InsertChunks(ctx, field, batch)
	}
	return Load(ctx, insert, chunks, batchSize)
}

// IndexFor returns the cosine index definition for the chunks of field.
func IndexFor(field storage.Field, dimension int) storage.IndexDefinition {
	return storage.IndexDefinition{
		Name:       storage.IndexName(field),
		Field:      field,
		Path:       storage.VectorPath,
		Dimension:  dimension,
		Similarity: storage.SimilarityCosine,
	}
}

// ProvisionIndex declares def on the store after checking that every
// loaded chunk vector has the declared dimension.
func ProvisionIndex(ctx context.Context, store storage.Store, def storage.IndexDefinition, chunks []storage.Chunk) error {
	if def.Dimension <= 0 {
		return fmt.Errorf("%w: index %s declares dimension %d", storage.ErrDimensionMismatch, def.Name, def.Dimension)
	}
	for i, c := range chunks {
		if len(c.Vector) != def.Dimension {
			return fmt.Errorf("%w: chunk %d has %d dimensions, index %s declares %d",
				storage.ErrDimensionMismatch, i, len(c.Vector), def.Name, def.Dimension)
		}
	}
	if err := store.CreateSearchIndex(ctx, def); err != nil {
		return fmt.Errorf("create search index %s: %w", def.Name, err)
	}
	return nil
}
