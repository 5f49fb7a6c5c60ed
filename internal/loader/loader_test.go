package loader

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chavalentas/Semantic-Search-Project/internal/storage"
)

type recordingSink struct {
	batches [][]int
	failOn  int
}

func (r *recordingSink) insert(ctx context.Context, batch []int) error {
	r.batches = append(r.batches, append([]int(nil), batch...))
	if r.failOn > 0 && len(r.batches) == r.failOn {
		return errors.New("write failed")
	}
	return nil
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestLoad_BatchCounts(t *testing.T) {
	tests := []struct {
		n, batch, calls int
	}{
		{0, 3, 0},
		{1, 3, 1},
		{3, 3, 1},
		{7, 3, 3},
		{10, 1, 10},
		{10, 100, 1},
	}

	for _, tt := range tests {
		sink := &recordingSink{}
		inserted, err := Load(context.Background(), sink.insert, seq(tt.n), tt.batch)
		require.NoError(t, err)

		assert.Equal(t, tt.n, inserted)
		assert.Len(t, sink.batches, tt.calls, "n=%d batch=%d", tt.n, tt.batch)

		var flat []int
		for _, b := range sink.batches {
			assert.LessOrEqual(t, len(b), tt.batch)
			flat = append(flat, b...)
		}
		if tt.n > 0 {
			assert.Equal(t, seq(tt.n), flat, "records arrive in order")
		}
	}
}

func TestLoad_RejectsNonPositiveBatch(t *testing.T) {
	sink := &recordingSink{}
	_, err := Load(context.Background(), sink.insert, seq(3), 0)
	assert.ErrorIs(t, err, ErrInvalidBatchSize)
	assert.Empty(t, sink.batches)
}

func TestLoad_StopsOnFailure(t *testing.T) {
	sink := &recordingSink{failOn: 2}
	inserted, err := Load(context.Background(), sink.insert, seq(7), 3)
	assert.Error(t, err)
	assert.Equal(t, 3, inserted)
	assert.Len(t, sink.batches, 2)
}

func TestProvisionIndex(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	require.NoError(t, store.PrepareChunkCollection(ctx, storage.FieldTitle, 2))

	chunks := []storage.Chunk{
		{PaperID: "a", Field: storage.FieldTitle, Key: "a", Vector: []float32{1, 0}},
		{PaperID: "b", Field: storage.FieldTitle, Key: "b", Vector: []float32{0, 1}},
	}
	n, err := LoadChunks(ctx, store, storage.FieldTitle, chunks, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	err = ProvisionIndex(ctx, store, IndexFor(storage.FieldTitle, 3), chunks)
	assert.ErrorIs(t, err, storage.ErrDimensionMismatch)

	def := IndexFor(storage.FieldTitle, 2)
	assert.Equal(t, "TitleSearchIndex", def.Name)
	assert.Equal(t, storage.SimilarityCosine, def.Similarity)
	require.NoError(t, ProvisionIndex(ctx, store, def, chunks))

	results, err := store.SearchChunks(ctx, storage.VectorQuery{
		IndexName: def.Name, Field: storage.FieldTitle, Path: def.Path, Vector: []float32{0, 1}, Limit: 1,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].PaperID)
}
