package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorage_ListPapersOrdinalOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	require.NoError(t, s.InsertPapers(ctx, []Paper{
		{ID: "c", Ordinal: 2},
		{ID: "a", Ordinal: 0},
	}))
	require.NoError(t, s.InsertPapers(ctx, []Paper{{ID: "b", Ordinal: 1}}))

	papers, err := s.ListPapers(ctx)
	require.NoError(t, err)
	require.Len(t, papers, 3)
	assert.Equal(t, "a", papers[0].ID)
	assert.Equal(t, "b", papers[1].ID)
	assert.Equal(t, "c", papers[2].ID)
}

func TestMemoryStorage_GetPapersSkipsUnknown(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	require.NoError(t, s.InsertPapers(ctx, []Paper{{ID: "a"}, {ID: "b"}}))

	papers, err := s.GetPapers(ctx, []string{"b", "missing", "a"})
	require.NoError(t, err)
	require.Len(t, papers, 2)
	assert.Equal(t, "b", papers[0].ID)
	assert.Equal(t, "a", papers[1].ID)
}

func TestMemoryStorage_SearchChunks(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	require.NoError(t, s.PrepareChunkCollection(ctx, FieldAbstract, 2))
	require.NoError(t, s.InsertChunks(ctx, FieldAbstract, []Chunk{
		{PaperID: "p1", Text: "east", Field: FieldAbstract, Vector: []float32{1, 0}},
		{PaperID: "p2", Text: "north", Field: FieldAbstract, Vector: []float32{0, 1}},
		{PaperID: "p3", Text: "north east", Field: FieldAbstract, Vector: []float32{1, 1}},
	}))

	_, err := s.SearchChunks(ctx, VectorQuery{IndexName: "AbstractSearchIndex", Field: FieldAbstract, Vector: []float32{1, 0}, Limit: 2})
	assert.ErrorIs(t, err, ErrIndexNotFound)

	require.NoError(t, s.CreateSearchIndex(ctx, IndexDefinition{
		Name:       "AbstractSearchIndex",
		Field:      FieldAbstract,
		Path:       VectorPath,
		Dimension:  2,
		Similarity: SimilarityCosine,
	}))

	results, err := s.SearchChunks(ctx, VectorQuery{
		IndexName:     "AbstractSearchIndex",
		Field:         FieldAbstract,
		Path:          VectorPath,
		Vector:        []float32{1, 0},
		NumCandidates: DefaultNumCandidates,
		Limit:         2,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "p1", results[0].PaperID)
	assert.Equal(t, "p3", results[1].PaperID)
	assert.Nil(t, results[0].Vector, "vectors must not be returned")
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestMemoryStorage_DimensionChecks(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	err := s.InsertChunks(ctx, FieldTitle, []Chunk{{Vector: []float32{1}}})
	assert.ErrorIs(t, err, ErrCollectionNotFound)

	require.NoError(t, s.PrepareChunkCollection(ctx, FieldTitle, 3))
	err = s.InsertChunks(ctx, FieldTitle, []Chunk{{Vector: []float32{1, 2}}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	err = s.CreateSearchIndex(ctx, IndexDefinition{Name: "TitleSearchIndex", Field: FieldTitle, Dimension: 4})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestMemoryStorage_Reset(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	require.NoError(t, s.InsertPapers(ctx, []Paper{{ID: "a"}}))
	require.NoError(t, s.Reset(ctx))

	papers, err := s.ListPapers(ctx)
	require.NoError(t, err)
	assert.Empty(t, papers)
}

func TestDate_JSON(t *testing.T) {
	d, err := ParseDate("2021-03-04")
	require.NoError(t, err)
	assert.Equal(t, "2021-03-04", d.String())

	b, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"2021-03-04"`, string(b))

	var back Date
	require.NoError(t, back.UnmarshalJSON(b))
	assert.Equal(t, d, back)
}

func TestChunkPointID_Stable(t *testing.T) {
	a := Chunk{PaperID: "p", Field: FieldTitle, Key: "graph neural"}
	b := Chunk{PaperID: "p", Field: FieldTitle, Key: "graph neural", Text: "Graph Neural"}
	c := Chunk{PaperID: "q", Field: FieldTitle, Key: "graph neural"}

	assert.Equal(t, a.PointID(), b.PointID())
	assert.NotEqual(t, a.PointID(), c.PointID())
}

func TestMemoryStorage_Stats(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	require.NoError(t, s.InsertPapers(ctx, []Paper{{ID: "a"}, {ID: "b"}}))
	require.NoError(t, s.PrepareChunkCollection(ctx, FieldTitle, 2))
	require.NoError(t, s.InsertChunks(ctx, FieldTitle, []Chunk{{PaperID: "a", Vector: []float32{1, 0}}}))
	require.NoError(t, s.CreateSearchIndex(ctx, IndexDefinition{
		Name: IndexName(FieldTitle), Field: FieldTitle, Path: VectorPath, Dimension: 2, Similarity: SimilarityCosine,
	}))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Papers)
	assert.Equal(t, 1, stats.Chunks[FieldTitle])
	assert.Equal(t, 0, stats.Chunks[FieldAbstract])
	assert.True(t, stats.Indexed[FieldTitle])
	assert.False(t, stats.Indexed[FieldAbstract])
}
