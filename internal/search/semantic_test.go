package search

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chavalentas/Semantic-Search-Project/internal/chunking"
	"github.com/Chavalentas/Semantic-Search-Project/internal/embedding"
	"github.com/Chavalentas/Semantic-Search-Project/internal/metrics"
	"github.com/Chavalentas/Semantic-Search-Project/internal/storage"
)

const testDim = 384

type fixture struct {
	store    *storage.MemoryStorage
	embedder *embedding.HashEmbedder
	pre      *chunking.Preprocessor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		store:    storage.NewMemoryStorage(),
		embedder: embedding.NewHashEmbedder(testDim),
		pre:      chunking.NewEnglishPreprocessor(),
	}
	for _, field := range []storage.Field{storage.FieldTitle, storage.FieldAbstract} {
		require.NoError(t, f.store.PrepareChunkCollection(ctx, field, testDim))
		require.NoError(t, f.store.CreateSearchIndex(ctx, storage.IndexDefinition{
			Name:       storage.IndexName(field),
			Field:      field,
			Path:       storage.VectorPath,
			Dimension:  testDim,
			Similarity: storage.SimilarityCosine,
		}))
	}
	return f
}

func (f *fixture) addPaper(t *testing.T, p storage.Paper) {
	t.Helper()
	require.NoError(t, f.store.InsertPapers(context.Background(), []storage.Paper{p}))
}

func (f *fixture) addChunk(t *testing.T, field storage.Field, paperID, text string) {
	t.Helper()
	key := f.pre.Preprocess(text)
	vs, err := f.embedder.Embed(context.Background(), []string{key})
	require.NoError(t, err)
	require.NoError(t, f.store.InsertChunks(context.Background(), field, []storage.Chunk{
		{PaperID: paperID, Text: text, Field: field, Vector: vs[0], Key: key},
	}))
}

func (f *fixture) composer() *SemanticComposer {
	return NewSemanticComposer(f.store, f.embedder, f.pre, testDim, nil)
}

func TestAbstracts_GroupsByParentInRankOrder(t *testing.T) {
	f := newFixture(t)
	f.addPaper(t, storage.Paper{ID: "p1", Title: "Proteins"})
	f.addPaper(t, storage.Paper{ID: "p2", Title: "Markets"})

	f.addChunk(t, storage.FieldAbstract, "p1", "Protein folding is hard.")
	f.addChunk(t, storage.FieldAbstract, "p2", "Stock markets move.")
	f.addChunk(t, storage.FieldAbstract, "p1", "Bond yields rise.")
	f.addChunk(t, storage.FieldAbstract, "p2", "Protein prices in markets.")

	got, err := f.composer().Abstracts(context.Background(), "protein folding", 2)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "p1", got[0].Paper.ID)
	require.Len(t, got[0].Chunks, 1)
	assert.Equal(t, "Protein folding is hard.", got[0].Chunks[0].Text)
	assert.Equal(t, "p2", got[1].Paper.ID)
	assert.Equal(t, "Protein prices in markets.", got[1].Chunks[0].Text)

	total := 0
	for _, g := range got {
		total += len(g.Chunks)
		for _, c := range g.Chunks {
			assert.Equal(t, g.Paper.ID, c.PaperID)
			assert.Nil(t, c.Vector)
		}
	}
	assert.Equal(t, 2, total)
}

func TestTitles_ReturnsPapersInRankOrder(t *testing.T) {
	f := newFixture(t)
	f.addPaper(t, storage.Paper{ID: "p1", Title: "Graph neural networks"})
	f.addPaper(t, storage.Paper{ID: "p2", Title: "Protein folding"})
	f.addChunk(t, storage.FieldTitle, "p1", "Graph neural networks")
	f.addChunk(t, storage.FieldTitle, "p2", "Protein folding")

	got, err := f.composer().Titles(context.Background(), "protein folding", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p2", got[0].ID)
}

func TestSemantic_ZeroAmountSkipsStore(t *testing.T) {
	c := NewSemanticComposer(storage.NewMemoryStorage(), embedding.NewHashEmbedder(testDim), nil, testDim, nil)

	titles, err := c.Titles(context.Background(), "anything", 0)
	require.NoError(t, err)
	assert.Empty(t, titles)

	abstracts, err := c.Abstracts(context.Background(), "anything", 0)
	require.NoError(t, err)
	assert.NotNil(t, abstracts)
	assert.Empty(t, abstracts)
}

func TestSemantic_OrphanChunksAreSkipped(t *testing.T) {
	f := newFixture(t)
	f.addPaper(t, storage.Paper{ID: "p1"})
	f.addChunk(t, storage.FieldAbstract, "p1", "Protein folding.")
	f.addChunk(t, storage.FieldAbstract, "ghost", "Protein folding again.")

	m := metrics.New()
	svc := NewService(Config{
		Store:        f.store,
		Embedder:     f.embedder,
		Preprocessor: f.pre,
		Dimension:    testDim,
		Metrics:      m,
	})

	got, err := svc.AbstractSemantic(context.Background(), "protein folding", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].Paper.ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrphanChunks))
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("embedding service down")
}

func TestSemantic_EmbedFailure(t *testing.T) {
	c := NewSemanticComposer(storage.NewMemoryStorage(), failingEmbedder{}, nil, testDim, nil)
	_, err := c.Titles(context.Background(), "q", 3)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrValidation)
}

func TestSemantic_MissingIndex(t *testing.T) {
	c := NewSemanticComposer(storage.NewMemoryStorage(), embedding.NewHashEmbedder(testDim), nil, testDim, nil)
	_, err := c.Abstracts(context.Background(), "q", 3)
	assert.ErrorIs(t, err, storage.ErrIndexNotFound)
}

// queryRecorder captures the vector queries sent to the store.
type queryRecorder struct {
	*storage.MemoryStorage
	queries []storage.VectorQuery
}

func (r *queryRecorder) SearchChunks(ctx context.Context, q storage.VectorQuery) ([]storage.Chunk, error) {
	r.queries = append(r.queries, q)
	return r.MemoryStorage.SearchChunks(ctx, q)
}

func TestSemantic_CandidatePool(t *testing.T) {
	f := newFixture(t)
	f.addPaper(t, storage.Paper{ID: "p1", Title: "Graph neural networks"})
	f.addChunk(t, storage.FieldTitle, "p1", "Graph neural networks")
	store := &queryRecorder{MemoryStorage: f.store}
	c := NewSemanticComposer(store, f.embedder, f.pre, testDim, nil)
	ctx := context.Background()

	for _, amount := range []int{1, 10, 100} {
		_, err := c.Titles(ctx, "graph", amount)
		require.NoError(t, err)
	}
	_, err := c.Abstracts(ctx, "graph", 250)
	require.NoError(t, err)

	require.Len(t, store.queries, 4)
	for _, q := range store.queries[:3] {
		assert.Equal(t, 100, q.NumCandidates)
	}
	assert.Equal(t, []int{1, 10, 100}, []int{store.queries[0].Limit, store.queries[1].Limit, store.queries[2].Limit})
	assert.Equal(t, 250, store.queries[3].NumCandidates, "pool grows to cover the limit")
	assert.Equal(t, 250, store.queries[3].Limit)
}
