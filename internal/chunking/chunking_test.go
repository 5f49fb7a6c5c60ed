package chunking

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chavalentas/Semantic-Search-Project/internal/storage"
)

func TestPreprocess(t *testing.T) {
	p := NewPreprocessor([]string{"the"})
	assert.Equal(t, "quick fox 2024", p.Preprocess("The Quick, Fox 2024"))

	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"The", ""},
		{"123abc", "123 abc"},
		{"abc123", "abc123"},
		{"naïve   Bayes!", "naïve bayes"},
		{"snake_case words", "snake_case words"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Preprocess(tt.in), "input %q", tt.in)
	}
}

func TestEnglishPreprocessor(t *testing.T) {
	p := NewEnglishPreprocessor()
	assert.Equal(t, "study graphs", p.Preprocess("We study the graphs."))
	assert.Contains(t, EnglishStopwords(), "the")
}

func TestSentenceSplitter(t *testing.T) {
	s, err := NewSentenceSplitter()
	require.NoError(t, err)

	got := s.Split("We study graphs. Graphs are fun.")
	assert.Equal(t, []string{"We study graphs.", "Graphs are fun."}, got)
	assert.Empty(t, s.Split("   "))
}

func TestWholeSplitter(t *testing.T) {
	assert.Equal(t, []string{"A title. With a dot."}, WholeSplitter{}.Split(" A title. With a dot. "))
}

// recordingEmbedder hashes texts and records every batch it was given.
type recordingEmbedder struct {
	mu      sync.Mutex
	dim     int
	batches [][]string
	fail    error
}

func (r *recordingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	r.mu.Lock()
	r.batches = append(r.batches, append([]string(nil), texts...))
	r.mu.Unlock()
	if r.fail != nil {
		return nil, r.fail
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, r.dim)
		v[0] = float32(len(t))
		out[i] = v
	}
	return out, nil
}

// dotSplitter splits on periods so tests do not depend on the Punkt model.
type dotSplitter struct{}

func (dotSplitter) Split(text string) []string {
	var out []string
	for _, s := range strings.Split(text, ".") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s+".")
		}
	}
	return out
}

func newTestPipeline(t *testing.T, emb Embedder, opts ...Option) *Pipeline {
	t.Helper()
	opts = append([]Option{WithSplitter(dotSplitter{}), WithPoolSize(4)}, opts...)
	p, err := NewPipeline(storage.FieldAbstract, NewPreprocessor([]string{"the", "a"}), emb, 3, opts...)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

func TestRun_GlobalDedupKeepsFirstPaper(t *testing.T) {
	p := newTestPipeline(t, &recordingEmbedder{dim: 3})

	papers := []storage.Paper{
		{ID: "p1", Abstract: "Graphs are fun. We study graphs."},
		{ID: "p2", Abstract: "THE graphs are fun. New idea."},
	}
	res, err := p.Run(context.Background(), papers)
	require.NoError(t, err)

	require.Len(t, res.Chunks, 3)
	assert.Equal(t, 4, res.Sentences)
	assert.Equal(t, 1, res.Duplicates)

	assert.Equal(t, "p1", res.Chunks[0].PaperID)
	assert.Equal(t, "Graphs are fun.", res.Chunks[0].Text)
	assert.Equal(t, "p1", res.Chunks[1].PaperID)
	assert.Equal(t, "p2", res.Chunks[2].PaperID)
	assert.Equal(t, "New idea.", res.Chunks[2].Text)
	for _, c := range res.Chunks {
		assert.Equal(t, storage.FieldAbstract, c.Field)
		assert.Len(t, c.Vector, 3)
	}
}

func TestRun_DocumentDedupScope(t *testing.T) {
	p := newTestPipeline(t, &recordingEmbedder{dim: 3}, WithDedupScope(DedupDocument))

	papers := []storage.Paper{
		{ID: "p1", Abstract: "Graphs are fun. Graphs are fun."},
		{ID: "p2", Abstract: "Graphs are fun."},
	}
	res, err := p.Run(context.Background(), papers)
	require.NoError(t, err)

	require.Len(t, res.Chunks, 2)
	assert.Equal(t, "p1", res.Chunks[0].PaperID)
	assert.Equal(t, "p2", res.Chunks[1].PaperID)
}

func TestRun_EmptyPreprocessedTextIsAKey(t *testing.T) {
	emb := &recordingEmbedder{dim: 3}
	p := newTestPipeline(t, emb)

	res, err := p.Run(context.Background(), []storage.Paper{
		{ID: "p1", Abstract: "The. A."},
	})
	require.NoError(t, err)
	require.Len(t, res.Chunks, 1)
	assert.Equal(t, "The.", res.Chunks[0].Text)
	assert.Equal(t, "", res.Chunks[0].Key)
}

func TestRun_ParallelEmbeddingPreservesOrder(t *testing.T) {
	emb := &recordingEmbedder{dim: 3}
	p := newTestPipeline(t, emb, WithBatchSize(2))

	var sb strings.Builder
	for i := 0; i < 25; i++ {
		sb.WriteString(strings.Repeat("x", i+1))
		sb.WriteString(". ")
	}
	res, err := p.Run(context.Background(), []storage.Paper{{ID: "p", Abstract: sb.String()}})
	require.NoError(t, err)

	require.Len(t, res.Chunks, 25)
	for i, c := range res.Chunks {
		assert.Equal(t, float32(i+1), c.Vector[0], "chunk %d got another chunk's vector", i)
	}
	assert.Len(t, emb.batches, 13)
}

func TestRun_TitleFieldIsOneChunkPerPaper(t *testing.T) {
	p, err := NewPipeline(storage.FieldTitle, NewEnglishPreprocessor(), &recordingEmbedder{dim: 3}, 3)
	require.NoError(t, err)
	defer p.Release()

	res, err := p.Run(context.Background(), []storage.Paper{
		{ID: "p1", Title: "Deep Learning. A Survey"},
		{ID: "p2", Title: "Graph Networks"},
	})
	require.NoError(t, err)
	require.Len(t, res.Chunks, 2)
	assert.Equal(t, "Deep Learning. A Survey", res.Chunks[0].Text)
	assert.Equal(t, storage.FieldTitle, res.Chunks[1].Field)
}

func TestRun_DimensionMismatch(t *testing.T) {
	p := newTestPipeline(t, &recordingEmbedder{dim: 5})
	_, err := p.Run(context.Background(), []storage.Paper{{ID: "p", Abstract: "Text."}})
	assert.ErrorIs(t, err, storage.ErrDimensionMismatch)
}

func TestRun_EmbedderError(t *testing.T) {
	boom := errors.New("boom")
	p := newTestPipeline(t, &recordingEmbedder{dim: 3, fail: boom})
	_, err := p.Run(context.Background(), []storage.Paper{{ID: "p", Abstract: "Text."}})
	assert.ErrorIs(t, err, boom)
}

func TestParseDedupScope(t *testing.T) {
	s, err := ParseDedupScope("")
	require.NoError(t, err)
	assert.Equal(t, DedupGlobal, s)

	s, err = ParseDedupScope("document")
	require.NoError(t, err)
	assert.Equal(t, DedupDocument, s)

	_, err = ParseDedupScope("paper")
	assert.Error(t, err)
}
