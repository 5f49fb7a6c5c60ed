package search

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chavalentas/Semantic-Search-Project/internal/metrics"
	"github.com/Chavalentas/Semantic-Search-Project/internal/storage"
)

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("graphs", 0))
	assert.ErrorIs(t, Validate("", 3), ErrEmptyQuery)
	assert.NoError(t, Validate("   ", 3), "whitespace is a literal query")
	assert.ErrorIs(t, Validate("graphs", -1), ErrNegativeAmount)
	assert.Equal(t, "Amount of results cannot be negative!", ErrNegativeAmount.Error())
}

func TestService_ValidationRunsFirst(t *testing.T) {
	m := metrics.New()
	svc := NewService(Config{
		Store:     storage.NewMemoryStorage(),
		Embedder:  failingEmbedder{},
		Dimension: testDim,
		Metrics:   m,
	})
	ctx := context.Background()

	_, err := svc.TitleSemantic(ctx, "", 5)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.AbstractSemantic(ctx, "q", -2)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.TitleLexical(ctx, "", 1)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.AbstractLexical(ctx, "q", -1)
	assert.ErrorIs(t, err, ErrValidation)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues(OpTitleSemantic, "invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues(OpAbstractLexical, "invalid")))

	_, err = svc.TitleSemantic(ctx, "q", 5)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrValidation))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues(OpTitleSemantic, "error")))
}

func TestService_Lexical(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	require.NoError(t, store.InsertPapers(ctx, corpusWithCounts(3, 0, 1, 2, 1)))

	svc := NewService(Config{Store: store, Embedder: failingEmbedder{}, Dimension: testDim})

	got, err := svc.AbstractLexical(ctx, "GRAPH", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "d"}, ids(got))

	got, err = svc.TitleLexical(ctx, "paper", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestService_WhitespaceQueryIsLiteral(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	require.NoError(t, store.InsertPapers(ctx, corpusWithCounts(3, 0, 1, 2, 1)))
	svc := NewService(Config{Store: store, Embedder: failingEmbedder{}, Dimension: testDim})

	// Space counts per abstract: 7, 1, 3, 5, 3.
	got, err := svc.AbstractLexical(ctx, " ", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "d", "c"}, ids(got))
}
