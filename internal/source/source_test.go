package source

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePager serves fixed pages and records the cursors it was asked for.
type fakePager struct {
	pages   [][]RawRecord
	failAt  int
	cursors []*Cursor
}

func (f *fakePager) Name() string { return "fake" }

func (f *fakePager) FetchPage(ctx context.Context, cursor *Cursor) ([]RawRecord, *Cursor, error) {
	f.cursors = append(f.cursors, cursor)
	i := len(f.cursors) - 1
	if f.failAt > 0 && i+1 == f.failAt {
		return nil, nil, ErrSourceUnavailable
	}
	if i+1 >= len(f.pages) {
		return f.pages[i], nil, nil
	}
	return f.pages[i], &Cursor{Token: strconv.Itoa(i + 1)}, nil
}

func records(ids ...string) []RawRecord {
	out := make([]RawRecord, len(ids))
	for i, id := range ids {
		out[i] = RawRecord{ID: id}
	}
	return out
}

func ids(rs []RawRecord) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func TestFetch_StopsAtTarget(t *testing.T) {
	pager := &fakePager{pages: [][]RawRecord{records("a", "b"), records("c", "d"), records("e")}}

	got, err := Fetch(context.Background(), pager, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(got), "last page is kept whole")
	assert.Len(t, pager.cursors, 2)
	assert.Nil(t, pager.cursors[0], "first page is requested without cursor")
	assert.Equal(t, "1", pager.cursors[1].Token)
}

func TestFetch_StopsWhenExhausted(t *testing.T) {
	pager := &fakePager{pages: [][]RawRecord{records("a"), records("b")}}

	got, err := Fetch(context.Background(), pager, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(got))
}

func TestFetch_RejectsNonPositiveTarget(t *testing.T) {
	_, err := Fetch(context.Background(), &fakePager{}, 0, nil)
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestFetch_PropagatesPageError(t *testing.T) {
	pager := &fakePager{pages: [][]RawRecord{records("a"), records("b")}, failAt: 2}

	_, err := Fetch(context.Background(), pager, 10, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSourceUnavailable))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "Deep learning for graphs", normalize("  Deep\n  learning\tfor\r\ngraphs "))
	assert.Nil(t, normalizePtr(nil))
}
