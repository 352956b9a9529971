package ftsindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvertedIndex_AddDocument_RejectsDuplicate(t *testing.T) {
	idx := NewInvertedIndex()
	require.NoError(t, idx.AddDocument("a", []string{"x"}))

	err := idx.AddDocument("a", []string{"y"})
	require.Error(t, err)
	var dup *DuplicateDocError
	assert.ErrorAs(t, err, &dup)
}

func TestInvertedIndex_RemoveDocument_IsIdempotent(t *testing.T) {
	idx := NewInvertedIndex()
	require.NoError(t, idx.AddDocument("a", []string{"x"}))

	idx.RemoveDocument("a")
	assert.Equal(t, 0, idx.DocumentCount())

	idx.RemoveDocument("a") // no-op, must not panic or go negative
	assert.Equal(t, 0, idx.DocumentCount())
}

func TestInvertedIndex_RemovingLastDocRemovesTerm(t *testing.T) {
	idx := NewInvertedIndex()
	require.NoError(t, idx.AddDocument("a", []string{"unique"}))
	assert.Equal(t, 1, idx.DocumentFrequency("unique"))

	idx.RemoveDocument("a")
	assert.Equal(t, 0, idx.DocumentFrequency("unique"))
	assert.Empty(t, idx.GetPostings("unique"))
}

func TestInvertedIndex_TotalsInvariant(t *testing.T) {
	idx := NewInvertedIndex()
	require.NoError(t, idx.AddDocument("a", []string{"x", "y", "z"}))
	require.NoError(t, idx.AddDocument("b", []string{"x"}))

	sum := 0
	for _, dl := range idx.DocLengthsInOrder() {
		sum += dl.Length
	}
	assert.Equal(t, sum, idx.totalLength)
	assert.Equal(t, len(idx.docLengths), idx.totalDocs)

	idx.RemoveDocument("a")
	sum = 0
	for _, dl := range idx.DocLengthsInOrder() {
		sum += dl.Length
	}
	assert.Equal(t, sum, idx.totalLength)
	assert.Equal(t, len(idx.docLengths), idx.totalDocs)
}

func TestInvertedIndex_RemoveThenReAdd_EquivalentToFreshAdd(t *testing.T) {
	a := NewInvertedIndex()
	require.NoError(t, a.AddDocument("x", []string{"one"}))
	require.NoError(t, a.AddDocument("doc", []string{"alpha", "beta"}))
	a.RemoveDocument("doc")
	require.NoError(t, a.AddDocument("doc", []string{"gamma"}))

	b := NewInvertedIndex()
	require.NoError(t, b.AddDocument("x", []string{"one"}))
	require.NoError(t, b.AddDocument("doc", []string{"gamma"}))

	assert.Equal(t, a.GetPostings("gamma"), b.GetPostings("gamma"))
	assert.Equal(t, a.DocLength("doc"), b.DocLength("doc"))
	assert.Equal(t, a.totalLength, b.totalLength)
}

func TestInvertedIndex_Clear(t *testing.T) {
	idx := NewInvertedIndex()
	require.NoError(t, idx.AddDocument("a", []string{"x"}))
	idx.Clear()
	assert.Equal(t, 0, idx.DocumentCount())
	assert.Empty(t, idx.GetPostings("x"))
}

func TestInvertedIndex_DocLengthsPreserveInsertionOrder(t *testing.T) {
	idx := NewInvertedIndex()
	require.NoError(t, idx.AddDocument("c", []string{"1"}))
	require.NoError(t, idx.AddDocument("a", []string{"1"}))
	require.NoError(t, idx.AddDocument("b", []string{"1"}))

	order := idx.DocLengthsInOrder()
	require.Len(t, order, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{order[0].ID, order[1].ID, order[2].ID})
}
