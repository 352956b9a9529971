package ftsindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(fields ...string) *FullTextIndex {
	return New(DefaultFullTextIndexConfig(fields))
}

// Basic ranking end-to-end.
func TestFullTextIndex_BasicRanking(t *testing.T) {
	idx := newTestIndex("title", "body")
	idx.OnSet("a", Document{"title": "Hello World", "body": "Test"})
	idx.OnSet("b", Document{"title": "Goodbye", "body": "Another document"})

	results := idx.Search("hello", SearchOptions{})
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].DocID)
	assert.Greater(t, results[0].Score, 0.0)
}

func TestFullTextIndex_EmptyQueryIsEmptyResult(t *testing.T) {
	idx := newTestIndex("title")
	idx.OnSet("a", Document{"title": "content here"})
	assert.Empty(t, idx.Search("", SearchOptions{}))
	assert.Empty(t, idx.Search("   ", SearchOptions{}))
}

func TestFullTextIndex_StopwordOnlyQueryIsEmptyResult(t *testing.T) {
	idx := newTestIndex("title")
	idx.OnSet("a", Document{"title": "the quick brown fox"})
	assert.Empty(t, idx.Search("the and of", SearchOptions{}))
}

// Per-field boosting.
func TestFullTextIndex_FieldBoost(t *testing.T) {
	idx := newTestIndex("title", "body")
	idx.OnSet("titleDoc", Document{"title": "keyword x", "body": "y"})
	idx.OnSet("bodyDoc", Document{"title": "y", "body": "keyword x"})
	idx.OnSet("filler1", Document{"title": "filler", "body": "keyword filler"})
	idx.OnSet("filler2", Document{"title": "filler", "body": "keyword filler"})

	results := idx.Search("keyword", SearchOptions{Boost: map[string]float64{"title": 2.0}})
	require.NotEmpty(t, results)
	assert.Equal(t, "titleDoc", results[0].DocID)
}

func TestFullTextIndex_OnRemove_NoOpWhenAbsent(t *testing.T) {
	idx := newTestIndex("title")
	idx.OnRemove("missing") // must not panic
	assert.Empty(t, idx.IndexedDocs())
}

func TestFullTextIndex_OnSet_ReplacesExistingDoc(t *testing.T) {
	idx := newTestIndex("title")
	idx.OnSet("a", Document{"title": "first version"})
	idx.OnSet("a", Document{"title": "second edition"})

	assert.Empty(t, idx.Search("first", SearchOptions{}))
	assert.NotEmpty(t, idx.Search("second", SearchOptions{}))
}

func TestFullTextIndex_EmptyCombinedTokensRemovesFromCache(t *testing.T) {
	idx := newTestIndex("title")
	idx.OnSet("a", Document{"title": "word"})
	idx.OnSet("a", Document{"title": 123}) // non-string, drops from FTS
	assert.NotContains(t, idx.IndexedDocs(), "a")
	assert.NotContains(t, idx.documentTokensCache, "a")
}

func TestFullTextIndex_ScoreSingleDocumentMatchesSearch(t *testing.T) {
	idx := newTestIndex("title", "body")
	idx.OnSet("a", Document{"title": "quick brown fox"})
	idx.OnSet("b", Document{"title": "lazy dog"})

	terms := idx.TokenizeQuery("quick fox")
	single := idx.ScoreSingleDocument("a", terms, nil)
	require.NotNil(t, single)

	batch := idx.Search("quick fox", SearchOptions{})
	require.Len(t, batch, 1)
	assert.InDelta(t, batch[0].Score, single.Score, 1e-10)
}

func TestFullTextIndex_ScoreSingleDocumentUncachedTokenizesOnTheFly(t *testing.T) {
	idx := newTestIndex("title")
	idx.OnSet("other", Document{"title": "anchor term"})

	terms := idx.TokenizeQuery("anchor")
	result := idx.ScoreSingleDocument("notYetIndexed", terms, Document{"title": "anchor term here"})
	require.NotNil(t, result)
	assert.Equal(t, "notYetIndexed", result.DocID)
}

func TestFullTextIndex_ScoreSingleDocumentNilWithoutMatch(t *testing.T) {
	idx := newTestIndex("title")
	idx.OnSet("a", Document{"title": "alpha beta"})
	terms := idx.TokenizeQuery("gamma")
	assert.Nil(t, idx.ScoreSingleDocument("a", terms, nil))
}

func TestFullTextIndex_MinScoreAndLimit(t *testing.T) {
	idx := newTestIndex("title")
	idx.OnSet("a", Document{"title": "match match match"})
	idx.OnSet("b", Document{"title": "match"})
	idx.OnSet("c", Document{"title": "match"})

	limited := idx.Search("match", SearchOptions{Limit: 2})
	assert.Len(t, limited, 2)

	all := idx.Search("match", SearchOptions{Limit: 0})
	assert.Len(t, all, 3)

	assert.Empty(t, idx.Search("match", SearchOptions{MinScore: 1e9}))
}

func TestFullTextIndex_SerializeLoadRoundTrip(t *testing.T) {
	idx := newTestIndex("title", "body")
	idx.OnSet("a", Document{"title": "hello world", "body": "testing"})
	idx.OnSet("b", Document{"title": "goodbye", "body": "another document"})

	data, err := idx.Serialize()
	require.NoError(t, err)

	loaded, err := Load(data, []string{"title", "body"}, nil)
	require.NoError(t, err)

	before := idx.Search("hello", SearchOptions{})
	after := loaded.Search("hello", SearchOptions{})
	require.Len(t, before, 1)
	require.Len(t, after, 1)
	assert.Equal(t, before[0].DocID, after[0].DocID)
	assert.InDelta(t, before[0].Score, after[0].Score, 1e-9)

	// Per-field indexes are not persisted; boosting degrades until rebuilt.
	boosted := loaded.Search("hello", SearchOptions{Boost: map[string]float64{"title": 2.0}})
	assert.Empty(t, boosted)
}

func TestFullTextIndex_LoadRejectsCorruptData(t *testing.T) {
	idx := newTestIndex("title")
	idx.OnSet("a", Document{"title": "content"})
	data, err := idx.Serialize()
	require.NoError(t, err)

	_, err = Load(append([]byte{}, data...), []string{"title"}, nil)
	require.NoError(t, err)

	// Corrupting the compressed envelope must fail cleanly, not panic.
	_, err = Load([]byte("not a valid snapshot"), []string{"title"}, nil)
	require.Error(t, err)
}
