package bm25

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSearchRanksMoreRelevantDocHigher(t *testing.T) {
	idx := Build([]Document{
		{ID: "a", Text: "the quick brown fox jumps over the lazy dog"},
		{ID: "b", Text: "foxes are wild canines that live in forests"},
		{ID: "c", Text: "completely unrelated text about cooking pasta"},
	})

	results := idx.Search("fox", 10)
	require.NotEmpty(t, results)
	require.Equal(t, "a", results[0].ID)
}

func TestSearchEmptyQueryReturnsNil(t *testing.T) {
	idx := Build([]Document{{ID: "a", Text: "hello world"}})
	require.Nil(t, idx.Search("", 5))
}

func TestSearchRespectsTopK(t *testing.T) {
	idx := Build([]Document{
		{ID: "a", Text: "alpha beta"},
		{ID: "b", Text: "alpha gamma"},
		{ID: "c", Text: "alpha delta"},
	})
	results := idx.Search("alpha", 2)
	require.Len(t, results, 2)
}

func TestTokenizeMixesWordsAndCJKBigrams(t *testing.T) {
	tokens := Tokenize("hello 你好吗 world")
	require.Contains(t, tokens, "hello")
	require.Contains(t, tokens, "world")
	require.Contains(t, tokens, "你好")
	require.Contains(t, tokens, "好吗")
}

func TestBuildCapsAtMaxDocuments(t *testing.T) {
	docs := make([]Document, MaxDocuments+50)
	for i := range docs {
		docs[i] = Document{ID: string(rune('a' + i%26)), Text: "filler text"}
	}
	idx := Build(docs)
	require.Len(t, idx.docs, MaxDocuments)
}
