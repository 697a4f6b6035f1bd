package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/orchestrator/retriever/bm25"
)

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return f.vec, f.err
}

type fakeStore struct {
	searchResults []Chunk
	corpus        []Chunk
	searchErr     error
}

func (f *fakeStore) Search(context.Context, []float32, int, Filter) ([]Chunk, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.searchResults, nil
}

func (f *fakeStore) Corpus(context.Context, Filter) ([]Chunk, error) {
	return f.corpus, nil
}

func TestSearchFusesVectorAndBM25Results(t *testing.T) {
	chunks := []Chunk{
		{ID: "1", Text: "the quick brown fox", Metadata: Metadata{FileName: "a.txt"}},
		{ID: "2", Text: "completely different content", Metadata: Metadata{FileName: "b.txt"}},
	}
	embed := &fakeEmbedder{vec: []float32{0.1, 0.2}}
	store := &fakeStore{searchResults: chunks, corpus: chunks}
	r := New(embed, store)

	results := r.Search(context.Background(), "fox", 2, SearchOptions{UseHybrid: true})
	require.NotEmpty(t, results)
	require.Equal(t, "1", results[0].ID)
	require.Greater(t, results[0].SearchInfo.RRFScore, 0.0)
}

func TestSearchEmbedFailureReturnsEmpty(t *testing.T) {
	embed := &fakeEmbedder{err: errors.New("boom")}
	store := &fakeStore{}
	r := New(embed, store)
	results := r.Search(context.Background(), "fox", 2, SearchOptions{})
	require.Empty(t, results)
}

func TestSearchVectorFailureReturnsEmpty(t *testing.T) {
	embed := &fakeEmbedder{vec: []float32{0.1}}
	store := &fakeStore{searchErr: errors.New("boom")}
	r := New(embed, store)
	results := r.Search(context.Background(), "fox", 2, SearchOptions{})
	require.Empty(t, results)
}

func TestSearchMultipleDedupesByFusionKey(t *testing.T) {
	chunks := []Chunk{
		{ID: "1", Text: "duplicate content here", Metadata: Metadata{FileName: "a.txt"}},
	}
	embed := &fakeEmbedder{vec: []float32{0.1}}
	store := &fakeStore{searchResults: chunks, corpus: chunks}
	r := New(embed, store)

	retrieval := r.SearchMultiple(context.Background(), []string{"q1", "q2"}, 5, SearchOptions{})
	require.Len(t, retrieval.Results, 1)
	require.Len(t, retrieval.Sources, 1)
}

func TestBM25IndexCachedPerFilterFingerprint(t *testing.T) {
	chunks := []Chunk{{ID: "1", Text: "alpha beta"}}
	embed := &fakeEmbedder{vec: []float32{0.1}}
	store := &fakeStore{searchResults: chunks, corpus: chunks}
	r := New(embed, store)

	ctx := context.Background()
	idx1, _, err := r.bm25Index(ctx, Filter{"kind": {"doc"}})
	require.NoError(t, err)
	idx2, _, err := r.bm25Index(ctx, Filter{"kind": {"doc"}})
	require.NoError(t, err)
	require.Same(t, idx1, idx2)
}

func TestFuseRecoversFullChunkForBM25OnlyHit(t *testing.T) {
	vectorResults := []Chunk{
		{ID: "1", Text: "the quick brown fox", Metadata: Metadata{FileName: "a.txt"}},
	}
	bm25Results := []bm25.Result{
		{ID: "1", Score: 1.0},
		{ID: "2", Score: 0.5},
	}
	corpusByID := map[string]Chunk{
		"1": {ID: "1", Text: "the quick brown fox", Metadata: Metadata{FileName: "a.txt"}},
		"2": {ID: "2", Text: "a lexical-only match with real content", Metadata: Metadata{FileName: "b.txt", PageLabel: "3"}},
	}

	fused := fuse(vectorResults, bm25Results, corpusByID)

	var bm25Only *Chunk
	for i := range fused {
		if fused[i].ID == "2" {
			bm25Only = &fused[i]
		}
	}
	require.NotNil(t, bm25Only, "expected the BM25-only hit to survive fusion")
	require.Equal(t, "a lexical-only match with real content", bm25Only.Text)
	require.Equal(t, "b.txt", bm25Only.Metadata.FileName)
	require.Equal(t, "3", bm25Only.Metadata.PageLabel)
}

func TestFuseIsIdempotentOnRepeatedCalls(t *testing.T) {
	vectorResults := []Chunk{
		{ID: "1", Text: "the quick brown fox", Metadata: Metadata{FileName: "a.txt"}},
		{ID: "2", Text: "completely different content", Metadata: Metadata{FileName: "b.txt"}},
	}
	bm25Results := []bm25.Result{
		{ID: "2", Score: 1.0},
		{ID: "1", Score: 0.5},
	}
	corpusByID := map[string]Chunk{
		"1": vectorResults[0],
		"2": vectorResults[1],
	}

	first := fuse(vectorResults, bm25Results, corpusByID)
	second := fuse(vectorResults, bm25Results, corpusByID)

	require.Equal(t, len(first), len(second))
	for i := range first {
		require.Equal(t, first[i].ID, second[i].ID)
		require.Equal(t, first[i].SearchInfo.RRFScore, second[i].SearchInfo.RRFScore)
	}
}
