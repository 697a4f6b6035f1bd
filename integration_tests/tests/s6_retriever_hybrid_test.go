package tests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/orchestrator/retriever"
)

type fixedEmbedder struct{ vec []float32 }

func (f fixedEmbedder) EmbedQuery(context.Context, string) ([]float32, error) { return f.vec, nil }

// bertCorpusStore backs both the vector and BM25-corpus paths of a single
// Retriever with an overlapping but not identical corpus: some chunks turn
// up only in the vector result list, some only via BM25, exercising real
// Reciprocal Rank Fusion across both sources rather than one degenerate
// list.
type bertCorpusStore struct {
	vectorHits []retriever.Chunk
	fullCorpus []retriever.Chunk
}

func (s bertCorpusStore) Search(context.Context, []float32, int, retriever.Filter) ([]retriever.Chunk, error) {
	return s.vectorHits, nil
}

func (s bertCorpusStore) Corpus(context.Context, retriever.Filter) ([]retriever.Chunk, error) {
	return s.fullCorpus, nil
}

// TestRetrieverHybridSearchOnBERTReturnsRankedBoundedMonotonicResults drives
// the real Retriever.Search (vector + BM25 + RRF, no rerank) against a
// corpus where some hits are vector-only and some are BM25-only, asserting
// the top_k bound, that every chunk carries at least one non-null rank,
// and that fused scores are monotonically non-increasing.
func TestRetrieverHybridSearchOnBERTReturnsRankedBoundedMonotonicResults(t *testing.T) {
	full := []retriever.Chunk{
		{ID: "1", Text: "BERT is a bidirectional transformer encoder pretrained with masked language modeling.", Metadata: retriever.Metadata{FileName: "bert.pdf", PageLabel: "1"}},
		{ID: "2", Text: "BERT's next-sentence-prediction pretraining objective was later shown to add little value.", Metadata: retriever.Metadata{FileName: "bert.pdf", PageLabel: "3"}},
		{ID: "3", Text: "RoBERTa removes next-sentence prediction and trains BERT longer on more data.", Metadata: retriever.Metadata{FileName: "roberta.pdf", PageLabel: "1"}},
		{ID: "4", Text: "ELECTRA replaces masked-token prediction with a replaced-token-detection pretraining task.", Metadata: retriever.Metadata{FileName: "electra.pdf", PageLabel: "1"}},
		{ID: "5", Text: "ALBERT shares parameters across layers to shrink BERT's footprint without losing much accuracy.", Metadata: retriever.Metadata{FileName: "albert.pdf", PageLabel: "1"}},
		{ID: "6", Text: "DistilBERT distills BERT into a smaller student model via knowledge distillation.", Metadata: retriever.Metadata{FileName: "distilbert.pdf", PageLabel: "1"}},
	}
	vectorHits := []retriever.Chunk{full[0], full[2], full[3]} // BERT, RoBERTa, ELECTRA: vector-only path surfaces these

	store := bertCorpusStore{vectorHits: vectorHits, fullCorpus: full}
	r := retriever.New(fixedEmbedder{vec: []float32{0.1, 0.2, 0.3}}, store)

	results := r.Search(context.Background(), "BERT", 5, retriever.SearchOptions{UseHybrid: true})

	require.LessOrEqual(t, len(results), 5)
	require.NotEmpty(t, results)

	for i, c := range results {
		require.True(t, c.SearchInfo.VectorRank > 0 || c.SearchInfo.BM25Rank > 0,
			"chunk %q must carry a vector or bm25 rank, got %+v", c.ID, c.SearchInfo)
		if i > 0 {
			require.GreaterOrEqual(t, results[i-1].Score, c.Score, "scores must be non-increasing")
		}
	}
}
