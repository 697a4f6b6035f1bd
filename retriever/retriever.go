package retriever

import (
	"context"
	"sort"
	"sync"

	"github.com/opencode-ai/orchestrator/retriever/bm25"
	"github.com/opencode-ai/orchestrator/retriever/rerank"
	"github.com/opencode-ai/orchestrator/telemetry"
)

// RRFConstant is the k in RRF(doc) = Σ 1 / (k + rank_i(doc)).
const RRFConstant = 60

// rerankFactor multiplies top_k when deciding how many vector-search
// candidates to pull before fusion: 4 when reranking, 2 otherwise.
const (
	rerankFactorWithRerank = 4
	rerankFactorNoRerank   = 2
)

// Retriever is the hybrid dense + BM25 + RRF retriever described in section
// 4.4.
type Retriever struct {
	embed     EmbeddingModel
	vectors   VectorStore
	reranker  rerank.Reranker
	log       telemetry.Logger
	bm25Mu    sync.Mutex
	bm25Cache map[string]*bm25Entry
}

// bm25Entry caches a filter's BM25 index alongside the full corpus chunks
// it was built from, keyed by ID, so BM25-only hits can be fused with
// their real Text/Metadata instead of a placeholder.
type bm25Entry struct {
	idx  *bm25.Index
	byID map[string]Chunk
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithReranker attaches the neural rerank stage. Without it, Search never
// reranks even when UseRerank is requested.
func WithReranker(r rerank.Reranker) Option {
	return func(ret *Retriever) { ret.reranker = r }
}

// WithLogger attaches a Logger.
func WithLogger(l telemetry.Logger) Option {
	return func(ret *Retriever) { ret.log = l }
}

// New constructs a Retriever over embed and vectors.
func New(embed EmbeddingModel, vectors VectorStore, opts ...Option) *Retriever {
	r := &Retriever{
		embed:     embed,
		vectors:   vectors,
		log:       telemetry.NewNoopLogger(),
		bm25Cache: make(map[string]*bm25Entry),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// SearchOptions configures one Search call.
type SearchOptions struct {
	Filter    Filter
	UseHybrid bool
	UseRerank *bool
}

// Search runs the vector + BM25 + RRF + optional-rerank pipeline for one
// query. On any internal failure it logs and returns an empty list rather
// than propagating, per the retriever's failure mode.
func (r *Retriever) Search(ctx context.Context, query string, topK int, opts SearchOptions) []Chunk {
	useRerank := r.reranker != nil
	if opts.UseRerank != nil {
		useRerank = useRerank && *opts.UseRerank
	}
	factor := rerankFactorNoRerank
	if useRerank {
		factor = rerankFactorWithRerank
	}
	pullK := topK * factor

	vector, err := r.embed.EmbedQuery(ctx, query)
	if err != nil {
		r.log.Warn(ctx, "retriever: embed failed", "error", err.Error())
		return nil
	}
	vectorResults, err := r.vectors.Search(ctx, vector, pullK, opts.Filter)
	if err != nil {
		r.log.Warn(ctx, "retriever: vector search failed", "error", err.Error())
		return nil
	}

	var bm25Results []bm25.Result
	var bm25ByID map[string]Chunk
	if opts.UseHybrid {
		idx, byID, err := r.bm25Index(ctx, opts.Filter)
		if err != nil {
			r.log.Warn(ctx, "retriever: bm25 index build failed", "error", err.Error())
		} else {
			bm25Results = idx.Search(query, pullK)
			bm25ByID = byID
		}
	}

	fused := fuse(vectorResults, bm25Results, bm25ByID)
	if useRerank {
		fused = r.rerank(ctx, query, fused)
	}
	sort.SliceStable(fused, func(i, j int) bool { return fused[i].Score > fused[j].Score })
	if len(fused) > topK {
		fused = fused[:topK]
	}
	return fused
}

// SearchMultiple runs Search for every query in queries, deduplicates
// results by fusion key across all queries, and sorts the union by score
// descending.
func (r *Retriever) SearchMultiple(ctx context.Context, queries []string, topKPerQuery int, opts SearchOptions) Retrieval {
	seen := make(map[string]struct{})
	var all []Chunk
	for _, q := range queries {
		for _, c := range r.Search(ctx, q, topKPerQuery, opts) {
			key := fusionKey(c.Text)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			all = append(all, c)
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Score > all[j].Score })
	return Retrieval{
		Query:   "",
		Results: all,
		Sources: dedupeSources(all),
	}
}

// bm25Index returns the cached BM25 index for filter along with the full
// corpus it was built from, keyed by chunk ID, so callers can recover real
// Text/Metadata for BM25-only hits instead of a placeholder.
func (r *Retriever) bm25Index(ctx context.Context, filter Filter) (*bm25.Index, map[string]Chunk, error) {
	fp := filter.Fingerprint()
	r.bm25Mu.Lock()
	if e, ok := r.bm25Cache[fp]; ok {
		r.bm25Mu.Unlock()
		return e.idx, e.byID, nil
	}
	r.bm25Mu.Unlock()

	corpus, err := r.vectors.Corpus(ctx, filter)
	if err != nil {
		return nil, nil, err
	}
	docs := make([]bm25.Document, len(corpus))
	byID := make(map[string]Chunk, len(corpus))
	for i, c := range corpus {
		docs[i] = bm25.Document{ID: c.ID, Text: c.Text}
		byID[c.ID] = c
	}
	idx := bm25.Build(docs)

	r.bm25Mu.Lock()
	r.bm25Cache[fp] = &bm25Entry{idx: idx, byID: byID}
	r.bm25Mu.Unlock()
	return idx, byID, nil
}

// fuse merges vector and BM25 result lists with Reciprocal Rank Fusion,
// identifying documents across lists by their fusion key (first 100 chars).
// corpusByID supplies full Text/Metadata for BM25 hits that fell outside
// the vector result set; without it those hits would carry only an ID.
func fuse(vectorResults []Chunk, bm25Results []bm25.Result, corpusByID map[string]Chunk) []Chunk {
	type fusedEntry struct {
		chunk      Chunk
		vectorRank int
		bm25Rank   int
		rrf        float64
	}
	byKey := make(map[string]*fusedEntry)
	var order []string

	for rank, c := range vectorResults {
		key := fusionKey(c.Text)
		if _, ok := byKey[key]; !ok {
			order = append(order, key)
			byKey[key] = &fusedEntry{chunk: c, vectorRank: -1, bm25Rank: -1}
		}
		byKey[key].vectorRank = rank + 1
		byKey[key].rrf += 1.0 / float64(RRFConstant+rank+1)
	}

	chunkByID := make(map[string]Chunk, len(vectorResults))
	for _, c := range vectorResults {
		chunkByID[c.ID] = c
	}
	for rank, res := range bm25Results {
		c, ok := chunkByID[res.ID]
		if !ok {
			c, ok = corpusByID[res.ID]
		}
		if !ok {
			c = Chunk{ID: res.ID, Text: res.ID}
		}
		key := fusionKey(c.Text)
		if _, ok := byKey[key]; !ok {
			order = append(order, key)
			byKey[key] = &fusedEntry{chunk: c, vectorRank: -1, bm25Rank: -1}
		}
		byKey[key].bm25Rank = rank + 1
		byKey[key].rrf += 1.0 / float64(RRFConstant+rank+1)
	}

	out := make([]Chunk, len(order))
	for i, key := range order {
		e := byKey[key]
		source := SourceHybrid
		switch {
		case e.vectorRank > 0 && e.bm25Rank <= 0:
			source = SourceVector
		case e.bm25Rank > 0 && e.vectorRank <= 0:
			source = SourceBM25
		}
		chunk := e.chunk
		chunk.Score = e.rrf
		chunk.SearchInfo = SearchInfo{
			VectorRank: e.vectorRank,
			BM25Rank:   e.bm25Rank,
			RRFScore:   e.rrf,
			Source:     source,
		}
		out[i] = chunk
	}
	return out
}

func (r *Retriever) rerank(ctx context.Context, query string, chunks []Chunk) []Chunk {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	scores, err := r.reranker.Rerank(ctx, query, texts)
	if err != nil {
		r.log.Warn(ctx, "retriever: rerank failed, keeping fusion order", "error", err.Error())
		return chunks
	}
	for i := range chunks {
		if i >= len(scores) {
			break
		}
		s := scores[i]
		chunks[i].SearchInfo.RerankScore = &s
		chunks[i].Score = s
	}
	return chunks
}
