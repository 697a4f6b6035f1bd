// Package retriever implements the hybrid dense-vector + BM25 retriever
// described in section 4.4: parallel vector and lexical search fused with
// Reciprocal Rank Fusion, with an optional neural re-rank pass. Grounded in
// Tangerg-lynx's vectorstore/qdrant packages for the embedding-and-search
// shape, generalized to add the BM25 and RRF stages the Python original
// performs that a pure vector store does not.
package retriever

// SourceKind identifies which retrieval stage(s) surfaced a Chunk.
type SourceKind string

const (
	SourceVector SourceKind = "vector"
	SourceBM25   SourceKind = "bm25"
	SourceHybrid SourceKind = "hybrid"
)

// SearchInfo records how a Chunk was ranked across the fusion pipeline.
type SearchInfo struct {
	VectorRank  int
	BM25Rank    int
	RRFScore    float64
	RerankScore *float64
	Source      SourceKind
}

// Metadata is the per-chunk provenance the Gateway and façade surface to
// callers as a SourceRef.
type Metadata struct {
	FileName    string
	PageLabel   string
	ChunkIndex  int
	ContentType string
}

// Chunk is one retrieved unit of text with its score and provenance.
type Chunk struct {
	ID         string
	Text       string
	Metadata   Metadata
	Score      float64
	SearchInfo SearchInfo
}

// SourceRef identifies a de-duplicated document source.
type SourceRef struct {
	FileName  string
	PageLabel string
}

// Retrieval bundles a query with its ranked results and de-duplicated
// sources.
type Retrieval struct {
	Query   string
	Results []Chunk
	Sources []SourceRef
}

// fusionKey is the first 100 characters of a chunk's text, used to identify
// "the same document" across the vector and BM25 result lists per the
// fusion contract.
func fusionKey(text string) string {
	r := []rune(text)
	if len(r) > 100 {
		r = r[:100]
	}
	return string(r)
}

// dedupeSources collapses results into unique (file_name, page_label)
// pairs, preserving first-seen order.
func dedupeSources(chunks []Chunk) []SourceRef {
	seen := make(map[SourceRef]struct{})
	var out []SourceRef
	for _, c := range chunks {
		ref := SourceRef{FileName: c.Metadata.FileName, PageLabel: c.Metadata.PageLabel}
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		out = append(out, ref)
	}
	return out
}
