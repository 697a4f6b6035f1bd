package retriever

import (
	"context"
	"sort"
	"strings"
)

// Filter restricts a vector search to documents whose metadata matches.
// Each key maps to either a single accepted value or a disjunctive list of
// accepted values (§4.4: "supports single values and disjunctive lists per
// key").
type Filter map[string][]string

// Fingerprint returns a stable string identifying this filter, used to key
// the BM25 index cache per distinct filter combination.
func (f Filter) Fingerprint() string {
	if len(f) == 0 {
		return "*"
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := ""
	for _, k := range keys {
		vals := append([]string(nil), f[k]...)
		sort.Strings(vals)
		out += k + "=" + strings.Join(vals, ",") + ";"
	}
	return out
}

// EmbeddingModel embeds text for vector search. Query and document text may
// be embedded differently when the provider distinguishes them (e.g.
// "search_query" vs "search_document" modes).
type EmbeddingModel interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore performs nearest-neighbor search over embedded documents. The
// qdrant subpackage provides the production implementation; tests use an
// in-memory fake.
type VectorStore interface {
	// Search returns the topK nearest neighbors to vector, restricted to
	// documents matching filter (nil/empty for no restriction).
	Search(ctx context.Context, vector []float32, topK int, filter Filter) ([]Chunk, error)
	// Corpus returns every chunk matching filter, for building the BM25
	// index. Implementations may cap this internally.
	Corpus(ctx context.Context, filter Filter) ([]Chunk, error)
}
