// Package rerank provides the optional neural re-rank stage applied to the
// fused result set before truncation to top_k. Reranker is an interface so
// a production deployment can plug in a hosted cross-encoder; Tokenset is a
// dependency-free reference scorer used when no such model is configured.
package rerank

import (
	"context"
	"strings"
)

// Reranker scores query against each candidate's text and returns one score
// per candidate, in the same order.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []string) ([]float64, error)
}

// Tokenset is a dependency-free reference Reranker: it scores each
// candidate by token-overlap Jaccard similarity with the query. It exists
// so the retriever's rerank stage is exercised in tests and demos without a
// hosted cross-encoder; production deployments should supply a real model
// client behind the Reranker interface instead.
type Tokenset struct{}

// Rerank implements Reranker.
func (Tokenset) Rerank(_ context.Context, query string, candidates []string) ([]float64, error) {
	q := tokenSet(query)
	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		scores[i] = jaccard(q, tokenSet(c))
	}
	return scores, nil
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		set[tok] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
