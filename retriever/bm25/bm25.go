// Package bm25 implements Okapi BM25 scoring over an in-memory document
// corpus, tokenizing with mixed English word-boundary tokens and CJK
// character bigrams per the retriever's fusion contract. No third-party
// BM25 implementation appeared anywhere in the example corpus, so this is a
// deliberate, narrowly-scoped standard-library implementation rather than a
// wrapped dependency; see the project's grounding ledger for the full
// justification.
package bm25

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

const (
	K1 = 1.5
	B  = 0.75

	// MaxDocuments bounds index size per §4.4's hard cap.
	MaxDocuments = 1000
)

// Document is one unit of text indexed for lexical search, keyed by an
// opaque ID the caller can map back to its own representation (a
// retriever.Chunk in practice).
type Document struct {
	ID   string
	Text string
}

// Index is a BM25 index over a fixed document set. Build once per corpus;
// rebuild when the corpus changes.
type Index struct {
	docs      []Document
	postings  map[string][]posting // term -> postings
	docLen    []int
	avgDocLen float64
	docFreq   map[string]int
}

type posting struct {
	docIdx int
	tf     int
}

// Result is one scored document from Search.
type Result struct {
	ID    string
	Score float64
}

// Build indexes docs, truncating to MaxDocuments if the corpus is larger.
func Build(docs []Document) *Index {
	if len(docs) > MaxDocuments {
		docs = docs[:MaxDocuments]
	}
	idx := &Index{
		docs:     docs,
		postings: make(map[string][]posting),
		docLen:   make([]int, len(docs)),
		docFreq:  make(map[string]int),
	}
	var totalLen int
	for i, d := range docs {
		tokens := Tokenize(d.Text)
		idx.docLen[i] = len(tokens)
		totalLen += len(tokens)
		tf := make(map[string]int)
		for _, tok := range tokens {
			tf[tok]++
		}
		for term, count := range tf {
			idx.postings[term] = append(idx.postings[term], posting{docIdx: i, tf: count})
			idx.docFreq[term]++
		}
	}
	if len(docs) > 0 {
		idx.avgDocLen = float64(totalLen) / float64(len(docs))
	}
	return idx
}

// Search scores every document containing at least one query term and
// returns the topK highest-scoring results, descending.
func (idx *Index) Search(query string, topK int) []Result {
	queryTerms := Tokenize(query)
	if len(queryTerms) == 0 || len(idx.docs) == 0 {
		return nil
	}
	scores := make(map[int]float64)
	n := float64(len(idx.docs))
	for _, term := range queryTerms {
		postings, ok := idx.postings[term]
		if !ok {
			continue
		}
		df := float64(idx.docFreq[term])
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		for _, p := range postings {
			dl := float64(idx.docLen[p.docIdx])
			tf := float64(p.tf)
			denom := tf + K1*(1-B+B*dl/idx.avgDocLen)
			scores[p.docIdx] += idf * (tf * (K1 + 1) / denom)
		}
	}
	results := make([]Result, 0, len(scores))
	for i, s := range scores {
		results = append(results, Result{ID: idx.docs[i].ID, Score: s})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}

// Tokenize lowercases and splits text into English word-boundary tokens
// mixed with CJK character bigrams, per the fusion contract's tokenization
// rule.
func Tokenize(text string) []string {
	var tokens []string
	var word []rune
	flush := func() {
		if len(word) > 0 {
			tokens = append(tokens, strings.ToLower(string(word)))
			word = word[:0]
		}
	}
	runes := []rune(text)
	for i, r := range runes {
		switch {
		case isCJK(r):
			flush()
			if i+1 < len(runes) && isCJK(runes[i+1]) {
				tokens = append(tokens, strings.ToLower(string([]rune{r, runes[i+1]})))
			} else if i > 0 && isCJK(runes[i-1]) {
				// already emitted as the second half of the previous bigram
			} else {
				tokens = append(tokens, strings.ToLower(string(r)))
			}
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			word = append(word, r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}
